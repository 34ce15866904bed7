package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
	"github.com/renjie/prism-co2/pkg/logging"
)

// Processor 核心处理服务: 质量检查 → 标准气 → 校准 → 物理派生
// 批次在各阶段之间按值传递, 同一时刻只有一个写者
type Processor struct {
	checks       []ports.FlagCheck
	checkConfigs []domain.CheckConfig // 非空时通过 CheckFactory 动态构建检查链
	checksSet    bool
	references   domain.ReferenceTable
	standards    []string
	maxBridge    time.Duration
	calibration  CalibrationConfig
	derivation   DerivationConfig
	repo         ports.RunRepository // 可选持久层依赖
	exporters    []ports.Exporter    // 可选导出
	publisher    ports.Publisher     // 可选发布
	observer     ports.RunObserver   // 可选指标
	logger       logrus.FieldLogger
	now          func() time.Time
	persistBatch bool
}

// ProcessorOption 定义配置选项函数 (Functional Option Pattern)
type ProcessorOption func(*Processor)

// WithChecks 设置质量检查链 (不传参数表示不做质量检查)
func WithChecks(checks ...ports.FlagCheck) ProcessorOption {
	return func(p *Processor) {
		p.checks = checks
		p.checksSet = true
	}
}

// WithReferences 设置标准气参考表
func WithReferences(table domain.ReferenceTable) ProcessorOption {
	return func(p *Processor) {
		p.references = table
	}
}

// WithStandardIDs 指定参与插值和校准的标准气 (默认: 自动发现)
func WithStandardIDs(ids ...string) ProcessorOption {
	return func(p *Processor) {
		p.standards = ids
	}
}

// WithBridge 设置标准气最大桥接间隔 (默认 12h)
func WithBridge(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.maxBridge = d
	}
}

// WithCalibration 设置校准参数
func WithCalibration(cfg CalibrationConfig) ProcessorOption {
	return func(p *Processor) {
		p.calibration = cfg
	}
}

// WithDerivation 设置派生参数
func WithDerivation(cfg DerivationConfig) ProcessorOption {
	return func(p *Processor) {
		p.derivation = cfg
	}
}

// WithRepository 设置持久层依赖; records 为 true 时同时保存结果表
func WithRepository(repo ports.RunRepository, records bool) ProcessorOption {
	return func(p *Processor) {
		p.repo = repo
		p.persistBatch = records
	}
}

// WithExporters 设置导出器
func WithExporters(exporters ...ports.Exporter) ProcessorOption {
	return func(p *Processor) {
		p.exporters = exporters
	}
}

// WithPublisher 设置结果发布器
func WithPublisher(pub ports.Publisher) ProcessorOption {
	return func(p *Processor) {
		p.publisher = pub
	}
}

// WithObserver 设置运行观测者
func WithObserver(o ports.RunObserver) ProcessorOption {
	return func(p *Processor) {
		p.observer = o
	}
}

// WithLogger 设置日志
func WithLogger(l logrus.FieldLogger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock 设置时钟 (参考表开放有效期的上界)
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		p.now = now
	}
}

// NewProcessor 初始化处理服务
// 使用 Functional Options 模式进行配置
func NewProcessor(opts ...ProcessorOption) *Processor {
	// 默认配置
	p := &Processor{
		maxBridge:   DefaultMaxBridge,
		calibration: DefaultCalibrationConfig(),
		derivation:  DefaultDerivationConfig(),
		logger:      logging.Discard(),
		now:         time.Now,
	}

	// 应用选项
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result 一次运行的输出
type Result struct {
	Run     domain.Run
	Batch   *domain.Batch
	Reports []domain.CheckReport
	Runs    map[string][]domain.StandardRun
	Exports []string
}

// Process 在单个批次上执行完整流水线
// 空批次与缺失的必需通道为致命错误; 其余缺失数据只通过标记传递
func (p *Processor) Process(ctx context.Context, batch *domain.Batch) (*Result, error) {
	if batch == nil || batch.Len() == 0 {
		return nil, domain.ErrEmptyBatch
	}

	info, _ := domain.FromContext(ctx)
	if info.RunID == "" {
		info.RunID = uuid.NewString()
	}
	if info.Trigger == "" {
		info.Trigger = domain.RunTriggerManual
	}

	started := p.now()
	run := domain.Run{
		ID:        info.RunID,
		Trigger:   info.Trigger,
		Operator:  info.Operator,
		Prefix:    info.Prefix,
		Status:    domain.RunStatusRunning,
		DataStart: batch.Start(),
		DataEnd:   batch.End(),
		Rows:      batch.Len(),
		StartedAt: started,
	}
	log := p.logger.WithFields(logrus.Fields{"run_id": run.ID, "rows": run.Rows})

	if p.repo != nil {
		if err := p.repo.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to persist run: %w", err)
		}
	}

	result, err := p.pipeline(domain.NewContext(ctx, info), batch, log)
	if result == nil {
		result = &Result{}
	}

	// 收尾: 记录状态
	run.FinishedAt = p.now()
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		log.WithError(err).Error("pipeline failed")
	} else {
		run.Status = domain.RunStatusSucceeded
		run.Calibrated = countTrue(result.Batch.Flags(domain.ChannelXCO2Cal))
		log.WithFields(logrus.Fields{
			"calibrated": run.Calibrated,
			"duration":   run.FinishedAt.Sub(started).String(),
		}).Info("pipeline finished")
	}
	result.Run = run

	if p.repo != nil {
		// 使用独立上下文, 取消的运行也要落盘为 FAILED
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if saveErr := p.repo.SaveRun(saveCtx, run); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to persist run: %w", saveErr))
		}
	}
	if p.observer != nil {
		p.observer.ObserveRun(run, result.Reports, run.FinishedAt.Sub(started))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Processor) pipeline(ctx context.Context, batch *domain.Batch, log logrus.FieldLogger) (*Result, error) {
	info, _ := domain.FromContext(ctx)
	res := &Result{}
	derive := NewDerivationChain(p.derivation, log)

	// Step 1: 模式分类统计
	counts := ClassifyModes(batch, log)
	log.WithFields(logrus.Fields{
		"atm":      counts[domain.ModeAtm],
		"equ":      counts[domain.ModeEqu],
		"standard": StandardRows(counts),
		"unknown":  counts[domain.ModeUnknown],
	}).Info("records classified")

	// Step 2: 检查前派生 (delta temperature, qff)
	var err error
	if batch, err = derive.Prepare(batch); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 3: 质量检查
	checks, err := p.resolveChecks()
	if err != nil {
		return nil, err
	}
	engine := NewFlagEngine(log, checks...)
	if batch, res.Reports, err = engine.Run(batch); err != nil {
		return nil, err
	}
	for k := range res.Reports {
		res.Reports[k].ID = uuid.NewString()
		res.Reports[k].RunID = info.RunID
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Step 4: 参考浓度与标准气插值
	if unused := UnusedReferences(batch, p.references); len(unused) > 0 {
		log.WithField("standards", unused).Warn("reference entries without standard runs")
	}
	if batch, err = ResolveReferences(batch, p.references, p.now()); err != nil {
		return res, fmt.Errorf("resolve references: %w", err)
	}
	interp := NewStandardInterpolator(
		WithStandards(p.standards...),
		WithMaxBridge(p.maxBridge),
		WithInterpolatorLogger(log),
	)
	if batch, res.Runs, err = interp.Interpolate(ctx, batch); err != nil {
		return res, fmt.Errorf("interpolate standards: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Step 5: 校准
	if batch, err = NewCalibrator(p.calibration, log, p.standards...).Calibrate(batch); err != nil {
		return res, fmt.Errorf("calibrate: %w", err)
	}

	// Step 6: 物理派生
	if batch, err = derive.Derive(batch); err != nil {
		return res, fmt.Errorf("derive: %w", err)
	}
	res.Batch = batch
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Step 7: 持久化、导出与发布
	if err := p.deliver(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Processor) deliver(ctx context.Context, res *Result) error {
	info, _ := domain.FromContext(ctx)
	if p.repo != nil {
		if err := p.repo.SaveReports(ctx, info.RunID, res.Reports); err != nil {
			return fmt.Errorf("failed to persist reports: %w", err)
		}
		if p.persistBatch {
			if err := p.repo.SaveRecords(ctx, info.RunID, res.Batch.Records()); err != nil {
				return fmt.Errorf("failed to persist records: %w", err)
			}
		}
	}
	for _, exp := range p.exporters {
		path, err := exp.Export(ctx, res.Batch)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		if path != "" {
			res.Exports = append(res.Exports, path)
		}
	}
	if p.publisher != nil {
		rows := res.Batch.FCO2Rows()
		records := make([]domain.Record, len(rows))
		for k, i := range rows {
			records[k] = res.Batch.Row(i)
		}
		if err := p.publisher.Publish(ctx, info.RunID, records); err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
	}
	return nil
}

func countTrue(flags []bool) int {
	n := 0
	for _, ok := range flags {
		if ok {
			n++
		}
	}
	return n
}
