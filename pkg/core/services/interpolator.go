package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/stats"
	"github.com/renjie/prism-co2/pkg/logging"
)

// DefaultMaxBridge 运行段之间可安全桥接的最大间隔
const DefaultMaxBridge = 12 * time.Hour

// StandardInterpolator 标准气响应插值器
// 对每个标准气: 找出运行段, 取段内中位数 (不含首条冲洗样本), 再跨越非标准气时段桥接为连续的响应曲线
type StandardInterpolator struct {
	standards []string
	maxBridge time.Duration
	logger    logrus.FieldLogger
}

// InterpolatorOption 定义配置选项函数
type InterpolatorOption func(*StandardInterpolator)

// WithStandards 指定要处理的标准气 (默认: 批次中出现的全部标准气)
func WithStandards(ids ...string) InterpolatorOption {
	return func(s *StandardInterpolator) {
		s.standards = ids
	}
}

// WithMaxBridge 设置最大桥接间隔 (默认 12h)
func WithMaxBridge(d time.Duration) InterpolatorOption {
	return func(s *StandardInterpolator) {
		if d > 0 {
			s.maxBridge = d
		}
	}
}

// WithInterpolatorLogger 设置日志
func WithInterpolatorLogger(l logrus.FieldLogger) InterpolatorOption {
	return func(s *StandardInterpolator) {
		s.logger = l
	}
}

// NewStandardInterpolator 初始化插值器
func NewStandardInterpolator(opts ...InterpolatorOption) *StandardInterpolator {
	s := &StandardInterpolator{
		maxBridge: DefaultMaxBridge,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type interpolation struct {
	id           string
	runs         []domain.StandardRun
	median       []float64
	interpolated []float64
}

// Interpolate 为每个标准气计算 median 与 interpolated 序列
// 各标准气相互独立, 并发计算; 结果在主协程中按顺序提交
// 请求的标准气在批次中没有任何记录时返回 MissingChannelError
func (s *StandardInterpolator) Interpolate(ctx context.Context, batch *domain.Batch) (*domain.Batch, map[string][]domain.StandardRun, error) {
	ids := s.standards
	if len(ids) == 0 {
		ids = batch.StandardIDs()
	}
	for _, id := range ids {
		if !batch.HasMode(domain.StandardMode(id)) {
			return nil, nil, &domain.MissingChannelError{
				Channel: string(domain.StandardMode(id)),
				Context: "interpolate standard",
			}
		}
	}

	response, _, err := rawCO2(batch)
	if err != nil {
		return nil, nil, err
	}

	results := make([]interpolation, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for k, id := range ids {
		k, id := k, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reference := domain.NaNs(batch.Len())
			if track, ok := batch.Track(id); ok && track.Reference != nil {
				reference = track.Reference
			}
			results[k] = s.interpolateOne(batch, id, response, reference)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	runs := make(map[string][]domain.StandardRun, len(results))
	for _, r := range results {
		track, _ := batch.Track(r.id)
		track.Median = r.median
		track.Interpolated = r.interpolated
		if batch, err = batch.WithTrack(r.id, track); err != nil {
			return nil, nil, err
		}
		runs[r.id] = r.runs
		s.logger.WithFields(logrus.Fields{
			"standard": r.id,
			"runs":     len(r.runs),
		}).Info("standard interpolated")
	}
	return batch, runs, nil
}

func (s *StandardInterpolator) interpolateOne(batch *domain.Batch, id string, response, reference []float64) interpolation {
	n := batch.Len()
	runs := FindRuns(batch, id, response)
	median := domain.NaNs(n)
	interp := domain.NaNs(n)
	elapsed := batch.ElapsedSeconds()

	// 1. 运行段内: median 与 interpolated 均为段中位数
	for _, r := range runs {
		for i := r.Start; i < r.End; i++ {
			median[i] = r.Median
			interp[i] = r.Median
		}
	}

	// 2. 相邻运行段之间桥接
	for k := 0; k+1 < len(runs); k++ {
		cur, next := runs[k], runs[k+1]
		last, first := cur.End-1, next.Start
		gap := next.StartTime.Sub(cur.EndTime)

		switch {
		case gap > s.maxBridge:
			s.hold(batch, interp, cur, next.Start)
		case sameReference(reference[last], reference[first]) || gap <= 0:
			for i := cur.End; i < next.Start; i++ {
				interp[i] = cur.Median
			}
		default:
			span := elapsed[first] - elapsed[last]
			for i := cur.End; i < next.Start; i++ {
				frac := (elapsed[i] - elapsed[last]) / span
				interp[i] = cur.Median + (next.Median-cur.Median)*frac
			}
		}
	}

	// 首个运行段之前与最后一个运行段之后没有桥接规则, 保持缺失
	return interpolation{id: id, runs: runs, median: median, interpolated: interp}
}

// hold 在 (run 末行时间, +maxBridge] 内保持 run 中位数, 仅作用于 [run.End, limit)
func (s *StandardInterpolator) hold(batch *domain.Batch, interp []float64, run domain.StandardRun, limit int) {
	deadline := run.EndTime.Add(s.maxBridge)
	for i := run.End; i < limit; i++ {
		t := batch.Time(i)
		if t.After(deadline) {
			break
		}
		if t.After(run.EndTime) {
			interp[i] = run.Median
		}
	}
}

// FindRuns 通过模式成员序列的上升沿/下降沿找出标准气运行段
func FindRuns(batch *domain.Batch, id string, response []float64) []domain.StandardRun {
	member := batch.Is(domain.StandardMode(id))
	var runs []domain.StandardRun
	for i := 0; i < len(member); {
		if !member[i] {
			i++
			continue
		}
		start := i
		for i < len(member) && member[i] {
			i++
		}
		runs = append(runs, domain.StandardRun{
			StandardID: id,
			Start:      start,
			End:        i,
			StartTime:  batch.Time(start),
			EndTime:    batch.Time(i - 1),
			Median:     runMedian(response, start, i),
		})
	}
	return runs
}

// runMedian 不含首条冲洗样本; 单行运行段返回 NaN
func runMedian(response []float64, start, end int) float64 {
	if end-start < 2 {
		return math.NaN()
	}
	return stats.Median(response[start+1 : end])
}

func sameReference(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

// rawCO2 每行的原始 CO2 读数: 有 CO2 avg ppm 时取之, 否则取 CO2 ppm
// source 记录每行所用的通道, 供标记传递
func rawCO2(batch *domain.Batch) ([]float64, []domain.Channel, error) {
	co2, err := batch.Values(domain.ChannelCO2)
	if err != nil {
		return nil, nil, err
	}
	avg, _ := batch.Values(domain.ChannelCO2Avg)

	values := make([]float64, batch.Len())
	source := make([]domain.Channel, batch.Len())
	for i := range values {
		if avg != nil && !math.IsNaN(avg[i]) {
			values[i], source[i] = avg[i], domain.ChannelCO2Avg
			continue
		}
		values[i], source[i] = co2[i], domain.ChannelCO2
	}
	return values, source, nil
}
