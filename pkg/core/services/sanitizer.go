package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
	"github.com/renjie/prism-co2/pkg/logging"
)

// ChainFlagEngine 基于责任链模式的质量标记引擎
// 检查依次执行, 每个检查只能收紧标记 (Flag Only)
type ChainFlagEngine struct {
	checks []ports.FlagCheck
	logger logrus.FieldLogger
}

// NewFlagEngine 创建默认的基于检查链的标记引擎
func NewFlagEngine(logger logrus.FieldLogger, checks ...ports.FlagCheck) ports.FlagEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ChainFlagEngine{checks: checks, logger: logger}
}

// Run 实现 ports.FlagEngine 接口
func (e *ChainFlagEngine) Run(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error) {
	var all []domain.CheckReport
	for _, check := range e.checks {
		next, reports, err := check.Apply(batch)
		if err != nil {
			return nil, nil, fmt.Errorf("%s check failed: %w", check.Name(), err)
		}
		for _, r := range reports {
			e.logger.WithFields(logrus.Fields{
				"check":     r.Check,
				"channel":   r.Channel,
				"selection": selectionName(r.Selection),
				"flagged":   r.Flagged,
				"evaluated": r.Evaluated,
			}).Info("quality check applied")
		}
		batch = next
		all = append(all, reports...)
	}
	return batch, all, nil
}

// ClassifyModes 检查批次中是否存在未识别的模式标签, 并记录日志
// 分类本身在 NewBatch 时完成; 未知标签属常规情况 (过渡状态), 不报错
func ClassifyModes(batch *domain.Batch, logger logrus.FieldLogger) map[domain.Mode]int {
	counts := make(map[domain.Mode]int)
	unknown := make(map[string]int)
	for i := 0; i < batch.Len(); i++ {
		m := batch.Mode(i)
		counts[m]++
		if m == domain.ModeUnknown {
			unknown[batch.Tag(i)]++
		}
	}
	if logger != nil && len(unknown) > 0 {
		logger.WithField("tags", unknown).Debug("unrecognised mode tags")
	}
	return counts
}

// StandardRows 统计标准气运行模式的行数
func StandardRows(counts map[domain.Mode]int) int {
	total := 0
	for m, c := range counts {
		if m.IsStandard() {
			total += c
		}
	}
	return total
}

func selectionName(m domain.Mode) string {
	if m == domain.ModeUnknown {
		return "all_data"
	}
	return string(m)
}
