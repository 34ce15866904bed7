package ingest

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// DefaultJoinTolerance 最近时间点合并的容差
const DefaultJoinTolerance = 60 * time.Second

// Joiner 把伴随序列按最近时间点合并到记录批次上
// 没有匹配的行: 数值缺失, 标记为 false
type Joiner struct {
	aligner *domain.TimeAligner
	logger  logrus.FieldLogger
}

// NewJoiner 创建合并器; tolerance 为 0 时使用默认的 60s
func NewJoiner(tolerance time.Duration, logger logrus.FieldLogger) *Joiner {
	if tolerance <= 0 {
		tolerance = DefaultJoinTolerance
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Joiner{aligner: domain.NewAligner(tolerance), logger: logger}
}

// Join 返回追加了伴随通道的新批次
func (j *Joiner) Join(batch *domain.Batch, series *domain.CompanionSeries) (*domain.Batch, error) {
	n := batch.Len()
	var match []int
	if series != nil {
		match = j.aligner.Align(series.Times, batch.Times())
	} else {
		match = make([]int, n)
		for i := range match {
			match[i] = -1
		}
	}

	matched := 0
	for _, m := range match {
		if m >= 0 {
			matched++
		}
	}

	var err error
	for _, ch := range domain.CompanionChannels {
		values := make([]float64, n)
		flags := make([]bool, n)
		var src []float64
		var srcFlags []bool
		if series != nil {
			src, srcFlags = series.Values[ch], series.Flags[ch]
		}
		for i, m := range match {
			values[i] = math.NaN()
			if m < 0 || src == nil {
				continue
			}
			values[i] = src[m]
			flags[i] = srcFlags == nil || srcFlags[m]
		}
		if batch, err = batch.WithValues(ch, values); err != nil {
			return nil, err
		}
		batch, _ = batch.AndFlag(ch, flags)
	}

	j.logger.WithFields(logrus.Fields{
		"rows":    n,
		"matched": matched,
	}).Info("companion series joined")
	return batch, nil
}
