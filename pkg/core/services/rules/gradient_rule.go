package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// DefaultMaxGap 与相邻记录的最大时间间隔, 超过则缺少局部上下文
const DefaultMaxGap = 300 * time.Second

// GradientCheck 局部梯度检查
// 与前后两条记录均值的偏差 >= Threshold 时标记无效, 以下情况豁免:
//  1. 任一相邻记录缺失 (包括首尾记录)
//  2. 与任一相邻记录的时间间隔超过 MaxGap
//  3. ModeSensitive 为 true 且相邻记录的原始模式标签不同
type GradientCheck struct {
	Channels      []domain.Channel
	Threshold     float64
	ModeSensitive bool
	MaxGap        time.Duration
}

// Name 实现 ports.FlagCheck
func (g *GradientCheck) Name() string { return "gradient" }

// Apply 逐通道执行
func (g *GradientCheck) Apply(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error) {
	reports := make([]domain.CheckReport, 0, len(g.Channels))
	for _, ch := range g.Channels {
		values, err := batch.Values(ch)
		if err != nil {
			return nil, nil, fmt.Errorf("gradient check: %w", err)
		}
		mask := g.mask(batch, values)

		var flagged int
		batch, flagged = batch.AndFlag(ch, mask)
		reports = append(reports, newReport(g.Name(), ch, domain.ModeUnknown, batch.Len(), flagged,
			fmt.Sprintf("threshold %.2f mode sensitive %t", g.Threshold, g.ModeSensitive)))
	}
	return batch, reports, nil
}

func (g *GradientCheck) mask(batch *domain.Batch, values []float64) []bool {
	n := len(values)
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	for i := 1; i < n-1; i++ {
		prev, curr, next := values[i-1], values[i], values[i+1]
		if math.IsNaN(prev) || math.IsNaN(curr) || math.IsNaN(next) {
			continue
		}
		if batch.Time(i).Sub(batch.Time(i-1)) > g.MaxGap || batch.Time(i+1).Sub(batch.Time(i)) > g.MaxGap {
			continue
		}
		if g.ModeSensitive && (batch.Tag(i-1) != batch.Tag(i) || batch.Tag(i+1) != batch.Tag(i)) {
			continue
		}
		mask[i] = math.Abs(curr-(prev+next)/2) < g.Threshold
	}
	return mask
}
