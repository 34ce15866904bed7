package rules

import (
	"fmt"
	"time"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// DefaultMaxConstant 恒定值运行段的最大允许时长
const DefaultMaxConstant = 120 * time.Minute

// ConstantCheck 恒定值检查 (卡死的传感器)
// 把连续相等的非缺失值分为运行段, 时长超过 MaxDuration 的运行段除首条外全部标记无效
type ConstantCheck struct {
	Channels    []domain.Channel
	MaxDuration time.Duration
}

// Name 实现 ports.FlagCheck
func (c *ConstantCheck) Name() string { return "constant" }

// Apply 逐通道执行
func (c *ConstantCheck) Apply(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error) {
	reports := make([]domain.CheckReport, 0, len(c.Channels))
	for _, ch := range c.Channels {
		values, err := batch.Values(ch)
		if err != nil {
			return nil, nil, fmt.Errorf("constant check: %w", err)
		}
		mask := constantMask(batch.Times(), values, c.MaxDuration)

		var flagged int
		batch, flagged = batch.AndFlag(ch, mask)
		reports = append(reports, newReport(c.Name(), ch, domain.ModeUnknown, batch.Len(), flagged,
			fmt.Sprintf("max run %s", c.MaxDuration)))
	}
	return batch, reports, nil
}

// constantMask 返回每行是否通过检查
// 缺失值打断运行段且自身从不标记
func constantMask(times []time.Time, values []float64, maxDuration time.Duration) []bool {
	n := len(values)
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}

	for start := 0; start < n; {
		if domain.IsMissing(values[start]) {
			start++
			continue
		}
		end := start + 1
		for end < n && values[end] == values[start] {
			end++
		}
		if times[end-1].Sub(times[start]) > maxDuration {
			for i := start + 1; i < end; i++ {
				mask[i] = false
			}
		}
		start = end
	}
	return mask
}
