package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/stats"
)

// Estimator 离群点检查的中心/离散度估计方法
type Estimator string

const (
	EstimatorStd Estimator = "std" // 均值 + 样本标准差
	EstimatorMAD Estimator = "mad" // 中位数 + 1.4826·MAD
)

const (
	// DefaultOutlierWindow 默认窗口 3 天, 对应一次典型航次
	DefaultOutlierWindow = 4320 * time.Minute
	// DefaultOutlierFactor 偏差阈值倍数
	DefaultOutlierFactor = 5.0
)

// OutlierCheck 居中时间窗口离群点检查
// 窗口基于时间而非行数: 行 t 的窗口为 (t − w/2, t + w/2]
// Selection 非空时仅统计并检查该模式的记录, 其余记录视为缺失
type OutlierCheck struct {
	Channels  []domain.Channel
	Selection domain.Mode
	Window    time.Duration
	Estimator Estimator
	Factor    float64
}

// Name 实现 ports.FlagCheck
func (o *OutlierCheck) Name() string { return "outlier" }

// Apply 逐通道执行
func (o *OutlierCheck) Apply(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error) {
	var selected []bool
	if o.Selection != domain.ModeUnknown {
		selected = batch.Is(o.Selection)
	}

	reports := make([]domain.CheckReport, 0, len(o.Channels))
	for _, ch := range o.Channels {
		values, err := batch.Values(ch)
		if err != nil {
			return nil, nil, fmt.Errorf("outlier check: %w", err)
		}

		// 1. 未选中的记录视为缺失
		temp := make([]float64, len(values))
		evaluated := 0
		for i, v := range values {
			if selected != nil && !selected[i] {
				temp[i] = math.NaN()
				continue
			}
			temp[i] = v
			if !domain.IsMissing(v) {
				evaluated++
			}
		}

		// 2. 计算离群标记
		var mask []bool
		switch o.Estimator {
		case EstimatorMAD:
			mask = madMask(batch.Times(), temp, o.Window, o.Factor)
		case EstimatorStd, "":
			mask = stdMask(batch.Times(), temp, o.Window, o.Factor)
		default:
			return nil, nil, fmt.Errorf("outlier check: unknown estimator %q", o.Estimator)
		}

		var flagged int
		batch, flagged = batch.AndFlag(ch, mask)
		reports = append(reports, newReport(o.Name(), ch, o.Selection, evaluated, flagged,
			fmt.Sprintf("%s window %s factor %.1f", o.estimator(), o.Window, o.Factor)))
	}
	return batch, reports, nil
}

func (o *OutlierCheck) estimator() Estimator {
	if o.Estimator == "" {
		return EstimatorStd
	}
	return o.Estimator
}

// windows 用双指针计算每行的窗口 [lo, hi)
func windows(times []time.Time, window time.Duration) (lo, hi []int) {
	n := len(times)
	lo = make([]int, n)
	hi = make([]int, n)
	half := window / 2
	l, h := 0, 0
	for i, t := range times {
		for l < n && !times[l].After(t.Add(-half)) {
			l++
		}
		for h < n && !times[h].After(t.Add(half)) {
			h++
		}
		lo[i], hi[i] = l, h
	}
	return lo, hi
}

// stdMask 滑动求和: 窗口内有效值的均值和样本标准差
// 以首个有效值为偏移量, 减少大数相减的精度损失
func stdMask(times []time.Time, values []float64, window time.Duration, factor float64) []bool {
	n := len(values)
	mask := make([]bool, n)
	lo, hi := windows(times, window)

	shift := math.NaN()
	for _, v := range values {
		if !math.IsNaN(v) {
			shift = v
			break
		}
	}

	var s1, s2 float64
	var cnt int
	l, h := 0, 0
	for i, x := range values {
		for h < hi[i] {
			if v := values[h]; !math.IsNaN(v) {
				d := v - shift
				s1 += d
				s2 += d * d
				cnt++
			}
			h++
		}
		for l < lo[i] {
			if v := values[l]; !math.IsNaN(v) {
				d := v - shift
				s1 -= d
				s2 -= d * d
				cnt--
			}
			l++
		}

		mask[i] = true
		if math.IsNaN(x) || cnt < 2 {
			continue
		}
		mean := s1 / float64(cnt)
		variance := (s2 - s1*mean) / float64(cnt-1)
		if variance < 0 {
			variance = 0
		}
		sd := math.Sqrt(variance)
		mask[i] = math.Abs(x-shift-mean) <= factor*sd
	}
	return mask
}

// madMask 每个窗口单独计算中位数与 sMAD
func madMask(times []time.Time, values []float64, window time.Duration, factor float64) []bool {
	n := len(values)
	mask := make([]bool, n)
	lo, hi := windows(times, window)
	for i, x := range values {
		mask[i] = true
		if math.IsNaN(x) {
			continue
		}
		median, smad := stats.ScaledMAD(values[lo[i]:hi[i]])
		mask[i] = !(math.Abs(x-median) > factor*smad)
	}
	return mask
}
