package domain

import (
	"sort"
	"time"
)

// TimeAligner 默认实现：基于时间容差的二分查找
// 用于把独立采样的伴随序列 (ferrybox) 合并到主记录批次上
type TimeAligner struct {
	Tolerance time.Duration
}

// NewAligner 创建时间对齐器实例
func NewAligner(tolerance time.Duration) *TimeAligner {
	return &TimeAligner{Tolerance: tolerance}
}

// Nearest 使用二分查找寻找最接近 target 的时间点下标
// 超出容差时返回 -1; 距离相同时取较早的一条
// 时间复杂度: O(log n)，前提是 times 已按时间排序
func (t *TimeAligner) Nearest(times []time.Time, target time.Time) int {
	if len(times) == 0 {
		return -1
	}

	// 二分查找: 找到第一个 >= target 的位置
	idx := sort.Search(len(times), func(i int) bool {
		return !times[i].Before(target)
	})

	// 检查 idx 和 idx-1，取时间差更小的那个
	best := -1
	minDiff := t.Tolerance + 1

	for _, i := range []int{idx - 1, idx} {
		if i >= 0 && i < len(times) {
			diff := absDuration(times[i].Sub(target))
			if diff <= t.Tolerance && diff < minDiff {
				best = i
				minDiff = diff
			}
		}
	}

	return best
}

// Align 为 targets 中每个时间点找到 source 中的匹配下标 (-1 表示无匹配)
func (t *TimeAligner) Align(source, targets []time.Time) []int {
	out := make([]int, len(targets))
	for i, target := range targets {
		out[i] = t.Nearest(source, target)
	}
	return out
}

// absDuration 返回 Duration 的绝对值
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
