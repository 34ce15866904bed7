// Package stats 缺失值感知的小型统计工具
package stats

import (
	"math"
	"sort"
)

// MADScale 正态分布下 MAD 到标准差的换算系数
const MADScale = 1.4826

// Median 忽略 NaN 的中位数; 偶数个时取中间两数均值, 全部缺失时返回 NaN
// 不修改输入
func Median(xs []float64) float64 {
	buf := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			buf = append(buf, x)
		}
	}
	return medianInPlace(buf)
}

// ScaledMAD 返回中位数以及 1.4826 倍的中位数绝对偏差
func ScaledMAD(xs []float64) (median, smad float64) {
	median = Median(xs)
	if math.IsNaN(median) {
		return math.NaN(), math.NaN()
	}
	dev := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			dev = append(dev, math.Abs(x-median))
		}
	}
	return median, MADScale * medianInPlace(dev)
}

func medianInPlace(buf []float64) float64 {
	n := len(buf)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(buf)
	if n%2 == 1 {
		return buf[n/2]
	}
	return (buf[n/2-1] + buf[n/2]) / 2
}
