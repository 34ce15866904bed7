package services_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/services"
)

// twoRuns STD2 运行段位于 [0, 5) 与 [gap, gap+5) 分钟, 中间为 EQU (每 10 分钟一条)
func twoRuns(t *testing.T, gap time.Duration, first, second float64) *domain.Batch {
	t.Helper()
	var (
		times []time.Time
		tags  []string
		co2   []float64
	)
	add := func(ts time.Time, tag string, v float64) {
		times = append(times, ts)
		tags = append(tags, tag)
		co2 = append(co2, v)
	}
	for i := 0; i < 5; i++ {
		add(minute(i), "STD2", first)
	}
	for ts := minute(14); ts.Before(t0.Add(gap)); ts = ts.Add(10 * time.Minute) {
		add(ts, "EQU", 400)
	}
	for i := 0; i < 5; i++ {
		add(t0.Add(gap).Add(time.Duration(i)*time.Minute), "STD2", second)
	}
	add(t0.Add(gap).Add(10*time.Minute), "EQU", 400)
	return standardBatch(t, times, tags, co2)
}

func withReference(t *testing.T, b *domain.Batch, id string, before, after float64, switchAt time.Time) *domain.Batch {
	t.Helper()
	ref := make([]float64, b.Len())
	for i := range ref {
		ref[i] = before
		if !b.Time(i).Before(switchAt) {
			ref[i] = after
		}
	}
	out, err := b.WithTrack(id, domain.StandardTrack{Reference: ref})
	require.NoError(t, err)
	return out
}

func TestInterpolator_SameReferenceHoldsAcrossGap(t *testing.T) {
	b := twoRuns(t, 3*time.Hour, 251, 253)
	b = withReference(t, b, "2", 250, 250, t0)

	out, runs, err := services.NewStandardInterpolator().Interpolate(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, runs["2"], 2)
	assert.Equal(t, 251.0, runs["2"][0].Median)
	assert.Equal(t, 253.0, runs["2"][1].Median)

	track, ok := out.Track("2")
	require.True(t, ok)
	for i := 0; i < out.Len()-1; i++ {
		assert.False(t, math.IsNaN(track.Interpolated[i]), "row %d must be continuous", i)
		if out.Mode(i) == domain.ModeEqu && out.Time(i).Before(t0.Add(3*time.Hour)) {
			assert.Equal(t, 251.0, track.Interpolated[i], "row %d", i)
			assert.True(t, math.IsNaN(track.Median[i]))
		}
	}
}

func TestInterpolator_ReferenceChangeInterpolatesLinearly(t *testing.T) {
	b := twoRuns(t, 2*time.Hour, 250, 262)
	b = withReference(t, b, "2", 250, 260, t0.Add(time.Hour))

	out, _, err := services.NewStandardInterpolator().Interpolate(context.Background(), b)
	require.NoError(t, err)
	track, _ := out.Track("2")

	// 首段末行 4 min, 次段首行 120 min
	span := (120 - 4) * time.Minute
	for i := 0; i < out.Len(); i++ {
		ts := out.Time(i)
		if out.Mode(i) != domain.ModeEqu || !ts.Before(t0.Add(2*time.Hour)) {
			continue
		}
		frac := ts.Sub(minute(4)).Seconds() / span.Seconds()
		assert.InDelta(t, 250+12*frac, track.Interpolated[i], 1e-9, "row %d", i)
	}
}

func TestInterpolator_LongGapHoldsThenMissing(t *testing.T) {
	b := twoRuns(t, 20*time.Hour, 251, 253)
	b = withReference(t, b, "2", 250, 260, t0.Add(10*time.Hour))

	out, _, err := services.NewStandardInterpolator(services.WithMaxBridge(12*time.Hour)).Interpolate(context.Background(), b)
	require.NoError(t, err)
	track, _ := out.Track("2")

	deadline := minute(4).Add(12 * time.Hour)
	for i := 0; i < out.Len(); i++ {
		ts := out.Time(i)
		if out.Mode(i) != domain.ModeEqu || !ts.Before(t0.Add(20*time.Hour)) {
			continue
		}
		if ts.After(deadline) {
			assert.True(t, math.IsNaN(track.Interpolated[i]), "row %d beyond the hold", i)
		} else {
			assert.Equal(t, 251.0, track.Interpolated[i], "row %d", i)
		}
	}
	// 最后一个运行段之后没有桥接
	assert.True(t, math.IsNaN(track.Interpolated[out.Len()-1]))
}

func TestInterpolator_UndefinedOutsideBridges(t *testing.T) {
	times := []time.Time{minute(0), minute(1), minute(2), minute(3), minute(4), minute(5), minute(6), minute(7), minute(8)}
	tags := []string{"EQU", "STD2", "STD2", "STD2", "EQU", "STD2", "STD2", "STD2", "EQU"}
	co2 := []float64{400, 250, 251, 251, 400, 252, 253, 253, 400}
	b := standardBatch(t, times, tags, co2)
	b = withReference(t, b, "2", 250, 250, t0)

	out, runs, err := services.NewStandardInterpolator().Interpolate(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, runs["2"], 2)
	track, _ := out.Track("2")

	assert.True(t, math.IsNaN(track.Interpolated[0]), "before the first run")
	assert.Equal(t, 251.0, track.Interpolated[4], "bridged between runs")
	assert.Equal(t, 253.0, track.Interpolated[7])
	assert.True(t, math.IsNaN(track.Interpolated[8]), "after the last run")
}

func TestInterpolator_MedianExcludesFlushSample(t *testing.T) {
	times := []time.Time{minute(0), minute(1), minute(2), minute(3), minute(4), minute(5), minute(6)}
	tags := []string{"STD3", "STD3", "STD3", "STD3", "EQU", "STD4", "EQU"}
	co2 := []float64{999, 400, 401, 405, 410, 600, 410}
	b := standardBatch(t, times, tags, co2)

	runs := services.FindRuns(b, "3", co2)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Start)
	assert.Equal(t, 4, runs[0].End)
	assert.Equal(t, 4, runs[0].Len())
	assert.Equal(t, 401.0, runs[0].Median)

	// 单行运行段没有可用样本
	single := services.FindRuns(b, "4", co2)
	require.Len(t, single, 1)
	assert.True(t, math.IsNaN(single[0].Median))
}

func TestInterpolator_PrefersCO2Average(t *testing.T) {
	b, err := domain.NewBatch(
		[]time.Time{minute(0), minute(1), minute(2)},
		[]string{"STD2", "STD2", "STD2"},
		map[domain.Channel][]float64{
			domain.ChannelCO2:    {250, 250, 250},
			domain.ChannelCO2Avg: {math.NaN(), 252, math.NaN()},
		},
	)
	require.NoError(t, err)

	_, runs, err := services.NewStandardInterpolator().Interpolate(context.Background(), b)
	require.NoError(t, err)
	// 行 1 取 CO2 avg, 行 2 退回 CO2 ppm
	assert.Equal(t, 251.0, runs["2"][0].Median)
}

func TestInterpolator_MissingStandard(t *testing.T) {
	b := twoRuns(t, time.Hour, 250, 250)
	_, _, err := services.NewStandardInterpolator(services.WithStandards("2", "5")).Interpolate(context.Background(), b)

	var missing *domain.MissingChannelError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "std5", missing.Channel)
}

func TestInterpolator_Cancelled(t *testing.T) {
	b := twoRuns(t, time.Hour, 250, 250)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := services.NewStandardInterpolator().Interpolate(ctx, b)
	assert.ErrorIs(t, err, context.Canceled)
}
