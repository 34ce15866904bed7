package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/renjie/prism-co2/pkg/core/stats"
)

func TestMedian(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, 2.0, stats.Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, stats.Median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 2.0, stats.Median([]float64{nan, 2, nan}))
	assert.True(t, math.IsNaN(stats.Median(nil)))
	assert.True(t, math.IsNaN(stats.Median([]float64{nan})))

	in := []float64{3, 1, 2}
	stats.Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestScaledMAD(t *testing.T) {
	median, smad := stats.ScaledMAD([]float64{1, 2, 3, 4, 100})
	assert.Equal(t, 3.0, median)
	// |x-3| = 2,1,0,1,97 → MAD 1
	assert.InDelta(t, stats.MADScale, smad, 1e-12)

	median, smad = stats.ScaledMAD([]float64{math.NaN()})
	assert.True(t, math.IsNaN(median))
	assert.True(t, math.IsNaN(smad))
}
