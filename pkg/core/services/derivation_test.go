package services_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/physics"
	"github.com/renjie/prism-co2/pkg/core/services"
)

func TestDerivation_Prepare(t *testing.T) {
	nan := math.NaN()
	before := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	b, err := domain.NewBatch(
		[]time.Time{before, before.Add(time.Minute), after},
		[]string{"EQU", "EQU", "EQU"},
		map[domain.Channel][]float64{
			domain.ChannelEquTemp:        {15, 15, 15},
			domain.ChannelSST:            {14.2, nan, 14},
			domain.ChannelQFFMeasured:    {1008, nan, 1008},
			domain.ChannelAtmPressure:    {1000, 1000, 1000},
			domain.ChannelAirTemperature: {10, 10, 10},
			domain.ChannelLatitude:       {57.5, 57.5, 57.5},
		},
	)
	require.NoError(t, err)

	out, err := services.NewDerivationChain(services.DefaultDerivationConfig(), nil).Prepare(b)
	require.NoError(t, err)

	delta, err := out.Values(domain.ChannelDeltaTemperature)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, delta[0], 1e-12)
	assert.True(t, math.IsNaN(delta[1]))
	assert.InDelta(t, 1.0, delta[2], 1e-12)

	qff, err := out.Values(domain.ChannelQFF)
	require.NoError(t, err)
	assert.Equal(t, 1008.0, qff[0], "measured QFF before 2023")
	assert.InDelta(t, 1003.2480181439547, qff[1], 1e-9, "measured value missing")
	assert.InDelta(t, 1003.2480181439547, qff[2], 1e-9, "computed QFF from 2023")
}

func TestDerivation_PrepareRequiresEquTemp(t *testing.T) {
	b, err := domain.NewBatch([]time.Time{t0}, []string{"EQU"}, nil)
	require.NoError(t, err)
	_, err = services.NewDerivationChain(services.DefaultDerivationConfig(), nil).Prepare(b)
	assert.ErrorIs(t, err, domain.ErrMissingChannel)
}

// derivationBatch 第 0 行 EQU, 第 1 行 ATM; 两行的压力均为 1 atm
func derivationBatch(t *testing.T, lab float64) *domain.Batch {
	t.Helper()
	nan := math.NaN()
	b, err := domain.NewBatch(
		[]time.Time{t0, t0.Add(time.Minute)},
		[]string{"EQU", "ATM"},
		map[domain.Channel][]float64{
			domain.ChannelEquTemp:    {20, 20},
			domain.ChannelSST:        {18, 20},
			domain.ChannelSSS:        {35, 35},
			domain.ChannelLatitude:   {57.5, 57.5},
			domain.ChannelLabPress:   {lab, nan},
			domain.ChannelLicorPress: {nan, nan},
			domain.ChannelEquPress:   {0, 0},
			domain.ChannelH2OFlow:    {3, 3},
			domain.ChannelLicorFlow:  {100, 100},
			domain.ChannelQFF:        {physics.StandardAtmosphere, physics.StandardAtmosphere},
			domain.ChannelXCO2Cal:    {400, 400},
		},
	)
	require.NoError(t, err)
	return b
}

func TestDerivation_HandComputed(t *testing.T) {
	b := derivationBatch(t, physics.StandardAtmosphere)
	out, err := services.NewDerivationChain(services.DefaultDerivationConfig(), nil).Derive(b)
	require.NoError(t, err)

	// EQU: T = 20, S = 35, P = 1 atm, xCO2 = 400, SST = 18
	assert.InDelta(t, 1.0, out.Value(domain.ChannelPEqu, 0), 1e-12)
	assert.InDelta(t, 400.0, out.Value(domain.ChannelPCO2Dry, 0), 1e-9)
	assert.InDelta(t, 390.9509667142331, out.Value(domain.ChannelPCO2Wet, 0), 1e-8)
	assert.InDelta(t, 389.62442356052964, out.Value(domain.ChannelFCO2Wet, 0), 1e-6)
	assert.InDelta(t, 359.2369315631506, out.Value(domain.ChannelPCO2WetSST, 0), 1e-6)
	assert.InDelta(t, 358.01799790472364, out.Value(domain.ChannelFCO2WetSST, 0), 1e-6)
	assert.True(t, math.IsNaN(out.Value(domain.ChannelFCO2WetAtm, 0)))
	assert.False(t, out.Flag(domain.ChannelPEquFromQFF, 0))

	// ATM: 水汽压与逸度使用 SST = 20
	assert.InDelta(t, 1.0, out.Value(domain.ChannelPAtmSea, 1), 1e-12)
	assert.InDelta(t, 390.9509667142331, out.Value(domain.ChannelPCO2WetAtm, 1), 1e-8)
	assert.InDelta(t, 389.62442356052964, out.Value(domain.ChannelFCO2WetAtm, 1), 1e-6)
	assert.True(t, math.IsNaN(out.Value(domain.ChannelFCO2WetSST, 1)))

	assert.Equal(t, []int{0, 1}, out.FCO2Rows())
}

func TestDerivation_PressureFallsBackToQFF(t *testing.T) {
	b := derivationBatch(t, math.NaN())
	out, err := services.NewDerivationChain(services.DefaultDerivationConfig(), nil).Derive(b)
	require.NoError(t, err)

	assert.True(t, out.Flag(domain.ChannelPEquFromQFF, 0))
	assert.InDelta(t, 1.0, out.Value(domain.ChannelPEqu, 0), 1e-12)
	assert.InDelta(t, 389.62442356052964, out.Value(domain.ChannelFCO2Wet, 0), 1e-6)
}

func TestDerivation_Gates(t *testing.T) {
	b := derivationBatch(t, physics.StandardAtmosphere)
	b, _ = b.AndFlag(domain.ChannelXCO2Cal, []bool{true, false})
	b, _ = b.AndFlag(domain.ChannelSSS, []bool{false, true})

	out, err := services.NewDerivationChain(services.DefaultDerivationConfig(), nil).Derive(b)
	require.NoError(t, err)

	// EQU: 干 pCO2 不受盐度门限影响, 湿值与现场值被抑制
	assert.InDelta(t, 400.0, out.Value(domain.ChannelPCO2Dry, 0), 1e-9)
	assert.True(t, math.IsNaN(out.Value(domain.ChannelPCO2Wet, 0)))
	assert.True(t, math.IsNaN(out.Value(domain.ChannelFCO2WetSST, 0)))

	// ATM: xco2_cal 无效时不产生任何派生值
	assert.True(t, math.IsNaN(out.Value(domain.ChannelPCO2Dry, 1)))
	assert.True(t, math.IsNaN(out.Value(domain.ChannelFCO2WetAtm, 1)))
	assert.Empty(t, out.FCO2Rows())
}

func TestDerivation_RequiresCalibration(t *testing.T) {
	b, err := domain.NewBatch([]time.Time{t0}, []string{"EQU"}, map[domain.Channel][]float64{domain.ChannelEquTemp: {20}})
	require.NoError(t, err)
	_, err = services.NewDerivationChain(services.DefaultDerivationConfig(), nil).Derive(b)
	assert.ErrorIs(t, err, domain.ErrMissingChannel)
}
