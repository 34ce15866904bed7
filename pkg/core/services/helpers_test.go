package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func minute(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

// 仪器响应: response = gain·true + offset
const (
	gain   = 1.01
	offset = 2.0
)

var scenarioRefs = map[string]float64{"2": 250, "3": 400, "4": 600}

// scenario 一天的分钟级记录: 每 6 小时一次标准气循环 (STD2, STD3, STD4 各 5 分钟, 末尾再加一次收尾循环),
// 随后 30 分钟 ATM, 其余为 EQU. truth 为每行的真实 xCO2.
type scenario struct {
	batch *domain.Batch
	truth []float64
	table domain.ReferenceTable
}

func newScenario(t *testing.T) scenario {
	t.Helper()
	const n = 24*60 + 15

	times := make([]time.Time, n)
	tags := make([]string, n)
	truth := make([]float64, n)
	cols := map[domain.Channel][]float64{}
	for _, ch := range domain.RawChannels {
		cols[ch] = make([]float64, n)
	}
	for _, ch := range domain.CompanionChannels {
		cols[ch] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		times[i] = minute(i)
		wiggle := 0.01 * float64(i%13)
		m := i % 360
		switch {
		case m < 5:
			tags[i], truth[i] = "STD2", scenarioRefs["2"]
		case m < 10:
			tags[i], truth[i] = "STD3", scenarioRefs["3"]
		case m < 15:
			tags[i], truth[i] = "STD4", scenarioRefs["4"]
		case m < 45:
			tags[i], truth[i] = "ATM", 420+0.1*float64(i%11)
		default:
			tags[i], truth[i] = "EQU", 400+0.1*float64(i%13)
		}
		resp := gain*truth[i] + offset

		cols[domain.ChannelCO2][i] = resp
		cols[domain.ChannelCO2Avg][i] = resp
		cols[domain.ChannelEquTemp][i] = 15 + wiggle
		cols[domain.ChannelLicorPress][i] = 1010 + wiggle
		cols[domain.ChannelLabPress][i] = 1012 + wiggle
		cols[domain.ChannelEquPress][i] = 0.1 + wiggle
		cols[domain.ChannelH2OFlow][i] = 3
		cols[domain.ChannelLicorFlow][i] = 100
		cols[domain.ChannelVentFlow][i] = 10

		cols[domain.ChannelSST][i] = 14.5 + wiggle
		cols[domain.ChannelSSS][i] = 30
		cols[domain.ChannelAirTemperature][i] = 12
		cols[domain.ChannelAtmPressure][i] = 1010
		cols[domain.ChannelQFFMeasured][i] = 1015
		cols[domain.ChannelLatitude][i] = 57.5
		cols[domain.ChannelLongitude][i] = 11.5
	}

	batch, err := domain.NewBatch(times, tags, cols)
	require.NoError(t, err)

	var table domain.ReferenceTable
	for _, id := range []string{"2", "3", "4"} {
		table = append(table, domain.ReferenceEntry{StandardID: id, CO2: scenarioRefs[id], ValidFrom: t0.Add(-24 * time.Hour)})
	}
	return scenario{batch: batch, truth: truth, table: table}
}

// standardBatch 单通道标准气批次: tags 与 co2 按分钟排列
func standardBatch(t *testing.T, times []time.Time, tags []string, co2 []float64) *domain.Batch {
	t.Helper()
	b, err := domain.NewBatch(times, tags, map[domain.Channel][]float64{domain.ChannelCO2: co2})
	require.NoError(t, err)
	return b
}
