package ingest_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/adapters/ingest"
	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/logging"
)

func TestJoiner_Join(t *testing.T) {
	times := []time.Time{may1, may1.Add(time.Minute), may1.Add(10 * time.Minute)}
	b, err := domain.NewBatch(times, []string{"EQU", "EQU", "EQU"}, map[domain.Channel][]float64{
		domain.ChannelCO2: {400, 401, 402},
	})
	require.NoError(t, err)

	series := &domain.CompanionSeries{
		Times: []time.Time{may1.Add(20 * time.Second), may1.Add(70 * time.Second)},
		Values: map[domain.Channel][]float64{
			domain.ChannelSST: {14.5, 14.6},
		},
		Flags: map[domain.Channel][]bool{
			domain.ChannelSST: {true, false},
		},
	}

	joined, err := ingest.NewJoiner(0, logging.Discard()).Join(b, series)
	require.NoError(t, err)

	assert.Equal(t, 14.5, joined.Value(domain.ChannelSST, 0))
	assert.True(t, joined.Flag(domain.ChannelSST, 0))
	assert.Equal(t, 14.6, joined.Value(domain.ChannelSST, 1))
	assert.False(t, joined.Flag(domain.ChannelSST, 1))

	// 超出容差
	assert.True(t, math.IsNaN(joined.Value(domain.ChannelSST, 2)))
	assert.False(t, joined.Flag(domain.ChannelSST, 2))

	// 序列中没有的通道
	for _, ch := range domain.CompanionChannels {
		assert.True(t, joined.HasChannel(ch), ch)
	}
	assert.True(t, math.IsNaN(joined.Value(domain.ChannelSSS, 0)))
	assert.False(t, joined.Flag(domain.ChannelSSS, 0))

	// 原批次不变
	assert.False(t, b.HasChannel(domain.ChannelSST))
}

func TestJoiner_NilSeries(t *testing.T) {
	b, err := domain.NewBatch([]time.Time{may1}, []string{"ATM"}, nil)
	require.NoError(t, err)

	joined, err := ingest.NewJoiner(time.Second, nil).Join(b, nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(joined.Value(domain.ChannelLatitude, 0)))
	assert.False(t, joined.Flag(domain.ChannelLatitude, 0))
}
