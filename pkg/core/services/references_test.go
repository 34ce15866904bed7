package services_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/services"
)

func TestResolveReferences(t *testing.T) {
	times := []time.Time{minute(0), minute(10), minute(20), minute(30)}
	b := standardBatch(t, times, []string{"STD2", "EQU", "STD2", "EQU"}, []float64{250, 400, 251, 400})

	table := domain.ReferenceTable{
		{StandardID: "2", CO2: 249.5, ValidFrom: minute(0), ValidTo: minute(15)},
		{StandardID: "2", CO2: 250.5, ValidFrom: minute(20)},
		{StandardID: "3", CO2: 400, ValidFrom: minute(0)}, // 批次中没有 STD3
	}
	out, err := services.ResolveReferences(b, table, minute(25))
	require.NoError(t, err)

	track, ok := out.Track("2")
	require.True(t, ok)
	assert.Equal(t, 249.5, track.Reference[0])
	assert.Equal(t, 249.5, track.Reference[1])
	assert.Equal(t, 250.5, track.Reference[2])
	assert.True(t, math.IsNaN(track.Reference[3]), "open entry bounded by now")

	_, ok = out.Track("3")
	assert.False(t, ok)
}

func TestUnusedReferences(t *testing.T) {
	times := []time.Time{minute(0), minute(1), minute(2)}
	b := standardBatch(t, times, []string{"STD2", "STD4", "EQU"}, []float64{250, 600, 400})
	table := domain.ReferenceTable{
		{StandardID: "3", CO2: 400, ValidFrom: minute(0)},
		{StandardID: "2", CO2: 250, ValidFrom: minute(0)},
		{StandardID: "1", CO2: 350, ValidFrom: minute(0)},
		{StandardID: "3", CO2: 401, ValidFrom: minute(1)},
	}
	assert.Equal(t, []string{"3", "1"}, services.UnusedReferences(b, table))
	assert.Empty(t, services.UnusedReferences(b, nil))
}
