package export_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/adapters/export"
	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/logging"
)

var start = time.Date(2024, 5, 1, 23, 58, 0, 0, time.UTC)

// resultBatch 三行: EQU 有现场结果, 未知模式无结果, ATM 有大气结果
func resultBatch(t *testing.T) *domain.Batch {
	t.Helper()
	nan := math.NaN()
	b, err := domain.NewBatch(
		[]time.Time{start, start.Add(time.Minute), start.Add(2 * time.Minute)},
		[]string{"EQU", "FOO", "ATM"},
		map[domain.Channel][]float64{
			domain.ChannelLatitude:   {57.5, 57.6, 57.7},
			domain.ChannelLongitude:  {11.5, 11.6, 11.7},
			domain.ChannelSST:        {14.5, nan, 14.7},
			domain.ChannelSSS:        {30, 30, 30},
			domain.ChannelPCO2WetSST: {359.25, nan, nan},
			domain.ChannelFCO2WetSST: {358, nan, nan},
			domain.ChannelPCO2WetAtm: {nan, nan, 410.5},
			domain.ChannelFCO2WetAtm: {nan, nan, 409},
		})
	require.NoError(t, err)
	b, _ = b.AndFlag(domain.ChannelXCO2Cal, []bool{true, false, true})
	b, err = b.WithTrack("2", domain.StandardTrack{Reference: []float64{250, 250, 250}})
	require.NoError(t, err)
	return b
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Tavastland_fCO2_data_20240501_to_20240502.txt",
		export.FileName(export.DefaultPrefix, start, start.Add(2*time.Minute)))
}

func TestTSVExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := export.NewTSVExporter(dir, "", logging.Discard())

	path, err := e.Export(context.Background(), resultBatch(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Tavastland_fCO2_data_20240501_to_20240502.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time series\tLatitude\tLongitude\tSST\tSSS\tpco2_wet_sst\tfco2_wet_sst\tpco2_wet_atm\tfco2_wet_atm", lines[0])
	assert.Equal(t, "2024-05-01 23:58:00\t57.5\t11.5\t14.5\t30\t359.25\t358\t\t", lines[1])
	assert.Equal(t, "2024-05-02 00:00:00\t57.7\t11.7\t14.7\t30\t\t\t410.5\t409", lines[2])
}

func TestTSVExporter_PrefixFromContext(t *testing.T) {
	dir := t.TempDir()
	ctx := domain.NewContext(context.Background(), domain.RunInfo{Prefix: "Finnmaid"})
	path, err := export.NewTSVExporter(dir, "Tavastland", nil).Export(ctx, resultBatch(t))
	require.NoError(t, err)
	assert.Equal(t, "Finnmaid_fCO2_data_20240501_to_20240502.txt", filepath.Base(path))

	_, err = export.NewTSVExporter(dir, "", nil).Export(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
}

func readTable(t *testing.T, path string) arrow.Table {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	pf, err := file.NewParquetReader(f)
	require.NoError(t, err)
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, nil)
	require.NoError(t, err)
	tbl, err := reader.ReadTable(context.Background())
	require.NoError(t, err)
	t.Cleanup(tbl.Release)
	return tbl
}

func column(t *testing.T, tbl arrow.Table, name string) arrow.Array {
	t.Helper()
	idx := tbl.Schema().FieldIndices(name)
	require.Len(t, idx, 1, name)
	chunks := tbl.Column(idx[0]).Data().Chunks()
	require.Len(t, chunks, 1)
	return chunks[0]
}

func TestParquetExporter_Export(t *testing.T) {
	dir := t.TempDir()
	ctx := domain.NewContext(context.Background(), domain.RunInfo{RunID: "r1"})
	path, err := export.NewParquetExporter(dir, "", logging.Discard()).Export(ctx, resultBatch(t))
	require.NoError(t, err)
	assert.Equal(t, "Tavastland_full_20240501_to_20240502_r1.parquet", filepath.Base(path))

	tbl := readTable(t, path)
	require.EqualValues(t, 3, tbl.NumRows())
	// time, type, mode, 8 channels, 1 flag, 3 track series
	assert.EqualValues(t, 15, tbl.NumCols())

	ts := column(t, tbl, export.ColumnTime).(*array.Timestamp)
	assert.Equal(t, arrow.Timestamp(start.UnixMilli()), ts.Value(0))

	tags := column(t, tbl, export.ColumnTag).(*array.String)
	assert.Equal(t, "FOO", tags.Value(1))

	modes := column(t, tbl, export.ColumnMode).(*array.String)
	assert.Equal(t, "equ", modes.Value(0))
	assert.True(t, modes.IsNull(1))

	fco2 := column(t, tbl, domain.ChannelFCO2WetSST.String()).(*array.Float64)
	assert.Equal(t, 358.0, fco2.Value(0))
	assert.True(t, fco2.IsNull(1))

	flags := column(t, tbl, export.FlagColumn(domain.ChannelXCO2Cal)).(*array.Boolean)
	assert.True(t, flags.Value(0))
	assert.False(t, flags.Value(1))

	ref := column(t, tbl, export.TrackColumn("2", "reference")).(*array.Float64)
	assert.Equal(t, 250.0, ref.Value(2))
	median := column(t, tbl, export.TrackColumn("2", "median")).(*array.Float64)
	assert.Equal(t, 3, median.NullN())
}
