package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// 固定列 (其后依次为数值列, 标记列, 标准气序列列)
const (
	ColumnTime = "time"
	ColumnTag  = "type"
	ColumnMode = "mode"
)

// FlagColumn 标记列在表中的列名
func FlagColumn(ch domain.Channel) string { return ch.String() + "_flag" }

// TrackColumn 标准气序列在表中的列名, e.g. "std2_interpolated"
func TrackColumn(id, series string) string { return "std" + id + "_" + series }

// ParquetExporter 完整结果表导出 (每次运行一个 Parquet 文件)
// 缺失数值写为 null, 便于下游工具区分
type ParquetExporter struct {
	dir    string
	prefix string
	logger logrus.FieldLogger
}

// NewParquetExporter 创建导出器
func NewParquetExporter(dir, prefix string, logger logrus.FieldLogger) *ParquetExporter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ParquetExporter{dir: dir, prefix: prefix, logger: logger}
}

// Export 写出完整结果表并返回文件路径
func (e *ParquetExporter) Export(ctx context.Context, batch *domain.Batch) (string, error) {
	if batch == nil || batch.Len() == 0 {
		return "", domain.ErrEmptyBatch
	}
	info, _ := domain.FromContext(ctx)
	prefix := e.prefix
	if info.Prefix != "" {
		prefix = info.Prefix
	}
	name := fmt.Sprintf("%s_full_%s_to_%s", prefix, batch.Start().Format("20060102"), batch.End().Format("20060102"))
	if info.RunID != "" {
		name += "_" + info.RunID
	}

	// 1. 构建 Arrow 记录
	rec, err := buildRecord(ctx, batch)
	if err != nil {
		return "", err
	}
	defer rec.Release()

	// 2. 写出 Parquet
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, name+".parquet")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create parquet file: %w", err)
	}
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(rec.Schema(), f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return "", fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return "", fmt.Errorf("write parquet: %w", err)
	}
	// FileWriter.Close 同时关闭底层文件
	if err := fw.Close(); err != nil {
		return "", fmt.Errorf("close parquet: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"path":    path,
		"rows":    rec.NumRows(),
		"columns": rec.NumCols(),
	}).Info("full table exported")
	return path, nil
}

// buildRecord 将批次转换为单个 Arrow 记录
func buildRecord(ctx context.Context, batch *domain.Batch) (arrow.Record, error) {
	channels := batch.Channels()
	flags := batch.FlagChannels()
	tracks := batch.TrackIDs()

	fields := []arrow.Field{
		{Name: ColumnTime, Type: &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}},
		{Name: ColumnTag, Type: arrow.BinaryTypes.String},
		{Name: ColumnMode, Type: arrow.BinaryTypes.String, Nullable: true},
	}
	for _, ch := range channels {
		fields = append(fields, arrow.Field{Name: ch.String(), Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	for _, ch := range flags {
		fields = append(fields, arrow.Field{Name: FlagColumn(ch), Type: arrow.FixedWidthTypes.Boolean})
	}
	for _, id := range tracks {
		for _, series := range []string{"reference", "median", "interpolated"} {
			fields = append(fields, arrow.Field{Name: TrackColumn(id, series), Type: arrow.PrimitiveTypes.Float64, Nullable: true})
		}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	n := batch.Len()
	ts := b.Field(0).(*array.TimestampBuilder)
	tags := b.Field(1).(*array.StringBuilder)
	modes := b.Field(2).(*array.StringBuilder)
	ts.Reserve(n)
	for i := 0; i < n; i++ {
		ts.Append(arrow.Timestamp(batch.Time(i).UnixMilli()))
		tags.Append(batch.Tag(i))
		if m := batch.Mode(i); m == domain.ModeUnknown {
			modes.AppendNull()
		} else {
			modes.Append(string(m))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	col := 3
	for _, ch := range channels {
		values, err := batch.Values(ch)
		if err != nil {
			return nil, err
		}
		appendFloats(b.Field(col).(*array.Float64Builder), values)
		col++
	}
	for _, ch := range flags {
		b.Field(col).(*array.BooleanBuilder).AppendValues(batch.Flags(ch), nil)
		col++
	}
	for _, id := range tracks {
		t, _ := batch.Track(id)
		for _, series := range [][]float64{t.Reference, t.Median, t.Interpolated} {
			if series == nil {
				series = domain.NaNs(n)
			}
			appendFloats(b.Field(col).(*array.Float64Builder), series)
			col++
		}
	}
	return b.NewRecord(), nil
}

func appendFloats(fb *array.Float64Builder, values []float64) {
	fb.Reserve(len(values))
	for _, v := range values {
		if domain.IsMissing(v) {
			fb.AppendNull()
			continue
		}
		fb.Append(v)
	}
}
