package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// DefaultPrefix 导出文件名前缀 (船名)
const DefaultPrefix = "Tavastland"

// fco2Columns 导出列: 首列为时间, 其余为通道
var fco2Columns = []domain.Channel{
	domain.ChannelLatitude,
	domain.ChannelLongitude,
	domain.ChannelSST,
	domain.ChannelSSS,
	domain.ChannelPCO2WetSST,
	domain.ChannelFCO2WetSST,
	domain.ChannelPCO2WetAtm,
	domain.ChannelFCO2WetAtm,
}

// TSVExporter fCO2 结果导出 (制表符分隔)
// 只导出至少有一个 fCO2 结果的行, 文件名带批次的日期范围
type TSVExporter struct {
	dir    string
	prefix string
	logger logrus.FieldLogger
}

// NewTSVExporter 创建导出器; prefix 为空时使用 DefaultPrefix
func NewTSVExporter(dir, prefix string, logger logrus.FieldLogger) *TSVExporter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TSVExporter{dir: dir, prefix: prefix, logger: logger}
}

// FileName 返回批次的导出文件名: <prefix>_fCO2_data_<yyyymmdd>_to_<yyyymmdd>.txt
func FileName(prefix string, start, end time.Time) string {
	return fmt.Sprintf("%s_fCO2_data_%s_to_%s.txt", prefix, start.Format("20060102"), end.Format("20060102"))
}

// Export 写出 fCO2 文件并返回其路径
func (e *TSVExporter) Export(ctx context.Context, batch *domain.Batch) (string, error) {
	if batch == nil || batch.Len() == 0 {
		return "", domain.ErrEmptyBatch
	}
	prefix := e.prefix
	if info, ok := domain.FromContext(ctx); ok && info.Prefix != "" {
		prefix = info.Prefix
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, FileName(prefix, batch.Start(), batch.End()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	header := make([]string, 0, len(fco2Columns)+1)
	header = append(header, "time series")
	for _, ch := range fco2Columns {
		header = append(header, ch.String())
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	rows := batch.FCO2Rows()
	for _, i := range rows {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line := make([]string, 0, len(header))
		line = append(line, batch.Time(i).Format(time.DateTime))
		for _, ch := range fco2Columns {
			line = append(line, formatValue(batch.Value(ch, i)))
		}
		if err := w.Write(line); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}

	e.logger.WithFields(logrus.Fields{"path": path, "rows": len(rows)}).Info("fCO2 data exported")
	return path, nil
}

// formatValue 缺失值写为空字段
func formatValue(v float64) string {
	if domain.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
