package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// GoTimeLayout PC Date + PC Time 的时间格式
const GoTimeLayout = "02/01/06 15:04:05"

// MissingSentinel 旧格式文件中的缺失值标记
const MissingSentinel = -999

// goHeaderAliases 格式适配映射表: 各代 GO 日志的列名 → 规范列名
// 只在加载时使用一次, 核心只认识 domain.Channel
var goHeaderAliases = map[string]string{
	// GO139v2
	"Error":                "error",
	"PcDate":               "PC Date",
	"PcTime":               "PC Time",
	"EquTemp":              string(domain.ChannelEquTemp),
	"LI7810_CO2_ppm":       string(domain.ChannelCO2),
	"LI7810_CO2_ppm_avg":   string(domain.ChannelCO2Avg),
	"EquPress":             string(domain.ChannelEquPress),
	"EquH2OFlow":           string(domain.ChannelH2OFlow),
	"LicorFlow":            string(domain.ChannelLicorFlow),
	"VentFlow":             string(domain.ChannelVentFlow),
	"LicorPress":           string(domain.ChannelLicorPress),
	"LabPress":             string(domain.ChannelLabPress),
	"LI7810_CAVITY_P_kPa":  "cavity press",
	"LI7810_CO2_ppm_stdev": "CO2 std ppm",
	// 旧格式
	"CO2 um/m": string(domain.ChannelCO2),
	"H2O mm/m": "H2O ppt",
	"std val":  "CO2 std val",
	"Date":     "PC Date",
}

// GoLogLoader 实现 ports.BatchLoader 接口
// 专门处理 GO 分析仪的制表符分隔日志
type GoLogLoader struct {
	logger logrus.FieldLogger
}

// NewGoLogLoader 创建 GO 日志加载器实例
func NewGoLogLoader(logger logrus.FieldLogger) *GoLogLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GoLogLoader{logger: logger}
}

// Load 实现 ports.BatchLoader.Load
func (g *GoLogLoader) Load(ctx context.Context, r io.Reader) (*domain.Batch, *domain.IngestionResult, error) {
	acc := newGoAccumulator()
	result, err := g.read(ctx, r, acc)
	if err != nil {
		return nil, result, err
	}
	batch, err := acc.batch()
	return batch, result, err
}

// LoadFiles 读取多个日志文件并合并为一个批次 (跨文件去重, 按时间排序)
func (g *GoLogLoader) LoadFiles(ctx context.Context, paths ...string) (*domain.Batch, *domain.IngestionResult, error) {
	acc := newGoAccumulator()
	total := &domain.IngestionResult{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, total, fmt.Errorf("open go log: %w", err)
		}
		res, err := g.read(ctx, f, acc)
		f.Close()
		total.Merge(res)
		if err != nil {
			return nil, total, fmt.Errorf("read %s: %w", path, err)
		}
		g.logger.WithFields(logrus.Fields{
			"file":    path,
			"total":   res.Total,
			"success": res.Success,
			"skipped": res.Skipped,
			"failed":  res.Failed,
		}).Info("go log loaded")
	}
	batch, err := acc.batch()
	return batch, total, err
}

func (g *GoLogLoader) read(ctx context.Context, r io.Reader, acc *goAccumulator) (*domain.IngestionResult, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	// 允许变长字段 (截断的行)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	result := &domain.IngestionResult{}

	// 1. Read Header
	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read go log header: %w", err)
	}

	headerMap := make(map[string]int)
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if alias, ok := goHeaderAliases[name]; ok {
			name = alias
		}
		headerMap[name] = i
	}
	if err := validateGoHeaders(headerMap); err != nil {
		return nil, err
	}

	// 2. Read Records
	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		result.Total++
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("go log read error at line %d: %v", line, err))
			continue
		}

		row, skip, err := parseGoRecord(record, headerMap)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
		case skip || !acc.add(row):
			result.Skipped++
		default:
			result.Success++
		}
	}
	return result, nil
}

func validateGoHeaders(headerMap map[string]int) error {
	required := []string{"Type", "PC Date", "PC Time", string(domain.ChannelCO2)}
	for _, req := range required {
		if _, ok := headerMap[req]; !ok {
			return fmt.Errorf("missing required go log header: %s", req)
		}
	}
	return nil
}

type goRow struct {
	ts     time.Time
	tag    string
	values map[domain.Channel]float64
	key    string
}

// parseGoRecord 解析一行; skip 为 true 表示按规则丢弃 (X 类型、越长的 equ press)
func parseGoRecord(record []string, headerMap map[string]int) (goRow, bool, error) {
	get := func(col string) string {
		if idx, ok := headerMap[col]; ok && idx < len(record) {
			return strings.TrimSpace(strings.ReplaceAll(record[idx], ",", "."))
		}
		return ""
	}

	// 1. 类型: 含 X 的为错误读数
	tag := get("Type")
	if strings.Contains(tag, "X") {
		return goRow{}, true, nil
	}
	// 截断错位的行: equ press 字段过长
	if len(get(string(domain.ChannelEquPress))) > 7 {
		return goRow{}, true, nil
	}

	// 2. Timestamp
	tsStr := get("PC Date") + " " + get("PC Time")
	ts, err := time.Parse(GoTimeLayout, tsStr)
	if err != nil {
		return goRow{}, false, fmt.Errorf("invalid timestamp format: %s", tsStr)
	}

	// 3. Values
	row := goRow{ts: ts, tag: tag, values: make(map[domain.Channel]float64, len(domain.RawChannels))}
	var key strings.Builder
	key.WriteString(tag)
	key.WriteString(ts.Format(time.RFC3339))
	for _, ch := range domain.RawChannels {
		v := parseGoValue(get(string(ch)))
		if ch == domain.ChannelEquTemp && v == 0 {
			v = math.NaN()
		}
		row.values[ch] = v
		key.WriteString("\t")
		key.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	row.key = key.String()
	return row, false, nil
}

// parseGoValue 空字符串、无法解析的值与 -999 均视为缺失
func parseGoValue(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == MissingSentinel {
		return math.NaN()
	}
	return v
}

// goAccumulator 跨文件收集行并去重
type goAccumulator struct {
	seen   map[string]struct{}
	times  []time.Time
	tags   []string
	values map[domain.Channel][]float64
}

func newGoAccumulator() *goAccumulator {
	acc := &goAccumulator{
		seen:   make(map[string]struct{}),
		values: make(map[domain.Channel][]float64, len(domain.RawChannels)),
	}
	for _, ch := range domain.RawChannels {
		acc.values[ch] = nil
	}
	return acc
}

// add 返回 false 表示重复行
func (a *goAccumulator) add(row goRow) bool {
	if _, dup := a.seen[row.key]; dup {
		return false
	}
	a.seen[row.key] = struct{}{}
	a.times = append(a.times, row.ts)
	a.tags = append(a.tags, row.tag)
	for ch := range a.values {
		a.values[ch] = append(a.values[ch], row.values[ch])
	}
	return true
}

func (a *goAccumulator) batch() (*domain.Batch, error) {
	if len(a.times) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	return domain.NewBatch(a.times, a.tags, a.values)
}
