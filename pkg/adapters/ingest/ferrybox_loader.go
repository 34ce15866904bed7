package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// FerryboxTimeLayout ferrybox 时间列格式
const FerryboxTimeLayout = "20060102150405"

// ferryboxCode 参数代码与对应 QC 代码
type ferryboxCode struct {
	value string
	qc    string
}

// ferryboxChannels 参数代码映射表
var ferryboxChannels = map[domain.Channel]ferryboxCode{
	domain.ChannelLatitude:       {"8002", "88002"},
	domain.ChannelLongitude:      {"8003", "88003"},
	domain.ChannelSST:            {"8179", "88179"},
	domain.ChannelSSS:            {"8181", "88181"},
	domain.ChannelAirTemperature: {"72", "80072"},
	domain.ChannelAtmPressure:    {"70", "80070"},
	domain.ChannelQFFMeasured:    {"8032", "88032"},
}

const (
	waterFlowQC   = "88172"
	timeCode      = "38003"
	timeCodeAlt   = "38055"
	maxGoodQCCode = 3 // QC 代码 < 3 为有效
)

// FerryboxLoader 实现 ports.CompanionLoader 接口
type FerryboxLoader struct {
	logger logrus.FieldLogger
}

// NewFerryboxLoader 创建 ferrybox 加载器实例
func NewFerryboxLoader(logger logrus.FieldLogger) *FerryboxLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FerryboxLoader{logger: logger}
}

type fbRow struct {
	ts     time.Time
	values map[domain.Channel]float64
	flags  map[domain.Channel]bool
	key    string
}

// LoadCompanion 实现 ports.CompanionLoader.LoadCompanion
func (f *FerryboxLoader) LoadCompanion(ctx context.Context, r io.Reader) (*domain.CompanionSeries, *domain.IngestionResult, error) {
	seen := make(map[string]struct{})
	var rows []fbRow
	result, err := f.read(ctx, r, seen, &rows)
	if err != nil {
		return nil, result, err
	}
	return buildSeries(rows), result, nil
}

// LoadFiles 读取多个 ferrybox 文件 (跨文件去重, 按时间排序)
func (f *FerryboxLoader) LoadFiles(ctx context.Context, paths ...string) (*domain.CompanionSeries, *domain.IngestionResult, error) {
	seen := make(map[string]struct{})
	var rows []fbRow
	total := &domain.IngestionResult{}
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, total, fmt.Errorf("open ferrybox file: %w", err)
		}
		res, err := f.read(ctx, file, seen, &rows)
		file.Close()
		total.Merge(res)
		if err != nil {
			return nil, total, fmt.Errorf("read %s: %w", path, err)
		}
		f.logger.WithFields(logrus.Fields{
			"file":    path,
			"total":   res.Total,
			"success": res.Success,
			"skipped": res.Skipped,
		}).Info("ferrybox file loaded")
	}
	return buildSeries(rows), total, nil
}

func (f *FerryboxLoader) read(ctx context.Context, r io.Reader, seen map[string]struct{}, rows *[]fbRow) (*domain.IngestionResult, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	result := &domain.IngestionResult{}
	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read ferrybox header: %w", err)
	}
	headerMap := make(map[string]int)
	for i, h := range headers {
		headerMap[strings.TrimSpace(h)] = i
	}
	tsCol := timeCode
	if _, ok := headerMap[tsCol]; !ok {
		tsCol = timeCodeAlt
	}
	if _, ok := headerMap[tsCol]; !ok {
		return nil, fmt.Errorf("missing ferrybox time column %s or %s", timeCode, timeCodeAlt)
	}

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
			result.Errors = append(result.Errors, fmt.Sprintf("ferrybox read error at line %d: %v", line, err))
			continue
		}
		get := func(col string) string {
			if idx, ok := headerMap[col]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}

		ts, err := time.Parse(FerryboxTimeLayout, get(tsCol))
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid timestamp format: %s", line, get(tsCol)))
			continue
		}

		// 水流 QC 不在 [0, 3) 的行整体丢弃
		if qc := parseFerryboxValue(get(waterFlowQC)); math.IsNaN(qc) || qc < 0 || qc >= maxGoodQCCode {
			result.Skipped++
			continue
		}

		row := fbRow{
			ts:     ts,
			values: make(map[domain.Channel]float64, len(ferryboxChannels)),
			flags:  make(map[domain.Channel]bool, len(ferryboxChannels)),
		}
		var key strings.Builder
		key.WriteString(ts.Format(time.RFC3339))
		for ch, code := range ferryboxChannels {
			v := parseFerryboxValue(get(code.value))
			qc := parseFerryboxValue(get(code.qc))
			row.values[ch] = v
			// 缺失的 QC 代码比较结果为 false
			row.flags[ch] = qc < maxGoodQCCode
		}
		for _, ch := range domain.CompanionChannels {
			fmt.Fprintf(&key, "\t%g/%t", row.values[ch], row.flags[ch])
		}
		row.key = key.String()
		if _, dup := seen[row.key]; dup {
			result.Skipped++
			continue
		}
		seen[row.key] = struct{}{}
		*rows = append(*rows, row)
		result.Success++
	}
	return result, nil
}

// parseFerryboxValue 空字符串与 -999 视为缺失
func parseFerryboxValue(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || v == MissingSentinel {
		return math.NaN()
	}
	return v
}

func buildSeries(rows []fbRow) *domain.CompanionSeries {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })
	s := &domain.CompanionSeries{
		Times:  make([]time.Time, len(rows)),
		Values: make(map[domain.Channel][]float64, len(ferryboxChannels)),
		Flags:  make(map[domain.Channel][]bool, len(ferryboxChannels)),
	}
	for ch := range ferryboxChannels {
		s.Values[ch] = make([]float64, len(rows))
		s.Flags[ch] = make([]bool, len(rows))
	}
	for i, r := range rows {
		s.Times[i] = r.ts
		for ch := range ferryboxChannels {
			s.Values[ch][i] = r.values[ch]
			s.Flags[ch][i] = r.flags[ch]
		}
	}
	return s
}
