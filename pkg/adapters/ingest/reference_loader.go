package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// referenceDocument 参考表文件结构
//
//	standards:
//	  - channel: "2"
//	    co2: 401.23
//	    start: "2023-01-01 00:00:00"
//	    end: "2024-03-01 12:00:00"   # 可省略, 表示至今有效
type referenceDocument struct {
	Standards []referenceEntry `yaml:"standards"`
}

type referenceEntry struct {
	Channel string  `yaml:"channel"`
	CO2     float64 `yaml:"co2"`
	Start   string  `yaml:"start"`
	End     string  `yaml:"end"`
}

var referenceTimeLayouts = []string{time.DateTime, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly}

// YAMLReferenceLoader 实现 ports.ReferenceLoader 接口
// JSON 是 YAML 的子集, 同样可以读取 JSON 格式的参考表
type YAMLReferenceLoader struct{}

// NewReferenceLoader 创建参考表加载器
func NewReferenceLoader() *YAMLReferenceLoader { return &YAMLReferenceLoader{} }

// LoadReferences 实现 ports.ReferenceLoader.LoadReferences
func (l *YAMLReferenceLoader) LoadReferences(_ context.Context, r io.Reader) (domain.ReferenceTable, error) {
	var doc referenceDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode reference table: %w", err)
	}

	table := make(domain.ReferenceTable, 0, len(doc.Standards))
	for i, e := range doc.Standards {
		id := strings.TrimPrefix(strings.TrimSpace(e.Channel), "STD")
		if id == "" {
			return nil, fmt.Errorf("reference entry %d: channel is empty", i)
		}
		start, err := parseReferenceTime(e.Start)
		if err != nil {
			return nil, fmt.Errorf("reference entry %d: start: %w", i, err)
		}
		entry := domain.ReferenceEntry{StandardID: id, CO2: e.CO2, ValidFrom: start}
		if strings.TrimSpace(e.End) != "" {
			if entry.ValidTo, err = parseReferenceTime(e.End); err != nil {
				return nil, fmt.Errorf("reference entry %d: end: %w", i, err)
			}
			if entry.ValidTo.Before(entry.ValidFrom) {
				return nil, fmt.Errorf("reference entry %d: end before start", i)
			}
		}
		table = append(table, entry)
	}
	return table, nil
}

// LoadFile 从文件读取参考表
func (l *YAMLReferenceLoader) LoadFile(ctx context.Context, path string) (domain.ReferenceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference table: %w", err)
	}
	defer f.Close()
	return l.LoadReferences(ctx, f)
}

func parseReferenceTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range referenceTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
