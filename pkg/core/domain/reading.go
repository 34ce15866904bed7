package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Record 代表批次中的一行 (只读视图)
// 供导出器、持久层和查询 API 使用; 数值中的 NaN 表示缺失, JSON 中写为 null
type Record struct {
	Timestamp time.Time
	Tag       string // 原始模式标签
	Mode      Mode   // 分类后的模式
	Values    map[Channel]float64
	Flags     map[Channel]bool
	Standards map[string]StandardPoint
}

// StandardPoint 某行上单个标准气通道的取值
type StandardPoint struct {
	Reference    float64
	Median       float64
	Interpolated float64
}

// Value 返回通道数值, 缺失时 ok 为 false
func (r Record) Value(ch Channel) (float64, bool) {
	v, ok := r.Values[ch]
	if !ok || IsMissing(v) {
		return 0, false
	}
	return v, true
}

// Row 构造第 i 行的视图
func (b *Batch) Row(i int) Record {
	r := Record{
		Timestamp: b.times[i],
		Tag:       b.tags[i],
		Mode:      b.modes[i],
		Values:    make(map[Channel]float64, len(b.values)),
		Flags:     make(map[Channel]bool, len(b.flags)),
	}
	for ch, col := range b.values {
		r.Values[ch] = col[i]
	}
	for ch, col := range b.flags {
		r.Flags[ch] = col[i]
	}
	if len(b.tracks) > 0 {
		r.Standards = make(map[string]StandardPoint, len(b.tracks))
		for id, t := range b.tracks {
			r.Standards[id] = StandardPoint{
				Reference:    at(t.Reference, i),
				Median:       at(t.Median, i),
				Interpolated: at(t.Interpolated, i),
			}
		}
	}
	return r
}

// Records 将整个批次展开为行视图
func (b *Batch) Records() []Record {
	out := make([]Record, b.Len())
	for i := range out {
		out[i] = b.Row(i)
	}
	return out
}

func at(col []float64, i int) float64 {
	if col == nil {
		return nanValue
	}
	return col[i]
}

// FCO2Rows 返回至少有一个 fCO2 结果 (现场或大气) 的行下标
func (b *Batch) FCO2Rows() []int {
	sst := b.values[ChannelFCO2WetSST]
	atm := b.values[ChannelFCO2WetAtm]
	var rows []int
	for i := range b.times {
		if (sst != nil && !IsMissing(sst[i])) || (atm != nil && !IsMissing(atm[i])) {
			rows = append(rows, i)
		}
	}
	return rows
}

// recordJSON Record 的 JSON 形式 (缺失值为 null)
type recordJSON struct {
	Timestamp time.Time                    `json:"timestamp"`
	Tag       string                       `json:"type"`
	Mode      Mode                         `json:"mode,omitempty"`
	Values    map[Channel]*float64         `json:"values"`
	Flags     map[Channel]bool             `json:"flags,omitempty"`
	Standards map[string]standardPointJSON `json:"standards,omitempty"`
}

type standardPointJSON struct {
	Reference    *float64 `json:"reference"`
	Median       *float64 `json:"median"`
	Interpolated *float64 `json:"interpolated"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Timestamp: r.Timestamp,
		Tag:       r.Tag,
		Mode:      r.Mode,
		Values:    make(map[Channel]*float64, len(r.Values)),
		Flags:     r.Flags,
	}
	for ch, v := range r.Values {
		out.Values[ch] = present(v)
	}
	if len(r.Standards) > 0 {
		out.Standards = make(map[string]standardPointJSON, len(r.Standards))
		for id, p := range r.Standards {
			out.Standards[id] = standardPointJSON{
				Reference:    present(p.Reference),
				Median:       present(p.Median),
				Interpolated: present(p.Interpolated),
			}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Record{
		Timestamp: in.Timestamp,
		Tag:       in.Tag,
		Mode:      in.Mode,
		Values:    make(map[Channel]float64, len(in.Values)),
		Flags:     in.Flags,
	}
	for ch, v := range in.Values {
		r.Values[ch] = orNaN(v)
	}
	if len(in.Standards) > 0 {
		r.Standards = make(map[string]StandardPoint, len(in.Standards))
		for id, p := range in.Standards {
			r.Standards[id] = StandardPoint{
				Reference:    orNaN(p.Reference),
				Median:       orNaN(p.Median),
				Interpolated: orNaN(p.Interpolated),
			}
		}
	}
	return nil
}

func present(v float64) *float64 {
	if IsMissing(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return nanValue
	}
	return *p
}
