package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// StandardTrack 单个标准气通道的三条派生序列
type StandardTrack struct {
	Reference    []float64 // 认证参考浓度 (ReferenceTable 赋值)
	Median       []float64 // 所在运行段的中位数 (仅运行段内有值)
	Interpolated []float64 // 插值后的仪器响应曲线
}

// Batch 代表一次运行的完整记录表 (列式存储)
// 不变量:
//  1. 行按时间戳非递减排列, 排序后顺序不再改变
//  2. 各阶段不修改已提交的列, 每次更新都返回新的 *Batch (Copy-on-Write)
//  3. 标记列只能通过 AndFlag 修改, 因此标记只能由 true 变为 false
type Batch struct {
	times  []time.Time
	tags   []string
	modes  []Mode
	values map[Channel][]float64
	flags  map[Channel][]bool
	tracks map[string]StandardTrack
}

// NewBatch 创建批次并按时间戳稳定排序
// values 中每列长度必须与 times 一致; 缺失值用 NaN 表示
func NewBatch(times []time.Time, tags []string, values map[Channel][]float64) (*Batch, error) {
	n := len(times)
	if n == 0 {
		return nil, ErrEmptyBatch
	}
	if len(tags) != n {
		return nil, fmt.Errorf("tag column has %d rows, want %d", len(tags), n)
	}
	for ch, col := range values {
		if len(col) != n {
			return nil, fmt.Errorf("channel %q has %d rows, want %d", ch, len(col), n)
		}
	}

	// 1. 计算排序置换 (稳定排序保证相同时间戳保持输入顺序)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]].Before(times[order[b]])
	})

	// 2. 按置换复制各列, 不持有调用方的切片
	b := &Batch{
		times:  make([]time.Time, n),
		tags:   make([]string, n),
		modes:  make([]Mode, n),
		values: make(map[Channel][]float64, len(values)),
		flags:  make(map[Channel][]bool),
		tracks: make(map[string]StandardTrack),
	}
	for i, src := range order {
		b.times[i] = times[src]
		b.tags[i] = tags[src]
		b.modes[i] = Classify(tags[src])
	}
	for ch, col := range values {
		dst := make([]float64, n)
		for i, src := range order {
			dst[i] = col[src]
		}
		b.values[ch] = dst
	}
	return b, nil
}

// clone 浅拷贝: 列切片共享, 映射表独立
func (b *Batch) clone() *Batch {
	c := &Batch{
		times:  b.times,
		tags:   b.tags,
		modes:  b.modes,
		values: make(map[Channel][]float64, len(b.values)),
		flags:  make(map[Channel][]bool, len(b.flags)),
		tracks: make(map[string]StandardTrack, len(b.tracks)),
	}
	for k, v := range b.values {
		c.values[k] = v
	}
	for k, v := range b.flags {
		c.flags[k] = v
	}
	for k, v := range b.tracks {
		c.tracks[k] = v
	}
	return c
}

// Len 行数
func (b *Batch) Len() int { return len(b.times) }

// Time 第 i 行时间戳
func (b *Batch) Time(i int) time.Time { return b.times[i] }

// Times 返回时间戳列 (只读)
func (b *Batch) Times() []time.Time { return b.times }

// Start 批次起始时间
func (b *Batch) Start() time.Time { return b.times[0] }

// End 批次结束时间
func (b *Batch) End() time.Time { return b.times[len(b.times)-1] }

// Tag 第 i 行的原始模式标签
func (b *Batch) Tag(i int) string { return b.tags[i] }

// Mode 第 i 行的分类模式
func (b *Batch) Mode(i int) Mode { return b.modes[i] }

// Is 返回模式成员列: 第 i 行属于 m 时为 true
func (b *Batch) Is(m Mode) []bool {
	out := make([]bool, len(b.modes))
	for i, mode := range b.modes {
		out[i] = m != ModeUnknown && mode == m
	}
	return out
}

// HasMode 批次中是否至少有一行处于 m 模式
func (b *Batch) HasMode(m Mode) bool {
	if m == ModeUnknown {
		return false
	}
	for _, mode := range b.modes {
		if mode == m {
			return true
		}
	}
	return false
}

// StandardIDs 返回批次中出现过的标准气通道 id (升序)
func (b *Batch) StandardIDs() []string {
	seen := make(map[string]struct{})
	for _, m := range b.modes {
		if id, ok := m.StandardID(); ok {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasChannel 数值列是否存在
func (b *Batch) HasChannel(ch Channel) bool {
	_, ok := b.values[ch]
	return ok
}

// Values 返回通道数值列 (只读); 列不存在时返回 MissingChannelError
func (b *Batch) Values(ch Channel) ([]float64, error) {
	col, ok := b.values[ch]
	if !ok {
		return nil, &MissingChannelError{Channel: string(ch)}
	}
	return col, nil
}

// Value 第 i 行的数值; 列不存在时视为缺失
func (b *Batch) Value(ch Channel, i int) float64 {
	col, ok := b.values[ch]
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// Channels 返回所有数值列名 (升序)
func (b *Batch) Channels() []Channel {
	out := make([]Channel, 0, len(b.values))
	for ch := range b.values {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FlagChannels 返回所有已建立的标记列名 (升序)
func (b *Batch) FlagChannels() []Channel {
	out := make([]Channel, 0, len(b.flags))
	for ch := range b.flags {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasFlag 标记列是否已建立
func (b *Batch) HasFlag(ch Channel) bool {
	_, ok := b.flags[ch]
	return ok
}

// Flags 返回通道标记列的副本; 未建立的标记列默认全部为 true
func (b *Batch) Flags(ch Channel) []bool {
	out := make([]bool, len(b.times))
	col, ok := b.flags[ch]
	if !ok {
		for i := range out {
			out[i] = true
		}
		return out
	}
	copy(out, col)
	return out
}

// Flag 第 i 行的标记值
func (b *Batch) Flag(ch Channel, i int) bool {
	col, ok := b.flags[ch]
	if !ok {
		return true
	}
	return col[i]
}

// AndFlag 将 mask 按位与到通道标记上, 返回新批次和新清除的行数
// mask 长度必须等于 Len()
func (b *Batch) AndFlag(ch Channel, mask []bool) (*Batch, int) {
	if len(mask) != len(b.times) {
		panic(fmt.Sprintf("domain: flag mask for %q has %d rows, want %d", ch, len(mask), len(b.times)))
	}
	prev := b.flags[ch]
	next := make([]bool, len(mask))
	cleared := 0
	for i, ok := range mask {
		old := prev == nil || prev[i]
		next[i] = old && ok
		if old && !ok {
			cleared++
		}
	}
	c := b.clone()
	c.flags[ch] = next
	return c, cleared
}

// WithValues 追加一列派生数值, 已存在的列不可覆盖
func (b *Batch) WithValues(ch Channel, col []float64) (*Batch, error) {
	if len(col) != len(b.times) {
		return nil, fmt.Errorf("channel %q has %d rows, want %d", ch, len(col), len(b.times))
	}
	if _, ok := b.values[ch]; ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnCommitted, ch)
	}
	c := b.clone()
	c.values[ch] = col
	return c, nil
}

// WithFlag 建立一列新的标记, 已存在的标记列只能通过 AndFlag 收紧
func (b *Batch) WithFlag(ch Channel, col []bool) (*Batch, error) {
	if len(col) != len(b.times) {
		return nil, fmt.Errorf("flag %q has %d rows, want %d", ch, len(col), len(b.times))
	}
	if _, ok := b.flags[ch]; ok {
		return nil, fmt.Errorf("%w: flag %s", ErrColumnCommitted, ch)
	}
	c := b.clone()
	c.flags[ch] = col
	return c, nil
}

// Track 返回标准气通道的序列
func (b *Batch) Track(id string) (StandardTrack, bool) {
	t, ok := b.tracks[id]
	return t, ok
}

// TrackIDs 返回已建立序列的标准气通道 id (升序)
func (b *Batch) TrackIDs() []string {
	ids := make([]string, 0, len(b.tracks))
	for id := range b.tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WithTrack 设置标准气通道序列; 已提交的子序列必须原样保留
func (b *Batch) WithTrack(id string, t StandardTrack) (*Batch, error) {
	n := len(b.times)
	for name, col := range map[string][]float64{"reference": t.Reference, "median": t.Median, "interpolated": t.Interpolated} {
		if col != nil && len(col) != n {
			return nil, fmt.Errorf("standard %s %s track has %d rows, want %d", id, name, len(col), n)
		}
	}
	if prev, ok := b.tracks[id]; ok {
		if (prev.Reference != nil && !sameSlice(prev.Reference, t.Reference)) ||
			(prev.Median != nil && !sameSlice(prev.Median, t.Median)) ||
			(prev.Interpolated != nil && !sameSlice(prev.Interpolated, t.Interpolated)) {
			return nil, fmt.Errorf("%w: standard %s track", ErrColumnCommitted, id)
		}
	}
	c := b.clone()
	c.tracks[id] = t
	return c, nil
}

// ElapsedSeconds 各行相对首行的秒数
func (b *Batch) ElapsedSeconds() []float64 {
	out := make([]float64, len(b.times))
	for i, t := range b.times {
		out[i] = t.Sub(b.times[0]).Seconds()
	}
	return out
}

func sameSlice(a, b []float64) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

// NaNs 返回长度为 n 的全缺失列
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// IsMissing 判断数值是否缺失
func IsMissing(v float64) bool { return math.IsNaN(v) }

var nanValue = math.NaN()
