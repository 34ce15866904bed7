package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// Bound 单个通道的有效闭区间
type Bound struct {
	Channel domain.Channel
	Min     float64
	Max     float64
}

// Contains 判断数值是否在闭区间内; 缺失值视为不通过
func (b Bound) Contains(v float64) bool {
	return !domain.IsMissing(v) && v >= b.Min && v <= b.Max
}

// RangeCheck 实现数值范围检查
// Coupled 为 true 时, 所有通道共享各自区间结果的逻辑与 (e.g. equ temp 与 delta temperature)
type RangeCheck struct {
	Bounds  []Bound
	Coupled bool
}

// Name 实现 ports.FlagCheck
func (r *RangeCheck) Name() string { return "range" }

// Apply 检查每行数值是否在区间内
func (r *RangeCheck) Apply(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error) {
	n := batch.Len()
	masks := make([][]bool, len(r.Bounds))
	for k, b := range r.Bounds {
		values, err := batch.Values(b.Channel)
		if err != nil {
			return nil, nil, fmt.Errorf("range check: %w", err)
		}
		mask := make([]bool, n)
		for i, v := range values {
			mask[i] = b.Contains(v)
		}
		masks[k] = mask
	}

	// 耦合通道: 任一通道越界则全部无效
	if r.Coupled && len(masks) > 1 {
		joint := make([]bool, n)
		for i := range joint {
			joint[i] = true
			for _, m := range masks {
				joint[i] = joint[i] && m[i]
			}
		}
		for k := range masks {
			masks[k] = joint
		}
	}

	reports := make([]domain.CheckReport, 0, len(r.Bounds))
	for k, b := range r.Bounds {
		var flagged int
		batch, flagged = batch.AndFlag(b.Channel, masks[k])
		reports = append(reports, newReport(r.Name(), b.Channel, domain.ModeUnknown, n, flagged, r.detail()))
	}
	return batch, reports, nil
}

func (r *RangeCheck) detail() string {
	parts := make([]string, len(r.Bounds))
	for i, b := range r.Bounds {
		parts[i] = fmt.Sprintf("%s [%.2f, %.2f]", b.Channel, b.Min, b.Max)
	}
	s := strings.Join(parts, "; ")
	if r.Coupled {
		s += " (coupled)"
	}
	return s
}

// PeriodCheck 运行期检查: 切换时刻 (仪器更换) 之前的记录全部无效
type PeriodCheck struct {
	Cutover time.Time
}

// DefaultCutover 默认切换时刻 2012-04-13 15:00:00
var DefaultCutover = time.Date(2012, 4, 13, 15, 0, 0, 0, time.UTC)

// Name 实现 ports.FlagCheck
func (p *PeriodCheck) Name() string { return "period" }

// Apply 建立/收紧 period 标记
func (p *PeriodCheck) Apply(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error) {
	mask := make([]bool, batch.Len())
	for i, t := range batch.Times() {
		mask[i] = t.After(p.Cutover)
	}
	batch, flagged := batch.AndFlag(domain.ChannelPeriod, mask)
	report := newReport(p.Name(), domain.ChannelPeriod, domain.ModeUnknown, batch.Len(), flagged,
		"after "+p.Cutover.Format(time.DateTime))
	return batch, []domain.CheckReport{report}, nil
}

// newReport 构造审计记录 (ID 与 RunID 由引擎补全)
func newReport(check string, ch domain.Channel, sel domain.Mode, evaluated, flagged int, detail string) domain.CheckReport {
	return domain.CheckReport{
		Check:     check,
		Channel:   ch,
		Selection: sel,
		Evaluated: evaluated,
		Flagged:   flagged,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
}
