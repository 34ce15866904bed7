package domain

import "time"

// StandardRun 标准气运行段: 同一标准气模式的最大连续记录区间
// 首条记录为冲洗样本, 不参与中位数
type StandardRun struct {
	StandardID string
	Start      int // 首行下标
	End        int // 末行下标 + 1 (不含)
	StartTime  time.Time
	EndTime    time.Time // 末行时间戳
	Median     float64   // 运行段响应中位数 (不含首条); 单行运行段为 NaN
}

// Len 运行段行数
func (r StandardRun) Len() int { return r.End - r.Start }

// ReferenceEntry 参考表中的一条: 某标准气在一个有效期内的认证浓度
type ReferenceEntry struct {
	StandardID string    `json:"channel"`
	CO2        float64   `json:"co2"`
	ValidFrom  time.Time `json:"start"`
	ValidTo    time.Time `json:"end,omitempty"` // 零值表示至今有效
}

// Covers 判断 t 是否落在 [ValidFrom, ValidTo] 内; ValidTo 为零值时以 now 作为上界
func (e ReferenceEntry) Covers(t, now time.Time) bool {
	end := e.ValidTo
	if end.IsZero() {
		end = now
	}
	return !t.Before(e.ValidFrom) && !t.After(end)
}

// ReferenceTable 外部提供的标准气认证浓度表 (只读)
type ReferenceTable []ReferenceEntry

// Standards 返回表中出现的标准气 id (按出现顺序去重)
func (t ReferenceTable) Standards() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range t {
		if !seen[e.StandardID] {
			seen[e.StandardID] = true
			out = append(out, e.StandardID)
		}
	}
	return out
}

// CalibrationResult 单个时间点的校准结果
type CalibrationResult struct {
	XCO2Cal   float64
	Slope     float64
	Intercept float64
	RSquare   float64
	Count     int
	Valid     bool
}
