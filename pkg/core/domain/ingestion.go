package domain

import "time"

// IngestionResult 记录一次文件摄入的统计结果
type IngestionResult struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"` // 重复、X 类型或 QC 不合格而跳过
	Errors  []string `json:"errors"`  // 具体的错误信息
}

// Merge 累加另一次摄入的统计
func (r *IngestionResult) Merge(o *IngestionResult) {
	if o == nil {
		return
	}
	r.Total += o.Total
	r.Success += o.Success
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// CompanionSeries 伴随序列 (ferrybox): 独立采样的时间序列, 按时间升序
// 每个通道的 QC 代码已转换为布尔标记
type CompanionSeries struct {
	Times  []time.Time
	Values map[Channel][]float64
	Flags  map[Channel][]bool
}

// Len 行数
func (s *CompanionSeries) Len() int { return len(s.Times) }
