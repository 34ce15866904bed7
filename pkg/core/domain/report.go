package domain

import "time"

// CheckReport 代表一次质量检查在单个通道上的审计记录
// 每个检查阶段都会记录通道、选择范围和新清除的记录数
type CheckReport struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Check     string    `json:"check"` // 检查名称 (e.g. "range", "outlier")
	Channel   Channel   `json:"channel"`
	Selection Mode      `json:"selection,omitempty"` // 空表示全部记录
	Evaluated int       `json:"evaluated"`           // 参与检查的记录数
	Flagged   int       `json:"flagged"`             // 本次新清除的记录数
	Detail    string    `json:"detail,omitempty"`    // 参数摘要 (e.g. "[900.00, 1100.00]")
	CreatedAt time.Time `json:"created_at"`
}
