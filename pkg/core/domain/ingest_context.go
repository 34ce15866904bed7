package domain

import (
	"context"
	"time"
)

// RunTrigger 定义一次流水线运行的触发方式
type RunTrigger string

const (
	// RunTriggerManual 命令行手动处理一批日志 (默认)
	RunTriggerManual RunTrigger = "MANUAL"

	// RunTriggerReprocess 参考表或阈值更新后重新处理历史数据
	RunTriggerReprocess RunTrigger = "REPROCESS"
)

// RunStatus 运行状态
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunInfo 携带运行时的上下文信息
type RunInfo struct {
	RunID    string
	Trigger  RunTrigger
	Operator string // 操作人 (SYSTEM 或 具体User)
	Prefix   string // 平台/船舶前缀, 用于导出文件名
}

// Run 一次流水线运行的摘要 (持久化到 RunRepository)
type Run struct {
	ID         string     `json:"id"`
	Trigger    RunTrigger `json:"trigger"`
	Operator   string     `json:"operator"`
	Prefix     string     `json:"prefix"`
	Status     RunStatus  `json:"status"`
	DataStart  time.Time  `json:"data_start"`
	DataEnd    time.Time  `json:"data_end"`
	Rows       int        `json:"rows"`
	Calibrated int        `json:"calibrated"` // xco2_cal 标记为 true 的行数
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

type runInfoKey struct{}

// NewContext returns a new Context that carries the RunInfo value.
func NewContext(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

// FromContext returns the RunInfo value stored in ctx, if any.
func FromContext(ctx context.Context) (RunInfo, bool) {
	info, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return info, ok
}
