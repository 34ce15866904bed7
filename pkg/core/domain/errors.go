package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch 输入批次没有任何记录, 不存在有意义的时间范围
	ErrEmptyBatch = errors.New("empty record batch")

	// ErrMissingChannel 必需的通道列在输入中完全缺失 (配置错误, 致命)
	ErrMissingChannel = errors.New("required channel missing")

	// ErrColumnCommitted 试图覆盖已提交的列
	ErrColumnCommitted = errors.New("column already committed")

	// ErrRunNotFound 运行记录不存在
	ErrRunNotFound = errors.New("run not found")
)

// MissingChannelError 指明缺失的具体通道
type MissingChannelError struct {
	Channel string
	Context string // 需要该通道的阶段, e.g. "interpolate standard"
}

func (e *MissingChannelError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("required channel %q missing", e.Channel)
	}
	return fmt.Sprintf("%s: required channel %q missing", e.Context, e.Channel)
}

func (e *MissingChannelError) Unwrap() error { return ErrMissingChannel }
