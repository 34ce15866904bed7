package ports

import (
	"context"
	"io"
	"time"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// BatchLoader 记录批次加载器
// 职责: 把异构的仪器日志解析为固定通道词表的记录批次, 保证时间排序
type BatchLoader interface {
	Load(ctx context.Context, r io.Reader) (*domain.Batch, *domain.IngestionResult, error)
}

// CompanionLoader 伴随序列加载器
type CompanionLoader interface {
	LoadCompanion(ctx context.Context, r io.Reader) (*domain.CompanionSeries, *domain.IngestionResult, error)
}

// ReferenceLoader 参考表加载器
type ReferenceLoader interface {
	LoadReferences(ctx context.Context, r io.Reader) (domain.ReferenceTable, error)
}

// RunRepository 运行记录仓储接口
// 职责: 保存每次运行的摘要、检查审计记录和结果表, 供查询 API 使用
type RunRepository interface {
	// SaveRun 新增或更新运行摘要
	SaveRun(ctx context.Context, run domain.Run) error

	// SaveReports 保存检查审计记录
	SaveReports(ctx context.Context, runID string, reports []domain.CheckReport) error

	// SaveRecords 保存结果表 (逐行)
	SaveRecords(ctx context.Context, runID string, records []domain.Record) error

	// GetRun 获取指定运行; 不存在时返回 domain.ErrRunNotFound
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns 按开始时间倒序列出最近的运行
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)

	// ListReports 获取运行的检查审计记录
	ListReports(ctx context.Context, runID string) ([]domain.CheckReport, error)

	// ListRecords 分页获取运行的结果行
	ListRecords(ctx context.Context, runID string, offset, limit int) ([]domain.Record, error)
}

// Exporter 结果导出器 (只读消费完整批次)
type Exporter interface {
	Export(ctx context.Context, batch *domain.Batch) (path string, err error)
}

// Publisher 结果发布器
// 场景: 把导出的 fCO2 行推送到消息总线, 供下游平台订阅
type Publisher interface {
	Publish(ctx context.Context, runID string, records []domain.Record) error
	Close() error
}

// RunObserver 运行观测者 (指标采集)
type RunObserver interface {
	ObserveRun(run domain.Run, reports []domain.CheckReport, elapsed time.Duration)
}
