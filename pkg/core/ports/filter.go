package ports

import "github.com/renjie/prism-co2/pkg/core/domain"

// FlagCheck 质量检查接口
// 这是一个策略接口，具体的检查（范围、恒定值、离群点、梯度）由外部实现注入
// 检查只能通过 Batch.AndFlag 收紧标记, 不修改数值
type FlagCheck interface {
	// Name 检查名称, 用于日志和审计
	Name() string

	// Apply 在批次上执行检查, 返回新批次以及每个通道的审计记录
	Apply(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error)
}

// FlagEngine 质量标记引擎接口
// 负责协调多个检查的顺序执行
type FlagEngine interface {
	// Run 依次执行所有检查
	// 注意: 标记按逻辑与组合, 一旦清除不会恢复
	Run(batch *domain.Batch) (*domain.Batch, []domain.CheckReport, error)
}
