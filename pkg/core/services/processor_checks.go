package services

import (
	"github.com/renjie/prism-co2/pkg/adapters/factory"
	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
)

// WithCheckConfigs 通过配置动态构建检查链 (覆盖 WithChecks)
// 配置在每次运行开始时转换, 转换失败视为配置错误
func WithCheckConfigs(cfgs []domain.CheckConfig) ProcessorOption {
	return func(p *Processor) {
		p.checkConfigs = cfgs
	}
}

// resolveChecks 返回本次运行使用的检查链
// 两个选项都未设置时使用默认检查序列
func (p *Processor) resolveChecks() ([]ports.FlagCheck, error) {
	if p.checkConfigs != nil {
		return factory.GetCheckFactory().CreateChecks(p.checkConfigs)
	}
	if p.checksSet {
		return p.checks, nil
	}
	return factory.GetCheckFactory().CreateChecks(factory.DefaultChecks())
}
