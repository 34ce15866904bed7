package domain

// CheckType 定义质量检查类型
type CheckType string

const (
	CheckTypeRange    CheckType = "RANGE"    // 范围检查 (闭区间)
	CheckTypePeriod   CheckType = "PERIOD"   // 运行期检查 (切换日期之前全部无效)
	CheckTypeConstant CheckType = "CONSTANT" // 恒定值检查 (卡死的传感器)
	CheckTypeOutlier  CheckType = "OUTLIER"  // 滑动窗口离群点检查
	CheckTypeGradient CheckType = "GRADIENT" // 局部梯度检查
)

// CheckConfig 定义一条质量检查的配置
// 由 CheckFactory 转换为可执行的 ports.FlagCheck
// 所有检查只做标记 (Flag Only): 不修改数值, 不丢弃记录
type CheckConfig struct {
	ID         string         `yaml:"id" json:"id"`
	Type       CheckType      `yaml:"type" json:"type"`
	Channels   []Channel      `yaml:"channels" json:"channels"`
	Selection  Mode           `yaml:"selection,omitempty" json:"selection,omitempty"` // 空表示全部记录
	Disabled   bool           `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"` // 例如: {"min": 900, "max": 1100}
}
