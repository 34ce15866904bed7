package domain

// Channel 物理测量通道 (Measurand) 的枚举标识
// 每个通道拥有一列数值 (NaN 表示缺失) 以及唯一的一列质量标记 (Quality Flag)
type Channel string

// GO 分析仪原始通道
const (
	ChannelEquTemp    Channel = "equ temp"
	ChannelCO2        Channel = "CO2 ppm"
	ChannelCO2Avg     Channel = "CO2 avg ppm"
	ChannelLicorPress Channel = "licor press"
	ChannelLabPress   Channel = "lab press"
	ChannelEquPress   Channel = "equ press"
	ChannelH2OFlow    Channel = "H2O flow"
	ChannelLicorFlow  Channel = "licor flow"
	ChannelVentFlow   Channel = "vent flow"
)

// Ferrybox 伴随序列通道 (通过时间对齐合并)
const (
	ChannelSST            Channel = "SST"
	ChannelSSS            Channel = "SSS"
	ChannelAirTemperature Channel = "Air_temperature"
	ChannelAtmPressure    Channel = "Atm_pressure"
	ChannelQFFMeasured    Channel = "QFF FB"
	ChannelLatitude       Channel = "Latitude"
	ChannelLongitude      Channel = "Longitude"
)

// 派生通道 (由流水线各阶段追加)
const (
	ChannelDeltaTemperature Channel = "delta temperature"
	ChannelQFF              Channel = "qff"
	ChannelPEqu             Channel = "P_equ"
	ChannelPAtmSea          Channel = "P_atm_sea"
	ChannelXCO2Cal          Channel = "xco2_cal"
	ChannelStandardSlope    Channel = "standard_slope"
	ChannelStandardIntcpt   Channel = "standard_intercept"
	ChannelStandardRSquare  Channel = "standard_r_square"
	ChannelStandardCount    Channel = "number_of_standards"
	ChannelPCO2Dry          Channel = "pco2_dry"
	ChannelPCO2Wet          Channel = "pco2_wet"
	ChannelFCO2Wet          Channel = "fco2_wet"
	ChannelPCO2WetAtm       Channel = "pco2_wet_atm"
	ChannelFCO2WetAtm       Channel = "fco2_wet_atm"
	ChannelPCO2WetSST       Channel = "pco2_wet_sst"
	ChannelFCO2WetSST       Channel = "fco2_wet_sst"
)

// 仅有标记列的伪通道
const (
	// ChannelPeriod 运行期标记: 仪器更换之前的数据一律无效
	ChannelPeriod Channel = "period"
	// ChannelPEquFromQFF 标记 P_equ 是否由 QFF 回退得到
	ChannelPEquFromQFF Channel = "P_equ_from_qff"
)

// RawChannels 记录批次加载器必须提供的 GO 通道集合
var RawChannels = []Channel{
	ChannelEquTemp,
	ChannelCO2,
	ChannelCO2Avg,
	ChannelLicorPress,
	ChannelLabPress,
	ChannelEquPress,
	ChannelH2OFlow,
	ChannelLicorFlow,
	ChannelVentFlow,
}

// CompanionChannels 伴随序列合并后提供的通道集合
var CompanionChannels = []Channel{
	ChannelSST,
	ChannelSSS,
	ChannelAirTemperature,
	ChannelAtmPressure,
	ChannelQFFMeasured,
	ChannelLatitude,
	ChannelLongitude,
}

// String implements fmt.Stringer.
func (c Channel) String() string { return string(c) }
