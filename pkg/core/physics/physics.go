// Package physics 物理公式 (纯函数)
// 所有函数对缺失输入 (NaN) 返回 NaN, 不报错
package physics

import "math"

const (
	// StandardAtmosphere 标准大气压 (hPa)
	StandardAtmosphere = 1013.25

	// GasConstant 气体常数 (atm cm3 K-1 mol-1)
	GasConstant = 82.0578

	// TakahashiCoefficient 温度校正系数 (1/°C)
	TakahashiCoefficient = 0.0423

	// StationHeight 气压计高度 (m)
	StationHeight = 27.0

	kelvinOffset = 273.15

	defaultLatitude    = 60.0
	defaultTemperature = 15.0
	minQFFPressure     = 600.0
	maxQFFPressure     = 1100.0
)

// Kelvin 摄氏度转开尔文
func Kelvin(tempC float64) float64 { return tempC + kelvinOffset }

// ToAtm hPa 转标准大气压
func ToAtm(hPa float64) float64 { return hPa / StandardAtmosphere }

// QFF 把测站气压订正到海平面 (本地气温订正)
// 缺失的纬度按 60°, 缺失的气温按 15 °C; 气压不在 [600, 1100] hPa 时返回 NaN
func QFF(pressure, tempC, latitude, height float64) float64 {
	if math.IsNaN(pressure) || pressure < minQFFPressure || pressure > maxQFFPressure {
		return math.NaN()
	}
	if math.IsNaN(latitude) {
		latitude = defaultLatitude
	}
	if math.IsNaN(tempC) {
		tempC = defaultTemperature
	}

	b := 3.4163 * (1 - 0.0026373*math.Cos(2*latitude*math.Pi)) / 100

	var t1 float64
	switch {
	case tempC < -7:
		t1 = 0.5*tempC + 275.0
	case tempC < 2:
		t1 = 0.535*tempC + 275.6
	default:
		t1 = 1.07*tempC + 274.5
	}
	return pressure * math.Exp(height*b/t1)
}

// PH2O 水汽压 (atm), 温度 °C, 盐度 PSU (Weiss & Price 1980)
func PH2O(tempC, salinity float64) float64 {
	tk := Kelvin(tempC)
	return math.Exp(24.4543 - 67.4509*(100/tk) - 4.8489*math.Log(tk/100) - 0.000544*salinity)
}

// PCO2Dry 干空气 CO2 分压 (µatm) = xCO2 (ppm) × 总压 (atm)
func PCO2Dry(xco2, pressureAtm float64) float64 { return xco2 * pressureAtm }

// PCO2Wet 湿空气 CO2 分压 (µatm) = xCO2 × (总压 − 水汽压)
func PCO2Wet(xco2, pressureAtm, ph2o float64) float64 { return xco2 * (pressureAtm - ph2o) }

// VirialB 第一维里系数 B(T), cm3/mol, T 为开尔文
func VirialB(tk float64) float64 {
	return -1636.75 + 12.0408*tk - 0.0327957*tk*tk + 3.16528e-5*tk*tk*tk
}

// VirialDelta 交叉维里系数 δ(T), cm3/mol
func VirialDelta(tk float64) float64 { return 57.7 - 0.118*tk }

// Fugacity CO2 逸度 (µatm)
// f = pCO2_wet · exp(P · (B + 2(1 − x·1e-6)² δ) / (R·T))
func Fugacity(tempC, pressureAtm, pco2Wet, xco2 float64) float64 {
	tk := Kelvin(tempC)
	x := 1 - xco2*1e-6
	return pco2Wet * math.Exp(pressureAtm*(VirialB(tk)+2*x*x*VirialDelta(tk))/(GasConstant*tk))
}

// InSituFactor 从平衡器温度换算到海表温度的系数 (Takahashi 1993)
func InSituFactor(sst, equTemp float64) float64 {
	return math.Exp(TakahashiCoefficient * (sst - equTemp))
}
