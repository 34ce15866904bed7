package services

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/physics"
	"github.com/renjie/prism-co2/pkg/logging"
)

// DerivationConfig 物理派生的参数与有效性门限
// 门限为标记通道列表, 行上所有标记为 true 时才计算对应的派生量
type DerivationConfig struct {
	// QFFMeasuredBefore 此前优先使用 ferrybox 实测的 QFF
	QFFMeasuredBefore time.Time
	StationHeight     float64

	DryEqu    []domain.Channel
	DryAtm    []domain.Channel
	WetEqu    []domain.Channel
	WetAtm    []domain.Channel
	InSituEqu []domain.Channel
}

// DefaultDerivationConfig 默认参数 (含纬度与盐度门限的严格版本)
func DefaultDerivationConfig() DerivationConfig {
	dryEqu := []domain.Channel{domain.ChannelXCO2Cal, domain.ChannelPeriod, domain.ChannelLicorFlow, domain.ChannelH2OFlow}
	dryAtm := []domain.Channel{domain.ChannelXCO2Cal, domain.ChannelPeriod, domain.ChannelLicorFlow}
	wetEqu := append(append([]domain.Channel{}, dryEqu...), domain.ChannelEquTemp, domain.ChannelSSS, domain.ChannelLatitude)
	wetAtm := append(append([]domain.Channel{}, dryAtm...), domain.ChannelSSS, domain.ChannelSST, domain.ChannelLatitude)
	inSitu := append(append([]domain.Channel{}, wetEqu...), domain.ChannelSST)
	return DerivationConfig{
		QFFMeasuredBefore: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		StationHeight:     physics.StationHeight,
		DryEqu:            dryEqu,
		DryAtm:            dryAtm,
		WetEqu:            wetEqu,
		WetAtm:            wetAtm,
		InSituEqu:         inSitu,
	}
}

// DerivationChain 物理派生链
// 压力订正 → 干 pCO2 → 水汽订正 → 湿 pCO2 → 维里逸度 → 海表温度归一
type DerivationChain struct {
	cfg    DerivationConfig
	logger logrus.FieldLogger
}

// NewDerivationChain 创建派生链
func NewDerivationChain(cfg DerivationConfig, logger logrus.FieldLogger) *DerivationChain {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DerivationChain{cfg: cfg, logger: logger}
}

// Prepare 质量检查之前的派生: delta temperature 与 qff
func (d *DerivationChain) Prepare(batch *domain.Batch) (*domain.Batch, error) {
	equTemp, err := batch.Values(domain.ChannelEquTemp)
	if err != nil {
		return nil, err
	}
	n := batch.Len()
	sst := valuesOrNaN(batch, domain.ChannelSST)

	delta := make([]float64, n)
	for i := range delta {
		delta[i] = equTemp[i] - sst[i]
	}

	qffMeasured := valuesOrNaN(batch, domain.ChannelQFFMeasured)
	atmPress := valuesOrNaN(batch, domain.ChannelAtmPressure)
	airTemp := valuesOrNaN(batch, domain.ChannelAirTemperature)
	lat := valuesOrNaN(batch, domain.ChannelLatitude)

	qff := domain.NaNs(n)
	for i := 0; i < n; i++ {
		switch {
		case !math.IsNaN(qffMeasured[i]) && batch.Flag(domain.ChannelQFFMeasured, i) &&
			batch.Time(i).Before(d.cfg.QFFMeasuredBefore):
			qff[i] = qffMeasured[i]
		case batch.Flag(domain.ChannelAtmPressure, i) && batch.Flag(domain.ChannelAirTemperature, i) &&
			batch.Flag(domain.ChannelLatitude, i):
			qff[i] = physics.QFF(atmPress[i], airTemp[i], lat[i], d.cfg.StationHeight)
		}
	}

	if batch, err = batch.WithValues(domain.ChannelDeltaTemperature, delta); err != nil {
		return nil, err
	}
	return batch.WithValues(domain.ChannelQFF, qff)
}

// Derive 校准之后的派生: 压力项、pCO2、fCO2 与现场值
func (d *DerivationChain) Derive(batch *domain.Batch) (*domain.Batch, error) {
	n := batch.Len()
	xcal, err := batch.Values(domain.ChannelXCO2Cal)
	if err != nil {
		return nil, err
	}
	equTemp := valuesOrNaN(batch, domain.ChannelEquTemp)
	sst := valuesOrNaN(batch, domain.ChannelSST)
	sss := valuesOrNaN(batch, domain.ChannelSSS)

	// 1. 压力项
	pEqu, fromQFF, pAtm := d.pressures(batch)

	isEqu := batch.Is(domain.ModeEqu)
	isAtm := batch.Is(domain.ModeAtm)
	dryEqu := gate(batch, isEqu, d.cfg.DryEqu)
	dryAtm := gate(batch, isAtm, d.cfg.DryAtm)
	wetEqu := gate(batch, isEqu, d.cfg.WetEqu)
	wetAtm := gate(batch, isAtm, d.cfg.WetAtm)
	inSitu := gate(batch, isEqu, d.cfg.InSituEqu)

	pco2Dry := domain.NaNs(n)
	pco2Wet := domain.NaNs(n)
	fco2Wet := domain.NaNs(n)
	pco2WetAtm := domain.NaNs(n)
	fco2WetAtm := domain.NaNs(n)
	pco2WetSST := domain.NaNs(n)
	fco2WetSST := domain.NaNs(n)

	for i := 0; i < n; i++ {
		// 2. 干 pCO2
		switch {
		case dryEqu[i]:
			pco2Dry[i] = physics.PCO2Dry(xcal[i], pEqu[i])
		case dryAtm[i]:
			pco2Dry[i] = physics.PCO2Dry(xcal[i], pAtm[i])
		}

		// 3. 湿 pCO2 与逸度
		switch {
		case wetEqu[i]:
			pco2Wet[i] = physics.PCO2Wet(xcal[i], pEqu[i], physics.PH2O(equTemp[i], sss[i]))
			fco2Wet[i] = physics.Fugacity(equTemp[i], pEqu[i], pco2Wet[i], xcal[i])
		case wetAtm[i]:
			pco2Wet[i] = physics.PCO2Wet(xcal[i], pAtm[i], physics.PH2O(sst[i], sss[i]))
			fco2Wet[i] = physics.Fugacity(sst[i], pAtm[i], pco2Wet[i], xcal[i])
			pco2WetAtm[i] = pco2Wet[i]
			fco2WetAtm[i] = fco2Wet[i]
		}

		// 4. 海表温度归一 (仅平衡器记录)
		if inSitu[i] {
			factor := physics.InSituFactor(sst[i], equTemp[i])
			pco2WetSST[i] = pco2Wet[i] * factor
			fco2WetSST[i] = fco2Wet[i] * factor
		}
	}

	columns := []struct {
		ch  domain.Channel
		col []float64
	}{
		{domain.ChannelPEqu, pEqu},
		{domain.ChannelPAtmSea, pAtm},
		{domain.ChannelPCO2Dry, pco2Dry},
		{domain.ChannelPCO2Wet, pco2Wet},
		{domain.ChannelFCO2Wet, fco2Wet},
		{domain.ChannelPCO2WetAtm, pco2WetAtm},
		{domain.ChannelFCO2WetAtm, fco2WetAtm},
		{domain.ChannelPCO2WetSST, pco2WetSST},
		{domain.ChannelFCO2WetSST, fco2WetSST},
	}
	for _, col := range columns {
		if batch, err = batch.WithValues(col.ch, col.col); err != nil {
			return nil, err
		}
	}
	if batch, err = batch.WithFlag(domain.ChannelPEquFromQFF, fromQFF); err != nil {
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"fco2_sst": countPresent(fco2WetSST),
		"fco2_atm": countPresent(fco2WetAtm),
		"pco2_dry": countPresent(pco2Dry),
	}).Info("derivation chain applied")
	return batch, nil
}

// pressures P_equ 依次取 lab press + equ press, licor press + equ press, qff; 单位 atm
func (d *DerivationChain) pressures(batch *domain.Batch) (pEqu []float64, fromQFF []bool, pAtm []float64) {
	n := batch.Len()
	lab := valuesOrNaN(batch, domain.ChannelLabPress)
	licor := valuesOrNaN(batch, domain.ChannelLicorPress)
	equ := valuesOrNaN(batch, domain.ChannelEquPress)
	qff := valuesOrNaN(batch, domain.ChannelQFF)

	pEqu = domain.NaNs(n)
	pAtm = make([]float64, n)
	fromQFF = make([]bool, n)
	for i := 0; i < n; i++ {
		equOK := batch.Flag(domain.ChannelEquPress, i)
		switch {
		case !math.IsNaN(lab[i]) && batch.Flag(domain.ChannelLabPress, i) && equOK:
			pEqu[i] = physics.ToAtm(lab[i] + equ[i])
		case math.IsNaN(lab[i]) && !math.IsNaN(licor[i]) && batch.Flag(domain.ChannelLicorPress, i) && equOK:
			pEqu[i] = physics.ToAtm(licor[i] + equ[i])
		}
		if math.IsNaN(pEqu[i]) && !math.IsNaN(qff[i]) {
			pEqu[i] = physics.ToAtm(qff[i])
			fromQFF[i] = true
		}
		pAtm[i] = physics.ToAtm(qff[i])
	}
	return pEqu, fromQFF, pAtm
}

// gate 模式成员与所有门限标记的逻辑与
func gate(batch *domain.Batch, member []bool, flags []domain.Channel) []bool {
	out := make([]bool, len(member))
	for i, ok := range member {
		if !ok {
			continue
		}
		out[i] = true
		for _, ch := range flags {
			if !batch.Flag(ch, i) {
				out[i] = false
				break
			}
		}
	}
	return out
}

// valuesOrNaN 伴随通道可能整体缺失 (未合并 ferrybox), 此时视为全部缺失
func valuesOrNaN(batch *domain.Batch, ch domain.Channel) []float64 {
	if col, err := batch.Values(ch); err == nil {
		return col
	}
	return domain.NaNs(batch.Len())
}

func countPresent(col []float64) int {
	n := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
