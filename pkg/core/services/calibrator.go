package services

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/logging"
)

// CalibrationConfig 校准参数 (均可通过配置覆盖)
type CalibrationConfig struct {
	// CalibrationThreshold 校准值与原始读数的最大允许差 (ppm)
	CalibrationThreshold float64
	// StandardThreshold 每个标准气的参考值与插值响应的最大允许差 (ppm)
	StandardThreshold float64
	// UnstableStandard 历史上不稳定的标准气, 在标准气充足且批次早于 UnstableBefore 时剔除
	UnstableStandard string
	UnstableMinCount int
	UnstableBefore   time.Time
}

// DefaultCalibrationConfig 默认校准参数
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		CalibrationThreshold: 10,
		StandardThreshold:    10,
		UnstableStandard:     "1",
		UnstableMinCount:     4,
		UnstableBefore:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Calibrator 校准引擎
// 每个时间点对 (参考浓度, 插值响应) 做最小二乘拟合 response = slope·reference + intercept,
// 再用反函数校正原始 CO2 读数
type Calibrator struct {
	cfg       CalibrationConfig
	standards []string
	logger    logrus.FieldLogger
}

// NewCalibrator 创建校准引擎; standards 为空时使用批次中已插值的全部标准气
func NewCalibrator(cfg CalibrationConfig, logger logrus.FieldLogger, standards ...string) *Calibrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Calibrator{cfg: cfg, standards: standards, logger: logger}
}

// Standards 返回参与校准的标准气 (已剔除不稳定标准气)
func (c *Calibrator) Standards(batch *domain.Batch) []string {
	ids := c.standards
	if len(ids) == 0 {
		ids = batch.TrackIDs()
	}
	if c.cfg.UnstableStandard == "" || usableStandards(batch, ids) < c.cfg.UnstableMinCount || !batch.Start().Before(c.cfg.UnstableBefore) {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != c.cfg.UnstableStandard {
			out = append(out, id)
		}
	}
	return out
}

// usableStandards 统计带有参考浓度的标准气个数; 没有参考表条目的通道 (e.g. "2s") 不计入
func usableStandards(batch *domain.Batch, ids []string) int {
	count := 0
	for _, id := range ids {
		track, ok := batch.Track(id)
		if !ok {
			continue
		}
		for _, v := range track.Reference {
			if !math.IsNaN(v) {
				count++
				break
			}
		}
	}
	return count
}

// Calibrate 写入 xco2_cal 及回归参数列, 并收紧 xco2_cal 标记
func (c *Calibrator) Calibrate(batch *domain.Batch) (*domain.Batch, error) {
	ids := c.Standards(batch)
	tracks := make([]domain.StandardTrack, 0, len(ids))
	for _, id := range ids {
		track, ok := batch.Track(id)
		if !ok || track.Interpolated == nil {
			return nil, &domain.MissingChannelError{
				Channel: string(domain.StandardMode(id)),
				Context: "calibrate",
			}
		}
		// 没有参考浓度的标准气不参与回归
		if track.Reference == nil {
			track.Reference = domain.NaNs(batch.Len())
		}
		tracks = append(tracks, track)
	}

	raw, source, err := rawCO2(batch)
	if err != nil {
		return nil, err
	}

	n := batch.Len()
	xcal := domain.NaNs(n)
	slope := domain.NaNs(n)
	intercept := domain.NaNs(n)
	r2 := domain.NaNs(n)
	count := domain.NaNs(n)
	valid := make([]bool, n)

	refs := make([]float64, len(tracks))
	resp := make([]float64, len(tracks))
	calibrated := 0
	for i := 0; i < n; i++ {
		for k, t := range tracks {
			refs[k] = t.Reference[i]
			resp[k] = t.Interpolated[i]
		}
		res := c.CalibrateRow(refs, resp, raw[i])
		if res.Count > 0 {
			xcal[i], slope[i], intercept[i], r2[i] = res.XCO2Cal, res.Slope, res.Intercept, res.RSquare
			count[i] = float64(res.Count)
		}
		valid[i] = res.Valid && batch.Flag(source[i], i)
		if valid[i] {
			calibrated++
		}
	}

	columns := []struct {
		ch  domain.Channel
		col []float64
	}{
		{domain.ChannelXCO2Cal, xcal},
		{domain.ChannelStandardSlope, slope},
		{domain.ChannelStandardIntcpt, intercept},
		{domain.ChannelStandardRSquare, r2},
		{domain.ChannelStandardCount, count},
	}
	for _, col := range columns {
		if batch, err = batch.WithValues(col.ch, col.col); err != nil {
			return nil, err
		}
	}
	batch, _ = batch.AndFlag(domain.ChannelXCO2Cal, valid)

	c.logger.WithFields(logrus.Fields{
		"standards":  ids,
		"rows":       n,
		"calibrated": calibrated,
	}).Info("calibration applied")
	return batch, nil
}

// CalibrateRow 单个时间点的校准
// refs 与 responses 按标准气对齐, NaN 表示该标准气在此时刻不可用
// 可用对少于 2 个或参考值不足 2 个不同值时不做回归, 结果无效且 Count 为 0
func (c *Calibrator) CalibrateRow(refs, responses []float64, raw float64) domain.CalibrationResult {
	type pair struct{ ref, resp float64 }
	pairs := make([]pair, 0, len(refs))
	for k := range refs {
		if !math.IsNaN(refs[k]) && !math.IsNaN(responses[k]) {
			pairs = append(pairs, pair{refs[k], responses[k]})
		}
	}
	if len(pairs) < 2 {
		return invalidCalibration()
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].ref < pairs[b].ref })
	if pairs[0].ref == pairs[len(pairs)-1].ref {
		return invalidCalibration()
	}

	x := make([]float64, len(pairs))
	y := make([]float64, len(pairs))
	for k, p := range pairs {
		x[k], y[k] = p.ref, p.resp
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if beta == 0 || math.IsNaN(beta) {
		return invalidCalibration()
	}

	res := domain.CalibrationResult{
		XCO2Cal:   (raw - alpha) / beta,
		Slope:     beta,
		Intercept: alpha,
		RSquare:   stat.RSquared(x, y, nil, alpha, beta),
		Count:     len(pairs),
		Valid:     true,
	}
	for _, p := range pairs {
		if math.Abs(p.ref-p.resp) > c.cfg.StandardThreshold {
			res.Valid = false
		}
	}
	if !(math.Abs(res.XCO2Cal-raw) <= c.cfg.CalibrationThreshold) {
		res.Valid = false
	}
	return res
}

func invalidCalibration() domain.CalibrationResult {
	return domain.CalibrationResult{
		XCO2Cal:   math.NaN(),
		Slope:     math.NaN(),
		Intercept: math.NaN(),
		RSquare:   math.NaN(),
	}
}
