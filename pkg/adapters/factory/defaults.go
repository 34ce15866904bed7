package factory

import "github.com/renjie/prism-co2/pkg/core/domain"

// DefaultChecks returns the standard quality-control sequence:
// period, range, constant value, outlier and gradient checks
func DefaultChecks() []domain.CheckConfig {
	limits := func(lo, hi float64) []any { return []any{lo, hi} }

	cfgs := []domain.CheckConfig{
		{ID: "period", Type: domain.CheckTypePeriod, Parameters: map[string]any{"cutover": "2012-04-13 15:00:00"}},
		{
			ID:   "range",
			Type: domain.CheckTypeRange,
			Channels: []domain.Channel{
				domain.ChannelH2OFlow, domain.ChannelLicorPress, domain.ChannelLabPress, domain.ChannelEquPress,
				domain.ChannelLicorFlow, domain.ChannelVentFlow, domain.ChannelCO2, domain.ChannelCO2Avg,
			},
			Parameters: map[string]any{"limits": map[string]any{
				string(domain.ChannelH2OFlow):    limits(1.5, 5),
				string(domain.ChannelLicorPress): limits(900, 1100),
				string(domain.ChannelLabPress):   limits(900, 1100),
				string(domain.ChannelEquPress):   limits(-0.5, 0.5),
				string(domain.ChannelLicorFlow):  limits(20, 500),
				string(domain.ChannelVentFlow):   limits(-5, 25),
				string(domain.ChannelCO2):        limits(80, 1200),
				string(domain.ChannelCO2Avg):     limits(80, 1200),
			}},
		},
		{
			ID:       "range-equ-temp",
			Type:     domain.CheckTypeRange,
			Channels: []domain.Channel{domain.ChannelEquTemp, domain.ChannelDeltaTemperature},
			Parameters: map[string]any{
				"coupled": true,
				"limits": map[string]any{
					string(domain.ChannelEquTemp):          limits(-2, 40),
					string(domain.ChannelDeltaTemperature): limits(0, 2),
				},
			},
		},
		{
			ID:         "constant",
			Type:       domain.CheckTypeConstant,
			Channels:   qcChannels(),
			Parameters: map[string]any{"max_duration": "120m"},
		},
		{
			ID:   "outlier",
			Type: domain.CheckTypeOutlier,
			Channels: []domain.Channel{
				domain.ChannelEquTemp, domain.ChannelLicorPress, domain.ChannelLabPress, domain.ChannelEquPress,
			},
			Parameters: map[string]any{"window": "72h", "estimator": "std", "factor": 5.0},
		},
	}

	for _, sel := range []domain.Mode{domain.ModeAtm, domain.ModeEqu} {
		cfgs = append(cfgs, domain.CheckConfig{
			ID:         "outlier-co2-" + string(sel),
			Type:       domain.CheckTypeOutlier,
			Channels:   []domain.Channel{domain.ChannelCO2, domain.ChannelCO2Avg},
			Selection:  sel,
			Parameters: map[string]any{"window": "72h", "estimator": "std", "factor": 5.0},
		})
	}

	gradients := []struct {
		ch        domain.Channel
		threshold float64
		sensitive bool
	}{
		{domain.ChannelEquTemp, 3, false},
		{domain.ChannelLicorPress, 50, false},
		{domain.ChannelLabPress, 50, false},
		{domain.ChannelEquPress, 2, true},
		{domain.ChannelCO2, 20, true},
		{domain.ChannelCO2Avg, 20, true},
	}
	for _, g := range gradients {
		cfgs = append(cfgs, domain.CheckConfig{
			ID:       "gradient-" + string(g.ch),
			Type:     domain.CheckTypeGradient,
			Channels: []domain.Channel{g.ch},
			Parameters: map[string]any{
				"threshold":      g.threshold,
				"mode_sensitive": g.sensitive,
				"max_gap":        "300s",
			},
		})
	}
	return cfgs
}

func qcChannels() []domain.Channel {
	return []domain.Channel{
		domain.ChannelEquTemp, domain.ChannelLicorPress, domain.ChannelLabPress,
		domain.ChannelEquPress, domain.ChannelCO2, domain.ChannelCO2Avg,
	}
}
