package factory

import (
	"fmt"
	"sync"
	"time"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
	"github.com/renjie/prism-co2/pkg/core/services/rules"
)

// CheckBuilder defines the contract for creating a specific check logic
type CheckBuilder func(cfg domain.CheckConfig) (ports.FlagCheck, error)

// CheckFactory is the registry for all available check types
type CheckFactory struct {
	builders map[domain.CheckType]CheckBuilder
	mu       sync.RWMutex
}

var (
	instance *CheckFactory
	once     sync.Once
)

// GetCheckFactory returns the singleton instance
func GetCheckFactory() *CheckFactory {
	once.Do(func() {
		instance = NewCheckFactory()
	})
	return instance
}

// NewCheckFactory creates a new CheckFactory instance with built-in checks registered
// This constructor is useful for testing where you need isolated factory instances
func NewCheckFactory() *CheckFactory {
	f := &CheckFactory{
		builders: make(map[domain.CheckType]CheckBuilder),
	}
	// Register built-in checks
	f.Register(domain.CheckTypeRange, buildRangeCheck)
	f.Register(domain.CheckTypePeriod, buildPeriodCheck)
	f.Register(domain.CheckTypeConstant, buildConstantCheck)
	f.Register(domain.CheckTypeOutlier, buildOutlierCheck)
	f.Register(domain.CheckTypeGradient, buildGradientCheck)
	return f
}

// Register adds or overrides a check builder
func (f *CheckFactory) Register(checkType domain.CheckType, builder CheckBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[checkType] = builder
}

// CreateCheck instantiates a check strategy based on configuration
func (f *CheckFactory) CreateCheck(cfg domain.CheckConfig) (ports.FlagCheck, error) {
	f.mu.RLock()
	builder, ok := f.builders[cfg.Type]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no builder registered for check type: %s", cfg.Type)
	}
	if cfg.Selection != domain.ModeUnknown && cfg.Type != domain.CheckTypeOutlier {
		return nil, fmt.Errorf("check %s: selection is only supported by %s checks", cfg.ID, domain.CheckTypeOutlier)
	}
	return builder(cfg)
}

// CreateChecks builds every enabled check, in order
func (f *CheckFactory) CreateChecks(cfgs []domain.CheckConfig) ([]ports.FlagCheck, error) {
	checks := make([]ports.FlagCheck, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Disabled {
			continue
		}
		c, err := f.CreateCheck(cfg)
		if err != nil {
			return nil, fmt.Errorf("convert check %s failed: %w", cfg.ID, err)
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// buildRangeCheck (Built-in implementation)
// parameters: min/max shared by all channels, or limits: {channel: [min, max]}; coupled: bool
func buildRangeCheck(cfg domain.CheckConfig) (ports.FlagCheck, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("invalid parameters for RANGE check: need at least one channel")
	}
	limits, _ := cfg.Parameters["limits"].(map[string]any)
	shared := [2]float64{}
	var hasShared bool
	if min, ok1 := number(cfg.Parameters["min"]); ok1 {
		max, ok2 := number(cfg.Parameters["max"])
		if !ok2 {
			return nil, fmt.Errorf("invalid parameters for RANGE check: need min(float) and max(float)")
		}
		shared, hasShared = [2]float64{min, max}, true
	}

	check := &rules.RangeCheck{}
	check.Coupled, _ = cfg.Parameters["coupled"].(bool)
	for _, ch := range cfg.Channels {
		b := rules.Bound{Channel: ch}
		switch {
		case limits != nil && limits[string(ch)] != nil:
			pair, ok := pairOf(limits[string(ch)])
			if !ok {
				return nil, fmt.Errorf("invalid limits for RANGE check channel %q: need [min, max]", ch)
			}
			b.Min, b.Max = pair[0], pair[1]
		case hasShared:
			b.Min, b.Max = shared[0], shared[1]
		default:
			return nil, fmt.Errorf("invalid parameters for RANGE check: no limits for channel %q", ch)
		}
		if b.Min > b.Max {
			return nil, fmt.Errorf("invalid parameters for RANGE check channel %q: min > max", ch)
		}
		check.Bounds = append(check.Bounds, b)
	}
	return check, nil
}

// buildPeriodCheck parameters: cutover ("2006-01-02 15:04:05" or timestamp)
func buildPeriodCheck(cfg domain.CheckConfig) (ports.FlagCheck, error) {
	cutover := rules.DefaultCutover
	switch v := cfg.Parameters["cutover"].(type) {
	case nil:
	case time.Time:
		cutover = v
	case string:
		t, err := time.Parse(time.DateTime, v)
		if err != nil {
			return nil, fmt.Errorf("invalid cutover for PERIOD check: %w", err)
		}
		cutover = t
	default:
		return nil, fmt.Errorf("invalid cutover for PERIOD check: %v", v)
	}
	return &rules.PeriodCheck{Cutover: cutover}, nil
}

// buildConstantCheck parameters: max_duration ("120m")
func buildConstantCheck(cfg domain.CheckConfig) (ports.FlagCheck, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("invalid parameters for CONSTANT check: need at least one channel")
	}
	d, err := duration(cfg.Parameters, "max_duration", rules.DefaultMaxConstant)
	if err != nil {
		return nil, err
	}
	return &rules.ConstantCheck{Channels: cfg.Channels, MaxDuration: d}, nil
}

// buildOutlierCheck parameters: window ("72h"), estimator (std|mad), factor
func buildOutlierCheck(cfg domain.CheckConfig) (ports.FlagCheck, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("invalid parameters for OUTLIER check: need at least one channel")
	}
	window, err := duration(cfg.Parameters, "window", rules.DefaultOutlierWindow)
	if err != nil {
		return nil, err
	}
	factor := rules.DefaultOutlierFactor
	if v, ok := number(cfg.Parameters["factor"]); ok {
		factor = v
	}
	estimator := rules.EstimatorStd
	if v, ok := cfg.Parameters["estimator"].(string); ok {
		estimator = rules.Estimator(v)
	}
	if estimator != rules.EstimatorStd && estimator != rules.EstimatorMAD {
		return nil, fmt.Errorf("invalid estimator for OUTLIER check: %q", estimator)
	}
	return &rules.OutlierCheck{
		Channels:  cfg.Channels,
		Selection: cfg.Selection,
		Window:    window,
		Estimator: estimator,
		Factor:    factor,
	}, nil
}

// buildGradientCheck parameters: threshold, mode_sensitive, max_gap ("300s")
func buildGradientCheck(cfg domain.CheckConfig) (ports.FlagCheck, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("invalid parameters for GRADIENT check: need at least one channel")
	}
	threshold, ok := number(cfg.Parameters["threshold"])
	if !ok {
		return nil, fmt.Errorf("invalid parameters for GRADIENT check: need threshold(float)")
	}
	gap, err := duration(cfg.Parameters, "max_gap", rules.DefaultMaxGap)
	if err != nil {
		return nil, err
	}
	sensitive, _ := cfg.Parameters["mode_sensitive"].(bool)
	return &rules.GradientCheck{
		Channels:      cfg.Channels,
		Threshold:     threshold,
		ModeSensitive: sensitive,
		MaxGap:        gap,
	}, nil
}

// number accepts the numeric kinds produced by YAML and JSON decoders
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func pairOf(v any) ([2]float64, bool) {
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		return [2]float64{}, false
	}
	lo, ok1 := number(list[0])
	hi, ok2 := number(list[1])
	return [2]float64{lo, hi}, ok1 && ok2
}

func duration(params map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("invalid %s: want duration string, got %v", key, v)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
