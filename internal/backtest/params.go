package backtest

import (
	"fmt"
	"math"

	"backlab/internal/domain"
)

// Params is a fully resolved parameter set for one strategy run.
// SignalWindow is only meaningful for the MACD crossover; it is zero for
// the SMA crossover.
type Params struct {
	FastWindow   int `json:"fast_window"`
	SlowWindow   int `json:"slow_window"`
	SignalWindow int `json:"signal_window,omitempty"`
}

// defaultParams maps (strategy, interval) to its canonical defaults. The
// table is initialized once and never mutated: finer granularities get
// longer windows so signal frequency stays roughly stable across
// intervals. Weekly MACD defaults are the classic 12/26/9 halved.
var defaultParams = map[domain.StrategyID]map[domain.Interval]Params{
	domain.StrategySMACrossover: {
		domain.Interval1Min:  {FastWindow: 30, SlowWindow: 90},
		domain.Interval5Min:  {FastWindow: 20, SlowWindow: 60},
		domain.Interval15Min: {FastWindow: 14, SlowWindow: 42},
		domain.Interval1Hour: {FastWindow: 10, SlowWindow: 30},
		domain.Interval1Week: {FastWindow: 4, SlowWindow: 12},
	},
	domain.StrategyMACDCrossover: {
		domain.Interval1Min:  {FastWindow: 24, SlowWindow: 52, SignalWindow: 18},
		domain.Interval5Min:  {FastWindow: 16, SlowWindow: 36, SignalWindow: 12},
		domain.Interval15Min: {FastWindow: 12, SlowWindow: 26, SignalWindow: 9},
		domain.Interval1Hour: {FastWindow: 12, SlowWindow: 26, SignalWindow: 9},
		domain.Interval1Week: {FastWindow: 6, SlowWindow: 13, SignalWindow: 5},
	},
}

// DefaultParams returns the canonical defaults for a (strategy, interval)
// pair.
func DefaultParams(strategy domain.StrategyID, interval domain.Interval) (Params, error) {
	table, ok := defaultParams[strategy]
	if !ok {
		return Params{}, &domain.ConfigError{Reason: fmt.Sprintf("unsupported strategy %q", strategy)}
	}
	p, ok := table[interval]
	if !ok {
		return Params{}, &domain.ConfigError{Reason: fmt.Sprintf("unsupported interval %q", interval)}
	}
	return p, nil
}

// ResolveParams merges caller overrides field-by-field over the interval
// defaults for the strategy. Unknown override keys and out-of-range
// values are rejected; a rejected override never partially invalidates
// the defaults.
func ResolveParams(strategy domain.StrategyID, interval domain.Interval, overrides map[string]float64) (Params, error) {
	p, err := DefaultParams(strategy, interval)
	if err != nil {
		return Params{}, err
	}

	for name, v := range overrides {
		if v != math.Trunc(v) || v < 1 {
			return Params{}, &domain.ConfigError{Reason: fmt.Sprintf("parameter %q must be a whole number >= 1, got %v", name, v)}
		}
		n := int(v)
		switch name {
		case "fast_window":
			p.FastWindow = n
		case "slow_window":
			p.SlowWindow = n
		case "signal_window":
			if strategy != domain.StrategyMACDCrossover {
				return Params{}, &domain.ConfigError{Reason: fmt.Sprintf("parameter %q is not valid for strategy %q", name, strategy)}
			}
			p.SignalWindow = n
		default:
			return Params{}, &domain.ConfigError{Reason: fmt.Sprintf("unknown parameter %q for strategy %q", name, strategy)}
		}
	}

	if err := p.validate(strategy); err != nil {
		return Params{}, err
	}
	return p, nil
}

// validate enforces the strategy's parameter range predicate.
func (p Params) validate(strategy domain.StrategyID) error {
	if p.FastWindow < 1 || p.SlowWindow < 1 {
		return &domain.ConfigError{Reason: "window lengths must be >= 1"}
	}
	if p.FastWindow >= p.SlowWindow {
		return &domain.ConfigError{Reason: fmt.Sprintf("fast_window (%d) must be less than slow_window (%d)", p.FastWindow, p.SlowWindow)}
	}
	if strategy == domain.StrategyMACDCrossover && p.SignalWindow < 1 {
		return &domain.ConfigError{Reason: "signal_window must be >= 1"}
	}
	return nil
}

// Map returns the parameter set in override form, used when persisting
// the resolved parameters alongside a run.
func (p Params) Map(strategy domain.StrategyID) map[string]float64 {
	m := map[string]float64{
		"fast_window": float64(p.FastWindow),
		"slow_window": float64(p.SlowWindow),
	}
	if strategy == domain.StrategyMACDCrossover {
		m["signal_window"] = float64(p.SignalWindow)
	}
	return m
}
