package backtest

import (
	"errors"
	"testing"

	"backlab/internal/domain"
)

func TestResolveParamsDefaultsValid(t *testing.T) {
	for _, strategy := range domain.Strategies() {
		for _, interval := range domain.Intervals() {
			p, err := ResolveParams(strategy, interval, nil)
			if err != nil {
				t.Fatalf("ResolveParams(%s, %s, nil): %v", strategy, interval, err)
			}
			if p.FastWindow < 1 || p.SlowWindow < 1 {
				t.Errorf("%s/%s: windows must be >= 1, got %+v", strategy, interval, p)
			}
			if p.FastWindow >= p.SlowWindow {
				t.Errorf("%s/%s: fast_window %d not < slow_window %d", strategy, interval, p.FastWindow, p.SlowWindow)
			}
			if strategy == domain.StrategyMACDCrossover && p.SignalWindow < 1 {
				t.Errorf("%s/%s: signal_window must be >= 1, got %d", strategy, interval, p.SignalWindow)
			}
		}
	}
}

func TestResolveParamsWeeklyMACDDefaults(t *testing.T) {
	// Empty overrides on 1wk must return the weekly table entry, never
	// another interval's defaults.
	p, err := ResolveParams(domain.StrategyMACDCrossover, domain.Interval1Week, map[string]float64{})
	if err != nil {
		t.Fatalf("ResolveParams: %v", err)
	}
	want := Params{FastWindow: 6, SlowWindow: 13, SignalWindow: 5}
	if p != want {
		t.Errorf("weekly MACD defaults = %+v, want %+v", p, want)
	}
}

func TestResolveParamsOverrideMerge(t *testing.T) {
	// A single override replaces one field and leaves the rest at the
	// interval defaults.
	p, err := ResolveParams(domain.StrategySMACrossover, domain.Interval1Hour, map[string]float64{"fast_window": 5})
	if err != nil {
		t.Fatalf("ResolveParams: %v", err)
	}
	if p.FastWindow != 5 {
		t.Errorf("FastWindow = %d, want 5", p.FastWindow)
	}
	if p.SlowWindow != 30 {
		t.Errorf("SlowWindow = %d, want default 30", p.SlowWindow)
	}
}

func TestResolveParamsRejections(t *testing.T) {
	tests := []struct {
		name      string
		strategy  domain.StrategyID
		interval  domain.Interval
		overrides map[string]float64
	}{
		{"unknown field", domain.StrategySMACrossover, domain.Interval1Hour, map[string]float64{"window": 20}},
		{"signal window on sma", domain.StrategySMACrossover, domain.Interval1Hour, map[string]float64{"signal_window": 9}},
		{"fast >= slow", domain.StrategySMACrossover, domain.Interval1Hour, map[string]float64{"fast_window": 30}},
		{"fractional window", domain.StrategyMACDCrossover, domain.Interval1Hour, map[string]float64{"fast_window": 2.5}},
		{"zero window", domain.StrategyMACDCrossover, domain.Interval1Hour, map[string]float64{"signal_window": 0}},
		{"unsupported strategy", domain.StrategyID("bogus"), domain.Interval1Hour, nil},
		{"unsupported interval", domain.StrategySMACrossover, domain.Interval("1d"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveParams(tt.strategy, tt.interval, tt.overrides)
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("ResolveParams = %v, want ConfigError", err)
			}
		})
	}
}
