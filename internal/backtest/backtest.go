package backtest

import (
	"fmt"

	"backlab/internal/domain"
)

// Runner composes parameter resolution, signal generation, execution
// simulation, and metric computation into a single backtest run. A
// Runner holds no mutable state: Run is a pure function of its inputs
// and independent runs may execute concurrently on the same Runner.
type Runner struct {
	registry *Registry
}

// NewRunner creates a Runner dispatching to the given strategy registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

// Run executes one backtest. It fails fast on the first error and never
// returns a partial result.
func (r *Runner) Run(strategy domain.StrategyID, series *domain.PriceSeries, initialCapital float64, overrides map[string]float64) (*domain.BacktestResult, error) {
	if initialCapital <= 0 {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("initial capital must be positive, got %v", initialCapital)}
	}
	if series == nil || len(series.Bars) == 0 {
		return nil, &domain.InsufficientDataError{Have: 0, Need: 1}
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	params, err := ResolveParams(strategy, series.Interval, overrides)
	if err != nil {
		return nil, err
	}
	gen, ok := r.registry.Get(strategy)
	if !ok {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("unsupported strategy %q", strategy)}
	}

	signals, err := gen.Generate(series, params)
	if err != nil {
		return nil, err
	}

	trades, curve := Simulate(series, signals, initialCapital)
	m := ComputeMetrics(curve, trades, initialCapital)

	return &domain.BacktestResult{
		FinalEquity:    m.FinalEquity,
		TotalReturnPct: m.TotalReturnPct,
		MaxDrawdownPct: m.MaxDrawdownPct,
		WinRate:        m.WinRate,
		TradeCount:     m.TradeCount,
		Trades:         trades,
		EquityCurve:    curve,
	}, nil
}
