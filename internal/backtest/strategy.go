// Package backtest implements the backtesting engine: crossover signal
// generation, the FLAT/LONG execution simulator, performance metrics,
// and the orchestrator that composes them into one run.
package backtest

import (
	"sort"

	"backlab/internal/domain"
)

// SignalGenerator is implemented by each strategy variant. Generators
// are stateless between calls; all per-run indicator state lives inside
// Generate's single forward pass, so the same (series, params) input
// always yields the same signal sequence.
type SignalGenerator interface {
	// ID returns the strategy identifier used for registry dispatch.
	ID() domain.StrategyID

	// WarmupBars returns the number of leading bars consumed before the
	// strategy emits its first signal under the given parameters.
	WarmupBars(p Params) int

	// Generate produces exactly one signal per bar after the warm-up
	// period, aligned with series.Bars[WarmupBars(p):]. A series with no
	// bars past the warm-up yields an InsufficientDataError.
	Generate(series *domain.PriceSeries, p Params) ([]domain.Signal, error)
}

// Registry holds the strategy variants for lookup and enumeration.
type Registry struct {
	generators map[domain.StrategyID]SignalGenerator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[domain.StrategyID]SignalGenerator),
	}
}

// DefaultRegistry returns a Registry with both built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&SMACrossover{})
	r.Register(&MACDCrossover{})
	return r
}

// Register adds a generator, keyed by its ID().
func (r *Registry) Register(g SignalGenerator) {
	r.generators[g.ID()] = g
}

// Get retrieves a generator by strategy id. The second return value
// indicates whether it was found.
func (r *Registry) Get(id domain.StrategyID) (SignalGenerator, bool) {
	g, ok := r.generators[id]
	return g, ok
}

// List returns a sorted slice of all registered strategy ids.
func (r *Registry) List() []domain.StrategyID {
	ids := make([]domain.StrategyID, 0, len(r.generators))
	for id := range r.generators {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// crossoverDirection detects a strict sign change of the indicator
// difference between consecutive bars. A tie (diff == 0) never triggers
// by itself: the tie bar holds, and the following bar compares against
// zero, so crossing through a tie still fires exactly once.
func crossoverDirection(prev, cur float64) domain.SignalDirection {
	switch {
	case prev <= 0 && cur > 0:
		return domain.SignalBuy
	case prev >= 0 && cur < 0:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
