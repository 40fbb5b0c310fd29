package backtest

import "backlab/internal/domain"

// Compile-time interface check.
var _ SignalGenerator = (*SMACrossover)(nil)

// SMACrossover emits BUY when the fast simple moving average of the
// close crosses above the slow one, SELL when it crosses below, HOLD
// otherwise. Both averages are maintained as rolling sums so the whole
// pass is O(n) rather than O(n * window).
type SMACrossover struct{}

// ID returns "sma_crossover".
func (s *SMACrossover) ID() domain.StrategyID { return domain.StrategySMACrossover }

// WarmupBars returns the slow window length: the first valid fast/slow
// difference appears one bar earlier and serves as the previous value
// for the first emitted signal.
func (s *SMACrossover) WarmupBars(p Params) int { return p.SlowWindow }

// Generate runs a single forward pass over the series.
func (s *SMACrossover) Generate(series *domain.PriceSeries, p Params) ([]domain.Signal, error) {
	bars := series.Bars
	warmup := s.WarmupBars(p)
	if len(bars) <= warmup {
		return nil, &domain.InsufficientDataError{Have: len(bars), Need: warmup + 1}
	}

	signals := make([]domain.Signal, 0, len(bars)-warmup)
	var fastSum, slowSum, prevDiff float64
	for i := range bars {
		close := bars[i].Close
		fastSum += close
		if i >= p.FastWindow {
			fastSum -= bars[i-p.FastWindow].Close
		}
		slowSum += close
		if i >= p.SlowWindow {
			slowSum -= bars[i-p.SlowWindow].Close
		}

		if i < p.SlowWindow-1 {
			continue
		}
		diff := fastSum/float64(p.FastWindow) - slowSum/float64(p.SlowWindow)
		if i >= warmup {
			signals = append(signals, domain.Signal{
				Timestamp: bars[i].Timestamp,
				Direction: crossoverDirection(prevDiff, diff),
			})
		}
		prevDiff = diff
	}
	return signals, nil
}
