package backtest

import "backlab/internal/domain"

// Compile-time interface check.
var _ SignalGenerator = (*MACDCrossover)(nil)

// MACDCrossover emits BUY/SELL on strict sign changes of the difference
// between the MACD line (fast EMA minus slow EMA of the close) and its
// signal line (EMA of the MACD line). All three EMAs use the standard
// smoothing factor 2/(N+1), are seeded from the first bar, and are
// carried strictly forward bar-by-bar.
type MACDCrossover struct{}

// ID returns "macd_crossover".
func (m *MACDCrossover) ID() domain.StrategyID { return domain.StrategyMACDCrossover }

// WarmupBars returns slow_window + signal_window: the EMAs produce
// values from the first bar, but signals are suppressed until the signal
// line has absorbed a full signal window past the slow EMA's nominal
// span.
func (m *MACDCrossover) WarmupBars(p Params) int { return p.SlowWindow + p.SignalWindow }

// Generate runs a single forward pass, threading the three EMA
// accumulators through it.
func (m *MACDCrossover) Generate(series *domain.PriceSeries, p Params) ([]domain.Signal, error) {
	bars := series.Bars
	warmup := m.WarmupBars(p)
	if len(bars) <= warmup {
		return nil, &domain.InsufficientDataError{Have: len(bars), Need: warmup + 1}
	}

	alphaFast := 2.0 / (float64(p.FastWindow) + 1)
	alphaSlow := 2.0 / (float64(p.SlowWindow) + 1)
	alphaSig := 2.0 / (float64(p.SignalWindow) + 1)

	signals := make([]domain.Signal, 0, len(bars)-warmup)
	var emaFast, emaSlow, sigLine, prevDiff float64
	for i := range bars {
		close := bars[i].Close
		if i == 0 {
			emaFast = close
			emaSlow = close
		} else {
			emaFast = alphaFast*close + (1-alphaFast)*emaFast
			emaSlow = alphaSlow*close + (1-alphaSlow)*emaSlow
		}
		macd := emaFast - emaSlow
		if i == 0 {
			sigLine = macd
		} else {
			sigLine = alphaSig*macd + (1-alphaSig)*sigLine
		}

		diff := macd - sigLine
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
