package backtest

import (
	"github.com/shopspring/decimal"

	"backlab/internal/domain"
)

// Metrics summarizes an equity curve and its closed trades.
type Metrics struct {
	FinalEquity    float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	WinRate        float64
	TradeCount     int
}

var oneHundred = decimal.NewFromInt(100)

// ComputeMetrics scores the equity curve. All intermediate arithmetic
// runs in decimal form; results are converted to float64 once at the
// end and rounded only at presentation time.
//
// Max drawdown tracks the running peak and reports the largest
// peak-to-trough decline as a positive percentage; it is 0 for a
// non-decreasing curve. Win rate counts trades with positive realized
// PnL over all closed trades and is defined as 0 when no trade closed.
func ComputeMetrics(curve []domain.EquityPoint, trades []domain.Trade, initialCapital float64) Metrics {
	capital := decimal.NewFromFloat(initialCapital)

	final := capital
	if len(curve) > 0 {
		final = decimal.NewFromFloat(curve[len(curve)-1].TotalEquity)
	}
	totalReturn := final.Sub(capital).Div(capital).Mul(oneHundred)

	var maxDD decimal.Decimal
	peak := capital
	for i := range curve {
		eq := decimal.NewFromFloat(curve[i].TotalEquity)
		if eq.GreaterThan(peak) {
			peak = eq
		}
		dd := decimal.NewFromInt(1).Sub(eq.Div(peak)).Mul(oneHundred)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}

	var winRate decimal.Decimal
	if len(trades) > 0 {
		wins := 0
		for i := range trades {
			if trades[i].RealizedPnL > 0 {
				wins++
			}
		}
		winRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(trades))))
	}

	return Metrics{
		FinalEquity:    final.InexactFloat64(),
		TotalReturnPct: totalReturn.InexactFloat64(),
		MaxDrawdownPct: maxDD.InexactFloat64(),
		WinRate:        winRate.InexactFloat64(),
		TradeCount:     len(trades),
	}
}
