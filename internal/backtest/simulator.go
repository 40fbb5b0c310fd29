package backtest

import (
	"time"

	"backlab/internal/domain"
)

// ledgerState is the two-state machine driven by signal direction.
type ledgerState int

const (
	stateFlat ledgerState = iota
	stateLong
)

// Simulate replays the signal sequence against the series bar-by-bar,
// maintaining a cash/position ledger. Sizing policy: a BUY while flat
// invests all available cash at that bar's close; a SELL while long
// closes the entire position and records a Trade. A BUY while long or a
// SELL while flat is ignored; HOLD never changes the ledger.
//
// One EquityPoint is appended per bar, warm-up bars included (equity
// equals the initial capital until the first fill). signals must be the
// engine-produced sequence aligned with the tail of series.Bars; a
// position still open at the last bar is marked-to-market in the final
// point, not force-closed.
func Simulate(series *domain.PriceSeries, signals []domain.Signal, initialCapital float64) ([]domain.Trade, []domain.EquityPoint) {
	bars := series.Bars
	warmup := len(bars) - len(signals)

	cash := initialCapital
	state := stateFlat
	var pos domain.Position
	var entryTime time.Time

	trades := []domain.Trade{}
	curve := make([]domain.EquityPoint, 0, len(bars))

	for i := range bars {
		price := bars[i].Close
		if i >= warmup {
			switch signals[i-warmup].Direction {
			case domain.SignalBuy:
				if state == stateFlat {
					pos = domain.Position{Quantity: cash / price, AvgEntryPrice: price}
					entryTime = bars[i].Timestamp
					cash = 0
					state = stateLong
				}
			case domain.SignalSell:
				if state == stateLong {
					cash = pos.Quantity * price
					trades = append(trades, domain.Trade{
						EntryTimestamp: entryTime,
						ExitTimestamp:  bars[i].Timestamp,
						EntryPrice:     pos.AvgEntryPrice,
						ExitPrice:      price,
						Quantity:       pos.Quantity,
						RealizedPnL:    (price - pos.AvgEntryPrice) * pos.Quantity,
					})
					pos = domain.Position{}
					state = stateFlat
				}
			}
		}

		var posValue float64
		if state == stateLong {
			posValue = pos.Quantity * price
		}
		curve = append(curve, domain.EquityPoint{
			Timestamp:     bars[i].Timestamp,
			Cash:          cash,
			PositionValue: posValue,
			TotalEquity:   cash + posValue,
		})
	}

	return trades, curve
}
