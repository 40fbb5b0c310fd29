package backtest

import (
	"math"
	"testing"

	"backlab/internal/domain"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// signalsFor pairs directions with the tail of the series bars.
func signalsFor(series *domain.PriceSeries, dirs ...domain.SignalDirection) []domain.Signal {
	offset := len(series.Bars) - len(dirs)
	signals := make([]domain.Signal, len(dirs))
	for i, d := range dirs {
		signals[i] = domain.Signal{Timestamp: series.Bars[offset+i].Timestamp, Direction: d}
	}
	return signals
}

func TestSimulateRoundTrips(t *testing.T) {
	series := hourlySeries(10, 11, 12, 11, 10, 12)
	signals := signalsFor(series,
		domain.SignalBuy,  // flat -> long @10
		domain.SignalHold,
		domain.SignalSell, // long -> flat @12
		domain.SignalBuy,  // flat -> long @11
		domain.SignalBuy,  // no-op: already long
		domain.SignalSell, // long -> flat @12
	)

	trades, curve := Simulate(series, signals, 1000)

	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	if !near(trades[0].Quantity, 100) || !near(trades[0].RealizedPnL, 200) {
		t.Errorf("first trade qty=%v pnl=%v, want qty=100 pnl=200", trades[0].Quantity, trades[0].RealizedPnL)
	}
	if trades[1].RealizedPnL <= 0 {
		t.Errorf("second trade pnl = %v, want positive (bought 11, sold 12)", trades[1].RealizedPnL)
	}
	wantFinal := 1200.0 / 11 * 12
	if !near(curve[len(curve)-1].TotalEquity, wantFinal) {
		t.Errorf("final equity = %v, want %v", curve[len(curve)-1].TotalEquity, wantFinal)
	}
}

func TestSimulateLedgerConservation(t *testing.T) {
	series := hourlySeries(10, 9, 11, 8, 12, 7, 13)
	signals := signalsFor(series,
		domain.SignalSell, // no-op while flat
		domain.SignalBuy,
		domain.SignalHold,
		domain.SignalSell,
		domain.SignalBuy,
		domain.SignalHold,
		domain.SignalSell,
	)

	_, curve := Simulate(series, signals, 500)

	if len(curve) != len(series.Bars) {
		t.Fatalf("curve has %d points, want one per bar (%d)", len(curve), len(series.Bars))
	}
	for i, pt := range curve {
		if !near(pt.TotalEquity, pt.Cash+pt.PositionValue) {
			t.Errorf("point %d: total %v != cash %v + position %v", i, pt.TotalEquity, pt.Cash, pt.PositionValue)
		}
		if pt.Cash < 0 {
			t.Errorf("point %d: negative cash %v", i, pt.Cash)
		}
		if pt.PositionValue < 0 {
			t.Errorf("point %d: negative position value %v", i, pt.PositionValue)
		}
	}
}

func TestSimulateBuyWhileLongIsNoOp(t *testing.T) {
	series := hourlySeries(10, 20, 30)
	signals := signalsFor(series, domain.SignalBuy, domain.SignalBuy, domain.SignalHold)

	trades, curve := Simulate(series, signals, 1000)

	if len(trades) != 0 {
		t.Fatalf("got %d trades, want 0 (position never closed)", len(trades))
	}
	// Quantity fixed at 100 from the first BUY; the second BUY at 20
	// must not change the ledger.
	if !near(curve[1].PositionValue, 2000) || !near(curve[1].Cash, 0) {
		t.Errorf("point 1 = cash %v, position %v; want 0, 2000", curve[1].Cash, curve[1].PositionValue)
	}
	if !near(curve[2].TotalEquity, 3000) {
		t.Errorf("final equity = %v, want 3000 (marked to market, not closed)", curve[2].TotalEquity)
	}
}

func TestSimulateSellWhileFlatIsNoOp(t *testing.T) {
	series := hourlySeries(10, 9, 8)
	signals := signalsFor(series, domain.SignalSell, domain.SignalSell, domain.SignalHold)

	trades, curve := Simulate(series, signals, 750)

	if len(trades) != 0 {
		t.Fatalf("got %d trades, want 0", len(trades))
	}
	for i, pt := range curve {
		if !near(pt.TotalEquity, 750) || !near(pt.PositionValue, 0) {
			t.Errorf("point %d = %+v, want untouched 750 cash", i, pt)
		}
	}
}

func TestSimulateWarmupEquity(t *testing.T) {
	// Signals covering only the last two bars: the warm-up points must
	// report the initial capital untouched.
	series := hourlySeries(50, 60, 40, 30, 20)
	signals := signalsFor(series, domain.SignalHold, domain.SignalBuy)

	_, curve := Simulate(series, signals, 1000)

	for i := 0; i < 3; i++ {
		if !near(curve[i].TotalEquity, 1000) {
			t.Errorf("warm-up point %d equity = %v, want 1000", i, curve[i].TotalEquity)
		}
	}
	if !near(curve[4].PositionValue, 1000) {
		t.Errorf("final position value = %v, want 1000 (all-in at the close)", curve[4].PositionValue)
	}
}
