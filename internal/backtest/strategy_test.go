package backtest

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"backlab/internal/domain"
)

// hourlySeries builds a 1h series from closing prices, one bar per hour.
func hourlySeries(closes ...float64) *domain.PriceSeries {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return &domain.PriceSeries{Symbol: "TEST", Interval: domain.Interval1Hour, Bars: bars}
}

func TestRegistryGetAndList(t *testing.T) {
	r := DefaultRegistry()

	g, ok := r.Get(domain.StrategySMACrossover)
	if !ok {
		t.Fatal("Get returned false for sma_crossover")
	}
	if g.ID() != domain.StrategySMACrossover {
		t.Errorf("ID() = %q, want %q", g.ID(), domain.StrategySMACrossover)
	}

	if _, ok := r.Get(domain.StrategyID("nonexistent")); ok {
		t.Error("Get returned true for unregistered strategy")
	}

	ids := r.List()
	if len(ids) != 2 {
		t.Fatalf("List returned %d ids, want 2", len(ids))
	}
	if ids[0] != domain.StrategyMACDCrossover || ids[1] != domain.StrategySMACrossover {
		t.Errorf("List = %v, want sorted [macd_crossover sma_crossover]", ids)
	}
}

func TestSMACrossoverTroughTurnUp(t *testing.T) {
	// Decline into a trough at 6 then recovery: the fast SMA must cross
	// above the slow SMA exactly once, on the way back up.
	series := hourlySeries(10, 10, 10, 9, 8, 7, 6, 7, 8, 9)
	p := Params{FastWindow: 2, SlowWindow: 3}

	gen := &SMACrossover{}
	signals, err := gen.Generate(series, p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if want := len(series.Bars) - p.SlowWindow; len(signals) != want {
		t.Fatalf("got %d signals, want %d (one per bar after warm-up)", len(signals), want)
	}

	var buys, sells int
	var buyTS time.Time
	for _, s := range signals {
		switch s.Direction {
		case domain.SignalBuy:
			buys++
			buyTS = s.Timestamp
		case domain.SignalSell:
			sells++
		}
	}
	if buys != 1 {
		t.Fatalf("got %d BUY signals, want exactly 1", buys)
	}
	// The BUY lands on the bar closing at 8, two bars past the trough.
	if !buyTS.Equal(series.Bars[8].Timestamp) {
		t.Errorf("BUY at %s, want %s", buyTS, series.Bars[8].Timestamp)
	}
	// The initial decline crosses fast below slow once; it fires while
	// the simulator would be flat.
	if sells != 1 {
		t.Errorf("got %d SELL signals, want 1", sells)
	}
}

func TestSMACrossoverTieEmitsNothing(t *testing.T) {
	// A flat series keeps fast == slow on every bar; a tie must never
	// trigger a signal by itself.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	signals, err := (&SMACrossover{}).Generate(hourlySeries(closes...), Params{FastWindow: 2, SlowWindow: 3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, s := range signals {
		if s.Direction != domain.SignalHold {
			t.Fatalf("flat series emitted %s at %s, want only HOLD", s.Direction, s.Timestamp)
		}
	}
}

func TestSMACrossoverInsufficientData(t *testing.T) {
	series := hourlySeries(10, 11, 12)
	_, err := (&SMACrossover{}).Generate(series, Params{FastWindow: 2, SlowWindow: 3})
	var insErr *domain.InsufficientDataError
	if !errors.As(err, &insErr) {
		t.Fatalf("Generate = %v, want InsufficientDataError", err)
	}
	if insErr.Have != 3 || insErr.Need != 4 {
		t.Errorf("error reports have=%d need=%d, want have=3 need=4", insErr.Have, insErr.Need)
	}
}

func TestMACDCrossoverVShape(t *testing.T) {
	// Ten declining bars followed by ten rising bars: the MACD line must
	// cross above its signal line exactly once after the trough, and
	// never back below within the window.
	var closes []float64
	for i := 0; i < 10; i++ {
		closes = append(closes, 100-2*float64(i))
	}
	for i := 1; i <= 10; i++ {
		closes = append(closes, 82+2*float64(i))
	}
	series := hourlySeries(closes...)
	p := Params{FastWindow: 3, SlowWindow: 5, SignalWindow: 2}

	gen := &MACDCrossover{}
	signals, err := gen.Generate(series, p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := len(closes) - gen.WarmupBars(p); len(signals) != want {
		t.Fatalf("got %d signals, want %d", len(signals), want)
	}

	var buys, sells int
	for _, s := range signals {
		switch s.Direction {
		case domain.SignalBuy:
			buys++
		case domain.SignalSell:
			sells++
		}
	}
	if buys != 1 {
		t.Errorf("got %d BUY signals, want exactly 1", buys)
	}
	if sells != 0 {
		t.Errorf("got %d SELL signals, want 0", sells)
	}
}

func TestMACDCrossoverInsufficientData(t *testing.T) {
	// Weekly defaults need slow+signal = 18 warm-up bars.
	series := hourlySeries(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	series.Interval = domain.Interval1Week
	_, err := (&MACDCrossover{}).Generate(series, Params{FastWindow: 6, SlowWindow: 13, SignalWindow: 5})
	var insErr *domain.InsufficientDataError
	if !errors.As(err, &insErr) {
		t.Fatalf("Generate = %v, want InsufficientDataError", err)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	var closes []float64
	for i := 0; i < 60; i++ {
		// Deterministic zig-zag with drift.
		closes = append(closes, 100+float64(i%7)-float64(i%3)+float64(i)/10)
	}
	series := hourlySeries(closes...)

	gens := []SignalGenerator{&SMACrossover{}, &MACDCrossover{}}
	params := []Params{
		{FastWindow: 4, SlowWindow: 9},
		{FastWindow: 4, SlowWindow: 9, SignalWindow: 3},
	}
	for i, gen := range gens {
		first, err := gen.Generate(series, params[i])
		if err != nil {
			t.Fatalf("%s first Generate: %v", gen.ID(), err)
		}
		second, err := gen.Generate(series, params[i])
		if err != nil {
			t.Fatalf("%s second Generate: %v", gen.ID(), err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: identical inputs produced different signal sequences", gen.ID())
		}
	}
}
