// Package domain defines the core types shared across the backlab
// platform: price bars and series, trading signals, executed trades,
// equity curves, backtest results, and the persistence records built on
// top of them.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// Interval identifies the aggregation granularity of a price series.
type Interval string

const (
	Interval1Min  Interval = "1m"
	Interval5Min  Interval = "5m"
	Interval15Min Interval = "15m"
	Interval1Hour Interval = "1h"
	Interval1Week Interval = "1wk"
)

// Intervals returns every supported interval, finest first.
func Intervals() []Interval {
	return []Interval{Interval1Min, Interval5Min, Interval15Min, Interval1Hour, Interval1Week}
}

// ParseInterval validates an interval label supplied by a caller.
func ParseInterval(s string) (Interval, error) {
	for _, iv := range Intervals() {
		if s == string(iv) {
			return iv, nil
		}
	}
	return "", &ConfigError{Reason: fmt.Sprintf("unsupported interval %q", s)}
}

// StrategyID identifies a backtest strategy variant.
type StrategyID string

const (
	StrategySMACrossover  StrategyID = "sma_crossover"
	StrategyMACDCrossover StrategyID = "macd_crossover"
)

// Strategies returns every supported strategy id.
func Strategies() []StrategyID {
	return []StrategyID{StrategyMACDCrossover, StrategySMACrossover}
}

// ParseStrategy validates a strategy id supplied by a caller.
func ParseStrategy(s string) (StrategyID, error) {
	for _, id := range Strategies() {
		if s == string(id) {
			return id, nil
		}
	}
	return "", &ConfigError{Reason: fmt.Sprintf("unsupported strategy %q", s)}
}

// SignalDirection is the action a strategy emits for one bar.
type SignalDirection string

const (
	SignalBuy  SignalDirection = "buy"
	SignalSell SignalDirection = "sell"
	SignalHold SignalDirection = "hold"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLCV observation for a fixed time interval.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// PriceSeries is an ordered, time-indexed sequence of bars for one
// (symbol, interval) pair. It is owned by the caller and read-only to the
// backtest engine.
type PriceSeries struct {
	Symbol   string
	Interval Interval
	Bars     []Bar
}

// Validate checks the structural invariants of the series: every bar has
// a timestamp and a positive close, and timestamps are strictly
// increasing. Gaps wider than the interval are tolerated, never
// interpolated.
func (s *PriceSeries) Validate() error {
	for i := range s.Bars {
		b := &s.Bars[i]
		if b.Timestamp.IsZero() {
			return &DataIntegrityError{Reason: fmt.Sprintf("bar %d has no timestamp", i)}
		}
		if b.Close <= 0 {
			return &DataIntegrityError{Reason: fmt.Sprintf("bar %d at %s has non-positive close %v", i, b.Timestamp.Format(time.RFC3339), b.Close)}
		}
		if i > 0 && !b.Timestamp.After(s.Bars[i-1].Timestamp) {
			return &DataIntegrityError{Reason: fmt.Sprintf("bar %d at %s does not advance past bar %d", i, b.Timestamp.Format(time.RFC3339), i-1)}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Backtest outputs
// ---------------------------------------------------------------------------

// Signal is one dated trade instruction. Strategies emit exactly one per
// bar once their warm-up period has elapsed; SignalHold is the common
// case.
type Signal struct {
	Timestamp time.Time       `json:"timestamp"`
	Direction SignalDirection `json:"direction"`
}

// Position is the single open holding tracked by the execution
// simulator. At most one position is open at a time; shorting is not
// modeled.
type Position struct {
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// Trade records a completed round trip: a buy that was later closed by a
// sell. Immutable once recorded.
type Trade struct {
	EntryTimestamp time.Time `json:"entry_timestamp"`
	ExitTimestamp  time.Time `json:"exit_timestamp"`
	EntryPrice     float64   `json:"entry_price"`
	ExitPrice      float64   `json:"exit_price"`
	Quantity       float64   `json:"quantity"`
	RealizedPnL    float64   `json:"realized_pnl"`
}

// EquityPoint is the ledger snapshot taken after each bar. TotalEquity
// is always Cash + PositionValue.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
	TotalEquity   float64   `json:"total_equity"`
}

// BacktestResult is the sole output of a backtest run.
type BacktestResult struct {
	FinalEquity    float64       `json:"final_equity"`
	TotalReturnPct float64       `json:"total_return_pct"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"`
	WinRate        float64       `json:"win_rate"`
	TradeCount     int           `json:"trade_count"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
}

// ---------------------------------------------------------------------------
// Persistence records
// ---------------------------------------------------------------------------

// User is a registered account that owns backtest runs.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// BacktestRun is a stored backtest: the request that produced it plus
// the full result.
type BacktestRun struct {
	ID             string
	UserID         int64
	Strategy       StrategyID
	Symbol         string
	Interval       Interval
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Params         map[string]float64
	Result         *BacktestResult
	TotalReturnPct float64
	CreatedAt      time.Time
}

// RunSummary is the listing view of a stored run, without the equity
// curve and trade detail.
type RunSummary struct {
	ID             string     `json:"id"`
	Strategy       StrategyID `json:"strategy"`
	Symbol         string     `json:"symbol"`
	Interval       Interval   `json:"interval"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	InitialCapital float64    `json:"initial_capital"`
	TotalReturnPct float64    `json:"total_return_pct"`
	CreatedAt      time.Time  `json:"created_at"`
}
