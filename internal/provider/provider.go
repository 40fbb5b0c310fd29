// Package provider supplies historical price series to the backtest
// engine, from the Alpaca market-data API, a local Parquet cache, or a
// CSV file.
package provider

import (
	"context"
	"errors"
	"time"

	"backlab/internal/domain"
)

// ErrNoData is returned when a provider has no bars for the requested
// symbol and range.
var ErrNoData = errors.New("provider: no data for requested range")

// BarProvider fetches historical bars for one (symbol, interval) pair
// within [start, end].
type BarProvider interface {
	GetBars(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) (*domain.PriceSeries, error)
}
