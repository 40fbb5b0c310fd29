package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"backlab/internal/domain"
	"backlab/internal/store"
)

// Compile-time interface check.
var _ BarProvider = (*CachedProvider)(nil)

// CachedProvider is a read-through cache in front of another
// BarProvider. Hits are served from the local Parquet cache; misses go
// to the upstream provider and the fetched bars are merged back into
// the cache.
type CachedProvider struct {
	upstream BarProvider
	cache    store.BarCache
	log      *slog.Logger
}

// NewCachedProvider wraps upstream with the given bar cache.
func NewCachedProvider(upstream BarProvider, cache store.BarCache) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		cache:    cache,
		log:      slog.Default().With("provider", "cached"),
	}
}

// GetBars serves from the cache when it fully covers [start, end];
// otherwise it fetches from upstream and caches the result. Coverage is
// judged by the cached range touching both endpoints' neighborhoods,
// one interval of slack on each side, since markets have closed hours.
func (p *CachedProvider) GetBars(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) (*domain.PriceSeries, error) {
	symbol = strings.ToUpper(symbol)

	cached, err := p.cache.ReadBars(symbol, interval, start, end)
	if err == nil && covers(cached, interval, start, end) {
		p.log.Debug("cache hit", "symbol", symbol, "interval", interval, "count", len(cached))
		return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: cached}, nil
	}

	series, err := p.upstream.GetBars(ctx, symbol, interval, start, end)
	if err != nil {
		// A partial cache is better than nothing when upstream has no
		// fresh data for the range.
		if errors.Is(err, ErrNoData) && len(cached) > 0 {
			return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: cached}, nil
		}
		return nil, err
	}

	if werr := p.cache.WriteBars(symbol, interval, series.Bars); werr != nil {
		// Cache write failures are not fatal to the request.
		p.log.Warn("cache write failed", "symbol", symbol, "err", werr)
	}
	return series, nil
}

// covers reports whether cached bars plausibly span the requested
// range.
func covers(bars []domain.Bar, interval domain.Interval, start, end time.Time) bool {
	if len(bars) == 0 {
		return false
	}
	slack := intervalDuration(interval)
	first, last := bars[0].Timestamp, bars[len(bars)-1].Timestamp
	return !first.After(start.Add(slack)) && !last.Before(end.Add(-slack))
}

func intervalDuration(interval domain.Interval) time.Duration {
	switch interval {
	case domain.Interval1Min:
		return time.Minute
	case domain.Interval5Min:
		return 5 * time.Minute
	case domain.Interval15Min:
		return 15 * time.Minute
	case domain.Interval1Hour:
		return time.Hour
	case domain.Interval1Week:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
