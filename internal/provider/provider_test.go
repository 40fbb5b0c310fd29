package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"backlab/internal/domain"
	"backlab/internal/store"
)

// stubProvider serves a fixed series, sliced to the requested range,
// and counts calls.
type stubProvider struct {
	series *domain.PriceSeries
	err    error
	calls  int
}

func (s *stubProvider) GetBars(_ context.Context, _ string, _ domain.Interval, start, end time.Time) (*domain.PriceSeries, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var bars []domain.Bar
	for _, b := range s.series.Bars {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			bars = append(bars, b)
		}
	}
	return &domain.PriceSeries{Symbol: s.series.Symbol, Interval: s.series.Interval, Bars: bars}, nil
}

func hourlyBars(start time.Time, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func TestCachedProviderReadThrough(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	upstream := &stubProvider{series: &domain.PriceSeries{
		Symbol:   "AAPL",
		Interval: domain.Interval1Hour,
		Bars:     hourlyBars(start, 10, 11, 12, 13),
	}}
	cache := store.NewParquetCache(t.TempDir())
	p := NewCachedProvider(upstream, cache)
	ctx := context.Background()

	// First request misses the cache and hits upstream.
	got, err := p.GetBars(ctx, "aapl", domain.Interval1Hour, start, end)
	if err != nil {
		t.Fatalf("GetBars (miss): %v", err)
	}
	if len(got.Bars) != 4 || upstream.calls != 1 {
		t.Fatalf("first call: %d bars, %d upstream calls; want 4 bars, 1 call", len(got.Bars), upstream.calls)
	}
	if got.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want uppercased AAPL", got.Symbol)
	}

	// Second identical request is served from the cache.
	got, err = p.GetBars(ctx, "AAPL", domain.Interval1Hour, start, end)
	if err != nil {
		t.Fatalf("GetBars (hit): %v", err)
	}
	if upstream.calls != 1 {
		t.Errorf("upstream called %d times, want 1 (second request should hit cache)", upstream.calls)
	}
	if len(got.Bars) != 4 || got.Bars[3].Close != 13 {
		t.Errorf("cached series = %d bars ending %v, want 4 ending 13", len(got.Bars), got.Bars[len(got.Bars)-1].Close)
	}
}

func TestCachedProviderWiderRangeRefetches(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	upstream := &stubProvider{series: &domain.PriceSeries{
		Symbol:   "MSFT",
		Interval: domain.Interval1Hour,
		Bars:     hourlyBars(start, 10, 11, 12, 13, 14, 15),
	}}
	cache := store.NewParquetCache(t.TempDir())
	p := NewCachedProvider(upstream, cache)
	ctx := context.Background()

	// Seed the cache with a narrow range.
	if _, err := p.GetBars(ctx, "MSFT", domain.Interval1Hour, start, start.Add(2*time.Hour)); err != nil {
		t.Fatalf("GetBars (seed): %v", err)
	}

	// A wider range is not covered, so upstream is consulted again.
	got, err := p.GetBars(ctx, "MSFT", domain.Interval1Hour, start, start.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("GetBars (wider): %v", err)
	}
	if upstream.calls != 2 {
		t.Errorf("upstream called %d times, want 2", upstream.calls)
	}
	if len(got.Bars) != 6 {
		t.Errorf("wider range returned %d bars, want 6", len(got.Bars))
	}
}

func TestCachedProviderUpstreamError(t *testing.T) {
	upstream := &stubProvider{err: ErrNoData}
	p := NewCachedProvider(upstream, store.NewParquetCache(t.TempDir()))

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := p.GetBars(context.Background(), "ZZZZ", domain.Interval1Hour, start, start.Add(time.Hour))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("GetBars error = %v, want ErrNoData", err)
	}
}

func TestTimeFrameFor(t *testing.T) {
	for _, iv := range domain.Intervals() {
		if _, err := timeFrameFor(iv); err != nil {
			t.Errorf("timeFrameFor(%q) returned error: %v", iv, err)
		}
	}

	_, err := timeFrameFor(domain.Interval("1d"))
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("timeFrameFor(1d) error = %v, want *ConfigError", err)
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing csv fixture: %v", err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-01-02T10:00:00Z,10,11,9,10.5,1000
2024-01-02T11:00:00Z,10.5,12,10,11.5,1500
`)

	series, err := LoadCSV(path, "aapl", domain.Interval1Hour)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if series.Symbol != "AAPL" || series.Interval != domain.Interval1Hour {
		t.Errorf("series = %s/%s, want AAPL/1h", series.Symbol, series.Interval)
	}
	if len(series.Bars) != 2 {
		t.Fatalf("LoadCSV returned %d bars, want 2", len(series.Bars))
	}
	if series.Bars[0].Close != 10.5 || series.Bars[1].Volume != 1500 {
		t.Errorf("parsed bars = %+v", series.Bars)
	}
	if err := series.Validate(); err != nil {
		t.Errorf("loaded series failed Validate: %v", err)
	}
}

func TestLoadCSVUnixTimestamps(t *testing.T) {
	// No header row: the first field is numeric, so it is data.
	path := writeCSV(t, "1704189600,10,11,9,10.5,1000\n1704193200,10.5,12,10,11.5,1500\n")

	series, err := LoadCSV(path, "AAPL", domain.Interval1Hour)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(series.Bars) != 2 {
		t.Fatalf("LoadCSV returned %d bars, want 2", len(series.Bars))
	}
	want := time.Unix(1704189600, 0).UTC()
	if !series.Bars[0].Timestamp.Equal(want) {
		t.Errorf("first timestamp = %v, want %v", series.Bars[0].Timestamp, want)
	}
}

func TestLoadCSVBadRow(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-01-02T10:00:00Z,10,11,9,not-a-number,1000
`)

	_, err := LoadCSV(path, "AAPL", domain.Interval1Hour)
	var die *domain.DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("LoadCSV error = %v, want *DataIntegrityError", err)
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	path := writeCSV(t, "timestamp,open,high,low,close,volume\n")
	if _, err := LoadCSV(path, "AAPL", domain.Interval1Hour); !errors.Is(err, ErrNoData) {
		t.Errorf("LoadCSV on header-only file error = %v, want ErrNoData", err)
	}
}
