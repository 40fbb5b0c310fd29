package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backlab/internal/domain"
	"backlab/internal/util"
)

// Compile-time interface check.
var _ BarProvider = (*AlpacaProvider)(nil)

const (
	fetchAttempts  = 3
	fetchBaseDelay = time.Second
)

// AlpacaProvider fetches historical bars from the Alpaca market-data
// API, retrying transient failures and respecting the API rate limit.
type AlpacaProvider struct {
	client  *marketdata.Client
	feed    string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaProvider creates an AlpacaProvider with the given
// credentials. ratePerMin bounds outgoing API calls.
func NewAlpacaProvider(apiKey, apiSecret, dataURL, feed string, ratePerMin int) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}

	return &AlpacaProvider{
		client:  marketdata.NewClient(opts),
		feed:    feed,
		limiter: util.NewRateLimiter(ratePerMin),
		log:     slog.Default().With("provider", "alpaca"),
	}
}

// GetBars fetches bars for one symbol from the Alpaca API.
func (p *AlpacaProvider) GetBars(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) (*domain.PriceSeries, error) {
	tf, err := timeFrameFor(interval)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var alpacaBars []marketdata.Bar
	err = util.Retry(ctx, fetchAttempts, fetchBaseDelay, func() error {
		var ferr error
		alpacaBars, ferr = p.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
			Feed:      marketdata.Feed(p.feed),
		})
		if ferr != nil {
			p.log.Warn("GetBars failed, will retry", "symbol", symbol, "err", ferr)
		}
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s %s: %w", symbol, interval, err)
	}
	if len(alpacaBars) == 0 {
		return nil, ErrNoData
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Timestamp: ab.Timestamp.UTC(),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}

	p.log.Info("fetched bars", "symbol", symbol, "interval", interval, "count", len(bars))
	return &domain.PriceSeries{Symbol: symbol, Interval: interval, Bars: bars}, nil
}

// timeFrameFor maps an interval to the Alpaca time frame.
func timeFrameFor(interval domain.Interval) (marketdata.TimeFrame, error) {
	switch interval {
	case domain.Interval1Min:
		return marketdata.OneMin, nil
	case domain.Interval5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case domain.Interval15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case domain.Interval1Hour:
		return marketdata.OneHour, nil
	case domain.Interval1Week:
		return marketdata.OneWeek, nil
	default:
		return marketdata.TimeFrame{}, &domain.ConfigError{Reason: fmt.Sprintf("unsupported interval %q", interval)}
	}
}
