package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"BreakoutScanner/internal/model"
)

// barsClient is the subset of the Alpaca market data client the fetcher uses.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaFetcher implements PriceProvider using Alpaca historical bars.
type AlpacaFetcher struct {
	client barsClient
	now    func() time.Time
}

// NewAlpacaFetcher creates a fetcher authenticated with the given key pair.
func NewAlpacaFetcher(apiKey, apiSecret string) *AlpacaFetcher {
	return &AlpacaFetcher{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		now: time.Now,
	}
}

func (f *AlpacaFetcher) Name() string { return "alpaca" }

func alpacaTimeFrame(interval string) (marketdata.TimeFrame, error) {
	switch interval {
	case "1d", "":
		return marketdata.OneDay, nil
	case "1wk":
		return marketdata.OneWeek, nil
	case "1h":
		return marketdata.OneHour, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("alpaca: unsupported interval %q", interval)
	}
}

func (f *AlpacaFetcher) FetchHistory(ctx context.Context, symbol string, periodDays int, interval string) (model.PriceSeries, error) {
	now := f.now()
	series := model.PriceSeries{Symbol: symbol, FetchedAt: now}
	if err := ctx.Err(); err != nil {
		return series, err
	}
	tf, err := alpacaTimeFrame(interval)
	if err != nil {
		return series, err
	}

	bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Adjustment: marketdata.Split,
		Start:      now.AddDate(0, 0, -periodDays),
		End:        now,
	})
	if err != nil {
		// Unknown symbols come back as a 4xx "invalid symbol" style error.
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "invalid symbol") || strings.Contains(msg, "not found") {
			return series, nil
		}
		return series, fmt.Errorf("alpaca bars: %w", err)
	}

	series.Points = make([]model.PricePoint, len(bars))
	for i, b := range bars {
		series.Points[i] = model.PricePoint{Time: b.Timestamp.UTC(), Close: b.Close}
	}
	return series, nil
}
