package collector

import (
	"context"

	"BreakoutScanner/internal/model"
)

// PriceProvider fetches raw daily price history.
// Unknown tickers yield an empty series and a nil error.
type PriceProvider interface {
	FetchHistory(ctx context.Context, symbol string, periodDays int, interval string) (model.PriceSeries, error)
	Name() string
}
