package model

import "fmt"

// SignalParams are the window parameters a Signal Engine result depends on.
type SignalParams struct {
	PeriodDays int    // lookback window in calendar days
	Interval   string // provider bar interval, e.g. "1d"
	Span       int    // EMA span
	Adjust     bool   // bias-adjusted EWMA weights
}

// DefaultSignalParams mirrors the dashboard defaults: 90 days of daily bars, EMA-40.
func DefaultSignalParams() SignalParams {
	return SignalParams{PeriodDays: 90, Interval: "1d", Span: 40, Adjust: true}
}

// CacheKey identifies a memoized result for ticker under these parameters.
func (p SignalParams) CacheKey(ticker string) string {
	return fmt.Sprintf("series:%s:%dd:%s:ema%d:adj=%t", ticker, p.PeriodDays, p.Interval, p.Span, p.Adjust)
}
