package model

import (
	"math"
	"time"
)

// PricePoint is one daily close. A missing close is NaN.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}

// HasClose reports whether the close price is a usable number.
func (p PricePoint) HasClose() bool {
	return !math.IsNaN(p.Close) && !math.IsInf(p.Close, 0)
}

// PriceSeries holds raw price history for one ticker, ascending by time.
// An empty series is a valid outcome for unknown tickers or provider outages.
type PriceSeries struct {
	Symbol    string
	Points    []PricePoint
	FetchedAt time.Time
}

// Empty reports whether the series carries no rows at all.
func (s PriceSeries) Empty() bool { return len(s.Points) == 0 }

// Closes extracts the close column.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// AnnotatedPoint is a cleaned price row with its smoothed value and crossover flag.
type AnnotatedPoint struct {
	Time      time.Time `json:"time"`
	Close     float64   `json:"close"`
	Smoothed  float64   `json:"smoothed"`
	Crossover bool      `json:"crossover"`
}

// AnnotatedSeries is the Signal Engine output for one ticker.
type AnnotatedSeries struct {
	Symbol string           `json:"symbol"`
	Span   int              `json:"span"`
	Points []AnnotatedPoint `json:"points"`
}

// Empty reports whether the series is the "no data" result.
func (s AnnotatedSeries) Empty() bool { return len(s.Points) == 0 }

// Latest returns the last point. Callers must check Empty first.
func (s AnnotatedSeries) Latest() AnnotatedPoint {
	return s.Points[len(s.Points)-1]
}

// Crossovers returns the points flagged as crossovers.
func (s AnnotatedSeries) Crossovers() []AnnotatedPoint {
	var out []AnnotatedPoint
	for _, p := range s.Points {
		if p.Crossover {
			out = append(out, p)
		}
	}
	return out
}
