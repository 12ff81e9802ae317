package strategy

import (
	"math"

	"BreakoutScanner/internal/calculator"
	"BreakoutScanner/internal/model"
)

// Annotate computes the smoothed line and crossover flags for a raw price series.
// It returns false when there is nothing to show: empty input, no usable closes,
// or no rows left after dropping undefined values.
func Annotate(series model.PriceSeries, params model.SignalParams) (model.AnnotatedSeries, bool) {
	empty := model.AnnotatedSeries{Symbol: series.Symbol, Span: params.Span}
	if series.Empty() || !hasAnyClose(series.Points) {
		return empty, false
	}

	smoothed, err := calculator.EWMA(series.Closes(), params.Span, params.Adjust)
	if err != nil {
		return empty, false
	}

	// Step a: drop rows whose close or smoothed value is undefined
	cleaned := make([]model.AnnotatedPoint, 0, len(series.Points))
	for i, p := range series.Points {
		if !p.HasClose() || !defined(smoothed[i]) {
			continue
		}
		cleaned = append(cleaned, model.AnnotatedPoint{Time: p.Time, Close: p.Close, Smoothed: smoothed[i]})
	}
	if len(cleaned) == 0 {
		return empty, false
	}

	// Step b: flag crossovers on the cleaned rows
	markCrossovers(cleaned)

	empty.Points = cleaned
	return empty, true
}

// markCrossovers sets Crossover where close moves from at-or-below to above the smoothed line.
// The first row has no prior point and is never flagged.
func markCrossovers(points []model.AnnotatedPoint) {
	for i := range points {
		if i == 0 {
			points[i].Crossover = false
			continue
		}
		prev, cur := points[i-1], points[i]
		points[i].Crossover = cur.Close > cur.Smoothed && prev.Close <= prev.Smoothed
	}
}

func hasAnyClose(points []model.PricePoint) bool {
	for _, p := range points {
		if p.HasClose() {
			return true
		}
	}
	return false
}

func defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
