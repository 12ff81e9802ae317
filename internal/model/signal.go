package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SignalMarker is the table text for a row whose latest point is a crossover.
const SignalMarker = "BUY"

// NoValidTickersMessage is shown when a pass produced no rows.
const NoValidTickersMessage = "no valid tickers or signals"

// NoDataMessage is the per-ticker notice for skipped tickers.
const NoDataMessage = "no data"

// ScanRow is one ranked table row.
type ScanRow struct {
	Ticker          string  `json:"ticker"`
	Close           float64 `json:"close"`
	Smoothed        float64 `json:"smoothed"`
	Delta           float64 `json:"delta"`
	Crossover       bool    `json:"crossover"`
	ChatterCount    int     `json:"chatter_count"`
	ChatterPreview  string  `json:"chatter_preview"`
	ChatterDegraded bool    `json:"chatter_degraded"`
}

// NewScanRow builds a row from the latest annotated point. Delta uses unrounded values.
func NewScanRow(ticker string, latest AnnotatedPoint, preview string, count int) ScanRow {
	if count < 0 {
		count = 0
	}
	return ScanRow{
		Ticker:         ticker,
		Close:          latest.Close,
		Smoothed:       latest.Smoothed,
		Delta:          latest.Close - latest.Smoothed,
		Crossover:      latest.Crossover,
		ChatterCount:   count,
		ChatterPreview: preview,
	}
}

// Round2 rounds v to two decimals for display.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Fixed2 formats v with exactly two decimals.
func Fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func (r ScanRow) DisplayClose() float64    { return Round2(r.Close) }
func (r ScanRow) DisplaySmoothed() float64 { return Round2(r.Smoothed) }
func (r ScanRow) DisplayDelta() float64    { return Round2(r.Delta) }

// Marker returns the signal column text.
func (r ScanRow) Marker() string {
	if r.Crossover {
		return SignalMarker
	}
	return "-"
}

// ScanTable is sorted by crossover flag, then chatter count, both descending.
type ScanTable []ScanRow

// SortTable orders rows in place; ties keep their input order.
func SortTable(rows ScanTable) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Crossover != rows[j].Crossover {
			return rows[i].Crossover
		}
		return rows[i].ChatterCount > rows[j].ChatterCount
	})
}

// Notice tells the caller why a ticker has no row.
type Notice struct {
	Ticker  string `json:"ticker"`
	Message string `json:"message"`
}

// ScanResult is the output of one aggregation pass.
type ScanResult struct {
	PassID         string        `json:"pass_id"`
	Tickers        []string      `json:"tickers"`
	Rows           ScanTable     `json:"rows"`
	Notices        []Notice      `json:"notices"`
	NoValidTickers bool          `json:"no_valid_tickers"`
	Message        string        `json:"message,omitempty"`
	Detail         string        `json:"detail,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// HasRow reports whether ticker produced a row in this pass.
func (r *ScanResult) HasRow(ticker string) bool {
	for _, row := range r.Rows {
		if row.Ticker == ticker {
			return true
		}
	}
	return false
}

// DetailCandidates lists tickers that produced a row, in input order, without duplicates.
func (r *ScanResult) DetailCandidates() []string {
	seen := make(map[string]bool, len(r.Tickers))
	var out []string
	for _, t := range r.Tickers {
		if seen[t] || !r.HasRow(t) {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// SelectDetail returns requested when it produced a row, otherwise the default detail ticker.
func (r *ScanResult) SelectDetail(requested string) string {
	if requested != "" && r.HasRow(requested) {
		return requested
	}
	return r.Detail
}
