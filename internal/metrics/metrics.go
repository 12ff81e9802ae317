package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeDegraded = "degraded"
)

// Recorder records scanner activity. A nil *Recorder is a valid no-op.
type Recorder struct {
	reg          *prometheus.Registry
	fetches      *prometheus.CounterVec
	lookups      *prometheus.CounterVec
	cacheResults *prometheus.CounterVec
	rows         prometheus.Counter
	notices      prometheus.Counter
	passDuration prometheus.Histogram
}

// New registers the scanner metrics on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanner_price_fetches_total",
				Help: "Price history fetches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanner_sentiment_lookups_total",
				Help: "Chatter feed lookups by outcome",
			},
			[]string{"outcome"},
		),
		cacheResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanner_cache_requests_total",
				Help: "Signal cache lookups by result",
			},
			[]string{"result"},
		),
		rows: f.NewCounter(prometheus.CounterOpts{
			Name: "scanner_rows_total",
			Help: "Table rows produced across passes",
		}),
		notices: f.NewCounter(prometheus.CounterOpts{
			Name: "scanner_notices_total",
			Help: "Tickers skipped with a no data notice",
		}),
		passDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_pass_duration_seconds",
			Help:    "Duration of a full scan pass",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Recorder) RecordFetch(provider, outcome string) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(provider, outcome).Inc()
}

func (r *Recorder) RecordLookup(outcome string) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheResults.WithLabelValues(result).Inc()
}

// RecordPass records one completed aggregation pass.
func (r *Recorder) RecordPass(rows, notices int, d time.Duration) {
	if r == nil {
		return
	}
	r.rows.Add(float64(rows))
	r.notices.Add(float64(notices))
	r.passDuration.Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.DefaultGatherer
	}
	return r.reg
}
