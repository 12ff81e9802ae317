package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorderRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordFetch("yahoo", OutcomeOK)
	r.RecordLookup(OutcomeDegraded)
	r.RecordCache(true)
	r.RecordCache(false)
	r.RecordPass(3, 1, 250*time.Millisecond)

	mfs, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{
		"scanner_price_fetches_total":     false,
		"scanner_sentiment_lookups_total": false,
		"scanner_cache_requests_total":    false,
		"scanner_rows_total":              false,
		"scanner_notices_total":           false,
		"scanner_pass_duration_seconds":   false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
		if mf.GetName() == "scanner_rows_total" {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 3 {
				t.Errorf("expected 3 rows, got %v", v)
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s metric not found", name)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordFetch("yahoo", OutcomeError)
	r.RecordLookup(OutcomeOK)
	r.RecordCache(true)
	r.RecordPass(0, 0, time.Second)
}

func TestHandlerServesRegistry(t *testing.T) {
	r := New(nil)
	r.RecordLookup(OutcomeOK)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `scanner_sentiment_lookups_total{outcome="ok"} 1`) {
		t.Errorf("expected lookup counter in output, got:\n%s", rec.Body.String())
	}
}
