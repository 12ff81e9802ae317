package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"BreakoutScanner/internal/chart"
	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/scanner"
	"BreakoutScanner/internal/sentiment"
)

type fakeScanner struct {
	scanned [][]string
	details []string
}

func (f *fakeScanner) Scan(_ context.Context, tickers []string) *model.ScanResult {
	f.scanned = append(f.scanned, tickers)
	res := &model.ScanResult{PassID: "pass-1", Tickers: tickers, Rows: model.ScanTable{}, Notices: []model.Notice{}}
	for _, t := range tickers {
		if t == "ZZZZINVALID" {
			res.Notices = append(res.Notices, model.Notice{Ticker: t, Message: model.NoDataMessage})
			continue
		}
		res.Rows = append(res.Rows, model.ScanRow{Ticker: t, Close: 101, Smoothed: 100, Delta: 1, ChatterCount: 3})
	}
	if len(res.Rows) == 0 {
		res.NoValidTickers = true
		res.Message = model.NoValidTickersMessage
	} else {
		res.Detail = res.Rows[0].Ticker
	}
	return res
}

func (f *fakeScanner) Detail(_ context.Context, ticker string) (*scanner.DetailView, bool) {
	f.details = append(f.details, ticker)
	if ticker == "ZZZZINVALID" || ticker == "" {
		return nil, false
	}
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	series := model.AnnotatedSeries{Symbol: ticker, Span: 40, Points: []model.AnnotatedPoint{
		{Time: start, Close: 100, Smoothed: 100},
		{Time: start.AddDate(0, 0, 1), Close: 101, Smoothed: 100.05, Crossover: true},
	}}
	return &scanner.DetailView{
		Ticker:  ticker,
		Chart:   chart.New(series),
		Chatter: sentiment.Result{Preview: "bull: up only...", Count: 1},
	}, true
}

func newTestServer() (*Server, *fakeScanner) {
	fs := &fakeScanner{}
	return NewServer(fs, metrics.New(nil), zerolog.Nop(), WithDefaultTickers("AAPL,MSFT")), fs
}

func do(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, rec.Body.String())
	}
	return env
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer()
	rec := do(s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Status != 200 || env.Message != "OK" {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestScan_DefaultTickers(t *testing.T) {
	s, fs := newTestServer()
	rec := do(s, "/api/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(fs.scanned) != 1 || strings.Join(fs.scanned[0], ",") != "AAPL,MSFT" {
		t.Errorf("expected default tickers to be scanned, got %v", fs.scanned)
	}

	var data ScanResponse
	if err := json.Unmarshal(decode(t, rec).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Result.Rows) != 2 || data.Detail == nil || data.Detail.Ticker != "AAPL" {
		t.Errorf("unexpected payload %+v", data)
	}
	if data.Table.Headers[2] != "EMA40" || data.Table.Rows[0][1] != "101.00" {
		t.Errorf("unexpected table %+v", data.Table)
	}
	if len(data.Detail.Chart.Markers) != 1 {
		t.Errorf("expected chart markers in detail, got %+v", data.Detail.Chart)
	}
}

func TestScan_ExplicitTickersAndDetail(t *testing.T) {
	s, fs := newTestServer()
	rec := do(s, "/api/scan?tickers=tsla,%20nvda,,&detail=nvda")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Join(fs.scanned[0], ",") != "TSLA,NVDA" {
		t.Errorf("expected parsed tickers, got %v", fs.scanned[0])
	}
	if len(fs.details) != 1 || fs.details[0] != "NVDA" {
		t.Errorf("expected NVDA detail, got %v", fs.details)
	}
}

func TestScan_UnknownDetailFallsBack(t *testing.T) {
	s, fs := newTestServer()
	do(s, "/api/scan?tickers=TSLA,ZZZZINVALID&detail=ZZZZINVALID")
	if len(fs.details) != 1 || fs.details[0] != "TSLA" {
		t.Errorf("expected fallback to default detail TSLA, got %v", fs.details)
	}
}

func TestScan_NoValidTickers(t *testing.T) {
	s, fs := newTestServer()
	rec := do(s, "/api/scan?tickers=ZZZZINVALID")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data ScanResponse
	if err := json.Unmarshal(decode(t, rec).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !data.Result.NoValidTickers || data.Result.Message != model.NoValidTickersMessage {
		t.Errorf("expected no valid tickers state, got %+v", data.Result)
	}
	if data.Detail != nil || len(fs.details) != 0 {
		t.Errorf("expected no detail lookup, got %v", fs.details)
	}
}

func TestScan_TextFormat(t *testing.T) {
	s, _ := newTestServer()
	rec := do(s, "/api/scan?tickers=AAPL&format=text&width=60&height=6")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"EMA40 Breakout Scan", "AAPL Price + EMA40", "bull: up only..."} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in text output:\n%s", want, body)
		}
	}
}

func TestScan_InvalidParams(t *testing.T) {
	tests := []string{
		"/api/scan?format=xml",
		"/api/scan?width=5",
		"/api/scan?height=abc",
	}
	for _, target := range tests {
		s, fs := newTestServer()
		rec := do(s, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
		if env := decode(t, rec); env.Status != http.StatusBadRequest {
			t.Errorf("%s: unexpected envelope %+v", target, env)
		}
		if len(fs.scanned) != 0 {
			t.Errorf("%s: expected no scan on invalid params", target)
		}
	}
}

func TestTicker(t *testing.T) {
	s, _ := newTestServer()

	rec := do(s, "/api/tickers/aapl")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view scanner.DetailView
	if err := json.Unmarshal(decode(t, rec).Data, &view); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if view.Ticker != "AAPL" || view.Chatter.Count != 1 {
		t.Errorf("unexpected view %+v", view)
	}

	rec = do(s, "/api/tickers/ZZZZINVALID")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var errs []AppError
	if err := json.Unmarshal(decode(t, rec).Data, &errs); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(errs) != 1 || errs[0].Code != "ERR_NOT_FOUND" || !strings.Contains(errs[0].Message, "no data") {
		t.Errorf("unexpected errors %+v", errs)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.New(nil)
	reg.RecordLookup(metrics.OutcomeOK)
	s := NewServer(&fakeScanner{}, reg, zerolog.Nop())
	rec := do(s, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "scanner_sentiment_lookups_total") {
		t.Errorf("expected scanner metrics, got %d:\n%s", rec.Code, rec.Body.String())
	}
}

type panicScanner struct{ fakeScanner }

func (p *panicScanner) Scan(context.Context, []string) *model.ScanResult { panic("boom") }

func TestRecover(t *testing.T) {
	s := NewServer(&panicScanner{}, nil, zerolog.Nop())
	rec := do(s, "/api/scan")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestPanicIsRecoveredAndLogged(t *testing.T) {
	var buf bytes.Buffer
	s := NewServer(&fakeScanner{}, metrics.New(nil), zerolog.New(&buf))
	s.Echo().GET("/boom", func(c echo.Context) error {
		panic("boom")
	})

	rec := do(s, "/boom")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	logs := buf.String()
	if !strings.Contains(logs, "panic in handler") {
		t.Errorf("expected panic log, got:\n%s", logs)
	}
	if !strings.Contains(logs, `"uri":"/boom"`) || !strings.Contains(logs, `"status":500`) {
		t.Errorf("expected access log line with status 500, got:\n%s", logs)
	}
}
