package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"BreakoutScanner/internal/cache"
	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/strategy"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64                      // base price for generated series
	Series map[string]model.PriceSeries // fixed series per symbol
	Errors map[string]error             // forced errors per symbol
	Delay  time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(ctx context.Context, symbol string, periodDays int, _ string) (model.PriceSeries, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return model.PriceSeries{Symbol: symbol}, ctx.Err()
		}
	}
	if err, ok := m.Errors[symbol]; ok {
		return model.PriceSeries{Symbol: symbol}, err
	}
	if m.Series != nil {
		s, ok := m.Series[symbol]
		if !ok {
			return model.PriceSeries{Symbol: symbol}, nil
		}
		return s, nil
	}
	if m.Price <= 0 {
		return model.PriceSeries{Symbol: symbol}, nil
	}
	return generateMockSeries(symbol, m.Price, periodDays), nil
}

// Calls returns how many times symbol was fetched.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// TotalCalls returns the number of fetches across all symbols.
func (m *MockFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func generateMockSeries(symbol string, basePrice float64, days int) model.PriceSeries {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	points := make([]model.PricePoint, 0, days)
	for i := 0; i < days; i++ {
		t := now.AddDate(0, 0, -(days - i))
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + 0.04*math.Sin(float64(i)/9) + float64(i-days/2)*0.0005)
		points = append(points, model.PricePoint{Time: t, Close: p})
	}
	return model.PriceSeries{Symbol: symbol, Points: points, FetchedAt: now}
}

// Collector is the memoizing Signal Engine: fetch, annotate, cache.
type Collector struct {
	provider PriceProvider
	store    cache.Store
	params   model.SignalParams
	ttl      time.Duration
	log      zerolog.Logger
	metrics  *metrics.Recorder
	group    singleflight.Group

	fetchTimeout time.Duration
}

// DefaultFetchTimeout bounds one shared upstream fetch.
const DefaultFetchTimeout = 30 * time.Second

// NewCollector creates a new Collector. A nil store gets an in-memory one.
func NewCollector(provider PriceProvider, store cache.Store, params model.SignalParams, ttl time.Duration, log zerolog.Logger, rec *metrics.Recorder) *Collector {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	return &Collector{
		provider: provider,
		store:    store,
		params:   params,
		ttl:      ttl,
		log:      log.With().Str("component", "collector").Str("provider", provider.Name()).Logger(),
		metrics:  rec,

		fetchTimeout: DefaultFetchTimeout,
	}
}

// Params returns the window parameters results are keyed by.
func (c *Collector) Params() model.SignalParams { return c.params }

// NormalizeTicker trims and uppercases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Resolve returns the annotated series for ticker, fetching only on a cache miss.
// The bool is false when the ticker has no usable data.
func (c *Collector) Resolve(ctx context.Context, ticker string) (model.AnnotatedSeries, bool) {
	symbol := NormalizeTicker(ticker)
	if symbol == "" {
		return model.AnnotatedSeries{Span: c.params.Span}, false
	}
	key := c.params.CacheKey(symbol)

	if series, ok := c.lookup(ctx, key); ok {
		c.metrics.RecordCache(true)
		return series, !series.Empty()
	}
	c.metrics.RecordCache(false)

	// The shared fetch is detached from the caller; a cancelled caller leaves early
	// and the others waiting on key still get the fetched result.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		if series, ok := c.lookup(fctx, key); ok {
			return series, nil
		}
		series, cacheable := c.compute(fctx, symbol)
		if cacheable {
			c.save(fctx, key, series)
		}
		return series, nil
	})
	select {
	case r := <-ch:
		series := r.Val.(model.AnnotatedSeries)
		return series, !series.Empty()
	case <-ctx.Done():
		return model.AnnotatedSeries{Symbol: symbol, Span: c.params.Span}, false
	}
}

// Reset drops every memoized result.
func (c *Collector) Reset(ctx context.Context) error {
	if err := c.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset %s cache: %w", c.store.Name(), err)
	}
	c.log.Info().Msg("signal cache cleared")
	return nil
}

// compute fetches and annotates symbol. The bool is false when the outcome came
// from a provider error and must not be memoized.
func (c *Collector) compute(ctx context.Context, symbol string) (model.AnnotatedSeries, bool) {
	raw, err := c.provider.FetchHistory(ctx, symbol, c.params.PeriodDays, c.params.Interval)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", symbol).Msg("price fetch failed, treating as no data")
		c.metrics.RecordFetch(c.provider.Name(), metrics.OutcomeError)
		return model.AnnotatedSeries{Symbol: symbol, Span: c.params.Span}, false
	}
	annotated, ok := strategy.Annotate(raw, c.params)
	if !ok {
		c.log.Debug().Str("ticker", symbol).Int("raw_points", len(raw.Points)).Msg("no usable price data")
		c.metrics.RecordFetch(c.provider.Name(), metrics.OutcomeEmpty)
		return annotated, true
	}
	c.metrics.RecordFetch(c.provider.Name(), metrics.OutcomeOK)
	return annotated, true
}

func (c *Collector) lookup(ctx context.Context, key string) (model.AnnotatedSeries, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return model.AnnotatedSeries{}, false
	}
	if !ok {
		return model.AnnotatedSeries{}, false
	}
	var series model.AnnotatedSeries
	if err := json.Unmarshal(data, &series); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return model.AnnotatedSeries{}, false
	}
	return series, true
}

func (c *Collector) save(ctx context.Context, key string, series model.AnnotatedSeries) {
	data, err := json.Marshal(series)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
