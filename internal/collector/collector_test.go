package collector

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"BreakoutScanner/internal/cache"
	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/model"
)

func rising(symbol string, n int) model.PriceSeries {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]model.PricePoint, n)
	for i := range pts {
		pts[i] = model.PricePoint{Time: start.AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	return model.PriceSeries{Symbol: symbol, Points: pts}
}

func newTestCollector(f PriceProvider) (*Collector, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	return NewCollector(f, store, model.DefaultSignalParams(), 0, zerolog.Nop(), metrics.New(nil)), store
}

func TestCollector_ResolveMemoizes(t *testing.T) {
	f := &MockFetcher{Series: map[string]model.PriceSeries{"AAPL": rising("AAPL", 60)}}
	c, _ := newTestCollector(f)
	ctx := context.Background()

	first, ok := c.Resolve(ctx, "AAPL")
	if !ok {
		t.Fatal("expected data for AAPL")
	}
	second, ok := c.Resolve(ctx, " aapl ")
	if !ok {
		t.Fatal("expected data on second resolve")
	}
	if f.Calls("AAPL") != 1 {
		t.Errorf("expected 1 upstream fetch, got %d", f.Calls("AAPL"))
	}
	if len(first.Points) != len(second.Points) {
		t.Fatalf("cached result differs: %d vs %d points", len(first.Points), len(second.Points))
	}
	for i := range first.Points {
		a, b := first.Points[i], second.Points[i]
		if !a.Time.Equal(b.Time) || a.Close != b.Close || a.Smoothed != b.Smoothed || a.Crossover != b.Crossover {
			t.Fatalf("point %d differs after cache round trip: %+v vs %+v", i, a, b)
		}
	}
}

func TestCollector_EmptyOutcomeIsCached(t *testing.T) {
	f := &MockFetcher{Series: map[string]model.PriceSeries{}}
	c, _ := newTestCollector(f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, ok := c.Resolve(ctx, "ZZZZINVALID"); ok {
			t.Fatal("expected no data for unknown ticker")
		}
	}
	if f.Calls("ZZZZINVALID") != 1 {
		t.Errorf("expected empty outcome to be memoized, got %d fetches", f.Calls("ZZZZINVALID"))
	}
}

func TestCollector_ProviderErrorDegrades(t *testing.T) {
	f := &MockFetcher{
		Series: map[string]model.PriceSeries{"MSFT": rising("MSFT", 60)},
		Errors: map[string]error{"MSFT": errors.New("connection reset")},
	}
	c, store := newTestCollector(f)
	ctx := context.Background()

	got, ok := c.Resolve(ctx, "MSFT")
	if ok {
		t.Fatal("expected no data when provider fails")
	}
	if !got.Empty() || got.Symbol != "MSFT" {
		t.Errorf("unexpected result %+v", got)
	}
	if store.Len() != 0 {
		t.Errorf("provider error should not be cached, got %d entries", store.Len())
	}

	// provider recovers; the next pass must ask it again
	delete(f.Errors, "MSFT")
	if _, ok := c.Resolve(ctx, "MSFT"); !ok {
		t.Fatal("expected data after provider recovered")
	}
	if f.Calls("MSFT") != 2 {
		t.Errorf("expected 2 fetches, got %d", f.Calls("MSFT"))
	}
	if store.Len() != 1 {
		t.Errorf("expected recovered result to be cached, got %d entries", store.Len())
	}
}

func TestCollector_CancelledCallerDoesNotEmptySharedFetch(t *testing.T) {
	f := &MockFetcher{
		Series: map[string]model.PriceSeries{"AAPL": rising("AAPL", 45)},
		Delay:  200 * time.Millisecond,
	}
	c, _ := newTestCollector(f)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var okA, okB bool
	var elapsedA time.Duration
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		_, okA = c.Resolve(shortCtx, "AAPL")
		elapsedA = time.Since(start)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, okB = c.Resolve(context.Background(), "AAPL")
	}()
	wg.Wait()

	if okA {
		t.Error("expected cancelled caller to get no data")
	}
	if elapsedA >= 200*time.Millisecond {
		t.Errorf("cancelled caller should return early, took %s", elapsedA)
	}
	if !okB {
		t.Error("expected live caller to get data")
	}
	if f.TotalCalls() != 1 {
		t.Errorf("expected a single shared fetch, got %d", f.TotalCalls())
	}
}

func TestCollector_NaNClosesAreDropped(t *testing.T) {
	s := rising("TSLA", 50)
	s.Points[0].Close = math.NaN()
	s.Points[20].Close = math.NaN()
	f := &MockFetcher{Series: map[string]model.PriceSeries{"TSLA": s}}
	c, _ := newTestCollector(f)

	got, ok := c.Resolve(context.Background(), "TSLA")
	if !ok {
		t.Fatal("expected data")
	}
	if len(got.Points) != 48 {
		t.Errorf("expected 48 cleaned rows, got %d", len(got.Points))
	}
}

func TestCollector_ResetForcesRefetch(t *testing.T) {
	f := &MockFetcher{Series: map[string]model.PriceSeries{"NVDA": rising("NVDA", 45)}}
	c, store := newTestCollector(f)
	ctx := context.Background()

	c.Resolve(ctx, "NVDA")
	if store.Len() != 1 {
		t.Fatalf("expected 1 cache entry, got %d", store.Len())
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	c.Resolve(ctx, "NVDA")
	if f.Calls("NVDA") != 2 {
		t.Errorf("expected refetch after reset, got %d fetches", f.Calls("NVDA"))
	}
}

func TestCollector_ParamsPartitionCache(t *testing.T) {
	f := &MockFetcher{Series: map[string]model.PriceSeries{"AMZN": rising("AMZN", 45)}}
	store := cache.NewMemoryStore()
	ctx := context.Background()

	a := NewCollector(f, store, model.DefaultSignalParams(), 0, zerolog.Nop(), nil)
	p := model.DefaultSignalParams()
	p.Span = 20
	b := NewCollector(f, store, p, 0, zerolog.Nop(), nil)

	a.Resolve(ctx, "AMZN")
	b.Resolve(ctx, "AMZN")
	if f.Calls("AMZN") != 2 {
		t.Errorf("expected separate fetches per window params, got %d", f.Calls("AMZN"))
	}
}

func TestCollector_ConcurrentDuplicatesFetchOnce(t *testing.T) {
	f := &MockFetcher{
		Series: map[string]model.PriceSeries{"AAPL": rising("AAPL", 45)},
		Delay:  20 * time.Millisecond,
	}
	c, _ := newTestCollector(f)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Resolve(ctx, "AAPL"); !ok {
				t.Error("expected data")
			}
		}()
	}
	wg.Wait()
	if f.Calls("AAPL") != 1 {
		t.Errorf("expected a single shared fetch, got %d", f.Calls("AAPL"))
	}
}

func TestCollector_TTLExpiry(t *testing.T) {
	f := &MockFetcher{Series: map[string]model.PriceSeries{"AAPL": rising("AAPL", 45)}}
	c := NewCollector(f, cache.NewMemoryStore(), model.DefaultSignalParams(), time.Millisecond, zerolog.Nop(), nil)
	ctx := context.Background()

	c.Resolve(ctx, "AAPL")
	time.Sleep(5 * time.Millisecond)
	c.Resolve(ctx, "AAPL")
	if f.Calls("AAPL") != 2 {
		t.Errorf("expected refetch after ttl, got %d fetches", f.Calls("AAPL"))
	}
}

func TestMockFetcher_GeneratedSeries(t *testing.T) {
	f := &MockFetcher{Price: 150}
	s, err := f.FetchHistory(context.Background(), "DEV", 90, "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Points) < 60 {
		t.Errorf("expected roughly 64 weekday points, got %d", len(s.Points))
	}
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Time.After(s.Points[i-1].Time) {
			t.Fatalf("points not ascending at %d", i)
		}
	}
}
