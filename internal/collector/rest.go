package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"BreakoutScanner/internal/model"
)

// RESTFetcher implements PriceProvider against a self-hosted daily bars endpoint:
// GET {base}/api/v1/bars/daily?symbol=X&days=N returning a JSON array of bars.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bars API. Close may be null.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Close     *float64 `json:"close"`
}

func (f *RESTFetcher) FetchHistory(ctx context.Context, symbol string, periodDays int, interval string) (model.PriceSeries, error) {
	series := model.PriceSeries{Symbol: symbol, FetchedAt: time.Now()}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("days", fmt.Sprintf("%d", periodDays))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	points, err := f.fetchBars(ctx, endpoint)
	if err != nil {
		return series, err
	}
	if interval == "1wk" {
		points = aggregateDailyToWeekly(points)
	}
	series.Points = points
	return series, nil
}

func (f *RESTFetcher) fetchBars(ctx context.Context, endpoint string) ([]model.PricePoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}
	var bars []restBar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	points := make([]model.PricePoint, len(bars))
	for i, b := range bars {
		c := math.NaN()
		if b.Close != nil {
			c = *b.Close
		}
		points[i] = model.PricePoint{Time: time.Unix(b.Timestamp, 0).UTC(), Close: c}
	}
	// Ensure chronological order
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

// aggregateDailyToWeekly keeps the last defined close of each ISO week.
func aggregateDailyToWeekly(daily []model.PricePoint) []model.PricePoint {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.PricePoint
	var week model.PricePoint
	var weekKey int
	started := false

	for _, d := range daily {
		y, w := d.Time.ISOWeek()
		key := y*100 + w
		if !started || key != weekKey {
			if started {
				weekly = append(weekly, week)
			}
			week = d
			weekKey = key
			started = true
			continue
		}
		if d.HasClose() || !week.HasClose() {
			week.Time = d.Time
			if d.HasClose() {
				week.Close = d.Close
			}
		}
	}
	if started {
		weekly = append(weekly, week)
	}
	return weekly
}
