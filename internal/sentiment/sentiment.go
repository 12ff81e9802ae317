package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"BreakoutScanner/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.stocktwits.com/api/2"

	// ErrorLoadingFeed is the preview when the feed answers with a non-2xx status.
	ErrorLoadingFeed = "Error loading feed"
	// FeedUnavailable is the preview when the feed cannot be reached or decoded.
	FeedUnavailable = "Feed unavailable"
)

// Result is the outcome of one chatter lookup. Degraded results keep Count at 0.
type Result struct {
	Preview  string `json:"preview"`
	Count    int    `json:"count"`
	Degraded bool   `json:"degraded"`
	Cause    string `json:"cause,omitempty"`
}

// Looker resolves chatter for a ticker and never fails.
type Looker interface {
	Lookup(ctx context.Context, ticker string) Result
}

// Client reads the StockTwits public symbol stream.
type Client struct {
	BaseURL      string
	HTTP         *http.Client
	MaxMessages  int // messages included in the preview
	PreviewChars int // body characters kept per message
	log          zerolog.Logger
	metrics      *metrics.Recorder
}

// NewClient builds a StockTwits client.
func NewClient(baseURL, proxyURL string, timeout time.Duration, log zerolog.Logger, rec *metrics.Recorder) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTP:         &http.Client{Timeout: timeout, Transport: transport},
		MaxMessages:  5,
		PreviewChars: 80,
		log:          log.With().Str("component", "sentiment").Logger(),
		metrics:      rec,
	}
}

type streamResponse struct {
	Messages *[]Message `json:"messages"`
}

// Message is one StockTwits stream entry.
type Message struct {
	Body string `json:"body"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

// Lookup fetches the symbol stream and builds the preview and message count.
func (c *Client) Lookup(ctx context.Context, ticker string) Result {
	u := fmt.Sprintf("%s/streams/symbol/%s.json", c.BaseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.degraded(ticker, FeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return c.degraded(ticker, FeedUnavailable, fmt.Errorf("stocktwits fetch: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return c.degraded(ticker, ErrorLoadingFeed, fmt.Errorf("stocktwits: status %d", resp.StatusCode))
	}

	var payload streamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return c.degraded(ticker, FeedUnavailable, fmt.Errorf("stocktwits decode: %w", err))
	}
	if payload.Messages == nil {
		return c.degraded(ticker, FeedUnavailable, fmt.Errorf("stocktwits: response has no messages field"))
	}

	msgs := *payload.Messages
	c.metrics.RecordLookup(metrics.OutcomeOK)
	return Result{
		Preview: FormatPreview(msgs, c.MaxMessages, c.PreviewChars),
		Count:   len(msgs),
	}
}

func (c *Client) degraded(ticker, preview string, err error) Result {
	c.log.Warn().Err(err).Str("ticker", ticker).Msg("chatter lookup degraded")
	c.metrics.RecordLookup(metrics.OutcomeDegraded)
	return Result{Preview: preview, Degraded: true, Cause: err.Error()}
}

// FormatPreview renders up to max messages as "user: body...", separated by a blank line.
func FormatPreview(msgs []Message, max, chars int) string {
	if max > len(msgs) {
		max = len(msgs)
	}
	lines := make([]string, 0, max)
	for _, m := range msgs[:max] {
		lines = append(lines, fmt.Sprintf("%s: %s...", m.User.Username, firstRunes(m.Body, chars)))
	}
	return strings.Join(lines, "\n\n")
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
