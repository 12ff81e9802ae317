package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"BreakoutScanner/internal/chart"
	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/sentiment"
)

// DefaultTickers is the ticker list used when none is supplied.
const DefaultTickers = "AAPL,TSLA,NVDA,AMZN,MSFT"

// SignalSource resolves memoized annotated series.
type SignalSource interface {
	Resolve(ctx context.Context, ticker string) (model.AnnotatedSeries, bool)
	Reset(ctx context.Context) error
}

// Options tunes an Aggregator.
type Options struct {
	Workers         int  // concurrent tickers per pass; 1 is sequential
	RefreshEachPass bool // drop memoized series before every pass
}

// Aggregator joins price signals and chatter into a ranked table.
type Aggregator struct {
	signals SignalSource
	chatter sentiment.Looker
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// New creates an Aggregator.
func New(signals SignalSource, chatter sentiment.Looker, opts Options, log zerolog.Logger, rec *metrics.Recorder) *Aggregator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Aggregator{
		signals: signals,
		chatter: chatter,
		opts:    opts,
		log:     log.With().Str("component", "scanner").Logger(),
		metrics: rec,
		now:     time.Now,
	}
}

// ParseTickers splits a comma-separated list, trimming and uppercasing entries.
// Empty entries are dropped; order and duplicates are kept.
func ParseTickers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		t := strings.ToUpper(strings.TrimSpace(part))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseDetail normalizes a single ticker selection.
func ParseDetail(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

type slot struct {
	row *model.ScanRow
}

// Scan runs one aggregation pass over tickers.
func (a *Aggregator) Scan(ctx context.Context, tickers []string) *model.ScanResult {
	start := a.now()
	res := &model.ScanResult{
		PassID:    uuid.NewString(),
		Tickers:   ParseTickers(strings.Join(tickers, ",")),
		Rows:      model.ScanTable{},
		Notices:   []model.Notice{},
		StartedAt: start,
	}
	log := a.log.With().Str("pass_id", res.PassID).Logger()
	log.Info().Strs("tickers", res.Tickers).Int("workers", a.opts.Workers).Msg("scan pass started")

	if a.opts.RefreshEachPass {
		if err := a.signals.Reset(ctx); err != nil {
			log.Warn().Err(err).Msg("refresh before pass failed")
		}
	}

	slots := make([]slot, len(res.Tickers))
	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	for i, ticker := range res.Tickers {
		g.Go(func() error {
			slots[i] = a.scanTicker(ctx, ticker)
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range slots {
		if s.row == nil {
			res.Notices = append(res.Notices, model.Notice{Ticker: res.Tickers[i], Message: model.NoDataMessage})
			continue
		}
		res.Rows = append(res.Rows, *s.row)
	}
	model.SortTable(res.Rows)

	if len(res.Rows) == 0 {
		res.NoValidTickers = true
		res.Message = model.NoValidTickersMessage
	} else if candidates := res.DetailCandidates(); len(candidates) > 0 {
		res.Detail = candidates[0]
	}

	res.Duration = a.now().Sub(start)
	a.metrics.RecordPass(len(res.Rows), len(res.Notices), res.Duration)
	log.Info().
		Int("rows", len(res.Rows)).
		Int("notices", len(res.Notices)).
		Dur("duration", res.Duration).
		Msg("scan pass finished")
	return res
}

func (a *Aggregator) scanTicker(ctx context.Context, ticker string) slot {
	series, ok := a.signals.Resolve(ctx, ticker)
	if !ok || series.Empty() {
		a.log.Debug().Str("ticker", ticker).Msg("no data")
		return slot{}
	}
	chatter := a.chatter.Lookup(ctx, ticker)
	row := model.NewScanRow(ticker, series.Latest(), chatter.Preview, chatter.Count)
	row.ChatterDegraded = chatter.Degraded
	return slot{row: &row}
}

// DetailView is the chart and chatter preview for one ticker.
type DetailView struct {
	Ticker  string           `json:"ticker"`
	Latest  model.ScanRow    `json:"latest"`
	Chart   chart.Chart      `json:"chart"`
	Chatter sentiment.Result `json:"chatter"`
}

// Detail re-resolves ticker through the memoized signal source and repeats the chatter lookup.
func (a *Aggregator) Detail(ctx context.Context, ticker string) (*DetailView, bool) {
	ticker = ParseDetail(ticker)
	series, ok := a.signals.Resolve(ctx, ticker)
	if !ok || series.Empty() {
		return nil, false
	}
	chatter := a.chatter.Lookup(ctx, ticker)
	latest := model.NewScanRow(ticker, series.Latest(), chatter.Preview, chatter.Count)
	latest.ChatterDegraded = chatter.Degraded
	return &DetailView{
		Ticker:  ticker,
		Latest:  latest,
		Chart:   chart.New(series),
		Chatter: chatter,
	}, true
}

// Warm resolves tickers into the signal cache without chatter lookups.
// It returns how many tickers produced data.
func (a *Aggregator) Warm(ctx context.Context, tickers []string) int {
	tickers = ParseTickers(strings.Join(tickers, ","))
	found := make([]bool, len(tickers))
	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	for i, ticker := range tickers {
		g.Go(func() error {
			_, found[i] = a.signals.Resolve(ctx, ticker)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range found {
		if ok {
			n++
		}
	}
	a.log.Info().Int("tickers", len(tickers)).Int("with_data", n).Msg("signal cache warmed")
	return n
}
