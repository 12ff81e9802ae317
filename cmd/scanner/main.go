package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"BreakoutScanner/internal/cache"
	"BreakoutScanner/internal/collector"
	"BreakoutScanner/internal/config"
	"BreakoutScanner/internal/dashboard"
	"BreakoutScanner/internal/logging"
	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/report"
	"BreakoutScanner/internal/scanner"
	"BreakoutScanner/internal/scheduler"
	"BreakoutScanner/internal/sentiment"
	"BreakoutScanner/internal/server"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	mode := flag.String("mode", "tui", "run mode: tui, serve or once")
	tickers := flag.String("tickers", "", "comma-separated tickers, overrides scanner.tickers")
	detail := flag.String("detail", "", "detail ticker for -mode once")
	logFile := flag.String("log-file", "", "log destination; tui mode discards logs when empty")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*cfgPath = v
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *tickers != "" {
		cfg.Scanner.Tickers = *tickers
	}

	var out io.Writer = os.Stderr
	switch {
	case *logFile != "":
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	case *mode == "tui":
		out = io.Discard
	}
	log := logging.New(cfg.App.LogLevel, cfg.App.LogFormat, out)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	store, closeStore := newStore(ctx, cfg, log)
	defer closeStore()

	provider := newProvider(cfg)
	log.Info().Str("provider", provider.Name()).Str("cache", store.Name()).Msg("data source ready")

	col := collector.NewCollector(provider, store, cfg.SignalParams(), cfg.Cache.TTL, log, rec)
	chatter := sentiment.NewClient(cfg.Sentiment.BaseURL, cfg.Proxy, cfg.Sentiment.Timeout, log, rec)
	chatter.MaxMessages = cfg.Scanner.PreviewMessages
	chatter.PreviewChars = cfg.Scanner.PreviewChars
	agg := scanner.New(col, chatter, scanner.Options{
		Workers:         cfg.Scanner.Workers,
		RefreshEachPass: cfg.Cache.RefreshEachPass,
	}, log, rec)

	switch *mode {
	case "once":
		res := agg.Scan(ctx, scanner.ParseTickers(cfg.Scanner.Tickers))
		view, _ := agg.Detail(ctx, res.SelectDetail(scanner.ParseDetail(*detail)))
		fmt.Print(report.FormatPass(res, cfg.Scanner.EMASpan, view))
	case "serve":
		runServer(ctx, cfg, agg, col, rec, log)
	case "tui":
		if err := dashboard.Run(ctx, agg, cfg.Scanner.Tickers, cfg.Scanner.EMASpan); err != nil {
			log.Error().Err(err).Msg("dashboard exited")
			fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
			os.Exit(1)
		}
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func runServer(ctx context.Context, cfg *config.Config, agg *scanner.Aggregator, col *collector.Collector, rec *metrics.Recorder, log zerolog.Logger) {
	var warmer scheduler.Warmer
	if cfg.Cache.WarmOnRefresh {
		warmer = agg
	}
	sched := scheduler.NewScheduler(ctx, col, warmer, scanner.ParseTickers(cfg.Scanner.Tickers), log)
	if err := sched.RegisterAll(cfg.Cache.RefreshCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.NewServer(agg, rec, log,
		server.WithAddr(cfg.Server.Addr),
		server.WithDefaultTickers(cfg.Scanner.Tickers),
		server.WithSpan(cfg.Scanner.EMASpan),
	)
	srv.Start()
	log.Info().Msg("scanner is running. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
	if err := srv.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

func newProvider(cfg *config.Config) collector.PriceProvider {
	ds := cfg.DataSource
	switch ds.Provider {
	case "alpaca":
		return collector.NewAlpacaFetcher(ds.APIKey, ds.APISecret)
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy, ds.Timeout)
	case "mock":
		return &collector.MockFetcher{Price: 150}
	default:
		return collector.NewYahooFetcher(ds.BaseURL, cfg.Proxy, ds.Timeout)
	}
}

func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, func()) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemoryStore(), func() {}
	}
	r := cfg.Cache.Redis
	rs, err := cache.NewRedisStore(ctx, cache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: r.Prefix})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
		return cache.NewMemoryStore(), func() {}
	}
	return rs, func() {
		if err := rs.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis")
		}
	}
}
