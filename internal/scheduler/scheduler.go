package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Resetter clears memoized signal results.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Warmer pre-resolves tickers into the signal cache.
type Warmer interface {
	Warm(ctx context.Context, tickers []string) int
}

// Scheduler manages the cache refresh cron task.
type Scheduler struct {
	Cron    *cron.Cron
	Cache   Resetter
	Warmer  Warmer // nil disables warm-up after a refresh
	Tickers []string
	Ctx     context.Context
	log     zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, cache Resetter, warmer Warmer, tickers []string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Cache:   cache,
		Warmer:  warmer,
		Tickers: tickers,
		Ctx:     ctx,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the refresh task. An empty expression registers nothing.
func (s *Scheduler) RegisterAll(refreshCron string) error {
	if refreshCron == "" {
		s.log.Info().Msg("cache refresh schedule disabled")
		return nil
	}
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("entries", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately.
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	s.log.Info().Msg("running cache refresh")
	if err := s.Cache.Reset(s.Ctx); err != nil {
		s.log.Error().Err(err).Msg("cache refresh failed")
		return
	}
	if s.Warmer == nil || len(s.Tickers) == 0 {
		return
	}
	n := s.Warmer.Warm(s.Ctx, s.Tickers)
	s.log.Info().Int("with_data", n).Int("tickers", len(s.Tickers)).Msg("cache warmed after refresh")
}
