package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeCache struct {
	resets int
	err    error
}

func (f *fakeCache) Reset(context.Context) error {
	f.resets++
	return f.err
}

type fakeWarmer struct {
	warmed [][]string
}

func (f *fakeWarmer) Warm(_ context.Context, tickers []string) int {
	f.warmed = append(f.warmed, tickers)
	return len(tickers)
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeCache{}, nil, nil, zerolog.Nop())
	if err := s.RegisterAll("0 5 16 * * 1-5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(s.Cron.Entries()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}

func TestRegisterAll_Disabled(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeCache{}, nil, nil, zerolog.Nop())
	if err := s.RegisterAll(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(s.Cron.Entries()); n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}
}

func TestRegisterAll_InvalidExpression(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeCache{}, nil, nil, zerolog.Nop())
	if err := s.RegisterAll("0 5 16 * *"); err == nil {
		t.Error("expected error for a five-field expression")
	}
}

func TestRunRefreshNow(t *testing.T) {
	tests := []struct {
		name       string
		cacheErr   error
		warmer     bool
		tickers    []string
		wantWarmed int
	}{
		{"reset only", nil, false, []string{"AAPL"}, 0},
		{"reset and warm", nil, true, []string{"AAPL", "TSLA"}, 1},
		{"no tickers", nil, true, nil, 0},
		{"reset failure skips warm", errors.New("redis down"), true, []string{"AAPL"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCache{err: tt.cacheErr}
			w := &fakeWarmer{}
			var warmer Warmer
			if tt.warmer {
				warmer = w
			}
			s := NewScheduler(context.Background(), c, warmer, tt.tickers, zerolog.Nop())
			s.RunRefreshNow()
			if c.resets != 1 {
				t.Errorf("expected 1 reset, got %d", c.resets)
			}
			if len(w.warmed) != tt.wantWarmed {
				t.Errorf("expected %d warm runs, got %d", tt.wantWarmed, len(w.warmed))
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeCache{}, nil, nil, zerolog.Nop())
	if err := s.RegisterAll("@every 1h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()
	s.Stop()
}
