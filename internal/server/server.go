package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/scanner"
)

// Scanner runs passes and resolves detail views.
type Scanner interface {
	Scan(ctx context.Context, tickers []string) *model.ScanResult
	Detail(ctx context.Context, ticker string) (*scanner.DetailView, bool)
}

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	DefaultTickers  string
	Span            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps the Echo HTTP server.
type Server struct {
	echo    *echo.Echo
	config  *ServerConfig
	scanner Scanner
	log     zerolog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(sc Scanner, rec *metrics.Recorder, log zerolog.Logger, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Addr:            ":8080",
		DefaultTickers:  scanner.DefaultTickers,
		Span:            model.DefaultSignalParams().Span,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		echo:    e,
		config:  cfg,
		scanner: sc,
		log:     log.With().Str("component", "server").Logger(),
	}

	e.Use(RequestLogging(s.log))
	e.Use(Recover(s.log))

	s.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(rec.Handler()))
	return s
}

// Start starts the HTTP server in the background.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.config.Addr).Msg("http server listening")
		if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server error")
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(c *ServerConfig) {
		c.Addr = addr
	}
}

// WithDefaultTickers sets the list scanned when a request names none.
func WithDefaultTickers(tickers string) ServerOption {
	return func(c *ServerConfig) {
		c.DefaultTickers = tickers
	}
}

// WithSpan sets the EMA span shown in table headers.
func WithSpan(span int) ServerOption {
	return func(c *ServerConfig) {
		c.Span = span
	}
}
