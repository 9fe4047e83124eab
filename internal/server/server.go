// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat relay HTTP server.
//
// Endpoints:
//   - POST /api/chat   - Stream a reply as newline-delimited text
//   - GET  /api/health - Liveness probe
//   - GET  /api/stats  - Relay counters
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/lynx-chat/internal/backend"
	"github.com/jeranaias/lynx-chat/internal/config"
	"github.com/jeranaias/lynx-chat/internal/ratelimit"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default listen port.
	DefaultPort = config.DefaultPort
)

// Version is reported by the stats endpoint; set at build time.
var Version = "dev"

// ============================================================================
// SERVER
// ============================================================================

// Server is the chat relay HTTP server.
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	server  *http.Server
	logger  zerolog.Logger
	limiter *ratelimit.Limiter
	stats   *Stats

	live     backend.Streamer
	fallback backend.Streamer

	mu sync.RWMutex
}

// New creates a server from cfg. The Gemini streamer, demo fallback and
// admission limiter are built from cfg and can be replaced with the With*
// setters before the server starts.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: log.Logger,
		stats:  NewStats(),
		limiter: ratelimit.New(
			cfg.RateLimit.Points,
			cfg.RateLimit.Duration(),
		),
		live: backend.NewGemini(backend.GeminiConfig{
			APIKey:            cfg.Backend.APIKey,
			Model:             cfg.Backend.Model,
			RequestsPerSecond: cfg.Backend.RequestsPerSecond,
			Burst:             cfg.Backend.Burst,
		}),
		fallback: backend.NewDemo(cfg.Fallback.Interval()),
	}
	return s
}

// WithStreamer sets the live backend.
func (s *Server) WithStreamer(streamer backend.Streamer) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = streamer
	return s
}

// WithFallback sets the streamer used when the live backend is not configured.
func (s *Server) WithFallback(streamer backend.Streamer) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = streamer
	return s
}

// WithLimiter sets the admission limiter.
func (s *Server) WithLimiter(limiter *ratelimit.Limiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = limiter
	return s
}

// WithLogger sets the logger used for request and stream events.
func (s *Server) WithLogger(logger zerolog.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
	return s
}

// Stats returns the server's counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// Limiter returns the admission limiter.
func (s *Server) Limiter() *ratelimit.Limiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limiter
}

// Handler returns the HTTP handler, building the router on first use.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

// setupRoutes builds the gin engine with middleware and routes.
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(DefaultCORSConfig(s.cfg.Server.AllowedOrigins)),
	)

	api := r.Group("/api")
	api.Any("/chat", s.handleChat)
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	return r
}

// ApplyConfig applies the hot-reloadable parts of cfg: rate limits and
// fallback pacing. Listener, origin and backend settings need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limiter.SetLimits(cfg.RateLimit.Points, cfg.RateLimit.Duration())
	if demo, ok := s.fallback.(*backend.Demo); ok {
		demo.SetInterval(cfg.Fallback.Interval())
	}
	s.cfg.RateLimit = cfg.RateLimit
	s.cfg.Fallback = cfg.Fallback

	s.logger.Info().
		Int("points", cfg.RateLimit.Points).
		Int("duration_secs", cfg.RateLimit.DurationSecs).
		Int("fallback_interval_ms", cfg.Fallback.IntervalMs).
		Msg("CONFIG_APPLIED")
}

// streamers returns the live and fallback backends.
func (s *Server) streamers() (backend.Streamer, backend.Streamer) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live, s.fallback
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. The
// limiter's sweeper runs alongside.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	sweep := s.cfg.RateLimit.SweepInterval()
	shutdownTimeout := s.cfg.Server.ShutdownTimeout()
	s.mu.Unlock()

	live, _ := s.streamers()
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("version", Version).
		Bool("live", live.Configured()).
		Str("model", s.cfg.Backend.Model).
		Msg("SERVER_START")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return s.Limiter().Run(gctx, sweep)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	live := s.live
	s.mu.RUnlock()

	if srv == nil {
		return nil
	}

	s.logger.Info().Msg("SERVER_SHUTDOWN")
	err := srv.Shutdown(ctx)

	if closer, ok := live.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
