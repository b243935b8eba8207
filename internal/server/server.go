// Package server exposes the narration analyzer as an HTTP JSON API.
//
// Routes:
//
//	POST /v1/analyze         one capture (JSON, or plain narration text)
//	POST /v1/analyze/batch   several captures, analysed concurrently
//	POST /v1/analyze/audio   raw PCM audio, transcribed then analysed
//	POST /v1/normalize       quantities only, without scope organization
//	POST /v1/correct         terminology correction only
//	POST /v1/feedback        estimator feedback on an analysis, when enabled
//	GET  /healthz, /readyz   liveness and readiness
//	GET  /metrics            Prometheus scrape endpoint, when enabled
//
// Analysis routes accept ?format=text for a human-readable report.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/feedback"
	"github.com/MrWong99/sitescope/internal/health"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// Defaults for [Server].
const (
	DefaultMaxBodyBytes  = 1 << 20
	DefaultMaxAudioBytes = 32 << 20
	DefaultCacheSize     = 256

	// shutdownTimeout bounds graceful shutdown of the listener.
	shutdownTimeout = 15 * time.Second
)

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithMetrics records HTTP metrics on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithTranscriber enables POST /v1/analyze/audio. Audio is streamed to p
// with the session settings cfg.
func WithTranscriber(p stt.Provider, cfg stt.StreamConfig) Option {
	return func(s *Server) {
		s.transcriber = p
		s.streamCfg.Store(&cfg)
	}
}

// WithMaxBodyBytes caps JSON and text request bodies. Non-positive values
// are ignored. Default: [DefaultMaxBodyBytes].
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithMaxAudioBytes caps audio uploads. Default: [DefaultMaxAudioBytes].
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxAudio = n
		}
	}
}

// WithCacheSize sets the number of cached analysis results. Zero keeps the
// default; negative disables the cache.
func WithCacheSize(n int) Option {
	return func(s *Server) {
		if n != 0 {
			s.cacheSize = n
		}
	}
}

// FeedbackStore persists estimator feedback. [feedback.FileStore] satisfies it.
type FeedbackStore interface {
	Save(ctx context.Context, fb feedback.Feedback) error
}

var _ FeedbackStore = (*feedback.FileStore)(nil)

// WithFeedback enables POST /v1/feedback, storing feedback in store.
func WithFeedback(store FeedbackStore) Option {
	return func(s *Server) { s.feedback = store }
}

// WithReadiness adds readiness checks to GET /readyz.
func WithReadiness(checkers ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// Server is the HTTP API. It is safe for concurrent use.
type Server struct {
	analyzers      *analyzer.Holder
	metrics        *observe.Metrics
	metricsHandler http.Handler
	transcriber    stt.Provider
	feedback       FeedbackStore
	streamCfg      atomic.Pointer[stt.StreamConfig]
	maxBody        int64
	maxAudio       int64
	cacheSize      int
	cache          *resultCache
	checkers       []health.Checker
	handler        http.Handler
}

// New builds a Server over the analyzers held by h.
func New(h *analyzer.Holder, opts ...Option) (*Server, error) {
	if h == nil || h.Load() == nil {
		return nil, errors.New("server: an analyzer is required")
	}
	s := &Server{
		analyzers: h,
		maxBody:   DefaultMaxBodyBytes,
		maxAudio:  DefaultMaxAudioBytes,
		cacheSize: DefaultCacheSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.cacheSize > 0 {
		c, err := newResultCache(s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.cache = c
	}
	if t, ok := s.transcriber.(interface{ Check(context.Context) error }); ok {
		s.checkers = append(s.checkers, health.Checker{Name: "transcriber", Check: t.Check})
	}

	mux := http.NewServeMux()
	health.New(s.checkers...).Register(mux)
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/analyze/batch", s.handleBatch)
	mux.HandleFunc("POST /v1/analyze/audio", s.handleAudio)
	mux.HandleFunc("POST /v1/normalize", s.handleNormalize)
	mux.HandleFunc("POST /v1/correct", s.handleCorrect)
	mux.HandleFunc("POST /v1/feedback", s.handleFeedback)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	s.handler = observe.Middleware(s.metrics,
		observe.WithQuietPaths("/healthz", "/readyz", "/metrics"),
	)(mux)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// SetAnalyzer swaps the analyzer after a configuration reload. Cached results
// of the previous analyzer are dropped.
func (s *Server) SetAnalyzer(a *analyzer.Analyzer) {
	s.analyzers.Store(a)
	if s.cache != nil {
		s.cache.Purge()
	}
}

// SetStreamConfig replaces the session settings used for audio uploads.
func (s *Server) SetStreamConfig(cfg stt.StreamConfig) {
	s.streamCfg.Store(&cfg)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. TLS is used when tls is non-nil.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tls *config.TLSConfig) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()
	slog.Info("http server listening", "addr", addr, "tls", tls != nil)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	slog.Info("http server stopped", "addr", addr)
	return nil
}
