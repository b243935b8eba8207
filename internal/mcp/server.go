// Package mcp serves the narration analyzer as Model Context Protocol tools,
// so an assistant can turn a contractor's walk-through into structured scope
// while it drafts an estimate.
//
// Tools:
//
//   - analyze_narration: the full pipeline, as JSON or a text report.
//   - normalize_quantities: measurements and normalized quantities only.
//   - correct_terminology: terminology correction only.
//
// Tools are served over stdio or the streamable HTTP transport.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/observe"
)

// Tool names.
const (
	ToolAnalyze   = "analyze_narration"
	ToolNormalize = "normalize_quantities"
	ToolCorrect   = "correct_terminology"
)

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithMetrics records tool metrics on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithVersion sets the implementation version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// Server exposes the analyzers held by an [analyzer.Holder] as MCP tools.
type Server struct {
	analyzers *analyzer.Holder
	metrics   *observe.Metrics
	version   string
	server    *mcpsdk.Server
}

// New creates a Server with every tool registered.
func New(h *analyzer.Holder, opts ...Option) (*Server, error) {
	if h == nil || h.Load() == nil {
		return nil, errors.New("mcp: an analyzer is required")
	}
	s := &Server{analyzers: h, version: "dev"}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	s.server = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "sitescope",
		Version: s.version,
	}, nil)
	s.registerTools()
	return s, nil
}

// Server returns the underlying SDK server, for custom transports.
func (s *Server) Server() *mcpsdk.Server { return s.server }

// Serve runs the transport selected by cfg until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, cfg config.MCPConfig) error {
	switch cfg.Transport {
	case config.TransportStreamableHTTP:
		return s.RunHTTP(ctx, cfg.ListenAddr)
	case config.TransportStdio, "":
		return s.Run(ctx)
	default:
		return fmt.Errorf("mcp: unknown transport %q", cfg.Transport)
	}
}

// Run serves over stdin/stdout. It blocks until the client disconnects or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp server running", "transport", config.TransportStdio)
	err := s.server.Run(ctx, &mcpsdk.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.server
	}, nil)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("mcp server listening", "transport", config.TransportStreamableHTTP, "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp: listen %s: %w", addr, err)
	}
	return nil
}
