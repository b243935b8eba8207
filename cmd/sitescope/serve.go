package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/capture"
	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/feedback"
	"github.com/MrWong99/sitescope/internal/health"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var pollInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the narration analysis HTTP API. When a configuration file is
given it is watched, and analysis, terminology and transcriber settings are
applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, pollInterval)
		},
	}
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 5*time.Second,
		"how often the configuration file is checked for changes")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, pollInterval time.Duration) error {
	ctx := cmd.Context()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	slog.Info("sitescope starting",
		"version", version,
		"config", root.configPath,
		"listen_addr", addr,
		"log_level", root.level.Level(),
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Registerer:     reg,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Analyzer and transcriber ──────────────────────────────────────────────
	a, err := analyzer.FromConfig(cfg, analyzer.WithMetrics(metrics))
	if err != nil {
		return err
	}
	var ready health.Flag
	opts := []server.Option{
		server.WithMetrics(metrics),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithCacheSize(cfg.Server.CacheSize),
		server.WithReadiness(ready.Checker("config")),
	}
	if cfg.Telemetry.Metrics {
		opts = append(opts, server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	if cfg.Server.FeedbackFile != "" {
		opts = append(opts, server.WithFeedback(feedback.NewFileStore(cfg.Server.FeedbackFile)))
	}
	transcribers, err := capture.NewTranscriber(cfg.Transcriber)
	if err != nil {
		return err
	}
	if transcribers != nil {
		opts = append(opts, server.WithTranscriber(transcribers, capture.StreamConfig(cfg.Transcriber)))
	}

	srv, err := server.New(analyzer.NewHolder(a), opts...)
	if err != nil {
		return err
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	if root.configPath != "" {
		r := &reloader{root: root, srv: srv, metrics: metrics, current: cfg}
		w, err := config.NewWatcher(root.configPath, r.apply, config.WithInterval(pollInterval))
		if err != nil {
			return err
		}
		defer w.Stop()
		// The file may have changed between the first load and the watcher's.
		r.apply(cfg, w.Current())
	}

	ready.Set(true)
	slog.Info("server ready, press Ctrl+C to shut down")
	return srv.ListenAndServe(ctx, addr, cfg.Server.TLS)
}

// reloader applies configuration changes to a running server.
type reloader struct {
	root    *rootOptions
	srv     *server.Server
	metrics *observe.Metrics

	mu      sync.Mutex
	current *config.Config
}

// apply moves the server from the config it runs on to next. The watcher's
// previous config is ignored since a failed rebuild leaves the server behind.
func (r *reloader) apply(_, next *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := config.Diff(r.current, next)
	for _, section := range d.RestartRequired {
		slog.Warn("config change requires a restart", "section", section)
	}
	if !d.Changed() {
		r.current = next
		return
	}

	if d.LogLevelChanged {
		r.root.level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.TranscriberChanged {
		r.srv.SetStreamConfig(capture.StreamConfig(next.Transcriber))
	}
	if d.RebuildAnalyzer() || d.BatchChanged {
		a, err := analyzer.FromConfig(next, analyzer.WithMetrics(r.metrics))
		if err != nil {
			// Keep serving with the previous analyzer.
			slog.Error("config reload: rebuild analyzer", "err", err)
			return
		}
		r.srv.SetAnalyzer(a)
		slog.Info("analyzer rebuilt",
			"analysis", d.AnalysisChanged,
			"terminology", d.TerminologyChanged,
			"transcriber", d.TranscriberChanged,
			"batch", d.BatchChanged,
		)
	}
	r.current = next
}
