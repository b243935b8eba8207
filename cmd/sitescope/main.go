// Command sitescope turns construction-site narration into trade-organized
// scope of work. It analyses narration files from the command line, serves
// the HTTP API and serves the analyzer as MCP tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sitescope/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// defaultListenAddr is used when server.listen_addr is not configured.
const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sitescope: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	level      slog.LevelVar
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "sitescope",
		Short: "Turn site walk-through narration into scope of work",
		Long: `sitescope extracts measurements from construction-site narration,
normalizes quantities, flags ambiguities and organizes the work by trade.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to the YAML configuration file (built-in defaults when empty)")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

// loadConfig reads the configured file, or returns the defaults when no file
// was given, and installs the logger for the configured level.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", o.configPath)
		}
		if err != nil {
			return nil, err
		}
	}
	o.setLogger(cfg.Server.LogLevel)
	return cfg, nil
}

// setLogger installs a stderr logger as the default. Later calls only change
// the level, so reloads take effect on loggers already handed out.
func (o *rootOptions) setLogger(level config.LogLevel) {
	o.level.Set(slogLevel(level))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &o.level})))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
