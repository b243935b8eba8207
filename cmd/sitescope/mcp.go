package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/mcp"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	var (
		transport string
		listen    string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analyzer as MCP tools",
		Long: `Serve analyze_narration, normalize_quantities and correct_terminology
as Model Context Protocol tools. The transport defaults to stdio; logs are
written to standard error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.MCP.Transport = config.Transport(transport)
			}
			if listen != "" {
				cfg.MCP.ListenAddr = listen
			}
			if cfg.MCP.Transport != "" && !cfg.MCP.Transport.IsValid() {
				return fmt.Errorf("unknown transport %q; valid values: stdio, streamable-http", cfg.MCP.Transport)
			}
			if cfg.MCP.Transport == config.TransportStreamableHTTP && cfg.MCP.ListenAddr == "" {
				cfg.MCP.ListenAddr = defaultListenAddr
			}

			a, err := analyzer.FromConfig(cfg)
			if err != nil {
				return err
			}
			s, err := mcp.New(analyzer.NewHolder(a), mcp.WithVersion(version))
			if err != nil {
				return err
			}
			return s.Serve(cmd.Context(), cfg.MCP)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "stdio or streamable-http (overrides mcp.transport)")
	cmd.Flags().StringVar(&listen, "listen", "", "address of the streamable HTTP transport (overrides mcp.listen_addr)")
	return cmd
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Long: `Load and validate the configuration file given with --config and build
the analyzer from it, including custom trade tables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root.configPath == "" {
				return errors.New("validate needs --config")
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if _, err := analyzer.FromConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", root.configPath)
			return nil
		},
	}
}
