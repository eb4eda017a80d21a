package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/unimported/internal/mcp"
	"github.com/Sumatoshi-tech/unimported/pkg/config"
	"github.com/Sumatoshi-tech/unimported/pkg/observability"
)

func newMCPCommand(globals *globalFlags) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes one tool:
  - unimported_scan: scan a project by absolute path and return the JSON report`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			settings, err := config.Load(globals.configPath, nil)
			if err != nil {
				return err
			}

			cfg, err := observabilityConfig(settings, globals, os.Stderr)
			if err != nil {
				return err
			}

			applyMCPObservability(&cfg, debug)

			providers, err := observability.Init(cfg)
			if err != nil {
				return fmt.Errorf("init observability: %w", err)
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			metrics, err := observability.NewScanMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:   providers.Logger,
				Metrics:  metrics,
				Tracer:   providers.Tracer,
				Settings: settings,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}

// applyMCPObservability switches the config to MCP mode. Standard OTEL_*
// variables fill an unset endpoint.
func applyMCPObservability(cfg *observability.Config, debug bool) {
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true

	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	}

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}
}
