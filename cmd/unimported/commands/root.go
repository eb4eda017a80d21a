// Package commands implements CLI command handlers for unimported.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/unimported/pkg/config"
	"github.com/Sumatoshi-tech/unimported/pkg/observability"
	"github.com/Sumatoshi-tech/unimported/pkg/scan"
	"github.com/Sumatoshi-tech/unimported/pkg/version"
)

// Process exit codes.
const (
	ExitClean    = 0
	ExitFindings = 1
	ExitFatal    = 2
)

// ErrFindings is returned by the scan command when the report is not empty.
var ErrFindings = errors.New("findings reported")

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	quiet      bool
}

// NewRootCommand creates the root command. Run without a subcommand it
// scans the project at the given path.
func NewRootCommand() *cobra.Command {
	globals := &globalFlags{}

	rootCmd := newScanCommand(globals)
	rootCmd.Use = "unimported [path]"
	rootCmd.Short = "Find unimported files, unresolved imports and unused dependencies"
	rootCmd.Long = `unimported follows the imports of a JavaScript or TypeScript project from its
entry points and reports:
  - files that no entry point reaches
  - import specifiers that do not resolve to a file or a declared package
  - declared dependencies that are never imported

Exit status is 0 when nothing is reported, 1 when findings are reported and
2 on a fatal error.`
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVar(&globals.configPath, "config", "", "settings file (default: ./unimported.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.quiet, "quiet", "q", false, "suppress output")

	scanCmd := newScanCommand(globals)
	scanCmd.Use = "scan [path]"
	scanCmd.Short = "Scan a project (same as running without a subcommand)"

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(newMCPCommand(globals))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitClean
	case errors.Is(err, ErrFindings):
		return ExitFindings
	default:
		return ExitFatal
	}
}

// ReportError prints a command error. Findings were already rendered and
// print nothing.
func ReportError(w io.Writer, err error) {
	if errors.Is(err, ErrFindings) {
		return
	}

	var fatal *scan.FatalError
	if errors.As(err, &fatal) {
		fmt.Fprintf(w, "%s could not process %s\n  entry: %s\n  cause: %v\n",
			color.New(color.FgRed, color.Bold).Sprint("fatal:"), fatal.Path, fatal.Entry, fatal.Err)

		return
	}

	fmt.Fprintf(w, "Error: %v\n", err)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// observabilityConfig derives the telemetry setup from settings and the
// persistent verbosity flags.
func observabilityConfig(settings *config.Settings, globals *globalFlags, logWriter io.Writer) (observability.Config, error) {
	level, err := settings.Logging.SlogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = settings.Telemetry.OTLPEndpoint
	cfg.OTLPInsecure = settings.Telemetry.OTLPInsecure
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.LogJSON = settings.Logging.JSON
	cfg.LogLevel = level
	cfg.LogWriter = logWriter

	switch {
	case globals.quiet:
		cfg.LogLevel = slog.LevelError
	case globals.verbose:
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return cfg, nil
}
