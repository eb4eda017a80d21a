package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/unimported/pkg/cache"
	"github.com/Sumatoshi-tech/unimported/pkg/config"
	"github.com/Sumatoshi-tech/unimported/pkg/manifest"
	"github.com/Sumatoshi-tech/unimported/pkg/observability"
	"github.com/Sumatoshi-tech/unimported/pkg/report"
	"github.com/Sumatoshi-tech/unimported/pkg/scan"
)

// ScanCommand holds the flags of a scan invocation.
type ScanCommand struct {
	globals *globalFlags

	noCache    bool
	showConfig bool
}

func newScanCommand(globals *globalFlags) *cobra.Command {
	sc := &ScanCommand{globals: globals}

	cmd := &cobra.Command{
		Args: cobra.MaximumNArgs(1),
		RunE: sc.run,
	}

	flags := cmd.Flags()
	flags.String("format", config.FormatText, "output format: text, json or yaml")
	flags.BoolVar(&sc.noCache, "no-cache", false, "do not read or write the on-disk cache")
	flags.Bool("clear-cache", false, "drop the on-disk cache before scanning")
	flags.String("cache-dir", "", "cache directory (default: <root>/node_modules/.cache/unimported)")
	flags.String("fingerprint", string(cache.ModeStat), "cache fingerprint: stat or content")
	flags.Bool("ignore-untracked", false, "skip files git reports as untracked")
	flags.Bool("skip-vendored", false, "skip vendored and generated files")
	flags.Bool("include-dev", false, "also check devDependencies for unused entries")
	flags.Bool("strict-type-imports", false, "report files reached only through type imports")
	flags.Int("concurrency", 0, "parallel file traversals (default: number of CPUs)")
	flags.BoolVar(&sc.showConfig, "show-config", false, "print the resolved configuration and exit")
	flags.Bool("no-color", false, "disable colored output")
	flags.Bool("log-json", false, "emit logs as JSON")
	flags.String("otlp-endpoint", "", "OTLP gRPC collector address")

	return cmd
}

func (sc *ScanCommand) run(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	settings, err := config.Load(sc.globals.configPath, cmd.Flags())
	if err != nil {
		return err
	}

	if sc.noCache {
		settings.Cache.Enabled = false
	}

	if sc.showConfig {
		return writeResolvedConfig(cmd.OutOrStdout(), root, settings)
	}

	obsCfg, err := observabilityConfig(settings, sc.globals, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	obsCfg.Mode = observability.ModeCLI

	providers, err := observability.Init(obsCfg)
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

	scanner := scan.New(scan.Options{
		Logger:  providers.Logger,
		Tracer:  providers.Tracer,
		Metrics: metrics,
		Mode:    observability.ModeCLI,
	})

	out, err := scanner.Run(cmd.Context(), scan.Request{Root: root, Settings: settings})
	if err != nil {
		return err
	}

	err = report.Render(cmd.OutOrStdout(), out.Report, report.RenderOptions{
		Format: settings.Output.Format,
		Color:  !settings.Output.NoColor && !color.NoColor,
	})
	if err != nil {
		return err
	}

	if !out.Report.Empty() {
		return ErrFindings
	}

	return nil
}

type shownEntry struct {
	File            string              `yaml:"file"`
	Label           string              `yaml:"label,omitempty"`
	Extensions      []string            `yaml:"extensions"`
	Aliases         map[string][]string `yaml:"aliases,omitempty"`
	ModuleDirectory []string            `yaml:"moduleDirectory"`
	RootDir         string              `yaml:"rootDir"`
}

type shownConfig struct {
	Root     string           `yaml:"root"`
	Entries  []shownEntry     `yaml:"entries"`
	Ignore   []string         `yaml:"ignorePatterns"`
	Settings *config.Settings `yaml:"settings"`
}

// writeResolvedConfig prints the settings and the per-entry resolution
// config a scan of root would use.
func writeResolvedConfig(w io.Writer, root string, settings *config.Settings) error {
	project, err := config.LoadProject(root)
	if err != nil {
		return err
	}

	m, err := manifest.Load(root)
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		return err
	}

	plan, err := config.BuildPlan(root, project, m)
	if err != nil {
		return err
	}

	shown := shownConfig{
		Root:     plan.Root,
		Entries:  make([]shownEntry, 0, len(plan.Entries)),
		Ignore:   project.IgnoreGlobs(),
		Settings: settings,
	}

	for _, entry := range plan.Entries {
		cfg := plan.Global.WithOverride(entry.Override)

		shown.Entries = append(shown.Entries, shownEntry{
			File:            entry.File,
			Label:           entry.Label,
			Extensions:      cfg.Extensions,
			Aliases:         cfg.Aliases,
			ModuleDirectory: cfg.ModuleDirectory,
			RootDir:         cfg.RootDir,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err = enc.Encode(shown)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}
