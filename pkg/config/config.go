// Package config loads tool settings and per-project scan configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/unimported/pkg/cache"
)

// Sentinel validation errors.
var (
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidConcurrency = errors.New("scan concurrency must not be negative")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidMaxEntries  = errors.New("cache max entries must not be negative")
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "UNIMPORTED"

// DefaultCacheDir is the cache location relative to the project root.
var DefaultCacheDir = filepath.Join("node_modules", ".cache", "unimported")

// Settings holds tool behaviour that is independent of the scanned project.
type Settings struct {
	Cache     CacheSettings     `mapstructure:"cache" yaml:"cache"`
	Scan      ScanSettings      `mapstructure:"scan" yaml:"scan"`
	Output    OutputSettings    `mapstructure:"output" yaml:"output"`
	Logging   LoggingSettings   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry"`
}

// CacheSettings configures the fingerprint cache.
type CacheSettings struct {
	Directory   string `mapstructure:"directory" yaml:"directory"`
	Fingerprint string `mapstructure:"fingerprint" yaml:"fingerprint"`
	MaxEntries  int    `mapstructure:"max_entries" yaml:"max_entries"`
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Clear       bool   `mapstructure:"clear" yaml:"clear"`
}

// ScanSettings configures traversal and reporting.
type ScanSettings struct {
	Concurrency       int  `mapstructure:"concurrency" yaml:"concurrency"`
	IgnoreUntracked   bool `mapstructure:"ignore_untracked" yaml:"ignore_untracked"`
	SkipVendored      bool `mapstructure:"skip_vendored" yaml:"skip_vendored"`
	IncludeDev        bool `mapstructure:"include_dev" yaml:"include_dev"`
	StrictTypeImports bool `mapstructure:"strict_type_imports" yaml:"strict_type_imports"`
}

// OutputSettings configures report rendering.
type OutputSettings struct {
	Format  string `mapstructure:"format" yaml:"format"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color"`
}

// LoggingSettings configures the process logger.
type LoggingSettings struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// TelemetrySettings configures OpenTelemetry export.
type TelemetrySettings struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
}

// flagKeys maps command-line flag names to settings keys.
var flagKeys = map[string]string{
	"cache-dir":           "cache.directory",
	"fingerprint":         "cache.fingerprint",
	"clear-cache":         "cache.clear",
	"concurrency":         "scan.concurrency",
	"ignore-untracked":    "scan.ignore_untracked",
	"skip-vendored":       "scan.skip_vendored",
	"include-dev":         "scan.include_dev",
	"strict-type-imports": "scan.strict_type_imports",
	"format":              "output.format",
	"no-color":            "output.no_color",
	"log-json":            "logging.json",
	"otlp-endpoint":       "telemetry.otlp_endpoint",
}

// Load reads settings from defaults, an optional YAML file, UNIMPORTED_*
// environment variables and the given flags, in increasing precedence.
// An empty configPath looks for unimported.yaml in the working directory
// and the user config directory; a missing file is not an error then.
func Load(configPath string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("unimported")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/unimported")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}

			err := v.BindPFlag(key, flag)
			if err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var settings Settings

	unmarshalErr := v.Unmarshal(&settings)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := settings.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.directory", "")
	v.SetDefault("cache.fingerprint", string(cache.ModeStat))
	v.SetDefault("cache.max_entries", cache.DefaultMaxEntries)
	v.SetDefault("cache.clear", false)

	v.SetDefault("scan.concurrency", runtime.NumCPU())
	v.SetDefault("scan.ignore_untracked", false)
	v.SetDefault("scan.skip_vendored", false)
	v.SetDefault("scan.include_dev", false)
	v.SetDefault("scan.strict_type_imports", false)

	v.SetDefault("output.format", FormatText)
	v.SetDefault("output.no_color", false)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.json", false)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
}

// Validate checks value ranges and enumerations.
func (s *Settings) Validate() error {
	switch s.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, s.Output.Format)
	}

	if s.Scan.Concurrency < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, s.Scan.Concurrency)
	}

	if s.Cache.MaxEntries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxEntries, s.Cache.MaxEntries)
	}

	_, err := cache.ParseMode(s.Cache.Fingerprint)
	if err != nil {
		return err
	}

	_, err = s.Logging.SlogLevel()

	return err
}

// SlogLevel parses the configured level name.
func (l LoggingSettings) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(l.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// CacheDir returns the cache store directory for a project root.
func (s *Settings) CacheDir(root string) string {
	if s.Cache.Directory == "" {
		return filepath.Join(root, DefaultCacheDir)
	}

	if filepath.IsAbs(s.Cache.Directory) {
		return s.Cache.Directory
	}

	return filepath.Join(root, s.Cache.Directory)
}

// Defaults returns the settings Load produces with no file, environment
// or flags.
func Defaults() *Settings {
	v := viper.New()

	setDefaults(v)

	var settings Settings

	err := v.Unmarshal(&settings)
	if err != nil {
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}

	return &settings
}
