// Package config loads folderstat settings from defaults, an optional YAML
// file and FOLDERSTAT_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/idelchi/folderstat/internal/aggregate"
	"github.com/idelchi/folderstat/internal/cache"
	"github.com/idelchi/folderstat/internal/duration"
	"github.com/idelchi/folderstat/internal/folderstat"
	"github.com/idelchi/folderstat/internal/prune"
)

// EnvPrefix prefixes environment overrides, e.g. FOLDERSTAT_ANALYSIS_WORKERS.
const EnvPrefix = "FOLDERSTAT"

// Config represents the folderstat configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Prune    PruneConfig    `mapstructure:"prune"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`

	Output string `mapstructure:"output" validate:"oneof=table json"` // table or json
}

// AnalysisConfig holds the scan settings
type AnalysisConfig struct {
	CalculateDurations bool  `mapstructure:"calculate_durations"`
	MaxFiles           int64 `mapstructure:"max_files"`    // 0 = unlimited
	MaxDepth           int   `mapstructure:"max_depth"`    // 0 = unlimited
	Workers            int   `mapstructure:"workers"`      // worker goroutines
	BatchSize          int   `mapstructure:"batch_size"`   // files per size batch
	Parallel           bool  `mapstructure:"parallel"`     // parallel subtree scan
	SampleFiles        int   `mapstructure:"sample_files"` // sample paths per category
}

// PruneConfig holds the directory pruning settings
type PruneConfig struct {
	SkipSystemDirs bool     `mapstructure:"skip_system_dirs"`
	SkipHidden     bool     `mapstructure:"skip_hidden"` // also prune dot-prefixed directories
	DenyList       []string `mapstructure:"deny_list"`   // replaces the built-in list
	ExtraDeny      []string `mapstructure:"extra_deny"`  // extends the list
}

// ClassifyConfig extends the extension table
type ClassifyConfig struct {
	Extra map[string]string `mapstructure:"extra"` // extension (without dot) -> category
}

// CacheConfig holds the result cache settings
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	Validation string        `mapstructure:"validation" validate:"oneof=root tree"`
	Dir        string        `mapstructure:"dir"` // persistent store, empty = memory only
}

// ProbeConfig holds the ffprobe settings
type ProbeConfig struct {
	FFprobePath string        `mapstructure:"ffprobe_path"` // empty = discover
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the HTTP adapter settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds the logging settings
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Load reads configuration from defaults, the optional file and the environment.
func Load(file string) (*Config, error) {
	v := viper.New()

	defaults := folderstat.DefaultOptions()

	// Analysis defaults
	v.SetDefault("analysis.calculate_durations", defaults.CalculateDurations)
	v.SetDefault("analysis.max_files", defaults.MaxFiles)
	v.SetDefault("analysis.max_depth", defaults.MaxDepth)
	v.SetDefault("analysis.workers", defaults.MaxWorkers)
	v.SetDefault("analysis.batch_size", defaults.BatchSize)
	v.SetDefault("analysis.parallel", defaults.Parallel)
	v.SetDefault("analysis.sample_files", aggregate.DefaultSampleCap)

	// Prune defaults
	v.SetDefault("prune.skip_system_dirs", true)
	v.SetDefault("prune.skip_hidden", false)
	v.SetDefault("prune.deny_list", prune.DefaultDenyList)
	v.SetDefault("prune.extra_deny", []string{})

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.validation", string(cache.ValidationTree))
	v.SetDefault("cache.dir", "")

	// Probe defaults
	v.SetDefault("probe.ffprobe_path", "")
	v.SetDefault("probe.timeout", duration.DefaultProbeTimeout)

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("log.level", "warn")
	v.SetDefault("output", "table")

	if file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", file, err)
		}
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerated settings and the derived analysis options.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := c.AnalyzeOptions().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// AnalyzeOptions converts the configuration into analysis options.
func (c *Config) AnalyzeOptions() folderstat.Options {
	return folderstat.Options{
		CalculateDurations: c.Analysis.CalculateDurations,
		MaxFiles:           c.Analysis.MaxFiles,
		MaxDepth:           c.Analysis.MaxDepth,
		MaxWorkers:         c.Analysis.Workers,
		BatchSize:          c.Analysis.BatchSize,
		SkipSystemDirs:     c.Prune.SkipSystemDirs,
		SkipHidden:         c.Prune.SkipHidden,
		DenyList:           c.Prune.DenyList,
		ExtraDeny:          c.Prune.ExtraDeny,
		Extensions:         c.Classify.Extra,
		CacheTTL:           c.Cache.TTL,
		NoCache:            !c.Cache.Enabled,
		Parallel:           c.Analysis.Parallel,
		SampleFiles:        c.Analysis.SampleFiles,
	}
}
