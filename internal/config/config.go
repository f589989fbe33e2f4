// Package config loads mergetrace settings from defaults, an optional YAML
// file and MERGETRACE_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides
const EnvPrefix = "MERGETRACE_"

const maxConfigFileSize = 1024 * 1024

// Config is the complete run configuration
type Config struct {
	DB       DBConfig       `koanf:"db"`
	Sample   SampleConfig   `koanf:"sample"`
	Scoring  ScoringConfig  `koanf:"scoring"`
	Matching MatchingConfig `koanf:"matching"`
	Reports  ReportsConfig  `koanf:"reports"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DBConfig locates the message store
type DBConfig struct {
	Path string `koanf:"path"`
}

// SampleConfig bounds the batch fetched from the store. Zero means no limit.
type SampleConfig struct {
	Size        int `koanf:"size"`
	BatchSize   int `koanf:"batch_size"`
	PullLimit   int `koanf:"pull_limit"`
	CommitLimit int `koanf:"commit_limit"`
}

// ScoringConfig selects the evidence catalog and maintainer sources
type ScoringConfig struct {
	Catalog         string `koanf:"catalog"`
	MaintainersFile string `koanf:"maintainers_file"`
	Workers         int    `koanf:"workers"`
}

// MatchingConfig selects the subject similarity strategy
type MatchingConfig struct {
	Strategy  string  `koanf:"strategy"`
	Threshold float64 `koanf:"threshold"`
}

// ReportsConfig toggles report sections and where they are written
type ReportsConfig struct {
	Dir        string `koanf:"dir"`
	Merge      bool   `koanf:"merge"`
	Pulls      bool   `koanf:"pulls"`
	Unmatched  bool   `koanf:"unmatched"`
	Validation bool   `koanf:"validation"`
	Graph      bool   `koanf:"graph"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Sample: SampleConfig{
			Size:      5000,
			BatchSize: 0,
		},
		Scoring: ScoringConfig{
			Workers: 4,
		},
		Matching: MatchingConfig{
			Strategy:  "token-set",
			Threshold: 0.6,
		},
		Reports: ReportsConfig{
			Merge:      true,
			Pulls:      true,
			Unmatched:  true,
			Validation: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. An empty path skips the file layer; a
// path that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// MERGETRACE_MATCHING_THRESHOLD -> matching.threshold, MERGETRACE_DB -> db.path
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps a variable name to a config key; "" drops the variable.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if lower == "db" {
		return "db.path"
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.Sample.Size < 0 {
		return fmt.Errorf("sample.size must be >= 0, got %d", c.Sample.Size)
	}
	if c.Sample.BatchSize < 0 {
		return fmt.Errorf("sample.batch_size must be >= 0, got %d", c.Sample.BatchSize)
	}
	if c.Sample.PullLimit < 0 || c.Sample.CommitLimit < 0 {
		return fmt.Errorf("sample.pull_limit and sample.commit_limit must be >= 0")
	}
	if c.Scoring.Workers < 1 {
		return fmt.Errorf("scoring.workers must be >= 1, got %d", c.Scoring.Workers)
	}
	switch c.Matching.Strategy {
	case "token-set", "levenshtein":
	default:
		return fmt.Errorf("matching.strategy must be token-set or levenshtein, got %q", c.Matching.Strategy)
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold must be in (0,1], got %v", c.Matching.Threshold)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
