// Package config provides Viper-based configuration loading for the sandbox
// host shell: the resource ceilings the main worker installs before a
// script runs, plus logging options.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LimitsConfig holds the per-run resource ceilings the host installs on the
// main worker before a script executes.
type LimitsConfig struct {
	MaxInstructions int `mapstructure:"max_instructions"`
	MaxStringSize   int `mapstructure:"max_string_size"`
	MaxSourceLen    int `mapstructure:"max_source_len"`
	OrphanCheckSecs int `mapstructure:"orphan_check_secs"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the top-level host-shell configuration.
type Config struct {
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
func (c Config) Validate() error {
	var errs []string
	if c.Limits.MaxInstructions <= 0 {
		errs = append(errs, "limits.max_instructions must be > 0")
	}
	if c.Limits.MaxStringSize <= 0 {
		errs = append(errs, "limits.max_string_size must be > 0")
	}
	if c.Limits.MaxSourceLen <= 0 {
		errs = append(errs, "limits.max_source_len must be > 0")
	}
	if c.Limits.OrphanCheckSecs <= 0 {
		errs = append(errs, "limits.orphan_check_secs must be > 0")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("limits.max_instructions", 1_000_000)
	v.SetDefault("limits.max_string_size", 1<<20)
	v.SetDefault("limits.max_source_len", 1<<20)
	v.SetDefault("limits.orphan_check_secs", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads configuration from path (if non-empty and present), applies
// LUASANDBOX_-prefixed environment overrides, and validates the result.
// An absent path is not an error: defaults plus environment still produce
// a valid Config.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LUASANDBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
