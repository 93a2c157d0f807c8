// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package config loads service configuration from defaults, an optional YAML
// file, command-line flags, and the environment, in that order of precedence
// (later wins).
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the resolved service configuration.
type Config struct {
	Database      DatabaseConfig      `koanf:"database"`
	Observability ObservabilityConfig `koanf:"observability"`
	NATS          NATSConfig          `koanf:"nats"`
	Dispatch      DispatchConfig      `koanf:"dispatch"`
	Sweep         SweepConfig         `koanf:"sweep"`
	Tokens        TokensConfig        `koanf:"tokens"`
	Log           LogConfig           `koanf:"log"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// ObservabilityConfig holds the metrics/health HTTP server settings.
type ObservabilityConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `koanf:"addr"`
}

// NATSConfig holds delivery transport settings.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// DispatchConfig holds notification fan-out settings.
type DispatchConfig struct {
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
}

// SweepConfig holds expired-token sweep settings.
type SweepConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// TokensConfig holds token issuance throttling settings. Token lifetimes
// are API parameters of the issuing services, not service configuration.
type TokensConfig struct {
	IssueRate  float64 `koanf:"issue_rate"`
	IssueBurst int     `koanf:"issue_burst"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"`
}

// defaults returns the built-in configuration values.
func defaults() map[string]any {
	return map[string]any{
		"observability.addr":       "127.0.0.1:9100",
		"nats.url":                 "nats://127.0.0.1:4222",
		"nats.subject_prefix":      "keygate.deliver",
		"dispatch.attempt_timeout": 5 * time.Second,
		"sweep.interval":           15 * time.Minute,
		"tokens.issue_rate":        5.0 / 60.0,
		"tokens.issue_burst":       5,
		"log.format":               "json",
	}
}

// Load resolves the configuration. path may be empty to skip the config
// file; flags may be nil to skip flag overrides. DATABASE_URL in the
// environment overrides database.url from any other source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "apply DATABASE_URL").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal config").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints. The database URL is not required
// here; commands that need it check for it themselves so read-only commands
// can run without one.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.Log.Format).
			Errorf("log format must be 'json' or 'text'")
	}
	if c.Dispatch.AttemptTimeout < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("dispatch attempt timeout cannot be negative")
	}
	if c.Sweep.Interval < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("sweep interval cannot be negative")
	}
	if c.Tokens.IssueRate < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token issue rate cannot be negative")
	}
	return nil
}
