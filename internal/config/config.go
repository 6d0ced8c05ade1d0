// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

// Package config loads server configuration from defaults, an optional YAML
// file, SWIFTARR_-prefixed environment variables, and command-line flags, in
// ascending order of precedence.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the full server configuration.
type Config struct {
	Server        ServerConfig   `koanf:"server"`
	Observability ObsConfig      `koanf:"observability"`
	Database      DatabaseConfig `koanf:"database"`
	Log           LogConfig      `koanf:"log"`
	Auth          AuthConfig     `koanf:"auth"`
}

// ServerConfig configures the public API listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// ObsConfig configures the metrics and health probe listener.
type ObsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthConfig tunes the authentication service.
type AuthConfig struct {
	// MaxHashConcurrency bounds simultaneous password hash computations.
	// Zero means one per CPU.
	MaxHashConcurrency int `koanf:"max_hash_concurrency"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.addr":               ":8081",
		"observability.addr":        ":9100",
		"database.url":              "",
		"log.level":                 "info",
		"log.format":                "text",
		"auth.max_hash_concurrency": 0,
	}
}

// Load builds the configuration. path names an optional YAML file; flags, if
// non-nil, is a parsed flag set whose set flags override everything else.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.With("stage", "defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
	}

	// SWIFTARR_LOG_LEVEL becomes log.level, and so on. Only the first
	// underscore splits, so section names stay single words.
	envProvider := env.Provider("SWIFTARR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SWIFTARR_")), "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.With("stage", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.With("stage", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("stage", "unmarshal").Wrap(err)
	}

	// The bare DATABASE_URL convention still works when nothing else set one.
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	return &cfg, nil
}

// Validate checks invariants that every command needing a database shares.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Hint("set database.url, SWIFTARR_DATABASE_URL, or DATABASE_URL").
			Errorf("database URL is required")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return oops.With("format", c.Log.Format).Errorf("log format must be \"text\" or \"json\"")
	}
	return nil
}
