// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the service's TOML configuration via viper, with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every externally-tunable setting. Bucket name, region, and
// the notification topic ARN are deliberately not configurable: they are
// fixed by the deployment (see internal/objectstore, internal/notifyqueue).
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	UpstreamRootURL  string `mapstructure:"upstreamRootURL"`
	UpstreamUsername string `mapstructure:"upstreamUsername"`
	UpstreamPassword string `mapstructure:"upstreamPassword"`

	LogLevel string `mapstructure:"logLevel"`

	CORSAllowedOrigins []string `mapstructure:"corsAllowedOrigins"`
}

const envPrefix = "REPLICA_SEARCH"

// New loads configuration from the TOML file at path, applying defaults
// and then environment variable overrides of the form
// REPLICA_SEARCH_UPSTREAMROOTURL, matching the key name case-insensitively.
func New(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("upstreamRootURL", "http://localhost:9999")
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("corsAllowedOrigins", []string{"*"})

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Addr returns the host:port the HTTP server should listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
