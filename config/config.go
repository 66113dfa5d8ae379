// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the livefeed core.
type Config struct {
	Stream  StreamConfig  `yaml:"stream"`
	API     APIConfig     `yaml:"api"`
	Feeds   FeedConfig    `yaml:"feeds"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StreamConfig holds push channel configuration.
type StreamConfig struct {
	URL              string        `yaml:"url"` // ws:// or wss:// endpoint
	AuthToken        string        `yaml:"auth_token"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
}

// APIConfig holds REST collaborator configuration.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	// Circuit breaker settings
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// FeedConfig holds cursor feed settings.
type FeedConfig struct {
	PageSize int `yaml:"page_size"`

	// Minimum interval between invalidation-triggered resyncs of one
	// feed; storms coalesce behind it.
	ResyncMinInterval time.Duration `yaml:"resync_min_interval"`

	// Broadcast channel capacity
	BroadcastBuffer int `yaml:"broadcast_buffer"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig holds OpenTelemetry instrument configuration.
type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Stream: StreamConfig{
			HandshakeTimeout: 10 * time.Second,
			ReconnectInitial: 1 * time.Second,
			ReconnectMax:     30 * time.Second,
		},
		API: APIConfig{
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Feeds: FeedConfig{
			PageSize:          20,
			ResyncMinInterval: 2 * time.Second,
			BroadcastBuffer:   64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			ServiceName: "livefeed",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist,
// returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("stream.url cannot be empty")
	}
	if c.Stream.ReconnectInitial <= 0 {
		return fmt.Errorf("stream.reconnect_initial must be positive")
	}
	if c.Stream.ReconnectMax < c.Stream.ReconnectInitial {
		return fmt.Errorf("stream.reconnect_max must be at least stream.reconnect_initial")
	}

	if c.Feeds.PageSize < 1 {
		return fmt.Errorf("feeds.page_size must be at least 1")
	}
	if c.Feeds.BroadcastBuffer < 1 {
		return fmt.Errorf("feeds.broadcast_buffer must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	if c.API.BaseURL != "" {
		if c.API.Timeout < time.Second {
			return fmt.Errorf("api.timeout must be at least 1 second")
		}
		if c.API.FailureThreshold < 1 {
			return fmt.Errorf("api.failure_threshold must be at least 1")
		}
	}

	if c.Metrics.Enabled && c.Metrics.ServiceName == "" {
		return fmt.Errorf("metrics.service_name cannot be empty when metrics enabled")
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
