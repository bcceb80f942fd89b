package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the echo server configuration. Values come from an optional
// YAML file and are then overridden by command line flags.
type Config struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Backlog int    `yaml:"backlog"`

	Codec                  string        `yaml:"codec"`
	FrameSize              int           `yaml:"frame_size"`
	MaxFailures            int           `yaml:"max_failures"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	WriteTimeout           time.Duration `yaml:"write_timeout"`

	LogLevel string `yaml:"log_level"`

	MDNS MDNSConfig `yaml:"mdns"`
}

// MDNSConfig controls DNS-SD advertisement of the listener.
type MDNSConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Instance string        `yaml:"instance"`
	Service  string        `yaml:"service"`
	Domain   string        `yaml:"domain"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Name:                   "framesock-echo",
		Address:                "127.0.0.1:9400",
		Backlog:                64,
		Codec:                  "raw",
		FrameSize:              256,
		MaxFailures:            10,
		MaxConsecutiveFailures: 3,
		LogLevel:               "info",
		MDNS: MDNSConfig{
			Instance: "framesock-echo",
			Service:  "_framesock._tcp",
			Domain:   "local.",
		},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}

	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}
	if c.FrameSize <= 0 {
		return errors.Errorf("frame_size must be positive, got %d", c.FrameSize)
	}
	if c.MaxFailures < 0 || c.MaxConsecutiveFailures < 0 {
		return errors.New("failure budgets must not be negative")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
