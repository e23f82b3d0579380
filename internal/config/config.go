// Package config loads optional YAML configuration shared by the server
// and CLI binaries. Flags and environment variables override whatever the
// file provides, so the file itself never becomes required.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	MarketData MarketDataConfig `yaml:"marketdata"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// StorageConfig selects and configures the price-bar cache backend.
type StorageConfig struct {
	// Backend is one of "memory", "postgres", "clickhouse", "redis".
	Backend       string        `yaml:"backend"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	ClickhouseDSN string        `yaml:"clickhouse_dsn"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
}

// MarketDataConfig configures the external price provider.
type MarketDataConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnalysisConfig carries run defaults for event studies.
type AnalysisConfig struct {
	BenchmarkTicker      string `yaml:"benchmark_ticker"`
	EstimationWindowDays int    `yaml:"estimation_window_days"`
	EventWindowDays      int    `yaml:"event_window_days"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      ":8080",
			MetricsAddr: ":9090",
		},
		Storage: StorageConfig{
			Backend:  "memory",
			RedisTTL: 7 * 24 * time.Hour,
		},
		MarketData: MarketDataConfig{
			Timeout: 30 * time.Second,
		},
		Analysis: AnalysisConfig{
			BenchmarkTicker:      "^GSPC",
			EstimationWindowDays: 252,
			EventWindowDays:      7,
		},
	}
}

// Load reads a YAML config file, filling omitted fields from Default.
// A missing path is not an error: the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the binaries cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend postgres requires postgres_dsn")
		}
	case "clickhouse":
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage backend clickhouse requires clickhouse_dsn")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Analysis.EstimationWindowDays < 0 || c.Analysis.EventWindowDays < 0 {
		return fmt.Errorf("analysis windows must be non-negative")
	}
	return nil
}
