// Package common provides shared utilities for portwatch
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for portwatch
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Refresh     RefreshConfig   `toml:"refresh"`
	Market      MarketConfig    `toml:"market"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Auth        AuthConfig      `toml:"auth"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend   string `toml:"backend"` // "memory" or "surrealdb"
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD        ProviderConfig `toml:"eodhd"`
	AlphaVantage ProviderConfig `toml:"alphavantage"`
}

// ProviderConfig holds upstream data provider configuration
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// RefreshConfig holds refresh engine tuning
type RefreshConfig struct {
	BatchDelay      string           `toml:"batch_delay"`
	ProviderTimeout string           `toml:"provider_timeout"`
	AutoCreate      bool             `toml:"auto_create"`
	Thresholds      ThresholdsConfig `toml:"thresholds"`
}

// ThresholdsConfig overrides per-tier staleness thresholds (duration strings).
type ThresholdsConfig struct {
	RealTime  string `toml:"realtime"`
	Daily     string `toml:"daily"`
	Weekly    string `toml:"weekly"`
	Quarterly string `toml:"quarterly"`
}

// GetBatchDelay parses and returns the inter-request delay
func (c *RefreshConfig) GetBatchDelay() time.Duration {
	d, err := time.ParseDuration(c.BatchDelay)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetProviderTimeout parses and returns the per-call provider bound
func (c *RefreshConfig) GetProviderTimeout() time.Duration {
	d, err := time.ParseDuration(c.ProviderTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// MarketConfig describes the exchange session used to gate real-time refreshes.
type MarketConfig struct {
	Timezone   string `toml:"timezone"`
	Open       string `toml:"open"`
	Close      string `toml:"close"`
	HolidayMIC string `toml:"holiday_mic"` // e.g. "xnys"; empty disables holiday checks
}

// SchedulerConfig holds the in-process tier schedules.
type SchedulerConfig struct {
	Enabled          bool   `toml:"enabled"`
	RealTimeInterval int    `toml:"realtime_interval"` // minutes
	DailyAt          string `toml:"daily_at"`
	WeeklyAt         string `toml:"weekly_at"` // Sunday
	QuarterlyAt      string `toml:"quarterly_at"`
}

// AuthConfig holds the shared secret for the scheduling trigger.
type AuthConfig struct {
	CronSecret string `toml:"cron_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "memory",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "portwatch",
			Database:  "portwatch",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			EODHD: ProviderConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			AlphaVantage: ProviderConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 1,
				Timeout:   "30s",
			},
		},
		Refresh: RefreshConfig{
			BatchDelay:      "100ms",
			ProviderTimeout: "10s",
			AutoCreate:      true,
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Scheduler: SchedulerConfig{
			Enabled:          false,
			RealTimeInterval: 5,
			DailyAt:          "18:00",
			WeeklyAt:         "06:00",
			QuarterlyAt:      "07:00",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PORTWATCH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("PORTWATCH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PORTWATCH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PORTWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("PORTWATCH_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("PORTWATCH_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("PORTWATCH_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("PORTWATCH_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if v := os.Getenv("PORTWATCH_SCHEDULER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Scheduler.Enabled = b
		}
	}

	// API keys and secrets
	if v := firstEnv("EODHD_API_KEY", "PORTWATCH_EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}
	if v := firstEnv("ALPHAVANTAGE_API_KEY", "PORTWATCH_ALPHAVANTAGE_API_KEY"); v != "" {
		config.Clients.AlphaVantage.APIKey = v
	}
	if v := firstEnv("PORTWATCH_CRON_SECRET", "CRON_SECRET"); v != "" {
		config.Auth.CronSecret = v
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// ValidateRequired returns the names of required settings that are missing.
// Values are checked for presence only.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if strings.TrimSpace(c.Clients.EODHD.APIKey) == "" {
		missing = append(missing, "clients.eodhd.api_key")
	}
	if strings.TrimSpace(c.Clients.AlphaVantage.APIKey) == "" {
		missing = append(missing, "clients.alphavantage.api_key")
	}
	if strings.TrimSpace(c.Auth.CronSecret) == "" {
		missing = append(missing, "auth.cron_secret")
	}
	return missing
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
