package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultPort(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("PORTWATCH_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_ValidateRequired_AllMissing(t *testing.T) {
	cfg := &Config{}
	missing := cfg.ValidateRequired()
	if len(missing) != 3 {
		t.Errorf("expected 3 missing fields, got %d: %v", len(missing), missing)
	}
}

func TestConfig_ValidateRequired_AllPresent(t *testing.T) {
	cfg := &Config{
		Clients: ClientsConfig{
			EODHD:        ProviderConfig{APIKey: "eodhd-key"},
			AlphaVantage: ProviderConfig{APIKey: "av-key"},
		},
		Auth: AuthConfig{CronSecret: "s3cret"},
	}
	assert.Empty(t, cfg.ValidateRequired())
}

func TestConfig_ValidateRequired_WhitespaceIsMissing(t *testing.T) {
	cfg := &Config{
		Clients: ClientsConfig{
			EODHD:        ProviderConfig{APIKey: "key"},
			AlphaVantage: ProviderConfig{APIKey: "key"},
		},
		Auth: AuthConfig{CronSecret: "   "},
	}
	assert.Equal(t, []string{"auth.cron_secret"}, cfg.ValidateRequired())
}

func TestConfig_KeyEnvOverrides(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "from-env")
	t.Setenv("ALPHAVANTAGE_API_KEY", "av-env")
	t.Setenv("PORTWATCH_CRON_SECRET", "cron-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "from-env", cfg.Clients.EODHD.APIKey)
	assert.Equal(t, "av-env", cfg.Clients.AlphaVantage.APIKey)
	assert.Equal(t, "cron-env", cfg.Auth.CronSecret)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portwatch.toml")
	content := `
environment = "production"

[server]
port = 7070

[storage]
backend = "surrealdb"

[refresh]
batch_delay = "250ms"
auto_create = false

[refresh.thresholds]
daily = "12h"

[market]
holiday_mic = "xnys"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PORTWATCH_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, "surrealdb", cfg.Storage.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Refresh.GetBatchDelay())
	assert.False(t, cfg.Refresh.AutoCreate)
	assert.Equal(t, "12h", cfg.Refresh.Thresholds.Daily)
	assert.Equal(t, "xnys", cfg.Market.HolidayMIC)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport ="), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestRefreshConfig_Durations(t *testing.T) {
	cfg := RefreshConfig{BatchDelay: "nonsense", ProviderTimeout: ""}
	assert.Equal(t, 100*time.Millisecond, cfg.GetBatchDelay())
	assert.Equal(t, 10*time.Second, cfg.GetProviderTimeout())

	cfg = RefreshConfig{BatchDelay: "0s", ProviderTimeout: "3s"}
	assert.Equal(t, time.Duration(0), cfg.GetBatchDelay())
	assert.Equal(t, 3*time.Second, cfg.GetProviderTimeout())
}

func TestProviderConfig_GetTimeout(t *testing.T) {
	c := ProviderConfig{Timeout: "5s"}
	assert.Equal(t, 5*time.Second, c.GetTimeout())
	c.Timeout = "bad"
	assert.Equal(t, 30*time.Second, c.GetTimeout())
}
