// Package app wires configuration, storage, providers and services into the
// shared core used by cmd/portwatch-server and cmd/portwatch.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/portwatch/internal/clients/alphavantage"
	"github.com/bobmcallan/portwatch/internal/clients/eodhd"
	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/metrics"
	"github.com/bobmcallan/portwatch/internal/providers"
	"github.com/bobmcallan/portwatch/internal/services/refresh"
	"github.com/bobmcallan/portwatch/internal/services/schedule"
	"github.com/bobmcallan/portwatch/internal/storage"
)

// App holds all initialized services, clients and storage.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Providers   *providers.Chain
	Refresh     interfaces.RefreshService
	Schedules   *schedule.Service
	Metrics     *metrics.Registry
	Clock       *common.MarketClock
	StartupTime time.Time

	scheduler *Scheduler
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, PORTWATCH_CONFIG,
// portwatch.toml next to the binary, then config/portwatch.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("PORTWATCH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "portwatch.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/portwatch.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes everything from it.
// configPath may be empty, in which case ResolveConfigPath decides.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewAppFromConfig(config, common.NewLoggerFromConfig(config.Logging))
}

// NewAppFromConfig initializes storage, providers and services from a loaded config.
func NewAppFromConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	for _, name := range config.ValidateRequired() {
		logger.Warn().Str("setting", name).Msg("Required setting not configured")
	}

	clock, err := common.NewMarketClockFromConfig(config.Market)
	if err != nil {
		return nil, fmt.Errorf("invalid market config: %w", err)
	}
	policy := common.NewStalenessPolicyFromConfig(config.Refresh)

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := metrics.NewRegistry()
	chain := providers.NewChain(newProviders(config, logger),
		providers.WithLogger(logger),
		providers.WithObserver(registry),
		providers.WithCallTimeout(config.Refresh.GetProviderTimeout()),
	)

	refreshService := refresh.NewService(storageManager.StockStore(), chain, logger,
		refresh.WithMarketClock(clock),
		refresh.WithStalenessPolicy(policy),
		refresh.WithRecorder(registry),
		refresh.WithAutoCreate(config.Refresh.AutoCreate),
		refresh.WithBatchDelay(config.Refresh.GetBatchDelay()),
	)

	scheduleService := schedule.NewService(refreshService, storageManager.ScheduleStore(), logger,
		schedule.WithMarketClock(clock),
		schedule.WithStalenessPolicy(policy),
		schedule.WithBatchRecorder(registry),
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Providers:   chain,
		Refresh:     refreshService,
		Schedules:   scheduleService,
		Metrics:     registry,
		Clock:       clock,
		StartupTime: startupStart,
	}

	logger.Info().
		Strs("providers", chain.Providers()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// newProviders builds the provider chain members in priority order:
// EODHD first, Alpha Vantage as fallback. Providers without a key are left out.
func newProviders(config *common.Config, logger *common.Logger) []interfaces.DataProvider {
	var list []interfaces.DataProvider

	if key := config.Clients.EODHD.APIKey; key != "" {
		opts := []eodhd.ClientOption{
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		}
		if config.Clients.EODHD.BaseURL != "" {
			opts = append(opts, eodhd.WithBaseURL(config.Clients.EODHD.BaseURL))
		}
		list = append(list, eodhd.NewClient(key, opts...))
	} else {
		logger.Warn().Msg("EODHD API key not configured - primary provider disabled")
	}

	if key := config.Clients.AlphaVantage.APIKey; key != "" {
		opts := []alphavantage.ClientOption{
			alphavantage.WithLogger(logger),
			alphavantage.WithRateLimit(config.Clients.AlphaVantage.RateLimit),
			alphavantage.WithTimeout(config.Clients.AlphaVantage.GetTimeout()),
		}
		if config.Clients.AlphaVantage.BaseURL != "" {
			opts = append(opts, alphavantage.WithBaseURL(config.Clients.AlphaVantage.BaseURL))
		}
		list = append(list, alphavantage.NewClient(key, opts...))
	} else {
		logger.Warn().Msg("Alpha Vantage API key not configured - fallback provider disabled")
	}

	return list
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close storage.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
