// Package app wires configuration, clients and services together.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/tickerwell/fincollect/internal/auth"
	"github.com/tickerwell/fincollect/internal/clients/yahoo"
	"github.com/tickerwell/fincollect/internal/common"
	"github.com/tickerwell/fincollect/internal/interfaces"
	"github.com/tickerwell/fincollect/internal/services/market"
)

// App holds all initialized services and clients.
type App struct {
	Config       *common.Config
	Logger       *common.Logger
	MarketClient interfaces.MarketDataClient
	Auth         *auth.Service
	Market       *market.Service
	StartupTime  time.Time
}

// NewApp initializes configuration, logging, the provider client and the
// services. configPath may be empty, in which case FINCOLLECT_CONFIG and the
// default path are tried.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	if configPath == "" {
		configPath = os.Getenv("FINCOLLECT_CONFIG")
	}
	if configPath == "" {
		configPath = "config/fincollect.toml"
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	yahooClient := yahoo.NewClient(
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(config.Clients.Yahoo.RateLimit),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	)

	authService := auth.NewService(&config.Auth, logger)
	marketService := market.NewService(yahooClient, logger)

	a := &App{
		Config:       config,
		Logger:       logger,
		MarketClient: yahooClient,
		Auth:         authService,
		Market:       marketService,
		StartupTime:  startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}
