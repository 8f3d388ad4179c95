//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-upgrades/internal/adapters"
	"github.com/trebuchet-org/treb-upgrades/internal/config"
	"github.com/trebuchet-org/treb-upgrades/internal/logging"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewDeployProxy,
		usecase.NewUpgradeProxy,
		usecase.NewRunMigrations,
		usecase.NewShowDeployment,
		usecase.NewListDeployments,
		usecase.NewProxyStatus,
		usecase.NewListNetworks,
		usecase.NewPruneRegistry,

		// App
		NewApp,
	)
	return nil, nil
}
