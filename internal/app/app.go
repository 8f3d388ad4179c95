package app

import (
	"log/slog"

	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Use cases
	DeployProxy     *usecase.DeployProxy
	UpgradeProxy    *usecase.UpgradeProxy
	RunMigrations   *usecase.RunMigrations
	ShowDeployment  *usecase.ShowDeployment
	ListDeployments *usecase.ListDeployments
	ProxyStatus     *usecase.ProxyStatus
	ListNetworks    *usecase.ListNetworks
	PruneRegistry   *usecase.PruneRegistry
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	deployProxy *usecase.DeployProxy,
	upgradeProxy *usecase.UpgradeProxy,
	runMigrations *usecase.RunMigrations,
	showDeployment *usecase.ShowDeployment,
	listDeployments *usecase.ListDeployments,
	proxyStatus *usecase.ProxyStatus,
	listNetworks *usecase.ListNetworks,
	pruneRegistry *usecase.PruneRegistry,
) (*App, error) {
	return &App{
		Config:          cfg,
		Log:             log,
		DeployProxy:     deployProxy,
		UpgradeProxy:    upgradeProxy,
		RunMigrations:   runMigrations,
		ShowDeployment:  showDeployment,
		ListDeployments: listDeployments,
		ProxyStatus:     proxyStatus,
		ListNetworks:    listNetworks,
		PruneRegistry:   pruneRegistry,
	}, nil
}
