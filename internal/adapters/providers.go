package adapters

import (
	"github.com/google/wire"
	abiadapter "github.com/trebuchet-org/treb-upgrades/internal/adapters/abi"
	"github.com/trebuchet-org/treb-upgrades/internal/adapters/blockchain"
	"github.com/trebuchet-org/treb-upgrades/internal/adapters/interactive"
	"github.com/trebuchet-org/treb-upgrades/internal/adapters/repository/artifacts"
	"github.com/trebuchet-org/treb-upgrades/internal/adapters/repository/deployments"
	internalconfig "github.com/trebuchet-org/treb-upgrades/internal/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// ProvideNetworkResolver builds the resolver over upgrades.toml and foundry.toml networks
func ProvideNetworkResolver(cfg *config.RuntimeConfig) *internalconfig.NetworkResolver {
	return internalconfig.NewNetworkResolver(cfg.Project, cfg.Foundry)
}

// RepositorySet provides the registry and artifact repositories
var RepositorySet = wire.NewSet(
	deployments.ProvideFileRepository,
	wire.Bind(new(usecase.DeploymentRepository), new(*deployments.FileRepository)),

	artifacts.ProvideRepository,
	wire.Bind(new(usecase.ArtifactRepository), new(*artifacts.Repository)),
)

// ABISet provides ABI encoding
var ABISet = wire.NewSet(
	abiadapter.NewCallEncoder,
	wire.Bind(new(usecase.CallEncoder), new(*abiadapter.CallEncoder)),
)

// BlockchainSet provides chain connections
var BlockchainSet = wire.NewSet(
	blockchain.NewConnector,
	wire.Bind(new(usecase.ChainConnector), new(*blockchain.Connector)),
	wire.Bind(new(usecase.ChainIDReader), new(*blockchain.Connector)),
)

// ConfigSet provides network resolution from project configuration
var ConfigSet = wire.NewSet(
	ProvideNetworkResolver,
	wire.Bind(new(usecase.NetworkResolver), new(*internalconfig.NetworkResolver)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.DeploymentSelector), new(*interactive.SelectorAdapter)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	RepositorySet,
	ABISet,
	BlockchainSet,
	InteractiveSet,
	ConfigSet,
)
