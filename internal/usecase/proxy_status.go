package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// ProxyStatusParams contains parameters for checking a proxy on chain
type ProxyStatusParams struct {
	ProxyRef string
}

// ProxyStatusResult compares the registry record with the chain
type ProxyStatusResult struct {
	Proxy                 *models.Deployment
	HasCode               bool
	Implementation        string
	ImplementationHasCode bool
	ImplementationMatches bool
	Admin                 string
	AdminMatches          bool
}

// InSync reports whether the chain agrees with the registry
func (r *ProxyStatusResult) InSync() bool {
	return r.HasCode && r.ImplementationHasCode && r.ImplementationMatches && r.AdminMatches
}

// ProxyStatus reads the EIP-1967 slots of a recorded proxy
type ProxyStatus struct {
	config    *config.RuntimeConfig
	repo      DeploymentRepository
	connector ChainConnector
	selector  DeploymentSelector
	sink      ProgressSink
}

// NewProxyStatus creates a new ProxyStatus use case
func NewProxyStatus(cfg *config.RuntimeConfig, repo DeploymentRepository, connector ChainConnector, selector DeploymentSelector, sink ProgressSink) *ProxyStatus {
	return &ProxyStatus{
		config:    cfg,
		repo:      repo,
		connector: connector,
		selector:  selector,
		sink:      sink,
	}
}

// Run executes the status check
func (uc *ProxyStatus) Run(ctx context.Context, params ProxyStatusParams) (*ProxyStatusResult, error) {
	if uc.config.Network == nil {
		return nil, domain.ErrNetworkRequired
	}

	client, err := uc.connector.Connect(ctx, uc.config.Network)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	resolver := &deploymentResolver{config: uc.config, repo: uc.repo, selector: uc.selector}
	proxy, err := resolver.resolveProxy(ctx, params.ProxyRef, client.ChainID())
	if err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "checking",
		Message: fmt.Sprintf("Reading proxy state of %s", proxy.Address),
		Spinner: true,
	})

	proxyAddress := common.HexToAddress(proxy.Address)
	result := &ProxyStatusResult{Proxy: proxy}

	if result.HasCode, err = client.HasCode(ctx, proxyAddress); err != nil {
		return nil, err
	}
	if !result.HasCode {
		return result, nil
	}

	impl, err := client.ReadAddressSlot(ctx, proxyAddress, models.ImplementationSlot)
	if err != nil {
		return nil, err
	}
	result.Implementation = impl.Hex()
	result.ImplementationMatches = strings.EqualFold(impl.Hex(), proxy.ProxyInfo.Implementation)
	if impl != (common.Address{}) {
		if result.ImplementationHasCode, err = client.HasCode(ctx, impl); err != nil {
			return nil, err
		}
	}

	// UUPS proxies have no admin, so an empty slot matches an empty record
	admin, err := client.ReadAddressSlot(ctx, proxyAddress, models.AdminSlot)
	if err != nil {
		return nil, err
	}
	if admin != (common.Address{}) {
		result.Admin = admin.Hex()
	}
	result.AdminMatches = strings.EqualFold(result.Admin, proxy.ProxyInfo.Admin)

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Message: "Proxy state loaded",
	})

	return result, nil
}
