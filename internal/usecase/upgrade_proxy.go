package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// CallSpec is a method call made through the proxy right after an upgrade
type CallSpec struct {
	Method string
	Args   []any
}

// UpgradeProxyParams contains parameters for upgrading a proxy
type UpgradeProxyParams struct {
	// Registry reference ([namespace/][chainID/]Name[:label]) or proxy address
	ProxyRef string
	// Artifact of the new implementation, always required
	NewContractRef string
	Call           *CallSpec
}

// UpgradeProxyResult contains the outcome of an upgrade
type UpgradeProxyResult struct {
	Proxy                  *models.Deployment
	Implementation         *models.Deployment
	PreviousImplementation string
	ReusedImplementation   bool
	TransactionHash        string
}

// UpgradeProxy points an existing proxy at a new implementation
type UpgradeProxy struct {
	config    *config.RuntimeConfig
	artifacts ArtifactRepository
	repo      DeploymentRepository
	encoder   CallEncoder
	connector ChainConnector
	selector  DeploymentSelector
	sink      ProgressSink
}

// NewUpgradeProxy creates a new UpgradeProxy use case
func NewUpgradeProxy(
	cfg *config.RuntimeConfig,
	artifacts ArtifactRepository,
	repo DeploymentRepository,
	encoder CallEncoder,
	connector ChainConnector,
	selector DeploymentSelector,
	sink ProgressSink,
) *UpgradeProxy {
	return &UpgradeProxy{
		config:    cfg,
		artifacts: artifacts,
		repo:      repo,
		encoder:   encoder,
		connector: connector,
		selector:  selector,
		sink:      sink,
	}
}

// Run executes the upgrade
func (uc *UpgradeProxy) Run(ctx context.Context, params UpgradeProxyParams) (*UpgradeProxyResult, error) {
	if strings.TrimSpace(params.NewContractRef) == "" {
		return nil, domain.ErrReplacementRequired
	}
	if uc.config.Network == nil {
		return nil, domain.ErrNetworkRequired
	}

	newArtifact, err := resolveArtifact(ctx, uc.artifacts, params.NewContractRef)
	if err != nil {
		return nil, err
	}

	var callData []byte
	if params.Call != nil && params.Call.Method != "" {
		callData, err = uc.encoder.EncodeCall(&newArtifact.ABI, params.Call.Method, params.Call.Args)
		if err != nil {
			return nil, err
		}
	}

	client, err := uc.connector.Connect(ctx, uc.config.Network)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "resolving",
		Message: fmt.Sprintf("Resolving deployed proxy %s", params.ProxyRef),
		Spinner: true,
	})

	proxy, err := uc.resolver().resolveProxy(ctx, params.ProxyRef, client.ChainID())
	if err != nil {
		return nil, err
	}
	if proxy.ChainID != client.ChainID() {
		return nil, fmt.Errorf("%s is recorded on chain %d but %s is chain %d", proxy.ID, proxy.ChainID, uc.config.Network.Name, client.ChainID())
	}
	proxyAddress := common.HexToAddress(proxy.Address)

	hasCode, err := client.HasCode(ctx, proxyAddress)
	if err != nil {
		return nil, err
	}
	if !hasCode {
		return nil, fmt.Errorf("%w: no code at %s for %s", domain.ErrNotDeployed, proxy.Address, proxy.ID)
	}

	d := &proxyDeployer{
		config:    uc.config,
		repo:      uc.repo,
		artifacts: uc.artifacts,
		encoder:   uc.encoder,
		client:    client,
		sink:      uc.sink,
		now:       time.Now,
	}

	target, encodeUpgrade, method, err := uc.buildUpgradeCall(ctx, client, proxy, newArtifact, callData)
	if err != nil {
		return nil, err
	}

	result := &UpgradeProxyResult{PreviousImplementation: proxy.ProxyInfo.Implementation}
	result.Implementation, result.ReusedImplementation, err = d.ensureImplementation(ctx, newArtifact)
	if err != nil {
		return nil, err
	}
	implAddress := common.HexToAddress(result.Implementation.Address)

	upgradeData, err := encodeUpgrade(implAddress)
	if err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "upgrading",
		Message: fmt.Sprintf("Upgrading %s to %s", proxy.GetShortID(), newArtifact.Name),
		Spinner: true,
	})

	txResult, err := client.Transact(ctx, target, upgradeData)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade %s: %w", proxy.ID, err)
	}

	current, err := client.ReadAddressSlot(ctx, proxyAddress, models.ImplementationSlot)
	if err != nil {
		return nil, err
	}
	if current != (common.Address{}) && current != implAddress {
		return nil, fmt.Errorf("%w: implementation slot of %s holds %s, expected %s",
			domain.ErrUpgradeNotApplied, proxy.Address, current.Hex(), implAddress.Hex())
	}

	now := d.now()
	proxy.ProxyInfo.History = append(proxy.ProxyInfo.History, models.ProxyUpgrade{
		Implementation:         result.Implementation.Address,
		ImplementationContract: newArtifact.Name,
		TransactionHash:        txResult.Hash,
		UpgradedAt:             now,
	})
	proxy.ProxyInfo.Implementation = result.Implementation.Address
	proxy.ProxyInfo.ImplementationContract = newArtifact.Name
	proxy.UpdatedAt = now
	proxy.Implementation = result.Implementation

	if err := uc.repo.SaveDeployment(ctx, proxy); err != nil {
		return nil, fmt.Errorf("failed to save deployment %s: %w", proxy.ID, err)
	}
	if err := d.recordTransaction(ctx, txResult, []string{proxy.ID},
		models.Operation{Type: "CALL", Target: target.Hex(), Method: method}); err != nil {
		return nil, err
	}

	result.Proxy = proxy
	result.TransactionHash = txResult.Hash

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Message: fmt.Sprintf("Upgraded %s", proxy.Address),
	})

	return result, nil
}

func (uc *UpgradeProxy) resolver() *deploymentResolver {
	return &deploymentResolver{config: uc.config, repo: uc.repo, selector: uc.selector}
}

// buildUpgradeCall picks the contract and function that perform the upgrade.
// The returned encoder is applied once the implementation address is known.
func (uc *UpgradeProxy) buildUpgradeCall(
	ctx context.Context,
	client ChainClient,
	proxy *models.Deployment,
	newArtifact *models.Artifact,
	callData []byte,
) (common.Address, func(common.Address) ([]byte, error), string, error) {
	proxyAddress := common.HexToAddress(proxy.Address)

	switch proxy.ProxyInfo.Kind {
	case models.ProxyKindUUPS:
		// Plain form when there is no call
		if len(callData) == 0 && newArtifact.HasMethod("upgradeTo") {
			return proxyAddress, func(impl common.Address) ([]byte, error) {
				return uc.encoder.EncodeCall(&newArtifact.ABI, "upgradeTo", []any{impl})
			}, "upgradeTo", nil
		}
		if newArtifact.HasMethod("upgradeToAndCall") {
			return proxyAddress, func(impl common.Address) ([]byte, error) {
				return uc.encoder.EncodeCall(&newArtifact.ABI, "upgradeToAndCall", []any{impl, callData})
			}, "upgradeToAndCall", nil
		}
		return common.Address{}, nil, "", fmt.Errorf("%w: %s exposes neither upgradeTo nor upgradeToAndCall", domain.ErrNotUpgradeable, newArtifact.Name)

	default:
		adminAddress := common.Address{}
		if proxy.ProxyInfo.Admin != "" {
			adminAddress = common.HexToAddress(proxy.ProxyInfo.Admin)
		} else {
			slot, err := client.ReadAddressSlot(ctx, proxyAddress, models.AdminSlot)
			if err != nil {
				return common.Address{}, nil, "", err
			}
			adminAddress = slot
		}
		if adminAddress == (common.Address{}) {
			return common.Address{}, nil, "", fmt.Errorf("%w: %s has no proxy admin", domain.ErrNotUpgradeable, proxy.ID)
		}

		adminArtifact, err := uc.artifacts.GetArtifact(ctx, proxyConfigOf(uc.config).AdminArtifact)
		if err != nil {
			return common.Address{}, nil, "", fmt.Errorf("failed to resolve proxy admin artifact: %w", err)
		}

		if len(callData) == 0 && adminArtifact.HasMethod("upgrade") {
			return adminAddress, func(impl common.Address) ([]byte, error) {
				return uc.encoder.EncodeCall(&adminArtifact.ABI, "upgrade", []any{proxyAddress, impl})
			}, "upgrade", nil
		}
		if adminArtifact.HasMethod("upgradeAndCall") {
			return adminAddress, func(impl common.Address) ([]byte, error) {
				return uc.encoder.EncodeCall(&adminArtifact.ABI, "upgradeAndCall", []any{proxyAddress, impl, callData})
			}, "upgradeAndCall", nil
		}
		return common.Address{}, nil, "", fmt.Errorf("%w: %s exposes neither upgrade nor upgradeAndCall", domain.ErrNotUpgradeable, adminArtifact.Name)
	}
}
