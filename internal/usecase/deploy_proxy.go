package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// DeployProxyParams contains parameters for deploying a contract behind a proxy
type DeployProxyParams struct {
	ContractRef string
	Label       string
	// Literal initializer arguments, coerced against the ABI
	Args []any
	// Empty values fall back to the project proxy config
	Kind        models.ProxyKind
	Initializer string
	// Replace an existing registry entry with the same ID
	Force bool
}

// DeployProxyResult contains the records created or reused by a deployment
type DeployProxyResult struct {
	Proxy                *models.Deployment
	Implementation       *models.Deployment
	Admin                *models.Deployment
	ReusedImplementation bool
	ReusedAdmin          bool
}

// DeployProxy deploys an implementation and an upgradeable proxy in front of it
type DeployProxy struct {
	config    *config.RuntimeConfig
	artifacts ArtifactRepository
	repo      DeploymentRepository
	encoder   CallEncoder
	connector ChainConnector
	sink      ProgressSink
}

// NewDeployProxy creates a new DeployProxy use case
func NewDeployProxy(
	cfg *config.RuntimeConfig,
	artifacts ArtifactRepository,
	repo DeploymentRepository,
	encoder CallEncoder,
	connector ChainConnector,
	sink ProgressSink,
) *DeployProxy {
	return &DeployProxy{
		config:    cfg,
		artifacts: artifacts,
		repo:      repo,
		encoder:   encoder,
		connector: connector,
		sink:      sink,
	}
}

// Run executes the deployment
func (uc *DeployProxy) Run(ctx context.Context, params DeployProxyParams) (*DeployProxyResult, error) {
	if uc.config.Network == nil {
		return nil, domain.ErrNetworkRequired
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "resolving",
		Message: fmt.Sprintf("Resolving %s", params.ContractRef),
		Spinner: true,
	})

	artifact, err := resolveArtifact(ctx, uc.artifacts, params.ContractRef)
	if err != nil {
		return nil, err
	}

	proxyCfg := uc.proxyConfig()
	kind := params.Kind
	if kind == "" {
		kind, err = models.ParseProxyKind(proxyCfg.Kind)
		if err != nil {
			return nil, err
		}
	}
	initializer := params.Initializer
	if initializer == "" {
		initializer = proxyCfg.Initializer
	}

	// Fail on bad arguments before touching the chain
	initData, err := encodeCall(uc.encoder, artifact, initializer, params.Args)
	if err != nil {
		return nil, err
	}

	proxyArtifactRef := proxyCfg.ProxyArtifact
	if kind == models.ProxyKindTransparent {
		proxyArtifactRef = proxyCfg.TransparentProxyArtifact
	}
	proxyArtifact, err := uc.artifacts.GetArtifact(ctx, proxyArtifactRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s proxy artifact: %w", kind, err)
	}
	if err := checkProxyConstructor(proxyArtifact, kind); err != nil {
		return nil, err
	}

	client, err := uc.connector.Connect(ctx, uc.config.Network)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	d := &proxyDeployer{
		config:    uc.config,
		repo:      uc.repo,
		artifacts: uc.artifacts,
		encoder:   uc.encoder,
		client:    client,
		sink:      uc.sink,
		now:       time.Now,
	}

	proxyID := models.DeploymentID(uc.config.Namespace, client.ChainID(), artifact.Name, params.Label)
	existing, err := uc.repo.GetDeployment(ctx, proxyID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil && !params.Force {
		return nil, fmt.Errorf("%w: %s is deployed at %s (use --force to replace it)", domain.ErrAlreadyExists, proxyID, existing.Address)
	}

	result := &DeployProxyResult{}
	result.Implementation, result.ReusedImplementation, err = d.ensureImplementation(ctx, artifact)
	if err != nil {
		return nil, err
	}
	implAddress := common.HexToAddress(result.Implementation.Address)

	var ctorArgs []any
	switch kind {
	case models.ProxyKindUUPS:
		ctorArgs = []any{implAddress, initData}
	case models.ProxyKindTransparent:
		if ownsAdmin(proxyArtifact) {
			// The proxy creates its own admin owned by the deployer
			ctorArgs = []any{implAddress, client.From(), initData}
		} else {
			result.Admin, result.ReusedAdmin, err = d.ensureAdmin(ctx)
			if err != nil {
				return nil, err
			}
			ctorArgs = []any{implAddress, common.HexToAddress(result.Admin.Address), initData}
		}
	}

	encodedCtor, err := uc.encoder.EncodeConstructor(&proxyArtifact.ABI, ctorArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proxy constructor: %w", err)
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "proxy",
		Message: fmt.Sprintf("Deploying %s proxy for %s", kind, artifact.Name),
		Spinner: true,
	})

	txResult, err := client.Deploy(ctx, proxyArtifact, encodedCtor)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy proxy: %w", err)
	}

	if kind == models.ProxyKindTransparent && result.Admin == nil {
		result.Admin, err = uc.recordOwnedAdmin(ctx, d, client, artifact, params.Label, txResult)
		if err != nil {
			return nil, err
		}
	}

	proxy := d.newDeployment(artifact, params.Label, models.ProxyDeployment, txResult)
	proxy.InitializerArgs = params.Args
	proxy.ProxyInfo = &models.ProxyInfo{
		Kind:                   kind,
		Implementation:         result.Implementation.Address,
		ImplementationContract: artifact.Name,
		History:                []models.ProxyUpgrade{},
	}
	if result.Admin != nil {
		proxy.ProxyInfo.Admin = result.Admin.Address
	}
	if existing != nil {
		proxy.CreatedAt = existing.CreatedAt
	}
	proxy.Implementation = result.Implementation

	ops := []models.Operation{{Type: "DEPLOY", Target: proxy.Address, Method: proxyArtifact.Name}}
	if len(initData) > 0 {
		ops = append(ops, models.Operation{Type: "CALL", Target: proxy.Address, Method: initializer})
	}
	if err := d.save(ctx, proxy, txResult, ops...); err != nil {
		return nil, err
	}
	result.Proxy = proxy

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Message: fmt.Sprintf("Deployed %s", proxy.Address),
	})

	return result, nil
}

// recordOwnedAdmin registers the admin contract an OpenZeppelin 5 transparent proxy
// creates in its constructor, read back from the EIP-1967 admin slot
func (uc *DeployProxy) recordOwnedAdmin(ctx context.Context, d *proxyDeployer, client ChainClient, artifact *models.Artifact, label string, txResult *models.TxResult) (*models.Deployment, error) {
	adminAddress, err := client.ReadAddressSlot(ctx, common.HexToAddress(txResult.Address), models.AdminSlot)
	if err != nil {
		return nil, err
	}

	adminLabel := artifact.Name
	if label != "" {
		adminLabel += "-" + label
	}

	admin := &models.Deployment{
		ID:              models.DeploymentID(uc.config.Namespace, client.ChainID(), uc.proxyConfig().AdminArtifact, adminLabel),
		Namespace:       uc.config.Namespace,
		Network:         d.networkName(),
		ChainID:         client.ChainID(),
		ContractName:    uc.proxyConfig().AdminArtifact,
		Label:           adminLabel,
		Address:         adminAddress.Hex(),
		Type:            models.ProxyAdminDeployment,
		TransactionHash: txResult.Hash,
		BlockNumber:     txResult.BlockNumber,
		CreatedAt:       d.now(),
		UpdatedAt:       d.now(),
	}
	if err := uc.repo.SaveDeployment(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to save deployment %s: %w", admin.ID, err)
	}
	return admin, nil
}

func (uc *DeployProxy) proxyConfig() config.ProxyConfig {
	return proxyConfigOf(uc.config)
}

// checkProxyConstructor verifies the proxy artifact takes the arguments we pass
func checkProxyConstructor(artifact *models.Artifact, kind models.ProxyKind) error {
	want := 2
	if kind == models.ProxyKindTransparent {
		want = 3
	}
	if got := len(artifact.ABI.Constructor.Inputs); got != want {
		return fmt.Errorf("%s is not a %s proxy: constructor takes %d arguments, expected %d", artifact.Name, kind, got, want)
	}
	return nil
}

// ownsAdmin reports whether a transparent proxy takes an owner instead of an
// admin address, which is the OpenZeppelin 5 layout
func ownsAdmin(proxyArtifact *models.Artifact) bool {
	inputs := proxyArtifact.ABI.Constructor.Inputs
	if len(inputs) < 2 {
		return false
	}
	return strings.Contains(strings.ToLower(inputs[1].Name), "owner")
}
