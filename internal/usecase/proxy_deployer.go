package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// proxyDeployer holds the chain session shared by the deploy and upgrade use cases
type proxyDeployer struct {
	config    *config.RuntimeConfig
	repo      DeploymentRepository
	artifacts ArtifactRepository
	encoder   CallEncoder
	client    ChainClient
	sink      ProgressSink
	now       func() time.Time
}

func (d *proxyDeployer) chainID() uint64 {
	return d.client.ChainID()
}

func (d *proxyDeployer) networkName() string {
	if d.config.Network == nil {
		return ""
	}
	return d.config.Network.Name
}

func (d *proxyDeployer) proxyConfig() config.ProxyConfig {
	return proxyConfigOf(d.config)
}

func proxyConfigOf(cfg *config.RuntimeConfig) config.ProxyConfig {
	if cfg.Project == nil {
		return config.DefaultProjectConfig().Proxy
	}
	return cfg.Project.Proxy
}

// implementationLabel derives a stable label from a bytecode hash so that
// distinct builds of the same contract get distinct registry IDs
func implementationLabel(bytecodeHash common.Hash) string {
	return "impl-" + strings.TrimPrefix(bytecodeHash.Hex(), "0x")[:8]
}

// ensureImplementation deploys the artifact or reuses a registered instance
// with the same creation bytecode on this chain
func (d *proxyDeployer) ensureImplementation(ctx context.Context, artifact *models.Artifact) (*models.Deployment, bool, error) {
	existing, err := d.repo.FindImplementation(ctx, d.chainID(), artifact.BytecodeHash.Hex())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up implementation: %w", err)
	}
	if existing != nil {
		hasCode, err := d.client.HasCode(ctx, common.HexToAddress(existing.Address))
		if err != nil {
			return nil, false, err
		}
		if hasCode {
			d.sink.OnProgress(ctx, ProgressEvent{
				Stage:   "implementation",
				Message: fmt.Sprintf("Reusing %s implementation at %s", artifact.Name, existing.Address),
			})
			return existing, true, nil
		}
	}

	d.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "implementation",
		Message: fmt.Sprintf("Deploying %s implementation", artifact.Name),
		Spinner: true,
	})

	result, err := d.client.Deploy(ctx, artifact, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to deploy implementation: %w", err)
	}

	impl := d.newDeployment(artifact, implementationLabel(artifact.BytecodeHash), models.ImplementationDeployment, result)
	if err := d.save(ctx, impl, result, models.Operation{Type: "DEPLOY", Target: impl.Address, Method: artifact.Name}); err != nil {
		return nil, false, err
	}
	return impl, false, nil
}

// ensureAdmin reuses the namespace's ProxyAdmin on this chain or deploys one
func (d *proxyDeployer) ensureAdmin(ctx context.Context) (*models.Deployment, bool, error) {
	admins, err := d.repo.ListDeployments(ctx, domain.DeploymentFilter{
		Namespace: d.config.Namespace,
		ChainID:   d.chainID(),
		Type:      models.ProxyAdminDeployment,
	})
	if err != nil {
		return nil, false, err
	}

	// Admins created by OpenZeppelin 5 proxies are owned per proxy and are labelled
	shared := lo.Filter(admins, func(a *models.Deployment, _ int) bool { return a.Label == "" })
	for _, admin := range shared {
		hasCode, err := d.client.HasCode(ctx, common.HexToAddress(admin.Address))
		if err != nil {
			return nil, false, err
		}
		if hasCode {
			return admin, true, nil
		}
	}

	artifact, err := d.artifacts.GetArtifact(ctx, d.proxyConfig().AdminArtifact)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve proxy admin artifact: %w", err)
	}

	var ctorArgs []any
	if inputs := artifact.ABI.Constructor.Inputs; len(inputs) == 1 {
		ctorArgs = []any{d.client.From()}
	}
	encoded, err := d.encoder.EncodeConstructor(&artifact.ABI, ctorArgs)
	if err != nil {
		return nil, false, err
	}

	d.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "admin",
		Message: "Deploying proxy admin",
		Spinner: true,
	})

	result, err := d.client.Deploy(ctx, artifact, encoded)
	if err != nil {
		return nil, false, fmt.Errorf("failed to deploy proxy admin: %w", err)
	}

	admin := d.newDeployment(artifact, "", models.ProxyAdminDeployment, result)
	if err := d.save(ctx, admin, result, models.Operation{Type: "DEPLOY", Target: admin.Address, Method: artifact.Name}); err != nil {
		return nil, false, err
	}
	return admin, false, nil
}

func (d *proxyDeployer) newDeployment(artifact *models.Artifact, label string, kind models.DeploymentType, result *models.TxResult) *models.Deployment {
	now := d.now()
	return &models.Deployment{
		ID:              models.DeploymentID(d.config.Namespace, d.chainID(), artifact.Name, label),
		Namespace:       d.config.Namespace,
		Network:         d.networkName(),
		ChainID:         d.chainID(),
		ContractName:    artifact.Name,
		Label:           label,
		Address:         result.Address,
		Type:            kind,
		TransactionHash: result.Hash,
		BlockNumber:     result.BlockNumber,
		Artifact:        artifact.Info(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// save persists a deployment together with the transaction that produced it
func (d *proxyDeployer) save(ctx context.Context, deployment *models.Deployment, result *models.TxResult, ops ...models.Operation) error {
	if err := d.repo.SaveDeployment(ctx, deployment); err != nil {
		return fmt.Errorf("failed to save deployment %s: %w", deployment.ID, err)
	}
	return d.recordTransaction(ctx, result, []string{deployment.ID}, ops...)
}

func (d *proxyDeployer) recordTransaction(ctx context.Context, result *models.TxResult, deploymentIDs []string, ops ...models.Operation) error {
	tx := &models.Transaction{
		ID:          models.TransactionID(result.Hash),
		ChainID:     d.chainID(),
		Hash:        result.Hash,
		Status:      models.TransactionStatusExecuted,
		BlockNumber: result.BlockNumber,
		GasUsed:     result.GasUsed,
		Sender:      result.Sender,
		Deployments: deploymentIDs,
		Operations:  ops,
		Namespace:   d.config.Namespace,
		CreatedAt:   d.now(),
	}
	if err := d.repo.SaveTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", result.Hash, err)
	}
	return nil
}

// encodeCall encodes method(args) against the artifact ABI, returning nil
// when there is nothing to call
func encodeCall(encoder CallEncoder, artifact *models.Artifact, method string, args []any) ([]byte, error) {
	if method == "" || (!artifact.HasMethod(method) && !strings.Contains(method, "(")) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: %s has no method %q for %d argument(s)", domain.ErrInvalidArguments, artifact.Name, method, len(args))
		}
		return nil, nil
	}
	return encoder.EncodeCall(&artifact.ABI, method, args)
}
