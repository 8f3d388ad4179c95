package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// ShowDeploymentParams contains parameters for showing a deployment
type ShowDeploymentParams struct {
	// Registry reference ([namespace/][chainID/]Name[:label]) or address
	Ref string

	// Optional: resolve proxy implementation
	ResolveProxy bool
}

// ShowDeployment is the use case for showing deployment details
type ShowDeployment struct {
	config   *config.RuntimeConfig
	repo     DeploymentRepository
	selector DeploymentSelector
	sink     ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(cfg *config.RuntimeConfig, repo DeploymentRepository, selector DeploymentSelector, sink ProgressSink) *ShowDeployment {
	return &ShowDeployment{
		config:   cfg,
		repo:     repo,
		selector: selector,
		sink:     sink,
	}
}

// Run executes the show deployment use case
func (uc *ShowDeployment) Run(ctx context.Context, params ShowDeploymentParams) (*models.Deployment, error) {
	if params.Ref == "" {
		return nil, fmt.Errorf("deployment reference is required")
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment details",
		Spinner: true,
	})

	var chainID uint64
	if uc.config.Network != nil {
		chainID = uc.config.Network.ChainID
	}

	resolver := &deploymentResolver{config: uc.config, repo: uc.repo, selector: uc.selector}
	deployment, err := resolver.resolve(ctx, params.Ref, chainID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("deployment %s: %w", params.Ref, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// If it's a proxy and we should resolve implementation
	if params.ResolveProxy && deployment.IsProxy() && deployment.Implementation == nil {
		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:   "resolving",
			Message: "Resolving proxy implementation",
			Spinner: true,
		})

		// The implementation might not be tracked
		impl, err := uc.repo.GetDeploymentByAddress(ctx, deployment.ChainID, deployment.ProxyInfo.Implementation)
		if err == nil {
			deployment.Implementation = impl
		}
	}

	txs, err := uc.repo.ListTransactions(ctx, domain.TransactionFilter{
		ChainID:      deployment.ChainID,
		DeploymentID: deployment.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	deployment.Transactions = txs

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Message: "Deployment loaded",
	})

	return deployment, nil
}
