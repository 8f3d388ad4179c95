package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// PruneRegistryParams contains parameters for pruning the registry
type PruneRegistryParams struct {
	DryRun bool // If true, only collect items without executing prune
}

// PruneRegistryResult contains the result of pruning the registry
type PruneRegistryResult struct {
	ChainID uint64
	Checked int
	Pruned  []*models.Deployment
}

// PruneRegistry removes records whose address has no code on the current chain,
// typically after a local node was restarted
type PruneRegistry struct {
	config    *config.RuntimeConfig
	repo      DeploymentRepository
	connector ChainConnector
	progress  ProgressSink
}

// NewPruneRegistry creates a new PruneRegistry use case
func NewPruneRegistry(
	cfg *config.RuntimeConfig,
	repo DeploymentRepository,
	connector ChainConnector,
	progress ProgressSink,
) *PruneRegistry {
	if progress == nil {
		progress = NopProgress{}
	}
	return &PruneRegistry{
		config:    cfg,
		repo:      repo,
		connector: connector,
		progress:  progress,
	}
}

// Run executes the prune registry use case
func (uc *PruneRegistry) Run(ctx context.Context, params PruneRegistryParams) (*PruneRegistryResult, error) {
	if uc.config.Network == nil {
		return nil, domain.ErrNetworkRequired
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "connect_blockchain",
		Message: fmt.Sprintf("Connecting to %s", uc.config.Network.Name),
		Spinner: true,
	})

	client, err := uc.connector.Connect(ctx, uc.config.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to blockchain: %w", err)
	}
	defer client.Close()

	deployments, err := uc.repo.ListDeployments(ctx, domain.DeploymentFilter{ChainID: client.ChainID()})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	sort.Slice(deployments, func(i, j int) bool { return deployments[i].ID < deployments[j].ID })

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "collect_items",
		Message: "Checking registry entries against on-chain state",
		Total:   len(deployments),
		Spinner: true,
	})

	result := &PruneRegistryResult{ChainID: client.ChainID(), Checked: len(deployments)}
	for _, dep := range deployments {
		hasCode, err := client.HasCode(ctx, common.HexToAddress(dep.Address))
		if err != nil {
			return nil, fmt.Errorf("failed to check code at %s: %w", dep.Address, err)
		}
		if !hasCode {
			result.Pruned = append(result.Pruned, dep)
		}
	}

	if len(result.Pruned) == 0 || params.DryRun {
		uc.progress.OnProgress(ctx, ProgressEvent{Stage: "complete"})
		return result, nil
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "execute_prune",
		Message: fmt.Sprintf("Pruning %d items from registry", len(result.Pruned)),
		Spinner: true,
	})

	ids := make([]string, len(result.Pruned))
	for i, dep := range result.Pruned {
		ids[i] = dep.ID
	}
	if err := uc.repo.DeleteDeployments(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to prune items: %w", err)
	}

	uc.progress.OnProgress(ctx, ProgressEvent{Stage: "complete"})
	return result, nil
}
