package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// deploymentResolver turns user supplied references into registry records
type deploymentResolver struct {
	config   *config.RuntimeConfig
	repo     DeploymentRepository
	selector DeploymentSelector
}

// resolveProxy finds the registry record for ref on chainID
func (r *deploymentResolver) resolveProxy(ctx context.Context, ref string, chainID uint64) (*models.Deployment, error) {
	var (
		deployment *models.Deployment
		err        error
	)

	if common.IsHexAddress(ref) {
		deployment, err = r.repo.GetDeploymentByAddress(ctx, chainID, ref)
	} else {
		namespace, refChainID, name, label, perr := parseDeploymentRef(ref, r.config.Namespace, chainID)
		if perr != nil {
			return nil, perr
		}
		deployment, err = r.repo.GetDeployment(ctx, models.DeploymentID(namespace, refChainID, name, label))
		if errors.Is(err, domain.ErrNotFound) && label == "" {
			deployment, err = r.pickLabelled(ctx, namespace, refChainID, name)
		}
	}

	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s on chain %d", domain.ErrNotDeployed, ref, chainID)
	}
	if err != nil {
		return nil, err
	}
	if !deployment.IsProxy() {
		return nil, fmt.Errorf("%w: %s is a %s deployment", domain.ErrNotDeployed, deployment.ID, deployment.Type)
	}
	return deployment, nil
}

// pickLabelled falls back to labelled proxies of the contract when no unlabelled one exists
func (r *deploymentResolver) pickLabelled(ctx context.Context, namespace string, chainID uint64, name string) (*models.Deployment, error) {
	candidates, err := r.repo.ListDeployments(ctx, domain.DeploymentFilter{
		Namespace:    namespace,
		ChainID:      chainID,
		ContractName: name,
		Type:         models.ProxyDeployment,
	})
	if err != nil {
		return nil, err
	}

	return r.choose(ctx, candidates, fmt.Sprintf("Select the %s proxy", name), name+" proxies")
}

// resolve finds a deployment of any type; chainID 0 searches every chain
func (r *deploymentResolver) resolve(ctx context.Context, ref string, chainID uint64) (*models.Deployment, error) {
	if common.IsHexAddress(ref) {
		if chainID != 0 {
			return r.repo.GetDeploymentByAddress(ctx, chainID, ref)
		}
		all, err := r.repo.ListDeployments(ctx, domain.DeploymentFilter{})
		if err != nil {
			return nil, err
		}
		matches := lo.Filter(all, func(d *models.Deployment, _ int) bool {
			return strings.EqualFold(d.Address, ref)
		})
		return r.choose(ctx, matches, fmt.Sprintf("Select the deployment at %s", ref), "deployments at "+ref)
	}

	namespace, refChainID, name, label, err := parseDeploymentRef(ref, r.config.Namespace, chainID)
	if err != nil {
		return nil, err
	}
	if refChainID != 0 {
		return r.repo.GetDeployment(ctx, models.DeploymentID(namespace, refChainID, name, label))
	}

	candidates, err := r.repo.ListDeployments(ctx, domain.DeploymentFilter{
		Namespace:    namespace,
		ContractName: name,
	})
	if err != nil {
		return nil, err
	}
	matches := lo.Filter(candidates, func(d *models.Deployment, _ int) bool {
		return d.Label == label && d.Type != models.ImplementationDeployment
	})
	return r.choose(ctx, matches, fmt.Sprintf("Select the %s deployment", ref), ref+" deployments")
}

// choose returns the single candidate, asks the user, or fails listing the options
func (r *deploymentResolver) choose(ctx context.Context, candidates []*models.Deployment, prompt, what string) (*models.Deployment, error) {
	switch {
	case len(candidates) == 0:
		return nil, domain.ErrNotFound
	case len(candidates) == 1:
		return candidates[0], nil
	case r.selector != nil && !r.config.NonInteractive:
		return r.selector.SelectDeployment(ctx, candidates, prompt)
	default:
		ids := lo.Map(candidates, func(d *models.Deployment, _ int) string { return d.ID })
		return nil, fmt.Errorf("multiple %s found, be more specific: %s", what, strings.Join(ids, ", "))
	}
}

// parseDeploymentRef splits [namespace/][chainID/]Name[:label]
func parseDeploymentRef(ref, namespace string, chainID uint64) (string, uint64, string, string, error) {
	parts := strings.Split(ref, "/")
	switch len(parts) {
	case 1:
	case 2:
		if id, err := strconv.ParseUint(parts[0], 10, 64); err == nil {
			chainID = id
		} else {
			namespace = parts[0]
		}
	case 3:
		id, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return "", 0, "", "", fmt.Errorf("invalid chain ID %q in %q", parts[1], ref)
		}
		namespace, chainID = parts[0], id
	default:
		return "", 0, "", "", fmt.Errorf("invalid deployment reference %q", ref)
	}

	name, label, _ := strings.Cut(parts[len(parts)-1], ":")
	if name == "" {
		return "", 0, "", "", fmt.Errorf("invalid deployment reference %q", ref)
	}
	return namespace, chainID, name, label, nil
}
