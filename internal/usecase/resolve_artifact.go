package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

const maxArtifactSuggestions = 3

// resolveArtifact looks up ref and, when nothing matches, names the closest
// known contracts in the error
func resolveArtifact(ctx context.Context, repo ArtifactRepository, ref string) (*models.Artifact, error) {
	artifact, err := repo.GetArtifact(ctx, ref)
	if err == nil || !errors.Is(err, domain.ErrContractNotFound) {
		return artifact, err
	}

	all, listErr := repo.ListArtifacts(ctx)
	if listErr != nil || len(all) == 0 {
		return nil, err
	}

	name := ref
	if idx := strings.LastIndex(ref, ":"); idx >= 0 {
		name = ref[idx+1:]
	}
	if name == "" {
		return nil, err
	}

	names := lo.Uniq(lo.Map(all, func(a *models.Artifact, _ int) string { return a.Name }))
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return nil, err
	}

	suggestions := lo.Map(matches, func(m fuzzy.Match, _ int) string { return m.Str })
	if len(suggestions) > maxArtifactSuggestions {
		suggestions = suggestions[:maxArtifactSuggestions]
	}
	return nil, fmt.Errorf("%w (did you mean %s?)", err, strings.Join(suggestions, ", "))
}
