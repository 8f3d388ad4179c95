package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// PruneRenderer renders registry prune results
type PruneRenderer struct {
	out  io.Writer
	json bool
}

// NewPruneRenderer creates a new prune renderer
func NewPruneRenderer(out io.Writer, json bool) *PruneRenderer {
	return &PruneRenderer{out: out, json: json}
}

type pruneOutput struct {
	ChainID uint64   `json:"chainId"`
	Checked int      `json:"checked"`
	Pruned  []string `json:"pruned"`
	Applied bool     `json:"applied"`
}

// RenderPrune renders the stale entries, or the outcome once applied
func (r *PruneRenderer) RenderPrune(result *usecase.PruneRegistryResult, applied bool) error {
	if r.json {
		return writeJSON(r.out, pruneOutput{
			ChainID: result.ChainID,
			Checked: result.Checked,
			Pruned:  lo.Map(result.Pruned, func(d *models.Deployment, _ int) string { return d.ID }),
			Applied: applied,
		})
	}

	if len(result.Pruned) == 0 {
		fmt.Fprintf(r.out, "No stale registry entries on chain %d (%d checked)\n", result.ChainID, result.Checked)
		return nil
	}

	if applied {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Pruned %d entries from the registry", len(result.Pruned))))
		return nil
	}

	fmt.Fprintf(r.out, "Found %d registry entries with no code on chain %d:\n", len(result.Pruned), result.ChainID)
	faint := color.New(color.Faint)
	for _, dep := range result.Pruned {
		fmt.Fprintf(r.out, "  - %s %s\n", dep.ID, faint.Sprintf("(%s) %s", title(string(dep.Type)), dep.Address))
	}
	return nil
}
