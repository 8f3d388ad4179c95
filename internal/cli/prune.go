package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewPruneCmd creates the prune command
func NewPruneCmd() *cobra.Command {
	var (
		dryRun bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune registry entries that no longer exist on-chain",
		Long: `Prune registry entries that no longer exist on-chain.

Every deployment recorded for the connected chain is checked for code at its
address. Entries without code are removed, which is useful after a local node
has been restarted.`,
		Example: `  upgrades prune --network local --dry-run`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.PruneRegistry.Run(cmd.Context(), usecase.PruneRegistryParams{DryRun: true})
			if err != nil {
				return err
			}

			renderer := render.NewPruneRenderer(cmd.OutOrStdout(), app.Config.JSON)
			if dryRun || len(result.Pruned) == 0 {
				return renderer.RenderPrune(result, false)
			}
			if !app.Config.JSON {
				if err := renderer.RenderPrune(result, false); err != nil {
					return err
				}
			}

			if !yes && !app.Config.NonInteractive {
				fmt.Fprint(cmd.ErrOrStderr(), "⚠️  Are you sure you want to prune these items? This cannot be undone. [y/N]: ")
				var response string
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil || strings.ToLower(strings.TrimSpace(response)) != "y" {
					fmt.Fprintln(cmd.ErrOrStderr(), "❌ Prune cancelled.")
					return nil
				}
			}

			applied, err := app.PruneRegistry.Run(cmd.Context(), usecase.PruneRegistryParams{})
			if err != nil {
				return err
			}

			return renderer.RenderPrune(applied, true)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list the entries that would be pruned")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
