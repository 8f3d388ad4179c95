package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <deployment>",
		Short: "Show detailed deployment information from registry",
		Long: `Show detailed information about a specific deployment.

You can specify deployments using:
- Contract name: "Agreement"
- Contract with label: "Agreement:v2"
- Namespace/contract: "staging/Agreement"
- Chain/contract: "11155111/Agreement"
- Full deployment ID: "production/1/Agreement:v1"
- Contract address: "0x1234..."`,
		Example: `  upgrades show Agreement
  upgrades show Agreement:v2
  upgrades show 0x1234567890abcdef...
  upgrades show production/1/Agreement:v1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			deployment, err := app.ShowDeployment.Run(cmd.Context(), usecase.ShowDeploymentParams{
				Ref:          args[0],
				ResolveProxy: true,
			})
			if err != nil {
				return fmt.Errorf("failed to resolve deployment: %w", err)
			}

			return render.NewDeploymentRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderDeployment(deployment)
		},
	}

	return cmd
}
