package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "migrate [migrations-file]",
		Short: "Run the deploy and upgrade steps of a migrations file",
		Long: `Run every step of a migrations file in dependency order.

Steps that completed on this network and namespace in an earlier run are skipped,
so after a failure the next run continues with the failed step.

Example migrations.yaml:
  plan: agreement
  steps:
    agreement:
      action: deploy
      contract: Agreement
      args: ["0x1234...", 100]
    agreement-v2:
      action: upgrade
      proxy: Agreement
      to: AgreementV2
      deps: [agreement]`,
		Example: `  upgrades migrate --network sepolia
  upgrades migrate deploy/plan.yaml --network sepolia --reset`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.RunMigrationsParams{Reset: reset}
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}

			result, err := app.RunMigrations.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			if err := render.NewMigrationRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderResult(result); err != nil {
				return err
			}
			if result.FailedStep != nil {
				return result.FailedStep.Error
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Ignore steps completed by earlier runs")

	return cmd
}
