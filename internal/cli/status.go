package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <proxy>",
		Short: "Compare a proxy's on-chain state with the registry",
		Long: `Read the EIP-1967 implementation and admin slots of a recorded proxy and
compare them with the registry.`,
		Example: `  upgrades status Agreement --network sepolia`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ProxyStatus.Run(cmd.Context(), usecase.ProxyStatusParams{ProxyRef: args[0]})
			if err != nil {
				return err
			}

			return render.NewProxyRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderStatus(result)
		},
	}

	return cmd
}
