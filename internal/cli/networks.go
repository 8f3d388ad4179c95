package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewNetworksCmd creates the networks command
func NewNetworksCmd() *cobra.Command {
	var queryChainID bool

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List networks from upgrades.toml and foundry.toml",
		Long: `List the networks configured in upgrades.toml [networks] and the
[rpc_endpoints] section of foundry.toml.

With --query-chain-id, networks without a configured chain_id are asked for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListNetworks.Run(cmd.Context(), usecase.ListNetworksParams{QueryChainID: queryChainID})
			if err != nil {
				return err
			}

			return render.NewNetworksRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderNetworksList(result)
		},
	}

	cmd.Flags().BoolVar(&queryChainID, "query-chain-id", false, "Query RPC endpoints for their chain ID")

	return cmd
}
