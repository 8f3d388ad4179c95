package cli

import (
	"github.com/spf13/cobra"
	abiadapter "github.com/trebuchet-org/treb-upgrades/internal/adapters/abi"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewUpgradeCmd creates the upgrade command
func NewUpgradeCmd() *cobra.Command {
	var (
		to           string
		callMethod   string
		callArgsJSON string
	)

	cmd := &cobra.Command{
		Use:   "upgrade <proxy> --to <contract>",
		Short: "Point a deployed proxy at a new implementation",
		Long: `Upgrade a proxy recorded in the registry to a new implementation.

The proxy can be given as a contract name, Name:label, a deployment ID or an address.
The replacement contract is required. An optional call is made through the
proxy in the same transaction (upgradeAndCall / upgradeToAndCall).`,
		Example: `  upgrades upgrade Agreement --to AgreementV2 --network sepolia

  # Run migrate(uint8) on the new implementation
  upgrades upgrade Agreement:v1 --to AgreementV2 --call-method migrate --call-args-json '[2]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.UpgradeProxyParams{
				ProxyRef:       args[0],
				NewContractRef: to,
			}
			if callMethod != "" {
				var callArgs []any
				if callArgsJSON != "" {
					if callArgs, err = abiadapter.ParseArgsJSON(callArgsJSON); err != nil {
						return err
					}
				}
				params.Call = &usecase.CallSpec{Method: callMethod, Args: callArgs}
			}

			result, err := app.UpgradeProxy.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			return render.NewProxyRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderUpgrade(result)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Replacement contract (required)")
	cmd.Flags().StringVar(&callMethod, "call-method", "", "Method to call on the new implementation during the upgrade")
	cmd.Flags().StringVar(&callArgsJSON, "call-args-json", "", "Arguments of --call-method as a JSON array")

	return cmd
}
