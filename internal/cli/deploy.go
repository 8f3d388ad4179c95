package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	abiadapter "github.com/trebuchet-org/treb-upgrades/internal/adapters/abi"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var (
		label       string
		kind        string
		initializer string
		argsJSON    string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <contract> [initializer args...]",
		Short: "Deploy a contract behind an upgradeable proxy",
		Long: `Deploy a contract implementation and an upgradeable proxy pointing at it.

The initializer is called through the proxy constructor with the given arguments.
An implementation with the same bytecode already deployed on the network is reused,
as is the network's ProxyAdmin for transparent proxies.`,
		Example: `  # Transparent proxy, calling initialize(address,uint256)
  upgrades deploy Agreement 0x1234... 100 --network sepolia

  # UUPS proxy with a label and JSON encoded arguments
  upgrades deploy Agreement --kind uups --label v1 --args-json '["0x1234...", "100"]'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			initArgs, err := parseCallArgs(args[1:], argsJSON)
			if err != nil {
				return err
			}

			var proxyKind models.ProxyKind
			if kind != "" {
				if proxyKind, err = models.ParseProxyKind(kind); err != nil {
					return err
				}
			}

			result, err := app.DeployProxy.Run(cmd.Context(), usecase.DeployProxyParams{
				ContractRef: args[0],
				Label:       label,
				Args:        initArgs,
				Kind:        proxyKind,
				Initializer: initializer,
				Force:       force,
			})
			if err != nil {
				return err
			}

			return render.NewProxyRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderDeploy(result)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Label distinguishing several proxies of the same contract")
	cmd.Flags().StringVar(&kind, "kind", "", "Proxy kind: transparent or uups (defaults to upgrades.toml [proxy] kind)")
	cmd.Flags().StringVar(&initializer, "initializer", "", "Initializer method name or signature (defaults to initialize)")
	cmd.Flags().StringVar(&argsJSON, "args-json", "", "Initializer arguments as a JSON array")
	cmd.Flags().BoolVar(&force, "force", false, "Deploy a new proxy even if one is recorded under the same ID")

	return cmd
}

// parseCallArgs takes literal positional arguments or a JSON array, not both
func parseCallArgs(positional []string, argsJSON string) ([]any, error) {
	if argsJSON != "" {
		if len(positional) > 0 {
			return nil, fmt.Errorf("%w: use either positional arguments or --args-json", domain.ErrInvalidArguments)
		}
		return abiadapter.ParseArgsJSON(argsJSON)
	}

	args := make([]any, len(positional))
	for i, arg := range positional {
		args[i] = arg
	}
	return args, nil
}
