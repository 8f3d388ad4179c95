package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		contractName  string
		label         string
		deployType    string
		allNamespaces bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List deployments from registry",
		Long: `List deployments from the registry.

Deployments of the current namespace are listed, restricted to the network's chain
when one is configured. The list can be filtered by contract name, label, or deployment type.`,
		Example: `  # List all deployments
  upgrades list

  # List all Agreement deployments
  upgrades list --contract Agreement

  # List proxies only, across namespaces
  upgrades list --type proxy --all-namespaces`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			deploymentType, err := parseDeploymentType(deployType)
			if err != nil {
				return err
			}

			result, err := app.ListDeployments.Run(cmd.Context(), usecase.ListDeploymentsParams{
				ContractName:  contractName,
				Label:         label,
				Type:          deploymentType,
				AllNamespaces: allNamespaces,
			})
			if err != nil {
				return err
			}

			return render.NewDeploymentsRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderDeploymentList(result)
		},
	}

	cmd.Flags().StringVar(&contractName, "contract", "", "Filter by contract name")
	cmd.Flags().StringVar(&label, "label", "", "Filter by label")
	cmd.Flags().StringVar(&deployType, "type", "", "Filter by deployment type (proxy, implementation, admin)")
	cmd.Flags().BoolVar(&allNamespaces, "all-namespaces", false, "List deployments of every namespace")

	return cmd
}

func parseDeploymentType(s string) (models.DeploymentType, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "proxy":
		return models.ProxyDeployment, nil
	case "implementation", "impl":
		return models.ImplementationDeployment, nil
	case "admin", "proxy_admin", "proxy-admin":
		return models.ProxyAdminDeployment, nil
	default:
		return "", fmt.Errorf("invalid deployment type: %s (valid: proxy, implementation, admin)", s)
	}
}
