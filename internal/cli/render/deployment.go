package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// DeploymentRenderer renders detailed information about a single deployment
type DeploymentRenderer struct {
	out  io.Writer
	json bool
}

// NewDeploymentRenderer creates a new deployment renderer
func NewDeploymentRenderer(out io.Writer, json bool) *DeploymentRenderer {
	return &DeploymentRenderer{
		out:  out,
		json: json,
	}
}

type deploymentOutput struct {
	*models.Deployment
	Transactions []*models.Transaction `json:"transactions,omitempty"`
}

// RenderDeployment renders detailed deployment information
func (r *DeploymentRenderer) RenderDeployment(deployment *models.Deployment) error {
	if r.json {
		return writeJSON(r.out, deploymentOutput{
			Deployment:   deployment,
			Transactions: deployment.Transactions,
		})
	}

	// Header
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Deployment: %s\n", deployment.ID)
	fmt.Fprintln(r.out, strings.Repeat("=", 80))

	// Basic Info
	fmt.Fprintln(r.out, "\nBasic Information:")
	fmt.Fprintf(r.out, "  Contract: %s\n", color.New(color.FgYellow).Sprint(deployment.GetShortID()))
	fmt.Fprintf(r.out, "  Address: %s\n", deployment.Address)
	fmt.Fprintf(r.out, "  Type: %s\n", title(string(deployment.Type)))
	fmt.Fprintf(r.out, "  Namespace: %s\n", deployment.Namespace)

	network := fmt.Sprintf("%d", deployment.ChainID)
	if deployment.Network != "" {
		network = fmt.Sprintf("%s (%d)", deployment.Network, deployment.ChainID)
	}
	fmt.Fprintf(r.out, "  Network: %s\n", network)

	if deployment.Label != "" {
		fmt.Fprintf(r.out, "  Label: %s\n", color.New(color.FgMagenta).Sprint(deployment.Label))
	}
	if len(deployment.InitializerArgs) > 0 {
		fmt.Fprintf(r.out, "  Initializer Args: %v\n", deployment.InitializerArgs)
	}

	// Proxy Information
	if deployment.ProxyInfo != nil {
		info := deployment.ProxyInfo
		fmt.Fprintln(r.out, "\nProxy Information:")
		fmt.Fprintf(r.out, "  Kind: %s\n", title(string(info.Kind)))

		implDisplay := info.Implementation
		if info.ImplementationContract != "" {
			implDisplay = fmt.Sprintf("%s at %s",
				color.New(color.FgYellow, color.Bold).Sprint(info.ImplementationContract),
				info.Implementation,
			)
		}
		fmt.Fprintf(r.out, "  Implementation: %s\n", implDisplay)
		if deployment.Implementation != nil {
			fmt.Fprintf(r.out, "  Implementation ID: %s\n", color.New(color.FgCyan).Sprint(deployment.Implementation.ID))
		}

		if info.Admin != "" {
			fmt.Fprintf(r.out, "  Admin: %s\n", info.Admin)
		}

		if len(info.History) > 0 {
			fmt.Fprintln(r.out, "  Upgrade History:")
			for i, upgrade := range info.History {
				fmt.Fprintf(r.out, "    %d. %s at %s (upgraded at %s)\n",
					i+1,
					upgrade.ImplementationContract,
					upgrade.Implementation,
					upgrade.UpgradedAt.Format("2006-01-02 15:04:05"),
				)
			}
		}
	}

	// Artifact Information
	fmt.Fprintln(r.out, "\nArtifact Information:")
	fmt.Fprintf(r.out, "  Path: %s\n", deployment.Artifact.Path)
	if deployment.Artifact.CompilerVersion != "" {
		fmt.Fprintf(r.out, "  Compiler: %s\n", deployment.Artifact.CompilerVersion)
	}
	if deployment.Artifact.BytecodeHash != "" {
		fmt.Fprintf(r.out, "  Bytecode Hash: %s\n", deployment.Artifact.BytecodeHash)
	}

	// Transaction Information
	fmt.Fprintln(r.out, "\nTransaction Information:")
	fmt.Fprintf(r.out, "  Hash: %s\n", deployment.TransactionHash)
	if deployment.BlockNumber > 0 {
		fmt.Fprintf(r.out, "  Block: %d\n", deployment.BlockNumber)
	}
	if len(deployment.Transactions) > 0 {
		fmt.Fprintln(r.out, "  History:")
		for _, tx := range deployment.Transactions {
			ops := lo.Map(tx.Operations, func(op models.Operation, _ int) string { return op.Method })
			fmt.Fprintf(r.out, "    %s %s %s\n",
				shortHash(tx.Hash),
				color.New(color.Faint).Sprintf("block %d, gas %d, from %s", tx.BlockNumber, tx.GasUsed, tx.Sender),
				strings.Join(ops, ", "),
			)
		}
	}

	// Timestamps
	fmt.Fprintln(r.out, "\nTimestamps:")
	fmt.Fprintf(r.out, "  Created: %s\n", deployment.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.out, "  Updated: %s\n", deployment.UpdatedAt.Format("2006-01-02 15:04:05"))

	return nil
}
