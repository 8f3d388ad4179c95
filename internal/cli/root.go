package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-upgrades/internal/adapters/progress"
	"github.com/trebuchet-org/treb-upgrades/internal/app"
	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/config"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "upgrades",
		Short: "Deploy and upgrade contracts behind upgradeable proxies",
		Long: `upgrades deploys contracts behind transparent or UUPS proxies, swaps their
implementations and records every deployment in a local registry (.upgrades/).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				return err
			}

			v := config.SetupViper(projectRoot, cmd)

			appInstance, err := app.InitApp(v, newProgressSink(cmd, v))
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			appInstance.Log.Debug("initialized", "command", cmd.Name(), "projectRoot", projectRoot, "namespace", appInstance.Config.Namespace)

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)

			if appInstance.Config.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
				cancelAfterRun(cmd, cancel)
			}

			cmd.SetContext(ctx)

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "Disable interactive prompts")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringP("namespace", "s", "", "Deployment namespace (defaults to 'default')")
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network to use (e.g., local, sepolia or an RPC URL)")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "registry",
		Title: "Registry Commands",
	})

	for _, cmd := range []*cobra.Command{NewDeployCmd(), NewUpgradeCmd(), NewMigrateCmd()} {
		cmd.GroupID = "main"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{NewShowCmd(), NewListCmd(), NewStatusCmd(), NewNetworksCmd(), NewPruneCmd()} {
		cmd.GroupID = "registry"
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// newProgressSink picks how progress is shown: nothing for JSON output,
// step-by-step rendering for migrations, a spinner otherwise
func newProgressSink(cmd *cobra.Command, v *viper.Viper) usecase.ProgressSink {
	if v.GetBool("json") {
		return progress.NewNopSink()
	}
	if cmd.Name() == "migrate" {
		return progress.NewMigrationProgress(render.NewMigrationRenderer(cmd.OutOrStdout(), false))
	}
	return progress.NewSpinnerSink()
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}

// cancelAfterRun releases the command context once the command returns,
// including when it fails
func cancelAfterRun(cmd *cobra.Command, cancel context.CancelFunc) {
	switch {
	case cmd.RunE != nil:
		run := cmd.RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			defer cancel()
			return run(cmd, args)
		}
	case cmd.Run != nil:
		run := cmd.Run
		cmd.Run = func(cmd *cobra.Command, args []string) {
			defer cancel()
			run(cmd, args)
		}
	default:
		cancel()
	}
}
