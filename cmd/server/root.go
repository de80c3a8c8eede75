package main

import (
	"fmt"
	"os"

	"github.com/KevinKickass/OpenStudioCore/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "openstudiocore",
		Short:         "OpenStudioCore coordinates the camera robots of a studio",
		Long:          `OpenStudioCore moves pan/tilt robots to named targets and serves their live status over REST, WebSocket and gRPC health.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	cmd.PersistentFlags().String("config", "configs/config.yaml", "Path to the service configuration file")
	cmd.PersistentFlags().String("layout", "", "Path to the studio layout (overrides studio.layout_path)")

	cmd.AddCommand(newServeCmd(), newLayoutCmd())
	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the --layout override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if layoutPath, _ := cmd.Flags().GetString("layout"); layoutPath != "" {
		cfg.Studio.LayoutPath = layoutPath
	}
	return cfg, nil
}
