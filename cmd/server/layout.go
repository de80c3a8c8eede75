package main

import (
	"fmt"

	"github.com/KevinKickass/OpenStudioCore/internal/layout"
	"github.com/spf13/cobra"
)

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Inspect the studio layout",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the layout against the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			lay, path, err := loadLayout(cmd)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d robots, %d targets\n",
				path, len(lay.Robots), len(lay.Targets))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "targets",
		Short: "List targets and their shots",
		RunE: func(cmd *cobra.Command, args []string) error {
			lay, _, err := loadLayout(cmd)
			if err != nil {
				return err
			}
			targets, err := lay.BuildTargets()
			if err != nil {
				return err
			}

			var rows [][]string
			for _, target := range targets {
				shots := target.Shots()
				if len(shots) == 0 {
					rows = append(rows, []string{target.Name(), "-", "-"})
					continue
				}
				for _, shot := range shots {
					rows = append(rows, []string{target.Name(), shot.RobotID, shot.Position.String()})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Target", "Robot", "Position"}, rows))
			return nil
		},
	})

	return cmd
}

func loadLayout(cmd *cobra.Command) (*layout.Layout, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	lay, err := layout.Load(cfg.Studio.LayoutPath)
	if err != nil {
		return nil, "", err
	}
	return lay, cfg.Studio.LayoutPath, nil
}
