package main

import (
	"context"

	"github.com/spf13/cobra"
)

var changepointsCmd = &cobra.Command{
	Use:   "changepoints",
	Short: "Detect behavioral changepoints per session",
	Long: `Score each session against the stored basis and segment the score
trajectory into changepoints via random projections and peak detection.
Boundary times are persisted in seconds.

In missing-data mode the stored scores from 'depthpca apply' are required
to impute masked pixels before projection.`,
	RunE: runChangepoints,
}

func init() {
	rootCmd.AddCommand(changepointsCmd)
}

func runChangepoints(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	return p.Changepoints(context.Background())
}
