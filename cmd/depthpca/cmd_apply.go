package main

import (
	"context"

	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Project sessions onto the trained basis",
	Long: `Project each session's cleaned frames onto the stored basis,
align the scores onto the uniform time grid, and persist them per session.

Requires a trained model in the store; run 'depthpca train' first.`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	return p.Apply(context.Background())
}
