package main

import (
	"context"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the PCA basis over all sessions",
	Long: `Clean every session, stack the flattened frames into one matrix,
factorize it with a randomized rank-truncated SVD, and persist the basis.

Examples:
  depthpca train --data recordings/ --store results.db
  depthpca train --config run.yaml --workers 4`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	_, err = p.Train(context.Background())
	return err
}
