package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	clipHead int
	clipTail int
)

var clipScoresCmd = &cobra.Command{
	Use:   "clip-scores <session-uuid>",
	Short: "Trim rows off a session's stored scores",
	Long: `Remove a fixed number of leading and trailing rows from a session's
stored scores, for recordings with known bad lead-in or lead-out frames.

Example:
  depthpca clip-scores 2c3a... --head 90 --tail 30`,
	Args: cobra.ExactArgs(1),
	RunE: runClipScores,
}

func init() {
	rootCmd.AddCommand(clipScoresCmd)

	clipScoresCmd.Flags().IntVar(&clipHead, "head", 0, "Rows to remove from the start")
	clipScoresCmd.Flags().IntVar(&clipTail, "tail", 0, "Rows to remove from the end")
}

func runClipScores(cmd *cobra.Command, args []string) error {
	session, err := uuid.Parse(args[0])
	if err != nil {
		return err
	}

	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	return p.ClipScores(session, clipHead, clipTail)
}
