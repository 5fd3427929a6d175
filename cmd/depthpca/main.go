package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/behaviorkit/depthpca/compute"
	"github.com/behaviorkit/depthpca/frames"
	"github.com/behaviorkit/depthpca/logging"
	"github.com/behaviorkit/depthpca/pipeline"
	"github.com/behaviorkit/depthpca/store"
)

// Shared flags
var (
	flagConfig  string
	flagData    string
	flagStore   string
	flagWorkers int
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "depthpca",
	Short: "Depth-video PCA and changepoint segmentation",
	Long: `depthpca trains a low-rank basis over cleaned depth recordings,
projects sessions into per-frame scores, and segments the score
trajectories into behavioral changepoints.

A data directory holds raw float32 depth files indexed by manifest.yaml;
results are persisted to a sqlite file.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file merged over defaults")
	rootCmd.PersistentFlags().StringVar(&flagData, "data", ".", "Session data directory (contains manifest.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "depthpca.db", "Result store path (sqlite)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 1, "Parallel session workers")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the optional YAML config file over the defaults.
func loadConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if flagConfig == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(flagConfig)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// buildPipeline assembles the pipeline from the shared flags. The caller
// owns the returned pipeline and must Close it.
func buildPipeline() (*pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	log := logging.NewZerologAdapter(zl)

	src, err := frames.OpenFileSource(flagData)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}

	st, err := store.NewSQLiteStore(flagStore)
	if err != nil {
		return nil, fmt.Errorf("opening result store: %w", err)
	}

	var exec compute.Executor
	if flagWorkers > 1 {
		exec = compute.NewPool(flagWorkers)
	} else {
		exec = compute.NewSerial()
	}

	p, err := pipeline.New(cfg, src, st, exec, log)
	if err != nil {
		st.Close()
		return nil, err
	}
	return p, nil
}
