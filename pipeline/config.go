package pipeline

import (
	"fmt"

	"github.com/behaviorkit/depthpca/changepoints"
	"github.com/behaviorkit/depthpca/frames"
	"github.com/behaviorkit/depthpca/pca"
)

// Config is the full semantic configuration surface of a run. The CLI merges
// a YAML file over these defaults; library callers fill the struct directly.
type Config struct {
	// FPS is the nominal camera frame rate, used to synthesize timestamps
	// when a session recorded none and to place changepoints in seconds.
	FPS float64 `json:"fps" yaml:"fps"`

	// ChunkSize bounds how many frames are cleaned at once.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	Clean  frames.CleanParams          `json:"clean" yaml:"clean"`
	Mask   frames.MaskParams           `json:"mask" yaml:"mask"`
	Train  pca.TrainParams             `json:"train" yaml:"train"`
	Apply  pca.ApplyParams             `json:"apply" yaml:"apply"`
	Detect changepoints.DetectorParams `json:"changepoints" yaml:"changepoints"`
}

// DefaultConfig mirrors the recording toolchain's defaults.
func DefaultConfig() Config {
	return Config{
		FPS:       30,
		ChunkSize: 4000,
		Clean:     frames.DefaultCleanParams(),
		Mask: frames.MaskParams{
			MaskThreshold:       -16,
			MaskHeightThreshold: 5,
			MinHeight:           10,
			MaxHeight:           120,
		},
		Train: pca.DefaultTrainParams(),
		Apply: pca.ApplyParams{
			MinHeight: 10,
			MaxHeight: 120,
		},
		Detect: changepoints.DefaultDetectorParams(),
	}
}

// Validate rejects unsupported combinations before any session data is read.
// The spectral transform destroys the pixel correspondence the imputation
// loop relies on, so the two cannot be combined.
func (c Config) Validate() error {
	if c.Clean.UseFFT && (c.Train.MissingData || c.Apply.MissingData) {
		return fmt.Errorf("%w: missing-data imputation cannot run on spectral frames", ErrUnsupportedConfiguration)
	}
	if c.Apply.CenterScores && c.Apply.MissingData {
		return fmt.Errorf("%w: centered scoring cannot be combined with missing-data re-imputation", ErrUnsupportedConfiguration)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %v", ErrUnsupportedConfiguration, c.FPS)
	}
	return nil
}
