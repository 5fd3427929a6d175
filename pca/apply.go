package pca

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ApplyParams configure the projection of cleaned frames onto a trained
// basis.
type ApplyParams struct {
	// MissingData enables the single imputation-and-rescoring pass: masked
	// entries are replaced from the low-rank reconstruction of the first
	// projection and scores recomputed once.
	MissingData bool `json:"missing_data" yaml:"missing_data"`

	// Reconstruction clip bounds, as in training.
	MinHeight float64 `json:"min_height" yaml:"min_height"`
	MaxHeight float64 `json:"max_height" yaml:"max_height"`

	// CenterScores subtracts the trained mean before projecting. The
	// recording toolchain historically projected raw frames even though
	// training mean-centers; the default preserves that behavior so scores
	// stay comparable with existing artifacts. Set true for the standard
	// PCA projection. Incompatible with MissingData: the height bounds
	// clip raw depth values, not mean-centered ones.
	CenterScores bool `json:"center_scores" yaml:"center_scores"`
}

// Applier projects sessions' cleaned, flattened frames onto a trained basis.
type Applier struct {
	params ApplyParams
	model  *Model
}

// NewApplier creates an applier for the given model.
func NewApplier(model *Model, params ApplyParams) (*Applier, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if params.CenterScores && params.MissingData {
		return nil, fmt.Errorf("center_scores cannot be combined with missing_data: [MinHeight, MaxHeight] clip raw depth values")
	}
	return &Applier{params: params, model: model}, nil
}

// Scores computes frames . components^T for one session's n x d frame
// matrix. In missing-data mode, mask must be parallel to the matrix and the
// input is copied before imputation; the caller's matrix is never mutated.
func (a *Applier) Scores(framesMat *mat.Dense, mask [][]bool) (*mat.Dense, error) {
	n, d := framesMat.Dims()
	if d != a.model.Features() {
		return nil, fmt.Errorf("frame matrix has %d features, model expects %d", d, a.model.Features())
	}

	input := framesMat
	if a.params.CenterScores {
		input = centered(framesMat, a.model.Mean)
	}

	var scores mat.Dense
	scores.Mul(input, a.model.Components.T())

	if !a.params.MissingData {
		return &scores, nil
	}

	if mask == nil {
		return nil, fmt.Errorf("missing-data scoring requires a mask")
	}
	if len(mask) != n {
		return nil, fmt.Errorf("mask has %d rows, matrix has %d", len(mask), n)
	}

	// One reconstruction pass, then a single re-projection.
	var recon mat.Dense
	recon.Mul(&scores, a.model.Components)

	lo, hi := a.params.MinHeight, a.params.MaxHeight
	for i := 0; i < n; i++ {
		row := recon.RawRowView(i)
		for j := range row {
			if row[j] < lo || row[j] > hi {
				row[j] = 0
			}
		}
	}

	work := mat.DenseCopyOf(input)
	imputeMasked(work, &recon, mask)

	var rescored mat.Dense
	rescored.Mul(work, a.model.Components.T())
	return &rescored, nil
}

// Reconstruct maps a score matrix back to flattened frame space,
// scores . components, used when changepoint detection must impute frames
// from previously computed scores.
func (a *Applier) Reconstruct(scores *mat.Dense) (*mat.Dense, error) {
	_, r := scores.Dims()
	if r != a.model.Rank() {
		return nil, fmt.Errorf("score matrix has %d columns, model rank is %d", r, a.model.Rank())
	}
	var recon mat.Dense
	recon.Mul(scores, a.model.Components)
	return &recon, nil
}

// Model returns the applier's model.
func (a *Applier) Model() *Model {
	return a.model
}
