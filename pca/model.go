package pca

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Model is the trained PCA bundle. Components rows are unit-norm, mutually
// orthogonal directions with each row's largest-magnitude entry made
// non-negative so orientation is deterministic across runs.
type Model struct {
	Components             *mat.Dense // rank x d
	SingularValues         []float64  // len rank
	ExplainedVariance      []float64  // s^2/(n-1)
	ExplainedVarianceRatio []float64
	Mean                   []float64 // len d, per-feature mean of the training matrix
}

// Rank returns the number of components.
func (m *Model) Rank() int {
	r, _ := m.Components.Dims()
	return r
}

// Features returns the flattened feature count d.
func (m *Model) Features() int {
	_, d := m.Components.Dims()
	return d
}

// Validate checks internal consistency of a loaded model.
func (m *Model) Validate() error {
	if m.Components == nil {
		return fmt.Errorf("model has no components")
	}
	r, d := m.Components.Dims()
	if len(m.SingularValues) != r {
		return fmt.Errorf("%d singular values for %d components", len(m.SingularValues), r)
	}
	if len(m.Mean) != 0 && len(m.Mean) != d {
		return fmt.Errorf("mean length %d does not match %d features", len(m.Mean), d)
	}
	if len(m.ExplainedVariance) != r || len(m.ExplainedVarianceRatio) != r {
		return fmt.Errorf("explained variance arrays do not match rank %d", r)
	}
	return nil
}
