package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanVariance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 3.0, Mean([]float64{1, 2, 3, 4, 5}), 1e-12)

	assert.Equal(t, 0.0, Variance([]float64{7}))
	assert.InDelta(t, 2.5, Variance([]float64{1, 2, 3, 4, 5}), 1e-12)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("zero mean unit variance", func(t *testing.T) {
		t.Parallel()
		out := Normalize([]float64{2, 4, 6, 8})
		assert.InDelta(t, 0.0, Mean(out), 1e-12)
		assert.InDelta(t, 1.0, Variance(out), 1e-12)
	})

	t.Run("constant data centers only", func(t *testing.T) {
		t.Parallel()
		out := Normalize([]float64{5, 5, 5})
		for _, v := range out {
			assert.Equal(t, 0.0, v)
		}
	})
}
