package pca

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// lowRankMatrix builds an exactly rank-r n x d matrix.
func lowRankMatrix(rng *rand.Rand, n, d, r int) *mat.Dense {
	p := mat.NewDense(n, r, nil)
	q := mat.NewDense(d, r, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < r; j++ {
			p.Set(i, j, rng.NormFloat64())
		}
	}
	for i := 0; i < d; i++ {
		for j := 0; j < r; j++ {
			q.Set(i, j, rng.NormFloat64())
		}
	}
	var a mat.Dense
	a.Mul(p, q.T())
	return &a
}

func TestCompressedSVDRecoversLowRank(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	a := lowRankMatrix(rng, 30, 12, 3)

	u, s, v, err := compressedSVD(a, 3, 5, rng)
	require.NoError(t, err)

	n, d := a.Dims()
	ur, uc := u.Dims()
	vr, vc := v.Dims()
	assert.Equal(t, n, ur)
	assert.Equal(t, 3, uc)
	assert.Equal(t, d, vr)
	assert.Equal(t, 3, vc)
	require.Len(t, s, 3)

	// Singular values are sorted descending.
	assert.GreaterOrEqual(t, s[0], s[1])
	assert.GreaterOrEqual(t, s[1], s[2])

	// U columns are orthonormal.
	var gram mat.Dense
	gram.Mul(u.T(), u)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, gram.At(i, j), 1e-9)
		}
	}

	// The factors reproduce an exactly rank-3 input.
	scaled := mat.NewDense(n, 3, nil)
	for j := 0; j < 3; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, u.At(i, j)*s[j])
		}
	}
	var recon mat.Dense
	recon.Mul(scaled, v.T())
	assert.True(t, mat.EqualApprox(a, &recon, 1e-8))
}

func TestCompressedSVDMatchesDirectOnLowRank(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2))
	a := lowRankMatrix(rng, 25, 10, 2)

	_, s, _, err := compressedSVD(a, 2, 4, rng)
	require.NoError(t, err)

	_, sd, _, err := directSVD(a, 2)
	require.NoError(t, err)

	for i := range s {
		assert.InDelta(t, sd[i], s[i], 1e-8*(1+sd[i]))
	}
}

func TestCompressedSVDValidation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	a := mat.NewDense(4, 6, nil)

	_, _, _, err := compressedSVD(a, 0, 10, rng)
	assert.Error(t, err)

	_, _, _, err = compressedSVD(a, 5, 10, rng)
	assert.Error(t, err)
}

func TestCompressedSVDFallsBackToDirect(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(4))
	a := lowRankMatrix(rng, 8, 6, 2)

	// rank + oversample covers the full spectrum, triggering the exact path.
	u, s, v, err := compressedSVD(a, 2, 10, rng)
	require.NoError(t, err)

	ur, uc := u.Dims()
	assert.Equal(t, 8, ur)
	assert.Equal(t, 2, uc)
	vr, vc := v.Dims()
	assert.Equal(t, 6, vr)
	assert.Equal(t, 2, vc)
	assert.Len(t, s, 2)
}
