package pca

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Compressed (randomized) rank-truncated SVD after Halko, Martinsson &
// Tropp, "Finding structure with randomness" (2011). The factorization
// sketches the input through a Gaussian test matrix and never materializes
// an n x n product, which keeps the cost linear in the frame count.

// compressedSVD returns the top-rank thin SVD factors of a. u is n x rank,
// s has length rank, v is d x rank. When rank plus oversampling reaches the
// full rank of a, it falls back to a direct thin SVD.
func compressedSVD(a mat.Matrix, rank, oversample int, rng *rand.Rand) (u *mat.Dense, s []float64, v *mat.Dense, err error) {
	n, d := a.Dims()
	if rank <= 0 {
		return nil, nil, nil, fmt.Errorf("rank must be positive, got %d", rank)
	}
	if minDim := min(n, d); rank > minDim {
		return nil, nil, nil, fmt.Errorf("rank %d exceeds min(n, d) = %d", rank, minDim)
	}

	k := rank + oversample
	if k >= min(n, d) {
		return directSVD(a, rank)
	}

	// Sketch: Y = A * Omega with Gaussian Omega (d x k).
	omega := mat.NewDense(d, k, nil)
	for i := 0; i < d; i++ {
		row := omega.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}

	var y mat.Dense
	y.Mul(a, omega)

	// Orthonormalize the sketch with a thin SVD of Y; its left singular
	// vectors span range(Y) and stay n x k, never n x n.
	var ysvd mat.SVD
	if ok := ysvd.Factorize(&y, mat.SVDThin); !ok {
		return nil, nil, nil, fmt.Errorf("svd of sketch matrix failed to converge")
	}
	var q mat.Dense
	ysvd.UTo(&q)

	// Project: B = Q^T * A (k x d), then take its exact thin SVD.
	var b mat.Dense
	b.Mul(q.T(), a)

	var svd mat.SVD
	if ok := svd.Factorize(&b, mat.SVDThin); !ok {
		return nil, nil, nil, fmt.Errorf("svd of projected matrix failed to converge")
	}

	var ub, vb mat.Dense
	svd.UTo(&ub)
	svd.VTo(&vb)
	values := svd.Values(nil)

	var full mat.Dense
	full.Mul(&q, &ub)

	u = mat.DenseCopyOf(full.Slice(0, n, 0, rank))
	v = mat.DenseCopyOf(vb.Slice(0, d, 0, rank))
	s = values[:rank]

	return u, s, v, nil
}

// directSVD computes an exact thin SVD and truncates to rank.
func directSVD(a mat.Matrix, rank int) (*mat.Dense, []float64, *mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, nil, nil, fmt.Errorf("svd failed to converge")
	}

	n, d := a.Dims()
	var uf, vf mat.Dense
	svd.UTo(&uf)
	svd.VTo(&vf)
	values := svd.Values(nil)

	u := mat.DenseCopyOf(uf.Slice(0, n, 0, rank))
	v := mat.DenseCopyOf(vf.Slice(0, d, 0, rank))
	return u, values[:rank], v, nil
}
