package pca

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/behaviorkit/depthpca/logging"
)

// TrainParams configure PCA training.
type TrainParams struct {
	// Rank of the truncated factorization. Must satisfy
	// Rank <= min(n_frames, n_features).
	Rank int `json:"rank" yaml:"rank"`

	// MissingData enables the fixed-iteration imputation loop. The caller
	// must zero masked pixels in the input matrix and pass the mask.
	MissingData bool `json:"missing_data" yaml:"missing_data"`

	// Iters is the imputation iteration budget. It is a hard stop, not a
	// convergence test; larger values trade compute for imputation fidelity.
	Iters int `json:"missing_data_iters" yaml:"missing_data_iters"`

	// ReconPCs is the number of leading components used to reconstruct
	// masked entries between iterations. Clamped to Rank.
	ReconPCs int `json:"recon_pcs" yaml:"recon_pcs"`

	// Reconstructed values outside [MinHeight, MaxHeight] are zeroed before
	// being written back into the masked entries.
	MinHeight float64 `json:"min_height" yaml:"min_height"`
	MaxHeight float64 `json:"max_height" yaml:"max_height"`

	// Oversample extends the sketch width of the randomized SVD.
	Oversample int `json:"oversample" yaml:"oversample"`

	// Seed drives the Gaussian sketch so factorizations are reproducible.
	Seed int64 `json:"seed" yaml:"seed"`

	Logger logging.Logger `json:"-" yaml:"-"`
}

// DefaultTrainParams mirror the recording toolchain's defaults.
func DefaultTrainParams() TrainParams {
	return TrainParams{
		Rank:       25,
		Iters:      10,
		ReconPCs:   10,
		MinHeight:  10,
		MaxHeight:  120,
		Oversample: 10,
	}
}

// Trainer computes a rank-truncated PCA basis from a flattened frame matrix,
// optionally imputing masked pixels from low-rank reconstructions.
type Trainer struct {
	params TrainParams
	log    logging.Logger
}

// NewTrainer creates a trainer with the given parameters.
func NewTrainer(params TrainParams) *Trainer {
	if params.Iters <= 0 {
		params.Iters = 1
	}
	if params.ReconPCs <= 0 || params.ReconPCs > params.Rank {
		params.ReconPCs = params.Rank
	}
	if params.Oversample <= 0 {
		params.Oversample = 10
	}
	return &Trainer{params: params, log: logging.OrDefault(params.Logger)}
}

// Train factorizes the n x d matrix x. In missing-data mode, mask must be an
// n-row boolean matrix parallel to x, marking entries to impute; x itself is
// never mutated. Any SVD failure is fatal to the whole training run.
func (t *Trainer) Train(x *mat.Dense, mask [][]bool) (*Model, error) {
	n, _ := x.Dims()
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 frames to train, got %d", n)
	}

	rng := rand.New(rand.NewSource(t.params.Seed))

	if !t.params.MissingData {
		return t.trainOnce(x, rng)
	}

	if mask == nil {
		return nil, fmt.Errorf("missing-data training requires a mask")
	}
	if len(mask) != n {
		return nil, fmt.Errorf("mask has %d rows, matrix has %d", len(mask), n)
	}

	// Copy, then overwrite masked entries between iterations.
	work := mat.DenseCopyOf(x)
	mean := columnMeans(work)

	var (
		u, v *mat.Dense
		s    []float64
		err  error
	)

	for iter := 0; iter < t.params.Iters; iter++ {
		u, s, v, err = compressedSVD(centered(work, mean), t.params.Rank, t.params.Oversample, rng)
		if err != nil {
			return nil, fmt.Errorf("svd iteration %d: %w", iter, err)
		}

		if iter < t.params.Iters-1 {
			recon := t.reconstruct(u, s, v, mean)
			imputeMasked(work, recon, mask)
			mean = columnMeans(work)
		}

		t.log.Debug("completed imputation iteration", logging.Fields{
			"iter": iter + 1, "iters": t.params.Iters,
		})
	}

	return t.finalize(work, s, v)
}

// trainOnce is the no-missing-data path: a single factorization of the
// mean-centered matrix.
func (t *Trainer) trainOnce(x *mat.Dense, rng *rand.Rand) (*Model, error) {
	mean := columnMeans(x)

	_, s, v, err := compressedSVD(centered(x, mean), t.params.Rank, t.params.Oversample, rng)
	if err != nil {
		return nil, err
	}

	return t.finalize(x, s, v)
}

// reconstruct forms U[:, :p] * diag(S[:p]) * V[:, :p]^T + mean, zeroing
// values outside the configured height bounds.
func (t *Trainer) reconstruct(u *mat.Dense, s []float64, v *mat.Dense, mean []float64) *mat.Dense {
	n, _ := u.Dims()
	d, _ := v.Dims()
	p := t.params.ReconPCs

	scaled := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, u.At(i, j)*s[j])
		}
	}

	var recon mat.Dense
	recon.Mul(scaled, v.Slice(0, d, 0, p).T())

	lo, hi := t.params.MinHeight, t.params.MaxHeight
	for i := 0; i < n; i++ {
		row := recon.RawRowView(i)
		for j := range row {
			row[j] += mean[j]
			if row[j] < lo || row[j] > hi {
				row[j] = 0
			}
		}
	}

	return &recon
}

func (t *Trainer) finalize(final *mat.Dense, s []float64, v *mat.Dense) (*Model, error) {
	n, d := final.Dims()
	rank := len(s)

	components := mat.NewDense(rank, d, nil)
	for i := 0; i < rank; i++ {
		for j := 0; j < d; j++ {
			components.Set(i, j, v.At(j, i))
		}
	}
	normalizeSigns(components)

	totalVar := totalVariance(final)

	explained := make([]float64, rank)
	ratio := make([]float64, rank)
	for i, sv := range s {
		explained[i] = sv * sv / float64(n-1)
		if totalVar > 0 {
			ratio[i] = explained[i] / totalVar
		}
	}

	model := &Model{
		Components:             components,
		SingularValues:         append([]float64(nil), s...),
		ExplainedVariance:      explained,
		ExplainedVarianceRatio: ratio,
		Mean:                   columnMeans(final),
	}

	return model, nil
}

// normalizeSigns flips each component row so its largest-magnitude entry is
// non-negative. SVD sign is otherwise arbitrary.
func normalizeSigns(components *mat.Dense) {
	r, d := components.Dims()
	for i := 0; i < r; i++ {
		row := components.RawRowView(i)
		argmax := 0
		for j := 1; j < d; j++ {
			if math.Abs(row[j]) > math.Abs(row[argmax]) {
				argmax = j
			}
		}
		if row[argmax] < 0 {
			for j := range row {
				row[j] = -row[j]
			}
		}
	}
}

// columnMeans returns the per-feature mean of x.
func columnMeans(x *mat.Dense) []float64 {
	n, d := x.Dims()
	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	return mean
}

// centered returns x - mean without mutating x.
func centered(x *mat.Dense, mean []float64) *mat.Dense {
	n, d := x.Dims()
	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		src := x.RawRowView(i)
		dst := out.RawRowView(i)
		for j := 0; j < d; j++ {
			dst[j] = src[j] - mean[j]
		}
	}
	return out
}

// imputeMasked overwrites masked entries of work with the reconstruction.
func imputeMasked(work, recon *mat.Dense, mask [][]bool) {
	n, _ := work.Dims()
	for i := 0; i < n; i++ {
		dst := work.RawRowView(i)
		src := recon.RawRowView(i)
		for j, missing := range mask[i] {
			if missing {
				dst[j] = src[j]
			}
		}
	}
}

// totalVariance sums the unbiased per-feature variance of x.
func totalVariance(x *mat.Dense) float64 {
	n, d := x.Dims()
	if n < 2 {
		return 0
	}

	col := make([]float64, n)
	total := 0.0
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		total += stat.Variance(col, nil)
	}
	return total
}
