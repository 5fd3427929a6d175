// Package changepoints turns a per-session score trajectory into discrete
// segment boundaries. Scores are randomly projected onto a small set of
// fixed directions, differentiated at a lag, aggregated, smoothed, and
// scanned for peaks.
package changepoints

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/behaviorkit/depthpca/algorithms/common"
	"github.com/behaviorkit/depthpca/algorithms/filters"
	"github.com/behaviorkit/depthpca/logging"
)

// DetectorParams configure changepoint detection.
type DetectorParams struct {
	// K is the lag, in samples, of the derivative signal.
	K int `json:"klags" yaml:"klags"`

	// Sigma is the standard deviation of the 1-D Gaussian applied to the
	// aggregated derivative signal.
	Sigma float64 `json:"sigma" yaml:"sigma"`

	// PeakHeight is the minimum smoothed signal value for an accepted peak.
	PeakHeight float64 `json:"threshold" yaml:"threshold"`

	// PeakNeighbors is the minimum separation between accepted peaks, in
	// samples.
	PeakNeighbors int `json:"neighbors" yaml:"neighbors"`

	// RPs is the number of random projection directions.
	RPs int `json:"dims" yaml:"dims"`

	// Normalize z-scores each projected column before differencing.
	Normalize bool `json:"normalize" yaml:"normalize"`

	// Seed drives the projection directions. The upstream toolchain drew
	// unseeded directions, which made segment boundaries irreproducible;
	// here detection is deterministic for a fixed seed.
	Seed int64 `json:"seed" yaml:"seed"`

	Logger logging.Logger `json:"-" yaml:"-"`
}

// DefaultDetectorParams mirror the recording toolchain's defaults.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		K:             6,
		Sigma:         3.5,
		PeakHeight:    0.5,
		PeakNeighbors: 1,
		RPs:           300,
		Normalize:     true,
	}
}

// Detector finds changepoints in score trajectories. Detection is invoked
// independently per session; there is no cross-session state.
type Detector struct {
	params DetectorParams
	log    logging.Logger
}

// NewDetector creates a detector with the given parameters.
func NewDetector(params DetectorParams) *Detector {
	if params.K < 1 {
		params.K = 1
	}
	if params.RPs < 1 {
		params.RPs = 1
	}
	if params.PeakNeighbors < 1 {
		params.PeakNeighbors = 1
	}
	return &Detector{params: params, log: logging.OrDefault(params.Logger)}
}

// Detect returns changepoint times and the corresponding peak magnitudes
// for one session's real (non-padded) n x m score matrix and matching
// timestamps. A degenerate signal (too short, zero variance) returns
// (nil, nil, nil): a soft, per-session miss rather than an error.
func (d *Detector) Detect(scores *mat.Dense, timestamps []float64) (times, peaks []float64, err error) {
	n, _ := scores.Dims()
	if len(timestamps) != n {
		return nil, nil, fmt.Errorf("%d timestamps for %d score rows", len(timestamps), n)
	}

	if n < 2*d.params.K+2 {
		d.log.Debug("session too short for changepoint detection", logging.Fields{"frames": n})
		return nil, nil, nil
	}

	projected := d.project(scores)
	signal := d.derivativeSignal(projected)
	smoothed := filters.SmoothGaussian1D(signal, d.params.Sigma)

	if common.Variance(smoothed) < 1e-12 {
		d.log.Debug("degenerate changepoint signal", logging.Fields{"frames": n})
		return nil, nil, nil
	}

	idx := findPeaks(smoothed, d.params.PeakHeight, d.params.PeakNeighbors)
	if len(idx) == 0 {
		return []float64{}, []float64{}, nil
	}

	times = make([]float64, len(idx))
	peaks = make([]float64, len(idx))
	for i, p := range idx {
		times[i] = timestamps[p]
		peaks[i] = smoothed[p]
	}
	return times, peaks, nil
}

// project multiplies the scores by seeded Gaussian random directions and
// optionally z-scores each projected column.
func (d *Detector) project(scores *mat.Dense) *mat.Dense {
	n, m := scores.Dims()
	rng := rand.New(rand.NewSource(d.params.Seed))

	directions := mat.NewDense(m, d.params.RPs, nil)
	for i := 0; i < m; i++ {
		row := directions.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}

	var projected mat.Dense
	projected.Mul(scores, directions)

	if d.params.Normalize {
		col := make([]float64, n)
		for j := 0; j < d.params.RPs; j++ {
			mat.Col(col, j, &projected)
			normed := common.Normalize(col)
			for i := 0; i < n; i++ {
				projected.Set(i, j, normed[i])
			}
		}
	}

	return &projected
}

// derivativeSignal computes the lagged difference x[t] - x[t-k] per column
// and aggregates the columns into one value per frame via the root mean
// square. The first k samples have no defined derivative and stay zero.
func (d *Detector) derivativeSignal(projected *mat.Dense) []float64 {
	n, m := projected.Dims()
	k := d.params.K

	signal := make([]float64, n)
	for t := k; t < n; t++ {
		cur := projected.RawRowView(t)
		prev := projected.RawRowView(t - k)
		acc := 0.0
		for j := 0; j < m; j++ {
			diff := cur[j] - prev[j]
			acc += diff * diff
		}
		signal[t] = math.Sqrt(acc / float64(m))
	}
	return signal
}

// findPeaks scans left to right for local maxima above height. Once a
// qualifying peak is accepted, any further candidate within its neighbor
// window is suppressed and scanning continues past the window.
func findPeaks(signal []float64, height float64, neighbors int) []int {
	var idx []int
	last := -neighbors - 1

	for t := 1; t < len(signal)-1; t++ {
		if signal[t] <= height {
			continue
		}
		if !(signal[t] > signal[t-1] && signal[t] >= signal[t+1]) {
			continue
		}
		if t-last <= neighbors {
			continue
		}
		idx = append(idx, t)
		last = t
	}
	return idx
}
