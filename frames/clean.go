package frames

import (
	"github.com/behaviorkit/depthpca/algorithms/filters"
	"github.com/behaviorkit/depthpca/algorithms/spectral"
)

// CleanParams configure per-chunk spatial and temporal denoising of depth
// frames. Field names follow the recording toolchain's configuration surface.
type CleanParams struct {
	// Depth values outside [MinHeight, MaxHeight] are zeroed before filtering.
	MinHeight float64 `json:"min_height" yaml:"min_height"`
	MaxHeight float64 `json:"max_height" yaml:"max_height"`

	// GaussfilterSpace is the (x, y) sigma pair for the spatial Gaussian.
	GaussfilterSpace [2]float64 `json:"gaussfilter_space" yaml:"gaussfilter_space"`

	// GaussfilterTime is the sigma of the temporal Gaussian (0 disables).
	GaussfilterTime float64 `json:"gaussfilter_time" yaml:"gaussfilter_time"`

	// Median kernel sizes, applied in order; entries below 2 are skipped.
	MedfilterSpace []int `json:"medfilter_space" yaml:"medfilter_space"`
	MedfilterTime  []int `json:"medfilter_time" yaml:"medfilter_time"`

	// Morphological tail filter. A zero size disables it.
	TailfilterShape filters.StrelShape `json:"tailfilter_shape" yaml:"tailfilter_shape"`
	TailfilterSize  [2]int             `json:"tailfilter_size" yaml:"tailfilter_size"`

	// UseFFT replaces each frame by the shifted magnitude of its 2-D Fourier
	// transform after filtering.
	UseFFT bool `json:"use_fft" yaml:"use_fft"`
}

// DefaultCleanParams mirror the defaults of the recording toolchain for the
// Kinect v2 camera.
func DefaultCleanParams() CleanParams {
	return CleanParams{
		MinHeight:        10,
		MaxHeight:        120,
		GaussfilterSpace: [2]float64{1.5, 1},
		GaussfilterTime:  0,
		MedfilterSpace:   []int{0},
		MedfilterTime:    []int{0},
		TailfilterShape:  filters.StrelEllipse,
		TailfilterSize:   [2]int{9, 9},
	}
}

// TemporalSupport returns the largest temporal filter radius in frames.
// Chunked execution must overlap chunks by at least this many frames.
func (p CleanParams) TemporalSupport() int {
	support := 0
	if p.GaussfilterTime > 0 {
		support = len(filters.GaussianKernel1D(p.GaussfilterTime)) / 2
	}
	for _, k := range p.MedfilterTime {
		if k/2 > support {
			support = k / 2
		}
	}
	return support
}

// Clean denoises a stack in place: height clip, spatial Gaussian, temporal
// Gaussian, spatial median, temporal median, tail filter, then the optional
// spectral transform.
func (p CleanParams) Clean(s *Stack) {
	s.ClipHeights(float32(p.MinHeight), float32(p.MaxHeight))

	filters.SpatialGaussian(s.Data, s.T, s.H, s.W, p.GaussfilterSpace[0], p.GaussfilterSpace[1])
	filters.TemporalGaussian(s.Data, s.T, s.H, s.W, p.GaussfilterTime)

	for _, k := range p.MedfilterSpace {
		filters.SpatialMedian(s.Data, s.T, s.H, s.W, k)
	}
	for _, k := range p.MedfilterTime {
		filters.TemporalMedian(s.Data, s.T, s.H, s.W, k)
	}

	if p.TailfilterSize[0] > 0 && p.TailfilterSize[1] > 0 {
		strel := filters.NewStrel(p.TailfilterShape, p.TailfilterSize[0], p.TailfilterSize[1])
		filters.Open(s.Data, s.T, s.H, s.W, strel)
	}

	if p.UseFFT {
		spectral.NewFFT2D().MagnitudeStack(s.Data, s.T, s.H, s.W)
	}
}

// CleanChunked denoises a stack chunk by chunk along the time axis and
// returns a new stack, leaving the input untouched. Each chunk is processed
// together with a reflected overlap region at least as large as the temporal
// filter support, so the result matches whole-stack cleaning.
func (p CleanParams) CleanChunked(s *Stack, chunkSize int) *Stack {
	if chunkSize <= 0 || chunkSize >= s.T {
		out := s.Clone()
		p.Clean(out)
		return out
	}

	overlap := p.TemporalSupport()

	out := NewStack(s.T, s.H, s.W)
	size := s.H * s.W

	for start := 0; start < s.T; start += chunkSize {
		end := start + chunkSize
		if end > s.T {
			end = s.T
		}

		extStart := start - overlap
		extEnd := end + overlap
		ext := NewStack(extEnd-extStart, s.H, s.W)
		for f := extStart; f < extEnd; f++ {
			copy(ext.Frame(f-extStart), s.Frame(reflectFrame(f, s.T)))
		}

		p.Clean(ext)

		interior := ext.Data[(start-extStart)*size : (end-extStart)*size]
		copy(out.Data[start*size:end*size], interior)
	}

	return out
}

// reflectFrame mirrors an out-of-range frame index back into [0, n).
func reflectFrame(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
