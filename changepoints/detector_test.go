package changepoints

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func uniformStamps(n int, fps float64) []float64 {
	stamps := make([]float64, n)
	for i := range stamps {
		stamps[i] = float64(i) / fps
	}
	return stamps
}

func TestDetectTwoAbruptTransitions(t *testing.T) {
	t.Parallel()

	const n, d, fps = 240, 3, 30.0
	const first, second = 80, 160

	// Three piecewise-constant regimes with abrupt transitions.
	scores := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		level := 0.0
		switch {
		case i >= second:
			level = -6
		case i >= first:
			level = 8
		}
		for j := 0; j < d; j++ {
			scores.Set(i, j, level*float64(j+1))
		}
	}

	detector := NewDetector(DefaultDetectorParams())
	times, peaks, err := detector.Detect(scores, uniformStamps(n, fps))
	require.NoError(t, err)
	require.Len(t, times, 2)
	require.Len(t, peaks, 2)

	// Peaks land within the smoothing support of each transition.
	assert.InDelta(t, float64(first)/fps, times[0], 10.0/fps)
	assert.InDelta(t, float64(second)/fps, times[1], 10.0/fps)

	for _, p := range peaks {
		assert.Greater(t, p, DefaultDetectorParams().PeakHeight)
	}
}

func TestDetectIsolatedImpulsePair(t *testing.T) {
	t.Parallel()

	const n, d, fps = 200, 2, 30.0
	const first, second = 60, 140

	// Two single-frame impulses on an otherwise flat trajectory. Each
	// impulse excites the lagged difference twice, at the impulse and again
	// k frames later; with the default smoothing the two excitations merge
	// into one maximum between them.
	scores := mat.NewDense(n, d, nil)
	for _, f := range []int{first, second} {
		scores.Set(f, 0, 10)
		scores.Set(f, 1, -7)
	}

	params := DefaultDetectorParams()
	times, peaks, err := NewDetector(params).Detect(scores, uniformStamps(n, fps))
	require.NoError(t, err)
	require.Len(t, times, 2)
	require.Len(t, peaks, 2)

	half := float64(params.K) / 2
	assert.InDelta(t, (float64(first)+half)/fps, times[0], (half+1)/fps)
	assert.InDelta(t, (float64(second)+half)/fps, times[1], (half+1)/fps)

	for _, p := range peaks {
		assert.Greater(t, p, params.PeakHeight)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	t.Parallel()

	const n, d = 150, 4
	rng := rand.New(rand.NewSource(9))
	scores := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			v := rng.NormFloat64()
			if i > 70 {
				v += 10
			}
			scores.Set(i, j, v)
		}
	}
	stamps := uniformStamps(n, 30)

	params := DefaultDetectorParams()
	params.Seed = 7

	a, ap, err := NewDetector(params).Detect(scores, stamps)
	require.NoError(t, err)
	b, bp, err := NewDetector(params).Detect(scores, stamps)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, ap, bp)
}

func TestDetectDegenerateInputs(t *testing.T) {
	t.Parallel()

	detector := NewDetector(DefaultDetectorParams())

	t.Run("too short returns soft miss", func(t *testing.T) {
		t.Parallel()
		scores := mat.NewDense(5, 2, nil)
		times, peaks, err := detector.Detect(scores, uniformStamps(5, 30))
		assert.NoError(t, err)
		assert.Nil(t, times)
		assert.Nil(t, peaks)
	})

	t.Run("constant signal returns soft miss", func(t *testing.T) {
		t.Parallel()
		const n = 100
		scores := mat.NewDense(n, 2, nil)
		for i := 0; i < n; i++ {
			scores.Set(i, 0, 4)
			scores.Set(i, 1, -2)
		}
		times, peaks, err := detector.Detect(scores, uniformStamps(n, 30))
		assert.NoError(t, err)
		assert.Nil(t, times)
		assert.Nil(t, peaks)
	})

	t.Run("timestamp mismatch is an error", func(t *testing.T) {
		t.Parallel()
		scores := mat.NewDense(50, 2, nil)
		_, _, err := detector.Detect(scores, uniformStamps(10, 30))
		assert.Error(t, err)
	})
}

func TestFindPeaks(t *testing.T) {
	t.Parallel()

	t.Run("greedy suppression within neighbor window", func(t *testing.T) {
		t.Parallel()
		signal := []float64{0, 1, 0.9, 1.2, 0, 0, 2, 0}
		// With a wide window, the second local max at index 3 is suppressed
		// by the accepted peak at index 1.
		idx := findPeaks(signal, 0.5, 3)
		assert.Equal(t, []int{1, 6}, idx)
	})

	t.Run("height threshold filters peaks", func(t *testing.T) {
		t.Parallel()
		signal := []float64{0, 0.4, 0, 0.8, 0}
		idx := findPeaks(signal, 0.5, 1)
		assert.Equal(t, []int{3}, idx)
	})

	t.Run("flat-top plateau accepted once", func(t *testing.T) {
		t.Parallel()
		signal := []float64{0, 1, 1, 0}
		idx := findPeaks(signal, 0.5, 1)
		assert.Equal(t, []int{1}, idx)
	})

	t.Run("no peaks", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, findPeaks([]float64{0, 0.1, 0.2, 0.1, 0}, 0.5, 1))
	})
}

func TestDetectNoPeaksReturnsEmpty(t *testing.T) {
	t.Parallel()

	// A slow linear drift yields a nonzero but sub-threshold signal.
	const n, d = 120, 2
	scores := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			scores.Set(i, j, 1e-4*float64(i))
		}
	}

	params := DefaultDetectorParams()
	params.Normalize = false
	params.PeakHeight = 10

	times, peaks, err := NewDetector(params).Detect(scores, uniformStamps(n, 30))
	require.NoError(t, err)
	require.NotNil(t, times)
	assert.Empty(t, times)
	assert.Empty(t, peaks)
}
