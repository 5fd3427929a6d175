package timegrid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sequentialScores(n, d int) *mat.Dense {
	x := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, float64(i*d+j))
		}
	}
	return x
}

func TestReindexNoGaps(t *testing.T) {
	t.Parallel()

	const n, d, fps = 10, 3, 30.0
	scores := sequentialScores(n, d)
	stamps := make([]float64, n)
	for i := range stamps {
		stamps[i] = float64(i) / fps
	}

	r, err := Reindex(scores, stamps, fps)
	require.NoError(t, err)

	rn, _ := r.Scores.Dims()
	assert.Equal(t, n, rn)
	for i, m := range r.Marker {
		assert.Equal(t, float64(i), m)
	}
	assert.True(t, mat.Equal(scores, r.Scores))
}

func TestReindexPadsDroppedFrames(t *testing.T) {
	t.Parallel()

	const d, fps = 2, 30.0
	interval := 1.0 / fps

	// Frames 0,1,2 then two dropped, then 5,6.
	stamps := []float64{0, interval, 2 * interval, 5 * interval, 6 * interval}
	scores := sequentialScores(len(stamps), d)

	r, err := Reindex(scores, stamps, fps)
	require.NoError(t, err)

	rn, _ := r.Scores.Dims()
	require.Equal(t, 7, rn)

	// Rows 3 and 4 are inserted padding.
	for _, row := range []int{3, 4} {
		assert.True(t, math.IsNaN(r.Marker[row]), "marker row %d", row)
		assert.True(t, math.IsNaN(r.Timestamps[row]), "timestamp row %d", row)
		for j := 0; j < d; j++ {
			assert.True(t, math.IsNaN(r.Scores.At(row, j)), "scores (%d, %d)", row, j)
		}
	}

	// Real rows keep their original index in the marker.
	assert.Equal(t, 2.0, r.Marker[2])
	assert.Equal(t, 3.0, r.Marker[5])
	assert.Equal(t, 4.0, r.Marker[6])
}

func TestReindexToleranceBoundary(t *testing.T) {
	t.Parallel()

	const fps = 30.0
	interval := 1.0 / fps
	scores := sequentialScores(2, 1)

	t.Run("gap at exactly 1.5x inserts nothing", func(t *testing.T) {
		t.Parallel()
		r, err := Reindex(scores, []float64{0, 1.5 * interval}, fps)
		require.NoError(t, err)
		rn, _ := r.Scores.Dims()
		assert.Equal(t, 2, rn)
	})

	t.Run("gap just above 1.5x pads", func(t *testing.T) {
		t.Parallel()
		r, err := Reindex(scores, []float64{0, 1.6 * interval}, fps)
		require.NoError(t, err)
		rn, _ := r.Scores.Dims()
		assert.Equal(t, 3, rn)
		assert.True(t, math.IsNaN(r.Marker[1]))
	})
}

func TestReindexRoundTrip(t *testing.T) {
	t.Parallel()

	const d, fps = 4, 30.0
	interval := 1.0 / fps

	stamps := []float64{0, interval, 4 * interval, 5 * interval, 9 * interval}
	scores := sequentialScores(len(stamps), d)

	r, err := Reindex(scores, stamps, fps)
	require.NoError(t, err)

	gotScores, gotStamps := RemoveInserted(r)
	assert.True(t, mat.Equal(scores, gotScores))
	assert.Equal(t, stamps, gotStamps)
}

func TestReindexValidation(t *testing.T) {
	t.Parallel()

	scores := sequentialScores(3, 1)

	_, err := Reindex(scores, []float64{0, 1}, 30)
	assert.Error(t, err)

	_, err = Reindex(scores, []float64{0, 1, 2}, 0)
	assert.Error(t, err)
}
