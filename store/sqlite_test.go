package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreModelRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	_, err := s.Model()
	assert.ErrorIs(t, err, ErrNotFound)

	model := testModel()
	require.NoError(t, s.SaveModel(model))

	got, err := s.Model()
	require.NoError(t, err)
	assert.True(t, mat.Equal(model.Components, got.Components))
	assert.Equal(t, model.SingularValues, got.SingularValues)
	assert.Equal(t, model.ExplainedVariance, got.ExplainedVariance)
	assert.Equal(t, model.ExplainedVarianceRatio, got.ExplainedVarianceRatio)
	assert.Equal(t, model.Mean, got.Mean)

	// Saving again replaces the singleton row.
	model.SingularValues[0] = 9
	require.NoError(t, s.SaveModel(model))
	got, err = s.Model()
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.SingularValues[0])
}

func TestSQLiteStoreScoresRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	id := uuid.New()

	_, err := s.Scores(id)
	assert.ErrorIs(t, err, ErrNotFound)

	// NaN padding must survive the round trip.
	set := &ScoreSet{
		Scores:     mat.NewDense(3, 2, []float64{1, 2, math.NaN(), math.NaN(), 5, 6}),
		Marker:     []float64{0, math.NaN(), 1},
		Timestamps: []float64{0, math.NaN(), 0.066},
	}
	require.NoError(t, s.SaveScores(id, set))

	got, err := s.Scores(id)
	require.NoError(t, err)

	assert.Equal(t, 1.0, got.Scores.At(0, 0))
	assert.True(t, math.IsNaN(got.Scores.At(1, 0)))
	assert.True(t, math.IsNaN(got.Marker[1]))
	assert.Equal(t, 1.0, got.Marker[2])
	assert.Equal(t, 0.066, got.Timestamps[2])
}

func TestSQLiteStoreChangepointsAndMetadata(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	id := uuid.New()

	_, err := s.Changepoints(id)
	assert.ErrorIs(t, err, ErrNotFound)

	cp := &ChangepointSet{Times: []float64{0.5, 2.5}, Peaks: []float64{1.1, 0.7}}
	require.NoError(t, s.SaveChangepoints(id, cp))
	got, err := s.Changepoints(id)
	require.NoError(t, err)
	assert.Equal(t, cp, got)

	_, err = s.SessionMetadata(id)
	assert.ErrorIs(t, err, ErrNotFound)

	md := map[string]string{"subject": "m3"}
	require.NoError(t, s.SaveSessionMetadata(id, md))
	gotMD, err := s.SessionMetadata(id)
	require.NoError(t, err)
	assert.Equal(t, md, gotMD)

	// Upserts replace values by key.
	require.NoError(t, s.SaveSessionMetadata(id, map[string]string{"subject": "m4"}))
	gotMD, err = s.SessionMetadata(id)
	require.NoError(t, err)
	assert.Equal(t, "m4", gotMD["subject"])
}

func TestFloatBlobEncoding(t *testing.T) {
	t.Parallel()

	in := []float64{0, -1.5, math.Inf(1), math.NaN()}
	out, err := blobToFloats(floatsToBlob(in))
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
	assert.True(t, math.IsInf(out[2], 1))
	assert.True(t, math.IsNaN(out[3]))

	_, err = blobToFloats(make([]byte, 5))
	assert.Error(t, err)

	_, err = blobToDense(floatsToBlob([]float64{1, 2, 3}), 2, 2)
	assert.Error(t, err)
}
