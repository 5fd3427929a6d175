package frames

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behaviorkit/depthpca/algorithms/filters"
)

func randomStack(seed int64, tn, h, w int) *Stack {
	rng := rand.New(rand.NewSource(seed))
	s := NewStack(tn, h, w)
	for i := range s.Data {
		s.Data[i] = float32(20 + 80*rng.Float64())
	}
	return s
}

func TestTemporalSupport(t *testing.T) {
	t.Parallel()

	p := DefaultCleanParams()
	assert.Equal(t, 0, p.TemporalSupport())

	p.MedfilterTime = []int{5}
	assert.Equal(t, 2, p.TemporalSupport())

	p.GaussfilterTime = 2
	support := p.TemporalSupport()
	assert.Equal(t, len(filters.GaussianKernel1D(2))/2, support)
}

func TestCleanPreservesShape(t *testing.T) {
	t.Parallel()

	s := randomStack(1, 5, 12, 16)
	p := DefaultCleanParams()
	p.Clean(s)

	assert.Equal(t, 5, s.T)
	assert.Len(t, s.Data, 5*12*16)
}

func TestCleanClipsHeights(t *testing.T) {
	t.Parallel()

	s := NewStack(1, 3, 3)
	for i := range s.Data {
		s.Data[i] = 200
	}

	p := DefaultCleanParams()
	p.GaussfilterSpace = [2]float64{0, 0}
	p.TailfilterSize = [2]int{0, 0}
	p.Clean(s)

	for _, v := range s.Data {
		assert.Equal(t, float32(0), v)
	}
}

func TestCleanChunkedMatchesWholeStack(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		chunk int
		tune  func(*CleanParams)
	}{
		{"spatial only", 7, func(p *CleanParams) {}},
		{"temporal gaussian", 7, func(p *CleanParams) { p.GaussfilterTime = 1.0 }},
		{"temporal median", 7, func(p *CleanParams) { p.MedfilterTime = []int{3} }},
		// Overlap regions must cover the full filter support even when it
		// exceeds the chunk size (sigma 2 spans 8 frames on each side).
		{"support wider than chunk", 5, func(p *CleanParams) { p.GaussfilterTime = 2.0 }},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			s := randomStack(7, 20, 6, 8)
			p := DefaultCleanParams()
			c.tune(&p)

			whole := s.Clone()
			p.Clean(whole)

			chunked := p.CleanChunked(s, c.chunk)
			require.Equal(t, whole.T, chunked.T)
			for i := range whole.Data {
				assert.InDelta(t, float64(whole.Data[i]), float64(chunked.Data[i]), 1e-3, "index %d", i)
			}
		})
	}
}

func TestCleanChunkedLeavesInputUntouched(t *testing.T) {
	t.Parallel()

	s := randomStack(8, 10, 4, 4)
	snapshot := append([]float32(nil), s.Data...)

	p := DefaultCleanParams()
	out := p.CleanChunked(s, 4)

	assert.Equal(t, snapshot, s.Data)
	assert.NotEqual(t, &s.Data[0], &out.Data[0])
}

func TestCleanChunkedOversizeChunkIsWholeStack(t *testing.T) {
	t.Parallel()

	s := randomStack(9, 6, 4, 4)
	p := DefaultCleanParams()

	whole := s.Clone()
	p.Clean(whole)

	out := p.CleanChunked(s, 100)
	assert.Equal(t, whole.Data, out.Data)
}
