package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStrel(t *testing.T) {
	t.Parallel()

	t.Run("rectangle is fully set", func(t *testing.T) {
		t.Parallel()
		s := NewStrel(StrelRectangle, 3, 2)
		require.Len(t, s.Mask, 6)
		for _, m := range s.Mask {
			assert.True(t, m)
		}
	})

	t.Run("ellipse center is set, corners are not", func(t *testing.T) {
		t.Parallel()
		s := NewStrel(StrelEllipse, 9, 9)
		assert.True(t, s.Mask[4*9+4])
		assert.False(t, s.Mask[0])
		assert.False(t, s.Mask[8*9+8])
		assert.False(t, s.Empty())
	})

	t.Run("size clamps to one", func(t *testing.T) {
		t.Parallel()
		s := NewStrel(StrelRectangle, 0, 0)
		assert.Equal(t, 1, s.W)
		assert.Equal(t, 1, s.H)
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("suppresses thin bright structure", func(t *testing.T) {
		t.Parallel()
		const h, w = 9, 9
		stack := make([]float32, h*w)
		// Single-pixel-wide vertical streak on a dark background.
		for y := 0; y < h; y++ {
			stack[y*w+4] = 80
		}

		Open(stack, 1, h, w, NewStrel(StrelEllipse, 3, 3))
		for y := 0; y < h; y++ {
			assert.Equal(t, float32(0), stack[y*w+4], "row %d", y)
		}
	})

	t.Run("preserves large flat region interior", func(t *testing.T) {
		t.Parallel()
		const h, w = 11, 11
		stack := make([]float32, h*w)
		for y := 2; y <= 8; y++ {
			for x := 2; x <= 8; x++ {
				stack[y*w+x] = 60
			}
		}

		Open(stack, 1, h, w, NewStrel(StrelEllipse, 3, 3))
		assert.Equal(t, float32(60), stack[5*w+5])
	})

	t.Run("unit element is a no-op", func(t *testing.T) {
		t.Parallel()
		stack := []float32{1, 2, 3, 4}
		Open(stack, 1, 2, 2, NewStrel(StrelRectangle, 1, 1))
		assert.Equal(t, []float32{1, 2, 3, 4}, stack)
	})
}
