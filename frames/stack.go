package frames

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Stack is an ordered (t, h, w) tensor of depth values backed by a single
// float32 slice, chunked along the time axis for out-of-core processing.
type Stack struct {
	T, H, W int
	Data    []float32 // row-major, len = T*H*W
}

// NewStack allocates a zeroed stack of the given shape.
func NewStack(t, h, w int) *Stack {
	return &Stack{T: t, H: h, W: w, Data: make([]float32, t*h*w)}
}

// NewStackFrom wraps existing data. The slice length must match the shape.
func NewStackFrom(data []float32, t, h, w int) (*Stack, error) {
	if len(data) != t*h*w {
		return nil, fmt.Errorf("stack data length %d does not match shape (%d, %d, %d)", len(data), t, h, w)
	}
	return &Stack{T: t, H: h, W: w, Data: data}, nil
}

// Frame returns the i-th frame as a subslice of the backing array.
func (s *Stack) Frame(i int) []float32 {
	size := s.H * s.W
	return s.Data[i*size : (i+1)*size]
}

// Features returns the flattened per-frame feature count (h*w).
func (s *Stack) Features() int {
	return s.H * s.W
}

// Clone returns a deep copy of the stack.
func (s *Stack) Clone() *Stack {
	out := NewStack(s.T, s.H, s.W)
	copy(out.Data, s.Data)
	return out
}

// Slice returns a view of frames [start, end) sharing the backing array.
func (s *Stack) Slice(start, end int) *Stack {
	size := s.H * s.W
	return &Stack{T: end - start, H: s.H, W: s.W, Data: s.Data[start*size : end*size]}
}

// Matrix flattens the stack into an n x d float64 matrix, one row per frame.
func (s *Stack) Matrix() *mat.Dense {
	d := s.Features()
	out := mat.NewDense(s.T, d, nil)
	for i := 0; i < s.T; i++ {
		frame := s.Frame(i)
		row := out.RawRowView(i)
		for j, v := range frame {
			row[j] = float64(v)
		}
	}
	return out
}

// ClipHeights zeroes every value outside [minHeight, maxHeight] in place.
func (s *Stack) ClipHeights(minHeight, maxHeight float32) {
	for i, v := range s.Data {
		if v < minHeight || v > maxHeight {
			s.Data[i] = 0
		}
	}
}

// Mask is a boolean tensor parallel to a Stack marking pixels considered
// invalid for missing-data PCA.
type Mask struct {
	T, H, W int
	Valid   []bool // true = pixel is masked (missing)
}

// MaskParams hold the thresholds used to derive a missing-pixel mask from a
// raw per-pixel mask channel (typically a log-likelihood image).
type MaskParams struct {
	MaskThreshold       float64 `json:"mask_threshold" yaml:"mask_threshold"`
	MaskHeightThreshold float64 `json:"mask_height_threshold" yaml:"mask_height_threshold"`
	MinHeight           float64 `json:"min_height" yaml:"min_height"`
	MaxHeight           float64 `json:"max_height" yaml:"max_height"`
}

// DeriveMask marks a pixel missing when its raw mask value falls below
// MaskThreshold while the corresponding depth value sits above
// MaskHeightThreshold. The raw slice must be parallel to the stack.
func DeriveMask(raw []float32, stack *Stack, p MaskParams) (*Mask, error) {
	if len(raw) != len(stack.Data) {
		return nil, fmt.Errorf("mask length %d does not match stack length %d", len(raw), len(stack.Data))
	}

	m := &Mask{T: stack.T, H: stack.H, W: stack.W, Valid: make([]bool, len(raw))}
	for i, v := range raw {
		m.Valid[i] = float64(v) < p.MaskThreshold && float64(stack.Data[i]) > p.MaskHeightThreshold
	}
	return m, nil
}

// ZeroMasked zeroes all masked pixels of the stack in place.
func ZeroMasked(stack *Stack, m *Mask) {
	for i, missing := range m.Valid {
		if missing {
			stack.Data[i] = 0
		}
	}
}

// MaskMatrix flattens the mask into an n x d boolean matrix laid out like
// Stack.Matrix.
func (m *Mask) MaskMatrix() [][]bool {
	size := m.H * m.W
	out := make([][]bool, m.T)
	for i := 0; i < m.T; i++ {
		out[i] = m.Valid[i*size : (i+1)*size]
	}
	return out
}
