package filters

import "math"

// Grayscale morphology used by the tail filter: a morphological opening
// (erosion followed by dilation) with an ellipse or rectangle structuring
// element suppresses thin appendage artifacts such as the animal's tail.

// StrelShape selects the structuring element geometry.
type StrelShape string

const (
	StrelEllipse   StrelShape = "ellipse"
	StrelRectangle StrelShape = "rectangle"
)

// Strel is a flat (binary) structuring element.
type Strel struct {
	W, H int
	Mask []bool // row-major, len = W*H
}

// NewStrel builds a structuring element of the given shape and size.
// Unknown shapes fall back to a rectangle.
func NewStrel(shape StrelShape, w, h int) Strel {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	s := Strel{W: w, H: h, Mask: make([]bool, w*h)}

	switch shape {
	case StrelEllipse:
		// Inscribed ellipse: include (x, y) when the normalized distance
		// from the center is at most one.
		cx := float64(w-1) / 2.0
		cy := float64(h-1) / 2.0
		rx := math.Max(float64(w)/2.0, 0.5)
		ry := math.Max(float64(h)/2.0, 0.5)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dx := (float64(x) - cx) / rx
				dy := (float64(y) - cy) / ry
				if dx*dx+dy*dy <= 1.0 {
					s.Mask[y*w+x] = true
				}
			}
		}
	default:
		for i := range s.Mask {
			s.Mask[i] = true
		}
	}

	return s
}

// Empty reports whether the element has no active pixels, which makes the
// tail filter a no-op.
func (s Strel) Empty() bool {
	for _, m := range s.Mask {
		if m {
			return false
		}
	}
	return true
}

func erodeFrame(dst, src []float32, h, w int, s Strel) {
	ry := s.H / 2
	rx := s.W / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := float32(math.MaxFloat32)
			for sy := 0; sy < s.H; sy++ {
				for sx := 0; sx < s.W; sx++ {
					if !s.Mask[sy*s.W+sx] {
						continue
					}
					yy := reflectIndex(y+sy-ry, h)
					xx := reflectIndex(x+sx-rx, w)
					if v := src[yy*w+xx]; v < m {
						m = v
					}
				}
			}
			dst[y*w+x] = m
		}
	}
}

func dilateFrame(dst, src []float32, h, w int, s Strel) {
	ry := s.H / 2
	rx := s.W / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := float32(-math.MaxFloat32)
			for sy := 0; sy < s.H; sy++ {
				for sx := 0; sx < s.W; sx++ {
					if !s.Mask[sy*s.W+sx] {
						continue
					}
					yy := reflectIndex(y+sy-ry, h)
					xx := reflectIndex(x+sx-rx, w)
					if v := src[yy*w+xx]; v > m {
						m = v
					}
				}
			}
			dst[y*w+x] = m
		}
	}
}

// Open applies a grayscale morphological opening to every frame of a
// (t, h, w) stack in place.
func Open(stack []float32, t, h, w int, s Strel) {
	if s.Empty() || (s.W == 1 && s.H == 1) {
		return
	}

	tmp := make([]float32, h*w)
	for f := 0; f < t; f++ {
		frame := stack[f*h*w : (f+1)*h*w]
		erodeFrame(tmp, frame, h, w, s)
		dilateFrame(frame, tmp, h, w, s)
	}
}
