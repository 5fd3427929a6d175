package filters

import "math"

// Gaussian smoothing for depth-frame stacks. Spatial filtering runs
// per frame with a separable kernel; temporal filtering runs along the
// frame axis per pixel. All variants use reflected boundaries so that
// chunked execution with a reflected overlap region reproduces the
// whole-stack result.

// GaussianKernel1D builds a normalized 1-D Gaussian kernel for the given
// standard deviation. The kernel radius is ceil(4*sigma), matching the
// common truncation at four standard deviations.
func GaussianKernel1D(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1.0}
	}

	radius := int(4.0*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2.0 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	return kernel
}

// reflectIndex maps an out-of-range index back into [0, n) by reflection
// about the array edges (the "reflect" boundary mode: d c b a | a b c d).
func reflectIndex(i, n int) int {
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

// SmoothGaussian1D smooths a 1-D series with a Gaussian of the given
// standard deviation using reflected boundaries. A non-positive sigma
// returns a copy of the input.
func SmoothGaussian1D(x []float64, sigma float64) []float64 {
	out := make([]float64, len(x))
	if sigma <= 0 {
		copy(out, x)
		return out
	}

	kernel := GaussianKernel1D(sigma)
	radius := len(kernel) / 2
	n := len(x)

	for i := 0; i < n; i++ {
		acc := 0.0
		for k := -radius; k <= radius; k++ {
			acc += kernel[k+radius] * x[reflectIndex(i+k, n)]
		}
		out[i] = acc
	}

	return out
}

// SpatialGaussian smooths every frame of a (t, h, w) stack in place with a
// separable 2-D Gaussian. sigmaX applies along rows (width), sigmaY along
// columns (height).
func SpatialGaussian(stack []float32, t, h, w int, sigmaX, sigmaY float64) {
	if sigmaX <= 0 && sigmaY <= 0 {
		return
	}

	kx := GaussianKernel1D(sigmaX)
	ky := GaussianKernel1D(sigmaY)
	rx := len(kx) / 2
	ry := len(ky) / 2

	row := make([]float64, w)
	col := make([]float64, h)

	for f := 0; f < t; f++ {
		frame := stack[f*h*w : (f+1)*h*w]

		if sigmaX > 0 {
			for y := 0; y < h; y++ {
				base := y * w
				for x := 0; x < w; x++ {
					row[x] = float64(frame[base+x])
				}
				for x := 0; x < w; x++ {
					acc := 0.0
					for k := -rx; k <= rx; k++ {
						acc += kx[k+rx] * row[reflectIndex(x+k, w)]
					}
					frame[base+x] = float32(acc)
				}
			}
		}

		if sigmaY > 0 {
			for x := 0; x < w; x++ {
				for y := 0; y < h; y++ {
					col[y] = float64(frame[y*w+x])
				}
				for y := 0; y < h; y++ {
					acc := 0.0
					for k := -ry; k <= ry; k++ {
						acc += ky[k+ry] * col[reflectIndex(y+k, h)]
					}
					frame[y*w+x] = float32(acc)
				}
			}
		}
	}
}

// TemporalGaussian smooths a (t, h, w) stack in place along the frame axis
// with a Gaussian of the given standard deviation.
func TemporalGaussian(stack []float32, t, h, w int, sigma float64) {
	if sigma <= 0 || t < 2 {
		return
	}

	kernel := GaussianKernel1D(sigma)
	radius := len(kernel) / 2
	series := make([]float64, t)
	size := h * w

	for p := 0; p < size; p++ {
		for f := 0; f < t; f++ {
			series[f] = float64(stack[f*size+p])
		}
		for f := 0; f < t; f++ {
			acc := 0.0
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * series[reflectIndex(f+k, t)]
			}
			stack[f*size+p] = float32(acc)
		}
	}
}
