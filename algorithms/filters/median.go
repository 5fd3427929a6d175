package filters

import "sort"

// Median filtering for depth-frame stacks. Kernel sizes must be odd;
// even sizes are rounded up. Boundaries are reflected, consistent with
// the Gaussian filters in this package.

func medianOf(buf []float64) float64 {
	sort.Float64s(buf)
	n := len(buf)
	if n%2 == 0 {
		return (buf[n/2-1] + buf[n/2]) / 2.0
	}
	return buf[n/2]
}

func oddKernel(k int) int {
	if k%2 == 0 {
		return k + 1
	}
	return k
}

// SpatialMedian applies a k x k median filter to every frame of a
// (t, h, w) stack in place. A kernel size below 2 is a no-op.
func SpatialMedian(stack []float32, t, h, w, kernel int) {
	if kernel < 2 {
		return
	}
	kernel = oddKernel(kernel)
	radius := kernel / 2

	src := make([]float32, h*w)
	buf := make([]float64, 0, kernel*kernel)

	for f := 0; f < t; f++ {
		frame := stack[f*h*w : (f+1)*h*w]
		copy(src, frame)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				buf = buf[:0]
				for dy := -radius; dy <= radius; dy++ {
					yy := reflectIndex(y+dy, h)
					for dx := -radius; dx <= radius; dx++ {
						xx := reflectIndex(x+dx, w)
						buf = append(buf, float64(src[yy*w+xx]))
					}
				}
				frame[y*w+x] = float32(medianOf(buf))
			}
		}
	}
}

// TemporalMedian applies a length-k median filter along the frame axis of a
// (t, h, w) stack in place. A kernel size below 2 is a no-op.
func TemporalMedian(stack []float32, t, h, w, kernel int) {
	if kernel < 2 || t < 2 {
		return
	}
	kernel = oddKernel(kernel)
	radius := kernel / 2
	size := h * w

	series := make([]float64, t)
	buf := make([]float64, 0, kernel)

	for p := 0; p < size; p++ {
		for f := 0; f < t; f++ {
			series[f] = float64(stack[f*size+p])
		}
		for f := 0; f < t; f++ {
			buf = buf[:0]
			for k := -radius; k <= radius; k++ {
				buf = append(buf, series[reflectIndex(f+k, t)])
			}
			stack[f*size+p] = float32(medianOf(buf))
		}
	}
}
