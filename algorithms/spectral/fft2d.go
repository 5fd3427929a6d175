package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT2D computes per-frame 2-D Fourier magnitude spectra.
// Replacing each frame by its shifted magnitude spectrum makes the
// downstream representation translation-invariant.
type FFT2D struct{}

// NewFFT2D creates a new 2-D FFT transformer
func NewFFT2D() *FFT2D {
	return &FFT2D{}
}

// Magnitude computes the magnitude of the 2-D FFT of a single (h, w) frame
// with the zero-frequency component shifted to the center, and writes the
// result back into the frame.
//
// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2.
func (f *FFT2D) Magnitude(frame []float32, h, w int) {
	rows := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		for x := 0; x < w; x++ {
			row[x] = float64(frame[y*w+x])
		}
		rows[y] = row
	}

	spectrum := fft.FFT2Real(rows)

	// fftshift: move the DC bin to (h/2, w/2)
	sy := h / 2
	sx := w / 2
	for y := 0; y < h; y++ {
		yy := (y + sy) % h
		for x := 0; x < w; x++ {
			xx := (x + sx) % w
			frame[yy*w+xx] = float32(cmplx.Abs(spectrum[y][x]))
		}
	}
}

// MagnitudeStack applies Magnitude to every frame of a (t, h, w) stack.
func (f *FFT2D) MagnitudeStack(stack []float32, t, h, w int) {
	for i := 0; i < t; i++ {
		f.Magnitude(stack[i*h*w:(i+1)*h*w], h, w)
	}
}
