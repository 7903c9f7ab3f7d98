package features

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Hann returns a symmetric Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// PowerSpectrum windows frame and returns |X[k]|^2 for k in [0, n/2].
func PowerSpectrum(frame []float32, window []float64) []float64 {
	n := len(frame)
	buf := make([]float64, n)
	for i, s := range frame {
		buf[i] = float64(s) * window[i]
	}

	spec := fft.FFTReal(buf)
	power := make([]float64, n/2+1)
	for k := range power {
		re, im := real(spec[k]), imag(spec[k])
		power[k] = re*re + im*im
	}
	return power
}
