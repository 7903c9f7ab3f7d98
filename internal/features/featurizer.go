package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/IntroMatch/internal/audio"
)

// stdFloor is the smallest standard deviation used as a divisor; flatter
// dimensions are only mean-centred.
const stdFloor = 1e-6

// Extractor computes a spectral feature vector for one frame.
// Implementations must be deterministic.
type Extractor interface {
	Extract(frame []float32, cfg Config) ([]float64, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(frame []float32, cfg Config) ([]float64, error)

func (f ExtractorFunc) Extract(frame []float32, cfg Config) ([]float64, error) {
	return f(frame, cfg)
}

// Featurize cuts sig into overlapping frames, runs ex on each and z-scores
// every dimension across frames. A frame whose extraction fails or comes
// back short is replaced by zeros; the number of such frames is returned.
// Signals shorter than one frame produce an empty matrix and no error.
func Featurize(sig *audio.Signal, cfg Config, ex Extractor) (*Matrix, int, error) {
	if sig == nil {
		return nil, 0, fmt.Errorf("%w: nil signal", ErrInvalidConfig)
	}
	if ex == nil {
		return nil, 0, fmt.Errorf("%w: nil extractor", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, 0, err
	}
	cfg.SampleRate = sig.SampleRate

	dims := cfg.Coefficients
	frames := cfg.FrameCount(len(sig.Samples))
	m := NewMatrix(frames, dims)
	if frames == 0 {
		return m, 0, nil
	}

	fallbacks := 0
	for i := 0; i < frames; i++ {
		start := i * cfg.Hop
		frame := sig.Samples[start : start+cfg.FrameSize]

		vec, err := ex.Extract(frame, cfg)
		if err != nil || len(vec) < dims {
			// row already zeroed
			fallbacks++
			continue
		}
		row := m.Row(i)
		for d := 0; d < dims; d++ {
			row[d] = float32(vec[d])
		}
	}

	normalize(m)
	return m, fallbacks, nil
}

// normalize applies a per-dimension z-score in place. The deviation uses an
// n-1 denominator (n for a single frame) and falls back to 1 below stdFloor.
func normalize(m *Matrix) {
	if m.Empty() {
		return
	}
	col := make([]float64, m.Frames)
	for d := 0; d < m.Dims; d++ {
		for i := 0; i < m.Frames; i++ {
			col[i] = float64(m.Data[i*m.Dims+d])
		}

		mean, std := columnStats(col)
		if std < stdFloor || math.IsNaN(std) {
			std = 1
		}

		for i := 0; i < m.Frames; i++ {
			m.Data[i*m.Dims+d] = float32((col[i] - mean) / std)
		}
	}
}

func columnStats(col []float64) (mean, std float64) {
	if len(col) == 1 {
		return col[0], 0
	}
	mean, variance := stat.MeanVariance(col, nil)
	return mean, math.Sqrt(variance)
}

// IsInvalidConfig reports whether err came from config validation.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
