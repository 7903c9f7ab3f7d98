package features

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// logFloor keeps log() finite on silent bands.
const logFloor = 1e-10

// MFCC is the default Extractor: Hann window, power spectrum, triangular mel
// filterbank over [0, sr/2], natural log and an orthonormal DCT-II.
// Filterbanks are built once per (rate, frame, bins, coefficients) and cached,
// so one MFCC value can be shared between goroutines.
type MFCC struct {
	mu    sync.Mutex
	banks map[bankKey]*melBank
}

type bankKey struct {
	sampleRate   int
	frameSize    int
	melBins      int
	coefficients int
}

type melBank struct {
	window  []float64
	filters [][]float64
	dct     [][]float64
}

func NewMFCC() *MFCC {
	return &MFCC{banks: make(map[bankKey]*melBank)}
}

func (m *MFCC) Extract(frame []float32, cfg Config) ([]float64, error) {
	if len(frame) != cfg.FrameSize {
		return nil, fmt.Errorf("frame has %d samples, want %d", len(frame), cfg.FrameSize)
	}
	bank, err := m.bank(cfg)
	if err != nil {
		return nil, err
	}

	power := PowerSpectrum(frame, bank.window)

	logMel := make([]float64, len(bank.filters))
	for i, f := range bank.filters {
		e := floats.Dot(power, f)
		if e < logFloor {
			e = logFloor
		}
		logMel[i] = math.Log(e)
	}

	out := make([]float64, cfg.Coefficients)
	for k, row := range bank.dct {
		out[k] = floats.Dot(logMel, row)
	}
	return out, nil
}

func (m *MFCC) bank(cfg Config) (*melBank, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.MelBins <= 0 {
		return nil, fmt.Errorf("mel bins must be positive, got %d", cfg.MelBins)
	}
	if cfg.Coefficients > cfg.MelBins {
		return nil, fmt.Errorf("%d coefficients requested from %d mel bins", cfg.Coefficients, cfg.MelBins)
	}

	key := bankKey{cfg.SampleRate, cfg.FrameSize, cfg.MelBins, cfg.Coefficients}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.banks == nil {
		m.banks = make(map[bankKey]*melBank)
	}
	if b, ok := m.banks[key]; ok {
		return b, nil
	}

	b := &melBank{
		window:  Hann(cfg.FrameSize),
		filters: melFilterBank(cfg.MelBins, cfg.FrameSize, cfg.SampleRate),
		dct:     dctMatrix(cfg.Coefficients, cfg.MelBins),
	}
	m.banks[key] = b
	return b, nil
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilterBank builds numFilters triangular filters spaced evenly on the
// mel scale between 0 Hz and Nyquist, each spanning fftSize/2+1 bins.
func melFilterBank(numFilters, fftSize, sampleRate int) [][]float64 {
	bins := fftSize/2 + 1
	lowMel := hzToMel(0)
	highMel := hzToMel(float64(sampleRate) / 2)
	step := (highMel - lowMel) / float64(numFilters+1)

	points := make([]int, numFilters+2)
	for i := range points {
		hz := melToHz(lowMel + float64(i)*step)
		p := int(math.Floor(float64(fftSize+1) * hz / float64(sampleRate)))
		points[i] = min(p, fftSize/2)
	}

	bank := make([][]float64, numFilters)
	for m := 1; m <= numFilters; m++ {
		f := make([]float64, bins)
		left, center, right := points[m-1], points[m], points[m+1]
		for k := left; k < center; k++ {
			f[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right; k++ {
			f[k] = float64(right-k) / float64(right-center)
		}
		if left == center && center == right {
			// degenerate band on tiny frames
			f[center] = 1
		}
		bank[m-1] = f
	}
	return bank
}

// dctMatrix returns the first k rows of an orthonormal DCT-II of size n.
func dctMatrix(k, n int) [][]float64 {
	rows := make([][]float64, k)
	for i := 0; i < k; i++ {
		scale := math.Sqrt(2 / float64(n))
		if i == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			row[j] = scale * math.Cos(math.Pi*float64(i)*(float64(j)+0.5)/float64(n))
		}
		rows[i] = row
	}
	return rows
}
