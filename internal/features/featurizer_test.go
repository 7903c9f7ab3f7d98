package features

import (
	"errors"
	"math"
	"testing"

	"github.com/himanishpuri/IntroMatch/internal/audio"
)

// rampExtractor returns [mean, first sample, frame index encoded in sample 0]
// so every frame has a distinct, predictable vector.
func rampExtractor(dims int) Extractor {
	return ExtractorFunc(func(frame []float32, cfg Config) ([]float64, error) {
		out := make([]float64, dims)
		for d := range out {
			out[d] = float64(frame[0]) * float64(d+1)
		}
		return out, nil
	})
}

func rampSignal(n int) *audio.Signal {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i) / float32(n)
	}
	return &audio.Signal{SampleRate: 16000, Samples: s}
}

func TestFrameCount(t *testing.T) {
	cfg := Config{FrameSize: 4, Hop: 2, Coefficients: 1}

	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: 3, want: 0},
		{n: 4, want: 1},
		{n: 5, want: 1},
		{n: 6, want: 2},
		{n: 10, want: 4},
	}

	for _, tt := range tests {
		if got := cfg.FrameCount(tt.n); got != tt.want {
			t.Errorf("FrameCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestFeaturizeShape(t *testing.T) {
	cfg := Config{FrameSize: 1024, Hop: 512, Coefficients: 3, MelBins: 40}
	sig := rampSignal(16000)

	m, fallbacks, err := Featurize(sig, cfg, rampExtractor(3))
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	if fallbacks != 0 {
		t.Errorf("Expected no fallbacks, got %d", fallbacks)
	}

	wantFrames := (16000-1024)/512 + 1
	if m.Frames != wantFrames {
		t.Errorf("Expected %d frames, got %d", wantFrames, m.Frames)
	}
	if m.Dims != 3 {
		t.Errorf("Expected 3 dims, got %d", m.Dims)
	}
	if !m.Valid() {
		t.Error("matrix violates len(Data) == Frames*Dims")
	}
}

func TestFeaturizeShortSignal(t *testing.T) {
	cfg := Config{FrameSize: 1024, Hop: 512, Coefficients: 13, MelBins: 40}

	m, _, err := Featurize(rampSignal(1023), cfg, rampExtractor(13))
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	if !m.Empty() {
		t.Errorf("Expected empty matrix, got %d frames", m.Frames)
	}
	if m.Dims != 13 || len(m.Data) != 0 {
		t.Errorf("Unexpected empty matrix shape: dims=%d len=%d", m.Dims, len(m.Data))
	}
}

func TestFeaturizeNormalizes(t *testing.T) {
	cfg := Config{FrameSize: 64, Hop: 32, Coefficients: 2, MelBins: 40}

	m, _, err := Featurize(rampSignal(4096), cfg, rampExtractor(2))
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}

	for d := 0; d < m.Dims; d++ {
		var sum, sq float64
		for i := 0; i < m.Frames; i++ {
			sum += float64(m.Data[i*m.Dims+d])
		}
		mean := sum / float64(m.Frames)
		for i := 0; i < m.Frames; i++ {
			v := float64(m.Data[i*m.Dims+d]) - mean
			sq += v * v
		}
		std := math.Sqrt(sq / float64(m.Frames-1))

		if math.Abs(mean) > 1e-5 {
			t.Errorf("dim %d: expected mean ~0, got %v", d, mean)
		}
		if math.Abs(std-1) > 1e-4 {
			t.Errorf("dim %d: expected std ~1, got %v", d, std)
		}
	}
}

func TestFeaturizeConstantDimensionIsCentredOnly(t *testing.T) {
	cfg := Config{FrameSize: 8, Hop: 8, Coefficients: 2, MelBins: 40}
	ex := ExtractorFunc(func(frame []float32, cfg Config) ([]float64, error) {
		return []float64{5, float64(frame[0])}, nil
	})

	m, _, err := Featurize(rampSignal(80), cfg, ex)
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	for i := 0; i < m.Frames; i++ {
		if v := m.Row(i)[0]; v != 0 {
			t.Errorf("frame %d: constant dimension should normalize to 0, got %v", i, v)
		}
	}
}

func TestFeaturizeSingleFrame(t *testing.T) {
	cfg := Config{FrameSize: 16, Hop: 8, Coefficients: 3, MelBins: 40}

	m, _, err := Featurize(rampSignal(20), cfg, rampExtractor(3))
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	if m.Frames != 1 {
		t.Fatalf("Expected 1 frame, got %d", m.Frames)
	}
	for d, v := range m.Row(0) {
		if v != 0 {
			t.Errorf("dim %d: single frame should normalize to 0, got %v", d, v)
		}
	}
}

func TestFeaturizeFallbacks(t *testing.T) {
	cfg := Config{FrameSize: 4, Hop: 4, Coefficients: 3, MelBins: 40}
	calls := 0
	ex := ExtractorFunc(func(frame []float32, cfg Config) ([]float64, error) {
		calls++
		switch calls {
		case 2:
			return nil, errors.New("boom")
		case 3:
			return []float64{1}, nil // short
		}
		return []float64{1, 2, 3, 4}, nil // extra values ignored
	})

	m, fallbacks, err := Featurize(rampSignal(16), cfg, ex)
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	if m.Frames != 4 {
		t.Fatalf("Expected 4 frames, got %d", m.Frames)
	}
	if fallbacks != 2 {
		t.Errorf("Expected 2 fallbacks, got %d", fallbacks)
	}
	// Frames 0 and 3 agree, frames 1 and 2 were zero vectors.
	for d := 0; d < 3; d++ {
		if m.Row(0)[d] != m.Row(3)[d] {
			t.Errorf("dim %d: frames 0 and 3 should match", d)
		}
		if m.Row(1)[d] != m.Row(2)[d] {
			t.Errorf("dim %d: zero frames 1 and 2 should match", d)
		}
		if m.Row(0)[d] <= m.Row(1)[d] {
			t.Errorf("dim %d: extracted frame should sit above zero frame", d)
		}
	}
}

func TestFeaturizeDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	sig := sineSignal(440, 16000, 16000)
	ex := NewMFCC()

	a, _, err := Featurize(sig, cfg, ex)
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	b, _, err := Featurize(sig, cfg, NewMFCC())
	if err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	if len(a.Data) != len(b.Data) {
		t.Fatalf("length mismatch %d vs %d", len(a.Data), len(b.Data))
	}
	for i := range a.Data {
		if math.Float32bits(a.Data[i]) != math.Float32bits(b.Data[i]) {
			t.Fatalf("value %d differs: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestFeaturizeInvalidConfig(t *testing.T) {
	sig := rampSignal(100)
	ex := rampExtractor(1)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero frame", cfg: Config{FrameSize: 0, Hop: 1, Coefficients: 1}},
		{name: "zero hop", cfg: Config{FrameSize: 8, Hop: 0, Coefficients: 1}},
		{name: "hop over frame", cfg: Config{FrameSize: 8, Hop: 9, Coefficients: 1}},
		{name: "no coefficients", cfg: Config{FrameSize: 8, Hop: 4, Coefficients: 0}},
		{name: "no mel bins", cfg: Config{FrameSize: 8, Hop: 4, Coefficients: 1}},
		{name: "more coefficients than mel bins", cfg: Config{FrameSize: 1024, Hop: 512, Coefficients: 13, MelBins: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Featurize(sig, tt.cfg, ex)
			if !IsInvalidConfig(err) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, _, err := Featurize(nil, DefaultConfig(), ex); !IsInvalidConfig(err) {
		t.Errorf("nil signal: expected ErrInvalidConfig, got %v", err)
	}
	if _, _, err := Featurize(sig, DefaultConfig(), nil); !IsInvalidConfig(err) {
		t.Errorf("nil extractor: expected ErrInvalidConfig, got %v", err)
	}
}

func TestFeaturizePassesSignalRate(t *testing.T) {
	cfg := Config{SampleRate: 44100, FrameSize: 4, Hop: 4, Coefficients: 1, MelBins: 40}
	var seen int
	ex := ExtractorFunc(func(frame []float32, c Config) ([]float64, error) {
		seen = c.SampleRate
		return []float64{0}, nil
	})

	sig := &audio.Signal{SampleRate: 8000, Samples: make([]float32, 8)}
	if _, _, err := Featurize(sig, cfg, ex); err != nil {
		t.Fatalf("Featurize failed: %v", err)
	}
	if seen != 8000 {
		t.Errorf("Expected extractor to see 8000 Hz, got %d", seen)
	}
}
