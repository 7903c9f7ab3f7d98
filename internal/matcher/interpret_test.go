package matcher

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestInterpretConfidence(t *testing.T) {
	inf := math.Inf(1)

	tests := []struct {
		name   string
		best   float64
		second float64
		want   float64
	}{
		{name: "no runner-up", best: 0.3, second: inf, want: 1},
		{name: "perfect separation", best: 0, second: 2, want: 1},
		{name: "half", best: 1, second: 2, want: 0.5},
		{name: "tie", best: 2, second: 2, want: 0},
		{name: "zero runner-up", best: 0, second: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Interpret(Result{BestOffset: 0, BestDistance: tt.best, SecondBestDistance: tt.second}, 512, 16000)
			if math.Abs(s.Confidence-tt.want) > 1e-12 {
				t.Errorf("Expected confidence %v, got %v", tt.want, s.Confidence)
			}
			if s.Confidence < 0 || s.Confidence > 1 {
				t.Errorf("confidence out of range: %v", s.Confidence)
			}
			if s.Raw != tt.best {
				t.Errorf("Expected raw %v, got %v", tt.best, s.Raw)
			}
		})
	}
}

func TestInterpretIntroStart(t *testing.T) {
	s := Interpret(Result{BestOffset: 100, BestDistance: 0.1, SecondBestDistance: 0.5}, 512, 16000)
	if !s.Matched {
		t.Fatal("Expected matched score")
	}
	if s.IntroStartSeconds != 3.2 {
		t.Errorf("Expected 3.2s, got %v", s.IntroStartSeconds)
	}
}

func TestInterpretUnknownSampleRate(t *testing.T) {
	r := Result{BestOffset: 100, BestDistance: 1, SecondBestDistance: 4}
	for _, rate := range []int{0, -16000} {
		s := Interpret(r, 512, rate)
		if !s.Matched {
			t.Errorf("rate %d: expected the match to survive", rate)
		}
		if !math.IsNaN(s.IntroStartSeconds) {
			t.Errorf("rate %d: expected NaN intro start, got %v", rate, s.IntroStartSeconds)
		}
		if s.Confidence != 0.75 {
			t.Errorf("rate %d: expected confidence 0.75, got %v", rate, s.Confidence)
		}
	}
}

func TestOutroStart(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		outro    *float64
		want     float64
		ok       bool
	}{
		{name: "regular", duration: 1800, outro: ptr(45), want: 1755, ok: true},
		{name: "clamped", duration: 30, outro: ptr(45), want: 0, ok: true},
		{name: "no outro", duration: 1800, outro: nil, ok: false},
		{name: "unknown duration", duration: math.NaN(), outro: ptr(45), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OutroStart(tt.duration, tt.outro)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
