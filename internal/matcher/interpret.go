package matcher

import "math"

// Score is the human-facing reading of a Result.
type Score struct {
	Matched           bool
	IntroStartSeconds float64 // NaN when !Matched or the sample rate is unknown
	Confidence        float64 // in [0, 1]
	Raw               float64 // best distance, lower is better
}

// Interpret converts a Result into seconds and a separation-based confidence.
// Confidence is 1 when there was no runner-up, otherwise how far the best
// distance sits below the second best, relative to the second best.
// A non-positive sampleRate keeps the match but leaves the start time NaN.
func Interpret(r Result, hop, sampleRate int) Score {
	if !r.Matched() {
		return Score{
			IntroStartSeconds: math.NaN(),
			Raw:               r.BestDistance,
		}
	}

	start := math.NaN()
	if sampleRate > 0 {
		start = float64(r.BestOffset) * float64(hop) / float64(sampleRate)
	}
	return Score{
		Matched:           true,
		IntroStartSeconds: start,
		Confidence:        confidence(r.BestDistance, r.SecondBestDistance),
		Raw:               r.BestDistance,
	}
}

func confidence(best, second float64) float64 {
	if math.IsInf(second, 1) {
		return 1
	}
	denom := second
	if denom == 0 {
		denom = 1
	}
	return clamp01((second - best) / denom)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// OutroStart returns max(0, duration - outro). ok is false when either value
// is unknown.
func OutroStart(durationS float64, outroDurationS *float64) (start float64, ok bool) {
	if outroDurationS == nil || !finite(durationS) || !finite(*outroDurationS) {
		return 0, false
	}
	return math.Max(0, durationS-*outroDurationS), true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
