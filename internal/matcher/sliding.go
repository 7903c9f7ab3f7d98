package matcher

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/IntroMatch/internal/features"
)

// NoMatch is the BestOffset reported when the target is shorter than the
// pattern.
const NoMatch = -1

var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// Result is the outcome of sliding a pattern across a target.
// Distances are mean squared errors over every cell of the pattern.
type Result struct {
	BestOffset         int
	BestDistance       float64
	SecondBestDistance float64
}

// Matched reports whether any alignment was evaluated.
func (r Result) Matched() bool {
	return r.BestOffset != NoMatch
}

func noMatch() Result {
	return Result{
		BestOffset:         NoMatch,
		BestDistance:       math.Inf(1),
		SecondBestDistance: math.Inf(1),
	}
}

func checkShapes(target, pattern *features.Matrix) (bool, error) {
	if target == nil || pattern == nil {
		return false, fmt.Errorf("%w: nil matrix", ErrDimensionMismatch)
	}
	if !target.Valid() || !pattern.Valid() {
		return false, fmt.Errorf("%w: data length does not match frames x dims", ErrDimensionMismatch)
	}
	if target.Dims != pattern.Dims {
		return false, fmt.Errorf("%w: target has %d, pattern has %d", ErrDimensionMismatch, target.Dims, pattern.Dims)
	}
	if pattern.Frames == 0 || target.Frames < pattern.Frames {
		return false, nil
	}
	return true, nil
}

// Match evaluates every offset s in [0, Lt-Lp] and returns the smallest
// distance, its offset and the second smallest distance value. Updates use
// strict less-than, so the leftmost offset wins ties.
func Match(target, pattern *features.Matrix) (Result, error) {
	ok, err := checkShapes(target, pattern)
	if err != nil || !ok {
		return noMatch(), err
	}

	res := noMatch()
	last := target.Frames - pattern.Frames
	for s := 0; s <= last; s++ {
		res.observe(s, distance(target, pattern, s))
	}
	return res, nil
}

// observe folds one offset's distance into the running best and runner-up.
func (r *Result) observe(offset int, d float64) {
	if d < r.BestDistance {
		r.SecondBestDistance = r.BestDistance
		r.BestDistance = d
		r.BestOffset = offset
	} else if d < r.SecondBestDistance {
		r.SecondBestDistance = d
	}
}

// distance is the MSE between pattern and the target window at offset s.
func distance(target, pattern *features.Matrix, s int) float64 {
	n := len(pattern.Data)
	window := target.Data[s*target.Dims : s*target.Dims+n]
	var sum float64
	for i, p := range pattern.Data {
		d := float64(window[i]) - float64(p)
		sum += d * d
	}
	return sum / float64(n)
}
