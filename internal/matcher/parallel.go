package matcher

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/IntroMatch/internal/features"
)

// minOffsetsPerWorker keeps tiny searches on one goroutine.
const minOffsetsPerWorker = 64

// MatchParallel computes the same Result as Match with the offset range split
// across workers (<= 0 means GOMAXPROCS). Distances are collected per offset
// and reduced left to right, so tie-breaking does not depend on scheduling.
func MatchParallel(target, pattern *features.Matrix, workers int) (Result, error) {
	ok, err := checkShapes(target, pattern)
	if err != nil || !ok {
		return noMatch(), err
	}

	offsets := target.Frames - pattern.Frames + 1
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if maxWorkers := (offsets + minOffsetsPerWorker - 1) / minOffsetsPerWorker; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers <= 1 {
		return Match(target, pattern)
	}

	dists := make([]float64, offsets)
	chunk := (offsets + workers - 1) / workers

	var g errgroup.Group
	for lo := 0; lo < offsets; lo += chunk {
		lo := lo
		hi := min(lo+chunk, offsets)
		g.Go(func() error {
			for s := lo; s < hi; s++ {
				dists[s] = distance(target, pattern, s)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return noMatch(), err
	}

	res := noMatch()
	for s, d := range dists {
		res.observe(s, d)
	}
	return res, nil
}
