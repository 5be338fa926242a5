package hubness

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// resolveJobs turns a user-facing worker count into a concrete one:
// -1 means all CPUs, 0 means sequential.
func resolveJobs(nJobs int) (int, error) {
	switch {
	case nJobs == -1:
		return runtime.NumCPU(), nil
	case nJobs == 0:
		return 1, nil
	case nJobs < -1:
		return 0, fmt.Errorf("hubness: NJobs must be -1, 0 or positive, got %d: %w", nJobs, ErrInvalidConfig)
	default:
		return nJobs, nil
	}
}

// parallelRows splits [0, n) into contiguous row ranges, one per worker, and
// calls fn on each range. Ranges don't overlap, so fn may write per-row
// results without synchronization. If numWorkers <= 1 it calls fn once on
// the whole range.
func parallelRows(n, numWorkers int, fn func(start, end int) error) error {
	if numWorkers <= 1 || n <= 1 {
		return fn(0, n)
	}

	var g errgroup.Group
	rowsPerWorker := (n + numWorkers - 1) / numWorkers

	for w := 0; w < numWorkers; w++ {
		startRow := w * rowsPerWorker
		if startRow >= n {
			break
		}
		endRow := min(startRow+rowsPerWorker, n)
		g.Go(func() error {
			return fn(startRow, endRow)
		})
	}

	return g.Wait()
}

// ComputeCrossDistancesParallel computes the same m*n matrix as
// ComputeCrossDistances using numWorkers goroutines over query rows. The
// result is bitwise identical to the sequential version.
func ComputeCrossDistancesParallel(query []float64, m int, ref []float64, n, dims int, metric DistanceMetric, numWorkers int) []float64 {
	if numWorkers <= 1 || m <= 1 {
		return ComputeCrossDistances(query, m, ref, n, dims, metric)
	}

	result := make([]float64, m*n)
	_ = parallelRows(m, numWorkers, func(start, end int) error {
		for i := start; i < end; i++ {
			q := query[i*dims : (i+1)*dims]
			for j := 0; j < n; j++ {
				result[i*n+j] = metric.Distance(q, ref[j*dims:(j+1)*dims])
			}
		}
		return nil
	})
	return result
}
