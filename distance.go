package hubness

import (
	"fmt"
	"math"
	"strings"

	"github.com/viterin/vek"
)

// MetricPrecomputed marks input matrices as distance matrices rather than
// feature matrices.
const MetricPrecomputed = "precomputed"

// DistanceMetric provides distance computation with optional reduced distance
// for tree-pruning optimizations (e.g., squared Euclidean skips sqrt).
type DistanceMetric interface {
	Distance(a, b []float64) float64
	ReducedDistance(a, b []float64) float64
	// DistToRdist converts a true distance into reduced-distance space.
	DistToRdist(d float64) float64
}

// DistanceFunc adapts a plain function into a DistanceMetric.
// ReducedDistance delegates to the same function.
type DistanceFunc func(a, b []float64) float64

func (f DistanceFunc) Distance(a, b []float64) float64        { return f(a, b) }
func (f DistanceFunc) ReducedDistance(a, b []float64) float64 { return f(a, b) }
func (f DistanceFunc) DistToRdist(d float64) float64          { return d }

// EuclideanMetric computes the Euclidean (L2) distance.
// ReducedDistance returns squared Euclidean distance (skips sqrt).
type EuclideanMetric struct{}

func (EuclideanMetric) Distance(a, b []float64) float64 {
	return math.Sqrt(euclideanSumOfSquares(a, b))
}

func (EuclideanMetric) ReducedDistance(a, b []float64) float64 {
	return euclideanSumOfSquares(a, b)
}

func (EuclideanMetric) DistToRdist(d float64) float64 { return d * d }

// SqEuclideanMetric computes the squared Euclidean distance. It is not a true
// metric, so tree backends search with EuclideanMetric and square the result.
type SqEuclideanMetric struct{}

func (SqEuclideanMetric) Distance(a, b []float64) float64 {
	return euclideanSumOfSquares(a, b)
}

func (SqEuclideanMetric) ReducedDistance(a, b []float64) float64 {
	return euclideanSumOfSquares(a, b)
}

func (SqEuclideanMetric) DistToRdist(d float64) float64 { return d }

func euclideanSumOfSquares(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// ManhattanMetric computes the Manhattan (L1 / city-block) distance.
type ManhattanMetric struct{}

func (ManhattanMetric) Distance(a, b []float64) float64 {
	return vek.ManhattanDistance(a, b)
}

func (m ManhattanMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }
func (ManhattanMetric) DistToRdist(d float64) float64            { return d }

// CosineMetric computes the cosine distance: 1 - cosine_similarity.
// A zero vector is at distance 1 from everything.
type CosineMetric struct{}

func (CosineMetric) Distance(a, b []float64) float64 {
	normA := vek.Norm(a)
	normB := vek.Norm(b)
	if normA == 0 || normB == 0 {
		return 1.0
	}
	d := 1.0 - vek.Dot(a, b)/(normA*normB)
	if d < 0 {
		return 0
	}
	return d
}

func (m CosineMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }
func (CosineMetric) DistToRdist(d float64) float64            { return d }

// ChebyshevMetric computes the Chebyshev (L-infinity) distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Distance(a, b []float64) float64 {
	var maxVal float64
	for i := range a {
		if v := math.Abs(a[i] - b[i]); v > maxVal {
			maxVal = v
		}
	}
	return maxVal
}

func (m ChebyshevMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }
func (ChebyshevMetric) DistToRdist(d float64) float64            { return d }

// MinkowskiMetric computes the Minkowski distance parameterized by P.
// P must be >= 1. Panics if P < 1.
// ReducedDistance returns sum(|a[i]-b[i]|^P) without the final root.
type MinkowskiMetric struct {
	P float64
}

func (m MinkowskiMetric) Distance(a, b []float64) float64 {
	return math.Pow(m.rawSum(a, b), 1.0/m.P)
}

func (m MinkowskiMetric) ReducedDistance(a, b []float64) float64 {
	return m.rawSum(a, b)
}

func (m MinkowskiMetric) DistToRdist(d float64) float64 { return math.Pow(d, m.P) }

func (m MinkowskiMetric) rawSum(a, b []float64) float64 {
	if m.P < 1 {
		panic("MinkowskiMetric: P must be >= 1")
	}
	var sum float64
	for i := range a {
		sum += math.Pow(math.Abs(a[i]-b[i]), m.P)
	}
	return sum
}

// MetricByName resolves a metric name into a DistanceMetric. p is only used
// by "minkowski" (0 means 2). Returns (nil, nil) for "precomputed".
func MetricByName(name string, p float64) (DistanceMetric, error) {
	switch strings.ToLower(name) {
	case "euclidean", "l2":
		return EuclideanMetric{}, nil
	case "sqeuclidean":
		return SqEuclideanMetric{}, nil
	case "manhattan", "cityblock", "l1":
		return ManhattanMetric{}, nil
	case "chebyshev", "infinity":
		return ChebyshevMetric{}, nil
	case "cosine":
		return CosineMetric{}, nil
	case "minkowski":
		if p == 0 {
			p = 2
		}
		if p < 1 {
			return nil, fmt.Errorf("hubness: minkowski P must be >= 1, got %g: %w", p, ErrInvalidConfig)
		}
		switch p {
		case 1:
			return ManhattanMetric{}, nil
		case 2:
			return EuclideanMetric{}, nil
		}
		return MinkowskiMetric{P: p}, nil
	case MetricPrecomputed:
		return nil, nil
	default:
		return nil, fmt.Errorf("hubness: unknown metric %q: %w", name, ErrInvalidConfig)
	}
}

// ComputeCrossDistances computes the m*n distance matrix between the rows of
// query (m rows) and ref (n rows), both flat row-major with dims columns.
// Returns flat []float64 of length m*n.
func ComputeCrossDistances(query []float64, m int, ref []float64, n, dims int, metric DistanceMetric) []float64 {
	result := make([]float64, m*n)

	for i := 0; i < m; i++ {
		q := query[i*dims : (i+1)*dims]
		for j := 0; j < n; j++ {
			result[i*n+j] = metric.Distance(q, ref[j*dims:(j+1)*dims])
		}
	}

	return result
}
