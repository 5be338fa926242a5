package hubness

import "fmt"

// Algorithm selects the nearest-neighbor search backend.
type Algorithm string

const (
	AlgorithmAuto       Algorithm = "auto"
	AlgorithmBrute      Algorithm = "brute"
	AlgorithmKDTree     Algorithm = "kd_tree"
	AlgorithmBallTree   Algorithm = "ball_tree"
	AlgorithmHNSW       Algorithm = "hnsw"
	AlgorithmLSH        Algorithm = "lsh"
	AlgorithmFalconnLSH Algorithm = "falconn_lsh"
)

// ExactAlgorithms lists the backends that return exact neighbors.
var ExactAlgorithms = []Algorithm{AlgorithmAuto, AlgorithmBrute, AlgorithmKDTree, AlgorithmBallTree}

// ApproximateAlgorithms lists every approximate backend, whether or not it is
// available on the current platform.
var ApproximateAlgorithms = []Algorithm{AlgorithmHNSW, AlgorithmLSH, AlgorithmFalconnLSH}

// IsExact reports whether a is an exact search algorithm.
func (a Algorithm) IsExact() bool {
	switch a {
	case AlgorithmAuto, AlgorithmBrute, AlgorithmKDTree, AlgorithmBallTree:
		return true
	}
	return false
}

// IsApproximate reports whether a is an approximate search algorithm.
func (a Algorithm) IsApproximate() bool {
	switch a {
	case AlgorithmHNSW, AlgorithmLSH, AlgorithmFalconnLSH:
		return true
	}
	return false
}

// KDTreeValidMetric reports whether the metric supports KD-tree acceleration.
// KD-trees require metrics that decompose along coordinate axes.
func KDTreeValidMetric(m DistanceMetric) bool {
	switch m.(type) {
	case EuclideanMetric, SqEuclideanMetric, ManhattanMetric, ChebyshevMetric, MinkowskiMetric:
		return true
	default:
		return false
	}
}

// BallTreeValidMetric reports whether the metric supports ball tree
// acceleration. Ball trees need the triangle inequality; squared Euclidean
// is searched as Euclidean and squared afterwards.
func BallTreeValidMetric(m DistanceMetric) bool {
	switch m.(type) {
	case EuclideanMetric, SqEuclideanMetric, ManhattanMetric, ChebyshevMetric, MinkowskiMetric:
		return true
	default:
		return false
	}
}

// selectAlgorithm resolves AlgorithmAuto into a concrete exact algorithm
// based on the metric and data dimensionality, and validates that user-forced
// choices are compatible with the metric. A nil metric means precomputed
// distances, which only brute force can serve.
func selectAlgorithm(algo Algorithm, metric DistanceMetric, dims int) (Algorithm, error) {
	if metric == nil {
		if algo == AlgorithmAuto || algo == AlgorithmBrute {
			return AlgorithmBrute, nil
		}
		return "", fmt.Errorf("hubness: metric %q requires algorithm %q, got %q: %w",
			MetricPrecomputed, AlgorithmBrute, algo, ErrInvalidConfig)
	}

	if algo == AlgorithmAuto {
		if !BallTreeValidMetric(metric) {
			return AlgorithmBrute, nil
		}
		if KDTreeValidMetric(metric) && dims <= 60 {
			return AlgorithmKDTree, nil
		}
		return AlgorithmBallTree, nil
	}

	switch algo {
	case AlgorithmKDTree:
		if !KDTreeValidMetric(metric) {
			return "", fmt.Errorf("hubness: metric %T is not supported by %q: %w", metric, algo, ErrInvalidConfig)
		}
	case AlgorithmBallTree:
		if !BallTreeValidMetric(metric) {
			return "", fmt.Errorf("hubness: metric %T is not supported by %q: %w", metric, algo, ErrInvalidConfig)
		}
	}

	return algo, nil
}
