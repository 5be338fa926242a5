package hubness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DisSimLocal rescales d(i,j) by subtracting the distances of i and j to
// their local centroids, the means of their k nearest reference points:
// dsl(i,j) = D(i,j) - D(i, c_i) - D(j, c_j) with D the squared Euclidean
// distance. Results are shifted so the smallest value of a transform is zero
// when any is negative. Without squared the square roots of the shifted values
// are returned, which keeps the neighbor order.
//
// DisSimLocal works on feature vectors and is not available for
// precomputed distances.
//
// Reference: "Flattening the density gradient for eliminating spatial
// centrality to reduce hubness" (Hara et al., AAAI 2016)
type DisSimLocal struct {
	k       int
	squared bool

	train    *mat.Dense
	centDist []float64 // squared distance of each reference point to its centroid
}

func newDisSimLocal(params HubnessParams) (*DisSimLocal, error) {
	if err := params.validateKeys(HubnessDisSimLocal, "k", "squared"); err != nil {
		return nil, err
	}
	k, err := params.intParam("k", 5)
	if err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("hubness: dsl k must be >= 1, got %d: %w", k, ErrInvalidConfig)
	}
	squared, err := params.boolParam("squared", true)
	if err != nil {
		return nil, err
	}
	return &DisSimLocal{k: k, squared: squared}, nil
}

// Squared reports whether squared values are returned.
func (r *DisSimLocal) Squared() bool { return r.squared }

// Fit stores the reference vectors and their centroid distances.
func (r *DisSimLocal) Fit(graph *NeighborGraph, X *mat.Dense) error {
	if X == nil {
		return fmt.Errorf("hubness: %q needs feature vectors and cannot use %q distances: %w",
			HubnessDisSimLocal, MetricPrecomputed, ErrInvalidConfig)
	}
	if err := checkGraphK(graph, r.k, HubnessDisSimLocal); err != nil {
		return err
	}
	if rows, _ := X.Dims(); rows != graph.Len() {
		return fmt.Errorf("hubness: graph has %d rows, feature matrix %d: %w", graph.Len(), rows, ErrDimensionMismatch)
	}

	r.train = mat.DenseCopyOf(X)
	r.centDist = r.centroidDistances(graph, r.train)
	return nil
}

// Transform computes dsl(i,j) for every entry of graph. X may be nil for a
// self transform.
func (r *DisSimLocal) Transform(graph *NeighborGraph, X *mat.Dense, self bool) (*NeighborGraph, error) {
	if r.train == nil {
		return nil, notFitted(HubnessDisSimLocal)
	}
	if err := checkGraphK(graph, r.k, HubnessDisSimLocal); err != nil {
		return nil, err
	}

	queryCent := r.centDist
	switch {
	case self:
		if err := checkSelf(graph, len(r.centDist)); err != nil {
			return nil, err
		}
		X = r.train
	case X == nil:
		return nil, fmt.Errorf("hubness: %q needs the query feature vectors: %w", HubnessDisSimLocal, ErrInvalidInput)
	default:
		if rows, _ := X.Dims(); rows != graph.Len() {
			return nil, fmt.Errorf("hubness: graph has %d rows, feature matrix %d: %w", graph.Len(), rows, ErrDimensionMismatch)
		}
		queryCent = r.centroidDistances(graph, X)
	}

	out := rescaled(graph)
	minVal := 0.0
	for i, row := range graph.Indices {
		x := X.RawRowView(i)
		for c, j := range row {
			v := sqDist(x, r.train.RawRowView(j)) - queryCent[i] - r.centDist[j]
			out.Distances[i][c] = v
			minVal = min(minVal, v)
		}
	}

	for _, row := range out.Distances {
		if minVal < 0 {
			floats.AddConst(-minVal, row)
		}
		if !r.squared {
			for c, v := range row {
				row[c] = math.Sqrt(v)
			}
		}
	}
	return out, nil
}

// centroidDistances returns, for every row i of graph, the squared distance from
// X[i] to the mean of its first k reference neighbors.
func (r *DisSimLocal) centroidDistances(graph *NeighborGraph, X *mat.Dense) []float64 {
	_, dims := r.train.Dims()
	out := make([]float64, graph.Len())
	centroid := make([]float64, dims)
	for i, row := range graph.Indices {
		for d := range centroid {
			centroid[d] = 0
		}
		for _, j := range row[:r.k] {
			floats.Add(centroid, r.train.RawRowView(j))
		}
		floats.Scale(1/float64(r.k), centroid)
		out[i] = sqDist(X.RawRowView(i), centroid)
	}
	return out
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
