package hubness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LocalScaling rescales d(i,j) by local neighborhood radii r_i and r_j.
//
// Method "standard": r is the distance to the k-th neighbor and
// ls(i,j) = 1 - exp(-d² / (r_i * r_j)).
// Method "nicdm": r is the mean distance to the first k neighbors and
// ls(i,j) = d / sqrt(r_i * r_j).
type LocalScaling struct {
	method string
	k      int
	radius []float64
}

func newLocalScaling(params HubnessParams) (*LocalScaling, error) {
	if err := params.validateKeys(HubnessLocalScaling, "method", "k"); err != nil {
		return nil, err
	}
	method, err := params.stringParam("method", "standard")
	if err != nil {
		return nil, err
	}
	if method != "standard" && method != "nicdm" {
		return nil, fmt.Errorf("hubness: local scaling method must be \"standard\" or \"nicdm\", got %q: %w",
			method, ErrInvalidConfig)
	}
	k, err := params.intParam("k", 5)
	if err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("hubness: local scaling k must be >= 1, got %d: %w", k, ErrInvalidConfig)
	}
	return &LocalScaling{method: method, k: k}, nil
}

// Method returns "standard" or "nicdm".
func (r *LocalScaling) Method() string { return r.method }

// K returns the neighborhood size used for the radii.
func (r *LocalScaling) K() int { return r.k }

// Fit computes the radius of every reference point.
func (r *LocalScaling) Fit(graph *NeighborGraph, X *mat.Dense) error {
	if err := checkGraphK(graph, r.k, HubnessLocalScaling); err != nil {
		return err
	}
	r.radius = r.radii(graph)
	return nil
}

// Transform rescales every distance of graph with the query and reference
// radii.
func (r *LocalScaling) Transform(graph *NeighborGraph, X *mat.Dense, self bool) (*NeighborGraph, error) {
	if r.radius == nil {
		return nil, notFitted(HubnessLocalScaling)
	}
	if err := checkGraphK(graph, r.k, HubnessLocalScaling); err != nil {
		return nil, err
	}

	queryRadius := r.radius
	if self {
		if err := checkSelf(graph, len(r.radius)); err != nil {
			return nil, err
		}
	} else {
		queryRadius = r.radii(graph)
	}

	out := rescaled(graph)
	for i, row := range graph.Indices {
		for c, j := range row {
			d := graph.Distances[i][c]
			scale := math.Max(queryRadius[i]*r.radius[j], math.SmallestNonzeroFloat64)
			if r.method == "nicdm" {
				out.Distances[i][c] = d / math.Sqrt(scale)
			} else {
				out.Distances[i][c] = 1 - math.Exp(-d*d/scale)
			}
		}
	}
	return out, nil
}

func (r *LocalScaling) radii(g *NeighborGraph) []float64 {
	out := make([]float64, g.Len())
	for i, row := range g.Distances {
		if r.method == "nicdm" {
			out[i] = floats.Sum(row[:r.k]) / float64(r.k)
		} else {
			out[i] = row[r.k-1]
		}
	}
	return out
}
