package hubness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// mpEmpiricEps is added to a point's largest neighbor distance to stand in
// for distances beyond its neighbor list.
const mpEmpiricEps = 1e-10

// MutualProximity rescales d(i,j) by how unusual d is for both i and j.
//
// With method "normal" each point's neighbor distances are modeled as a
// normal distribution and mp(i,j) = 1 - S_i(d) * S_j(d), where S is the
// survival function. With method "empiric" the probability is the share of
// i's neighbors m that are farther than d from both i and j.
//
// Reference: "Local and global scaling reduce hubs in space"
// (Schnitzer et al., JMLR 2012)
type MutualProximity struct {
	method string

	// normal
	mu, sigma []float64

	// empiric
	lookup  []map[int]float64
	maxDist []float64

	n int
}

func newMutualProximity(params HubnessParams) (*MutualProximity, error) {
	if err := params.validateKeys(HubnessMutualProximity, "method"); err != nil {
		return nil, err
	}
	method, err := params.stringParam("method", "normal")
	if err != nil {
		return nil, err
	}
	switch method {
	case "normal", "gaussi":
		method = "normal"
	case "empiric":
	default:
		return nil, fmt.Errorf("hubness: mutual proximity method must be \"normal\" or \"empiric\", got %q: %w",
			method, ErrInvalidConfig)
	}
	return &MutualProximity{method: method}, nil
}

// Method returns "normal" or "empiric".
func (r *MutualProximity) Method() string { return r.method }

// Fit learns the neighbor-distance statistics of every reference point.
func (r *MutualProximity) Fit(graph *NeighborGraph, X *mat.Dense) error {
	if err := checkGraphK(graph, 1, HubnessMutualProximity); err != nil {
		return err
	}
	r.n = graph.Len()

	if r.method == "normal" {
		r.mu, r.sigma = rowMeanStd(graph)
		r.lookup, r.maxDist = nil, nil
		return nil
	}

	r.mu, r.sigma = nil, nil
	r.lookup = make([]map[int]float64, r.n)
	r.maxDist = make([]float64, r.n)
	for j := range graph.Indices {
		m := make(map[int]float64, len(graph.Indices[j]))
		for c, idx := range graph.Indices[j] {
			m[idx] = graph.Distances[j][c]
			r.maxDist[j] = math.Max(r.maxDist[j], graph.Distances[j][c])
		}
		r.lookup[j] = m
	}
	return nil
}

// Transform returns 1 - P(both i and j have neighbors beyond d(i,j)).
func (r *MutualProximity) Transform(graph *NeighborGraph, X *mat.Dense, self bool) (*NeighborGraph, error) {
	if r.n == 0 {
		return nil, notFitted(HubnessMutualProximity)
	}
	if err := checkGraphK(graph, 1, HubnessMutualProximity); err != nil {
		return nil, err
	}
	if self {
		if err := checkSelf(graph, r.n); err != nil {
			return nil, err
		}
	}

	out := rescaled(graph)
	if r.method == "normal" {
		mu, sigma := r.mu, r.sigma
		if !self {
			mu, sigma = rowMeanStd(graph)
		}
		for i, row := range graph.Indices {
			for c, j := range row {
				d := graph.Distances[i][c]
				out.Distances[i][c] = 1 - normalSurvival(d, mu[i], sigma[i])*normalSurvival(d, r.mu[j], r.sigma[j])
			}
		}
		return out, nil
	}

	for i, row := range graph.Indices {
		dists := graph.Distances[i]
		k := float64(len(row))
		for c, j := range row {
			d := dists[c]
			count := 0
			for mc, m := range row {
				if dists[mc] <= d {
					continue
				}
				if r.distFrom(j, m) > d {
					count++
				}
			}
			out.Distances[i][c] = 1 - float64(count)/k
		}
	}
	return out, nil
}

// distFrom returns the fitted distance from reference point j to m, or a
// distance just beyond j's neighborhood when m isn't among j's neighbors.
func (r *MutualProximity) distFrom(j, m int) float64 {
	if j == m {
		return 0
	}
	if d, ok := r.lookup[j][m]; ok {
		return d
	}
	return r.maxDist[j] + mpEmpiricEps
}

// rowMeanStd returns the mean and population standard deviation of every
// distance row of g.
func rowMeanStd(g *NeighborGraph) (mu, sigma []float64) {
	mu = make([]float64, g.Len())
	sigma = make([]float64, g.Len())
	for i, row := range g.Distances {
		mu[i], sigma[i] = stat.PopMeanStdDev(row, nil)
	}
	return mu, sigma
}

// normalSurvival is P(X > x) for X ~ N(mu, sigma²). A degenerate
// distribution is a step at mu.
func normalSurvival(x, mu, sigma float64) float64 {
	if sigma == 0 || math.IsNaN(sigma) {
		if x < mu {
			return 1
		}
		return 0
	}
	return distuv.Normal{Mu: mu, Sigma: sigma}.Survival(x)
}
