package hubness

import (
	"gonum.org/v1/gonum/mat"
)

// ExactBackend answers k-nearest-neighbor queries exactly with a KD-tree, a
// ball tree or brute force. Ties at equal distance go to the lower index.
type ExactBackend struct {
	backendBase
	requested Algorithm
	resolved  Algorithm
	tree      SpatialTree
	// squareTree is set when a tree searches Euclidean distances on behalf
	// of the squared Euclidean metric.
	squareTree bool
}

func newExactBackend(algo Algorithm, cfg BackendConfig, metric DistanceMetric) *ExactBackend {
	return &ExactBackend{
		backendBase: backendBase{cfg: cfg, metric: metric},
		requested:   algo,
	}
}

// Algorithm returns the concrete algorithm; before Fit it is the requested one.
func (e *ExactBackend) Algorithm() Algorithm {
	if e.resolved != "" {
		return e.resolved
	}
	return e.requested
}

// Fit indexes X, building a tree when the resolved algorithm needs one.
func (e *ExactBackend) Fit(X [][]float64) error {
	if err := e.fitData(X); err != nil {
		return err
	}

	algo, err := selectAlgorithm(e.requested, e.metric, e.dims)
	if err != nil {
		return err
	}
	e.resolved = algo
	e.tree = nil
	e.squareTree = false

	treeMetric := e.metric
	if _, ok := e.metric.(SqEuclideanMetric); ok {
		treeMetric = EuclideanMetric{}
		e.squareTree = true
	}

	switch algo {
	case AlgorithmKDTree:
		e.tree = NewKDTree(flatData(e.data), e.n, e.dims, treeMetric, e.cfg.LeafSize)
	case AlgorithmBallTree:
		e.tree = NewBallTree(flatData(e.data), e.n, e.dims, treeMetric, e.cfg.LeafSize)
	}

	e.debug("exact backend fitted",
		"algorithm", string(algo),
		"samples", e.n,
		"features", e.dims,
		"workers", e.cfg.NJobs)
	return nil
}

// KNeighbors returns the nearest fitted points of every query row.
func (e *ExactBackend) KNeighbors(X [][]float64, nCandidates int, returnDistance bool) (*NeighborGraph, error) {
	q, err := e.queryData(X)
	if err != nil {
		return nil, err
	}
	k := e.candidates(nCandidates)
	query := e.rows(q)
	m, _ := query.Dims()

	var g *NeighborGraph
	switch {
	case e.metric == nil:
		g = e.searchPrecomputed(query, k)
	case e.tree != nil:
		indices, distances := e.tree.QueryKNN(flatData(query), m, k, e.cfg.NJobs)
		if e.squareTree {
			for _, row := range distances {
				for j, d := range row {
					row[j] = d * d
				}
			}
		}
		g = &NeighborGraph{Indices: indices, Distances: distances}
	default:
		g = e.searchBrute(query, k)
	}

	if !returnDistance {
		g.Distances = nil
	}
	return g, nil
}

// searchPrecomputed selects the k smallest entries of each distance row.
func (e *ExactBackend) searchPrecomputed(query *mat.Dense, k int) *NeighborGraph {
	m, _ := query.Dims()
	g := newGraph(m, true)
	_ = parallelRows(m, e.cfg.NJobs, func(start, end int) error {
		for i := start; i < end; i++ {
			g.Indices[i], g.Distances[i] = selectKNN(query.RawRowView(i), k)
		}
		return nil
	})
	return g
}

// searchBrute computes the full query/reference distance matrix and selects
// the k smallest entries per row.
func (e *ExactBackend) searchBrute(query *mat.Dense, k int) *NeighborGraph {
	m, _ := query.Dims()
	n := e.n
	dist := ComputeCrossDistancesParallel(flatData(query), m, flatData(e.data), n, e.dims, e.metric, e.cfg.NJobs)

	g := newGraph(m, true)
	_ = parallelRows(m, e.cfg.NJobs, func(start, end int) error {
		for i := start; i < end; i++ {
			g.Indices[i], g.Distances[i] = selectKNN(dist[i*n:(i+1)*n], k)
		}
		return nil
	})
	return g
}
