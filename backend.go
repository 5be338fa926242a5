package hubness

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// Backend is a nearest-neighbor index: exact trees, brute force, or an
// approximate method.
type Backend interface {
	// Fit indexes the reference set X. With the "precomputed" metric X is a
	// square distance matrix.
	Fit(X [][]float64) error

	// KNeighbors returns the nCandidates nearest reference points of every
	// row of X, or of every fitted point when X is nil (the point itself is
	// included). nCandidates <= 0 uses BackendConfig.NCandidates. With
	// returnDistance false the graph carries no distances.
	KNeighbors(X [][]float64, nCandidates int, returnDistance bool) (*NeighborGraph, error)

	// Algorithm returns the backend's algorithm.
	Algorithm() Algorithm
}

// BackendConfig controls a search backend.
// Start with [DefaultBackendConfig] and override the fields you need.
type BackendConfig struct {
	// NCandidates is the default number of neighbors KNeighbors returns.
	// Must be >= 1. Default: 5.
	NCandidates int `yaml:"n_candidates"`

	// Metric names the distance: "euclidean", "sqeuclidean", "manhattan",
	// "chebyshev", "cosine", "minkowski" or "precomputed".
	// Default: "sqeuclidean".
	Metric string `yaml:"metric"`

	// P is the Minkowski exponent when Metric is "minkowski". Default: 2.
	P float64 `yaml:"p"`

	// NJobs is the number of workers used over query rows. -1 means one per
	// CPU; 0 means sequential. Resolved to a positive count by NewBackend.
	NJobs int `yaml:"n_jobs"`

	// Verbose > 0 emits debug log records.
	Verbose int `yaml:"verbose"`

	// LeafSize is the maximum number of points in a tree leaf. Default: 30.
	LeafSize int `yaml:"leaf_size"`

	// Seed makes approximate backends deterministic. Default: 0.
	Seed int64 `yaml:"seed"`

	// HNSWM is the number of links per node and layer (2*HNSWM on layer 0).
	// Default: 16.
	HNSWM int `yaml:"hnsw_m"`

	// HNSWEfConstruction is the candidate list size while building. Default: 200.
	HNSWEfConstruction int `yaml:"hnsw_ef_construction"`

	// HNSWEfSearch is the candidate list size while querying; raised to the
	// number of requested neighbors when smaller. Default: 100.
	HNSWEfSearch int `yaml:"hnsw_ef_search"`

	// LSHTables is the number of hash tables for "lsh" and "falconn_lsh".
	// Default: 10.
	LSHTables int `yaml:"lsh_tables"`

	// LSHBits is the number of hyperplanes per table for "lsh" (at most 64)
	// and the number of concatenated cross-polytope hashes per table for
	// "falconn_lsh". Default: 8 for "lsh", 1 for "falconn_lsh".
	LSHBits int `yaml:"lsh_bits"`

	// Logger receives warnings and debug records. Default: slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultBackendConfig returns a BackendConfig with the backend defaults.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		NCandidates: 5,
		Metric:      "sqeuclidean",
	}
}

// applyBackendDefaults fills in zero-valued fields with their defaults.
func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.NCandidates == 0 {
		cfg.NCandidates = 5
	}
	if cfg.Metric == "" {
		cfg.Metric = "sqeuclidean"
	}
	if cfg.LeafSize == 0 {
		cfg.LeafSize = 30
	}
	if cfg.HNSWM == 0 {
		cfg.HNSWM = 16
	}
	if cfg.HNSWEfConstruction == 0 {
		cfg.HNSWEfConstruction = 200
	}
	if cfg.HNSWEfSearch == 0 {
		cfg.HNSWEfSearch = 100
	}
	if cfg.LSHTables == 0 {
		cfg.LSHTables = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// validateBackendConfig checks that cfg fields are valid.
func validateBackendConfig(cfg *BackendConfig) error {
	if cfg.NCandidates < 1 {
		return fmt.Errorf("hubness: NCandidates must be >= 1, got %d: %w", cfg.NCandidates, ErrInvalidConfig)
	}
	if cfg.LeafSize < 1 {
		return fmt.Errorf("hubness: LeafSize must be >= 1, got %d: %w", cfg.LeafSize, ErrInvalidConfig)
	}
	if cfg.HNSWM < 2 {
		return fmt.Errorf("hubness: HNSWM must be >= 2, got %d: %w", cfg.HNSWM, ErrInvalidConfig)
	}
	if cfg.HNSWEfConstruction < 1 || cfg.HNSWEfSearch < 1 {
		return fmt.Errorf("hubness: HNSW ef values must be >= 1, got construction=%d search=%d: %w",
			cfg.HNSWEfConstruction, cfg.HNSWEfSearch, ErrInvalidConfig)
	}
	if cfg.LSHTables < 1 {
		return fmt.Errorf("hubness: LSHTables must be >= 1, got %d: %w", cfg.LSHTables, ErrInvalidConfig)
	}
	if cfg.LSHBits < 0 || cfg.LSHBits > 64 {
		return fmt.Errorf("hubness: LSHBits must be in [0, 64], got %d: %w", cfg.LSHBits, ErrInvalidConfig)
	}
	if _, err := MetricByName(cfg.Metric, cfg.P); err != nil {
		return err
	}
	return nil
}

// NewBackend creates the backend for algo. An approximate algorithm that is
// not available on this platform yields an UnavailableBackend (with a
// logged warning) rather than an error.
func NewBackend(algo Algorithm, cfg BackendConfig) (Backend, error) {
	applyBackendDefaults(&cfg)
	if err := validateBackendConfig(&cfg); err != nil {
		return nil, err
	}
	jobs, err := resolveJobs(cfg.NJobs)
	if err != nil {
		return nil, err
	}
	cfg.NJobs = jobs

	metric, _ := MetricByName(cfg.Metric, cfg.P)
	if metric == nil {
		if _, err := selectAlgorithm(algo, nil, 0); err != nil {
			return nil, err
		}
	}

	switch {
	case algo.IsExact():
		return newExactBackend(algo, cfg, metric), nil
	case algo.IsApproximate():
		if !algorithmAvailable(algo) {
			return newUnavailableBackend(algo, cfg), nil
		}
		switch algo {
		case AlgorithmHNSW:
			return newHNSWBackend(cfg, metric), nil
		case AlgorithmLSH:
			return newLSHBackend(cfg, metric), nil
		default:
			return newFalconnBackend(cfg, metric), nil
		}
	default:
		return nil, fmt.Errorf("hubness: unknown algorithm %q: %w", algo, ErrInvalidConfig)
	}
}

// backendBase carries what every backend shares: configuration, the fitted
// reference matrix and input validation.
type backendBase struct {
	cfg    BackendConfig
	metric DistanceMetric // nil for precomputed distances
	data   *mat.Dense
	n      int
	dims   int
}

// fitData validates and stores the reference set.
func (b *backendBase) fitData(X [][]float64) error {
	d, err := toDense(X)
	if err != nil {
		return err
	}
	if b.metric == nil {
		if err := checkPrecomputed(d); err != nil {
			return err
		}
	}
	b.data = d
	b.n, b.dims = d.Dims()
	return nil
}

// queryData validates X against the fitted reference set. It returns nil for
// a nil X (self query).
func (b *backendBase) queryData(X [][]float64) (*mat.Dense, error) {
	if b.data == nil {
		return nil, fmt.Errorf("hubness: %w: call Fit before KNeighbors", ErrNotFitted)
	}
	if X == nil {
		return nil, nil
	}
	q, err := toDense(X)
	if err != nil {
		return nil, err
	}
	_, cols := q.Dims()
	if cols != b.dims {
		if b.metric == nil {
			return nil, fmt.Errorf("hubness: precomputed query has %d columns, want %d fitted samples: %w",
				cols, b.dims, ErrDimensionMismatch)
		}
		return nil, fmt.Errorf("hubness: query has %d features, want %d: %w", cols, b.dims, ErrDimensionMismatch)
	}
	if b.metric == nil {
		if err := checkNonNegative(q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// candidates resolves a requested candidate count against the default and
// the reference size.
func (b *backendBase) candidates(nCandidates int) int {
	if nCandidates <= 0 {
		nCandidates = b.cfg.NCandidates
	}
	return min(nCandidates, b.n)
}

// newGraph allocates a graph for m query rows.
func newGraph(m int, returnDistance bool) *NeighborGraph {
	g := &NeighborGraph{Indices: make([][]int, m)}
	if returnDistance {
		g.Distances = make([][]float64, m)
	}
	return g
}

// rankExact fills row q of g with the k nearest fitted points among
// candidates (exact distances), topping up from a full scan when there are
// fewer than k distinct candidates. Used by the approximate backends.
func (b *backendBase) rankExact(g *NeighborGraph, q int, query []float64, candidates []int, k int) {
	h := make(knnHeap, 0, k)
	seen := make(map[int]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		h.offer(knnItem{index: c, dist: b.metric.Distance(query, b.data.RawRowView(c))}, k)
	}
	if len(seen) < k {
		for j := 0; j < b.n; j++ {
			if _, ok := seen[j]; ok {
				continue
			}
			h.offer(knnItem{index: j, dist: b.metric.Distance(query, b.data.RawRowView(j))}, k)
		}
	}
	idx, dist := h.drain()
	g.Indices[q] = idx
	if g.Distances != nil {
		g.Distances[q] = dist
	}
}

// rows returns the query matrix to search with, falling back to the fitted
// data for self queries.
func (b *backendBase) rows(q *mat.Dense) *mat.Dense {
	if q == nil {
		return b.data
	}
	return q
}

func (b *backendBase) debug(msg string, args ...any) {
	if b.cfg.Verbose > 0 {
		b.cfg.Logger.Debug(msg, args...)
	}
}
