package hubness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GraphConfig controls a NeighborGraphBuilder.
// Start with [DefaultGraphConfig] and override the fields you need.
type GraphConfig struct {
	// BackendConfig configures the search backend. Its NCandidates is
	// derived from NNeighbors and CandidateMultiplier.
	BackendConfig `yaml:",inline"`

	// NNeighbors is the number of neighbors per row. Values >= the number of
	// fitted samples are clamped to n_samples - 1 with a warning.
	// Must be >= 1. Default: 20.
	NNeighbors int `yaml:"n_neighbors"`

	// Algorithm selects the search backend. Default: "auto".
	Algorithm Algorithm `yaml:"algorithm"`

	// Hubness selects the hubness reduction method; empty means none.
	Hubness HubnessAlgorithm `yaml:"hubness"`

	// HubnessParams holds method-specific reducer settings.
	HubnessParams HubnessParams `yaml:"hubness_params"`

	// CandidateMultiplier scales NNeighbors into the number of candidates
	// fetched when results are rescaled or approximate, before the re-sort
	// and truncation to NNeighbors. Must be >= 1. Default: 3.
	CandidateMultiplier float64 `yaml:"candidate_multiplier"`
}

// DefaultGraphConfig returns a GraphConfig with the builder defaults.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		BackendConfig:       BackendConfig{Metric: "euclidean"},
		NNeighbors:          20,
		Algorithm:           AlgorithmAuto,
		CandidateMultiplier: 3,
	}
}

// applyGraphDefaults fills in zero-valued fields with their defaults.
func applyGraphDefaults(cfg *GraphConfig) {
	if cfg.NNeighbors == 0 {
		cfg.NNeighbors = 20
	}
	if cfg.Metric == "" {
		cfg.Metric = "euclidean"
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmAuto
	}
	if cfg.CandidateMultiplier == 0 {
		cfg.CandidateMultiplier = 3
	}
	if cfg.NCandidates == 0 {
		cfg.NCandidates = cfg.NNeighbors
	}
	cfg.Hubness = cfg.Hubness.Canonical()
	applyBackendDefaults(&cfg.BackendConfig)
}

// validateGraphConfig checks the builder-level fields and the backend fields
// that don't depend on the algorithm.
func validateGraphConfig(cfg *GraphConfig) error {
	if cfg.NNeighbors < 1 {
		return fmt.Errorf("hubness: NNeighbors must be >= 1, got %d: %w", cfg.NNeighbors, ErrInvalidConfig)
	}
	if cfg.CandidateMultiplier < 1 || math.IsInf(cfg.CandidateMultiplier, 0) || math.IsNaN(cfg.CandidateMultiplier) {
		return fmt.Errorf("hubness: CandidateMultiplier must be a finite value >= 1, got %v: %w",
			cfg.CandidateMultiplier, ErrInvalidConfig)
	}
	if !cfg.Algorithm.IsExact() && !cfg.Algorithm.IsApproximate() {
		return fmt.Errorf("hubness: unknown algorithm %q: %w", cfg.Algorithm, ErrInvalidConfig)
	}
	if cfg.Hubness == HubnessDisSimLocal && cfg.Metric == MetricPrecomputed {
		return fmt.Errorf("hubness: hubness %q cannot use %q distances: %w",
			HubnessDisSimLocal, MetricPrecomputed, ErrInvalidConfig)
	}
	return validateBackendConfig(&cfg.BackendConfig)
}

// NeighborGraphBuilder retrieves k-nearest-neighbor graphs from a search
// backend and applies the configured hubness reduction.
//
// Fit indexes the reference set and, when a reducer is configured, fits it
// once on the reference graph. KNeighbors then returns graphs with exactly
// NNeighbors entries per row, sorted by ascending (rescaled) distance, with
// self entries removed for the reference set itself.
//
// A builder is not safe for concurrent use.
type NeighborGraphBuilder struct {
	cfg     GraphConfig
	backend Backend
	reducer HubnessReducer

	n          int
	k          int // effective n_neighbors after clamping
	candidates int
	ref        *NeighborGraph // candidate graph of the reference set, self excluded
}

// NewNeighborGraphBuilder validates cfg and creates the backend and reducer.
// An approximate algorithm that is unavailable here logs a warning and yields
// a builder whose graphs are nil.
func NewNeighborGraphBuilder(cfg GraphConfig) (*NeighborGraphBuilder, error) {
	applyGraphDefaults(&cfg)
	if err := validateGraphConfig(&cfg); err != nil {
		return nil, err
	}
	reducer, err := NewHubnessReducer(cfg.Hubness, cfg.HubnessParams)
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(cfg.Algorithm, cfg.BackendConfig)
	if err != nil {
		return nil, err
	}
	return &NeighborGraphBuilder{cfg: cfg, backend: backend, reducer: reducer}, nil
}

// Backend returns the search backend.
func (b *NeighborGraphBuilder) Backend() Backend { return b.backend }

// Reducer returns the hubness reducer, or nil when none is configured.
func (b *NeighborGraphBuilder) Reducer() HubnessReducer { return b.reducer }

// NNeighbors returns the effective number of neighbors: the configured value
// before Fit, the clamped value after.
func (b *NeighborGraphBuilder) NNeighbors() int {
	if b.k > 0 {
		return b.k
	}
	return b.cfg.NNeighbors
}

// Candidates returns the number of candidates fetched per row at Fit.
func (b *NeighborGraphBuilder) Candidates() int { return b.candidates }

// Available reports whether the backend can produce results on this platform.
func (b *NeighborGraphBuilder) Available() bool {
	_, unavailable := b.backend.(*UnavailableBackend)
	return !unavailable
}

// Fit indexes X. It clamps NNeighbors to n_samples - 1 with a warning when
// needed, fetches the reference candidate graph and fits the reducer.
func (b *NeighborGraphBuilder) Fit(X [][]float64) error {
	b.n, b.k, b.candidates, b.ref = 0, 0, 0, nil

	data, err := toDense(X)
	if err != nil {
		return err
	}
	n, _ := data.Dims()
	if n < 2 {
		return fmt.Errorf("hubness: need at least 2 samples to find neighbors, got %d: %w", n, ErrInvalidInput)
	}

	k := b.cfg.NNeighbors
	if k >= n {
		b.cfg.Logger.Warn("n_neighbors will be set to (n_samples - 1)",
			"n_neighbors", k,
			"n_samples", n)
		k = n - 1
	}

	if err := b.backend.Fit(X); err != nil {
		return err
	}
	b.n, b.k = n, k
	b.candidates = b.candidateCount(k, n-1)
	if !b.Available() {
		return nil
	}

	ref, err := b.backend.KNeighbors(nil, b.candidates+1, true)
	if err != nil {
		return err
	}
	ref.excludeSelf(b.candidates)

	if b.reducer != nil {
		if err := b.reducer.Fit(ref, b.features(data)); err != nil {
			return err
		}
	}
	b.ref = ref

	if b.cfg.Verbose > 0 {
		b.cfg.Logger.Debug("neighbor graph builder fitted",
			"algorithm", string(b.backend.Algorithm()),
			"hubness", string(b.cfg.Hubness),
			"n_neighbors", k,
			"candidates", b.candidates,
			"workers", b.cfg.NJobs)
	}
	return nil
}

// KNeighbors returns the k-nearest-neighbor graph of the rows of X against
// the fitted reference set, or of the reference set itself when X is nil
// (self entries excluded). k <= 0 uses the fitted NNeighbors. The graph is
// nil when the backend is unavailable on this platform.
func (b *NeighborGraphBuilder) KNeighbors(X [][]float64, k int) (*NeighborGraph, error) {
	if b.n == 0 {
		return nil, fmt.Errorf("hubness: %w: call Fit before KNeighbors", ErrNotFitted)
	}
	if k <= 0 {
		k = b.k
	}
	self := X == nil
	limit := b.n
	if self {
		limit = b.n - 1
	}
	if k > limit {
		return nil, fmt.Errorf("hubness: requested %d neighbors, only %d reference points available: %w",
			k, limit, ErrInvalidConfig)
	}
	if !b.Available() {
		return nil, nil
	}

	var (
		g   *NeighborGraph
		q   *mat.Dense
		err error
	)
	switch {
	case self && b.candidateCount(k, limit) <= b.candidates:
		g = b.ref.clone()
	case self:
		nc := b.candidateCount(k, limit)
		if g, err = b.backend.KNeighbors(nil, nc+1, true); err != nil {
			return nil, err
		}
		g.excludeSelf(nc)
	default:
		if g, err = b.backend.KNeighbors(X, b.candidateCount(k, limit), true); err != nil {
			return nil, err
		}
		if q, err = toDense(X); err != nil {
			return nil, err
		}
	}

	if b.reducer != nil {
		if g, err = b.reducer.Transform(g, b.features(q), self); err != nil {
			return nil, err
		}
		g.sortRows()
	}
	g.truncate(k)
	return g, nil
}

// candidateCount is the number of neighbors to fetch for k final ones: k for
// plain exact search, ceil(k * CandidateMultiplier) otherwise, capped at
// limit.
func (b *NeighborGraphBuilder) candidateCount(k, limit int) int {
	if b.reducer == nil && b.cfg.Algorithm.IsExact() {
		return min(k, limit)
	}
	c := int(math.Ceil(float64(k) * b.cfg.CandidateMultiplier))
	return min(max(c, k), limit)
}

// features returns X for reducers, or nil for precomputed distances.
func (b *NeighborGraphBuilder) features(X *mat.Dense) *mat.Dense {
	if b.cfg.Metric == MetricPrecomputed {
		return nil
	}
	return X
}
