package hubness

import (
	"fmt"
	"runtime"
)

// UnavailableBackend stands in for an approximate backend that can't run on
// the current platform. Construction logs a warning, Fit only validates its
// input, and KNeighbors returns a nil graph and a nil error. Callers that
// need neighbors check Err.
type UnavailableBackend struct {
	algo Algorithm
	cfg  BackendConfig
}

func newUnavailableBackend(algo Algorithm, cfg BackendConfig) *UnavailableBackend {
	cfg.Logger.Warn("approximate nearest neighbor method is not available on this platform",
		"algorithm", string(algo),
		"goos", runtime.GOOS,
		"goarch", runtime.GOARCH)
	return &UnavailableBackend{algo: algo, cfg: cfg}
}

func (u *UnavailableBackend) Algorithm() Algorithm { return u.algo }

func (u *UnavailableBackend) Fit(X [][]float64) error {
	_, err := toDense(X)
	return err
}

func (u *UnavailableBackend) KNeighbors(X [][]float64, nCandidates int, returnDistance bool) (*NeighborGraph, error) {
	return nil, nil
}

// Err reports why the backend has no results.
func (u *UnavailableBackend) Err() error {
	return fmt.Errorf("hubness: %q on %s/%s: %w", u.algo, runtime.GOOS, runtime.GOARCH, ErrPlatformUnavailable)
}
