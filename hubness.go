package hubness

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// HubnessAlgorithm selects a hubness reduction method.
type HubnessAlgorithm string

const (
	HubnessNone              HubnessAlgorithm = ""
	HubnessMutualProximity   HubnessAlgorithm = "mp"
	HubnessLocalScaling      HubnessAlgorithm = "ls"
	HubnessDisSimLocal       HubnessAlgorithm = "dsl"
	hubnessMutualProximityLn HubnessAlgorithm = "mutual_proximity"
	hubnessLocalScalingLn    HubnessAlgorithm = "local_scaling"
	hubnessDisSimLocalLn     HubnessAlgorithm = "dis_sim_local"
)

// Canonical returns the short name of h, resolving the long aliases
// "mutual_proximity", "local_scaling" and "dis_sim_local".
func (h HubnessAlgorithm) Canonical() HubnessAlgorithm {
	switch HubnessAlgorithm(strings.ToLower(string(h))) {
	case HubnessMutualProximity, hubnessMutualProximityLn:
		return HubnessMutualProximity
	case HubnessLocalScaling, hubnessLocalScalingLn:
		return HubnessLocalScaling
	case HubnessDisSimLocal, hubnessDisSimLocalLn:
		return HubnessDisSimLocal
	}
	return h
}

// HubnessParams holds method-specific reducer settings, for example
// {"method": "empiric"} for mutual proximity or {"k": 10} for local scaling.
// Keys a reducer doesn't know are rejected.
type HubnessParams map[string]any

// HubnessReducer rescales neighbor distances to reduce hub bias.
//
// Fit learns per-point statistics from the reference graph (self excluded,
// rows sorted ascending). Transform returns a graph with the same Indices and
// rescaled Distances; rows are not re-sorted. X is the feature matrix of the
// graph's rows and is nil for precomputed distances. With self set, the
// graph's rows are the fitted reference points in order.
type HubnessReducer interface {
	Fit(graph *NeighborGraph, X *mat.Dense) error
	Transform(graph *NeighborGraph, X *mat.Dense, self bool) (*NeighborGraph, error)
}

// NewHubnessReducer creates the reducer for alg. It returns nil for
// HubnessNone.
func NewHubnessReducer(alg HubnessAlgorithm, params HubnessParams) (HubnessReducer, error) {
	switch alg.Canonical() {
	case HubnessNone:
		if len(params) > 0 {
			return nil, fmt.Errorf("hubness: hubness params given without a hubness method: %w", ErrInvalidConfig)
		}
		return nil, nil
	case HubnessMutualProximity:
		return newMutualProximity(params)
	case HubnessLocalScaling:
		return newLocalScaling(params)
	case HubnessDisSimLocal:
		return newDisSimLocal(params)
	}
	return nil, fmt.Errorf("hubness: unknown hubness method %q: %w", alg, ErrInvalidConfig)
}

// validateKeys rejects keys outside allowed.
func (p HubnessParams) validateKeys(method HubnessAlgorithm, allowed ...string) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("hubness: unknown parameter %q for %q (allowed: %s): %w",
				k, method, strings.Join(allowed, ", "), ErrInvalidConfig)
		}
	}
	return nil
}

func (p HubnessParams) stringParam(key, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("hubness: parameter %q must be a string, got %T: %w", key, v, ErrInvalidConfig)
	}
	return strings.ToLower(s), nil
}

// intParam accepts Go ints as well as integral float64 values, which is what
// JSON-like decoders produce.
func (p HubnessParams) intParam(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), nil
		}
	}
	return 0, fmt.Errorf("hubness: parameter %q must be an integer, got %v: %w", key, v, ErrInvalidConfig)
}

func (p HubnessParams) boolParam(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("hubness: parameter %q must be a boolean, got %T: %w", key, v, ErrInvalidConfig)
	}
	return b, nil
}

// checkGraphK fails when g carries no distances or a row of g has fewer than
// k neighbors.
func checkGraphK(g *NeighborGraph, k int, method HubnessAlgorithm) error {
	if g == nil || len(g.Distances) != len(g.Indices) {
		return fmt.Errorf("hubness: %q needs a neighbor graph with distances: %w", method, ErrInvalidInput)
	}
	if got := g.K(); k > got {
		return fmt.Errorf("hubness: %q needs k=%d neighbors, only %d available: %w", method, k, got, ErrInvalidConfig)
	}
	return nil
}

// checkSelf fails when a self transform doesn't match the fitted size.
func checkSelf(g *NeighborGraph, fitted int) error {
	if g.Len() != fitted {
		return fmt.Errorf("hubness: self transform has %d rows, fitted %d: %w", g.Len(), fitted, ErrDimensionMismatch)
	}
	return nil
}

func notFitted(method HubnessAlgorithm) error {
	return fmt.Errorf("hubness: %w: call Fit on the %q reducer before Transform", ErrNotFitted, method)
}

// rescaled copies g's indices and allocates distance rows of the same shape.
func rescaled(g *NeighborGraph) *NeighborGraph {
	out := &NeighborGraph{
		Indices:   make([][]int, len(g.Indices)),
		Distances: make([][]float64, len(g.Indices)),
	}
	for i, row := range g.Indices {
		out.Indices[i] = append([]int(nil), row...)
		out.Distances[i] = make([]float64, len(row))
	}
	return out
}
