package hubness

import (
	"math"
	"sort"
)

// NegativeOutlierFactors returns -LOF for every row of g: the negated mean
// ratio between the densities of its reference neighbors (refLRD) and its
// own density (queryLRD). Values near -1 are inliers; lower is more
// anomalous.
func NegativeOutlierFactors(g *NeighborGraph, refLRD, queryLRD []float64) []float64 {
	scores := make([]float64, g.Len())
	for i, row := range g.Indices {
		var sum float64
		for _, j := range row {
			sum += refLRD[j] / queryLRD[i]
		}
		scores[i] = -sum / float64(len(row))
	}
	return scores
}

// percentile returns the p-th percentile (0..100) of values, interpolating
// linearly between the two closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
