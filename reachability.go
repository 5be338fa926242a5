package hubness

import "gonum.org/v1/gonum/floats"

// lrdEps keeps the local reachability density finite for duplicated points.
const lrdEps = 1e-10

// LocalReachabilityDensity computes the local reachability density of every
// row of g against reference points with k-distances kdist:
//
//	reach(a, b) = max(d(a, b), kdist[b])
//	lrd(a)      = 1 / (mean over neighbors b of reach(a, b) + 1e-10)
func LocalReachabilityDensity(g *NeighborGraph, kdist []float64) []float64 {
	lrd := make([]float64, g.Len())
	var reach []float64
	for i, row := range g.Indices {
		reach = reach[:0]
		for c, j := range row {
			reach = append(reach, max(g.Distances[i][c], kdist[j]))
		}
		lrd[i] = 1 / (floats.Sum(reach)/float64(len(reach)) + lrdEps)
	}
	return lrd
}
