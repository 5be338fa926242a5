package hubness

// KDistances returns the k-distance of every row of g: the distance to its
// k-th nearest neighbor. Rows must be sorted and hold at least k entries.
func KDistances(g *NeighborGraph, k int) []float64 {
	kdist := make([]float64, g.Len())
	if k <= 0 {
		return kdist
	}
	for i, row := range g.Distances {
		kdist[i] = row[min(k, len(row))-1]
	}
	return kdist
}
