package hubness

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// KDTree is an exact nearest-neighbor index that splits on the feature of
// widest spread at the median. Every node keeps an axis-aligned bounding box,
// which gives a reduced-distance lower bound for any Minkowski-family metric.
type KDTree struct {
	treeBase

	// lower and upper hold the bounding box of node i at [i*dims, (i+1)*dims).
	lower, upper []float64
}

// NewKDTree builds a KD-tree over n points of dimensionality dims stored
// row-major in data. Leaves hold at most leafSize points.
func NewKDTree(data []float64, n, dims int, metric DistanceMetric, leafSize int) *KDTree {
	t := &KDTree{treeBase: newTreeBase(data, n, dims, metric, leafSize)}
	t.lower = make([]float64, len(t.nodes)*dims)
	t.upper = make([]float64, len(t.nodes)*dims)
	if n > 0 {
		t.build(0, 0, n)
		t.numNodes = countNodes(t.nodes, 0, len(t.nodes))
	}
	return t
}

func (t *KDTree) build(nodeID, start, end int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, NodeData{})
		t.lower = append(t.lower, make([]float64, t.dims)...)
		t.upper = append(t.upper, make([]float64, t.dims)...)
	}
	lo, hi := t.box(nodeID)
	copy(lo, t.point(t.idxArray[start]))
	copy(hi, lo)
	for i := start + 1; i < end; i++ {
		for j, v := range t.point(t.idxArray[i]) {
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
	}

	t.nodes[nodeID] = NodeData{IdxStart: start, IdxEnd: end, IsLeaf: end-start <= t.leafSize}
	if t.nodes[nodeID].IsLeaf {
		return
	}

	spread := make([]float64, t.dims)
	floats.SubTo(spread, hi, lo)
	mid := start + (end-start)/2
	t.partition(start, end, mid, floats.MaxIdx(spread))

	t.build(2*nodeID+1, start, mid)
	t.build(2*nodeID+2, mid, end)
}

// box returns the bounding box of a node.
func (t *KDTree) box(nodeID int) (lo, hi []float64) {
	s := nodeID * t.dims
	return t.lower[s : s+t.dims], t.upper[s : s+t.dims]
}

// QueryKNN finds the k nearest neighbors for each row in queryData.
func (t *KDTree) QueryKNN(queryData []float64, queryRows, k, workers int) ([][]int, [][]float64) {
	if t.n == 0 || k <= 0 {
		return make([][]int, queryRows), make([][]float64, queryRows)
	}
	return queryTree(queryData, queryRows, t.dims, k, workers, func(query []float64, h *knnHeap) {
		t.search(0, query, k, h)
	})
}

func (t *KDTree) search(nodeID int, query []float64, k int, h *knnHeap) {
	if t.skip(nodeID) {
		return
	}
	nd := t.nodes[nodeID]
	if nd.IsLeaf {
		t.scanLeaf(nd, query, k, h)
		return
	}

	near, far := 2*nodeID+1, 2*nodeID+2
	nearBound, farBound := t.MinRdistPoint(near, query), t.MinRdistPoint(far, query)
	if farBound < nearBound {
		near, far = far, near
		farBound = nearBound
	}

	t.search(near, query, k, h)
	// A bound equal to the current worst may still hide a lower-index tie.
	if !h.full(k) || farBound <= t.metric.DistToRdist(h.worst()) {
		t.search(far, query, k, h)
	}
}

// MinRdistPoint returns a lower bound, in the metric's reduced-distance
// space, on the distance from point to anything inside node.
func (t *KDTree) MinRdistPoint(node int, point []float64) float64 {
	if node >= len(t.nodes) {
		return math.Inf(1)
	}
	lo, hi := t.box(node)
	_, chebyshev := t.metric.(ChebyshevMetric)
	p := metricP(t.metric)

	var rdist float64
	for j, x := range point {
		gap := math.Max(0, math.Max(lo[j]-x, x-hi[j]))
		if chebyshev {
			rdist = math.Max(rdist, gap)
		} else {
			rdist += math.Pow(gap, p)
		}
	}
	return rdist
}

// metricP is the Minkowski exponent behind a tree-valid metric.
func metricP(m DistanceMetric) float64 {
	switch v := m.(type) {
	case ManhattanMetric:
		return 1
	case MinkowskiMetric:
		return v.P
	case ChebyshevMetric:
		return math.Inf(1)
	default:
		return 2
	}
}
