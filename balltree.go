package hubness

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// BallTree is an exact nearest-neighbor index whose nodes are balls: a
// centroid plus the largest distance to any member. The triangle inequality
// turns that into a lower bound, so any true metric can be searched,
// including high-dimensional data where KD boxes stop pruning.
type BallTree struct {
	treeBase

	// centroids holds the centre of node i at [i*dims, (i+1)*dims).
	centroids []float64
}

// NewBallTree builds a ball tree over n points of dimensionality dims stored
// row-major in data. Leaves hold at most leafSize points.
func NewBallTree(data []float64, n, dims int, metric DistanceMetric, leafSize int) *BallTree {
	t := &BallTree{treeBase: newTreeBase(data, n, dims, metric, leafSize)}
	t.centroids = make([]float64, len(t.nodes)*dims)
	if n > 0 {
		t.build(0, 0, n)
		t.numNodes = countNodes(t.nodes, 0, len(t.nodes))
	}
	return t
}

func (t *BallTree) build(nodeID, start, end int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, NodeData{})
		t.centroids = append(t.centroids, make([]float64, t.dims)...)
	}

	c := t.centroid(nodeID)
	for i := start; i < end; i++ {
		floats.Add(c, t.point(t.idxArray[i]))
	}
	floats.Scale(1/float64(end-start), c)

	var radius float64
	for i := start; i < end; i++ {
		radius = math.Max(radius, t.metric.Distance(c, t.point(t.idxArray[i])))
	}

	t.nodes[nodeID] = NodeData{IdxStart: start, IdxEnd: end, IsLeaf: end-start <= t.leafSize, Radius: radius}
	if t.nodes[nodeID].IsLeaf {
		return
	}

	mid := start + (end-start)/2
	t.partition(start, end, mid, t.spreadDim(start, end))

	t.build(2*nodeID+1, start, mid)
	t.build(2*nodeID+2, mid, end)
}

func (t *BallTree) centroid(nodeID int) []float64 {
	return t.centroids[nodeID*t.dims : (nodeID+1)*t.dims]
}

// QueryKNN finds the k nearest neighbors for each row in queryData.
func (t *BallTree) QueryKNN(queryData []float64, queryRows, k, workers int) ([][]int, [][]float64) {
	if t.n == 0 || k <= 0 {
		return make([][]int, queryRows), make([][]float64, queryRows)
	}
	return queryTree(queryData, queryRows, t.dims, k, workers, func(query []float64, h *knnHeap) {
		t.search(0, query, k, h)
	})
}

func (t *BallTree) search(nodeID int, query []float64, k int, h *knnHeap) {
	if t.skip(nodeID) {
		return
	}
	nd := t.nodes[nodeID]
	if nd.IsLeaf {
		t.scanLeaf(nd, query, k, h)
		return
	}

	near, far := 2*nodeID+1, 2*nodeID+2
	nearBound, farBound := t.MinDistPoint(near, query), t.MinDistPoint(far, query)
	if farBound < nearBound {
		near, far = far, near
		farBound = nearBound
	}

	t.search(near, query, k, h)
	if !h.full(k) || farBound <= h.worst() {
		t.search(far, query, k, h)
	}
}

// MinDistPoint returns max(0, d(point, centroid) - radius), a lower bound on
// the distance from point to any member of node.
func (t *BallTree) MinDistPoint(node int, point []float64) float64 {
	if node >= len(t.nodes) {
		return math.Inf(1)
	}
	return math.Max(0, t.metric.Distance(point, t.centroid(node))-t.nodes[node].Radius)
}
