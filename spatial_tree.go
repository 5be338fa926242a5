package hubness

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NodeData describes a single node in a spatial tree.
type NodeData struct {
	IdxStart, IdxEnd int
	IsLeaf           bool
	Radius           float64 // ball tree radius; 0 for KD-tree
}

// SpatialTree is the read interface shared by KD-trees and ball trees.
type SpatialTree interface {
	// QueryKNN finds the k nearest neighbors for each row in queryData.
	// queryData is flat row-major with queryRows rows. Rows are spread over
	// workers goroutines. Returns per-query neighbor indices and distances,
	// sorted by distance with lower index first on ties.
	QueryKNN(queryData []float64, queryRows, k, workers int) (indices [][]int, distances [][]float64)

	// Data returns the flat row-major point data owned by the tree.
	Data() []float64

	// NumPoints returns the number of points in the tree.
	NumPoints() int

	// NumFeatures returns the dimensionality of each point.
	NumFeatures() int

	// IdxArray returns the permutation array mapping tree-order positions
	// back to original point indices.
	IdxArray() []int

	// NodeDataArray returns the metadata for every node in the tree.
	NodeDataArray() []NodeData
}

// treeBase holds what KD-trees and ball trees share: a private copy of the
// points, the tree-order permutation and the array-form node list, where node
// i has children 2*i+1 and 2*i+2.
type treeBase struct {
	data     []float64 // flat row-major point data (n * dims)
	n        int
	dims     int
	leafSize int
	metric   DistanceMetric
	idxArray []int // tree-order position → original index
	nodes    []NodeData
	numNodes int
}

func newTreeBase(data []float64, n, dims int, metric DistanceMetric, leafSize int) treeBase {
	leafSize = max(leafSize, 1)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return treeBase{
		data:     append([]float64(nil), data...),
		n:        n,
		dims:     dims,
		leafSize: leafSize,
		metric:   metric,
		idxArray: idx,
		nodes:    make([]NodeData, maxTreeNodes(n, leafSize)),
	}
}

func (t *treeBase) Data() []float64           { return t.data }
func (t *treeBase) NumPoints() int            { return t.n }
func (t *treeBase) NumFeatures() int          { return t.dims }
func (t *treeBase) IdxArray() []int           { return t.idxArray }
func (t *treeBase) NodeDataArray() []NodeData { return t.nodes[:t.numNodes] }

// point returns the coordinates of original point i.
func (t *treeBase) point(i int) []float64 {
	return t.data[i*t.dims : (i+1)*t.dims]
}

// skip reports whether nodeID lies outside the built tree.
func (t *treeBase) skip(nodeID int) bool {
	if nodeID >= len(t.nodes) {
		return true
	}
	nd := t.nodes[nodeID]
	return nd.IdxStart == nd.IdxEnd && nodeID != 0
}

// scanLeaf offers every point of a leaf to h.
func (t *treeBase) scanLeaf(nd NodeData, query []float64, k int, h *knnHeap) {
	for i := nd.IdxStart; i < nd.IdxEnd; i++ {
		p := t.idxArray[i]
		h.offer(knnItem{index: p, dist: t.metric.Distance(query, t.point(p))}, k)
	}
}

// spreadDim returns the feature with the largest range over
// idxArray[start:end], the first one on ties.
func (t *treeBase) spreadDim(start, end int) int {
	lo := make([]float64, t.dims)
	hi := make([]float64, t.dims)
	for j := range lo {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
	}
	for i := start; i < end; i++ {
		for j, v := range t.point(t.idxArray[i]) {
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
	}
	floats.Sub(hi, lo)
	return floats.MaxIdx(hi)
}

// partition reorders idxArray[start:end] around feature dim so that position
// mid holds the median: nothing before it is larger and nothing after it is
// smaller. Equal keys are grouped, so runs of duplicates stay linear.
func (t *treeBase) partition(start, end, mid, dim int) {
	idx := t.idxArray
	key := func(i int) float64 { return t.data[idx[i]*t.dims+dim] }

	lo, hi := start, end-1
	for lo < hi {
		pivot := key((lo + hi) / 2)
		lt, i, gt := lo, lo, hi
		for i <= gt {
			switch v := key(i); {
			case v < pivot:
				idx[lt], idx[i] = idx[i], idx[lt]
				lt++
				i++
			case v > pivot:
				idx[i], idx[gt] = idx[gt], idx[i]
				gt--
			default:
				i++
			}
		}
		switch {
		case mid < lt:
			hi = lt - 1
		case mid > gt:
			lo = gt + 1
		default:
			return
		}
	}
}

// countNodes counts how many nodes of an array-form binary tree were
// initialized by a build.
func countNodes(nodes []NodeData, nodeID, maxNodes int) int {
	if nodeID >= maxNodes {
		return 0
	}
	if nodes[nodeID].IdxStart == 0 && nodes[nodeID].IdxEnd == 0 && nodeID != 0 {
		return 0
	}
	count := 1
	if !nodes[nodeID].IsLeaf {
		count += countNodes(nodes, 2*nodeID+1, maxNodes)
		count += countNodes(nodes, 2*nodeID+2, maxNodes)
	}
	return count
}

// maxTreeNodes returns an upper bound on the number of nodes needed for a
// binary tree with n points and the given leaf size.
func maxTreeNodes(n, leafSize int) int {
	if n == 0 {
		return 1
	}
	// Depth of tree: ceil(log2(ceil(n/leafSize))) + 1.
	// Number of nodes in a complete binary tree of depth d = 2^(d+1) - 1.
	leaves := (n + leafSize - 1) / leafSize
	depth := 0
	v := 1
	for v < leaves {
		v *= 2
		depth++
	}
	return (1 << (depth + 1)) - 1 + 2 // +2 for safety margin
}

// queryTree runs search once per query row, spreading rows over workers.
func queryTree(queryData []float64, queryRows, dims, k, workers int, search func(query []float64, h *knnHeap)) ([][]int, [][]float64) {
	indices := make([][]int, queryRows)
	distances := make([][]float64, queryRows)

	_ = parallelRows(queryRows, workers, func(start, end int) error {
		for q := start; q < end; q++ {
			h := make(knnHeap, 0, k)
			search(queryData[q*dims:(q+1)*dims], &h)
			indices[q], distances[q] = h.drain()
		}
		return nil
	})

	return indices, distances
}
