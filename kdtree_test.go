package hubness

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

// --- Helpers shared by the tree and backend tests ---

// randomFlat returns n*dims uniform values in [0, 10).
func randomFlat(rng *rand.Rand, n, dims int) []float64 {
	data := make([]float64, n*dims)
	for i := range data {
		data[i] = rng.Float64() * 10
	}
	return data
}

// randomRows returns n uniform rows in [0, 10)^dims.
func randomRows(rng *rand.Rand, n, dims int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, dims)
		for j := range rows[i] {
			rows[i][j] = rng.Float64() * 10
		}
	}
	return rows
}

// bruteForceKNN returns the k nearest points of ref to query, lower index
// first on ties.
func bruteForceKNN(ref []float64, n, dims int, query []float64, k int, metric DistanceMetric) ([]int, []float64) {
	type distIdx struct {
		dist  float64
		index int
	}
	all := make([]distIdx, n)
	for i := 0; i < n; i++ {
		all[i] = distIdx{dist: metric.Distance(query, ref[i*dims:(i+1)*dims]), index: i}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].dist == all[j].dist {
			return all[i].index < all[j].index
		}
		return all[i].dist < all[j].dist
	})
	k = min(k, n)
	idx := make([]int, k)
	dists := make([]float64, k)
	for i := 0; i < k; i++ {
		idx[i] = all[i].index
		dists[i] = all[i].dist
	}
	return idx, dists
}

// checkTreeKNN compares a tree's KNN answers for every point of data with
// brute force.
func checkTreeKNN(t *testing.T, tree SpatialTree, data []float64, n, dims, k int, metric DistanceMetric) {
	t.Helper()
	indices, distances := tree.QueryKNN(data, n, k, 1)
	for q := 0; q < n; q++ {
		wantIdx, wantDist := bruteForceKNN(data, n, dims, data[q*dims:(q+1)*dims], k, metric)
		if len(indices[q]) != len(wantIdx) {
			t.Fatalf("query %d: got %d neighbors, want %d", q, len(indices[q]), len(wantIdx))
		}
		for j := range wantIdx {
			if indices[q][j] != wantIdx[j] || !almostEqual(distances[q][j], wantDist[j], 1e-9) {
				t.Fatalf("query %d pos %d: got (%d, %v), want (%d, %v)",
					q, j, indices[q][j], distances[q][j], wantIdx[j], wantDist[j])
			}
		}
	}
}

// --- Construction tests ---

func TestKDTree_Construction_BasicProperties(t *testing.T) {
	data := []float64{
		0, 0,
		1, 0,
		2, 0,
		0, 3,
		1, 3,
		2, 3,
	}
	n, dims := 6, 2
	tree := NewKDTree(data, n, dims, EuclideanMetric{}, 2)

	if tree.NumPoints() != n {
		t.Errorf("NumPoints() = %d, want %d", tree.NumPoints(), n)
	}
	if tree.NumFeatures() != dims {
		t.Errorf("NumFeatures() = %d, want %d", tree.NumFeatures(), dims)
	}
	if len(tree.NodeDataArray()) < 3 {
		t.Errorf("got %d nodes, want a split tree", len(tree.NodeDataArray()))
	}

	// IdxArray should be a permutation of 0..n-1.
	seen := make(map[int]bool)
	for _, v := range tree.IdxArray() {
		if v < 0 || v >= n || seen[v] {
			t.Errorf("IdxArray has bad or duplicate index %d", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Errorf("IdxArray covers %d points, want %d", len(seen), n)
	}
}

func TestKDTree_Construction_LeafSize1(t *testing.T) {
	data := []float64{0, 0, 1, 1, 2, 2, 3, 3}
	tree := NewKDTree(data, 4, 2, EuclideanMetric{}, 1)

	for _, nd := range tree.NodeDataArray() {
		if nd.IsLeaf && (nd.IdxEnd-nd.IdxStart) != 1 {
			t.Errorf("leaf has %d points, want 1", nd.IdxEnd-nd.IdxStart)
		}
	}
}

func TestKDTree_LeafPointsCoverAll(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n, dims := 57, 3
	tree := NewKDTree(randomFlat(rng, n, dims), n, dims, EuclideanMetric{}, 5)

	covered := 0
	for _, nd := range tree.NodeDataArray() {
		if nd.IsLeaf {
			covered += nd.IdxEnd - nd.IdxStart
		}
	}
	if covered != n {
		t.Errorf("leaves cover %d points, want %d", covered, n)
	}
}

// --- KNN tests ---

func TestKDTree_KNN_BruteForceMatch(t *testing.T) {
	metrics := []DistanceMetric{
		EuclideanMetric{}, ManhattanMetric{}, ChebyshevMetric{}, MinkowskiMetric{P: 3},
	}
	rng := rand.New(rand.NewSource(42))
	n, dims := 120, 3
	data := randomFlat(rng, n, dims)

	for _, m := range metrics {
		tree := NewKDTree(data, n, dims, m, 7)
		checkTreeKNN(t, tree, data, n, dims, 6, m)
	}
}

func TestKDTree_KNN_HigherDim(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n, dims := 80, 12
	data := randomFlat(rng, n, dims)
	tree := NewKDTree(data, n, dims, EuclideanMetric{}, 4)
	checkTreeKNN(t, tree, data, n, dims, 10, EuclideanMetric{})
}

func TestKDTree_KNN_TiesGoToLowerIndex(t *testing.T) {
	// All points coincide: every neighbor list is 0, 1, 2.
	data := make([]float64, 10*2)
	for i := range data {
		data[i] = 1.5
	}
	tree := NewKDTree(data, 10, 2, EuclideanMetric{}, 2)
	indices, distances := tree.QueryKNN(data, 10, 3, 1)
	for q := range indices {
		for j, idx := range indices[q] {
			if idx != j || distances[q][j] != 0 {
				t.Fatalf("query %d: got %v %v, want [0 1 2] at distance 0", q, indices[q], distances[q])
			}
		}
	}
}

func TestKDTree_KNN_KEqualsN(t *testing.T) {
	data := []float64{0, 0, 1, 0, 0, 1, 5, 5}
	tree := NewKDTree(data, 4, 2, EuclideanMetric{}, 1)
	indices, _ := tree.QueryKNN([]float64{0, 0}, 1, 4, 1)
	if len(indices[0]) != 4 {
		t.Fatalf("got %d neighbors, want 4", len(indices[0]))
	}
	if indices[0][0] != 0 || indices[0][3] != 3 {
		t.Errorf("indices = %v, want 0 first and 3 last", indices[0])
	}
}

func TestKDTree_KNN_WorkersAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n, dims := 150, 4
	data := randomFlat(rng, n, dims)
	tree := NewKDTree(data, n, dims, EuclideanMetric{}, 10)

	seqIdx, seqDist := tree.QueryKNN(data, n, 5, 1)
	parIdx, parDist := tree.QueryKNN(data, n, 5, 4)
	for q := 0; q < n; q++ {
		for j := range seqIdx[q] {
			if seqIdx[q][j] != parIdx[q][j] || seqDist[q][j] != parDist[q][j] {
				t.Fatalf("query %d differs between 1 and 4 workers", q)
			}
		}
	}
}

func TestKDTree_MinRdistPoint_LowerBound(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n, dims := 40, 2
	data := randomFlat(rng, n, dims)
	m := EuclideanMetric{}
	tree := NewKDTree(data, n, dims, m, 3)
	nodes := tree.NodeDataArray()
	idx := tree.IdxArray()

	point := []float64{-1, 4}
	for nodeID, nd := range nodes {
		bound := tree.MinRdistPoint(nodeID, point)
		actual := math.Inf(1)
		for i := nd.IdxStart; i < nd.IdxEnd; i++ {
			p := idx[i]
			actual = math.Min(actual, m.ReducedDistance(point, data[p*dims:(p+1)*dims]))
		}
		if bound > actual+floatTol {
			t.Errorf("node %d: bound %v exceeds actual minimum %v", nodeID, bound, actual)
		}
	}
}

func TestKDTree_EmptyData(t *testing.T) {
	tree := NewKDTree(nil, 0, 2, EuclideanMetric{}, 5)
	indices, distances := tree.QueryKNN([]float64{0, 0}, 1, 3, 1)
	if len(indices) != 1 || len(indices[0]) != 0 || len(distances[0]) != 0 {
		t.Errorf("empty tree returned %v %v, want one empty row", indices, distances)
	}
}

func TestTreeBase_PartitionPlacesMedian(t *testing.T) {
	cases := [][]float64{
		{5, 3, 9, 1, 7, 2, 8},
		{4, 4, 4, 4, 4, 4},
		{2, 1, 2, 1, 2, 1, 2, 3},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	for _, vals := range cases {
		for mid := range vals {
			base := newTreeBase(vals, len(vals), 1, EuclideanMetric{}, 1)
			base.partition(0, len(vals), mid, 0)

			sorted := append([]float64(nil), vals...)
			sort.Float64s(sorted)
			at := vals[base.idxArray[mid]]
			if at != sorted[mid] {
				t.Fatalf("%v mid=%d: got %v, want %v", vals, mid, at, sorted[mid])
			}
			for i, p := range base.idxArray {
				if (i < mid && vals[p] > at) || (i > mid && vals[p] < at) {
					t.Fatalf("%v mid=%d: position %d holds %v on the wrong side of %v", vals, mid, i, vals[p], at)
				}
			}
		}
	}
}
