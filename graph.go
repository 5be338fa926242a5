package hubness

import (
	"container/heap"
	"sort"
)

// NeighborGraph holds, for each query row, the indices of its nearest
// reference points and the matching distances. Rows are sorted by ascending
// distance with ties broken by lower index, except between a hubness
// Transform and the re-sort that follows it.
type NeighborGraph struct {
	Indices   [][]int
	Distances [][]float64
}

// Len returns the number of query rows.
func (g *NeighborGraph) Len() int { return len(g.Indices) }

// K returns the smallest row length.
func (g *NeighborGraph) K() int {
	if len(g.Indices) == 0 {
		return 0
	}
	k := len(g.Indices[0])
	for _, row := range g.Indices[1:] {
		k = min(k, len(row))
	}
	return k
}

func (g *NeighborGraph) clone() *NeighborGraph {
	out := &NeighborGraph{
		Indices:   make([][]int, len(g.Indices)),
		Distances: make([][]float64, len(g.Distances)),
	}
	for i := range g.Indices {
		out.Indices[i] = append([]int(nil), g.Indices[i]...)
	}
	for i := range g.Distances {
		out.Distances[i] = append([]float64(nil), g.Distances[i]...)
	}
	return out
}

// truncate keeps the first k entries of every row.
func (g *NeighborGraph) truncate(k int) {
	for i := range g.Indices {
		if len(g.Indices[i]) > k {
			g.Indices[i] = g.Indices[i][:k]
		}
		if i < len(g.Distances) && len(g.Distances[i]) > k {
			g.Distances[i] = g.Distances[i][:k]
		}
	}
}

// excludeSelf removes the entry whose index equals its row number, or the
// first entry when the row doesn't contain itself (duplicates or an
// approximate search can miss self), then keeps at most k entries.
func (g *NeighborGraph) excludeSelf(k int) {
	for i := range g.Indices {
		idx := g.Indices[i]
		if len(idx) == 0 {
			continue
		}
		pos := 0
		for j, v := range idx {
			if v == i {
				pos = j
				break
			}
		}
		g.Indices[i] = append(idx[:pos:pos], idx[pos+1:]...)
		if i < len(g.Distances) {
			d := g.Distances[i]
			g.Distances[i] = append(d[:pos:pos], d[pos+1:]...)
		}
	}
	g.truncate(k)
}

// sortRows orders every row by ascending distance, lower index first on ties.
func (g *NeighborGraph) sortRows() {
	for i := range g.Indices {
		sort.Sort(rowSorter{idx: g.Indices[i], dist: g.Distances[i]})
	}
}

type rowSorter struct {
	idx  []int
	dist []float64
}

func (r rowSorter) Len() int { return len(r.idx) }
func (r rowSorter) Less(i, j int) bool {
	if r.dist[i] == r.dist[j] {
		return r.idx[i] < r.idx[j]
	}
	return r.dist[i] < r.dist[j]
}
func (r rowSorter) Swap(i, j int) {
	r.idx[i], r.idx[j] = r.idx[j], r.idx[i]
	r.dist[i], r.dist[j] = r.dist[j], r.dist[i]
}

// --- bounded max-heap for KNN queries ---

type knnItem struct {
	index int
	dist  float64
}

// worse reports whether a ranks after b: larger distance, or equal distance
// and larger index.
func (a knnItem) worse(b knnItem) bool {
	if a.dist == b.dist {
		return a.index > b.index
	}
	return a.dist > b.dist
}

// knnHeap is a max-heap of knnItem (worst item on top) used as a bounded
// priority queue for KNN queries.
type knnHeap []knnItem

func (h knnHeap) Len() int            { return len(h) }
func (h knnHeap) Less(i, j int) bool  { return h[i].worse(h[j]) } // max-heap
func (h knnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x interface{}) { *h = append(*h, x.(knnItem)) }
func (h *knnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// offer adds item if the heap holds fewer than k items or item beats the
// current worst.
func (h *knnHeap) offer(item knnItem, k int) {
	if h.Len() < k {
		heap.Push(h, item)
	} else if k > 0 && (*h)[0].worse(item) {
		(*h)[0] = item
		heap.Fix(h, 0)
	}
}

// full reports whether the heap holds k items.
func (h *knnHeap) full(k int) bool { return h.Len() >= k }

// worst returns the distance of the current worst item.
func (h *knnHeap) worst() float64 { return (*h)[0].dist }

// drain empties the heap into index and distance slices sorted ascending.
func (h *knnHeap) drain() ([]int, []float64) {
	nResults := h.Len()
	idx := make([]int, nResults)
	dist := make([]float64, nResults)
	for i := nResults - 1; i >= 0; i-- {
		item := heap.Pop(h).(knnItem)
		idx[i] = item.index
		dist[i] = item.dist
	}
	return idx, dist
}

// selectKNN picks the k smallest entries of a distance row.
func selectKNN(row []float64, k int) ([]int, []float64) {
	h := make(knnHeap, 0, k)
	for j, d := range row {
		h.offer(knnItem{index: j, dist: d}, k)
	}
	return h.drain()
}
