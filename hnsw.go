package hubness

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// HNSWBackend is an approximate backend over a Hierarchical Navigable Small
// World graph. Nodes live on a random number of layers; higher layers hold
// fewer nodes with longer links, so a query descends greedily from the entry
// point and finishes with a beam search of width ef on layer 0.
//
// Level draws come from a generator seeded with BackendConfig.Seed, so
// building the same data twice yields the same graph.
//
// Reference: "Efficient and robust approximate nearest neighbor search using
// Hierarchical Navigable Small World graphs" (Malkov & Yashunin, 2016)
type HNSWBackend struct {
	backendBase
	links      [][][]int // links[node][layer] = neighbor ids
	entryPoint int
	maxLayer   int
	levelMult  float64
	rng        *rand.Rand
}

func newHNSWBackend(cfg BackendConfig, metric DistanceMetric) *HNSWBackend {
	return &HNSWBackend{
		backendBase: backendBase{cfg: cfg, metric: metric},
		maxLayer:    -1,
	}
}

func (h *HNSWBackend) Algorithm() Algorithm { return AlgorithmHNSW }

// Fit builds the graph by inserting the rows of X in order.
func (h *HNSWBackend) Fit(X [][]float64) error {
	if err := h.fitData(X); err != nil {
		return err
	}

	h.rng = rand.New(rand.NewSource(h.cfg.Seed))
	h.levelMult = 1.0 / math.Log(float64(h.cfg.HNSWM))
	h.links = make([][][]int, 0, h.n)
	h.entryPoint = 0
	h.maxLayer = -1

	for id := 0; id < h.n; id++ {
		h.insert(id)
	}

	h.debug("hnsw graph built", "samples", h.n, "layers", h.maxLayer+1, "m", h.cfg.HNSWM)
	return nil
}

// KNeighbors searches the graph for every query row and re-ranks the beam
// with exact distances.
func (h *HNSWBackend) KNeighbors(X [][]float64, nCandidates int, returnDistance bool) (*NeighborGraph, error) {
	q, err := h.queryData(X)
	if err != nil {
		return nil, err
	}
	k := h.candidates(nCandidates)
	query := h.rows(q)
	m, _ := query.Dims()

	g := newGraph(m, returnDistance)
	_ = parallelRows(m, h.cfg.NJobs, func(start, end int) error {
		for i := start; i < end; i++ {
			vec := query.RawRowView(i)
			h.rankExact(g, i, vec, h.search(vec, k), k)
		}
		return nil
	})
	return g, nil
}

// search returns the ids found by a beam search of width max(efSearch, k).
func (h *HNSWBackend) search(query []float64, k int) []int {
	if len(h.links) == 0 {
		return nil
	}

	ep := h.entryPoint
	for lc := h.maxLayer; lc > 0; lc-- {
		ep = h.greedySearchLayer(query, ep, lc)
	}

	ef := max(h.cfg.HNSWEfSearch, k)
	found := h.searchLayer(query, ep, ef, 0)
	ids := make([]int, len(found))
	for i, c := range found {
		ids[i] = c.index
	}
	return ids
}

func (h *HNSWBackend) distTo(query []float64, id int) float64 {
	return h.metric.Distance(query, h.data.RawRowView(id))
}

// randomLevel draws a level from the exponential law floor(-ln(U) * mL).
func (h *HNSWBackend) randomLevel() int {
	return int(math.Floor(-math.Log(1.0-h.rng.Float64()) * h.levelMult))
}

func (h *HNSWBackend) maxConn(layer int) int {
	if layer == 0 {
		return 2 * h.cfg.HNSWM
	}
	return h.cfg.HNSWM
}

func (h *HNSWBackend) insert(id int) {
	level := h.randomLevel()
	h.links = append(h.links, make([][]int, level+1))

	if id == 0 {
		h.entryPoint = 0
		h.maxLayer = level
		return
	}

	vec := h.data.RawRowView(id)
	ep := h.entryPoint
	for lc := h.maxLayer; lc > level; lc-- {
		ep = h.greedySearchLayer(vec, ep, lc)
	}

	for lc := min(level, h.maxLayer); lc >= 0; lc-- {
		found := h.searchLayer(vec, ep, h.cfg.HNSWEfConstruction, lc)

		selected := make([]int, 0, h.cfg.HNSWM)
		for _, c := range found {
			if len(selected) == h.cfg.HNSWM {
				break
			}
			selected = append(selected, c.index)
		}
		h.links[id][lc] = selected

		// Link back, pruning neighbors that exceed their capacity.
		for _, nb := range selected {
			h.links[nb][lc] = append(h.links[nb][lc], id)
			if len(h.links[nb][lc]) > h.maxConn(lc) {
				h.links[nb][lc] = h.prune(nb, h.links[nb][lc], h.maxConn(lc))
			}
		}

		if len(found) > 0 {
			ep = found[0].index
		}
	}

	if level > h.maxLayer {
		h.entryPoint = id
		h.maxLayer = level
	}
}

// greedySearchLayer walks layer lc from ep towards the single closest node.
func (h *HNSWBackend) greedySearchLayer(query []float64, ep, lc int) int {
	best := ep
	bestDist := h.distTo(query, ep)

	for changed := true; changed; {
		changed = false
		if lc >= len(h.links[best]) {
			break
		}
		for _, nb := range h.links[best][lc] {
			if d := h.distTo(query, nb); d < bestDist {
				bestDist = d
				best = nb
				changed = true
			}
		}
	}
	return best
}

// searchLayer runs the ef-bounded beam search on layer lc and returns the
// result set sorted by ascending distance.
func (h *HNSWBackend) searchLayer(query []float64, ep, ef, lc int) []knnItem {
	visited := map[int]struct{}{ep: {}}
	start := knnItem{index: ep, dist: h.distTo(query, ep)}

	frontier := &nearHeap{start}
	results := make(knnHeap, 0, ef)
	results.offer(start, ef)

	for frontier.Len() > 0 {
		c := heap.Pop(frontier).(knnItem)
		if results.full(ef) && c.dist > results.worst() {
			break
		}
		if lc >= len(h.links[c.index]) {
			continue
		}
		for _, nb := range h.links[c.index][lc] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			item := knnItem{index: nb, dist: h.distTo(query, nb)}
			if !results.full(ef) || item.dist < results.worst() {
				heap.Push(frontier, item)
				results.offer(item, ef)
			}
		}
	}

	idx, dist := results.drain()
	out := make([]knnItem, len(idx))
	for i := range idx {
		out[i] = knnItem{index: idx[i], dist: dist[i]}
	}
	return out
}

// prune keeps the maxConn links of id closest to it.
func (h *HNSWBackend) prune(id int, links []int, maxConn int) []int {
	vec := h.data.RawRowView(id)
	scored := make([]knnItem, len(links))
	for i, nb := range links {
		scored[i] = knnItem{index: nb, dist: h.distTo(vec, nb)}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[j].worse(scored[i]) })

	out := make([]int, 0, maxConn)
	for _, s := range scored[:maxConn] {
		out = append(out, s.index)
	}
	return out
}

// nearHeap is a min-heap of knnItem (closest item on top).
type nearHeap []knnItem

func (h nearHeap) Len() int            { return len(h) }
func (h nearHeap) Less(i, j int) bool  { return h[j].worse(h[i]) }
func (h nearHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nearHeap) Push(x interface{}) { *h = append(*h, x.(knnItem)) }
func (h *nearHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
