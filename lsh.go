package hubness

import (
	"math/bits"
	"math/rand"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LSHBackend is an approximate backend built on random-hyperplane
// (SimHash-style) locality sensitive hashing. Points are centered on the
// training mean and hashed into LSHTables tables with LSHBits sign bits each.
// A query collects the members of its buckets; when they don't reach the
// requested count, the points closest in summed Hamming distance are added.
// Candidates are re-ranked with exact distances.
type LSHBackend struct {
	backendBase
	bits   int
	mean   []float64
	planes [][][]float64 // planes[table][bit] = hyperplane normal
	sigs   [][]uint64    // sigs[table][point]
	tables []map[uint64][]int
}

func newLSHBackend(cfg BackendConfig, metric DistanceMetric) *LSHBackend {
	nBits := cfg.LSHBits
	if nBits == 0 {
		nBits = 8
	}
	return &LSHBackend{
		backendBase: backendBase{cfg: cfg, metric: metric},
		bits:        nBits,
	}
}

func (l *LSHBackend) Algorithm() Algorithm { return AlgorithmLSH }

// Fit draws the hyperplanes and hashes every reference point.
func (l *LSHBackend) Fit(X [][]float64) error {
	if err := l.fitData(X); err != nil {
		return err
	}

	l.mean = columnMeans(l.data)
	rng := rand.New(rand.NewSource(l.cfg.Seed))

	nTables := l.cfg.LSHTables
	l.planes = make([][][]float64, nTables)
	l.sigs = make([][]uint64, nTables)
	l.tables = make([]map[uint64][]int, nTables)
	for t := 0; t < nTables; t++ {
		l.planes[t] = make([][]float64, l.bits)
		for b := range l.planes[t] {
			l.planes[t][b] = gaussianVector(rng, l.dims)
		}
		l.sigs[t] = make([]uint64, l.n)
		l.tables[t] = make(map[uint64][]int)
	}

	for i := 0; i < l.n; i++ {
		centered := vek.Sub(l.data.RawRowView(i), l.mean)
		for t := 0; t < nTables; t++ {
			sig := l.signature(centered, t)
			l.sigs[t][i] = sig
			l.tables[t][sig] = append(l.tables[t][sig], i)
		}
	}

	l.debug("lsh index built", "samples", l.n, "tables", nTables, "bits", l.bits)
	return nil
}

// KNeighbors hashes every query row and re-ranks its bucket members.
func (l *LSHBackend) KNeighbors(X [][]float64, nCandidates int, returnDistance bool) (*NeighborGraph, error) {
	q, err := l.queryData(X)
	if err != nil {
		return nil, err
	}
	k := l.candidates(nCandidates)
	query := l.rows(q)
	m, _ := query.Dims()

	g := newGraph(m, returnDistance)
	_ = parallelRows(m, l.cfg.NJobs, func(start, end int) error {
		sigs := make([]uint64, len(l.tables))
		for i := start; i < end; i++ {
			vec := query.RawRowView(i)
			centered := vek.Sub(vec, l.mean)
			for t := range l.tables {
				sigs[t] = l.signature(centered, t)
			}
			l.rankExact(g, i, vec, l.collect(sigs, k), k)
		}
		return nil
	})
	return g, nil
}

// signature hashes a centered vector against the hyperplanes of table t.
func (l *LSHBackend) signature(centered []float64, t int) uint64 {
	var sig uint64
	for b, plane := range l.planes[t] {
		if vek.Dot(centered, plane) >= 0 {
			sig |= 1 << uint(b)
		}
	}
	return sig
}

// collect returns the distinct members of the query's buckets, extended with
// the nearest points by summed Hamming distance when fewer than k were found.
func (l *LSHBackend) collect(sigs []uint64, k int) []int {
	seen := make(map[int]struct{})
	var out []int
	for t, sig := range sigs {
		for _, id := range l.tables[t][sig] {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	if len(out) >= k {
		return out
	}

	h := make(knnHeap, 0, k)
	for id := 0; id < l.n; id++ {
		if _, ok := seen[id]; ok {
			continue
		}
		var ham int
		for t, sig := range sigs {
			ham += bits.OnesCount64(sig ^ l.sigs[t][id])
		}
		h.offer(knnItem{index: id, dist: float64(ham)}, k-len(out))
	}
	extra, _ := h.drain()
	return append(out, extra...)
}

// columnMeans returns the per-feature mean of d.
func columnMeans(d *mat.Dense) []float64 {
	r, c := d.Dims()
	means := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, d)
		means[j] = stat.Mean(col, nil)
	}
	return means
}

func gaussianVector(rng *rand.Rand, dims int) []float64 {
	v := make([]float64, dims)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v
}
