package hubness

import (
	"math"
	"math/rand"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FalconnBackend is an approximate backend built on cross-polytope locality
// sensitive hashing, the family used by the FALCONN library. A point is
// centered, normalized and rotated by a random Gaussian matrix; its hash is
// the closest signed standard basis vector, i.e. the index of the largest
// absolute coordinate together with its sign. Each table concatenates LSHBits
// such hashes. Bucket members are re-ranked with exact distances.
//
// Reference: "Practical and Optimal LSH for Angular Distance"
// (Andoni et al., 2015)
type FalconnBackend struct {
	backendBase
	hashes    int
	mean      []float64
	rotations [][]*mat.Dense // rotations[table][hash], dims x dims
	tables    []map[uint64][]int
}

func newFalconnBackend(cfg BackendConfig, metric DistanceMetric) *FalconnBackend {
	hashes := cfg.LSHBits
	if hashes == 0 {
		hashes = 1
	}
	return &FalconnBackend{
		backendBase: backendBase{cfg: cfg, metric: metric},
		hashes:      hashes,
	}
}

func (f *FalconnBackend) Algorithm() Algorithm { return AlgorithmFalconnLSH }

// Fit draws the rotations and hashes every reference point.
func (f *FalconnBackend) Fit(X [][]float64) error {
	if err := f.fitData(X); err != nil {
		return err
	}

	f.mean = columnMeans(f.data)
	rng := rand.New(rand.NewSource(f.cfg.Seed))

	nTables := f.cfg.LSHTables
	f.rotations = make([][]*mat.Dense, nTables)
	f.tables = make([]map[uint64][]int, nTables)
	for t := 0; t < nTables; t++ {
		f.rotations[t] = make([]*mat.Dense, f.hashes)
		for h := range f.rotations[t] {
			f.rotations[t][h] = mat.NewDense(f.dims, f.dims, gaussianVector(rng, f.dims*f.dims))
		}
		f.tables[t] = make(map[uint64][]int)
	}

	rotated := mat.NewVecDense(f.dims, nil)
	for i := 0; i < f.n; i++ {
		unit := f.normalize(f.data.RawRowView(i))
		for t := 0; t < nTables; t++ {
			key := f.key(unit, t, rotated)
			f.tables[t][key] = append(f.tables[t][key], i)
		}
	}

	f.debug("falconn index built", "samples", f.n, "tables", nTables, "hashes", f.hashes)
	return nil
}

// KNeighbors hashes every query row and re-ranks its bucket members. Rows
// whose buckets hold fewer than the requested count are topped up by a full
// scan.
func (f *FalconnBackend) KNeighbors(X [][]float64, nCandidates int, returnDistance bool) (*NeighborGraph, error) {
	q, err := f.queryData(X)
	if err != nil {
		return nil, err
	}
	k := f.candidates(nCandidates)
	query := f.rows(q)
	m, _ := query.Dims()

	g := newGraph(m, returnDistance)
	_ = parallelRows(m, f.cfg.NJobs, func(start, end int) error {
		rotated := mat.NewVecDense(f.dims, nil)
		for i := start; i < end; i++ {
			vec := query.RawRowView(i)
			unit := f.normalize(vec)
			var candidates []int
			for t := range f.tables {
				candidates = append(candidates, f.tables[t][f.key(unit, t, rotated)]...)
			}
			f.rankExact(g, i, vec, candidates, k)
		}
		return nil
	})
	return g, nil
}

// normalize centers v on the training mean and scales it to unit length.
// A vector equal to the mean stays zero.
func (f *FalconnBackend) normalize(v []float64) *mat.VecDense {
	centered := vek.Sub(v, f.mean)
	if norm := vek.Norm(centered); norm > 0 {
		floats.Scale(1/norm, centered)
	}
	return mat.NewVecDense(len(centered), centered)
}

// key combines the table's cross-polytope hashes of unit into one bucket key.
func (f *FalconnBackend) key(unit *mat.VecDense, t int, rotated *mat.VecDense) uint64 {
	var key uint64 = 14695981039346656037
	for _, r := range f.rotations[t] {
		rotated.MulVec(r, unit)
		key = (key ^ uint64(crossPolytopeHash(rotated.RawVector().Data))) * 1099511628211
	}
	return key
}

// crossPolytopeHash returns the index of the largest absolute coordinate of
// y, offset by len(y) when that coordinate is negative.
func crossPolytopeHash(y []float64) int {
	abs := make([]float64, len(y))
	for i, v := range y {
		abs[i] = math.Abs(v)
	}
	idx := floats.MaxIdx(abs)
	if y[idx] < 0 {
		return idx + len(y)
	}
	return idx
}
