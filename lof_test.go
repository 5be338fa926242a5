package hubness

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toyData has six clustered points and two outliers at the end.
var toyData = [][]float64{
	{-2, -1}, {-1, -1}, {-1, -2}, {1, 1}, {1, 2}, {2, 1}, {5, 3}, {-4, 2},
}

func newLOF(t *testing.T, mutate func(*Config)) *LocalOutlierFactor {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if mutate != nil {
		mutate(&cfg)
	}
	lof, err := NewLocalOutlierFactor(cfg)
	require.NoError(t, err)
	return lof
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20, cfg.NNeighbors)
	assert.Equal(t, AlgorithmAuto, cfg.Algorithm)
	assert.Equal(t, "euclidean", cfg.Metric)
	assert.Equal(t, 30, cfg.LeafSize)
	assert.Equal(t, HubnessNone, cfg.Hubness)
	assert.Equal(t, ContaminationAuto, cfg.Contamination)
	assert.False(t, cfg.Novelty)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative NNeighbors", func(c *Config) { c.NNeighbors = -1 }},
		{"contamination above 0.5", func(c *Config) { c.Contamination = 0.6 }},
		{"negative contamination", func(c *Config) { c.Contamination = -0.1 }},
		{"NaN contamination", func(c *Config) { c.Contamination = Contamination(math.NaN()) }},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "annoy" }},
		{"unknown metric", func(c *Config) { c.Metric = "hamming" }},
		{"unknown hubness", func(c *Config) { c.Hubness = "csls" }},
		{"dsl with precomputed", func(c *Config) {
			c.Hubness = HubnessDisSimLocal
			c.Metric = MetricPrecomputed
		}},
		{"hnsw with precomputed", func(c *Config) {
			c.Algorithm = AlgorithmHNSW
			c.Metric = MetricPrecomputed
		}},
		{"params without hubness", func(c *Config) { c.HubnessParams = HubnessParams{"k": 3} }},
		{"CandidateMultiplier below 1", func(c *Config) { c.CandidateMultiplier = 0.5 }},
		{"negative n_jobs", func(c *Config) { c.NJobs = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewLocalOutlierFactor(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// lofAlgorithms lists the exact algorithms plus the approximate ones usable
// here. Tests running over it keep the data small enough that every
// candidate set spans the whole reference set.
func lofAlgorithms() []Algorithm {
	return append(append([]Algorithm(nil), ExactAlgorithms...), AvailableApproximateAlgorithms()...)
}

func TestLOF_ToyOutliersScoreLowest(t *testing.T) {
	for _, algo := range lofAlgorithms() {
		t.Run(string(algo), func(t *testing.T) {
			lof := newLOF(t, func(c *Config) {
				c.NNeighbors = 5
				c.Algorithm = algo
			})
			require.NoError(t, lof.Fit(toyData))

			nof := lof.NegativeOutlierFactor()
			require.Len(t, nof, len(toyData))
			inlierMin := nof[0]
			for _, s := range nof[:6] {
				inlierMin = math.Min(inlierMin, s)
			}
			assert.Greater(t, inlierMin, math.Max(nof[6], nof[7]))
			assert.Equal(t, 5, lof.NNeighbors())
			assert.Equal(t, autoOffset, lof.Offset())
		})
	}
}

func TestLOF_ClosedForm(t *testing.T) {
	// d(0,1) = d(0,2) = 1 and d(1,2) = sqrt 2 with k = 2:
	// kdist = [1, r2, r2], lrd = [1/r2, 2/(1+r2), 2/(1+r2)].
	// The query (2,2) sees the same neighborhood as point 0, and (1,1) the
	// same as point 1.
	X := [][]float64{{1, 1}, {1, 2}, {2, 1}}
	r2 := math.Sqrt2
	s0 := 2 * r2 / (1 + r2)
	s1 := (1 + r2) * (1/(4*r2) + 1/(2+2*r2))

	for _, algo := range lofAlgorithms() {
		t.Run(string(algo), func(t *testing.T) {
			lof := newLOF(t, func(c *Config) {
				c.NNeighbors = 2
				c.Algorithm = algo
			})
			require.NoError(t, lof.Fit(X))
			nof := lof.NegativeOutlierFactor()
			assert.InDelta(t, -s0, nof[0], 1e-8)
			assert.InDelta(t, -s1, nof[1], 1e-8)
			assert.InDelta(t, -s1, nof[2], 1e-8)

			novelty := newLOF(t, func(c *Config) {
				c.NNeighbors = 2
				c.Algorithm = algo
				c.Novelty = true
			})
			require.NoError(t, novelty.Fit(X))
			scores, err := novelty.ScoreSamples([][]float64{{2, 2}})
			require.NoError(t, err)
			assert.InDelta(t, -s0, scores[0], 1e-8)
			scores, err = novelty.ScoreSamples([][]float64{{1, 1}})
			require.NoError(t, err)
			assert.InDelta(t, -s1, scores[0], 1e-8)
		})
	}
}

func TestLOF_ScoreSamplesIgnoresContamination(t *testing.T) {
	X := [][]float64{{1, 1}, {1, 2}, {2, 1}}
	test := [][]float64{{2, 2}}
	for _, algo := range lofAlgorithms() {
		t.Run(string(algo), func(t *testing.T) {
			withC := newLOF(t, func(c *Config) {
				c.NNeighbors = 2
				c.Algorithm = algo
				c.Novelty = true
				c.Contamination = 0.1
			})
			auto := newLOF(t, func(c *Config) {
				c.NNeighbors = 2
				c.Algorithm = algo
				c.Novelty = true
			})
			require.NoError(t, withC.Fit(X))
			require.NoError(t, auto.Fit(X))

			s1, err := withC.ScoreSamples(test)
			require.NoError(t, err)
			s2, err := auto.ScoreSamples(test)
			require.NoError(t, err)
			assert.Equal(t, s1, s2)

			for _, lof := range []*LocalOutlierFactor{withC, auto} {
				d, err := lof.DecisionFunction(test)
				require.NoError(t, err)
				assert.InDelta(t, s1[0], d[0]+lof.Offset(), 1e-12)
			}
		})
	}
}

func TestLOF_NegativeOutlierFactorIsCopy(t *testing.T) {
	lof := newLOF(t, func(c *Config) { c.NNeighbors = 2 })
	require.NoError(t, lof.Fit(toyData))
	nof := lof.NegativeOutlierFactor()
	nof[0] = 42
	assert.NotEqual(t, 42.0, lof.NegativeOutlierFactor()[0])
}

func TestLOF_FitPredictContamination(t *testing.T) {
	lof := newLOF(t, func(c *Config) {
		c.NNeighbors = 5
		c.Contamination = 0.25
	})
	labels, err := lof.FitPredict(toyData)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, -1, -1}, labels)
	assert.Equal(t, percentile(lof.NegativeOutlierFactor(), 25), lof.Offset())
}

func TestLOF_FitPredictAutoLabelsToyOutliers(t *testing.T) {
	lof := newLOF(t, func(c *Config) { c.NNeighbors = 5 })
	labels, err := lof.FitPredict(toyData)
	require.NoError(t, err)
	nof := lof.NegativeOutlierFactor()
	for i, label := range labels {
		if nof[i] >= autoOffset {
			assert.Equal(t, 1, label, "point %d", i)
		} else {
			assert.Equal(t, -1, label, "point %d", i)
		}
	}
}

func TestLOF_NoveltyScoring(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	train := gaussianBlob(rng, 100, 2, 0, 1)
	lof := newLOF(t, func(c *Config) {
		c.NNeighbors = 10
		c.Novelty = true
	})
	require.NoError(t, lof.Fit(train))

	test := [][]float64{{0, 0}, {8, 8}}
	scores, err := lof.ScoreSamples(test)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], scores[1])

	decision, err := lof.DecisionFunction(test)
	require.NoError(t, err)
	for i := range scores {
		assert.InDelta(t, scores[i]-lof.Offset(), decision[i], 1e-12)
	}

	labels, err := lof.Predict(test)
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1}, labels)
}

func TestLOF_PredictNilUsesTrainingScores(t *testing.T) {
	lof := newLOF(t, func(c *Config) {
		c.NNeighbors = 5
		c.Novelty = true
		c.Contamination = 0.25
	})
	require.NoError(t, lof.Fit(toyData))
	labels, err := lof.Predict(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, -1, -1}, labels)
}

func TestLOF_MethodAvailability(t *testing.T) {
	outlier := newLOF(t, nil)
	novelty := newLOF(t, func(c *Config) { c.Novelty = true })

	assert.True(t, outlier.Available(MethodFitPredict))
	assert.False(t, novelty.Available(MethodFitPredict))
	for _, m := range []Method{MethodPredict, MethodDecisionFunction, MethodScoreSamples} {
		assert.False(t, outlier.Available(m), m)
		assert.True(t, novelty.Available(m), m)
	}
	assert.False(t, outlier.Available("fit_transform"))

	_, err := novelty.FitPredict(toyData)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	assert.EqualError(t, err, "hubness: fit_predict is not available when novelty=true: "+ErrUnsupportedOperation.Error())

	require.NoError(t, outlier.Fit(toyData))
	_, err = outlier.Predict(toyData)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = outlier.DecisionFunction(toyData)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = outlier.ScoreSamples(toyData)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestLOF_NotFitted(t *testing.T) {
	lof := newLOF(t, func(c *Config) { c.Novelty = true })
	_, err := lof.ScoreSamples(toyData)
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = lof.Predict(nil)
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = lof.DecisionFunction(toyData)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestLOF_ClampsNNeighbors(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	lof, err := NewLocalOutlierFactor(cfg)
	require.NoError(t, err)

	assert.Equal(t, 20, lof.NNeighbors())
	require.NoError(t, lof.Fit(toyData))
	assert.Equal(t, len(toyData)-1, lof.NNeighbors())
	assert.Contains(t, buf.String(), "n_neighbors will be set to (n_samples - 1)")
	assert.Len(t, lof.NegativeOutlierFactor(), len(toyData))
}

func TestLOF_PrecomputedMatchesEuclidean(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	X := randomRows(rng, 6, 4)
	Q := randomRows(rng, 3, 4)

	dist := func(A, B [][]float64) [][]float64 {
		out := make([][]float64, len(A))
		for i := range A {
			out[i] = make([]float64, len(B))
			for j := range B {
				out[i][j] = EuclideanMetric{}.Distance(A[i], B[j])
			}
		}
		return out
	}

	pre := newLOF(t, func(c *Config) {
		c.NNeighbors = 3
		c.Novelty = true
		c.Metric = MetricPrecomputed
	})
	require.NoError(t, pre.Fit(dist(X, X)))
	preTrain, err := pre.Predict(nil)
	require.NoError(t, err)
	preQuery, err := pre.Predict(dist(Q, X))
	require.NoError(t, err)
	preScores, err := pre.ScoreSamples(dist(Q, X))
	require.NoError(t, err)

	for _, algo := range lofAlgorithms() {
		t.Run(string(algo), func(t *testing.T) {
			plain := newLOF(t, func(c *Config) {
				c.NNeighbors = 3
				c.Novelty = true
				c.Algorithm = algo
			})
			require.NoError(t, plain.Fit(X))
			assert.InDeltaSlice(t, plain.NegativeOutlierFactor(), pre.NegativeOutlierFactor(), 1e-9)

			labels, err := plain.Predict(nil)
			require.NoError(t, err)
			assert.Equal(t, preTrain, labels)
			labels, err = plain.Predict(Q)
			require.NoError(t, err)
			assert.Equal(t, preQuery, labels)

			scores, err := plain.ScoreSamples(Q)
			require.NoError(t, err)
			assert.InDeltaSlice(t, preScores, scores, 1e-9)
		})
	}
}

func TestLOF_AlgorithmsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	X := randomRows(rng, 20, 4)

	var want []float64
	for _, algo := range lofAlgorithms() {
		lof := newLOF(t, func(c *Config) {
			c.NNeighbors = 7
			c.Algorithm = algo
		})
		require.NoError(t, lof.Fit(X), algo)
		if want == nil {
			want = lof.NegativeOutlierFactor()
			continue
		}
		assert.InDeltaSlice(t, want, lof.NegativeOutlierFactor(), 1e-9, algo)
	}
}

func TestLOF_RefitReplacesState(t *testing.T) {
	lof := newLOF(t, func(c *Config) { c.NNeighbors = 3 })
	require.NoError(t, lof.Fit(toyData))
	require.NoError(t, lof.Fit(toyData[:5]))
	assert.Len(t, lof.NegativeOutlierFactor(), 5)
	assert.Equal(t, 3, lof.NNeighbors())
}

func TestLOF_UnavailableBackend(t *testing.T) {
	defer stubPlatform(t, func(Algorithm) bool { return false })()

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Algorithm = AlgorithmLSH
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	lof, err := NewLocalOutlierFactor(cfg)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "not available on this platform")

	err = lof.Fit(toyData)
	assert.ErrorIs(t, err, ErrPlatformUnavailable)
}

// --- Outlier detection quality ---

// gaussianBlob draws n points from N(center, sd²) in dims dimensions.
func gaussianBlob(rng *rand.Rand, n, dims int, center, sd float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, dims)
		for j := range rows[i] {
			rows[i][j] = center + sd*rng.NormFloat64()
		}
	}
	return rows
}

// shellPoints draws n points at a radius in [rMin, rMax) around the origin.
func shellPoints(rng *rand.Rand, n, dims int, rMin, rMax float64) [][]float64 {
	rows := gaussianBlob(rng, n, dims, 0, 1)
	for _, row := range rows {
		var norm float64
		for _, v := range row {
			norm += v * v
		}
		scale := (rMin + rng.Float64()*(rMax-rMin)) / math.Sqrt(norm)
		for j := range row {
			row[j] *= scale
		}
	}
	return rows
}

// rocAUC returns the probability that a random outlier scores below a random
// inlier.
func rocAUC(scores []float64, outlier []bool) float64 {
	type pair struct {
		score   float64
		outlier bool
	}
	ps := make([]pair, len(scores))
	for i := range scores {
		ps[i] = pair{scores[i], outlier[i]}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].score < ps[j].score })

	var good, total, outliersSeen float64
	for _, p := range ps {
		if p.outlier {
			outliersSeen++
			continue
		}
		good += outliersSeen
	}
	total = outliersSeen * (float64(len(ps)) - outliersSeen)
	return good / total
}

func TestLOF_DetectsPlantedOutliers(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	X := append(gaussianBlob(rng, 200, 5, 0, 1), shellPoints(rng, 10, 5, 10, 15)...)
	outlier := make([]bool, len(X))
	for i := 200; i < len(X); i++ {
		outlier[i] = true
	}

	tests := []struct {
		hubness HubnessAlgorithm
		minAUC  float64
	}{
		{HubnessNone, 0.9},
		{HubnessMutualProximity, 0.75},
		{HubnessLocalScaling, 0.75},
	}
	for _, tt := range tests {
		t.Run(string(tt.hubness), func(t *testing.T) {
			lof := newLOF(t, func(c *Config) {
				c.NNeighbors = 10
				c.Hubness = tt.hubness
			})
			require.NoError(t, lof.Fit(X))
			auc := rocAUC(lof.NegativeOutlierFactor(), outlier)
			assert.Greater(t, auc, tt.minAUC, "auc=%v", auc)
		})
	}
}

func TestLOF_HubnessMethodsProduceFiniteScores(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	X := randomRows(rng, 60, 6)
	Q := randomRows(rng, 7, 6)

	for _, hub := range []HubnessAlgorithm{HubnessMutualProximity, HubnessLocalScaling, HubnessDisSimLocal} {
		for _, params := range []HubnessParams{nil, hubnessVariant(hub)} {
			lof := newLOF(t, func(c *Config) {
				c.NNeighbors = 8
				c.Novelty = true
				c.Hubness = hub
				c.HubnessParams = params
			})
			require.NoError(t, lof.Fit(X), hub)
			scores, err := lof.ScoreSamples(Q)
			require.NoError(t, err, hub)
			for i, s := range append(lof.NegativeOutlierFactor(), scores...) {
				assert.False(t, math.IsNaN(s) || math.IsInf(s, 0), "%s %v: score %d = %v", hub, params, i, s)
				assert.Less(t, s, 0.0)
			}
		}
	}
}

// hubnessVariant returns the non-default parameters of a reducer.
func hubnessVariant(h HubnessAlgorithm) HubnessParams {
	switch h {
	case HubnessMutualProximity:
		return HubnessParams{"method": "empiric"}
	case HubnessLocalScaling:
		return HubnessParams{"method": "nicdm", "k": 3}
	default:
		return HubnessParams{"k": 3, "squared": false}
	}
}
