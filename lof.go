package hubness

import (
	"fmt"
	"math"
)

// Contamination is the expected share of outliers in the training set. The
// zero value, ContaminationAuto, fixes the threshold at -1.5 as in the
// original LOF paper.
type Contamination float64

// ContaminationAuto selects the fixed offset of -1.5.
const ContaminationAuto Contamination = 0

// autoOffset is the decision threshold used with ContaminationAuto.
const autoOffset = -1.5

// Method names an estimator method whose presence depends on the novelty
// mode.
type Method string

const (
	MethodFitPredict       Method = "fit_predict"
	MethodPredict          Method = "predict"
	MethodDecisionFunction Method = "decision_function"
	MethodScoreSamples     Method = "score_samples"
)

// Config controls the LocalOutlierFactor estimator.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	GraphConfig `yaml:",inline"`

	// Novelty switches the estimator to novelty detection: Predict,
	// DecisionFunction and ScoreSamples score new data and FitPredict is
	// disabled. Without it only FitPredict is available. Default: false.
	Novelty bool `yaml:"novelty"`

	// Contamination is the expected share of outliers, in (0, 0.5], used to
	// place the decision threshold. ContaminationAuto (0) uses -1.5.
	// Default: auto.
	Contamination Contamination `yaml:"contamination"`
}

// DefaultConfig returns a Config with the estimator defaults.
func DefaultConfig() Config {
	g := DefaultGraphConfig()
	g.LeafSize = 30
	return Config{GraphConfig: g, Contamination: ContaminationAuto}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	applyGraphDefaults(&cfg.GraphConfig)
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	c := float64(cfg.Contamination)
	if math.IsNaN(c) || c < 0 || c > 0.5 {
		return fmt.Errorf("hubness: Contamination must be in (0, 0.5] or auto, got %v: %w", c, ErrInvalidConfig)
	}
	return validateGraphConfig(&cfg.GraphConfig)
}

// LocalOutlierFactor is the Local Outlier Factor estimator on top of a
// NeighborGraphBuilder: the degree to which a point's local density falls
// short of the densities of its neighbors.
//
// After Fit, NegativeOutlierFactor holds -LOF for every training point
// (about -1 for inliers, lower for outliers) and Offset holds the decision
// threshold. Which scoring methods are available depends on Config.Novelty;
// disabled methods return an error wrapping ErrUnsupportedOperation.
//
// An estimator is not safe for concurrent use: do not call Fit while another
// method runs on the same instance.
//
// Reference: "LOF: Identifying Density-Based Local Outliers"
// (Breunig et al., SIGMOD 2000)
type LocalOutlierFactor struct {
	cfg     Config
	builder *NeighborGraphBuilder

	fitted bool
	k      int
	kdist  []float64
	lrd    []float64
	nof    []float64
	offset float64
}

// NewLocalOutlierFactor validates cfg and creates the estimator. Selecting an
// approximate algorithm that is unavailable here logs a warning; Fit then
// fails with ErrPlatformUnavailable.
func NewLocalOutlierFactor(cfg Config) (*LocalOutlierFactor, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	builder, err := NewNeighborGraphBuilder(cfg.GraphConfig)
	if err != nil {
		return nil, err
	}
	return &LocalOutlierFactor{cfg: cfg, builder: builder}, nil
}

// Config returns the configuration with defaults applied.
func (l *LocalOutlierFactor) Config() Config { return l.cfg }

// Available reports whether method can be called in the configured mode.
func (l *LocalOutlierFactor) Available(method Method) bool {
	switch method {
	case MethodFitPredict:
		return !l.cfg.Novelty
	case MethodPredict, MethodDecisionFunction, MethodScoreSamples:
		return l.cfg.Novelty
	}
	return false
}

func (l *LocalOutlierFactor) guard(method Method) error {
	if l.Available(method) {
		return nil
	}
	return fmt.Errorf("hubness: %s is not available when novelty=%t: %w", method, l.cfg.Novelty, ErrUnsupportedOperation)
}

// Fit computes the outlier factors of the training set X (or of the square
// distance matrix X with the "precomputed" metric) and the decision offset.
// It replaces the state of any previous Fit.
func (l *LocalOutlierFactor) Fit(X [][]float64) error {
	l.fitted = false
	l.k, l.kdist, l.lrd, l.nof = 0, nil, nil, nil

	if err := l.builder.Fit(X); err != nil {
		return err
	}
	if u, ok := l.builder.Backend().(*UnavailableBackend); ok {
		return fmt.Errorf("hubness: cannot fit LocalOutlierFactor: %w", u.Err())
	}
	g, err := l.builder.KNeighbors(nil, 0)
	if err != nil {
		return err
	}

	k := l.builder.NNeighbors()
	l.kdist = KDistances(g, k)
	l.lrd = LocalReachabilityDensity(g, l.kdist)
	l.nof = NegativeOutlierFactors(g, l.lrd, l.lrd)
	l.k = k

	if l.cfg.Contamination == ContaminationAuto {
		l.offset = autoOffset
	} else {
		l.offset = percentile(l.nof, 100*float64(l.cfg.Contamination))
	}
	l.fitted = true
	return nil
}

// FitPredict fits on X and labels every training point: +1 for inliers,
// -1 for outliers. Only available without novelty.
func (l *LocalOutlierFactor) FitPredict(X [][]float64) ([]int, error) {
	if err := l.guard(MethodFitPredict); err != nil {
		return nil, err
	}
	if err := l.Fit(X); err != nil {
		return nil, err
	}
	return l.labels(l.nof), nil
}

// Predict labels the rows of X (+1 inlier, -1 outlier). A nil X labels the
// training points from their fitted scores. Only available with novelty.
func (l *LocalOutlierFactor) Predict(X [][]float64) ([]int, error) {
	if err := l.guard(MethodPredict); err != nil {
		return nil, err
	}
	if err := l.checkFitted(); err != nil {
		return nil, err
	}
	if X == nil {
		return l.labels(l.nof), nil
	}
	scores, err := l.scoreSamples(X)
	if err != nil {
		return nil, err
	}
	return l.labels(scores), nil
}

// DecisionFunction returns ScoreSamples(X) - Offset: negative values are
// outliers. Only available with novelty.
func (l *LocalOutlierFactor) DecisionFunction(X [][]float64) ([]float64, error) {
	if err := l.guard(MethodDecisionFunction); err != nil {
		return nil, err
	}
	scores, err := l.scoreSamples(X)
	if err != nil {
		return nil, err
	}
	for i := range scores {
		scores[i] -= l.offset
	}
	return scores, nil
}

// ScoreSamples returns -LOF for the rows of X against the training set; rows
// of X are never treated as training points. Only available with novelty.
func (l *LocalOutlierFactor) ScoreSamples(X [][]float64) ([]float64, error) {
	if err := l.guard(MethodScoreSamples); err != nil {
		return nil, err
	}
	return l.scoreSamples(X)
}

func (l *LocalOutlierFactor) scoreSamples(X [][]float64) ([]float64, error) {
	if err := l.checkFitted(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("hubness: no samples to score: %w", ErrEmptyInput)
	}
	g, err := l.builder.KNeighbors(X, l.k)
	if err != nil {
		return nil, err
	}
	lrd := LocalReachabilityDensity(g, l.kdist)
	return NegativeOutlierFactors(g, l.lrd, lrd), nil
}

func (l *LocalOutlierFactor) labels(scores []float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s-l.offset >= 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

func (l *LocalOutlierFactor) checkFitted() error {
	if !l.fitted {
		return fmt.Errorf("hubness: %w: call Fit first", ErrNotFitted)
	}
	return nil
}

// NegativeOutlierFactor returns -LOF of every training point. The slice is a
// copy.
func (l *LocalOutlierFactor) NegativeOutlierFactor() []float64 {
	return append([]float64(nil), l.nof...)
}

// NNeighbors returns the number of neighbors used by the last Fit, after the
// clamp to n_samples - 1.
func (l *LocalOutlierFactor) NNeighbors() int {
	if l.fitted {
		return l.k
	}
	return l.builder.NNeighbors()
}

// Offset returns the decision threshold on ScoreSamples.
func (l *LocalOutlierFactor) Offset() float64 { return l.offset }
