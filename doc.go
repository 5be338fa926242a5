// Package hubness implements hubness-aware k-nearest-neighbor search and the
// Local Outlier Factor (LOF) estimator built on top of it.
//
// In high-dimensional data a few points ("hubs") show up in the neighbor
// lists of many others, which biases density estimates. The package retrieves
// k-nearest neighbors with an exact or approximate backend, optionally
// rescales the neighbor distances with a hubness reduction method, and feeds
// the resulting neighbor graph into LOF.
//
// Basic usage:
//
//	cfg := hubness.DefaultConfig()
//	cfg.NNeighbors = 10
//	cfg.Hubness = hubness.HubnessMutualProximity
//	lof, err := hubness.NewLocalOutlierFactor(cfg)
//	labels, err := lof.FitPredict(data)
//	// labels[i] is +1 for inliers and -1 for outliers
//	// lof.NegativeOutlierFactor()[i] is the training score (lower = more anomalous)
//
// For novelty detection on unseen data set Config.Novelty and use Predict,
// DecisionFunction and ScoreSamples after Fit.
//
// # Search backends
//
// Config.Algorithm selects the neighbor search backend:
//
//	cfg.Algorithm = hubness.AlgorithmAuto       // KD-tree, ball tree or brute force
//	cfg.Algorithm = hubness.AlgorithmKDTree     // exact, axis-aligned metrics
//	cfg.Algorithm = hubness.AlgorithmBallTree   // exact, any true metric
//	cfg.Algorithm = hubness.AlgorithmBrute      // exact, all pairs; required for "precomputed"
//	cfg.Algorithm = hubness.AlgorithmHNSW       // approximate, navigable small world graph
//	cfg.Algorithm = hubness.AlgorithmLSH        // approximate, random hyperplane hashing
//	cfg.Algorithm = hubness.AlgorithmFalconnLSH // approximate, cross-polytope hashing
//
// Approximate backends that AvailableApproximateAlgorithms does not report for
// the current platform are replaced by a placeholder that logs a warning and
// returns no results.
//
// # Hubness reduction
//
// Config.Hubness selects "mp" (mutual proximity), "ls" (local scaling) or
// "dsl" (DisSimLocal). Method-specific settings go in Config.HubnessParams,
// e.g. {"method": "empiric"} for mutual proximity or {"method": "nicdm"} for
// local scaling.
//
// # Concurrency
//
// Estimators are not safe for concurrent use: callers must not run Fit
// concurrently with queries on the same instance. Distinct instances are
// independent. Config.NJobs parallelizes the neighbor search over query rows.
package hubness
