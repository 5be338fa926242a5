package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/TrevorS/hubness"
	"github.com/spf13/cobra"
)

var (
	scoreTrain         string
	scoreTest          string
	scoreConfig        string
	scoreHeader        bool
	scoreNNeighbors    int
	scoreAlgorithm     string
	scoreMetric        string
	scoreHubness       string
	scoreHubnessParams []string
	scoreContamination string
	scoreNJobs         int
	scoreVerbose       bool
)

// scoreCmd fits LOF on the training CSV and writes one JSON line per scored
// row.
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score rows of a CSV feature matrix",
	Long: `Fit the Local Outlier Factor on --train and print one JSON line per row:
{"index": 0, "score": -1.02, "label": 1}

Without --test the training rows are labeled (outlier detection). With --test
the estimator runs in novelty mode and the test rows are scored against the
training set.

Examples:
  hubness-lof score --train data.csv --n-neighbors 10
  hubness-lof score --train train.csv --test test.csv --algorithm hnsw --hubness mp
  hubness-lof score --train data.csv --hubness ls --hubness-param method=nicdm`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	f := scoreCmd.Flags()
	f.StringVar(&scoreTrain, "train", "", "CSV file with the training feature matrix")
	f.StringVar(&scoreTest, "test", "", "CSV file with rows to score in novelty mode")
	f.StringVarP(&scoreConfig, "config", "c", "", "YAML config file")
	f.BoolVar(&scoreHeader, "header", false, "Skip the first CSV record")
	f.IntVarP(&scoreNNeighbors, "n-neighbors", "k", 20, "Number of neighbors")
	f.StringVarP(&scoreAlgorithm, "algorithm", "a", string(hubness.AlgorithmAuto), "Nearest-neighbor algorithm")
	f.StringVarP(&scoreMetric, "metric", "m", "euclidean", "Distance metric")
	f.StringVar(&scoreHubness, "hubness", "", "Hubness reduction: mp, ls or dsl")
	f.StringArrayVar(&scoreHubnessParams, "hubness-param", nil, "Hubness parameter as key=value (repeatable)")
	f.StringVar(&scoreContamination, "contamination", "auto", "Expected outlier share in (0, 0.5] or auto")
	f.IntVarP(&scoreNJobs, "n-jobs", "j", 0, "Worker count, -1 for all CPUs")
	f.BoolVarP(&scoreVerbose, "verbose", "v", false, "Log debug records")

	_ = scoreCmd.MarkFlagRequired("train")
}

// scoredRow is one line of output.
type scoredRow struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Label int     `json:"label"`
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	train, err := readMatrixFile(scoreTrain, scoreHeader)
	if err != nil {
		return err
	}
	var test [][]float64
	if scoreTest != "" {
		if test, err = readMatrixFile(scoreTest, scoreHeader); err != nil {
			return err
		}
		cfg.Novelty = true
	}

	lof, err := hubness.NewLocalOutlierFactor(cfg)
	if err != nil {
		return err
	}

	var scores []float64
	var labels []int
	if test == nil {
		if labels, err = lof.FitPredict(train); err != nil {
			return err
		}
		scores = lof.NegativeOutlierFactor()
	} else {
		if err := lof.Fit(train); err != nil {
			return err
		}
		if scores, err = lof.ScoreSamples(test); err != nil {
			return err
		}
		if labels, err = lof.Predict(test); err != nil {
			return err
		}
	}

	return writeScores(cmd.OutOrStdout(), scores, labels)
}

// buildConfig starts from --config (or the defaults) and applies the flags
// that were set explicitly.
func buildConfig(cmd *cobra.Command) (hubness.Config, error) {
	cfg := hubness.DefaultConfig()
	if scoreConfig != "" {
		loaded, err := hubness.LoadConfig(scoreConfig)
		if err != nil {
			return hubness.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("n-neighbors") {
		cfg.NNeighbors = scoreNNeighbors
	}
	if flags.Changed("algorithm") {
		cfg.Algorithm = hubness.Algorithm(scoreAlgorithm)
	}
	if flags.Changed("metric") {
		cfg.Metric = scoreMetric
	}
	if flags.Changed("hubness") {
		cfg.Hubness = hubness.HubnessAlgorithm(scoreHubness)
	}
	if flags.Changed("hubness-param") {
		params, err := parseHubnessParams(scoreHubnessParams)
		if err != nil {
			return hubness.Config{}, err
		}
		cfg.HubnessParams = params
	}
	if flags.Changed("contamination") {
		c, err := hubness.ParseContamination(scoreContamination)
		if err != nil {
			return hubness.Config{}, err
		}
		cfg.Contamination = c
	}
	if flags.Changed("n-jobs") {
		cfg.NJobs = scoreNJobs
	}

	level := slog.LevelInfo
	if scoreVerbose {
		level = slog.LevelDebug
		cfg.Verbose = 1
	}
	cfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return cfg, nil
}

// parseHubnessParams turns key=value pairs into typed parameters: integers,
// then floats, then booleans, otherwise strings.
func parseHubnessParams(pairs []string) (hubness.HubnessParams, error) {
	params := hubness.HubnessParams{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("hubness parameter %q must look like key=value", pair)
		}
		value = strings.TrimSpace(value)
		if i, err := strconv.Atoi(value); err == nil {
			params[key] = i
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			params[key] = b
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func writeScores(w io.Writer, scores []float64, labels []int) error {
	enc := json.NewEncoder(w)
	for i := range scores {
		if err := enc.Encode(scoredRow{Index: i, Score: scores[i], Label: labels[i]}); err != nil {
			return err
		}
	}
	return nil
}
