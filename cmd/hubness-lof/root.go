package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hubness-lof",
	Short: "Hubness-aware Local Outlier Factor",
	Long: `hubness-lof finds outliers in a CSV feature matrix with the Local Outlier
Factor, using exact or approximate nearest-neighbor search and optional
hubness reduction.`,
	SilenceUsage: true,
}
