// Command hubness-lof scores CSV feature matrices with the hubness-aware
// Local Outlier Factor estimator.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
