package main

import (
	"fmt"

	"github.com/TrevorS/hubness"
	"github.com/spf13/cobra"
)

// algorithmsCmd lists the search backends usable on this machine.
var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the available nearest-neighbor algorithms",
	Args:  cobra.NoArgs,
	RunE:  runAlgorithms,
}

func init() {
	rootCmd.AddCommand(algorithmsCmd)
}

func runAlgorithms(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, a := range hubness.ExactAlgorithms {
		fmt.Fprintf(out, "%s\texact\n", a)
	}
	for _, a := range hubness.AvailableApproximateAlgorithms() {
		fmt.Fprintf(out, "%s\tapproximate\n", a)
	}
	return nil
}
