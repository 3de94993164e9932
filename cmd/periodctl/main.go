// periodctl validates notification period definitions and evaluates them offline.
//
// Usage:
//
//	periodctl validate -f periods.yaml
//	periodctl check -f periods.yaml --at 2024-03-04T12:00:00Z
//	periodctl next -f periods.yaml --from 2024-03-09T00:00:00Z --within 72h
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:   "periodctl",
		Short: "Validate and evaluate notification periods",
		Long: `periodctl reads a list of periods (YAML or JSON, the same shape the API
accepts) and answers whether a notification restricted to them may fire.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.file, "filename", "f", "", "Periods file, YAML or JSON (\"-\" reads stdin)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(validateCmd(&opts))
	rootCmd.AddCommand(checkCmd(&opts))
	rootCmd.AddCommand(nextCmd(&opts))

	return rootCmd
}
