// Command pmemtree is the CLI surface over pkg/pmem and pkg/tree: create a
// pool, insert schema-keyed leaves, look them up, replay a batch of
// operations from a file, print the whole tree, or dump pool/tree stats.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "pmemtree",
		Short:   "Crash-consistent schema-driven trees over a memory-mapped object pool",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newCreateCommand(),
		newInsertCommand(),
		newPrintCommand(),
		newLookupCommand(),
		newReplayCommand(),
		newStatsCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
