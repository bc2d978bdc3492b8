package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newPrintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print POOL_PATH",
		Short: "Dump the whole tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, obj, err := openTree(args[0])
			if err != nil {
				return err
			}
			defer pool.Close()

			return obj.PrintTree(os.Stdout)
		},
	}
	return cmd
}
