package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newLookupCommand() *cobra.Command {
	var request string

	cmd := &cobra.Command{
		Use:   "lookup POOL_PATH --request '<json object>'",
		Short: "Find every leaf matching --request and print its blob contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if request == "" {
				return fmt.Errorf("--request is required")
			}
			dict, err := parseDict(request)
			if err != nil {
				return err
			}

			pool, obj, err := openTree(args[0])
			if err != nil {
				return err
			}
			defer pool.Close()

			hits, err := obj.Lookup(dict)
			if err != nil {
				return err
			}

			for _, h := range hits {
				n, err := h.Get()
				if err != nil {
					return err
				}
				buf, err := n.Data.Get()
				if err != nil {
					return err
				}
				fmt.Printf("--- %s ---\n", n.GetValue())
				os.Stdout.Write(buf.Data())
				fmt.Println()
			}
			fmt.Fprintf(os.Stderr, "%d match(es)\n", len(hits))
			return nil
		},
	}

	cmd.Flags().StringVar(&request, "request", "", "JSON object of schema key to value to constrain the search (required)")

	return cmd
}
