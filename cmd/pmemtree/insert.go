package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInsertCommand() *cobra.Command {
	var (
		key  string
		data string
	)

	cmd := &cobra.Command{
		Use:   "insert POOL_PATH --key '<json object>' --data PATH",
		Short: "Insert a leaf at the keychain named by --key, with --data as its blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			if data == "" {
				return fmt.Errorf("--data is required")
			}

			dict, err := parseDict(key)
			if err != nil {
				return err
			}
			blob, err := readBlob(data)
			if err != nil {
				return err
			}

			pool, obj, err := openTree(args[0])
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := obj.AddNode(dict, blob); err != nil {
				return err
			}

			fmt.Printf("inserted %v (%d bytes)\n", dict, len(blob))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "JSON object of schema key to value (required)")
	cmd.Flags().StringVar(&data, "data", "", "path to the leaf's blob contents (required)")

	return cmd
}
