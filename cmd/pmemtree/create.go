package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thromel/pmemtree/pkg/pmem"
	"github.com/thromel/pmemtree/pkg/tree"
)

func newCreateCommand() *cobra.Command {
	var (
		size       int64
		schemaPath string
		layout     string
	)

	cmd := &cobra.Command{
		Use:   "create POOL_PATH --schema PATH",
		Short: "Create a new pool with a schema-driven tree root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolPath := args[0]
			if schemaPath == "" {
				return fmt.Errorf("--schema is required")
			}

			schema, err := tree.NewSchemaFromFile(schemaPath)
			if err != nil {
				return err
			}

			pool, err := pmem.Create(poolPath, &pmem.Config{Size: size, Layout: layout})
			if err != nil {
				return err
			}
			defer pool.Close()

			if _, err := tree.Create(pool, schema); err != nil {
				return err
			}

			fmt.Printf("created %s (%d bytes, schema %v)\n", poolPath, size, schema.Keys)
			return nil
		},
	}

	cmd.Flags().Int64Var(&size, "size", pmem.DefaultPoolSize, "pool file size in bytes")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to a JSON list of schema key names (required)")
	cmd.Flags().StringVar(&layout, "layout", "pmemtree", "layout tag stored in the pool header")

	return cmd
}
