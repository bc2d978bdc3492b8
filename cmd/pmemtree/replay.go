package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thromel/pmemtree/pkg/tree"
)

// replayRecord is one entry of the batch file --request points replay at:
// operation is "insert" or "lookup"; data is a path to the blob file,
// relative to the batch file's own directory, and only meaningful for
// "insert".
type replayRecord struct {
	Operation string            `json:"operation"`
	Key       map[string]string `json:"key"`
	Data      string            `json:"data"`
}

func newReplayCommand() *cobra.Command {
	var request string

	cmd := &cobra.Command{
		Use:   "replay POOL_PATH --request PATH",
		Short: "Replay a JSON batch of {operation,key,data} records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if request == "" {
				return fmt.Errorf("--request is required")
			}

			raw, err := os.ReadFile(request)
			if err != nil {
				return err
			}
			var records []replayRecord
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("invalid batch file %q: %w", request, err)
			}
			batchDir := filepath.Dir(request)

			pool, obj, err := openTree(args[0])
			if err != nil {
				return err
			}
			defer pool.Close()

			for i, rec := range records {
				dict := tree.StringDict(rec.Key)
				switch rec.Operation {
				case "insert":
					dataPath := rec.Data
					if !filepath.IsAbs(dataPath) {
						dataPath = filepath.Join(batchDir, dataPath)
					}
					blob, err := readBlob(dataPath)
					if err != nil {
						return fmt.Errorf("record %d: %w", i, err)
					}
					if err := obj.AddNode(dict, blob); err != nil {
						return fmt.Errorf("record %d: %w", i, err)
					}
					fmt.Printf("record %d: inserted %v\n", i, rec.Key)
				case "lookup":
					hits, err := obj.Lookup(dict)
					if err != nil {
						return fmt.Errorf("record %d: %w", i, err)
					}
					fmt.Printf("record %d: %d match(es)\n", i, len(hits))
				default:
					return fmt.Errorf("record %d: unknown operation %q", i, rec.Operation)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&request, "request", "", "path to a JSON list of {operation,key,data} records (required)")

	return cmd
}
