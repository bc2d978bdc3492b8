package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/thromel/pmemtree/pkg/pmem"
	"github.com/thromel/pmemtree/pkg/tree"
)

// openTree opens an existing pool file at path and resolves its tree
// object, for every subcommand but create.
func openTree(path string) (*pmem.Pool, *tree.Object, error) {
	pool, err := pmem.Open(path, pmem.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}
	obj, err := tree.Open(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, obj, nil
}

// parseDict parses a `--key`/`--request` flag value, a JSON object of
// string to string, into a StringDict.
func parseDict(raw string) (tree.StringDict, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON object %q: %w", raw, err)
	}
	return tree.StringDict(m), nil
}

// readBlob reads the file at path in full, the --data argument to insert
// and the per-record data path in a replay batch.
func readBlob(path string) ([]byte, error) {
	return os.ReadFile(path)
}
