package tree

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/thromel/pmemtree/pkg/pmem"
)

// Schema is an ordered list of key names a tree dispatches insert/lookup
// requests on, one level of nesting per key. It is process-side state,
// parsed once from the JSON form stored in a Root's SchemaJSON buffer.
type Schema struct {
	Keys []string
}

// NewSchemaFromJSON parses a schema from its canonical JSON array-of-
// strings form, e.g. ["region","site","sensor"].
func NewSchemaFromJSON(r io.Reader) (*Schema, error) {
	var keys []string
	if err := json.NewDecoder(r).Decode(&keys); err != nil {
		return nil, newTreeErr("NewSchemaFromJSON", pmem.KindUserError, fmt.Errorf("decode schema: %w", err))
	}
	if len(keys) == 0 {
		return nil, newTreeErr("NewSchemaFromJSON", pmem.KindUserError, fmt.Errorf("schema has no keys"))
	}
	return &Schema{Keys: keys}, nil
}

// NewSchemaFromFile reads and parses a schema from a JSON file at path,
// the convenience the CLI's --schema flag needs.
func NewSchemaFromFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newTreeErr("NewSchemaFromFile", pmem.KindOpenError, err)
	}
	defer f.Close()
	return NewSchemaFromJSON(f)
}

// ProcessInsertKey validates dict against the schema (exact arity, every
// key present) and returns the (key, value) pairs in schema order, ready
// for Root.AddNode.
func (s *Schema) ProcessInsertKey(dict StringDict) ([]KV, error) {
	if len(dict) != len(s.Keys) {
		return nil, newTreeErr("ProcessInsertKey", pmem.KindUserError,
			fmt.Errorf("dict has %d entries, schema has %d keys", len(dict), len(s.Keys)))
	}

	kvs := make([]KV, 0, len(s.Keys))
	for _, k := range s.Keys {
		v, ok := dict[k]
		if !ok {
			return nil, newTreeErr("ProcessInsertKey", pmem.KindUserError,
				fmt.Errorf("missing required key %q", k))
		}
		kvs = append(kvs, KV{Key: k, Value: v})
	}
	return kvs, nil
}

// JSONStr re-serializes the schema to its canonical JSON list form, for
// storage in a Root's SchemaJSON buffer.
func (s *Schema) JSONStr() (string, error) {
	b, err := json.Marshal(s.Keys)
	if err != nil {
		return "", newTreeErr("JSONStr", pmem.KindUserError, err)
	}
	return string(b), nil
}
