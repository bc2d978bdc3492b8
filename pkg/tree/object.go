package tree

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/thromel/pmemtree/pkg/pmem"
	"github.com/thromel/pmemtree/pkg/pmem/metrics"
)

// Object is a process-side wrapper around an open Root: it holds the
// pool, the root handle, and the schema parsed from the root's stored
// JSON, so callers work in terms of StringDict requests rather than
// raw keychains.
type Object struct {
	pool   *pmem.Pool
	root   pmem.Handle[Root]
	schema *Schema
	log    logrus.FieldLogger
}

// defaultLog is the fallback logger every Object uses unless WithLogger
// overrides it at construction time.
var defaultLog logrus.FieldLogger = logrus.StandardLogger()

// WithLogger overrides the package-level default logger used by Open and
// Create, for callers embedding this package in a larger application
// with its own logging configuration.
func WithLogger(l logrus.FieldLogger) { defaultLog = l }

// Create allocates a fresh Root in pool (storing schema's canonical JSON
// form) and sets it as pool's root object, returning an Object ready for
// AddNode/Lookup.
func Create(pool *pmem.Pool, schema *Schema) (*Object, error) {
	schemaJSON, err := schema.JSONStr()
	if err != nil {
		return nil, err
	}

	h, err := NewRoot(pool, schemaJSON)
	if err != nil {
		return nil, err
	}
	if err := pmem.SetRoot[Root](pool, h); err != nil {
		return nil, err
	}

	return &Object{pool: pool, root: h, schema: schema, log: defaultLog.WithField("component", "tree.object")}, nil
}

// Open resolves pool's root object as a Root, parses its stored schema,
// and returns an Object wrapping it.
func Open(pool *pmem.Pool) (*Object, error) {
	h, err := pmem.Root[Root](pool)
	if err != nil {
		return nil, err
	}
	r, err := h.Get()
	if err != nil {
		return nil, err
	}
	if !r.Valid() {
		return nil, newTreeErr("Open", pmem.KindOpenError, fmt.Errorf("root object is not a valid tree root"))
	}

	schemaBuf, err := r.SchemaJSON.Get()
	if err != nil {
		return nil, err
	}
	schema, err := NewSchemaFromJSON(bytes.NewReader(schemaBuf.Data()))
	if err != nil {
		return nil, err
	}

	return &Object{pool: pool, root: h, schema: schema, log: defaultLog.WithField("component", "tree.object")}, nil
}

// AddNode validates dict against the schema and inserts blob at the
// resulting keychain.
func (o *Object) AddNode(dict StringDict, blob []byte) error {
	kv, err := o.schema.ProcessInsertKey(dict)
	if err != nil {
		return err
	}
	r, err := o.root.Get()
	if err != nil {
		return err
	}
	o.log.WithField("keys", kv).Debug("add node")
	if err := r.AddNode(o.pool, kv, blob); err != nil {
		return err
	}
	metrics.IncTreeInsert()
	return nil
}

// Lookup returns every leaf matching dict, in insertion order,
// depth-first. dict is not checked against the schema: Node.Lookup only
// constrains on schema keys present in the request, so a partial dict
// matches more leaves and a key the schema does not name is ignored.
func (o *Object) Lookup(dict StringDict) ([]Handle, error) {
	metrics.IncTreeLookup()
	r, err := o.root.Get()
	if err != nil {
		return nil, err
	}
	if r.RootNode.IsNull() {
		return nil, nil
	}
	return Lookup(o.pool, r.RootNode, StringDict(dict))
}

// PrintTree writes an indented dump of the whole tree to w.
func (o *Object) PrintTree(w io.Writer) error {
	r, err := o.root.Get()
	if err != nil {
		return err
	}
	if r.RootNode.IsNull() {
		fmt.Fprintln(w, "{}")
		return nil
	}
	return PrintTree(o.pool, w, r.RootNode, 0)
}

// Stats summarizes a tree for the CLI's stats subcommand and metrics.
type Stats struct {
	NodeCount uint64
	SchemaLen int
}

// Stats computes the current tree's node count and schema length.
func (o *Object) Stats() (Stats, error) {
	r, err := o.root.Get()
	if err != nil {
		return Stats{}, err
	}
	if r.RootNode.IsNull() {
		return Stats{SchemaLen: len(o.schema.Keys)}, nil
	}
	count, err := NodeCount(o.pool, r.RootNode)
	if err != nil {
		return Stats{}, err
	}
	return Stats{NodeCount: count, SchemaLen: len(o.schema.Keys)}, nil
}

