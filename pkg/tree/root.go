package tree

import (
	"fmt"
	"unsafe"

	"github.com/thromel/pmemtree/pkg/pmem"
)

// rootTypeID is the persistent type id for Root.
const rootTypeID uint64 = pmem.RootTypeID + 101

// canonicalTag is the fixed 8-byte layout tag every valid Root carries,
// the tree analogue of a pool's own layout name.
const canonicalTag = "999TREE9"

func init() {
	pmem.RegisterType[Root](rootTypeID)
}

// Root is the entry point of a persisted tree: a layout tag, a handle to
// the tree's serialized schema, and a handle to the top tree node.
// Root is meant to be used as a pool's root object via pmem.SetRoot/Root.
type Root struct {
	Tag        pmem.FixedString8
	SchemaJSON pmem.Handle[pmem.BufferData]
	RootNode   Handle
}

type rootConstructor struct {
	pmem.Base[Root]
	schemaJSON string
}

func (c rootConstructor) Build(obj *Root) error {
	pool, err := pmem.PoolFromAddr(unsafe.Pointer(obj))
	if err != nil {
		return err
	}
	buf, err := pmem.NewBuffer(pool, []byte(c.schemaJSON))
	if err != nil {
		return err
	}
	obj.Tag = pmem.NewFixedString8(canonicalTag)
	obj.SchemaJSON = buf
	return nil
}

// NewRoot allocates a fresh Root in p, storing schemaJSON as its schema
// buffer, with no tree node yet.
func NewRoot(p *pmem.Pool, schemaJSON string) (pmem.Handle[Root], error) {
	return pmem.Allocate[Root](p, rootConstructor{schemaJSON: schemaJSON})
}

// Valid reports whether r carries the canonical tag and a non-null
// schema handle.
func (r *Root) Valid() bool {
	return r.Tag.String() == canonicalTag && !r.SchemaJSON.IsNull()
}

// rootNodeFieldOffset locates r.RootNode within r, so a write to it can
// be persisted by byte range rather than persisting all of Root.
func (r *Root) rootNodeFieldOffset(p *pmem.Pool) uint64 {
	return p.OffsetOf(unsafe.Pointer(&r.RootNode))
}

// AddNode adds blob under the ordered keychain. If the tree is empty, a
// fresh nested chain becomes the root node using keychain[0].Key as the
// dispatch key; otherwise the existing root node's Key must match
// keychain[0].Key and the call delegates to Node.AddNode.
func (r *Root) AddNode(p *pmem.Pool, keychain []KV, blob []byte) error {
	if len(keychain) == 0 {
		return newTreeErr("Root.AddNode", pmem.KindUserError, fmt.Errorf("keychain is empty"))
	}

	if r.RootNode.IsNull() {
		nested, err := NewNested(p, "", keychain, blob)
		if err != nil {
			return err
		}
		r.RootNode = nested
		return p.PersistRange(r.rootNodeFieldOffset(p), 16)
	}

	rootNode, err := r.RootNode.Get()
	if err != nil {
		return err
	}
	if rootNode.KeyName() != keychain[0].Key {
		return newTreeErr("Root.AddNode", pmem.KindUserError,
			fmt.Errorf("keychain key %q does not match existing root key %q", keychain[0].Key, rootNode.KeyName()))
	}

	return AddNode(p, r.RootNode, keychain, blob)
}
