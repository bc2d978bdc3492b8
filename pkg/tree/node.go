// Package tree implements the hierarchical, schema-driven lookup tree
// built on top of pkg/pmem's persistent primitives.
package tree

import (
	"fmt"
	"io"
	"strings"
	"unsafe"

	"github.com/thromel/pmemtree/pkg/pmem"
)

// nodeTypeID is the persistent type id for Node.
const nodeTypeID uint64 = pmem.RootTypeID + 100

func init() {
	pmem.RegisterType[Node](nodeTypeID)
}

// Node is one node of the tree: either a leaf carrying a data blob, or a
// branch dispatching on Key to its Children. Exactly one of Children or
// Data is populated, matching the original TreeNode layout.
type Node struct {
	Children pmem.Vector[Node]
	Data     pmem.Handle[pmem.BufferData]
	Value    pmem.FixedString12
	Key      pmem.FixedString12
}

// Handle is a handle to a persisted Node.
type Handle = pmem.Handle[Node]

// KV is one schema key name paired with the request value addressed
// under it, in schema order — the element type TreeSchema.ProcessInsertKey
// returns and AddNode/Lookup consume.
type KV struct {
	Key   string
	Value string
}

// StringDict is a flat request/insert dict keyed by schema key name.
type StringDict map[string]string

type leafConstructor struct {
	pmem.Base[Node]
	value string
	blob  []byte
}

func (c leafConstructor) Build(obj *Node) error {
	pool, err := pmem.PoolFromAddr(unsafe.Pointer(obj))
	if err != nil {
		return err
	}
	buf, err := pmem.NewBuffer(pool, c.blob)
	if err != nil {
		return err
	}
	obj.Data = buf
	obj.Value = pmem.NewFixedString12(c.value)
	return nil
}

type branchConstructor struct {
	pmem.Base[Node]
	key   string
	value string
}

func (c branchConstructor) Build(obj *Node) error {
	obj.Key = pmem.NewFixedString12(c.key)
	obj.Value = pmem.NewFixedString12(c.value)
	return nil
}

// NewLeaf allocates a leaf node in p: value is the label its parent will
// address it by, blob is copied into a fresh Buffer.
func NewLeaf(p *pmem.Pool, value string, blob []byte) (Handle, error) {
	return pmem.Allocate[Node](p, leafConstructor{value: value, blob: blob})
}

// NewNested builds the leaf first, then walks keychain in reverse,
// allocating one branch node per remaining step and pushing the
// previously built node into the new branch's Children, returning the
// topmost node addressed by value.
func NewNested(p *pmem.Pool, value string, keychain []KV, blob []byte) (Handle, error) {
	if len(keychain) == 0 {
		return NewLeaf(p, value, blob)
	}

	child, err := NewNested(p, keychain[0].Value, keychain[1:], blob)
	if err != nil {
		return Handle{}, err
	}

	branch, err := pmem.Allocate[Node](p, branchConstructor{key: keychain[0].Key, value: value})
	if err != nil {
		return Handle{}, err
	}
	bn, err := branch.Get()
	if err != nil {
		return Handle{}, err
	}
	if err := pmem.VectorPushBackHandle[Node](p, &bn.Children, child); err != nil {
		return Handle{}, err
	}

	return branch, nil
}

// Leaf reports whether this node is a leaf (has data, not children).
func (n *Node) Leaf() bool { return !n.Data.IsNull() }

// KeyName returns the schema key name this node dispatches its children on.
func (n *Node) KeyName() string { return n.Key.String() }

// GetValue returns the label a parent addresses this node by.
func (n *Node) GetValue() string { return n.Value.String() }

// DataSize returns the byte size of this leaf's data blob, or 0 for a branch.
func (n *Node) DataSize() (uint64, error) {
	if n.Data.IsNull() {
		return 0, nil
	}
	buf, err := n.Data.Get()
	if err != nil {
		return 0, err
	}
	return buf.Length, nil
}

// NodeCount returns the number of nodes in the subtree rooted at n,
// including n itself.
func NodeCount(p *pmem.Pool, h Handle) (uint64, error) {
	n, err := h.Get()
	if err != nil {
		return 0, err
	}
	count := uint64(1)
	size, err := pmem.VectorLen[Node](p, &n.Children)
	if err != nil {
		return 0, err
	}
	for i := uint64(0); i < size; i++ {
		child, err := pmem.VectorAt[Node](n.Children, i)
		if err != nil {
			return 0, err
		}
		sub, err := NodeCount(p, child)
		if err != nil {
			return 0, err
		}
		count += sub
	}
	return count, nil
}

// AddNode implements TreeNode::add_node: h must not be a leaf, keychain
// must be non-empty with keychain[0].Key matching h's own Key. It finds
// (or builds) the child addressed by keychain[0].Value and recurses or
// terminates there.
func AddNode(p *pmem.Pool, h Handle, keychain []KV, blob []byte) error {
	n, err := h.Get()
	if err != nil {
		return err
	}
	if n.Leaf() {
		return newTreeErr("AddNode", pmem.KindLeafExists, fmt.Errorf("cannot add a child under an existing leaf"))
	}
	if len(keychain) == 0 {
		return newTreeErr("AddNode", pmem.KindUserError, fmt.Errorf("keychain is empty"))
	}
	if keychain[0].Key != n.KeyName() {
		return newTreeErr("AddNode", pmem.KindUserError,
			fmt.Errorf("keychain key %q does not match node key %q", keychain[0].Key, n.KeyName()))
	}

	size, err := pmem.VectorLen[Node](p, &n.Children)
	if err != nil {
		return err
	}
	for i := uint64(0); i < size; i++ {
		child, err := pmem.VectorAt[Node](n.Children, i)
		if err != nil {
			return err
		}
		cn, err := child.Get()
		if err != nil {
			return err
		}
		if cn.GetValue() != keychain[0].Value {
			continue
		}
		if cn.Leaf() {
			if len(keychain) == 1 {
				return newTreeErr("AddNode", pmem.KindLeafExists,
					fmt.Errorf("leaf already exists for value %q", keychain[0].Value))
			}
			return newTreeErr("AddNode", pmem.KindLeafExists,
				fmt.Errorf("value %q already resolves to a leaf, cannot descend further", keychain[0].Value))
		}
		return AddNode(p, child, keychain[1:], blob)
	}

	newChild, err := NewNested(p, keychain[0].Value, keychain[1:], blob)
	if err != nil {
		return err
	}
	return pmem.VectorPushBackHandle[Node](p, &n.Children, newChild)
}

// Lookup implements TreeNode::lookup: if n.Key is present in request,
// only children whose Value matches request[n.Key] are considered,
// otherwise every child is considered. Each considered leaf child is
// emitted directly; each considered branch child is recursed into.
// Results are in insertion order, depth-first.
func Lookup(p *pmem.Pool, h Handle, request StringDict) ([]Handle, error) {
	n, err := h.Get()
	if err != nil {
		return nil, err
	}

	wantValue, constrained := request[n.KeyName()]

	size, err := pmem.VectorLen[Node](p, &n.Children)
	if err != nil {
		return nil, err
	}

	var results []Handle
	for i := uint64(0); i < size; i++ {
		child, err := pmem.VectorAt[Node](n.Children, i)
		if err != nil {
			return nil, err
		}
		cn, err := child.Get()
		if err != nil {
			return nil, err
		}
		if constrained && cn.GetValue() != wantValue {
			continue
		}
		if cn.Leaf() {
			results = append(results, child)
			continue
		}
		sub, err := Lookup(p, child, request)
		if err != nil {
			return nil, err
		}
		results = append(results, sub...)
	}

	return results, nil
}

// PrintTree writes an indented, JSON-like dump of the subtree rooted at
// h to w, for debugging and the CLI's print command.
func PrintTree(p *pmem.Pool, w io.Writer, h Handle, pad int) error {
	n, err := h.Get()
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", pad)

	if n.Leaf() {
		size, err := n.DataSize()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s{ \"value\": %q, \"data\": \"%d bytes\" }\n", indent, n.GetValue(), size)
		return nil
	}

	fmt.Fprintf(w, "%s{ \"value\": %q, \"key\": %q, \"children\": [\n", indent, n.GetValue(), n.KeyName())
	size, err := pmem.VectorLen[Node](p, &n.Children)
	if err != nil {
		return err
	}
	for i := uint64(0); i < size; i++ {
		child, err := pmem.VectorAt[Node](n.Children, i)
		if err != nil {
			return err
		}
		if err := PrintTree(p, w, child, pad+1); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%s]}\n", indent)
	return nil
}
