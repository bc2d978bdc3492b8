package tree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thromel/pmemtree/pkg/pmem"
)

func newTestPool(t *testing.T) *pmem.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.bin")
	p, err := pmem.Create(path, &pmem.Config{Size: 4 << 20, Layout: "node-test"})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNewLeafIsLeaf(t *testing.T) {
	p := newTestPool(t)

	h, err := NewLeaf(p, "a1", []byte("blob"))
	require.NoError(t, err)

	n, err := h.Get()
	require.NoError(t, err)
	require.True(t, n.Leaf())
	require.Equal(t, "a1", n.GetValue())

	buf, err := n.Data.Get()
	require.NoError(t, err)
	require.Equal(t, "blob", string(buf.Data()))
}

func TestNewNestedBuildsChainAndCounts(t *testing.T) {
	p := newTestPool(t)

	keychain := []KV{{Key: "region", Value: "eu"}, {Key: "site", Value: "a1"}}
	h, err := NewNested(p, "", keychain, []byte("blob"))
	require.NoError(t, err)

	n, err := h.Get()
	require.NoError(t, err)
	require.False(t, n.Leaf())
	require.Equal(t, "region", n.KeyName())

	count, err := NodeCount(p, h)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count) // region branch, site branch, leaf
}

func TestAddNodeRejectsKeyMismatch(t *testing.T) {
	p := newTestPool(t)

	h, err := NewNested(p, "", []KV{{Key: "region", Value: "eu"}}, []byte("blob"))
	require.NoError(t, err)

	err = AddNode(p, h, []KV{{Key: "site", Value: "a1"}}, []byte("blob2"))
	require.Error(t, err)
	require.True(t, pmem.IsUserError(err))
}

func TestAddNodeRejectsChildUnderLeaf(t *testing.T) {
	p := newTestPool(t)

	h, err := NewLeaf(p, "a1", []byte("blob"))
	require.NoError(t, err)

	err = AddNode(p, h, []KV{{Key: "site", Value: "a1"}}, []byte("blob2"))
	require.Error(t, err)
	require.True(t, pmem.IsLeafExists(err))
}
