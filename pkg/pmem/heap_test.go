package pmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHeap(t *testing.T, size uint64) *heap {
	t.Helper()
	data := make([]byte, size)
	return newHeap(data, 0, heapMetaSize, size-heapMetaSize, nil)
}

func TestHeapAllocIsZeroed(t *testing.T) {
	h := newTestHeap(t, 4096)

	off, err := h.alloc(32)
	require.NoError(t, err)
	require.False(t, h.isFreeAt(off))

	b := h.data[off : off+32]
	for _, v := range b {
		require.Zero(t, v)
	}
}

func TestHeapFreeThenAllocReusesFirstFit(t *testing.T) {
	h := newTestHeap(t, 4096)

	a, err := h.alloc(16)
	require.NoError(t, err)
	b, err := h.alloc(16)
	require.NoError(t, err)
	_ = b

	h.free(a)
	require.True(t, h.isFreeAt(a))

	c, err := h.alloc(16)
	require.NoError(t, err)
	require.Equal(t, a, c)
	require.False(t, h.isFreeAt(c))
}

func TestHeapAllocExhaustionReturnsOutOfRange(t *testing.T) {
	h := newTestHeap(t, 128)

	_, err := h.alloc(1000)
	require.Error(t, err)
	require.True(t, IsOutOfRange(err))
	require.ErrorIs(t, err, ErrPoolFull)
}

func TestHeapSetTypeIDAndTypeIDAt(t *testing.T) {
	h := newTestHeap(t, 4096)

	off, err := h.alloc(8)
	require.NoError(t, err)
	h.setTypeID(off, 42)
	require.Equal(t, uint64(42), h.typeIDAt(off))
	require.False(t, h.isFreeAt(off))
}
