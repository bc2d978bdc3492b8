package pmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleEqualityLaw(t *testing.T) {
	p := tempPool(t, 1<<20)

	a, err := NewBuffer(p, []byte("hello"))
	require.NoError(t, err)
	b, err := NewBuffer(p, []byte("world"))
	require.NoError(t, err)

	require.True(t, a.Equal(a))
	require.False(t, a.Equal(b))
	require.True(t, Null[BufferData]().Equal(Null[BufferData]()))
	require.False(t, a.Equal(Null[BufferData]()))
}

func TestHandleGetNullReturnsError(t *testing.T) {
	h := Null[BufferData]()
	_, err := h.Get()
	require.Error(t, err)
	require.True(t, IsSeriousBug(err))
}

func TestHandleGetWrongTypeFails(t *testing.T) {
	p := tempPool(t, 1<<20)

	buf, err := NewBuffer(p, []byte("data"))
	require.NoError(t, err)

	// Reinterpret the buffer handle's bits as a String handle: same
	// offset, different registered type id, must fail Valid/Get.
	wrong := Handle[StringData]{PoolUUID: buf.PoolUUID, Offset: buf.Offset}
	require.False(t, wrong.Valid())
	_, err = wrong.Get()
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestHandleFreeThenGetFails(t *testing.T) {
	p := tempPool(t, 1<<20)

	buf, err := NewBuffer(p, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, buf.Free(p))

	require.False(t, buf.Valid())
	_, err = buf.Get()
	require.Error(t, err)
}

func TestReplaceLeavesHandleUnchangedOnAllocFailure(t *testing.T) {
	p := tempPool(t, 512)

	orig, err := NewBuffer(p, []byte("small"))
	require.NoError(t, err)

	tooBig := make([]byte, 4096)
	_, err = orig.Replace(p, NewBufferConstructor(tooBig))
	require.ErrorIs(t, err, ErrPoolFull)

	// The original handle must still resolve to its untouched value: the
	// failed Allocate must not have freed it.
	require.True(t, orig.Valid())
	got, err := orig.Get()
	require.NoError(t, err)
	require.Equal(t, []byte("small"), got.Data())
}

func TestSetRootAndRoot(t *testing.T) {
	p := tempPool(t, 1<<20)

	h, err := NewString(p, "root value")
	require.NoError(t, err)
	require.NoError(t, SetRoot[StringData](p, h))

	got, err := Root[StringData](p)
	require.NoError(t, err)
	require.True(t, got.Equal(h))

	s, err := got.Get()
	require.NoError(t, err)
	require.Equal(t, "root value", string(s.Data()))
}
