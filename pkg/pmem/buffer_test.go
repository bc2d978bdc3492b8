package pmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferRoundTrip(t *testing.T) {
	p := tempPool(t, 1<<20)

	h, err := NewBuffer(p, []byte("some bytes"))
	require.NoError(t, err)

	d, err := h.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(10), d.Length)
	require.Equal(t, []byte("some bytes"), d.Data())
}

func TestStringRoundTripAndBoundaries(t *testing.T) {
	p := tempPool(t, 1<<20)

	h, err := NewString(p, "abc")
	require.NoError(t, err)

	s, err := h.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(3), s.Length())
	require.Equal(t, "abc", string(s.Data()))
	require.Equal(t, "abc\x00", string(s.CStr()))

	b, err := s.At(0)
	require.NoError(t, err)
	require.Equal(t, byte('a'), b)

	_, err = s.At(3)
	require.Error(t, err)
	require.True(t, IsOutOfRange(err))
}

func TestEmptyStringPreservesTrailingNUL(t *testing.T) {
	p := tempPool(t, 1<<20)

	h, err := NewString(p, "")
	require.NoError(t, err)

	s, err := h.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(0), s.Length())
	require.Equal(t, "", string(s.Data()))
	require.Equal(t, []byte{0}, s.CStr())
}
