package pmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pushThreeStrings(t *testing.T, p *Pool, v *Vector[StringData]) {
	t.Helper()
	for _, s := range []string{"a", "b", "c"} {
		_, err := VectorPushBackCtor[StringData](p, v, NewStringConstructor(s))
		require.NoError(t, err)
	}
}

// TestVectorConsistencyCheckRepairsLaggedCounter covers the scenario
// where nelem was persisted one write behind its last slot: forcing
// nelem back to 2 after three real pushes must repair it back to 3 on
// the next consistency check rather than report corruption.
func TestVectorConsistencyCheckRepairsLaggedCounter(t *testing.T) {
	p := tempPool(t, 1<<20)

	var v Vector[StringData]
	pushThreeStrings(t, p, &v)

	data, err := v.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(3), data.Nelem)

	data.Nelem = 2

	n, err := VectorLen[StringData](p, &v)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)
}

// TestVectorConsistencyCheckDetectsNullGap covers the unrepairable case:
// nelem claims more elements than were ever written, leaving a null slot
// inside [0, nelem), which the forward-scan repair cannot fix.
func TestVectorConsistencyCheckDetectsNullGap(t *testing.T) {
	p := tempPool(t, 1<<20)

	var v Vector[StringData]
	pushThreeStrings(t, p, &v)

	require.NoError(t, ResizeVector[StringData](p, &v, 6))

	data, err := v.Get()
	require.NoError(t, err)
	data.Nelem = 6

	_, err = VectorLen[StringData](p, &v)
	require.Error(t, err)
	require.True(t, IsAssertionFailed(err))
}

func TestResizeVectorLeavesVectorUnchangedOnAllocFailure(t *testing.T) {
	p := tempPool(t, 768)

	var v Vector[StringData]
	pushThreeStrings(t, p, &v)
	before := v

	err := ResizeVector[StringData](p, &v, 1<<20)
	require.ErrorIs(t, err, ErrPoolFull)

	require.True(t, v.Equal(before))
	n, err := VectorLen[StringData](p, &v)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	h, err := VectorAt[StringData](v, 2)
	require.NoError(t, err)
	s, err := h.Get()
	require.NoError(t, err)
	require.Equal(t, "c", string(s.Data()))
}

func TestVectorPushBackAndAt(t *testing.T) {
	p := tempPool(t, 1<<20)

	var v Vector[StringData]
	pushThreeStrings(t, p, &v)

	n, err := VectorLen[StringData](p, &v)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	h, err := VectorAt[StringData](v, 1)
	require.NoError(t, err)
	s, err := h.Get()
	require.NoError(t, err)
	require.Equal(t, "b", string(s.Data()))

	_, err = VectorAt[StringData](v, 3)
	require.True(t, IsOutOfRange(err))
}
