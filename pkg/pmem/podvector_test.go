package pmem

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPODVectorGrowthSequence follows the capacity-doubling sequence
// four consecutive PushBackPOD calls must produce: (1,1), (2,2), (3,4),
// (4,4) as (nelem, capacity) pairs.
func TestPODVectorGrowthSequence(t *testing.T) {
	p := tempPool(t, 1<<20)

	var v PODVector[uint32]
	wantCaps := []uint64{1, 2, 4, 4}

	for i, want := range wantCaps {
		require.NoError(t, PushBackPOD[uint32](p, &v, uint32(i)))

		nelem, err := PODVectorLen[uint32](v)
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), nelem)

		capacity, err := PODVectorCap[uint32](v)
		require.NoError(t, err)
		require.Equal(t, want, capacity)
	}

	for i := 0; i < 4; i++ {
		got, err := PODVectorAt[uint32](v, uint64(i))
		require.NoError(t, err)
		require.Equal(t, uint32(i), got)
	}
}

func TestPODVectorAtOutOfRange(t *testing.T) {
	p := tempPool(t, 1<<20)

	var v PODVector[uint32]
	_, err := PODVectorAt[uint32](v, 0)
	require.Error(t, err)
	require.True(t, IsOutOfRange(err))

	require.NoError(t, PushBackPOD[uint32](p, &v, 1))
	_, err = PODVectorAt[uint32](v, 1)
	require.True(t, IsOutOfRange(err))
}

func TestResizePODRejectsShrinkBelowNelem(t *testing.T) {
	p := tempPool(t, 1<<20)

	var v PODVector[uint32]
	require.NoError(t, PushBackPOD[uint32](p, &v, 1))
	require.NoError(t, PushBackPOD[uint32](p, &v, 2))

	err := ResizePOD[uint32](p, &v, 1)
	require.Error(t, err)
	require.True(t, IsOutOfRange(err))
}

func TestResizePODLeavesVectorUnchangedOnAllocFailure(t *testing.T) {
	p := tempPool(t, 512)

	var v PODVector[uint64]
	require.NoError(t, PushBackPOD[uint64](p, &v, 7))
	require.NoError(t, PushBackPOD[uint64](p, &v, 8))
	before := v

	err := ResizePOD[uint64](p, &v, 1<<20)
	require.ErrorIs(t, err, ErrPoolFull)

	// v itself must be untouched: same handle, same two elements intact.
	require.True(t, v.Equal(before))
	nelem, err := PODVectorLen[uint64](v)
	require.NoError(t, err)
	require.Equal(t, uint64(2), nelem)

	a, err := PODVectorAt[uint64](v, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(7), a)
	b, err := PODVectorAt[uint64](v, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(8), b)
}

func TestAssertTriviallyCopyableRejectsPointerField(t *testing.T) {
	type hasPointer struct {
		X *int
	}
	err := checkTriviallyCopyable(reflect.TypeOf(hasPointer{}))
	require.Error(t, err)
}
