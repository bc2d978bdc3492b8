package pmem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type ctorTestPoint struct {
	X, Y int64
}

func TestBaseSizeAndTypeID(t *testing.T) {
	RegisterType[ctorTestPoint](builtinTypeIDCeiling + 1)

	var b Base[ctorTestPoint]
	require.Equal(t, uintptr(16), b.Size())
	require.Equal(t, builtinTypeIDCeiling+1, b.TypeID())
}

func TestArgs1BuildsFromValueConstructor(t *testing.T) {
	RegisterType[ctorTestPoint](builtinTypeIDCeiling + 1)

	ctor := Args1[ctorTestPoint, int64](func(obj *ctorTestPoint, x int64) error {
		obj.X = x
		return nil
	}, 42)

	var p ctorTestPoint
	require.NoError(t, ctor.Build(&p))
	require.Equal(t, int64(42), p.X)
}

func TestZeroConstructorLeavesStorageUntouched(t *testing.T) {
	var z ZeroConstructor[ctorTestPoint]
	p := ctorTestPoint{X: 1, Y: 2}
	require.NoError(t, z.Build(&p))
	require.Equal(t, ctorTestPoint{X: 1, Y: 2}, p)
}

func TestNewConstructorFuncPropagatesError(t *testing.T) {
	boom := fmt.Errorf("boom")
	ctor := NewConstructorFunc[ctorTestPoint](func(obj *ctorTestPoint) error { return boom })
	var p ctorTestPoint
	require.ErrorIs(t, ctor.Build(&p), boom)
}
