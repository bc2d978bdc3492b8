package pmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type typesTestA struct{ V int }
type typesTestB struct{ V int }

func TestRegisterTypeIsIdempotent(t *testing.T) {
	RegisterType[typesTestA](builtinTypeIDCeiling + 10)
	require.NotPanics(t, func() { RegisterType[typesTestA](builtinTypeIDCeiling + 10) })

	id, ok := TypeID[typesTestA]()
	require.True(t, ok)
	require.Equal(t, builtinTypeIDCeiling+10, id)
}

func TestRegisterTypeConflictingIDPanics(t *testing.T) {
	RegisterType[typesTestB](builtinTypeIDCeiling + 11)
	require.Panics(t, func() { RegisterType[typesTestB](builtinTypeIDCeiling + 12) })
}

func TestRegisterTypeFreeMarkerCollisionPanics(t *testing.T) {
	type typesTestFreeMarker struct{ V int }
	require.Panics(t, func() { RegisterType[typesTestFreeMarker](freeMarker) })
}

func TestTypeIDUnregisteredReturnsFalse(t *testing.T) {
	type typesTestUnregistered struct{ V int }
	_, ok := TypeID[typesTestUnregistered]()
	require.False(t, ok)
}

func TestMustTypeIDPanicsOnUnregistered(t *testing.T) {
	type typesTestUnregistered2 struct{ V int }
	require.Panics(t, func() { MustTypeID[typesTestUnregistered2]() })
}
