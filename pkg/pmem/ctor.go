package pmem

import "unsafe"

// Constructor builds a T in place over already-reserved, zeroed storage.
// It plays the role of the original library's AtomicConstructor: Size and
// TypeID are consulted before any storage is reserved, Build runs after the
// storage is reserved but before the owning handle is published, and an
// error from Build unwinds the reservation instead of leaving a half-built
// object reachable.
type Constructor[T any] interface {
	// Size returns the number of bytes to reserve for the object. It is
	// almost always unsafe.Sizeof(zero value of T) and callers embedding
	// Base[T] get that for free.
	Size() uintptr

	// TypeID returns the registered type id the allocation is tagged
	// with, used later to validate a Handle's cast.
	TypeID() uint64

	// Build initializes obj, which points at zeroed, reserved storage.
	// A non-nil error aborts the allocation: the reservation is released
	// and no handle is published.
	Build(obj *T) error
}

// Base is embedded by concrete constructors to provide the boilerplate
// Size and TypeID methods, leaving only Build to implement. This mirrors
// how the original AtomicConstructor<T> subclasses only ever override
// make(), never size() or typeId(), for a single concrete T.
type Base[T any] struct{}

// Size returns unsafe.Sizeof a zero value of T.
func (Base[T]) Size() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// TypeID returns T's registered type id, panicking if T was never
// registered. Registration is expected to happen in an init() beside the
// type's declaration, long before any constructor runs.
func (Base[T]) TypeID() uint64 {
	return MustTypeID[T]()
}

// ConstructorFunc adapts a plain build function into a Constructor[T]
// without requiring a named type, for simple cases that don't need extra
// fields beyond the closure's captures.
type ConstructorFunc[T any] struct {
	Base[T]
	BuildFunc func(obj *T) error
}

// Build calls the wrapped function.
func (c ConstructorFunc[T]) Build(obj *T) error { return c.BuildFunc(obj) }

// NewConstructorFunc returns a Constructor[T] that runs build and nothing
// else, for callers that don't need a dedicated constructor type.
func NewConstructorFunc[T any](build func(obj *T) error) Constructor[T] {
	return ConstructorFunc[T]{BuildFunc: build}
}

// ZeroConstructor is a Constructor[T] whose Build leaves the zeroed
// storage untouched, equivalent to the original library's default
// trivial constructor used for PODVector element-type placeholders and
// similar.
type ZeroConstructor[T any] struct{ Base[T] }

// Build is a no-op: the storage is already zeroed by Pool.Allocate.
func (ZeroConstructor[T]) Build(*T) error { return nil }

// Args1 builds a Constructor[T] from a single-argument value
// constructor, replacing the original library's AtomicConstructor1<T,X1>
// subclass hierarchy with a first-class function. It is the 1-argument
// member of the "0/1/2/N arguments by value" family; Args0 and Args2
// below cover the other common arities.
func Args1[T any, X1 any](build func(obj *T, x1 X1) error, x1 X1) Constructor[T] {
	return NewConstructorFunc[T](func(obj *T) error { return build(obj, x1) })
}

// Args2 is Args1 for a two-argument value constructor.
func Args2[T any, X1, X2 any](build func(obj *T, x1 X1, x2 X2) error, x1 X1, x2 X2) Constructor[T] {
	return NewConstructorFunc[T](func(obj *T) error { return build(obj, x1, x2) })
}

// Args0 wraps a zero-argument value constructor, for the degenerate case
// that still wants the Constructor[T] vocabulary rather than
// ZeroConstructor's "do nothing" semantics.
func Args0[T any](build func(obj *T) error) Constructor[T] {
	return NewConstructorFunc[T](build)
}

// CastConstructor adapts a Constructor[Derived] to a Constructor[Base]
// slot, for call sites (e.g. a polymorphic tree node payload) that
// allocate through a base-typed Handle but build a more specific
// concrete layout. Base and Derived must have identical memory layout;
// CastConstructor does not itself enforce that, the same trust contract
// the original's PolymorphicPersistentPtr cast adaptor places on callers.
type CastConstructor[B any, D any] struct {
	Inner Constructor[D]
}

// Size delegates to the derived constructor's size.
func (c CastConstructor[B, D]) Size() uintptr { return c.Inner.Size() }

// TypeID delegates to the derived constructor's type id: the block is
// still tagged as a Derived, not a Base, so Handle[Derived] can validate
// it directly.
func (c CastConstructor[B, D]) TypeID() uint64 { return c.Inner.TypeID() }

// Build reinterprets obj's storage as *D and runs the derived Build over it.
func (c CastConstructor[B, D]) Build(obj *B) error {
	return c.Inner.Build((*D)(unsafe.Pointer(obj)))
}
