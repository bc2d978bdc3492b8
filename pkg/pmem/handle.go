package pmem

import (
	"fmt"
	"strconv"

	"github.com/thromel/pmemtree/pkg/pmem/metrics"
)

// Handle[T] is a 16-byte position-independent reference to a T living in
// some pool's mapped region: a (pool id, byte offset) pair, the direct
// analogue of the original library's PersistentPtr<T>. Unlike a Go
// pointer, a Handle remains meaningful across process restarts as long
// as the same pool file is reopened: resolving it looks the pool up by
// id in the Registry rather than trusting a stale in-memory address.
//
// Offset 0 always means null: the heap's arena starts past the pool
// header and heap metadata, so no real allocation ever lands at 0.
type Handle[T any] struct {
	PoolUUID uint64
	Offset   uint64
}

// Null returns the zero-value null handle.
func Null[T any]() Handle[T] { return Handle[T]{} }

// IsNull reports whether h refers to nothing.
func (h Handle[T]) IsNull() bool { return h.Offset == 0 }

// Equal implements the (uuid,offset) equality law: two handles are equal
// iff they name the same pool and the same offset, regardless of what
// pointer either one happens to resolve to in this process.
func (h Handle[T]) Equal(o Handle[T]) bool {
	return h.PoolUUID == o.PoolUUID && h.Offset == o.Offset
}

// String renders h for logging, mirroring the original's operator<< on
// PersistentPtr.
func (h Handle[T]) String() string {
	if h.IsNull() {
		return "Handle(null)"
	}
	return fmt.Sprintf("Handle(%x:%d)", h.PoolUUID, h.Offset)
}

// resolvePool returns the pool this handle belongs to, looked up by its
// compact id in the default registry.
func (h Handle[T]) resolvePool() (*Pool, error) {
	p := defaultRegistry.LookupID(h.PoolUUID)
	if p == nil {
		return nil, newErr("Handle.resolvePool", KindSeriousBug, fmt.Errorf("pool %x is not open", h.PoolUUID))
	}
	return p, nil
}

// Valid reports whether h is non-null, names a currently open pool, and
// points at a block still tagged with T's registered type id (i.e. not
// freed and not holding some other type).
func (h Handle[T]) Valid() bool {
	if h.IsNull() {
		return false
	}
	p, err := h.resolvePool()
	if err != nil {
		return false
	}
	wantType, ok := TypeID[T]()
	if !ok {
		return false
	}
	if p.heap.isFreeAt(h.Offset) {
		return false
	}
	return p.heap.typeIDAt(h.Offset) == wantType
}

// Get resolves h to a *T in the current process's address space. It
// returns ErrNull for a null handle and an Error wrapping ErrInvalidType
// if the block's stored type id does not match T's registered id — the
// Go analogue of PersistentPtr<T>::operator-> hitting a wrong-type cast.
func (h Handle[T]) Get() (*T, error) {
	if h.IsNull() {
		return nil, newErr("Handle.Get", KindSeriousBug, ErrNull)
	}
	p, err := h.resolvePool()
	if err != nil {
		return nil, err
	}
	wantType, ok := TypeID[T]()
	if !ok {
		return nil, newErr("Handle.Get", KindSeriousBug, ErrUnregisteredType)
	}
	if p.heap.isFreeAt(h.Offset) {
		return nil, newErr("Handle.Get", KindSeriousBug, fmt.Errorf("handle %s refers to a freed block", h))
	}
	if got := p.heap.typeIDAt(h.Offset); got != wantType {
		return nil, newErr("Handle.Get", KindSeriousBug, fmt.Errorf("%w: stored type id %d, want %d", ErrInvalidType, got, wantType))
	}
	return (*T)(p.ptrAt(h.Offset)), nil
}

// MustGet is Get but panics on error, for call sites that have already
// validated h (e.g. immediately after Allocate).
func (h Handle[T]) MustGet() *T {
	v, err := h.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Allocate reserves storage for a T in p sized and typed per ctor, runs
// ctor.Build over the zeroed storage, and returns a handle to it. If
// Build returns an error the reservation is released and the error is
// returned; no handle is published for a half-built object, matching the
// atomic-constructor crash-consistency contract: the block is tagged
// with ctor.TypeID() and persisted only after Build succeeds.
func Allocate[T any](p *Pool, ctor Constructor[T]) (Handle[T], error) {
	size := ctor.Size()
	payloadOff, err := p.heap.alloc(uint64(size))
	if err != nil {
		return Handle[T]{}, newErr("Allocate", KindSeriousBug, err)
	}

	obj := (*T)(p.ptrAt(payloadOff))
	if err := ctor.Build(obj); err != nil {
		p.heap.free(payloadOff)
		return Handle[T]{}, newErr("Allocate", KindSeriousBug, err)
	}

	// Payload persists before the type tag publishes the block as a
	// valid, readable T: a crash between these two persists leaves the
	// block reserved with the placeholder type id 0 that alloc wrote,
	// never tagged as a T.
	if perr := p.persistRange(int(payloadOff), int(size)); perr != nil {
		p.heap.free(payloadOff)
		return Handle[T]{}, newErr("Allocate", KindSeriousBug, perr)
	}
	p.heap.setTypeID(payloadOff, ctor.TypeID())
	metrics.IncAllocation(strconv.FormatUint(ctor.TypeID(), 10))

	return Handle[T]{PoolUUID: p.id, Offset: payloadOff}, nil
}

// Replace allocates a replacement of the same type via ctor, then frees
// the object h currently refers to, returning the new handle. It
// returns ErrNull if h is null: there is nothing to replace. The new
// object is built and persisted before the old one is freed, so a
// failed or interrupted Allocate leaves h's own storage untouched
// rather than losing it: the allocate-then-free order is load-bearing,
// not incidental.
func (h Handle[T]) Replace(p *Pool, ctor Constructor[T]) (Handle[T], error) {
	if h.IsNull() {
		return Handle[T]{}, newErr("Handle.Replace", KindSeriousBug, ErrNull)
	}
	nh, err := Allocate[T](p, ctor)
	if err != nil {
		return Handle[T]{}, err
	}
	if err := h.Free(p); err != nil {
		return Handle[T]{}, err
	}
	return nh, nil
}

// Free releases h's storage back to p's heap. Free is a no-op on a null
// handle, so defer h.Free(p) is always safe.
func (h Handle[T]) Free(p *Pool) error {
	if h.IsNull() {
		return nil
	}
	if p.heap.isFreeAt(h.Offset) {
		return newErr("Handle.Free", KindSeriousBug, ErrNotNull)
	}
	p.heap.free(h.Offset)
	return nil
}

// Nullify returns the null handle, for callers that want
// `h = h.Nullify()` to read like the original's ptr.nullify().
func (h Handle[T]) Nullify() Handle[T] { return Handle[T]{} }

// SetRoot designates h as p's root object, the entry point Open/Root[T]
// resolve. Root publication follows the same persist-then-publish order
// as Allocate: the root's own storage is assumed already persisted by
// the caller's Allocate call before SetRoot is invoked.
func SetRoot[T any](p *Pool, h Handle[T]) error {
	typeID, ok := TypeID[T]()
	if !ok {
		return newErr("SetRoot", KindSeriousBug, ErrUnregisteredType)
	}
	p.writeHeader(h.Offset, typeID)
	return nil
}

// Root resolves p's root object as a T, returning ErrNull if the pool
// has no root yet and an Error wrapping ErrInvalidType if the root was
// set with a different type.
func Root[T any](p *Pool) (Handle[T], error) {
	off, typeID := p.rootOffset()
	if off == 0 {
		return Handle[T]{}, newErr("Root", KindSeriousBug, ErrNull)
	}
	wantType, ok := TypeID[T]()
	if !ok {
		return Handle[T]{}, newErr("Root", KindSeriousBug, ErrUnregisteredType)
	}
	if typeID != wantType {
		return Handle[T]{}, newErr("Root", KindSeriousBug, fmt.Errorf("%w: root type id %d, want %d", ErrInvalidType, typeID, wantType))
	}
	return Handle[T]{PoolUUID: p.id, Offset: off}, nil
}

