package pmem

import (
	"fmt"
	"unsafe"
)

// vectorSlotSize is sizeof(Handle[T]){PoolUUID,Offset}: two uint64
// fields, independent of T.
const vectorSlotSize = 16

// VectorData[T] is the backing storage for a Vector[T]: a
// (nelem, capacity) header followed by capacity inline Handle[T] slots.
// Unlike PODVector, the slots are references to separately allocated
// objects, not inline values.
type VectorData[T any] struct {
	Nelem    uint64
	Capacity uint64
}

func (d *VectorData[T]) slotPtr(i uint64) *Handle[T] {
	base := unsafe.Add(unsafe.Pointer(d), podVectorHeaderSize)
	return (*Handle[T])(unsafe.Add(base, uintptr(i)*vectorSlotSize))
}

func vectorSize(capacity uint64) uintptr {
	return podVectorHeaderSize + uintptr(capacity)*vectorSlotSize
}

// Vector[T] is a handle to a growable persistent array of Handle[T]
// slots. The null handle is the empty, zero-capacity state.
type Vector[T any] = Handle[VectorData[T]]

type vectorConstructor[T any] struct {
	Base[VectorData[T]]
	capacity uint64
	nelem    uint64
	src      *VectorData[T]
}

func (c vectorConstructor[T]) Size() uintptr { return vectorSize(c.capacity) }

func (c vectorConstructor[T]) Build(obj *VectorData[T]) error {
	obj.Capacity = c.capacity
	obj.Nelem = c.nelem
	if c.src != nil {
		for i := uint64(0); i < c.nelem; i++ {
			*obj.slotPtr(i) = *c.src.slotPtr(i)
		}
	}
	return nil
}

// VectorLen returns v's element count after a consistency check, 0 for
// a null vector.
func VectorLen[T any](p *Pool, v *Vector[T]) (uint64, error) {
	if v.IsNull() {
		return 0, nil
	}
	if err := VectorConsistencyCheck[T](p, v); err != nil {
		return 0, err
	}
	data, err := v.Get()
	if err != nil {
		return 0, err
	}
	return data.Nelem, nil
}

// VectorFull reports whether v is at capacity after a consistency check.
func VectorFull[T any](p *Pool, v *Vector[T]) (bool, error) {
	if v.IsNull() {
		return false, nil
	}
	if err := VectorConsistencyCheck[T](p, v); err != nil {
		return false, err
	}
	data, err := v.Get()
	if err != nil {
		return false, err
	}
	return data.Nelem == data.Capacity, nil
}

// VectorAt returns the slot handle at index i, failing with OutOfRange
// if i is at or past the current length.
func VectorAt[T any](v Vector[T], i uint64) (Handle[T], error) {
	if v.IsNull() {
		return Handle[T]{}, newErr("VectorAt", KindOutOfRange, fmt.Errorf("index %d on empty vector", i))
	}
	data, err := v.Get()
	if err != nil {
		return Handle[T]{}, err
	}
	if i >= data.Nelem {
		return Handle[T]{}, newErr("VectorAt", KindOutOfRange, fmt.Errorf("index %d >= size %d", i, data.Nelem))
	}
	return *data.slotPtr(i), nil
}

// ResizeVector grows or shrinks v to newCap, copy-constructing a
// replacement and updating *v in place. Shrinking below the current
// element count fails with OutOfRange, the same rule PODVector applies.
func ResizeVector[T any](p *Pool, v *Vector[T], newCap uint64) error {
	if v.IsNull() {
		nv, err := Allocate[VectorData[T]](p, vectorConstructor[T]{capacity: newCap})
		if err != nil {
			return err
		}
		*v = nv
		return nil
	}

	data, err := v.Get()
	if err != nil {
		return err
	}
	if newCap < data.Nelem {
		return newErr("ResizeVector", KindOutOfRange, fmt.Errorf("new capacity %d below current size %d", newCap, data.Nelem))
	}

	nv, err := v.Replace(p, vectorConstructor[T]{capacity: newCap, nelem: data.Nelem, src: data})
	if err != nil {
		return err
	}
	*v = nv
	return nil
}

// VectorPushBackCtor allocates a new T in p via ctor and appends the
// resulting handle to v, growing v as needed. This is the fundamental
// push operation; a caller wanting the "push_back(args...)" convenience
// builds ctor with Args0/Args1/Args2 and calls this the same way.
func VectorPushBackCtor[T any](p *Pool, v *Vector[T], ctor Constructor[T]) (Handle[T], error) {
	if err := VectorConsistencyCheck[T](p, v); err != nil {
		return Handle[T]{}, err
	}

	child, err := Allocate[T](p, ctor)
	if err != nil {
		return Handle[T]{}, err
	}

	if err := VectorPushBackHandle[T](p, v, child); err != nil {
		return Handle[T]{}, err
	}
	return child, nil
}

// VectorPushBackHandle appends an already-allocated handle to v, growing
// v as needed. It is the primitive VectorPushBackCtor builds on; callers
// that must allocate the child themselves (e.g. building a tree node
// chain bottom-up before the chain's own branch nodes exist) use this
// directly instead of going through a Constructor.
func VectorPushBackHandle[T any](p *Pool, v *Vector[T], child Handle[T]) error {
	if v.IsNull() {
		if err := ResizeVector[T](p, v, 1); err != nil {
			return err
		}
	}

	data, err := v.Get()
	if err != nil {
		return err
	}
	if data.Nelem == data.Capacity {
		if err := ResizeVector[T](p, v, 2*data.Capacity); err != nil {
			return err
		}
		data, err = v.Get()
		if err != nil {
			return err
		}
	}

	slot := data.slotPtr(data.Nelem)
	*slot = child
	slotOff := p.offsetOf(unsafe.Pointer(slot))
	if err := p.persistRange(int(slotOff), vectorSlotSize); err != nil {
		return newErr("VectorPushBackHandle", KindSeriousBug, err)
	}

	data.Nelem++
	if err := p.persistRange(int(v.Offset), 8); err != nil {
		return newErr("VectorPushBackHandle", KindSeriousBug, err)
	}

	return nil
}

// VectorConsistencyCheck repairs a Vector whose nelem counter may have
// lagged its last persisted slot write across a crash: it scans forward
// from nelem and, as long as slot[nelem] is a valid non-null handle,
// advances nelem (persisting the repaired counter). If, after the scan,
// any slot in [0, nelem) is null, that is a fatal structural error the
// forward scan cannot repair.
func VectorConsistencyCheck[T any](p *Pool, v *Vector[T]) error {
	if v == nil || v.IsNull() {
		return nil
	}
	data, err := v.Get()
	if err != nil {
		return err
	}

	advanced := false
	for data.Nelem < data.Capacity {
		slot := data.slotPtr(data.Nelem)
		if !slot.Valid() {
			break
		}
		data.Nelem++
		advanced = true
	}
	if advanced {
		if err := p.persistRange(int(v.Offset), 8); err != nil {
			return newErr("VectorConsistencyCheck", KindSeriousBug, err)
		}
	}

	for i := uint64(0); i < data.Nelem; i++ {
		if data.slotPtr(i).IsNull() {
			return newErr("VectorConsistencyCheck", KindAssertionFailed,
				fmt.Errorf("slot %d is null within [0, %d)", i, data.Nelem))
		}
	}

	return nil
}
