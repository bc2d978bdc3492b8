package pmem

import (
	"fmt"
	"reflect"
	"unsafe"
)

// DebugAssertions gates the reflect-based trivially-copyable check
// PODVector element types are assumed (but, unlike C++, not statically
// enforced) to satisfy. Off by default; setting it to true makes every
// PODVector allocation reject an element type with a pointer/slice/
// string/map/interface field before it corrupts a pool.
var DebugAssertions = false

// podVectorHeaderSize is sizeof(PODVectorData[T]){Nelem,Capacity}: two
// uint64 fields, independent of T.
const podVectorHeaderSize = 16

func podElemSize[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

func podVectorSize[T any](capacity uint64) uintptr {
	return podVectorHeaderSize + uintptr(capacity)*podElemSize[T]()
}

// PODVectorData[T] is the backing storage for a PODVector[T]: a
// (nelem, capacity) header followed by capacity inline, trivially
// copyable T values. The elements are not a Go field — there is no
// const-generic array length in Go — they are the remainder of the
// block Pool.Allocate reserved, reached via elemPtr.
type PODVectorData[T any] struct {
	Nelem    uint64
	Capacity uint64
}

func (d *PODVectorData[T]) elemPtr(i uint64) *T {
	base := unsafe.Add(unsafe.Pointer(d), podVectorHeaderSize)
	return (*T)(unsafe.Add(base, uintptr(i)*podElemSize[T]()))
}

// PODVector[T] is a handle to a growable, inline persistent array of T.
// The null handle is the empty, zero-capacity state.
type PODVector[T any] = Handle[PODVectorData[T]]

// podVectorConstructor allocates a PODVectorData[T] of the given
// capacity, optionally copy-constructing nelem existing elements out of
// src — the "allocate a copy-constructed replacement" step Resize uses.
type podVectorConstructor[T any] struct {
	Base[PODVectorData[T]]
	capacity uint64
	nelem    uint64
	src      *PODVectorData[T]
}

func (c podVectorConstructor[T]) Size() uintptr { return podVectorSize[T](c.capacity) }

func (c podVectorConstructor[T]) Build(obj *PODVectorData[T]) error {
	if DebugAssertions {
		if err := assertTriviallyCopyable[T](); err != nil {
			return err
		}
	}
	obj.Capacity = c.capacity
	obj.Nelem = c.nelem
	if c.src != nil {
		for i := uint64(0); i < c.nelem; i++ {
			*obj.elemPtr(i) = *c.src.elemPtr(i)
		}
	}
	return nil
}

// PODVectorLen returns v's element count, 0 for a null vector.
func PODVectorLen[T any](v PODVector[T]) (uint64, error) {
	if v.IsNull() {
		return 0, nil
	}
	data, err := v.Get()
	if err != nil {
		return 0, err
	}
	return data.Nelem, nil
}

// PODVectorCap returns v's capacity, 0 for a null vector.
func PODVectorCap[T any](v PODVector[T]) (uint64, error) {
	if v.IsNull() {
		return 0, nil
	}
	data, err := v.Get()
	if err != nil {
		return 0, err
	}
	return data.Capacity, nil
}

// PODVectorAt returns element i, failing with OutOfRange if i is at or
// past the current length.
func PODVectorAt[T any](v PODVector[T], i uint64) (T, error) {
	var zero T
	if v.IsNull() {
		return zero, newErr("PODVectorAt", KindOutOfRange, fmt.Errorf("index %d on empty vector", i))
	}
	data, err := v.Get()
	if err != nil {
		return zero, err
	}
	if i >= data.Nelem {
		return zero, newErr("PODVectorAt", KindOutOfRange, fmt.Errorf("index %d >= size %d", i, data.Nelem))
	}
	return *data.elemPtr(i), nil
}

// ResizePOD grows or shrinks v to newCap, copy-constructing a
// replacement and updating *v in place. It fails with OutOfRange if
// newCap is below the vector's current element count: this package
// resolves the source's ambiguous shrink-below-nelem case by forbidding
// it outright.
func ResizePOD[T any](p *Pool, v *PODVector[T], newCap uint64) error {
	if v.IsNull() {
		nv, err := Allocate[PODVectorData[T]](p, podVectorConstructor[T]{capacity: newCap})
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
		return newErr("ResizePOD", KindOutOfRange, fmt.Errorf("new capacity %d below current size %d", newCap, data.Nelem))
	}

	nv, err := v.Replace(p, podVectorConstructor[T]{capacity: newCap, nelem: data.Nelem, src: data})
	if err != nil {
		return err
	}
	*v = nv
	return nil
}

// PushBackPOD appends value to v, growing it as needed. A null vector
// allocates with capacity 1; a full vector doubles capacity before
// appending. The new slot is persisted before the updated element count,
// so a crash between the two leaves the element invisible but the
// vector otherwise intact.
func PushBackPOD[T any](p *Pool, v *PODVector[T], value T) error {
	if v.IsNull() {
		if err := ResizePOD[T](p, v, 1); err != nil {
			return err
		}
	}

	data, err := v.Get()
	if err != nil {
		return err
	}
	if data.Nelem == data.Capacity {
		if err := ResizePOD[T](p, v, 2*data.Capacity); err != nil {
			return err
		}
		data, err = v.Get()
		if err != nil {
			return err
		}
	}

	slot := data.elemPtr(data.Nelem)
	*slot = value
	slotOff := p.offsetOf(unsafe.Pointer(slot))
	if err := p.persistRange(int(slotOff), int(podElemSize[T]())); err != nil {
		return newErr("PushBackPOD", KindSeriousBug, err)
	}

	data.Nelem++
	if err := p.persistRange(int(v.Offset), 8); err != nil {
		return newErr("PushBackPOD", KindSeriousBug, err)
	}

	return nil
}

// assertTriviallyCopyable rejects element types containing a pointer,
// slice, string, map, channel, function, or interface field anywhere in
// their structure: the closest Go can come, at runtime, to the C++
// compile-time guarantee that a PODVector element is trivially copyable.
func assertTriviallyCopyable[T any]() error {
	var zero T
	return checkTriviallyCopyable(reflect.TypeOf(zero))
}

func checkTriviallyCopyable(t reflect.Type) error {
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.String, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return fmt.Errorf("pmem: type %s is not trivially copyable (kind %s)", t, t.Kind())
	case reflect.Array:
		return checkTriviallyCopyable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := checkTriviallyCopyable(t.Field(i).Type); err != nil {
				return fmt.Errorf("field %s: %w", t.Field(i).Name, err)
			}
		}
	}
	return nil
}
