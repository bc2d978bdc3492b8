package pmem

import (
	"fmt"
)

func init() {
	RegisterType[StringData](typeIDString)
}

// StringData is a BufferData whose payload bytes include a trailing NUL,
// composed rather than inherited (Go has no private inheritance) from
// the original library's `PersistentString : private PersistentBuffer`.
type StringData struct {
	BufferData
}

// Size returns the total byte size, same accounting as BufferData.Size.
func (s *StringData) Size() uintptr { return s.BufferData.Size() }

// Length returns the string's length not counting the trailing NUL,
// i.e. strlen rather than Size.
func (s *StringData) Length() uint64 {
	if s.BufferData.Length == 0 {
		return 0
	}
	return s.BufferData.Length - 1
}

// Data returns the string's bytes without the trailing NUL.
func (s *StringData) Data() []byte {
	p := s.BufferData.payload()
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// CStr returns the string's bytes including the trailing NUL, mirroring
// the original's c_str().
func (s *StringData) CStr() []byte { return s.BufferData.payload() }

// At returns the byte at index i, failing with OutOfRange if i is at or
// past Length.
func (s *StringData) At(i uint64) (byte, error) {
	if i >= s.Length() {
		return 0, newErr("StringData.At", KindOutOfRange, fmt.Errorf("index %d >= length %d", i, s.Length()))
	}
	return s.Data()[i], nil
}

// Equal reports whether s and o hold the same bytes.
func (s *StringData) Equal(o *StringData) bool {
	return string(s.Data()) == string(o.Data())
}

// EqualString reports whether s holds exactly the bytes of str.
func (s *StringData) EqualString(str string) bool {
	return string(s.Data()) == str
}

func (s *StringData) String() string {
	return fmt.Sprintf("String(%q)", string(s.Data()))
}

// stringConstructor builds a StringData from a Go string, appending the
// trailing NUL the original's String(ptr,len) constructor always reserves.
type stringConstructor struct {
	Base[StringData]
	value string
}

func (c stringConstructor) Size() uintptr {
	return bufferHeaderSize + uintptr(len(c.value)) + 1
}

func (c stringConstructor) Build(obj *StringData) error {
	obj.BufferData.Length = uint64(len(c.value)) + 1
	p := obj.BufferData.payload()
	copy(p, c.value)
	p[len(c.value)] = 0
	return nil
}

// NewStringConstructor returns a Constructor[StringData] that stores a
// copy of value plus its trailing NUL.
func NewStringConstructor(value string) Constructor[StringData] {
	return stringConstructor{value: value}
}

// String is a handle to a persistent, immutable, NUL-terminated string.
type String = Handle[StringData]

// NewString allocates a String in p holding a copy of value.
func NewString(p *Pool, value string) (String, error) {
	return Allocate[StringData](p, NewStringConstructor(value))
}
