package pmem

import (
	"fmt"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// typeIDBuffer and the other builtin type ids below occupy the low end
// of the type id space; application code registering its own types
// should start numbering at builtinTypeIDCeiling or above.
const (
	typeIDBuffer uint64 = 1 + iota
	typeIDString
)

// builtinTypeIDCeiling is the first type id application code is free to
// use with RegisterType.
const builtinTypeIDCeiling uint64 = 16

func init() {
	RegisterType[BufferData](typeIDBuffer)
}

// BufferData is the backing storage for a Buffer: a length prefix
// followed immediately by that many bytes of inline payload, the layout
// the original library calls BufferBase. The trailing bytes are not a Go
// field — Go has no flexible array members — they are the rest of the
// block Pool.Allocate reserved, reached via payload.
type BufferData struct {
	Length uint64
}

const bufferHeaderSize = unsafe.Sizeof(BufferData{}.Length)

func (b *BufferData) payload() []byte {
	if b.Length == 0 {
		return nil
	}
	ptr := (*byte)(unsafe.Add(unsafe.Pointer(b), bufferHeaderSize))
	return unsafe.Slice(ptr, int(b.Length))
}

// Size returns the total byte size occupied by b, sizeof(usize)+len.
func (b *BufferData) Size() uintptr { return bufferHeaderSize + uintptr(b.Length) }

// Data returns the buffer's payload bytes.
func (b *BufferData) Data() []byte { return b.payload() }

// Checksum returns the xxhash64 of the buffer's payload bytes. Nothing in
// this module calls it; the pool header carries its own checksum.
func (b *BufferData) Checksum() uint64 { return xxhash.Sum64(b.payload()) }

func (b *BufferData) String() string {
	return fmt.Sprintf("Buffer(%d bytes)", b.Length)
}

// bufferConstructor builds a BufferData copying data into the reserved
// payload. Even an empty buffer reserves sizeof(usize) for its length
// prefix, never zero bytes.
type bufferConstructor struct {
	Base[BufferData]
	data []byte
}

func (c bufferConstructor) Size() uintptr { return bufferHeaderSize + uintptr(len(c.data)) }

func (c bufferConstructor) Build(obj *BufferData) error {
	obj.Length = uint64(len(c.data))
	copy(obj.payload(), c.data)
	return nil
}

// NewBufferConstructor returns a Constructor[BufferData] that copies
// data into the pool at allocation time.
func NewBufferConstructor(data []byte) Constructor[BufferData] {
	return bufferConstructor{data: data}
}

// Buffer is a handle to a persistent, immutable byte blob.
type Buffer = Handle[BufferData]

// NewBuffer allocates a Buffer in p holding a copy of data.
func NewBuffer(p *Pool, data []byte) (Buffer, error) {
	return Allocate[BufferData](p, NewBufferConstructor(data))
}
