package pmem

import (
	"encoding/binary"
	"fmt"
)

// heap is a first-fit free-list allocator over a mapping's byte slice. It
// plays the role pmemobj_alloc/pmemobj_free play inside a real pmem pool:
// callers reserve a run of bytes by offset (never by pointer, since the
// mapping's base address can differ across opens of the same file) and
// the allocator tracks free space with boundary-tag block headers written
// directly into the mapped region so the free list itself survives a
// remount.
//
// Each block is laid out as:
//
//	[0:8)   size   uint64  usable payload size, excluding this header
//	[8:16)  state  uint64  freeMarker if free, else the block's Constructor type id
//	[16:24) next   uint64  offset of next free block (free blocks only), 0 = end of list
//
// blockHeaderSize bytes of header precede every block's payload. A block's
// state field doubles as its type tag once allocated, since a block is
// never simultaneously free and typed.
const blockHeaderSize = 24

// freeMarker is the state value that marks a block as free. It is never
// a valid type id: RegisterType rejects id == freeMarker.
const freeMarker uint64 = ^uint64(0)

type heapMeta struct {
	// freeListHead is the offset of the first free block, or 0 if the
	// free list is empty (every byte up to brk is allocated).
	freeListHead uint64
	// brk is the offset of the first byte never handed out by growing
	// the heap (the high-water mark), analogous to a bump allocator's
	// break pointer backing the free list once it runs dry.
	brk uint64
	// end is one past the last usable byte in the heap region.
	end uint64
}

const heapMetaSize = 24 // 3 x uint64

// heap wraps the byte range [metaOff, metaOff+heapMetaSize) for the
// bookkeeping header and [dataOff, dataOff+size) for the block arena.
type heap struct {
	data    []byte
	metaOff uint64
	dataOff uint64
	persist func(off, n int) error
}

// newHeap initializes a fresh heap over data[dataOff:dataOff+size) and
// writes its bookkeeping header at data[metaOff:].
func newHeap(data []byte, metaOff, dataOff uint64, size uint64, persist func(off, n int) error) *heap {
	h := &heap{data: data, metaOff: metaOff, dataOff: dataOff, persist: persist}
	m := heapMeta{freeListHead: 0, brk: dataOff, end: dataOff + size}
	h.writeMeta(&m)
	return h
}

// openHeap reattaches to a heap whose bookkeeping header was previously
// written by newHeap.
func openHeap(data []byte, metaOff, dataOff uint64, persist func(off, n int) error) *heap {
	return &heap{data: data, metaOff: metaOff, dataOff: dataOff, persist: persist}
}

func (h *heap) readMeta() heapMeta {
	b := h.data[h.metaOff : h.metaOff+heapMetaSize]
	return heapMeta{
		freeListHead: binary.LittleEndian.Uint64(b[0:8]),
		brk:          binary.LittleEndian.Uint64(b[8:16]),
		end:          binary.LittleEndian.Uint64(b[16:24]),
	}
}

func (h *heap) writeMeta(m *heapMeta) {
	b := h.data[h.metaOff : h.metaOff+heapMetaSize]
	binary.LittleEndian.PutUint64(b[0:8], m.freeListHead)
	binary.LittleEndian.PutUint64(b[8:16], m.brk)
	binary.LittleEndian.PutUint64(b[16:24], m.end)
	if h.persist != nil {
		h.persist(int(h.metaOff), heapMetaSize)
	}
}

func (h *heap) readBlockHeader(off uint64) (size, state, next uint64) {
	b := h.data[off : off+blockHeaderSize]
	return binary.LittleEndian.Uint64(b[0:8]), binary.LittleEndian.Uint64(b[8:16]), binary.LittleEndian.Uint64(b[16:24])
}

func (h *heap) writeBlockHeader(off, size, state, next uint64) {
	b := h.data[off : off+blockHeaderSize]
	binary.LittleEndian.PutUint64(b[0:8], size)
	binary.LittleEndian.PutUint64(b[8:16], state)
	binary.LittleEndian.PutUint64(b[16:24], next)
	if h.persist != nil {
		h.persist(int(off), blockHeaderSize)
	}
}

// alloc reserves a block of at least n usable bytes and returns the
// offset of its payload (past the header). It walks the free list
// first-fit, then falls back to growing brk. Returned storage is zeroed.
func (h *heap) alloc(n uint64) (uint64, error) {
	if n == 0 {
		n = 1
	}

	m := h.readMeta()

	var prevOff uint64
	var prevHasPrev bool
	cur := m.freeListHead
	for cur != 0 {
		size, _, next := h.readBlockHeader(cur)
		if size >= n {
			h.unlinkFree(&m, prevOff, prevHasPrev, cur, next)
			h.writeBlockHeader(cur, size, 0, 0)
			h.zero(cur+blockHeaderSize, size)
			return cur + blockHeaderSize, nil
		}
		prevOff = cur
		prevHasPrev = true
		cur = next
	}

	need := blockHeaderSize + n
	if m.brk+need > m.end {
		return 0, newErr("heap.alloc", KindOutOfRange, ErrPoolFull)
	}

	off := m.brk
	h.writeBlockHeader(off, n, 0, 0)
	h.zero(off+blockHeaderSize, n)
	m.brk += need
	h.writeMeta(&m)

	return off + blockHeaderSize, nil
}

// free returns the block whose payload starts at payloadOff to the free
// list head. It does not coalesce with neighbors: the layout has no
// backward link to find the previous physical block in O(1), and the
// spec's allocation volumes don't warrant paying for one.
func (h *heap) free(payloadOff uint64) {
	off := payloadOff - blockHeaderSize
	size, _, _ := h.readBlockHeader(off)

	m := h.readMeta()
	h.writeBlockHeader(off, size, freeMarker, m.freeListHead)
	m.freeListHead = off
	h.writeMeta(&m)
}

func (h *heap) unlinkFree(m *heapMeta, prevOff uint64, hasPrev bool, cur, next uint64) {
	if hasPrev {
		size, state, _ := h.readBlockHeader(prevOff)
		h.writeBlockHeader(prevOff, size, state, next)
	} else {
		m.freeListHead = next
		h.writeMeta(m)
	}
}

// setTypeID tags an allocated block's payload at payloadOff with typeID,
// called once immediately after alloc succeeds and before the block's
// handle is published.
func (h *heap) setTypeID(payloadOff, typeID uint64) {
	off := payloadOff - blockHeaderSize
	size, _, next := h.readBlockHeader(off)
	h.writeBlockHeader(off, size, typeID, next)
}

// typeIDAt returns the type id tag of the allocated block at payloadOff.
func (h *heap) typeIDAt(payloadOff uint64) uint64 {
	_, state, _ := h.readBlockHeader(payloadOff - blockHeaderSize)
	return state
}

// isFreeAt reports whether the block at payloadOff is currently free.
func (h *heap) isFreeAt(payloadOff uint64) bool {
	_, state, _ := h.readBlockHeader(payloadOff - blockHeaderSize)
	return state == freeMarker
}

func (h *heap) zero(off, n uint64) {
	b := h.data[off : off+n]
	for i := range b {
		b[i] = 0
	}
}

// blockSize returns the usable payload size of the block at payloadOff.
func (h *heap) blockSize(payloadOff uint64) uint64 {
	size, _, _ := h.readBlockHeader(payloadOff - blockHeaderSize)
	return size
}

func (h *heap) String() string {
	m := h.readMeta()
	return fmt.Sprintf("heap{brk=%d end=%d freeListHead=%d}", m.brk, m.end, m.freeListHead)
}
