package pmem

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// poolMagic identifies a file as a pool created by this package, the way
// libpmemobj stamps its own magic number into a pool's header.
const poolMagic uint64 = 0x706d656d74726565 // "pmemtree" in ASCII, packed

// Pool header layout, all little-endian, at offset 0 of the mapped file:
//
//	[0:8)    magic      uint64
//	[8:16)   layout     FixedString8
//	[16:32)  uuid       16 bytes
//	[32:40)  rootOffset uint64
//	[40:48)  rootTypeID uint64
//	[48:56)  checksum   uint64 (xxhash64 of [0:48) and [56:poolHeaderSize))
//	[56:128) reserved
const (
	poolHeaderMagicOff    = 0
	poolHeaderLayoutOff   = 8
	poolHeaderUUIDOff     = 16
	poolHeaderRootOff     = 32
	poolHeaderRootTypeOff = 40
	poolHeaderChecksumOff = 48
	poolHeaderSize        = 128

	heapMetaOffset = poolHeaderSize
	heapDataOffset = heapMetaOffset + heapMetaSize
)

// DefaultPoolSize is used when a caller does not specify a size at
// creation time: 64MiB, comfortably larger than any single-pool test
// fixture this package ships while staying cheap to mmap.
const DefaultPoolSize int64 = 64 * 1024 * 1024

// Config controls pool creation, following the Default/validate pattern
// the storage engine config uses.
type Config struct {
	// Size is the total mapped file size in bytes, fixed for the life
	// of the pool: this package does not support growing a pool file
	// after creation.
	Size int64
	// Layout is an application-chosen tag identifying the schema the
	// pool's root object follows; Open fails with ErrLayoutMismatch if
	// it does not match the layout the pool was created with.
	Layout string
}

// DefaultConfig returns a Config with DefaultPoolSize and an empty layout.
func DefaultConfig() *Config {
	return &Config{Size: DefaultPoolSize}
}

func (c *Config) validate() error {
	if c.Size <= poolHeaderSize+heapMetaSize {
		return fmt.Errorf("pool size %d too small to hold a header", c.Size)
	}
	if len(c.Layout) > 8 {
		return fmt.Errorf("layout %q longer than 8 bytes", c.Layout)
	}
	return nil
}

// Pool is an open memory-mapped persistent object pool: one file, one
// mmap'd region, one heap, one optional typed root object. It is the Go
// analogue of PersistentPool / PMemPool.
type Pool struct {
	mu      sync.Mutex
	path    string
	mapping *mapping
	heap    *heap
	uuid    uuid.UUID
	id      uint64 // xxhash64(uuid), the compact identity a Handle carries
	layout  FixedString8
	closed  bool
	created bool // true iff this process's Create (not Open) made the pool
	log     logrus.FieldLogger
}

// Create creates a new pool file at path, sized and tagged per cfg, and
// registers it with the default registry. The returned Pool has no root
// object yet; call SetRoot to designate one, after which Root[T]
// resolves it.
func Create(path string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, newErr("Create", KindCreateError, err)
	}

	m, err := createAndMap(path, cfg.Size)
	if err != nil {
		return nil, newErr("Create", KindCreateError, err)
	}

	poolUUID := uuid.New()
	layout := NewFixedString8(cfg.Layout)

	p := &Pool{
		path:    path,
		mapping: m,
		uuid:    poolUUID,
		id:      compactPoolID(poolUUID),
		layout:  layout,
		created: true,
		log:     defaultLogger.WithFields(logrus.Fields{"component": "pmem.pool", "path": path, "uuid": poolUUID}),
	}
	p.heap = newHeap(m.data, heapMetaOffset, heapDataOffset, uint64(cfg.Size)-heapDataOffset, m.persistRange)

	p.writeHeader(0, 0)
	defaultRegistry.Register(p)

	p.log.Info("pool created")
	return p, nil
}

// Open maps an existing pool file at path and validates its layout tag
// against cfg.Layout (when non-empty) and its header checksum.
func Open(path string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, newErr("Open", KindOpenError, err)
	}

	m, err := mapFile(path, info.Size())
	if err != nil {
		return nil, newErr("Open", KindOpenError, err)
	}

	p := &Pool{
		path:    path,
		mapping: m,
		log:     defaultLogger.WithFields(logrus.Fields{"component": "pmem.pool", "path": path}),
	}

	if err := p.readHeader(); err != nil {
		m.close()
		return nil, newErr("Open", KindOpenError, err)
	}
	p.id = compactPoolID(p.uuid)

	if cfg.Layout != "" && p.layout.String() != cfg.Layout {
		m.close()
		return nil, newErr("Open", KindOpenError, ErrLayoutMismatch)
	}

	p.heap = openHeap(m.data, heapMetaOffset, heapDataOffset, m.persistRange)
	p.log = p.log.WithField("uuid", p.uuid)

	defaultRegistry.Register(p)
	p.log.Info("pool opened")
	return p, nil
}

// writeHeader serializes the pool's identity and root pointer into the
// mapped header and flushes it. rootOff/rootType of 0 mean "no root".
func (p *Pool) writeHeader(rootOff, rootType uint64) {
	b := p.mapping.data[:poolHeaderSize]

	binary.LittleEndian.PutUint64(b[poolHeaderMagicOff:], poolMagic)
	copy(b[poolHeaderLayoutOff:poolHeaderLayoutOff+8], p.layout[:])
	uuidBytes, _ := p.uuid.MarshalBinary()
	copy(b[poolHeaderUUIDOff:poolHeaderUUIDOff+16], uuidBytes)
	binary.LittleEndian.PutUint64(b[poolHeaderRootOff:], rootOff)
	binary.LittleEndian.PutUint64(b[poolHeaderRootTypeOff:], rootType)

	sum := headerChecksum(b)
	binary.LittleEndian.PutUint64(b[poolHeaderChecksumOff:], sum)

	p.mapping.persistRange(0, poolHeaderSize)
}

func (p *Pool) readHeader() error {
	b := p.mapping.data[:poolHeaderSize]

	magic := binary.LittleEndian.Uint64(b[poolHeaderMagicOff:])
	if magic != poolMagic {
		return fmt.Errorf("bad pool magic %x", magic)
	}

	sum := binary.LittleEndian.Uint64(b[poolHeaderChecksumOff:])
	if got := headerChecksum(b); got != sum {
		return fmt.Errorf("pool header checksum mismatch: want %x got %x", sum, got)
	}

	var layout FixedString8
	copy(layout[:], b[poolHeaderLayoutOff:poolHeaderLayoutOff+8])
	p.layout = layout

	id, err := uuid.FromBytes(b[poolHeaderUUIDOff : poolHeaderUUIDOff+16])
	if err != nil {
		return fmt.Errorf("bad pool uuid: %w", err)
	}
	p.uuid = id

	return nil
}

// headerChecksum hashes the header with the checksum field itself
// zeroed out, so verification is order-independent of write time.
func headerChecksum(b []byte) uint64 {
	tmp := make([]byte, len(b))
	copy(tmp, b)
	binary.LittleEndian.PutUint64(tmp[poolHeaderChecksumOff:], 0)
	return xxhash.Sum64(tmp)
}

// UUID returns the pool's identity, stable across Close/Open cycles.
func (p *Pool) UUID() uuid.UUID { return p.uuid }

// ID returns the compact uint64 identity a Handle[T] stores in place of
// the full UUID.
func (p *Pool) ID() uint64 { return p.id }

// compactPoolID derives the compact identity a Handle carries from a
// pool's full UUID.
func compactPoolID(id uuid.UUID) uint64 {
	b, _ := id.MarshalBinary()
	return xxhash.Sum64(b)
}

// Layout returns the pool's layout tag.
func (p *Pool) Layout() string { return p.layout.String() }

// Path returns the backing file path.
func (p *Pool) Path() string { return p.path }

// Size returns the total mapped size in bytes.
func (p *Pool) Size() int64 { return int64(p.mapping.len()) }

// NewPool reports whether this process's own call created the pool (via
// Create) rather than reattached to an existing one (via Open). It is
// always false after an Open, even immediately after the file was first
// created by some other process or an earlier run.
func (p *Pool) NewPool() bool { return p.created }

// rootOffset returns the current root offset and type id from the header.
func (p *Pool) rootOffset() (off, typeID uint64) {
	b := p.mapping.data[:poolHeaderSize]
	return binary.LittleEndian.Uint64(b[poolHeaderRootOff:]), binary.LittleEndian.Uint64(b[poolHeaderRootTypeOff:])
}

// Close unmaps and closes the pool file, deregistering it. Close is
// idempotent: calling it twice is a no-op, matching Pool's role as a
// resource a defer can safely double-release during error unwinding.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	defaultRegistry.Deregister(p)
	p.log.Info("pool closing")
	return p.mapping.close()
}

// Remove deletes a pool's file from disk. The pool must already be
// closed (or never opened); Remove does not itself close an open Pool.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return newErr("Remove", KindOpenError, err)
	}
	return nil
}

// offsetOf returns p's byte offset for a pointer known to live inside
// p's mapping, the inverse of ptrAt.
func (p *Pool) offsetOf(ptr unsafe.Pointer) uint64 {
	return uint64(uintptr(ptr) - p.mapping.base())
}

// ptrAt returns a pointer to byte offset off within p's mapping.
func (p *Pool) ptrAt(off uint64) unsafe.Pointer {
	return unsafe.Pointer(&p.mapping.data[off])
}

// persistRange flushes [off, off+n) of the pool's mapping to disk.
func (p *Pool) persistRange(off, n int) error {
	return p.mapping.persistRange(off, n)
}

// OffsetOf is the exported form of offsetOf, for packages outside pmem
// (e.g. tree) that need to persist a field of an already-resolved
// persistent struct by byte range.
func (p *Pool) OffsetOf(ptr unsafe.Pointer) uint64 { return p.offsetOf(ptr) }

// PersistRange is the exported form of persistRange.
func (p *Pool) PersistRange(off uint64, n int) error { return p.persistRange(int(off), n) }
