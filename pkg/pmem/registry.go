package pmem

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thromel/pmemtree/pkg/pmem/metrics"
)

// registryEntry records one open pool's address range so an arbitrary
// pointer can be mapped back to the pool that owns it, the same role
// PoolRegistry::poolFromPointer plays for pmemobj_pool_by_ptr.
type registryEntry struct {
	pool *Pool
	lo   uintptr
	hi   uintptr
}

// Registry is a process-global table of open pools, keyed both by UUID
// and by mapped address range. A single process may have many pools
// open at once (one per call to Create/Open); Registry is what lets a
// Handle loaded from one pool find the right *Pool to resolve itself
// against without the caller threading a *Pool through every call.
type Registry struct {
	mu      sync.RWMutex
	byUUID  map[uuid.UUID]*Pool
	byID    map[uint64]*Pool
	entries []registryEntry
	log     logrus.FieldLogger
}

// defaultRegistry is the registry every Pool registers itself with on
// Create/Open and removes itself from on Close, mirroring the single
// process-wide PoolRegistry instance in the original library.
var defaultRegistry = NewRegistry()

// NewRegistry constructs an empty registry. Create and Open always
// register with defaultRegistry, never with an instance built here.
func NewRegistry() *Registry {
	return &Registry{
		byUUID: make(map[uuid.UUID]*Pool),
		byID:   make(map[uint64]*Pool),
		log:    defaultLogger.WithField("component", "pmem.registry"),
	}
}

// Register adds p to the registry under its UUID and address range.
// Register panics on a duplicate UUID: two open Pool values claiming the
// same identity is a serious bug in the caller, never a recoverable
// runtime condition.
func (r *Registry) Register(p *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUUID[p.uuid]; exists {
		panic("pmem: pool " + p.uuid.String() + " already registered")
	}

	r.byUUID[p.uuid] = p
	r.byID[p.id] = p
	r.entries = append(r.entries, registryEntry{
		pool: p,
		lo:   p.mapping.base(),
		hi:   p.mapping.base() + uintptr(p.mapping.len()),
	})
	r.log.WithField("uuid", p.uuid).Debug("pool registered")
	metrics.SetRegistrySize(len(r.byUUID))
}

// Deregister removes p from the registry. It is a no-op if p is not
// registered, so Close can call it unconditionally during cleanup.
func (r *Registry) Deregister(p *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byUUID, p.uuid)
	delete(r.byID, p.id)
	for i, e := range r.entries {
		if e.pool == p {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.log.WithField("uuid", p.uuid).Debug("pool deregistered")
	metrics.SetRegistrySize(len(r.byUUID))
}

// Lookup returns the pool registered under id, or nil if none is open.
func (r *Registry) Lookup(id uuid.UUID) *Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUUID[id]
}

// LookupID returns the pool registered under the compact uint64 pool id
// a Handle carries, or nil if none is open. This is the lookup a
// Handle[T] actually uses, since Handle stores the compact id rather
// than the full 16-byte UUID to keep its own footprint small.
func (r *Registry) LookupID(id uint64) *Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// PoolFromAddr returns the pool whose mapped region contains addr, or nil
// if addr does not fall inside any currently open pool. This is the Go
// analogue of pmemobj_pool_by_ptr: given a raw in-memory address derived
// from a Handle, find which pool's mapping it belongs to.
func (r *Registry) PoolFromAddr(addr uintptr) *Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if addr >= e.lo && addr < e.hi {
			return e.pool
		}
	}
	return nil
}

// PoolFromAddr returns the pool whose mapping contains ptr, the exported
// entry point for a Constructor.Build that needs to allocate a nested
// object in the same pool its own obj pointer already lives in, the way
// TreeNode's constructors build a child Buffer or branch node during
// their own Build. Fails with SeriousBug if ptr is in no known pool.
func PoolFromAddr(ptr unsafe.Pointer) (*Pool, error) {
	p := defaultRegistry.PoolFromAddr(uintptr(ptr))
	if p == nil {
		return nil, newErr("PoolFromAddr", KindSeriousBug, fmt.Errorf("address is not inside any open pool"))
	}
	return p, nil
}

// Len returns the number of currently registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUUID)
}

// RegistryLen returns the number of pools currently open in this process,
// for the CLI's stats subcommand.
func RegistryLen() int { return defaultRegistry.Len() }
