package pmem

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapping owns a single mmap'd region backing a pool file. It plays the
// role the original library gives to the raw mmap() call inside
// PersistentPool::create/open: one contiguous region of virtual memory
// whose address range the registry uses to resolve a *T back to its
// owning pool.
type mapping struct {
	file *os.File
	data []byte
}

// mapFile mmaps size bytes of path (which must already be at least size
// bytes long) read-write and shared, so writes are visible to every
// process mapping the same file and are recoverable after a crash once
// flushed.
func mapFile(path string, size int64) (*mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &mapping{file: f, data: data}, nil
}

// createAndMap creates path, sizes it to size bytes and maps it. It fails
// if path already exists.
func createAndMap(path string, size int64) (*mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("truncate %s: %w", path, err)
	}
	f.Close()

	return mapFile(path, size)
}

// base returns the address of byte zero of the mapping, used by the
// registry to test whether an arbitrary pointer falls inside this pool.
func (m *mapping) base() uintptr {
	if len(m.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.data[0]))
}

func (m *mapping) len() int { return len(m.data) }

// persist flushes the whole mapping to the backing file, analogous to
// pmemobj_persist for a non-pmem-aware mmap: msync forces the dirty
// pages out before returning.
func (m *mapping) persist() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

// persistRange flushes only [off, off+n) to the backing file. msync
// operates on whole pages, so this still syncs every page the range
// touches, but it lets call sites express their actual dirty range the
// same way the original library's persist(ptr, size) does.
func (m *mapping) persistRange(off, n int) error {
	if off < 0 || n < 0 || off+n > len(m.data) {
		return fmt.Errorf("persistRange: range [%d,%d) out of bounds for mapping of size %d", off, off+n, len(m.data))
	}
	pageSize := unix.Getpagesize()
	start := (off / pageSize) * pageSize
	end := off + n
	return unix.Msync(m.data[start:end], unix.MS_SYNC)
}

func (m *mapping) close() error {
	var errs []error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			errs = append(errs, err)
		}
		m.data = nil
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			errs = append(errs, err)
		}
		m.file = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing mapping: %v", errs)
	}
	return nil
}
