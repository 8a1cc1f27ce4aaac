package resource

import (
	"os"

	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"
)

// Buffer is the addressable result area a hyperslab read is decoded
// into: either a plain in-memory byte slice, or a disk-backed file
// when the requested size would not fit the memory budget.
type Buffer interface {
	WriteAt(p []byte, off int64) (int, error)
	ReadAt(p []byte, off int64) (int, error)
	Bytes() []byte // nil for disk-backed buffers; use ReadAt there
	Close() error
}

type memBuffer struct {
	data []byte
}

func newMemBuffer(size int64) *memBuffer {
	return &memBuffer{data: make([]byte, size)}
}

func (b *memBuffer) WriteAt(p []byte, off int64) (int, error) {
	return copy(b.data[off:], p), nil
}

func (b *memBuffer) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, b.data[off:]), nil
}

func (b *memBuffer) Bytes() []byte { return b.data }

func (b *memBuffer) Close() error { return nil }

// diskBuffer backs a result buffer with a file in the configured cache
// directory, named from the dataset's basename plus a random suffix,
// written via WriteAt/ReadAt and exposed for random-access reads
// through a memory-mapped view once population is complete, matching
// how the installer maps a finished squashfs image rather than
// streaming it.
type diskBuffer struct {
	f    *os.File
	path string
	ra   *mmap.ReaderAt
}

func newDiskBuffer(cacheDir, datasetBase string, size int64) (*diskBuffer, error) {
	if cacheDir == "" {
		return nil, xerrors.Errorf("no cache_location configured for disk-backed buffer")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, xerrors.Errorf("creating cache directory %q: %v", cacheDir, err)
	}
	f, err := os.CreateTemp(cacheDir, datasetBase+".*.buf")
	if err != nil {
		return nil, xerrors.Errorf("creating disk-backed buffer in %q: %v", cacheDir, err)
	}
	path := f.Name()
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, xerrors.Errorf("sizing disk-backed buffer %q: %v", path, err)
	}
	return &diskBuffer{f: f, path: path}, nil
}

func (b *diskBuffer) WriteAt(p []byte, off int64) (int, error) {
	return b.f.WriteAt(p, off)
}

func (b *diskBuffer) ReadAt(p []byte, off int64) (int, error) {
	if b.ra != nil {
		return b.ra.ReadAt(p, off)
	}
	return b.f.ReadAt(p, off)
}

// Bytes always returns nil for a disk-backed buffer: it is never
// materialized wholesale in process memory, which is the entire point
// of spilling it to disk.
func (b *diskBuffer) Bytes() []byte { return nil }

// mapForReading syncs pending writes and switches to a memory-mapped
// read-only view, releasing the write file descriptor. Callers that
// only read after population (the common case: a finished result
// buffer handed to the façade caller) should call this once writing
// is done.
func (b *diskBuffer) mapForReading() error {
	if b.ra != nil {
		return nil
	}
	if err := b.f.Sync(); err != nil {
		return xerrors.Errorf("syncing disk-backed buffer %q: %v", b.path, err)
	}
	ra, err := mmap.Open(b.path)
	if err != nil {
		return xerrors.Errorf("mapping disk-backed buffer %q: %v", b.path, err)
	}
	b.ra = ra
	b.f.Close()
	return nil
}

func (b *diskBuffer) Close() error {
	if b.ra != nil {
		b.ra.Close()
	}
	b.f.Close()
	return os.Remove(b.path)
}

// AllocateBuffer returns a Buffer of size bytes, spilling to a
// disk-backed file in cacheDir when size would not fit the memory
// budget (available memory minus the configured reserve).
func AllocateBuffer(cacheDir, datasetBase string, size, freeMemoryReserve int64) (Buffer, error) {
	avail, err := availableMemory()
	if err != nil {
		return nil, xerrors.Errorf("probing available memory: %v", err)
	}
	if avail-freeMemoryReserve >= size {
		return newMemBuffer(size), nil
	}
	return newDiskBuffer(cacheDir, datasetBase, size)
}

// FinalizeBuffer prepares a buffer for read-only handoff to the
// caller, mapping disk-backed buffers for random access.
func FinalizeBuffer(b Buffer) error {
	if db, ok := b.(*diskBuffer); ok {
		return db.mapForReading()
	}
	return nil
}
