package resource

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"

	"github.com/cfadata/cfa/internal/backend"
	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/config"
	"github.com/cfadata/cfa/internal/container"
)

// record is one open-file entry: a stable key (the locator itself,
// already unique per subarray/manifest), its backing handle and
// decoded container, and the bookkeeping the admission policy and LRU
// eviction need.
type record struct {
	locator  string
	backing  backend.Backend
	handle   backend.Handle
	data     *container.Container
	sizeHint int64
	state    OpenState
	mode     backend.OpenMode
	locked   bool

	lastAccess time.Time
}

// Manager multiplexes a bounded pool of open backend handles and a
// bounded memory budget across every subarray and manifest container a
// dataset touches. It is not safe to use two Managers against the same
// cache directory concurrently; within one Manager every mutation of
// the registry happens under mu, the single manager-wide mutex chosen
// for this store's concurrency model (task-per-partition goroutines,
// one shared lock), per the open design question on cooperative vs
// thread-per-operation scheduling.
type Manager struct {
	mu sync.Mutex

	log      *log.Logger
	resolver *backend.Resolver

	fileHandleLimit   int
	freeMemoryReserve int64
	cacheDir          string
	partSize          int64

	mainLocator string

	openDiskCount int
	records       map[string]*record
}

// NewManager returns a Manager bound to resolver for opening backends,
// cfg for the cache directory and memory reserve, and fileHandleLimit
// as the soft cap on concurrently open local file handles (the
// admission policy keeps usage at fileHandleLimit-4, a small safety
// slack for auxiliary opens).
func NewManager(resolver *backend.Resolver, cfg config.Config, fileHandleLimit int, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if fileHandleLimit <= 4 {
		fileHandleLimit = 200
	}
	partSize := int64(cfg.MaxObjectSize)
	if partSize <= 0 {
		partSize = backend.DefaultPartSize
	}
	return &Manager{
		log:               logger,
		resolver:          resolver,
		fileHandleLimit:   fileHandleLimit,
		freeMemoryReserve: int64(cfg.FreeMemoryLimit),
		cacheDir:          cfg.CacheLocation,
		partSize:          partSize,
		records:           map[string]*record{},
	}
}

// CacheDir returns the configured disk-buffer cache directory.
func (m *Manager) CacheDir() string { return m.cacheDir }

// FreeMemoryReserve returns the configured memory reserve in bytes.
func (m *Manager) FreeMemoryReserve() int64 { return m.freeMemoryReserve }

// Acquire returns the decoded container for locator, opening and
// admitting a fresh record if none exists yet, or reconciling the
// existing record's mode if it does. blank is called to produce an
// empty container when mode is ModeWrite (clobber) or when mode is
// ModeAppend and no backing object exists yet.
func (m *Manager) Acquire(ctx context.Context, locator string, mode backend.OpenMode, sizeHint int64, blank func() *container.Container) (*container.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[locator]; ok {
		if err := m.ensureMode(ctx, rec, mode, blank); err != nil {
			return nil, err
		}
		rec.lastAccess = time.Now()
		return rec.data, nil
	}

	b, err := m.resolver.Resolve(locator)
	if err != nil {
		return nil, err
	}
	if b.Remote() && mode == backend.ModeAppend {
		return nil, cfaerr.UnsupportedOperation(locator, "append is not supported for remote locators")
	}

	if err := m.admit(ctx, b.Remote(), sizeHint); err != nil {
		return nil, err
	}

	handle, err := b.Open(ctx, mode)
	if err != nil {
		return nil, err
	}

	rec := &record{
		locator:    locator,
		backing:    b,
		handle:     handle,
		sizeHint:   sizeHint,
		state:      open(b.Remote()),
		mode:       mode,
		lastAccess: time.Now(),
	}
	if onDisk(rec.state) {
		m.openDiskCount++
	}
	m.records[locator] = rec

	data, err := m.load(ctx, rec, mode, blank)
	if err != nil {
		if onDisk(rec.state) {
			m.openDiskCount--
		}
		delete(m.records, locator)
		handle.Close()
		return nil, err
	}
	rec.data = data
	rec.state = decoded(rec.state)
	return data, nil
}

// load fetches and decodes rec's backing object, or produces a blank
// container for a brand-new write, or a missing append target.
func (m *Manager) load(ctx context.Context, rec *record, mode backend.OpenMode, blank func() *container.Container) (*container.Container, error) {
	if mode == backend.ModeWrite {
		return blank(), nil
	}
	raw, err := rec.backing.ReadAll(ctx)
	if err != nil {
		if cerr, ok := err.(*cfaerr.Error); ok && cerr.Kind == cfaerr.KindMissingEntity && mode == backend.ModeAppend {
			return blank(), nil
		}
		return nil, err
	}
	return container.Decode(rec.locator, bytes.NewReader(raw))
}

// ensureMode reconciles rec's current mode against a newly requested
// one: read and write/append are equivalence classes per
// backend.Equivalent, so a record that is still open is only closed
// and reopened on a crossing between them; a record whose handle was
// already closed (evicted, or kept by FreeFile) is reopened whatever
// the mode. Remote objects already known to exist on storage
// cannot be reopened directly in a writable mode (the object-store
// contract has no append), so that case streams the object back in
// read mode and duplicates it into a fresh writable in-memory
// container instead.
func (m *Manager) ensureMode(ctx context.Context, rec *record, mode backend.OpenMode, blank func() *container.Container) error {
	if backend.Equivalent(rec.mode, mode) && rec.handle != nil {
		return nil
	}

	if rec.backing.Remote() && rec.state == KnownExistsOnStorage && mode.Writable() {
		raw, err := rec.backing.ReadAll(ctx)
		if err != nil {
			return err
		}
		existing, err := container.Decode(rec.locator, bytes.NewReader(raw))
		if err != nil {
			return err
		}
		handle, err := rec.backing.Open(ctx, mode)
		if err != nil {
			return err
		}
		rec.handle = handle
		rec.data = existing.Clone()
		rec.mode = mode
		rec.state = OpenExistsInMemory
		return nil
	}

	if err := m.closeBacking(ctx, rec, true); err != nil {
		return err
	}
	handle, err := rec.backing.Open(ctx, mode)
	if err != nil {
		return err
	}
	rec.handle = handle
	rec.mode = mode
	rec.state = open(rec.backing.Remote())
	if onDisk(rec.state) {
		m.openDiskCount++
	}
	data, err := m.load(ctx, rec, mode, blank)
	if err != nil {
		return err
	}
	rec.data = data
	rec.state = decoded(rec.state)
	return nil
}

// admit enforces the two admission budgets, evicting LRU unlocked
// victims until the request fits or no victim remains.
func (m *Manager) admit(ctx context.Context, remote bool, sizeHint int64) error {
	if !remote {
		for m.openDiskCount >= m.fileHandleLimit-4 {
			if !m.evictOne(ctx, OpenExistsOnDisk) {
				return cfaerr.OutOfFileHandles("<resource manager>")
			}
		}
		return nil
	}

	avail, err := availableMemory()
	if err != nil {
		return cfaerr.OutOfMemory("<resource manager>", err.Error())
	}
	for avail-m.freeMemoryReserve < sizeHint {
		if !m.evictOne(ctx, OpenExistsInMemory) {
			return cfaerr.OutOfMemory("<resource manager>", "insufficient available memory for requested container")
		}
		avail, err = availableMemory()
		if err != nil {
			return cfaerr.OutOfMemory("<resource manager>", err.Error())
		}
	}
	return nil
}

// evictOne closes the least-recently-used unlocked record in state
// want, if any, returning whether a victim was found.
func (m *Manager) evictOne(ctx context.Context, want OpenState) bool {
	var victim *record
	for _, rec := range m.records {
		if rec.locked || rec.state != want {
			continue
		}
		if victim == nil || rec.lastAccess.Before(victim.lastAccess) {
			victim = rec
		}
	}
	if victim == nil {
		return false
	}
	m.closeBacking(ctx, victim, true)
	return true
}

// closeBacking flushes (if writable and flush is requested) and closes
// rec's backing handle, transitioning it to the appropriate Known
// state and releasing its decoded container. The first flush attempt
// is retried once on a retryable backend error, matching the façade's
// retry policy.
func (m *Manager) closeBacking(ctx context.Context, rec *record, flush bool) error {
	if rec.handle == nil {
		return nil
	}
	if flush && rec.mode.Writable() && rec.data != nil {
		if err := m.flushRecord(ctx, rec); err != nil {
			if !cfaerr.IsRetryable(err) {
				return err
			}
			if err := m.flushRecord(ctx, rec); err != nil {
				return err
			}
		}
	}
	if err := rec.handle.Close(); err != nil {
		return cfaerr.BackendIO(rec.locator, "closing backend handle", err)
	}
	if onDisk(rec.state) {
		m.openDiskCount--
	}
	rec.state = evicted(rec.state)
	rec.handle = nil
	rec.data = nil
	return nil
}

func (m *Manager) flushRecord(ctx context.Context, rec *record) error {
	payload, err := rec.data.EncodeToBytes()
	if err != nil {
		return err
	}
	if !rec.backing.Remote() {
		// Local backends have no multipart contract (local.File's
		// WritePart/CompleteMultipart/AbortMultipart all return
		// UnsupportedOperation); always write the whole payload.
		return rec.backing.WriteAll(ctx, payload)
	}
	return backend.WriteMultipart(ctx, rec.backing, payload, m.partSize)
}

// Lock marks locator's record as never eligible for eviction (the
// manifest container is locked for the lifetime of the dataset).
func (m *Manager) Lock(locator string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[locator]; ok {
		rec.locked = true
	}
}

// SetMain designates locator as the dataset's main (manifest-bearing)
// container: CloseAll flushes every other record first and this one
// last, so a crash mid-close never leaves a flushed manifest
// referencing subarrays that never made it to storage.
func (m *Manager) SetMain(locator string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mainLocator = locator
}

// Unlock clears a previous Lock.
func (m *Manager) Unlock(locator string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[locator]; ok {
		rec.locked = false
	}
}

// FreeFile releases locator's record: flushes and closes its backing
// handle, then either drops the record entirely (keepReference=false,
// moving it to DoesNotExist) or leaves it as a Known-exists entry for
// a cheap future reopen.
func (m *Manager) FreeFile(ctx context.Context, locator string, keepReference bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[locator]
	if !ok {
		return nil
	}
	err := m.closeBacking(ctx, rec, true)
	if !keepReference {
		delete(m.records, locator)
	}
	return err
}

// CloseAll flushes and closes every open record, as the façade's Close
// does for every dirty subarray plus the manifest. Non-main records
// are flushed first; the main (manifest) record, if any is open, is
// flushed last, so a crash between the two phases can only leave the
// manifest stale, never referencing subarrays that were never
// written. Every record is attempted even after a failure; the first
// non-retryable error is returned once best-effort completion
// finishes.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	record := func(err error) {
		if err == nil {
			return
		}
		if first == nil {
			first = err
		} else if cfaerr.IsRetryable(first) && !cfaerr.IsRetryable(err) {
			first = err
		}
	}

	for locator, rec := range m.records {
		if locator == m.mainLocator {
			continue
		}
		record(m.closeBacking(ctx, rec, true))
		delete(m.records, locator)
	}
	if rec, ok := m.records[m.mainLocator]; ok {
		record(m.closeBacking(ctx, rec, true))
		delete(m.records, m.mainLocator)
	}
	return first
}

// OpenDiskCount reports the number of records currently counted
// against the file-handle budget, exposed for tests of the eviction
// property.
func (m *Manager) OpenDiskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openDiskCount
}

// State reports the open state of locator's record, or DoesNotExist
// if there is none.
func (m *Manager) State(locator string) OpenState {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[locator]
	if !ok {
		return DoesNotExist
	}
	return rec.state
}
