package resource

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/cfadata/cfa/internal/backend"
	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/config"
	"github.com/cfadata/cfa/internal/container"
	"github.com/cfadata/cfa/internal/manifest"
)

// fakeBackend is an in-memory stand-in for local.File/objectstore.Object,
// letting these tests exercise admission and eviction without touching
// the real filesystem or network.
type fakeBackend struct {
	locator string
	remote  bool
	exists  bool
	data    []byte

	uploadParts map[int][]byte
	uploadID    int
}

func (b *fakeBackend) Locator() string { return b.locator }
func (b *fakeBackend) Remote() bool    { return b.remote }

type fakeHandle struct{}

func (fakeHandle) Close() error { return nil }

func (b *fakeBackend) Open(ctx context.Context, mode backend.OpenMode) (backend.Handle, error) {
	return fakeHandle{}, nil
}

func (b *fakeBackend) ReadFrom(ctx context.Context, offset, n int64) ([]byte, error) {
	if !b.exists {
		return nil, cfaerr.MissingEntity(b.locator, b.locator)
	}
	return b.data[offset : offset+n], nil
}

func (b *fakeBackend) ReadAll(ctx context.Context) ([]byte, error) {
	if !b.exists {
		return nil, cfaerr.MissingEntity(b.locator, b.locator)
	}
	return b.data, nil
}

func (b *fakeBackend) WriteAll(ctx context.Context, data []byte) error {
	b.data = append([]byte(nil), data...)
	b.exists = true
	return nil
}

func (b *fakeBackend) WritePart(ctx context.Context, partNumber int, data []byte) (string, error) {
	if b.uploadParts == nil {
		b.uploadParts = map[int][]byte{}
	}
	b.uploadParts[partNumber] = append([]byte(nil), data...)
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (b *fakeBackend) CompleteMultipart(ctx context.Context, parts []backend.Part) error {
	var out []byte
	for i := 1; i <= len(parts); i++ {
		out = append(out, b.uploadParts[i]...)
	}
	b.data = out
	b.exists = true
	b.uploadParts = nil
	return nil
}

func (b *fakeBackend) AbortMultipart(ctx context.Context) error {
	b.uploadParts = nil
	return nil
}

func (b *fakeBackend) Size(ctx context.Context) (int64, error) {
	return int64(len(b.data)), nil
}

func (b *fakeBackend) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

var _ backend.Backend = (*fakeBackend)(nil)

func newTestManager(t *testing.T, fileHandleLimit int, backends map[string]*fakeBackend) *Manager {
	t.Helper()
	resolver := backend.NewResolver(config.Default(), backend.NewPool(),
		func(path string) backend.Backend {
			b, ok := backends[path]
			if !ok {
				b = &fakeBackend{locator: path}
				backends[path] = b
			}
			return b
		},
		func(endpoint, bucket, key string, creds config.Credentials, client *http.Client) backend.Backend {
			panic("object-store path not exercised in this test")
		},
	)
	return NewManager(resolver, config.Default(), fileHandleLimit, nil)
}

func blank() *container.Container {
	return container.New(manifest.FormatClassic)
}

func TestAcquireWriteThenReadRoundTrips(t *testing.T) {
	backends := map[string]*fakeBackend{}
	m := newTestManager(t, 32, backends)
	ctx := context.Background()

	c, err := m.Acquire(ctx, "/data/a.nc", backend.ModeWrite, 0, blank)
	if err != nil {
		t.Fatal(err)
	}
	c.Root.Attrs["Conventions"] = "CFA-0.4"

	if err := m.FreeFile(ctx, "/data/a.nc", false); err != nil {
		t.Fatal(err)
	}
	if !backends["/data/a.nc"].exists {
		t.Fatal("expected backend to have received a WriteAll on flush")
	}

	c2, err := m.Acquire(ctx, "/data/a.nc", backend.ModeRead, 0, blank)
	if err != nil {
		t.Fatal(err)
	}
	if got := c2.Root.Attrs["Conventions"]; got != "CFA-0.4" {
		t.Fatalf("Conventions = %q, want CFA-0.4", got)
	}
}

func TestEvictionKeepsDiskHandleBudget(t *testing.T) {
	backends := map[string]*fakeBackend{}
	const limit = 8
	m := newTestManager(t, limit, backends)
	ctx := context.Background()

	for i := 0; i < limit+10; i++ {
		locator := fmt.Sprintf("/data/v%d.nc", i)
		if _, err := m.Acquire(ctx, locator, backend.ModeWrite, 0, blank); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if got := m.OpenDiskCount(); got > limit-4 {
		t.Fatalf("open disk count = %d, want <= %d", got, limit-4)
	}
}

func TestLockedRecordNeverEvicted(t *testing.T) {
	backends := map[string]*fakeBackend{}
	const limit = 8
	m := newTestManager(t, limit, backends)
	ctx := context.Background()

	if _, err := m.Acquire(ctx, "/data/manifest.nc", backend.ModeWrite, 0, blank); err != nil {
		t.Fatal(err)
	}
	m.Lock("/data/manifest.nc")

	for i := 0; i < limit+10; i++ {
		locator := fmt.Sprintf("/data/v%d.nc", i)
		if _, err := m.Acquire(ctx, locator, backend.ModeWrite, 0, blank); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if m.State("/data/manifest.nc") == DoesNotExist {
		t.Fatal("locked record was evicted")
	}
}

func TestCloseAllFlushesEveryRecord(t *testing.T) {
	backends := map[string]*fakeBackend{}
	m := newTestManager(t, 32, backends)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		locator := fmt.Sprintf("/data/v%d.nc", i)
		c, err := m.Acquire(ctx, locator, backend.ModeWrite, 0, blank)
		if err != nil {
			t.Fatal(err)
		}
		c.Root.Attrs["idx"] = fmt.Sprintf("%d", i)
	}
	if err := m.CloseAll(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		locator := fmt.Sprintf("/data/v%d.nc", i)
		if !backends[locator].exists {
			t.Fatalf("%s was never flushed", locator)
		}
	}
}

// flushOrderBackend records the order in which WriteAll is called
// across every instance sharing the same log, so the test can assert
// on cross-record flush ordering.
type flushOrderBackend struct {
	fakeBackend
	log *[]string
}

func (b *flushOrderBackend) WriteAll(ctx context.Context, data []byte) error {
	*b.log = append(*b.log, b.locator)
	return b.fakeBackend.WriteAll(ctx, data)
}

func TestCloseAllFlushesMainLast(t *testing.T) {
	var log []string
	resolver := backend.NewResolver(config.Default(), backend.NewPool(),
		func(path string) backend.Backend {
			return &flushOrderBackend{fakeBackend: fakeBackend{locator: path}, log: &log}
		},
		func(endpoint, bucket, key string, creds config.Credentials, client *http.Client) backend.Backend {
			panic("object-store path not exercised in this test")
		},
	)
	m := NewManager(resolver, config.Default(), 32, nil)
	ctx := context.Background()

	const main = "/data/manifest.nc"
	if _, err := m.Acquire(ctx, main, backend.ModeWrite, 0, blank); err != nil {
		t.Fatal(err)
	}
	m.Lock(main)
	m.SetMain(main)

	for i := 0; i < 3; i++ {
		locator := fmt.Sprintf("/data/v%d.nc", i)
		if _, err := m.Acquire(ctx, locator, backend.ModeWrite, 0, blank); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.CloseAll(ctx); err != nil {
		t.Fatal(err)
	}
	if len(log) != 4 {
		t.Fatalf("got %d flushes, want 4: %v", len(log), log)
	}
	if got := log[len(log)-1]; got != main {
		t.Fatalf("last flush = %q, want the main locator %q (flush order: %v)", got, main, log)
	}
}

func TestAppendWithoutExistingBackingStartsBlank(t *testing.T) {
	backends := map[string]*fakeBackend{}
	m := newTestManager(t, 32, backends)
	ctx := context.Background()

	c, err := m.Acquire(ctx, "/data/fresh.nc", backend.ModeAppend, 0, blank)
	if err != nil {
		t.Fatal(err)
	}
	if c.Root == nil {
		t.Fatal("expected a usable blank container")
	}
}

func TestMemoryBudgetEvictsRemoteRecords(t *testing.T) {
	m := &Manager{
		log:             nil,
		fileHandleLimit: 32,
		records:         map[string]*record{},
	}
	rec1 := &record{
		locator: "r1",
		state:   OpenExistsInMemory,
		backing: &fakeBackend{locator: "r1", remote: true},
		handle:  fakeHandle{},
		data:    blank(),
		mode:    backend.ModeRead,
	}
	m.records["r1"] = rec1

	if !m.evictOne(context.Background(), OpenExistsInMemory) {
		t.Fatal("expected an in-memory victim to be found and evicted")
	}
	if rec1.state != KnownExistsOnStorage {
		t.Fatalf("state = %v, want KnownExistsOnStorage", rec1.state)
	}
}
