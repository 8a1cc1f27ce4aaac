// Package backend defines the common contract implemented by both the
// local filesystem and the object-store transport, so the resource
// manager and dataset façade can address either without a type switch.
package backend

import "context"

// OpenMode mirrors the dataset façade's open modes; for a backend,
// write and append are treated as equivalent.
type OpenMode int

const (
	ModeRead OpenMode = iota
	ModeWrite
	ModeAppend
)

// Writable reports whether m permits writes.
func (m OpenMode) Writable() bool { return m == ModeWrite || m == ModeAppend }

// Equivalent reports whether a and b are the same mode for the
// purposes of "is a reopen needed" (write and append are equivalent).
func Equivalent(a, b OpenMode) bool {
	if a == b {
		return true
	}
	return a.Writable() && b.Writable()
}

// Handle is an open backend resource; backends that need no explicit
// handle (e.g. a stateless object-store client) may return a no-op
// Handle from Open.
type Handle interface {
	Close() error
}

// Backend is the uniform open/read/write/size/list contract over
// local files and the object store.
type Backend interface {
	// Locator returns the backend's own address string, used in error
	// reporting.
	Locator() string

	Open(ctx context.Context, mode OpenMode) (Handle, error)

	ReadFrom(ctx context.Context, offset, n int64) ([]byte, error)
	ReadAll(ctx context.Context) ([]byte, error)
	WriteAll(ctx context.Context, data []byte) error

	// WritePart uploads one multipart part (1-based partNumber) and
	// returns its ETag.
	WritePart(ctx context.Context, partNumber int, data []byte) (etag string, err error)
	// CompleteMultipart finalizes a multipart upload given the
	// accumulated (partNumber, etag) pairs.
	CompleteMultipart(ctx context.Context, parts []Part) error
	// AbortMultipart cancels an in-progress multipart upload.
	AbortMultipart(ctx context.Context) error

	Size(ctx context.Context) (int64, error)
	List(ctx context.Context, prefix string) ([]string, error)

	// Remote reports whether this backend is a network object store
	// (true) or the local filesystem (false); append is only
	// supported when false.
	Remote() bool
}

// Part is one uploaded multipart part.
type Part struct {
	PartNumber int
	ETag       string
}
