// Package local implements backend.Backend over the host filesystem.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"

	"github.com/cfadata/cfa/internal/backend"
	"github.com/cfadata/cfa/internal/cfaerr"
)

// File is a backend.Backend bound to a single local path.
type File struct {
	path string
}

// New returns a Backend for the given local filesystem path.
func New(path string) *File {
	return &File{path: path}
}

func (f *File) Locator() string { return f.path }

func (f *File) Remote() bool { return false }

type handle struct {
	f *os.File
}

func (h handle) Close() error {
	if h.f == nil {
		return nil
	}
	return h.f.Close()
}

// Open validates that the path can be used in the given mode; append
// is permitted because local backends support in-place growth, unlike
// the object store (backend.Backend.Remote).
func (f *File) Open(ctx context.Context, mode backend.OpenMode) (backend.Handle, error) {
	if mode == backend.ModeRead {
		fh, err := os.Open(f.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, cfaerr.MissingEntity(f.path, f.path)
			}
			return nil, cfaerr.BackendIO(f.path, "opening local file for read", err)
		}
		return handle{f: fh}, nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return nil, cfaerr.BackendIO(f.path, "creating parent directory", err)
	}
	flags := os.O_RDWR | os.O_CREATE
	if mode == backend.ModeWrite {
		flags |= os.O_TRUNC
	}
	fh, err := os.OpenFile(f.path, flags, 0644)
	if err != nil {
		return nil, cfaerr.BackendIO(f.path, "opening local file for write", err)
	}
	return handle{f: fh}, nil
}

func (f *File) ReadFrom(ctx context.Context, offset, n int64) ([]byte, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cfaerr.MissingEntity(f.path, f.path)
		}
		return nil, cfaerr.BackendIO(f.path, "opening local file for ranged read", err)
	}
	defer fh.Close()

	buf := make([]byte, n)
	read, err := fh.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, cfaerr.BackendIO(f.path, "reading local file range", err)
	}
	return buf[:read], nil
}

func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cfaerr.MissingEntity(f.path, f.path)
		}
		return nil, cfaerr.BackendIO(f.path, "reading local file", err)
	}
	return data, nil
}

// WriteAll replaces the file's contents atomically via a temp file and
// rename, so a reader never observes a partially written container.
func (f *File) WriteAll(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return cfaerr.BackendIO(f.path, "creating parent directory", err)
	}
	if err := renameio.WriteFile(f.path, data, 0644); err != nil {
		return cfaerr.BackendIO(f.path, "writing local file", err)
	}
	return nil
}

// WritePart is not part of the local backend's contract: local files
// grow in place instead of through a part/complete protocol.
func (f *File) WritePart(ctx context.Context, partNumber int, data []byte) (string, error) {
	return "", cfaerr.UnsupportedOperation(f.path, "multipart upload is only supported against object-store backends")
}

func (f *File) CompleteMultipart(ctx context.Context, parts []backend.Part) error {
	return cfaerr.UnsupportedOperation(f.path, "multipart upload is only supported against object-store backends")
}

func (f *File) AbortMultipart(ctx context.Context) error {
	return cfaerr.UnsupportedOperation(f.path, "multipart upload is only supported against object-store backends")
}

func (f *File) Size(ctx context.Context) (int64, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, cfaerr.MissingEntity(f.path, f.path)
		}
		return 0, cfaerr.BackendIO(f.path, "statting local file", err)
	}
	return fi.Size(), nil
}

// List enumerates files under the directory named by prefix,
// returning their full paths in sorted order.
func (f *File) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := filepath.Walk(prefix, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cfaerr.BackendIO(prefix, "listing local directory", err)
	}
	sort.Strings(out)
	return out, nil
}

var _ backend.Backend = (*File)(nil)
