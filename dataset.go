// Package cfa is the store's public façade: a Dataset wraps the
// partition planner, the manifest model and the resource manager
// behind Create/Open, group/dimension/variable creation, hyperslab
// read/write and Close, the way distri's root package wraps its
// internal packages behind Repo and a handful of top-level functions.
package cfa

import (
	"context"
	"log"
	"net/http"
	"path"

	"github.com/cfadata/cfa/internal/backend"
	"github.com/cfadata/cfa/internal/backend/local"
	"github.com/cfadata/cfa/internal/backend/objectstore"
	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/config"
	"github.com/cfadata/cfa/internal/container"
	"github.com/cfadata/cfa/internal/manifest"
	"github.com/cfadata/cfa/internal/resource"
)

// Options configures the backends and resource budget a Dataset uses.
type Options struct {
	Config          config.Config
	FileHandleLimit int // 0 uses the resource manager's own default
	Logger          *log.Logger
}

// Dataset is an open partitioned array store: a manifest-bearing main
// container plus every subarray container its variables' partitions
// reference.
type Dataset struct {
	locator string
	name    string
	mode    backend.OpenMode

	mgr      *resource.Manager
	manifest *manifest.Dataset
	main     *container.Container
}

func buildResolver(cfg config.Config) *backend.Resolver {
	pool := backend.NewPool()
	newLocal := func(p string) backend.Backend { return local.New(p) }
	newObjectStore := func(endpoint, bucket, key string, creds config.Credentials, client *http.Client) backend.Backend {
		return objectstore.New(endpoint, bucket, key, creds, client)
	}
	return backend.NewResolver(cfg, pool, newLocal, newObjectStore)
}

// Create opens a brand-new dataset at locator, always starting from a
// blank manifest (ModeWrite is clobber, the same as for any other
// container this store writes — an existing object at locator is not
// consulted). format/schema follow the same invariant
// manifest.NewDataset enforces (schema v5 requires a substore-capable
// format).
func Create(ctx context.Context, locator string, format manifest.ContainerFormat, schema manifest.SchemaVersion, opts Options) (*Dataset, error) {
	mgr := newManager(opts)
	main, err := mgr.Acquire(ctx, locator, backend.ModeWrite, 0, func() *container.Container {
		return container.New(format)
	})
	if err != nil {
		return nil, err
	}
	mgr.Lock(locator)
	mgr.SetMain(locator)

	name := path.Base(locator)
	ds, err := manifest.NewDataset(name, format, schema)
	if err != nil {
		return nil, err
	}
	main.Root.Attrs[manifest.ReservedAttrConventions] = manifest.AppendConvention("", schema)

	return &Dataset{locator: locator, name: name, mode: backend.ModeWrite, mgr: mgr, manifest: ds, main: main}, nil
}

// Open opens an existing dataset read-only.
func Open(ctx context.Context, locator string, opts Options) (*Dataset, error) {
	mgr := newManager(opts)
	main, err := mgr.Acquire(ctx, locator, backend.ModeRead, 0, func() *container.Container {
		return container.New(manifest.FormatUnknown)
	})
	if err != nil {
		return nil, err
	}
	mgr.Lock(locator)
	mgr.SetMain(locator)

	name := path.Base(locator)
	ds, err := decodeManifestFromContainer(main, name)
	if err != nil {
		return nil, err
	}
	return &Dataset{locator: locator, name: name, mode: backend.ModeRead, mgr: mgr, manifest: ds, main: main}, nil
}

// OpenForWrite opens an existing local dataset for mutation, or
// creates one at locator if none exists yet (format/schema apply only
// to that creation case). Remote locators reject this: the object
// store has no append, matching backend.Backend.Remote's contract.
func OpenForWrite(ctx context.Context, locator string, format manifest.ContainerFormat, schema manifest.SchemaVersion, opts Options) (*Dataset, error) {
	mgr := newManager(opts)
	var fresh bool
	main, err := mgr.Acquire(ctx, locator, backend.ModeAppend, 0, func() *container.Container {
		fresh = true
		return container.New(format)
	})
	if err != nil {
		return nil, err
	}
	mgr.Lock(locator)
	mgr.SetMain(locator)

	name := path.Base(locator)
	var ds *manifest.Dataset
	if fresh {
		ds, err = manifest.NewDataset(name, format, schema)
		if err != nil {
			return nil, err
		}
		main.Root.Attrs[manifest.ReservedAttrConventions] = manifest.AppendConvention("", schema)
	} else {
		ds, err = decodeManifestFromContainer(main, name)
		if err != nil {
			return nil, err
		}
	}
	return &Dataset{locator: locator, name: name, mode: backend.ModeAppend, mgr: mgr, manifest: ds, main: main}, nil
}

func newManager(opts Options) *resource.Manager {
	resolver := buildResolver(opts.Config)
	return resource.NewManager(resolver, opts.Config, opts.FileHandleLimit, opts.Logger)
}

// writable reports whether this Dataset accepts mutation.
func (d *Dataset) writable() error {
	if !d.mode.Writable() {
		return cfaerr.UnsupportedOperation(d.locator, "dataset was opened read-only")
	}
	return nil
}

// Close flushes the manifest and every subarray this session touched,
// then releases every resource-manager record it holds. Every record
// is attempted even if an earlier one fails; see
// resource.Manager.CloseAll for the error-aggregation policy.
func (d *Dataset) Close(ctx context.Context) error {
	if d.mode.Writable() {
		if err := encodeManifestInto(d.main, d.manifest); err != nil {
			return err
		}
	}
	return d.mgr.CloseAll(ctx)
}
