package backend

import (
	"net/http"

	"github.com/cfadata/cfa/internal/config"
)

// Resolver turns locator strings into concrete Backend values, sharing
// one connection Pool across every object-store backend it creates.
// newLocal/newObjectStore are injected by the caller (the façade
// package) so this package need not import local/objectstore, which
// both import backend themselves.
type Resolver struct {
	cfg  config.Config
	pool *Pool

	newObjectStore func(endpoint, bucket, key string, creds config.Credentials, client *http.Client) Backend
	newLocal       func(path string) Backend
}

// NewResolver builds a Resolver over cfg, sharing pool across backends
// it creates.
func NewResolver(cfg config.Config, pool *Pool, newLocal func(path string) Backend, newObjectStore func(endpoint, bucket, key string, creds config.Credentials, client *http.Client) Backend) *Resolver {
	return &Resolver{cfg: cfg, pool: pool, newLocal: newLocal, newObjectStore: newObjectStore}
}

// Resolve parses raw and returns the Backend that serves it.
func (r *Resolver) Resolve(raw string) (Backend, error) {
	loc, err := ParseLocator(raw, r.cfg)
	if err != nil {
		return nil, err
	}
	if !loc.Remote {
		return r.newLocal(loc.Path), nil
	}
	creds := config.Credentials{}
	if loc.Alias != "" {
		if host, ok := r.cfg.HostFor(loc.Alias); ok {
			creds = host.Credentials
		}
	}
	client := r.pool.ClientFor(loc.Endpoint)
	return r.newObjectStore(loc.Endpoint, loc.Bucket, loc.Key, creds, client), nil
}
