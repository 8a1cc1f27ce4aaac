package backend

import (
	"net/http"
	"sync"
)

// Pool hands out one *http.Client per endpoint, shared across every
// backend talking to that endpoint, mirroring the single process-wide
// httpClient the reference repo keeps for its package downloads.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewPool returns an empty connection pool.
func NewPool() *Pool {
	return &Pool{clients: map[string]*http.Client{}}
}

// ClientFor returns the shared client for endpoint, creating one on
// first use.
func (p *Pool) ClientFor(endpoint string) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[endpoint]; ok {
		return c
	}
	c := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 16,
		},
	}
	p.clients[endpoint] = c
	return c
}
