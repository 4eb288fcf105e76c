// Package idregistry maps client-supplied idempotency tokens to record
// identifiers. Each distinct token receives exactly one identifier for the
// lifetime of the process.
package idregistry

import (
	"strconv"
	"sync"
)

// DefaultStart is the counter value before the first issuance. The first
// identifier issued is DefaultStart+1.
const DefaultStart int64 = 1000

// Registry issues identifiers from a monotonically increasing counter.
type Registry struct {
	mu      sync.Mutex
	counter int64
	ids     map[string]string
}

// New creates a registry whose counter starts at start.
func New(start int64) *Registry {
	return &Registry{
		counter: start,
		ids:     make(map[string]string),
	}
}

// IssueOrGet returns the identifier bound to token, issuing a new one on
// first sight. The boolean is false for an empty token, which never
// receives an identifier. Concurrent callers with the same token all
// observe the same identifier and the counter advances once.
func (r *Registry) IssueOrGet(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[token]; ok {
		return id, true
	}
	r.counter++
	id := strconv.FormatInt(r.counter, 10)
	r.ids[token] = id
	return id, true
}

// Lookup returns the identifier bound to token without issuing one.
func (r *Registry) Lookup(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.ids[token]
	return id, ok
}

// Len returns the number of tokens bound so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}
