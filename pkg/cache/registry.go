package cache

import (
	"sync"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
)

// Standard cache names used by the statement pipeline. Adapters may register
// additional caches (e.g. a per-driver fast-path query cache) under their own
// names.
const (
	NameTokenizer = "tokenizer"
	NameProcessor = "processor"
	NameCompiler  = "compiler"
	NameQuery     = "query"
)

// Manager is the type-erased management surface every Cache[K, V] satisfies.
// The registry operates on this interface so it can hold caches of differing
// key/value types without generic plumbing.
type Manager interface {
	Clear()
	Stats() Stats
	SetMaxSize(n int) error
}

// Registry tracks the process-scoped caches by name and exposes the
// operational surface (clear, stats, resize). It is constructed once at
// startup and passed by pointer into every component that caches; there is no
// package-level singleton.
type Registry struct {
	mu     sync.Mutex
	caches map[string]Manager
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]Manager)}
}

// Register adds (or replaces) a cache under name.
func (r *Registry) Register(name string, m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[name] = m
}

// ClearAll empties every registered cache.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.caches {
		m.Clear()
	}
}

// Stats returns a snapshot for every registered cache, keyed by name.
func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.caches))
	for name, m := range r.caches {
		out[name] = m.Stats()
	}
	return out
}

// SetMaxSize rebounds the named cache.
func (r *Registry) SetMaxSize(name string, n int) error {
	r.mu.Lock()
	m, ok := r.caches[name]
	r.mu.Unlock()
	if !ok {
		return apperrors.ErrUnknownCache
	}
	return m.SetMaxSize(n)
}
