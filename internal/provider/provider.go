// Package provider defines the uniform contract every external data source
// integration implements, and the registry the aggregator selects adapters
// from.
package provider

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/model"
)

// Query identifies the subject of an adapter call. Name is empty until the
// identity-resolution stage has run; adapters that need it (court search, web
// search) are only invoked afterwards.
type Query struct {
	Identifier string
	Kind       model.IdentifierKind
	Name       string
}

// Adapter is one external data source. Adapters are independent failure
// domains: a failed Fetch never affects another adapter's in-flight call.
type Adapter interface {
	// Name returns the provenance tag recorded on everything this adapter
	// contributes.
	Name() string
	// Supports reports whether the adapter applies to the identifier kind.
	Supports(kind model.IdentifierKind) bool
	// Fetch queries the source and normalizes its response into the
	// shared vocabulary.
	Fetch(ctx context.Context, q Query) (*model.ProviderData, error)
}

// Error is an adapter failure carrying provenance.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string { return e.Provider + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// WrapError tags err with the provider it came from.
func WrapError(provider string, err error) *Error {
	return &Error{Provider: provider, Err: err}
}

// ErrNotFound is returned when the source has no record of the identifier.
var ErrNotFound = eris.New("provider: subject not found")

// Registry holds the configured adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter, replacing any previous one with the same name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the named adapter, or nil.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// ForKind returns every adapter that applies to the identifier kind.
func (r *Registry) ForKind(kind model.IdentifierKind) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Adapter
	for _, a := range r.adapters {
		if a.Supports(kind) {
			out = append(out, a)
		}
	}
	return out
}

// List returns all registered adapter names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
