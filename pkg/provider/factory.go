package provider

import (
	"fmt"
	"sync"
)

// Parameter describes one named configuration value a factory accepts.
// Pure metadata; the configuration loader renders these to the user.
// Immutable
type Parameter struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// Factory is a registry entry: a self-describing, constructible provider
// kind. CanProvide decides whether this factory handles a given address;
// New builds a ready provider from a string-keyed parameter map or fails
// with an initialization error.
type Factory struct {
	ID         string
	New        func(params map[string]string) (Provider, error)
	CanProvide func(url string) bool
	Parameters []Parameter
}

// Registry is an append-only collection of factories. It is populated
// once at process start (each provider package registers itself) and
// treated as read-only afterwards; there is no removal.
type Registry struct {
	mu        sync.RWMutex
	factories []Factory
	byID      map[string]int
}

// NewRegistry returns an empty registry. Most callers use Default.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]int)}
}

// defaultRegistry is the process-wide registry the provider subpackages
// register into at startup.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a factory. Factory ids are unique across the registry;
// a duplicate id is a programming error and panics at startup rather
// than surfacing later as ambiguity.
func (r *Registry) Register(f Factory) {
	if f.ID == "" || f.New == nil || f.CanProvide == nil {
		panic("provider: incomplete factory registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[f.ID]; dup {
		panic(fmt.Sprintf("provider: factory %q registered twice", f.ID))
	}
	r.byID[f.ID] = len(r.factories)
	r.factories = append(r.factories, f)
}

// Get returns the factory with the given id.
func (r *Registry) Get(id string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return Factory{}, false
	}
	return r.factories[i], true
}

// FactoryFor scans for a factory whose CanProvide accepts url. Zero
// matches yields a provider-not-found error. When several factories
// match, the first registered wins; callers that want their own
// disambiguation policy use FactoriesFor.
func (r *Registry) FactoryFor(url string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.factories {
		if f.CanProvide(url) {
			return f, nil
		}
	}
	return Factory{}, ErrProviderNotFound(url)
}

// FactoriesFor returns every factory that accepts url, in registration
// order.
func (r *Registry) FactoriesFor(url string) []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Factory
	for _, f := range r.factories {
		if f.CanProvide(url) {
			out = append(out, f)
		}
	}
	return out
}

// Factories returns all registered factories in registration order.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Factory, len(r.factories))
	copy(out, r.factories)
	return out
}
