package processor

import (
	"fmt"
	"sync"
)

// Factory builds a processor called name.
type Factory func(name string) Processor

// Registry maps processor type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a factory with a type name, replacing any previous one.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Build constructs a processor of type typ called name.
func (r *Registry) Build(typ, name string) (Processor, error) {
	r.mu.RLock()
	f, ok := r.factories[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (is the package that registers it imported?)", ErrUnknownType, typ)
	}
	p := f(name)
	if p == nil {
		return nil, fmt.Errorf("factory for %q returned nil", typ)
	}
	return p, nil
}

// CouldBuild reports whether typ is registered.
func (r *Registry) CouldBuild(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.factories)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry that Register populates.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a factory to the default registry. Call it from init() in
// packages that provide processors.
func Register(typ string, f Factory) {
	defaultRegistry.Register(typ, f)
}
