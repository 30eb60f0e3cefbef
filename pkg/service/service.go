// Package service holds shared, long-lived objects that processors look up by
// name, such as counters or connections.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ravi-parthasarathy/nymph/pkg/param"
)

var (
	ErrUnknownType     = errors.New("unknown service type")
	ErrServiceNotFound = errors.New("service not found")
	ErrDuplicateName   = errors.New("service name already registered")
	ErrWrongType       = errors.New("service has a different type")
)

// Service is a named object configured once and shared by processors.
type Service interface {
	Name() string
	Configure(node *param.Node) error
}

// Starter is implemented by services that hold resources between Start and
// Stop.
type Starter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// User is implemented by processors that need services. UseServices is called
// once, after the processor is configured.
type User interface {
	UseServices(tb *Toolbox) error
}

// Factory builds a service called name.
type Factory func(name string) Service

// Registry maps service type names to factories.
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

// Build constructs a service of type typ called name.
func (r *Registry) Build(typ, name string) (Service, error) {
	r.mu.RLock()
	f, ok := r.factories[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, typ)
	}
	s := f(name)
	if s == nil {
		return nil, fmt.Errorf("factory for %q returned nil", typ)
	}
	return s, nil
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
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry that Register populates.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a factory to the default registry.
func Register(typ string, f Factory) {
	defaultRegistry.Register(typ, f)
}

// Get returns the service called name as a T.
func Get[T Service](tb *Toolbox, name string) (T, error) {
	var zero T
	s := tb.GetService(name)
	if s == nil {
		return zero, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	typed, ok := s.(T)
	if !ok {
		return zero, fmt.Errorf("service %q: %w: %T", name, ErrWrongType, s)
	}
	return typed, nil
}
