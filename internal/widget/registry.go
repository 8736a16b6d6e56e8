package widget

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds widget factories by kind.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return fmt.Errorf("widget kind is required")
	}
	if f == nil {
		return fmt.Errorf("widget %q: nil factory", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("widget %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Build creates a widget of the given kind.
func (r *Registry) Build(kind string, env Env) (Widget, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown widget %q (available: %v)", kind, r.Kinds())
	}
	w, err := f(env)
	if err != nil {
		return nil, fmt.Errorf("building widget %q: %w", kind, err)
	}
	return w, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
