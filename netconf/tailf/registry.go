package tailf

import (
	"sort"
	"sync"
)

// Registry maps operation names to the builders that implement them for a device family.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry delivers an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: map[string]Builder{}}
}

// DefaultRegistry delivers a registry holding the builders of every NSO operation, keyed by element name.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(OpStartTransaction.String(), BuildStartTransaction)
	r.Register(OpPrepareTransaction.String(), BuildPrepareTransaction)
	r.Register(OpCommitTransaction.String(), BuildCommitTransaction)
	r.Register(OpAbortTransaction.String(), BuildAbortTransaction)
	r.Register(OpEditConfig.String(), BuildEditConfig)
	r.Register(OpCopyConfig.String(), BuildCopyConfig)
	r.Register(OpCommit.String(), BuildCommit)
	return r
}

// Register associates a builder with an operation name, replacing any existing association.
func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = b
}

// Lookup returns the builder registered for name.
func (r *Registry) Lookup(name string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[name]
	return b, ok
}

// Names lists the registered operation names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
