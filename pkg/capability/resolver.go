package capability

import (
	"fmt"
	"sync"

	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/query"
)

// Arguments are the raw arguments of the read request containing the custom field.
type Arguments map[string]any

// ResolverContext is the condition being resolved.
type ResolverContext struct {
	Entity     string
	Field      string
	Comparator comparator.Comparator
	Value      any
}

// Resolver applies a custom filter field to the base query in place of native
// predicate emission.
type Resolver func(base query.Query, args Arguments, rc ResolverContext) (query.Query, error)

// ResolverRegistry maps hook names to resolvers.
type ResolverRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{
		resolvers: map[string]Resolver{},
	}
}

func (r *ResolverRegistry) Register(name string, resolver Resolver) error {
	if name == "" {
		return fmt.Errorf("resolver name is required")
	}
	if resolver == nil {
		return fmt.Errorf("resolver '%s' is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[name]; exists {
		return fmt.Errorf("resolver '%s' is already registered", name)
	}
	r.resolvers[name] = resolver
	return nil
}

func (r *ResolverRegistry) Get(name string) (Resolver, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.resolvers[name]
	return resolver, ok
}

// Lookup returns the resolver of a custom field: its inline function first, then
// the registered hook it names.
func (r *ResolverRegistry) Lookup(cf CustomField) (Resolver, bool) {
	if cf.Resolve != nil {
		return cf.Resolve, true
	}
	if cf.ResolverName == "" {
		return nil, false
	}
	return r.Get(cf.ResolverName)
}
