package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// Factory constructs an adapter for a connection. Construction never
// connects.
type Factory func(cfg ConnectionConfig) Adapter

// Registry maps engine tags to adapter constructors. Engine packages
// register themselves in init, so a binary only links the engines it
// imports.
type Registry struct {
	factories map[dbcapabilities.DatabaseID]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new driver registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[dbcapabilities.DatabaseID]Factory),
	}
}

// Register registers a constructor, replacing any previous one for the tag.
func (r *Registry) Register(dbType dbcapabilities.DatabaseID, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[dbType] = factory
}

// Lookup returns the constructor for an engine tag.
// Returns ErrAdapterNotFound if the engine is not registered.
func (r *Registry) Lookup(dbType dbcapabilities.DatabaseID) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[dbType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, dbType)
	}
	return factory, nil
}

// New validates cfg, applies defaults and constructs the adapter.
func (r *Registry) New(cfg ConnectionConfig) (Adapter, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := r.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	return factory(cfg), nil
}

// IsRegistered checks if a constructor is registered for the engine tag.
func (r *Registry) IsRegistered(dbType dbcapabilities.DatabaseID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[dbType]
	return exists
}

// ListRegistered returns the registered engine tags in lexical order.
func (r *Registry) ListRegistered() []dbcapabilities.DatabaseID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]dbcapabilities.DatabaseID, 0, len(r.factories))
	for dbType := range r.factories {
		types = append(types, dbType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// globalRegistry is the default driver registry.
var globalRegistry = NewRegistry()

// Register registers a constructor in the global registry.
func Register(dbType dbcapabilities.DatabaseID, factory Factory) {
	globalRegistry.Register(dbType, factory)
}

// Lookup returns a constructor from the global registry.
func Lookup(dbType dbcapabilities.DatabaseID) (Factory, error) {
	return globalRegistry.Lookup(dbType)
}

// New constructs an adapter through the global registry.
func New(cfg ConnectionConfig) (Adapter, error) {
	return globalRegistry.New(cfg)
}

// IsRegistered checks the global registry.
func IsRegistered(dbType dbcapabilities.DatabaseID) bool {
	return globalRegistry.IsRegistered(dbType)
}

// ListRegistered returns the engine tags in the global registry.
func ListRegistered() []dbcapabilities.DatabaseID {
	return globalRegistry.ListRegistered()
}

// GlobalRegistry returns the global driver registry.
func GlobalRegistry() *Registry {
	return globalRegistry
}
