// Package database owns the live adapters of the process. Engine adapters
// live in the sub-packages and register their constructors in init.
package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/logger"
)

// ErrConnectionNotFound is returned for an id with no registered adapter.
var ErrConnectionNotFound = errors.New("connection not found")

// Registry maps connection ids to their single adapter instance. It is the
// only owner of live adapters.
type Registry struct {
	drivers *adapter.Registry
	log     *DatabaseLogger

	mu       sync.RWMutex
	adapters map[string]adapter.Adapter
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger logs connection lifecycle events to l.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		r.log = NewDatabaseLogger(l)
	}
}

// WithDrivers replaces the global driver registry as the constructor source.
func WithDrivers(drivers *adapter.Registry) Option {
	return func(r *Registry) {
		r.drivers = drivers
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		drivers:  adapter.GlobalRegistry(),
		log:      NewDatabaseLogger(nil),
		adapters: make(map[string]adapter.Adapter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create returns the adapter for cfg.ID, constructing it on first use. An
// existing adapter is returned unchanged even if cfg differs. Create never
// connects.
func (r *Registry) Create(cfg adapter.ConnectionConfig) (adapter.Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[cfg.ID]; ok {
		return a, nil
	}
	a, err := r.drivers.New(cfg)
	if err != nil {
		return nil, err
	}
	r.adapters[cfg.ID] = a
	return a, nil
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id string) (adapter.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return a, nil
}

// Connect connects the adapter registered under id and logs the outcome.
func (r *Registry) Connect(ctx context.Context, id string) (adapter.Adapter, error) {
	a, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	logCtx := contextFor(a)
	r.log.LogConnectionAttempt(logCtx)
	if err := a.Connect(ctx); err != nil {
		r.log.LogConnectionFailure(logCtx, err)
		return nil, err
	}
	r.log.LogConnectionSuccess(logCtx)
	return a, nil
}

// Probe runs TestConnection on the adapter registered under id and logs
// the result. An unknown id is unhealthy.
func (r *Registry) Probe(ctx context.Context, id string) bool {
	a, err := r.Get(id)
	if err != nil {
		return false
	}
	healthy := a.TestConnection(ctx)
	r.log.LogHealthCheck(contextFor(a), healthy)
	return healthy
}

// Remove disconnects the adapter, ignoring disconnect errors, and evicts
// it. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.RLock()
	a, ok := r.adapters[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	r.disconnect(ctx, a)

	r.mu.Lock()
	if r.adapters[id] == a {
		delete(r.adapters, id)
	}
	r.mu.Unlock()
}

// DisconnectAll disconnects every adapter concurrently and clears the
// registry. Disconnect failures are logged and otherwise ignored.
func (r *Registry) DisconnectAll(ctx context.Context) {
	r.mu.Lock()
	adapters := r.adapters
	r.adapters = make(map[string]adapter.Adapter)
	r.mu.Unlock()

	var g errgroup.Group
	for _, a := range adapters {
		g.Go(func() error {
			r.disconnect(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
}

// disconnect never lets an adapter panic escape.
func (r *Registry) disconnect(ctx context.Context, a adapter.Adapter) {
	logCtx := contextFor(a)
	defer func() {
		if p := recover(); p != nil {
			r.log.LogDisconnectionFailure(logCtx, fmt.Errorf("panic: %v", p))
		}
	}()

	r.log.LogDisconnectionAttempt(logCtx)
	if err := a.Disconnect(ctx); err != nil {
		r.log.LogDisconnectionFailure(logCtx, err)
		return
	}
	r.log.LogDisconnectionSuccess(logCtx)
}

// List returns the registered connection ids in lexical order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
