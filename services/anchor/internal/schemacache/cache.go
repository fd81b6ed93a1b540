// Package schemacache caches the lightweight schema metadata of each
// connection for autocomplete and query assistance.
package schemacache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/logger"
)

// DefaultTTL is how long metadata is served before it is fetched again.
const DefaultTTL = 60 * time.Second

type key struct {
	connectionID string
	database     string
}

type entry struct {
	metadata  *adapter.SchemaMetadata
	fetchedAt time.Time
}

// Cache maps (connection id, database) to the last fetched metadata.
// Concurrent misses for the same key may fetch twice; the last write wins.
type Cache struct {
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger

	mu      sync.RWMutex
	entries map[key]entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger logs fetch failures to l.
func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[key]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMetadata returns the metadata of database on the adapter's connection.
// A fresh cached value is returned as is. Otherwise the metadata is fetched
// and stored. Nil is returned, and nothing is stored, when the adapter is
// not connected or the fetch fails.
func (c *Cache) GetMetadata(ctx context.Context, a adapter.Adapter, database string) *adapter.SchemaMetadata {
	if a == nil {
		return nil
	}
	k := key{connectionID: a.Config().ID, database: database}

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.metadata
	}

	if !a.IsConnected() {
		return nil
	}
	metadata, err := adapter.FetchSchemaMetadata(ctx, a, database)
	if err != nil || metadata == nil {
		c.logFailure(k, err)
		return nil
	}

	c.mu.Lock()
	c.entries[k] = entry{metadata: metadata, fetchedAt: c.now()}
	c.mu.Unlock()
	return metadata
}

// Invalidate drops every database cached for connectionID.
func (c *Cache) Invalidate(connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.connectionID == connectionID {
			delete(c.entries, k)
		}
	}
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[key]entry)
	c.mu.Unlock()
}

// Len returns the number of cached entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) logFailure(k key, err error) {
	if c.logger == nil {
		return
	}
	if err == nil {
		err = errors.New("no metadata returned")
	}
	c.logger.WithFields(map[string]string{
		"connection_id": k.connectionID,
		"database":      k.database,
	}).Warn("Schema metadata fetch failed: %v", err)
}
