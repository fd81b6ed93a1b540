// Package state holds the process-wide connection registry and metadata
// cache shared by the anchor commands.
package state

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/health"
	"github.com/redbco/redb-anchor/pkg/logger"
	"github.com/redbco/redb-anchor/services/anchor/internal/config"
	"github.com/redbco/redb-anchor/services/anchor/internal/database"
	"github.com/redbco/redb-anchor/services/anchor/internal/schemacache"
)

// GlobalState owns the registry, the metadata cache and the loaded config.
type GlobalState struct {
	Registry *database.Registry
	Cache    *schemacache.Cache
	Config   *config.Config
	logger   *logger.Logger
	mu       sync.RWMutex
}

// New creates the state for cfg. Connections are registered lazily.
func New(cfg *config.Config, l *logger.Logger) *GlobalState {
	if cfg == nil {
		cfg = &config.Config{MetadataTTL: config.DefaultMetadataTTL}
	}
	return &GlobalState{
		Registry: database.NewRegistry(database.WithLogger(l)),
		Cache:    schemacache.New(schemacache.WithTTL(cfg.MetadataTTL), schemacache.WithLogger(l)),
		Config:   cfg,
		logger:   l,
	}
}

// Open returns the connected adapter for a connection id or name from the
// config. An empty ref selects the default connection.
func (gs *GlobalState) Open(ctx context.Context, ref string) (adapter.Adapter, error) {
	gs.mu.RLock()
	cfg := gs.Config
	gs.mu.RUnlock()

	conn, err := cfg.Connection(ref)
	if err != nil {
		return nil, err
	}
	return gs.OpenConfig(ctx, conn)
}

// OpenConfig registers conn if needed and connects it.
func (gs *GlobalState) OpenConfig(ctx context.Context, conn adapter.ConnectionConfig) (adapter.Adapter, error) {
	if _, err := gs.Registry.Create(conn); err != nil {
		return nil, fmt.Errorf("failed to create adapter for %s: %w", conn.ID, err)
	}
	return gs.Registry.Connect(ctx, conn.ID)
}

// Metadata returns the cached schema metadata of an open connection.
func (gs *GlobalState) Metadata(ctx context.Context, a adapter.Adapter, database string) *adapter.SchemaMetadata {
	return gs.Cache.GetMetadata(ctx, a, database)
}

// Close forgets the cached metadata of a connection and disconnects it.
func (gs *GlobalState) Close(ctx context.Context, id string) {
	gs.Cache.Invalidate(id)
	gs.Registry.Remove(ctx, id)
}

// Shutdown disconnects every adapter and empties the cache.
func (gs *GlobalState) Shutdown(ctx context.Context) {
	gs.Registry.DisconnectAll(ctx)
	gs.Cache.InvalidateAll()
	if gs.logger != nil {
		gs.logger.Debug("All connections closed")
	}
}

// HealthCheck connects and probes every configured connection
// concurrently. Connections stay open for later use.
func (gs *GlobalState) HealthCheck(ctx context.Context) *health.Checker {
	gs.mu.RLock()
	connections := gs.Config.Connections
	gs.mu.RUnlock()

	checker := health.NewChecker()
	var g errgroup.Group
	for _, conn := range connections {
		g.Go(func() error {
			checker.RunCheck(conn.Name, func() error {
				if _, err := gs.OpenConfig(ctx, conn); err != nil {
					return err
				}
				if !gs.Registry.Probe(ctx, conn.ID) {
					return fmt.Errorf("%s probe failed", conn.Type)
				}
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()
	return checker
}
