package postgres

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.PostgreSQL, New)
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Options adjusts the adapter for wire-compatible engines.
type Options struct {
	// ExcludedSchemas are hidden from table, view and routine listings in
	// addition to the PostgreSQL catalogs.
	ExcludedSchemas []string
	// DefaultDatabase is used when the config names none.
	DefaultDatabase string
}

// Adapter implements adapter.Adapter for PostgreSQL over a pgx pool.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig
	opts   Options

	mu        sync.RWMutex
	pool      *pgxpool.Pool
	tx        pgx.Tx
	connected int32
}

// New creates a PostgreSQL adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return NewWithOptions(dbcapabilities.PostgreSQL, config, Options{DefaultDatabase: "postgres"})
}

// NewWithOptions creates an adapter reporting dbType, for engines that speak
// the PostgreSQL protocol.
func NewWithOptions(dbType dbcapabilities.DatabaseID, config adapter.ConnectionConfig, opts Options) *Adapter {
	a := &Adapter{config: config, opts: opts}
	a.Base = adapter.NewBase(dbType, a, adapter.DollarPlaceholder)
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// EscapeIdentifier quotes an identifier with double quotes.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.DoubleQuote(name)
}

// GetVersion returns the server version string.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	q := a.querier()
	if q == nil {
		return "", adapter.NotConnected(a.GetDatabaseType())
	}
	var version string
	if err := q.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_version", err)
	}
	return version, nil
}

// querier returns the open transaction, or the pool when none is open.
func (a *Adapter) querier() querier {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tx != nil {
		return a.tx
	}
	if a.pool == nil {
		return nil
	}
	return a.pool
}

var (
	_ adapter.Adapter                = (*Adapter)(nil)
	_ adapter.Transactor             = (*Adapter)(nil)
	_ adapter.ForeignKeyLister       = (*Adapter)(nil)
	_ adapter.ViewLister             = (*Adapter)(nil)
	_ adapter.ViewDefinitionProvider = (*Adapter)(nil)
	_ adapter.RoutineLister          = (*Adapter)(nil)
	_ adapter.TriggerLister          = (*Adapter)(nil)
	_ adapter.UserLister             = (*Adapter)(nil)
	_ adapter.RoleLister             = (*Adapter)(nil)
	_ adapter.DatabaseLister         = (*Adapter)(nil)
	_ adapter.SchemaLister           = (*Adapter)(nil)
	_ adapter.Explainer              = (*Adapter)(nil)
	_ adapter.SchemaMetadataProvider = (*Adapter)(nil)
)
