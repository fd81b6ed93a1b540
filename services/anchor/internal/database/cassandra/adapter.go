// Package cassandra adapts Apache Cassandra and compatible stores. Schema
// comes from system_schema, statements are CQL with ? placeholders and
// paging beyond LIMIT happens client side. CQL has no interactive
// transactions.
package cassandra

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gocql/gocql"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.Cassandra, New)
}

// Adapter implements adapter.Adapter for Cassandra.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig

	mu        sync.RWMutex
	session   *gocql.Session
	connected int32
}

// New creates a Cassandra adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.Cassandra, a, adapter.QuestionPlaceholder)
	a.ProbeQuery = "SELECT release_version FROM system.local"
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// IsConnected reports whether Connect succeeded and Disconnect has not run.
func (a *Adapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// EscapeIdentifier double quotes a CQL identifier.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.DoubleQuote(name)
}

// GetVersion returns the release version of the coordinator node.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	session, err := a.cqlSession()
	if err != nil {
		return "", err
	}
	var version string
	if err := session.Query("SELECT release_version FROM system.local").WithContext(ctx).Scan(&version); err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_version", err)
	}
	return "Cassandra " + version, nil
}

func (a *Adapter) BeginTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "CQL has no multi-statement transactions")
}

func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "CQL has no multi-statement transactions")
}

func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "CQL has no multi-statement transactions")
}

func (a *Adapter) cqlSession() (*gocql.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return a.session, nil
}

var (
	_ adapter.Adapter                = (*Adapter)(nil)
	_ adapter.DatabaseLister         = (*Adapter)(nil)
	_ adapter.ViewLister             = (*Adapter)(nil)
	_ adapter.ViewDefinitionProvider = (*Adapter)(nil)
	_ adapter.UserLister             = (*Adapter)(nil)
	_ adapter.RoleLister             = (*Adapter)(nil)
	_ adapter.SchemaMetadataProvider = (*Adapter)(nil)
)
