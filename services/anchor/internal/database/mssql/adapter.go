// Package mssql adapts Microsoft SQL Server through go-mssqldb.
package mssql

import (
	"context"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

func init() {
	adapter.Register(dbcapabilities.SQLServer, New)
}

// Adapter implements adapter.Adapter for SQL Server.
type Adapter struct {
	adapter.Base
	common.SQLConn

	config adapter.ConnectionConfig
}

// New creates a SQL Server adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.SQLServer, a, adapter.AtPPlaceholder)
	a.Dialect.Pagination = adapter.PaginateOffsetFetch
	a.Runner = common.SQLRunner{
		DatabaseType: dbcapabilities.SQLServer,
		Value:        normalizeValue,
	}
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// EscapeIdentifier quotes an identifier with brackets.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.Bracket(name)
}

// ExecuteQuery runs a statement with @p1.. placeholders.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	return a.Exec(ctx, stmt, params)
}

// BeginTransaction pins a transaction for subsequent statements.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	return a.Begin(ctx)
}

// CommitTransaction commits the pinned transaction.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.Commit()
}

// RollbackTransaction rolls the pinned transaction back.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.Rollback()
}

// ExplainQuery returns the estimated plan. SHOWPLAN is a session setting, so
// the statement runs on a dedicated connection with the setting switched on.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	started := time.Now()
	db := a.DB()
	if db == nil {
		return adapter.ErrorResult(adapter.NotConnected(a.GetDatabaseType()), started)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET SHOWPLAN_ALL ON"); err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
	}
	defer conn.ExecContext(context.Background(), "SET SHOWPLAN_ALL OFF")

	runner := a.Runner
	runner.IsQuery = func(string) bool { return true }
	return runner.Run(ctx, conn, stmt, nil)
}

// GetVersion returns @@VERSION.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	versions, err := common.QueryStrings(ctx, q, "SELECT @@VERSION")
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_version", err)
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[0], nil
}

func (a *Adapter) connectedQuerier() (common.Querier, error) {
	q := a.Querier()
	if q == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return q, nil
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
