//go:build cgo

// Package oracle adapts Oracle Database through godror. The driver links the
// Oracle client library with cgo.
package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

func init() {
	adapter.Register(dbcapabilities.Oracle, New)
}

// Adapter implements adapter.Adapter for Oracle.
type Adapter struct {
	adapter.Base
	common.SQLConn

	config adapter.ConnectionConfig
}

// New creates an Oracle adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.Oracle, a, adapter.ColonPPlaceholder)
	a.Dialect.Pagination = adapter.PaginateFetchFirst
	a.ProbeQuery = "SELECT 1 FROM DUAL"
	a.Runner = common.SQLRunner{
		DatabaseType: dbcapabilities.Oracle,
		Value:        normalizeValue,
	}
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// EscapeIdentifier quotes an identifier with double quotes. Quoted Oracle
// identifiers are case sensitive.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.DoubleQuote(name)
}

// ExecuteQuery runs a statement with :p1.. placeholders.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	return a.Exec(ctx, trimStatement(stmt), params)
}

// trimStatement drops the trailing semicolon OCI rejects on plain SQL.
// PL/SQL blocks keep it.
func trimStatement(stmt string) string {
	s := strings.TrimSpace(stmt)
	switch adapter.LeadingKeyword(s) {
	case "BEGIN", "DECLARE":
		return s
	}
	return strings.TrimRight(s, "; \t\r\n")
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

// ExplainQuery stores the plan with EXPLAIN PLAN and reads it back through
// DBMS_XPLAN on the same session.
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

	if _, err := conn.ExecContext(ctx, "EXPLAIN PLAN FOR "+trimStatement(stmt)); err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
	}
	return a.Runner.Run(ctx, conn, "SELECT PLAN_TABLE_OUTPUT FROM TABLE(DBMS_XPLAN.DISPLAY())", nil)
}

// GetVersion returns the first banner line of V$VERSION.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	versions, err := common.QueryStrings(ctx, q, "SELECT BANNER FROM V$VERSION WHERE ROWNUM = 1")
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
