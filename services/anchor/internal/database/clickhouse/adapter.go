package clickhouse

import (
	"context"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

func init() {
	adapter.Register(dbcapabilities.ClickHouse, New)
}

// Adapter implements adapter.Adapter for ClickHouse through the driver's
// database/sql interface. ClickHouse has no transactions.
type Adapter struct {
	adapter.Base
	common.SQLConn

	config adapter.ConnectionConfig
}

// New creates a ClickHouse adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.ClickHouse, a, adapter.QuestionPlaceholder)
	a.Runner = common.SQLRunner{
		DatabaseType: dbcapabilities.ClickHouse,
		TypeName:     typeName,
		Value:        normalizeValue,
		IsQuery:      isQuery,
	}
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// EscapeIdentifier quotes an identifier with backticks.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.Backtick(name)
}

// ExecuteQuery runs a statement with ? placeholders.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	return a.Exec(ctx, stmt, params)
}

// BeginTransaction is not supported.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	return a.Unsupported("begin_transaction", "ClickHouse does not support transactions")
}

// CommitTransaction is not supported.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.Unsupported("commit_transaction", "ClickHouse does not support transactions")
}

// RollbackTransaction is not supported.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.Unsupported("rollback_transaction", "ClickHouse does not support transactions")
}

// ExplainQuery returns the plan rows of EXPLAIN.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	return a.ExecuteQuery(ctx, "EXPLAIN "+stmt)
}

// GetVersion returns the server version.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	versions, err := common.QueryStrings(ctx, q, "SELECT version()")
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

// isQuery extends the generic heuristic with EXISTS, which returns a row.
func isQuery(stmt string) bool {
	return adapter.IsQueryStatement(stmt) || adapter.LeadingKeyword(stmt) == "EXISTS"
}

var (
	_ adapter.Adapter                = (*Adapter)(nil)
	_ adapter.Transactor             = (*Adapter)(nil)
	_ adapter.ViewLister             = (*Adapter)(nil)
	_ adapter.ViewDefinitionProvider = (*Adapter)(nil)
	_ adapter.RoutineLister          = (*Adapter)(nil)
	_ adapter.UserLister             = (*Adapter)(nil)
	_ adapter.RoleLister             = (*Adapter)(nil)
	_ adapter.DatabaseLister         = (*Adapter)(nil)
	_ adapter.Explainer              = (*Adapter)(nil)
	_ adapter.SchemaMetadataProvider = (*Adapter)(nil)
)
