package mysql

import (
	"context"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

func init() {
	adapter.Register(dbcapabilities.MySQL, New)
}

// Adapter implements adapter.Adapter for MySQL through database/sql.
type Adapter struct {
	adapter.Base
	common.SQLConn

	config adapter.ConnectionConfig
}

// New creates a MySQL adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return NewWithType(dbcapabilities.MySQL, config)
}

// NewWithType creates an adapter reporting dbType, for MySQL-compatible
// engines.
func NewWithType(dbType dbcapabilities.DatabaseID, config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbType, a, adapter.QuestionPlaceholder)
	a.Runner = common.SQLRunner{
		DatabaseType: dbType,
		Value:        normalizeValue,
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

// ExplainQuery returns the execution plan rows.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	return a.ExecuteQuery(ctx, "EXPLAIN "+stmt)
}

// GetVersion returns the server version.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	versions, err := common.QueryStrings(ctx, q, "SELECT VERSION()")
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
	_ adapter.Explainer              = (*Adapter)(nil)
	_ adapter.SchemaMetadataProvider = (*Adapter)(nil)
)
