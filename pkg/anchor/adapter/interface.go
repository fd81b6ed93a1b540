package adapter

import (
	"context"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// Adapter is the contract every engine implements. Query-shaped operations
// never return a Go error: failures are reported in QueryResult.Error.
// Connect is the exception so callers can tell "never connected" from
// "query failed".
type Adapter interface {
	GetDatabaseType() dbcapabilities.DatabaseID
	Config() ConnectionConfig

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	TestConnection(ctx context.Context) bool

	ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *QueryResult
	GetTableData(ctx context.Context, table string, opts TableDataOptions) *QueryResult
	InsertRow(ctx context.Context, table string, data map[string]interface{}) *QueryResult
	UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *QueryResult
	DeleteRow(ctx context.Context, table string, where map[string]interface{}) *QueryResult

	GetSchema(ctx context.Context, database string) (*Schema, error)
	GetTables(ctx context.Context, database string) ([]Table, error)
	GetColumns(ctx context.Context, table, schema string) ([]Column, error)
	GetIndexes(ctx context.Context, table, schema string) ([]Index, error)
	GetPrimaryKey(ctx context.Context, table, schema string) ([]string, error)
	GetVersion(ctx context.Context) (string, error)

	EscapeIdentifier(name string) string
}

// Primitives is the subset of Adapter the generic algorithms in Base are
// built from. Concrete adapters pass themselves to NewBase.
type Primitives interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *QueryResult
	GetTables(ctx context.Context, database string) ([]Table, error)
	GetColumns(ctx context.Context, table, schema string) ([]Column, error)
	GetIndexes(ctx context.Context, table, schema string) ([]Index, error)
	EscapeIdentifier(name string) string
}

// Optional capabilities. Callers type-assert and degrade gracefully; the
// helpers in unsupported.go do that for them.

// Transactor is implemented by adapters with transaction control.
type Transactor interface {
	BeginTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
}

// ForeignKeyLister lists the foreign keys of a table.
type ForeignKeyLister interface {
	GetForeignKeys(ctx context.Context, table, schema string) ([]ForeignKey, error)
}

// ViewLister lists views.
type ViewLister interface {
	GetViews(ctx context.Context, database string) ([]View, error)
}

// ViewDefinitionProvider returns the definition of a view.
type ViewDefinitionProvider interface {
	GetViewDefinition(ctx context.Context, view, schema string) (string, error)
}

// RoutineLister lists stored procedures and functions.
type RoutineLister interface {
	GetStoredProcedures(ctx context.Context, database string) ([]Routine, error)
}

// TriggerLister lists triggers.
type TriggerLister interface {
	GetTriggers(ctx context.Context, database string) ([]Trigger, error)
}

// UserLister lists users.
type UserLister interface {
	GetUsers(ctx context.Context) ([]User, error)
}

// RoleLister lists roles.
type RoleLister interface {
	GetRoles(ctx context.Context) ([]Role, error)
}

// DatabaseLister lists databases, keyspaces or logical databases.
type DatabaseLister interface {
	GetDatabases(ctx context.Context) ([]string, error)
}

// SchemaLister lists schemas within the current database.
type SchemaLister interface {
	GetSchemas(ctx context.Context) ([]string, error)
}

// Explainer returns the engine plan for a statement.
type Explainer interface {
	ExplainQuery(ctx context.Context, stmt string) *QueryResult
}

// SchemaMetadataProvider returns the lightweight schema summary, usually
// through a single bulk query.
type SchemaMetadataProvider interface {
	GetSchemaMetadata(ctx context.Context, database string) (*SchemaMetadata, error)
}
