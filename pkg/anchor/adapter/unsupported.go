package adapter

import (
	"context"
	"time"
)

// Helpers that probe an adapter for an optional capability and degrade to an
// UnsupportedOperationError when it is absent.

// Introspector is the part of the contract the metadata fan-out needs.
type Introspector interface {
	GetTables(ctx context.Context, database string) ([]Table, error)
	GetColumns(ctx context.Context, table, schema string) ([]Column, error)
}

// DefaultSchemaMetadata lists tables, then the columns of each table. A
// table whose columns cannot be read is reported without columns. Views are
// added when the source implements ViewLister.
func DefaultSchemaMetadata(ctx context.Context, src Introspector, database string) (*SchemaMetadata, error) {
	tables, err := src.GetTables(ctx, database)
	if err != nil {
		return nil, err
	}

	meta := &SchemaMetadata{
		Database: database,
		Tables:   make([]TableMetadata, 0, len(tables)),
	}
	for _, t := range tables {
		tm := TableMetadata{Name: t.Name, Schema: t.Schema, Columns: []ColumnMetadata{}}
		cols, err := src.GetColumns(ctx, t.Name, t.Schema)
		if err == nil {
			for _, c := range cols {
				tm.Columns = append(tm.Columns, ColumnMetadata{Name: c.Name, Type: c.Type})
			}
		}
		meta.Tables = append(meta.Tables, tm)
	}

	if lister, ok := src.(ViewLister); ok {
		if views, err := lister.GetViews(ctx, database); err == nil {
			for _, v := range views {
				meta.Views = append(meta.Views, TableMetadata{Name: v.Name, Schema: v.Schema, Columns: []ColumnMetadata{}})
			}
		}
	}
	return meta, nil
}

// FetchSchemaMetadata prefers the adapter's own GetSchemaMetadata and falls
// back to DefaultSchemaMetadata.
func FetchSchemaMetadata(ctx context.Context, a Adapter, database string) (*SchemaMetadata, error) {
	if p, ok := a.(SchemaMetadataProvider); ok {
		return p.GetSchemaMetadata(ctx, database)
	}
	return DefaultSchemaMetadata(ctx, a, database)
}

// BeginTransaction starts a transaction when the adapter supports it.
func BeginTransaction(ctx context.Context, a Adapter) error {
	if t, ok := a.(Transactor); ok {
		return t.BeginTransaction(ctx)
	}
	return NewUnsupportedOperationError(a.GetDatabaseType(), "transactions", "")
}

// CommitTransaction commits when the adapter supports transactions.
func CommitTransaction(ctx context.Context, a Adapter) error {
	if t, ok := a.(Transactor); ok {
		return t.CommitTransaction(ctx)
	}
	return NewUnsupportedOperationError(a.GetDatabaseType(), "transactions", "")
}

// RollbackTransaction rolls back when the adapter supports transactions.
func RollbackTransaction(ctx context.Context, a Adapter) error {
	if t, ok := a.(Transactor); ok {
		return t.RollbackTransaction(ctx)
	}
	return NewUnsupportedOperationError(a.GetDatabaseType(), "transactions", "")
}

// ForeignKeys returns the foreign keys of a table, or an empty list for
// engines without the concept.
func ForeignKeys(ctx context.Context, a Adapter, table, schema string) ([]ForeignKey, error) {
	if l, ok := a.(ForeignKeyLister); ok {
		return l.GetForeignKeys(ctx, table, schema)
	}
	return []ForeignKey{}, nil
}

// Views lists views.
func Views(ctx context.Context, a Adapter, database string) ([]View, error) {
	if l, ok := a.(ViewLister); ok {
		return l.GetViews(ctx, database)
	}
	return nil, NewUnsupportedOperationError(a.GetDatabaseType(), "views", "")
}

// ViewDefinition returns the definition of a view.
func ViewDefinition(ctx context.Context, a Adapter, view, schema string) (string, error) {
	if p, ok := a.(ViewDefinitionProvider); ok {
		return p.GetViewDefinition(ctx, view, schema)
	}
	return "", NewUnsupportedOperationError(a.GetDatabaseType(), "view definitions", "")
}

// StoredProcedures lists stored procedures and functions.
func StoredProcedures(ctx context.Context, a Adapter, database string) ([]Routine, error) {
	if l, ok := a.(RoutineLister); ok {
		return l.GetStoredProcedures(ctx, database)
	}
	return nil, NewUnsupportedOperationError(a.GetDatabaseType(), "stored procedures", "")
}

// Triggers lists triggers.
func Triggers(ctx context.Context, a Adapter, database string) ([]Trigger, error) {
	if l, ok := a.(TriggerLister); ok {
		return l.GetTriggers(ctx, database)
	}
	return nil, NewUnsupportedOperationError(a.GetDatabaseType(), "triggers", "")
}

// Users lists users.
func Users(ctx context.Context, a Adapter) ([]User, error) {
	if l, ok := a.(UserLister); ok {
		return l.GetUsers(ctx)
	}
	return nil, NewUnsupportedOperationError(a.GetDatabaseType(), "users", "")
}

// Roles lists roles.
func Roles(ctx context.Context, a Adapter) ([]Role, error) {
	if l, ok := a.(RoleLister); ok {
		return l.GetRoles(ctx)
	}
	return nil, NewUnsupportedOperationError(a.GetDatabaseType(), "roles", "")
}

// Databases lists databases.
func Databases(ctx context.Context, a Adapter) ([]string, error) {
	if l, ok := a.(DatabaseLister); ok {
		return l.GetDatabases(ctx)
	}
	return nil, NewUnsupportedOperationError(a.GetDatabaseType(), "databases", "")
}

// Schemas lists schemas.
func Schemas(ctx context.Context, a Adapter) ([]string, error) {
	if l, ok := a.(SchemaLister); ok {
		return l.GetSchemas(ctx)
	}
	return nil, NewUnsupportedOperationError(a.GetDatabaseType(), "schemas", "")
}

// Explain returns the plan of a statement as a result.
func Explain(ctx context.Context, a Adapter, stmt string) *QueryResult {
	if e, ok := a.(Explainer); ok {
		return e.ExplainQuery(ctx, stmt)
	}
	return ErrorResult(NewUnsupportedOperationError(a.GetDatabaseType(), "explain", ""), time.Now())
}
