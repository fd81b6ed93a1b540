package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// Base provides the generic defaults of the contract: statement synthesis
// for table data and row edits, literal transactions, the connection probe
// and the schema fan-out. Engines embed Base and override what is wrong for
// them.
type Base struct {
	dbType  dbcapabilities.DatabaseID
	prims   Primitives
	Dialect Dialect

	// ProbeQuery is the no-op statement run by TestConnection.
	ProbeQuery string
	// Probe replaces ProbeQuery for engines without a statement language.
	Probe func(ctx context.Context) error
}

// NewBase wires the defaults to the primitives of a concrete adapter.
func NewBase(dbType dbcapabilities.DatabaseID, prims Primitives, placeholder PlaceholderStyle) Base {
	return Base{
		dbType: dbType,
		prims:  prims,
		Dialect: Dialect{
			Quote:       prims.EscapeIdentifier,
			Placeholder: placeholder,
		},
		ProbeQuery: "SELECT 1",
	}
}

// GetDatabaseType returns the engine tag.
func (b *Base) GetDatabaseType() dbcapabilities.DatabaseID {
	return b.dbType
}

// InlineParams substitutes params into stmt using the engine's placeholder
// syntax.
func (b *Base) InlineParams(stmt string, params []interface{}) (string, error) {
	return InlineParams(stmt, b.Dialect.Placeholder, params)
}

// Unsupported returns the error for an operation the engine cannot perform.
func (b *Base) Unsupported(operation, reason string) error {
	return NewUnsupportedOperationError(b.dbType, operation, reason)
}

// GetTableData runs SELECT * with the requested filter, order and paging.
func (b *Base) GetTableData(ctx context.Context, table string, opts TableDataOptions) *QueryResult {
	stmt, args := b.Dialect.Select(table, opts)
	return b.prims.ExecuteQuery(ctx, stmt, args...)
}

// InsertRow inserts one row.
func (b *Base) InsertRow(ctx context.Context, table string, data map[string]interface{}) *QueryResult {
	stmt, args, err := b.Dialect.Insert(table, data)
	if err != nil {
		return ErrorResult(WrapError(b.dbType, "insert_row", err), time.Now())
	}
	return b.prims.ExecuteQuery(ctx, stmt, args...)
}

// UpdateRow updates the rows matching where.
func (b *Base) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *QueryResult {
	stmt, args, err := b.Dialect.Update(table, data, where)
	if err != nil {
		return ErrorResult(WrapError(b.dbType, "update_row", err), time.Now())
	}
	return b.prims.ExecuteQuery(ctx, stmt, args...)
}

// DeleteRow deletes the rows matching where.
func (b *Base) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *QueryResult {
	stmt, args, err := b.Dialect.Delete(table, where)
	if err != nil {
		return ErrorResult(WrapError(b.dbType, "delete_row", err), time.Now())
	}
	return b.prims.ExecuteQuery(ctx, stmt, args...)
}

func (b *Base) runTransactionStatement(ctx context.Context, stmt, operation string) error {
	res := b.prims.ExecuteQuery(ctx, stmt)
	if res.Failed() {
		return NewDatabaseError(b.dbType, operation, fmt.Errorf("%w: %s", ErrTransactionFailed, res.Error))
	}
	return nil
}

// BeginTransaction issues BEGIN.
func (b *Base) BeginTransaction(ctx context.Context) error {
	return b.runTransactionStatement(ctx, "BEGIN", "begin_transaction")
}

// CommitTransaction issues COMMIT.
func (b *Base) CommitTransaction(ctx context.Context) error {
	return b.runTransactionStatement(ctx, "COMMIT", "commit_transaction")
}

// RollbackTransaction issues ROLLBACK.
func (b *Base) RollbackTransaction(ctx context.Context) error {
	return b.runTransactionStatement(ctx, "ROLLBACK", "rollback_transaction")
}

// TestConnection connects if needed, runs the probe and restores the
// original connection state. It never panics.
func (b *Base) TestConnection(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if !b.prims.IsConnected() {
		if err := b.prims.Connect(ctx); err != nil {
			return false
		}
		defer func() {
			_ = b.prims.Disconnect(ctx)
		}()
	}

	if b.Probe != nil {
		return b.Probe(ctx) == nil
	}
	return !b.prims.ExecuteQuery(ctx, b.ProbeQuery).Failed()
}

// GetPrimaryKey returns the primary key columns reported by GetColumns.
func (b *Base) GetPrimaryKey(ctx context.Context, table, schema string) ([]string, error) {
	cols, err := b.prims.GetColumns(ctx, table, schema)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, c := range cols {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys, nil
}

// GetSchemaMetadata fans out GetTables and GetColumns.
func (b *Base) GetSchemaMetadata(ctx context.Context, database string) (*SchemaMetadata, error) {
	return DefaultSchemaMetadata(ctx, b.prims, database)
}

// GetSchema builds the full schema table by table. A table whose columns,
// indexes or foreign keys cannot be read keeps what could be read.
func (b *Base) GetSchema(ctx context.Context, database string) (*Schema, error) {
	tables, err := b.prims.GetTables(ctx, database)
	if err != nil {
		return nil, WrapError(b.dbType, "get_schema", err)
	}

	fkLister, hasFKs := b.prims.(ForeignKeyLister)
	schema := &Schema{
		DatabaseType: b.dbType,
		Database:     database,
		Tables:       make([]Table, 0, len(tables)),
	}
	for _, t := range tables {
		if cols, err := b.prims.GetColumns(ctx, t.Name, t.Schema); err == nil {
			t.Columns = cols
		}
		if idx, err := b.prims.GetIndexes(ctx, t.Name, t.Schema); err == nil {
			t.Indexes = idx
		}
		if hasFKs {
			if fks, err := fkLister.GetForeignKeys(ctx, t.Name, t.Schema); err == nil {
				t.ForeignKeys = fks
			}
		}
		schema.Tables = append(schema.Tables, t)
	}

	if lister, ok := b.prims.(ViewLister); ok {
		if views, err := lister.GetViews(ctx, database); err == nil {
			schema.Views = views
		}
	}
	return schema, nil
}
