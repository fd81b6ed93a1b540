package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

const mainSchema = "main"

// notInternal filters the sqlite_ tables the library maintains itself.
const notInternal = `name NOT LIKE 'sqlite\_%' ESCAPE '\'`

var triggerHeader = regexp.MustCompile(`(?i)\b(BEFORE|AFTER|INSTEAD\s+OF)\s+(INSERT|UPDATE|DELETE)\b`)

func schemaOrMain(schema string) string {
	if schema == "" {
		return mainSchema
	}
	return schema
}

// master returns the catalog table of an attached database.
func (a *Adapter) master(database string) string {
	return a.EscapeIdentifier(schemaOrMain(database)) + ".sqlite_master"
}

// GetTables lists the tables of the main database or of an attached one.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q,
		"SELECT name FROM "+a.master(database)+" WHERE type = 'table' AND "+notInternal+" ORDER BY name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	tables := make([]adapter.Table, len(names))
	for i, n := range names {
		tables[i] = adapter.Table{Name: n, Schema: schemaOrMain(database), Type: adapter.TableKindTable}
	}
	return tables, nil
}

// GetColumns lists the columns of a table. A lone INTEGER PRIMARY KEY is an
// alias of the rowid and reported as auto-increment.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?, ?) ORDER BY cid`,
		table, schemaOrMain(schema))
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	defer rows.Close()

	var (
		columns = []adapter.Column{}
		pkCount int
		rowid   = -1
	)
	for rows.Next() {
		var (
			col           adapter.Column
			cid, notNull  int
			pk            int
			columnDefault sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &columnDefault, &pk); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
		}
		col.OrdinalPosition = cid + 1
		col.PrimaryKey = pk > 0
		// Primary key columns are reported NOT NULL.
		col.Nullable = notNull == 0 && !col.PrimaryKey
		if columnDefault.Valid {
			d := columnDefault.String
			col.Default = &d
		}
		if col.PrimaryKey {
			pkCount++
			if strings.EqualFold(col.Type, "INTEGER") {
				rowid = len(columns)
			}
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	if len(columns) == 0 {
		return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "table", table)
	}
	if pkCount == 1 && rowid >= 0 {
		columns[rowid].AutoIncrement = true
	}
	return columns, nil
}

// GetIndexes lists the indexes of a table, including the automatic ones
// behind PRIMARY KEY and UNIQUE constraints.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT il.name, il."unique", il.origin, ii.name
		FROM pragma_index_list(?1, ?2) il
		JOIN pragma_index_info(il.name, ?2) ii
		ORDER BY il.name, ii.seqno`, table, schemaOrMain(schema))
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	defer rows.Close()

	var indexes common.IndexCollector
	for rows.Next() {
		var (
			name, origin string
			unique       int
			column       sql.NullString
		)
		if err := rows.Scan(&name, &unique, &origin, &column); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
		}
		indexes.Add(name, column.String, unique == 1, origin == "pk")
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	return indexes.Indexes(), nil
}

// GetForeignKeys lists the foreign keys of a table. SQLite does not name
// them, so the name is derived from the table and the key id.
func (a *Adapter) GetForeignKeys(ctx context.Context, table, schema string) ([]adapter.ForeignKey, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, "table", "from", "to", on_delete, on_update
		FROM pragma_foreign_key_list(?, ?)
		ORDER BY id, seq`, table, schemaOrMain(schema))
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
	}
	defer rows.Close()

	var keys common.ForeignKeyCollector
	for rows.Next() {
		var (
			id                 int
			refTable, column   string
			refColumn          sql.NullString
			onDelete, onUpdate string
		)
		if err := rows.Scan(&id, &refTable, &column, &refColumn, &onDelete, &onUpdate); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
		}
		keys.Add(fmt.Sprintf("fk_%s_%d", table, id), column, refTable, refColumn.String, onDelete, onUpdate)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
	}
	return keys.ForeignKeys(), nil
}

// GetViews lists views with their CREATE VIEW statements.
func (a *Adapter) GetViews(ctx context.Context, database string) ([]adapter.View, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, "SELECT name, sql FROM "+a.master(database)+" WHERE type = 'view' ORDER BY name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	defer rows.Close()

	views := []adapter.View{}
	for rows.Next() {
		var (
			v          = adapter.View{Schema: schemaOrMain(database)}
			definition sql.NullString
		)
		if err := rows.Scan(&v.Name, &definition); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
		}
		v.Definition = definition.String
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	return views, nil
}

// GetViewDefinition returns the CREATE VIEW statement of a view.
func (a *Adapter) GetViewDefinition(ctx context.Context, view, schema string) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	defs, err := common.QueryStrings(ctx, q,
		"SELECT sql FROM "+a.master(schema)+" WHERE type = 'view' AND name = ?", view)
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_view_definition", err)
	}
	if len(defs) == 0 {
		return "", adapter.NewNotFoundError(a.GetDatabaseType(), "view", view)
	}
	return defs[0], nil
}

// GetTriggers lists triggers. Timing and event are read from the CREATE
// TRIGGER statement.
func (a *Adapter) GetTriggers(ctx context.Context, database string) ([]adapter.Trigger, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT name, tbl_name, sql FROM "+a.master(database)+" WHERE type = 'trigger' ORDER BY name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	defer rows.Close()

	triggers := []adapter.Trigger{}
	for rows.Next() {
		var (
			t    adapter.Trigger
			stmt sql.NullString
		)
		if err := rows.Scan(&t.Name, &t.Table, &stmt); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
		}
		if m := triggerHeader.FindStringSubmatch(stmt.String); m != nil {
			t.Timing = strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
			t.Event = strings.ToUpper(m[2])
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	return triggers, nil
}

// GetDatabases lists the main database and attached databases.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, "SELECT name FROM pragma_database_list ORDER BY seq")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	return names, nil
}

// GetSchemaMetadata reads every table and view column in one query.
func (a *Adapter) GetSchemaMetadata(ctx context.Context, database string) (*adapter.SchemaMetadata, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT m.name, m.type, p.name, p.type
		FROM `+a.master(database)+` m
		JOIN pragma_table_info(m.name, ?) p
		WHERE m.type IN ('table', 'view') AND m.`+notInternal+`
		ORDER BY m.name, p.cid`, schemaOrMain(database))
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	defer rows.Close()

	meta := common.NewMetadataCollector(database)
	for rows.Next() {
		var table, kind, column, columnType string
		if err := rows.Scan(&table, &kind, &column, &columnType); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
		}
		meta.Add(schemaOrMain(database), table, column, columnType, kind == "view")
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	return meta.Metadata(), nil
}
