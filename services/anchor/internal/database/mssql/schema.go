package mssql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

const defaultSchema = "dbo"

// objectID resolves @p1 (schema) and @p2 (name) to an object id.
const objectID = "OBJECT_ID(QUOTENAME(@p1) + '.' + QUOTENAME(@p2))"

func schemaOrDefault(schema string) string {
	if schema == "" {
		return defaultSchema
	}
	return schema
}

// referentialAction turns NO_ACTION into NO ACTION.
func referentialAction(desc string) string {
	return strings.ReplaceAll(desc, "_", " ")
}

// GetTables lists user tables of the connected database with their row
// counts. The pool is bound to one database, so the argument is ignored.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT s.name, t.name,
		       (SELECT SUM(p.rows) FROM sys.partitions p
		        WHERE p.object_id = t.object_id AND p.index_id IN (0, 1))
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE t.is_ms_shipped = 0
		ORDER BY s.name, t.name`)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	defer rows.Close()

	tables := []adapter.Table{}
	for rows.Next() {
		var (
			t     = adapter.Table{Type: adapter.TableKindTable}
			count sql.NullInt64
		)
		if err := rows.Scan(&t.Schema, &t.Name, &count); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
		}
		if count.Valid {
			n := count.Int64
			t.RowCount = &n
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	return tables, nil
}

// GetColumns lists the columns of a table in ordinal order.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, c.CHARACTER_MAXIMUM_LENGTH, c.IS_NULLABLE, c.COLUMN_DEFAULT,
		       COLUMNPROPERTY(`+objectID+`, c.COLUMN_NAME, 'IsIdentity'),
		       CASE WHEN EXISTS (
		           SELECT 1 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		           JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
		             ON k.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		           WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		             AND tc.TABLE_SCHEMA = c.TABLE_SCHEMA AND tc.TABLE_NAME = c.TABLE_NAME
		             AND k.COLUMN_NAME = c.COLUMN_NAME
		       ) THEN 1 ELSE 0 END,
		       c.ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`, schemaOrDefault(schema), table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	defer rows.Close()

	columns := []adapter.Column{}
	for rows.Next() {
		var (
			col           adapter.Column
			dataType      string
			maxLength     sql.NullInt64
			nullable      string
			columnDefault sql.NullString
			identity      sql.NullInt64
			primary       int
		)
		if err := rows.Scan(&col.Name, &dataType, &maxLength, &nullable, &columnDefault,
			&identity, &primary, &col.OrdinalPosition); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
		}
		col.Type = columnTypeName(dataType, maxLength)
		col.Nullable = nullable == "YES"
		col.PrimaryKey = primary == 1
		col.AutoIncrement = identity.Valid && identity.Int64 == 1
		if columnDefault.Valid {
			d := columnDefault.String
			col.Default = &d
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	return columns, nil
}

// GetIndexes lists the indexes of a table. Included columns are not part of
// the key and are skipped.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT i.name, i.is_unique, i.is_primary_key, c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE i.object_id = `+objectID+`
		  AND i.type > 0 AND ic.is_included_column = 0
		ORDER BY i.name, ic.key_ordinal`, schemaOrDefault(schema), table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	defer rows.Close()

	var indexes common.IndexCollector
	for rows.Next() {
		var (
			name, column    string
			unique, primary bool
		)
		if err := rows.Scan(&name, &unique, &primary, &column); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
		}
		indexes.Add(name, column, unique, primary)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	return indexes.Indexes(), nil
}

// GetForeignKeys lists the foreign keys of a table.
func (a *Adapter) GetForeignKeys(ctx context.Context, table, schema string) ([]adapter.ForeignKey, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT fk.name,
		       COL_NAME(fkc.parent_object_id, fkc.parent_column_id),
		       OBJECT_NAME(fkc.referenced_object_id),
		       COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id),
		       fk.delete_referential_action_desc, fk.update_referential_action_desc
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		WHERE fk.parent_object_id = `+objectID+`
		ORDER BY fk.name, fkc.constraint_column_id`, schemaOrDefault(schema), table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
	}
	defer rows.Close()

	var keys common.ForeignKeyCollector
	for rows.Next() {
		var name, column, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&name, &column, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
		}
		keys.Add(name, column, refTable, refColumn, referentialAction(onDelete), referentialAction(onUpdate))
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
	}
	return keys.ForeignKeys(), nil
}

// GetViews lists views with their definitions.
func (a *Adapter) GetViews(ctx context.Context, database string) ([]adapter.View, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT s.name, v.name, m.definition
		FROM sys.views v
		JOIN sys.schemas s ON s.schema_id = v.schema_id
		LEFT JOIN sys.sql_modules m ON m.object_id = v.object_id
		WHERE v.is_ms_shipped = 0
		ORDER BY s.name, v.name`)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	defer rows.Close()

	views := []adapter.View{}
	for rows.Next() {
		var (
			v          adapter.View
			definition sql.NullString
		)
		if err := rows.Scan(&v.Schema, &v.Name, &definition); err != nil {
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

// GetViewDefinition returns the CREATE VIEW text of a view.
func (a *Adapter) GetViewDefinition(ctx context.Context, view, schema string) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	defs, err := common.QueryStrings(ctx, q,
		"SELECT m.definition FROM sys.sql_modules m WHERE m.object_id = "+objectID,
		schemaOrDefault(schema), view)
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_view_definition", err)
	}
	if len(defs) == 0 {
		return "", adapter.NewNotFoundError(a.GetDatabaseType(), "view", view)
	}
	return defs[0], nil
}

// GetStoredProcedures lists procedures and user functions.
func (a *Adapter) GetStoredProcedures(ctx context.Context, database string) ([]adapter.Routine, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT s.name, o.name,
		       CASE WHEN o.type = 'P' THEN 'PROCEDURE' ELSE 'FUNCTION' END,
		       TYPE_NAME(r.user_type_id)
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		LEFT JOIN sys.parameters r ON r.object_id = o.object_id AND r.parameter_id = 0
		WHERE o.type IN ('P', 'FN', 'IF', 'TF') AND o.is_ms_shipped = 0
		ORDER BY s.name, o.name`)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
	}
	defer rows.Close()

	routines := []adapter.Routine{}
	for rows.Next() {
		var (
			r       adapter.Routine
			returns sql.NullString
		)
		if err := rows.Scan(&r.Schema, &r.Name, &r.Kind, &returns); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
		}
		r.ReturnType = returns.String
		routines = append(routines, r)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
	}
	return routines, nil
}

// GetTriggers lists DML triggers. A trigger firing on several events is
// reported once with the events joined by commas.
func (a *Adapter) GetTriggers(ctx context.Context, database string) ([]adapter.Trigger, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT t.name, o.name, e.type_desc,
		       CASE WHEN t.is_instead_of_trigger = 1 THEN 'INSTEAD OF' ELSE 'AFTER' END
		FROM sys.triggers t
		JOIN sys.objects o ON o.object_id = t.parent_id
		JOIN sys.trigger_events e ON e.object_id = t.object_id
		WHERE t.parent_class = 1
		ORDER BY t.name, e.type`)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	defer rows.Close()

	triggers := []adapter.Trigger{}
	pos := map[string]int{}
	for rows.Next() {
		var t adapter.Trigger
		if err := rows.Scan(&t.Name, &t.Table, &t.Event, &t.Timing); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
		}
		if i, ok := pos[t.Name]; ok {
			triggers[i].Event += "," + t.Event
			continue
		}
		pos[t.Name] = len(triggers)
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	return triggers, nil
}

// GetUsers lists database users.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, `
		SELECT name FROM sys.database_principals
		WHERE type IN ('S', 'U', 'E', 'G', 'X')
		  AND name NOT IN ('guest', 'sys', 'INFORMATION_SCHEMA')
		ORDER BY name`)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	users := make([]adapter.User, len(names))
	for i, n := range names {
		users[i] = adapter.User{Name: n}
	}
	return users, nil
}

// GetRoles lists database roles.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q,
		"SELECT name FROM sys.database_principals WHERE type = 'R' ORDER BY name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_roles", err)
	}
	roles := make([]adapter.Role, len(names))
	for i, n := range names {
		roles[i] = adapter.Role{Name: n}
	}
	return roles, nil
}

// GetDatabases lists user databases.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q,
		"SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	return names, nil
}

// GetSchemas lists schemas owned by users, excluding the fixed role schemas.
func (a *Adapter) GetSchemas(ctx context.Context) ([]string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, `
		SELECT name FROM sys.schemas
		WHERE name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
		  AND name NOT LIKE 'db[_]%'
		ORDER BY name`)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schemas", err)
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
		SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, t.TABLE_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS c
		JOIN INFORMATION_SCHEMA.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE c.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	defer rows.Close()

	meta := common.NewMetadataCollector(database)
	for rows.Next() {
		var schema, table, column, dataType, tableType string
		if err := rows.Scan(&schema, &table, &column, &dataType, &tableType); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
		}
		meta.Add(schema, table, column, dataType, tableType == "VIEW")
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	return meta.Metadata(), nil
}
