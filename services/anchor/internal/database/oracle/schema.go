//go:build cgo

package oracle

import (
	"context"
	"database/sql"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// owner resolves the :p1 schema argument. Oracle reads '' as NULL, so an
// empty argument selects the session schema.
const owner = "NVL(:p1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))"

// GetTables lists relational tables of a schema. database names the owning
// schema; empty means the session schema.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT OWNER, TABLE_NAME, NUM_ROWS
		FROM ALL_TABLES
		WHERE OWNER = `+owner+` AND NESTED = 'NO' AND SECONDARY = 'N'
		ORDER BY TABLE_NAME`, database)
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

// GetColumns lists the columns of a table in COLUMN_ID order.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, c.CHAR_LENGTH, c.DATA_PRECISION, c.DATA_SCALE,
		       c.NULLABLE, c.DATA_DEFAULT, c.IDENTITY_COLUMN,
		       CASE WHEN EXISTS (
		           SELECT 1 FROM ALL_CONSTRAINTS k
		           JOIN ALL_CONS_COLUMNS kc ON kc.OWNER = k.OWNER AND kc.CONSTRAINT_NAME = k.CONSTRAINT_NAME
		           WHERE k.CONSTRAINT_TYPE = 'P' AND k.OWNER = c.OWNER AND k.TABLE_NAME = c.TABLE_NAME
		             AND kc.COLUMN_NAME = c.COLUMN_NAME
		       ) THEN 1 ELSE 0 END,
		       c.COLUMN_ID
		FROM ALL_TAB_COLUMNS c
		WHERE c.OWNER = `+owner+` AND c.TABLE_NAME = :p2
		ORDER BY c.COLUMN_ID`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	defer rows.Close()

	columns := []adapter.Column{}
	for rows.Next() {
		var (
			col                      adapter.Column
			dataType, nullable       string
			length, precision, scale sql.NullInt64
			columnDefault, identity  sql.NullString
			primary                  int
		)
		if err := rows.Scan(&col.Name, &dataType, &length, &precision, &scale,
			&nullable, &columnDefault, &identity, &primary, &col.OrdinalPosition); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
		}
		col.Type = columnTypeName(dataType, length, precision, scale)
		col.Nullable = nullable == "Y"
		col.PrimaryKey = primary == 1
		col.AutoIncrement = identity.String == "YES"
		if columnDefault.Valid {
			// DATA_DEFAULT keeps the trailing newline of the DDL.
			d := strings.TrimSpace(columnDefault.String)
			col.Default = &d
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	return columns, nil
}

// GetIndexes lists the indexes of a table. An index backing the primary key
// constraint is reported as primary.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT i.INDEX_NAME, i.UNIQUENESS, NVL2(k.CONSTRAINT_NAME, 1, 0), ic.COLUMN_NAME
		FROM ALL_INDEXES i
		JOIN ALL_IND_COLUMNS ic ON ic.INDEX_OWNER = i.OWNER AND ic.INDEX_NAME = i.INDEX_NAME
		LEFT JOIN ALL_CONSTRAINTS k
		  ON k.OWNER = i.TABLE_OWNER AND k.INDEX_NAME = i.INDEX_NAME AND k.CONSTRAINT_TYPE = 'P'
		WHERE i.TABLE_OWNER = `+owner+` AND i.TABLE_NAME = :p2
		ORDER BY i.INDEX_NAME, ic.COLUMN_POSITION`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	defer rows.Close()

	var indexes common.IndexCollector
	for rows.Next() {
		var (
			name, uniqueness, column string
			primary                  int
		)
		if err := rows.Scan(&name, &uniqueness, &primary, &column); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
		}
		indexes.Add(name, column, uniqueness == "UNIQUE", primary == 1)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	return indexes.Indexes(), nil
}

// GetForeignKeys lists the foreign keys of a table. Oracle has no ON UPDATE
// rule, so it is always NO ACTION.
func (a *Adapter) GetForeignKeys(ctx context.Context, table, schema string) ([]adapter.ForeignKey, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT c.CONSTRAINT_NAME, cc.COLUMN_NAME, r.TABLE_NAME, rc.COLUMN_NAME, c.DELETE_RULE
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
		JOIN ALL_CONSTRAINTS r ON r.OWNER = c.R_OWNER AND r.CONSTRAINT_NAME = c.R_CONSTRAINT_NAME
		JOIN ALL_CONS_COLUMNS rc
		  ON rc.OWNER = r.OWNER AND rc.CONSTRAINT_NAME = r.CONSTRAINT_NAME AND rc.POSITION = cc.POSITION
		WHERE c.CONSTRAINT_TYPE = 'R' AND c.OWNER = `+owner+` AND c.TABLE_NAME = :p2
		ORDER BY c.CONSTRAINT_NAME, cc.POSITION`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
	}
	defer rows.Close()

	var keys common.ForeignKeyCollector
	for rows.Next() {
		var name, column, refTable, refColumn, onDelete string
		if err := rows.Scan(&name, &column, &refTable, &refColumn, &onDelete); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
		}
		keys.Add(name, column, refTable, refColumn, onDelete, "NO ACTION")
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_foreign_keys", err)
	}
	return keys.ForeignKeys(), nil
}

// GetViews lists the views of a schema with their query text.
func (a *Adapter) GetViews(ctx context.Context, database string) ([]adapter.View, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT OWNER, VIEW_NAME, TEXT
		FROM ALL_VIEWS
		WHERE OWNER = `+owner+`
		ORDER BY VIEW_NAME`, database)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	defer rows.Close()

	views := []adapter.View{}
	for rows.Next() {
		var (
			v    adapter.View
			text sql.NullString
		)
		if err := rows.Scan(&v.Schema, &v.Name, &text); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
		}
		v.Definition = text.String
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	return views, nil
}

// GetViewDefinition returns the query text of a view.
func (a *Adapter) GetViewDefinition(ctx context.Context, view, schema string) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	defs, err := common.QueryStrings(ctx, q,
		"SELECT TEXT FROM ALL_VIEWS WHERE OWNER = "+owner+" AND VIEW_NAME = :p2", schema, view)
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_view_definition", err)
	}
	if len(defs) == 0 {
		return "", adapter.NewNotFoundError(a.GetDatabaseType(), "view", view)
	}
	return defs[0], nil
}

// GetStoredProcedures lists standalone procedures, functions and packages.
func (a *Adapter) GetStoredProcedures(ctx context.Context, database string) ([]adapter.Routine, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT OWNER, OBJECT_NAME, OBJECT_TYPE
		FROM ALL_OBJECTS
		WHERE OWNER = `+owner+` AND OBJECT_TYPE IN ('PROCEDURE', 'FUNCTION', 'PACKAGE')
		ORDER BY OBJECT_NAME`, database)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
	}
	defer rows.Close()

	routines := []adapter.Routine{}
	for rows.Next() {
		var r adapter.Routine
		if err := rows.Scan(&r.Schema, &r.Name, &r.Kind); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
		}
		routines = append(routines, r)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
	}
	return routines, nil
}

// GetTriggers lists triggers. TRIGGER_TYPE reads like "BEFORE EACH ROW";
// its first word is the timing.
func (a *Adapter) GetTriggers(ctx context.Context, database string) ([]adapter.Trigger, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT TRIGGER_NAME, TABLE_NAME, TRIGGERING_EVENT, TRIGGER_TYPE
		FROM ALL_TRIGGERS
		WHERE OWNER = `+owner+`
		ORDER BY TRIGGER_NAME`, database)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	defer rows.Close()

	triggers := []adapter.Trigger{}
	for rows.Next() {
		var (
			t                         adapter.Trigger
			tableName, event, trigger sql.NullString
		)
		if err := rows.Scan(&t.Name, &tableName, &event, &trigger); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
		}
		t.Table = tableName.String
		t.Event = event.String
		if fields := strings.Fields(trigger.String); len(fields) > 0 {
			t.Timing = fields[0]
			if len(fields) > 1 && fields[0] == "INSTEAD" {
				t.Timing = "INSTEAD OF"
			}
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	return triggers, nil
}

// GetUsers lists accounts visible to the session.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, "SELECT USERNAME FROM ALL_USERS ORDER BY USERNAME")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	users := make([]adapter.User, len(names))
	for i, n := range names {
		users[i] = adapter.User{Name: n}
	}
	return users, nil
}

// GetRoles lists all roles when DBA_ROLES is readable, and the roles granted
// to the session user otherwise.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, "SELECT ROLE FROM DBA_ROLES ORDER BY ROLE")
	if err != nil {
		names, err = common.QueryStrings(ctx, q, "SELECT GRANTED_ROLE FROM USER_ROLE_PRIVS ORDER BY GRANTED_ROLE")
	}
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_roles", err)
	}
	roles := make([]adapter.Role, len(names))
	for i, n := range names {
		roles[i] = adapter.Role{Name: n}
	}
	return roles, nil
}

// GetDatabases returns the name of the connected database. An Oracle
// session sees exactly one.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, "SELECT SYS_CONTEXT('USERENV', 'DB_NAME') FROM DUAL")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	return names, nil
}

// GetSchemas lists schemas that are not maintained by Oracle.
func (a *Adapter) GetSchemas(ctx context.Context) ([]string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q,
		"SELECT USERNAME FROM ALL_USERS WHERE ORACLE_MAINTAINED = 'N' ORDER BY USERNAME")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schemas", err)
	}
	return names, nil
}

// GetSchemaMetadata reads every table and view column of a schema in one
// query.
func (a *Adapter) GetSchemaMetadata(ctx context.Context, database string) (*adapter.SchemaMetadata, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT c.OWNER, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, NVL2(v.VIEW_NAME, 1, 0)
		FROM ALL_TAB_COLUMNS c
		LEFT JOIN ALL_VIEWS v ON v.OWNER = c.OWNER AND v.VIEW_NAME = c.TABLE_NAME
		WHERE c.OWNER = `+owner+`
		ORDER BY c.TABLE_NAME, c.COLUMN_ID`, database)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	defer rows.Close()

	meta := common.NewMetadataCollector(database)
	for rows.Next() {
		var (
			schema, table, column, dataType string
			isView                          int
		)
		if err := rows.Scan(&schema, &table, &column, &dataType, &isView); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
		}
		meta.Add(schema, table, column, dataType, isView == 1)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	return meta.Metadata(), nil
}
