package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// currentSchema resolves an empty database or schema argument to the
// connection's default database.
const currentSchema = "COALESCE(NULLIF(?, ''), DATABASE())"

var systemDatabases = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// GetTables lists base tables of database, or of the connection default.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_ROWS
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = `+currentSchema+`
		  AND TABLE_TYPE = 'BASE TABLE'
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

// GetColumns lists the columns of a table in ordinal order.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, EXTRA, ORDINAL_POSITION
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = `+currentSchema+` AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	defer rows.Close()

	columns := []adapter.Column{}
	for rows.Next() {
		var (
			col                  adapter.Column
			nullable, key, extra string
			columnDefault        sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &columnDefault, &key, &extra, &col.OrdinalPosition); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
		}
		col.Nullable = nullable == "YES"
		col.PrimaryKey = key == "PRI"
		col.AutoIncrement = strings.Contains(extra, "auto_increment")
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

// GetIndexes lists the indexes of a table.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT INDEX_NAME, NON_UNIQUE, COLUMN_NAME
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = `+currentSchema+` AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	defer rows.Close()

	var indexes common.IndexCollector
	for rows.Next() {
		var (
			name      string
			nonUnique int
			column    sql.NullString
		)
		if err := rows.Scan(&name, &nonUnique, &column); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
		}
		indexes.Add(name, column.String, nonUnique == 0, name == "PRIMARY")
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
		SELECT k.CONSTRAINT_NAME, k.COLUMN_NAME, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME,
		       r.DELETE_RULE, r.UPDATE_RULE
		FROM information_schema.KEY_COLUMN_USAGE k
		JOIN information_schema.REFERENTIAL_CONSTRAINTS r
		  ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
		WHERE k.TABLE_SCHEMA = `+currentSchema+` AND k.TABLE_NAME = ?
		  AND k.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY k.CONSTRAINT_NAME, k.ORDINAL_POSITION`, schema, table)
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
		keys.Add(name, column, refTable, refColumn, onDelete, onUpdate)
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
		SELECT TABLE_SCHEMA, TABLE_NAME, VIEW_DEFINITION
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = `+currentSchema+`
		ORDER BY TABLE_NAME`, database)
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

// GetViewDefinition returns the SELECT of a view.
func (a *Adapter) GetViewDefinition(ctx context.Context, view, schema string) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	defs, err := common.QueryStrings(ctx, q, `
		SELECT VIEW_DEFINITION FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = `+currentSchema+` AND TABLE_NAME = ?`, schema, view)
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_view_definition", err)
	}
	if len(defs) == 0 {
		return "", adapter.NewNotFoundError(a.GetDatabaseType(), "view", view)
	}
	return defs[0], nil
}

// GetStoredProcedures lists procedures and functions.
func (a *Adapter) GetStoredProcedures(ctx context.Context, database string) ([]adapter.Routine, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT ROUTINE_SCHEMA, ROUTINE_NAME, ROUTINE_TYPE, DTD_IDENTIFIER
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = `+currentSchema+`
		ORDER BY ROUTINE_NAME`, database)
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

// GetTriggers lists triggers.
func (a *Adapter) GetTriggers(ctx context.Context, database string) ([]adapter.Trigger, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT TRIGGER_NAME, EVENT_OBJECT_TABLE, EVENT_MANIPULATION, ACTION_TIMING
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = `+currentSchema+`
		ORDER BY TRIGGER_NAME`, database)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	defer rows.Close()

	triggers := []adapter.Trigger{}
	for rows.Next() {
		var t adapter.Trigger
		if err := rows.Scan(&t.Name, &t.Table, &t.Event, &t.Timing); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	return triggers, nil
}

// GetUsers lists accounts from mysql.user.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, "SELECT User, Host FROM mysql.user ORDER BY User, Host")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	defer rows.Close()

	users := []adapter.User{}
	for rows.Next() {
		var u adapter.User
		if err := rows.Scan(&u.Name, &u.Host); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	return users, nil
}

// GetRoles lists roles granted to at least one account.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	return a.ListRoles(ctx, "SELECT DISTINCT FROM_USER FROM mysql.role_edges ORDER BY FROM_USER")
}

// ListRoles runs a single-column role name query.
func (a *Adapter) ListRoles(ctx context.Context, stmt string) ([]adapter.Role, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, stmt)
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
	names, err := common.QueryStrings(ctx, q, "SHOW DATABASES")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	databases := []string{}
	for _, n := range names {
		if !systemDatabases[n] {
			databases = append(databases, n)
		}
	}
	return databases, nil
}

// GetSchemaMetadata reads every table and view column in one query.
func (a *Adapter) GetSchemaMetadata(ctx context.Context, database string) (*adapter.SchemaMetadata, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, t.TABLE_TYPE
		FROM information_schema.COLUMNS c
		JOIN information_schema.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE c.TABLE_SCHEMA = `+currentSchema+`
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`, database)
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
