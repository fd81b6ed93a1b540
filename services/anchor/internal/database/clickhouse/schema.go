package clickhouse

import (
	"context"
	"database/sql"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// currentDatabase resolves an empty database argument to the session default.
const currentDatabase = "coalesce(nullIf(?, ''), currentDatabase())"

const viewEngines = "('View', 'MaterializedView', 'LiveView', 'WindowView')"

var viewEngine = map[string]bool{
	"View":             true,
	"MaterializedView": true,
	"LiveView":         true,
	"WindowView":       true,
}

var systemDatabases = map[string]bool{
	"system":             true,
	"information_schema": true,
	"INFORMATION_SCHEMA": true,
}

// GetTables lists the non-view tables of database.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT database, name, total_rows
		FROM system.tables
		WHERE database = `+currentDatabase+`
		  AND NOT is_temporary
		  AND engine NOT IN `+viewEngines+`
		ORDER BY name`, database)
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

// GetColumns reads system.columns. Nullability comes from the Nullable
// wrapper.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT name, type, default_expression, is_in_primary_key, position
		FROM system.columns
		WHERE database = `+currentDatabase+` AND table = ?
		ORDER BY position`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	defer rows.Close()

	columns := []adapter.Column{}
	for rows.Next() {
		var (
			c        adapter.Column
			def      string
			primary  int64
			position int64
		)
		if err := rows.Scan(&c.Name, &c.Type, &def, &primary, &position); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
		}
		c.Nullable = isNullableType(c.Type)
		c.PrimaryKey = primary != 0
		c.OrdinalPosition = int(position)
		if def != "" {
			c.Default = &def
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	if len(columns) == 0 {
		return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "table", table)
	}
	return columns, nil
}

// GetPrimaryKey returns the primary key expressions in key order, which
// need not match column order.
func (a *Adapter) GetPrimaryKey(ctx context.Context, table, schema string) ([]string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	keys, err := common.QueryStrings(ctx, q, `
		SELECT primary_key
		FROM system.tables
		WHERE database = `+currentDatabase+` AND name = ?`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_primary_key", err)
	}
	if len(keys) == 0 {
		return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "table", table)
	}
	return splitKeyExpression(keys[0]), nil
}

// GetIndexes reports the sparse primary index and the data skipping
// indices. Neither enforces uniqueness.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	keys, err := a.GetPrimaryKey(ctx, table, schema)
	if err != nil {
		return nil, err
	}
	indexes := []adapter.Index{}
	if len(keys) > 0 {
		indexes = append(indexes, adapter.Index{Name: "PRIMARY", Columns: keys, Primary: true})
	}

	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT name, expr
		FROM system.data_skipping_indices
		WHERE database = `+currentDatabase+` AND table = ?
		ORDER BY name`, schema, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, expr string
		if err := rows.Scan(&name, &expr); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
		}
		indexes = append(indexes, adapter.Index{Name: name, Columns: splitKeyExpression(expr)})
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	return indexes, nil
}

// splitKeyExpression splits a key expression such as "a, toDate(b, 'UTC')"
// at top-level commas.
func splitKeyExpression(expr string) []string {
	parts := []string{}
	depth, start := 0, 0
	inQuote := false
	for i, r := range expr {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case inQuote:
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == ',' && depth == 0:
			if p := strings.TrimSpace(expr[start:i]); p != "" {
				parts = append(parts, p)
			}
			start = i + 1
		}
	}
	if p := strings.TrimSpace(expr[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// GetViews lists views and materialized views with their SELECT.
func (a *Adapter) GetViews(ctx context.Context, database string) ([]adapter.View, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT database, name, as_select
		FROM system.tables
		WHERE database = `+currentDatabase+`
		  AND engine IN `+viewEngines+`
		ORDER BY name`, database)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	defer rows.Close()

	views := []adapter.View{}
	for rows.Next() {
		var v adapter.View
		if err := rows.Scan(&v.Schema, &v.Name, &v.Definition); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
		}
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
		SELECT as_select
		FROM system.tables
		WHERE database = `+currentDatabase+` AND name = ? AND engine IN `+viewEngines, schema, view)
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_view_definition", err)
	}
	if len(defs) == 0 {
		return "", adapter.NewNotFoundError(a.GetDatabaseType(), "view", view)
	}
	return defs[0], nil
}

// GetStoredProcedures lists SQL user-defined functions. ClickHouse has no
// procedures.
func (a *Adapter) GetStoredProcedures(ctx context.Context, database string) ([]adapter.Routine, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q,
		"SELECT name FROM system.functions WHERE origin = 'SQLUserDefined' ORDER BY name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
	}
	routines := make([]adapter.Routine, len(names))
	for i, n := range names {
		routines[i] = adapter.Routine{Name: n, Kind: "function"}
	}
	return routines, nil
}

// GetUsers lists users from system.users.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, "SELECT name FROM system.users ORDER BY name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	users := make([]adapter.User, len(names))
	for i, n := range names {
		users[i] = adapter.User{Name: n}
	}
	return users, nil
}

// GetRoles lists roles from system.roles.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	names, err := common.QueryStrings(ctx, q, "SELECT name FROM system.roles ORDER BY name")
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
	names, err := common.QueryStrings(ctx, q, "SELECT name FROM system.databases ORDER BY name")
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
		SELECT c.database, c.table, c.name, c.type, t.engine
		FROM system.columns AS c
		INNER JOIN system.tables AS t ON t.database = c.database AND t.name = c.table
		WHERE c.database = `+currentDatabase+`
		ORDER BY c.table, c.position`, database)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	defer rows.Close()

	meta := common.NewMetadataCollector(database)
	for rows.Next() {
		var schema, table, column, columnType, engine string
		if err := rows.Scan(&schema, &table, &column, &columnType, &engine); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
		}
		meta.Add(schema, table, column, columnType, viewEngine[engine])
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	return meta.Metadata(), nil
}
