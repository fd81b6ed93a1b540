package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

const defaultSchema = "public"

// excludedSchemas returns the non-catalog schemas hidden from listings.
// Schemas starting with pg_ are filtered in the queries.
func (a *Adapter) excludedSchemas() []string {
	return append([]string{"information_schema"}, a.opts.ExcludedSchemas...)
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return defaultSchema
	}
	return schema
}

// connectedQuerier returns the querier or the not-connected error.
func (a *Adapter) connectedQuerier() (querier, error) {
	q := a.querier()
	if q == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return q, nil
}

// GetTables lists base tables of every user schema in the connected
// database. The database argument is informational; a pool is bound to one
// database.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT table_schema::text, table_name::text
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT LIKE 'pg\_%'
		  AND table_schema <> ALL($1)
		ORDER BY table_schema, table_name`, a.excludedSchemas())
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}

	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (adapter.Table, error) {
		t := adapter.Table{Type: adapter.TableKindTable}
		err := row.Scan(&t.Schema, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	if tables == nil {
		tables = []adapter.Table{}
	}
	return tables, nil
}

// GetColumns lists the columns of a table in ordinal order.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT
			c.column_name::text,
			c.data_type::text,
			c.udt_name::text,
			c.is_nullable::text,
			c.column_default::text,
			c.ordinal_position::int,
			COALESCE(c.is_identity::text, 'NO'),
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
				  ON tc.constraint_name = kcu.constraint_name
				 AND tc.table_schema = kcu.table_schema
				 AND tc.table_name = kcu.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_schema = c.table_schema
				  AND tc.table_name = c.table_name
				  AND kcu.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, schemaOrDefault(schema), table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}

	columns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (adapter.Column, error) {
		var (
			col                         adapter.Column
			dataType, udtName, nullable string
			identity                    string
			position                    int
		)
		if err := row.Scan(&col.Name, &dataType, &udtName, &nullable, &col.Default, &position, &identity, &col.PrimaryKey); err != nil {
			return col, err
		}
		col.Type = columnTypeName(dataType, udtName)
		col.Nullable = nullable == "YES"
		col.OrdinalPosition = position
		col.AutoIncrement = identity == "YES" ||
			(col.Default != nil && strings.HasPrefix(*col.Default, "nextval("))
		return col, nil
	})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	if columns == nil {
		columns = []adapter.Column{}
	}
	return columns, nil
}

// columnTypeName reports arrays as elem[] and user-defined types by name.
func columnTypeName(dataType, udtName string) string {
	switch dataType {
	case "ARRAY":
		return strings.TrimPrefix(udtName, "_") + "[]"
	case "USER-DEFINED":
		return udtName
	}
	return dataType
}

// GetIndexes lists the indexes of a table with their ordered columns.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT
			i.relname::text,
			ix.indisunique,
			ix.indisprimary,
			array_agg(a.attname::text ORDER BY array_position(ix.indkey::int2[], a.attnum))
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON ix.indrelid = t.oid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname = $2
		GROUP BY i.relname, ix.indisunique, ix.indisprimary
		ORDER BY i.relname`, schemaOrDefault(schema), table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}

	indexes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (adapter.Index, error) {
		var idx adapter.Index
		err := row.Scan(&idx.Name, &idx.Unique, &idx.Primary, &idx.Columns)
		return idx, err
	})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	if indexes == nil {
		indexes = []adapter.Index{}
	}
	return indexes, nil
}

var foreignKeyActions = map[string]string{
	"a": "NO ACTION",
	"r": "RESTRICT",
	"c": "CASCADE",
	"n": "SET NULL",
	"d": "SET DEFAULT",
}

// GetForeignKeys lists the foreign keys of a table. Composite keys keep
// their column order.
func (a *Adapter) GetForeignKeys(ctx context.Context, table, schema string) ([]adapter.ForeignKey, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT
			con.conname::text,
			att.attname::text,
			ref.relname::text,
			ratt.attname::text,
			con.confdeltype::text,
			con.confupdtype::text
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cl.relnamespace
		JOIN pg_class ref ON ref.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(col, refcol, ord)
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.col
		JOIN pg_attribute ratt ON ratt.attrelid = con.confrelid AND ratt.attnum = k.refcol
		WHERE con.contype = 'f' AND ns.nspname = $1 AND cl.relname = $2
		ORDER BY con.conname, k.ord`, schemaOrDefault(schema), table)
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
		keys.Add(name, column, refTable, refColumn, foreignKeyActions[onDelete], foreignKeyActions[onUpdate])
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

	rows, err := q.Query(ctx, `
		SELECT table_schema::text, table_name::text, COALESCE(view_definition, '')::text
		FROM information_schema.views
		WHERE table_schema NOT LIKE 'pg\_%'
		  AND table_schema <> ALL($1)
		ORDER BY table_schema, table_name`, a.excludedSchemas())
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}

	views, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (adapter.View, error) {
		var v adapter.View
		err := row.Scan(&v.Schema, &v.Name, &v.Definition)
		return v, err
	})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	if views == nil {
		views = []adapter.View{}
	}
	return views, nil
}

// GetViewDefinition returns the SQL of a view as reconstructed by the server.
func (a *Adapter) GetViewDefinition(ctx context.Context, view, schema string) (string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return "", err
	}
	var definition string
	err = q.QueryRow(ctx, "SELECT pg_get_viewdef(format('%I.%I', $1::text, $2::text)::regclass, true)",
		schemaOrDefault(schema), view).Scan(&definition)
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_view_definition", err)
	}
	return definition, nil
}

// GetStoredProcedures lists user functions and procedures.
func (a *Adapter) GetStoredProcedures(ctx context.Context, database string) ([]adapter.Routine, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT
			n.nspname::text,
			p.proname::text,
			CASE p.prokind WHEN 'p' THEN 'PROCEDURE' ELSE 'FUNCTION' END,
			COALESCE(t.typname::text, '')
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		LEFT JOIN pg_type t ON t.oid = p.prorettype
		WHERE n.nspname NOT LIKE 'pg\_%'
		  AND n.nspname <> ALL($1)
		ORDER BY n.nspname, p.proname`, a.excludedSchemas())
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
	}

	routines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (adapter.Routine, error) {
		var r adapter.Routine
		err := row.Scan(&r.Schema, &r.Name, &r.Kind, &r.ReturnType)
		return r, err
	})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
	}
	if routines == nil {
		routines = []adapter.Routine{}
	}
	return routines, nil
}

// GetTriggers lists user triggers.
func (a *Adapter) GetTriggers(ctx context.Context, database string) ([]adapter.Trigger, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT
			t.tgname::text,
			c.relname::text,
			CASE
				WHEN t.tgtype & 4 > 0 THEN 'INSERT'
				WHEN t.tgtype & 8 > 0 THEN 'DELETE'
				WHEN t.tgtype & 16 > 0 THEN 'UPDATE'
				ELSE 'TRUNCATE'
			END,
			CASE
				WHEN t.tgtype & 2 > 0 THEN 'BEFORE'
				WHEN t.tgtype & 64 > 0 THEN 'INSTEAD OF'
				ELSE 'AFTER'
			END
		FROM pg_trigger t
		JOIN pg_class c ON t.tgrelid = c.oid
		JOIN pg_namespace n ON c.relnamespace = n.oid
		WHERE NOT t.tgisinternal
		  AND n.nspname NOT LIKE 'pg\_%'
		  AND n.nspname <> ALL($1)
		ORDER BY t.tgname`, a.excludedSchemas())
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}

	triggers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (adapter.Trigger, error) {
		var t adapter.Trigger
		err := row.Scan(&t.Name, &t.Table, &t.Event, &t.Timing)
		return t, err
	})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_triggers", err)
	}
	if triggers == nil {
		triggers = []adapter.Trigger{}
	}
	return triggers, nil
}

// GetUsers lists login roles.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	names, err := a.queryStrings(ctx, "get_users", "SELECT usename::text FROM pg_catalog.pg_user ORDER BY 1")
	if err != nil {
		return nil, err
	}
	users := make([]adapter.User, len(names))
	for i, n := range names {
		users[i] = adapter.User{Name: n}
	}
	return users, nil
}

// GetRoles lists roles other than the predefined pg_ roles.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	names, err := a.queryStrings(ctx, "get_roles",
		`SELECT rolname::text FROM pg_catalog.pg_roles WHERE rolname NOT LIKE 'pg\_%' ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	roles := make([]adapter.Role, len(names))
	for i, n := range names {
		roles[i] = adapter.Role{Name: n}
	}
	return roles, nil
}

// GetDatabases lists databases that accept connections.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	return a.queryStrings(ctx, "get_databases",
		"SELECT datname::text FROM pg_catalog.pg_database WHERE NOT datistemplate ORDER BY 1")
}

// GetSchemas lists user schemas.
func (a *Adapter) GetSchemas(ctx context.Context) ([]string, error) {
	return a.queryStrings(ctx, "get_schemas", `
		SELECT schema_name::text
		FROM information_schema.schemata
		WHERE schema_name NOT LIKE 'pg\_%' AND schema_name <> ALL($1)
		ORDER BY 1`, a.excludedSchemas())
}

func (a *Adapter) queryStrings(ctx context.Context, op, stmt string, args ...any) ([]string, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), op, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), op, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// GetSchemaMetadata reads every table and view column in one query.
func (a *Adapter) GetSchemaMetadata(ctx context.Context, database string) (*adapter.SchemaMetadata, error) {
	q, err := a.connectedQuerier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT c.table_schema::text, c.table_name::text, c.column_name::text, c.data_type::text, c.udt_name::text, t.table_type::text
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema NOT LIKE 'pg\_%'
		  AND c.table_schema <> ALL($1)
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`, a.excludedSchemas())
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	defer rows.Close()

	meta := common.NewMetadataCollector(database)
	for rows.Next() {
		var schema, table, column, dataType, udtName, tableType string
		if err := rows.Scan(&schema, &table, &column, &dataType, &udtName, &tableType); err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
		}
		meta.Add(schema, table, column, columnTypeName(dataType, udtName), tableType == "VIEW")
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	return meta.Metadata(), nil
}
