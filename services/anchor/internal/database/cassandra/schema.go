package cassandra

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// keyspace resolves the keyspace argument against the configured one.
func (a *Adapter) keyspace(name string) (string, error) {
	if name == "" {
		name = a.config.DatabaseName
	}
	if name == "" {
		return "", adapter.InvalidArgument(a.GetDatabaseType(), "keyspace", "no keyspace given or configured")
	}
	return name, nil
}

// GetTables lists the tables of a keyspace.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	session, err := a.cqlSession()
	if err != nil {
		return nil, err
	}
	ks, err := a.keyspace(database)
	if err != nil {
		return nil, err
	}
	iter := session.Query("SELECT table_name FROM system_schema.tables WHERE keyspace_name = ?", ks).WithContext(ctx).Iter()
	var (
		name   string
		tables []adapter.Table
	)
	for iter.Scan(&name) {
		tables = append(tables, adapter.Table{Name: name, Schema: ks, Type: adapter.TableKindTable})
	}
	if err := iter.Close(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

// schemaColumn is one row of system_schema.columns.
type schemaColumn struct {
	Table    string
	Name     string
	Type     string
	Kind     string
	Position int
}

func (c schemaColumn) primary() bool {
	return c.Kind == "partition_key" || c.Kind == "clustering"
}

func kindRank(kind string) int {
	switch kind {
	case "partition_key":
		return 0
	case "clustering":
		return 1
	case "static":
		return 2
	}
	return 3
}

// orderColumns puts partition key columns first, then clustering columns,
// each by position, then static and regular columns by name.
func orderColumns(cols []schemaColumn) {
	sort.SliceStable(cols, func(i, j int) bool {
		ri, rj := kindRank(cols[i].Kind), kindRank(cols[j].Kind)
		if ri != rj {
			return ri < rj
		}
		if cols[i].primary() {
			return cols[i].Position < cols[j].Position
		}
		return cols[i].Name < cols[j].Name
	})
}

func (a *Adapter) schemaColumns(ctx context.Context, ks, table string) ([]schemaColumn, error) {
	session, err := a.cqlSession()
	if err != nil {
		return nil, err
	}
	stmt := "SELECT table_name, column_name, type, kind, position FROM system_schema.columns WHERE keyspace_name = ?"
	args := []interface{}{ks}
	if table != "" {
		stmt += " AND table_name = ?"
		args = append(args, table)
	}
	iter := session.Query(stmt, args...).WithContext(ctx).Iter()
	var (
		c    schemaColumn
		cols []schemaColumn
	)
	for iter.Scan(&c.Table, &c.Name, &c.Type, &c.Kind, &c.Position) {
		cols = append(cols, c)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return cols, nil
}

// GetColumns returns the columns of a table in primary key order.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	ks, err := a.keyspace(schema)
	if err != nil {
		return nil, err
	}
	raw, err := a.schemaColumns(ctx, ks, table)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	if len(raw) == 0 {
		return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "table", ks+"."+table)
	}
	orderColumns(raw)
	cols := make([]adapter.Column, len(raw))
	for i, c := range raw {
		cols[i] = adapter.Column{
			Name:            c.Name,
			Type:            c.Type,
			Nullable:        !c.primary(),
			PrimaryKey:      c.primary(),
			OrdinalPosition: i + 1,
		}
	}
	return cols, nil
}

// GetIndexes returns the primary key and the secondary indexes of a table.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	cols, err := a.GetColumns(ctx, table, schema)
	if err != nil {
		return nil, err
	}
	primary := adapter.Index{Name: "PRIMARY", Unique: true, Primary: true}
	for _, c := range cols {
		if c.PrimaryKey {
			primary.Columns = append(primary.Columns, c.Name)
		}
	}
	indexes := []adapter.Index{primary}

	session, err := a.cqlSession()
	if err != nil {
		return nil, err
	}
	ks, _ := a.keyspace(schema)
	iter := session.Query("SELECT index_name, options FROM system_schema.indexes WHERE keyspace_name = ? AND table_name = ?",
		ks, table).WithContext(ctx).Iter()
	var (
		name    string
		options map[string]string
	)
	for iter.Scan(&name, &options) {
		indexes = append(indexes, adapter.Index{Name: name, Columns: []string{indexTarget(options["target"])}})
		options = nil
	}
	if err := iter.Close(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	return indexes, nil
}

// indexTarget strips the collection function and quoting from an index
// target: values(tags) and "Tags" both name their column.
func indexTarget(target string) string {
	if i := strings.IndexByte(target, '('); i >= 0 && strings.HasSuffix(target, ")") {
		target = target[i+1 : len(target)-1]
	}
	if name, ok := adapter.UnquoteWith(target, `"`, `"`); ok {
		return name
	}
	return target
}

// GetSchemaMetadata reads every column of the keyspace in one query.
func (a *Adapter) GetSchemaMetadata(ctx context.Context, database string) (*adapter.SchemaMetadata, error) {
	ks, err := a.keyspace(database)
	if err != nil {
		return nil, err
	}
	raw, err := a.schemaColumns(ctx, ks, "")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_schema_metadata", err)
	}
	return metadataFromColumns(ks, raw), nil
}

func metadataFromColumns(ks string, raw []schemaColumn) *adapter.SchemaMetadata {
	byTable := map[string][]schemaColumn{}
	var names []string
	for _, c := range raw {
		if _, ok := byTable[c.Table]; !ok {
			names = append(names, c.Table)
		}
		byTable[c.Table] = append(byTable[c.Table], c)
	}
	sort.Strings(names)

	meta := &adapter.SchemaMetadata{Database: ks, Tables: make([]adapter.TableMetadata, 0, len(names))}
	for _, n := range names {
		cols := byTable[n]
		orderColumns(cols)
		tm := adapter.TableMetadata{Name: n, Schema: ks, Columns: make([]adapter.ColumnMetadata, len(cols))}
		for i, c := range cols {
			tm.Columns[i] = adapter.ColumnMetadata{Name: c.Name, Type: c.Type}
		}
		meta.Tables = append(meta.Tables, tm)
	}
	return meta
}

// GetDatabases lists keyspaces.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	names, err := a.textColumn(ctx, "SELECT keyspace_name FROM system_schema.keyspaces")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	return names, nil
}

// GetViews lists materialized views with a reconstructed definition.
func (a *Adapter) GetViews(ctx context.Context, database string) ([]adapter.View, error) {
	session, err := a.cqlSession()
	if err != nil {
		return nil, err
	}
	ks, err := a.keyspace(database)
	if err != nil {
		return nil, err
	}
	iter := session.Query("SELECT view_name, base_table_name, where_clause FROM system_schema.views WHERE keyspace_name = ?",
		ks).WithContext(ctx).Iter()
	var (
		name, base, where string
		views             []adapter.View
	)
	for iter.Scan(&name, &base, &where) {
		views = append(views, adapter.View{Name: name, Schema: ks, Definition: viewDefinition(ks, base, where)})
	}
	if err := iter.Close(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	return views, nil
}

// GetViewDefinition returns the SELECT behind a materialized view.
func (a *Adapter) GetViewDefinition(ctx context.Context, view, schema string) (string, error) {
	views, err := a.GetViews(ctx, schema)
	if err != nil {
		return "", err
	}
	for _, v := range views {
		if v.Name == view {
			return v.Definition, nil
		}
	}
	return "", adapter.NewNotFoundError(a.GetDatabaseType(), "view", view)
}

func viewDefinition(ks, base, where string) string {
	def := fmt.Sprintf("SELECT * FROM %s.%s", adapter.DoubleQuote(ks), adapter.DoubleQuote(base))
	if where != "" {
		def += " WHERE " + where
	}
	return def
}

// GetUsers lists roles that can log in.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	session, err := a.cqlSession()
	if err != nil {
		return nil, err
	}
	iter := session.Query("SELECT role, can_login FROM system_auth.roles").WithContext(ctx).Iter()
	var (
		role  string
		login bool
		users []adapter.User
	)
	for iter.Scan(&role, &login) {
		if login {
			users = append(users, adapter.User{Name: role})
		}
	}
	if err := iter.Close(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// GetRoles lists all roles.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	names, err := a.textColumn(ctx, "SELECT role FROM system_auth.roles")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_roles", err)
	}
	roles := make([]adapter.Role, len(names))
	for i, n := range names {
		roles[i] = adapter.Role{Name: n}
	}
	return roles, nil
}

// textColumn returns the single text column of stmt, sorted.
func (a *Adapter) textColumn(ctx context.Context, stmt string) ([]string, error) {
	session, err := a.cqlSession()
	if err != nil {
		return nil, err
	}
	iter := session.Query(stmt).WithContext(ctx).Iter()
	var (
		s   string
		out []string
	)
	for iter.Scan(&s) {
		out = append(out, s)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
