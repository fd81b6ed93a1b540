package neo4j

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// GetTables lists node labels with their node counts.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	out, err := a.run(ctx, "CALL db.labels() YIELD label RETURN label ORDER BY label", nil)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	tables := make([]adapter.Table, 0, len(out.records))
	for _, rec := range out.records {
		label := fmt.Sprint(rec.Values[0])
		t := adapter.Table{Name: label, Type: adapter.TableKindLabel}
		count, err := a.run(ctx, "MATCH (n:"+a.EscapeIdentifier(label)+") RETURN count(n) AS c", nil)
		if err == nil && len(count.records) > 0 {
			if n, ok := count.records[0].Values[0].(int64); ok {
				t.RowCount = &n
			}
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// GetColumns infers property columns from a sample of nodes. Labels have no
// primary key.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	sampler := adapter.NewFieldSampler(a.config.SampleSize, "", classify)
	out, err := a.run(ctx, "MATCH (n:"+a.EscapeIdentifier(table)+") RETURN n LIMIT $limit",
		map[string]interface{}{"limit": int64(sampler.SampleSize())})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	for _, rec := range out.records {
		if n, ok := rec.Values[0].(dbtype.Node); ok {
			sampler.Observe(n.Props)
		}
	}
	cols := sampler.Columns()
	for i := range cols {
		cols[i].Nullable = true
	}
	return cols, nil
}

// GetPrimaryKey returns no columns; nodes are identified by element id.
func (a *Adapter) GetPrimaryKey(ctx context.Context, table, schema string) ([]string, error) {
	if _, err := a.neo4jDriver(); err != nil {
		return nil, err
	}
	return []string{}, nil
}

// GetIndexes lists the indexes on a label. Indexes backing a uniqueness or
// key constraint are reported unique.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	out, err := a.run(ctx,
		"SHOW INDEXES YIELD name, entityType, labelsOrTypes, properties, owningConstraint "+
			"WHERE entityType = 'NODE' AND $label IN labelsOrTypes "+
			"RETURN name, properties, owningConstraint IS NOT NULL AS unique ORDER BY name",
		map[string]interface{}{"label": table})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	indexes := make([]adapter.Index, 0, len(out.records))
	for _, rec := range out.records {
		indexes = append(indexes, indexFromRecord(rec))
	}
	return indexes, nil
}

func indexFromRecord(rec *neo4j.Record) adapter.Index {
	name, _ := rec.Get("name")
	props, _ := rec.Get("properties")
	unique, _ := rec.Get("unique")
	idx := adapter.Index{Name: fmt.Sprint(name), Columns: []string{}}
	if list, ok := props.([]interface{}); ok {
		for _, p := range list {
			idx.Columns = append(idx.Columns, fmt.Sprint(p))
		}
	}
	idx.Unique, _ = unique.(bool)
	return idx
}

// GetDatabases lists the databases of the DBMS.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	names, err := a.systemNames(ctx, "SHOW DATABASES YIELD name RETURN DISTINCT name")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	return names, nil
}

// GetUsers lists users. It needs the system database and admin rights.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	names, err := a.systemNames(ctx, "SHOW USERS YIELD user RETURN user")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	users := make([]adapter.User, len(names))
	for i, n := range names {
		users[i] = adapter.User{Name: n}
	}
	return users, nil
}

// GetRoles lists roles. Roles are an Enterprise Edition feature.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	names, err := a.systemNames(ctx, "SHOW ROLES YIELD role RETURN role")
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_roles", err)
	}
	roles := make([]adapter.Role, len(names))
	for i, n := range names {
		roles[i] = adapter.Role{Name: n}
	}
	return roles, nil
}

// systemNames runs an administration command against the system database
// and returns the first column, sorted.
func (a *Adapter) systemNames(ctx context.Context, stmt string) ([]string, error) {
	driver, err := a.neo4jDriver()
	if err != nil {
		return nil, err
	}
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: "system"})
	defer session.Close(ctx)
	result, err := session.Run(ctx, stmt, nil)
	if err != nil {
		return nil, err
	}
	out, err := collect(ctx, result)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.records))
	for _, rec := range out.records {
		names = append(names, fmt.Sprint(rec.Values[0]))
	}
	sort.Strings(names)
	return names, nil
}

// GetStoredProcedures lists procedures and user functions.
func (a *Adapter) GetStoredProcedures(ctx context.Context, database string) ([]adapter.Routine, error) {
	var routines []adapter.Routine
	for _, q := range []struct{ stmt, kind string }{
		{"SHOW PROCEDURES YIELD name RETURN name ORDER BY name", "procedure"},
		{"SHOW FUNCTIONS YIELD name, returnDescription RETURN name, returnDescription ORDER BY name", "function"},
	} {
		out, err := a.run(ctx, q.stmt, nil)
		if err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_stored_procedures", err)
		}
		for _, rec := range out.records {
			r := adapter.Routine{Name: fmt.Sprint(rec.Values[0]), Kind: q.kind}
			if len(rec.Values) > 1 && rec.Values[1] != nil {
				r.ReturnType = fmt.Sprint(rec.Values[1])
			}
			routines = append(routines, r)
		}
	}
	return routines, nil
}
