package elasticsearch

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// hidden reports whether an index is a system or hidden index. Those are
// listed only with the include_hidden option.
func (a *Adapter) hidden(index string) bool {
	return strings.HasPrefix(index, ".") && !a.config.GetBool("include_hidden", false)
}

// GetTables lists indices with their document counts.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	es, err := a.esClient()
	if err != nil {
		return nil, err
	}
	var entries []map[string]interface{}
	err = a.decode("get_tables", &entries)(es.Cat.Indices(
		es.Cat.Indices.WithContext(ctx),
		es.Cat.Indices.WithFormat("json"),
		es.Cat.Indices.WithH("index", "docs.count"),
	))
	if err != nil {
		return nil, err
	}

	tables := []adapter.Table{}
	for _, e := range entries {
		name, _ := e["index"].(string)
		if name == "" || a.hidden(name) {
			continue
		}
		t := adapter.Table{Name: name, Type: adapter.TableKindIndex}
		if n, ok := docCount(e["docs.count"]); ok {
			t.RowCount = &n
		}
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

// docCount reads the _cat count, which arrives as a string.
func docCount(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	default:
		n, ok := normalize(v).(int64)
		return n, ok
	}
}

// mappings reads the mappings of index, or of every index when empty.
func (a *Adapter) mappings(ctx context.Context, op, index string) (map[string]indexMapping, error) {
	es, err := a.esClient()
	if err != nil {
		return nil, err
	}
	opts := []func(*esapi.IndicesGetMappingRequest){es.Indices.GetMapping.WithContext(ctx)}
	if index != "" {
		opts = append(opts, es.Indices.GetMapping.WithIndex(index))
	}
	var resp map[string]indexMapping
	if err := a.decode(op, &resp)(es.Indices.GetMapping(opts...)); err != nil {
		if index != "" && isNotFound(err) {
			return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "index", index)
		}
		return nil, err
	}
	return resp, nil
}

// GetColumns flattens the mapping of an index. An alias or pattern that
// resolves to several indices yields the union of their fields, the first
// index in name order deciding a field's type.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	resp, err := a.mappings(ctx, "get_columns", table)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "index", table)
	}

	names := make([]string, 0, len(resp))
	for name := range resp {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := map[string]interface{}{}
	for _, name := range names {
		for field, def := range resp[name].Mappings.Properties {
			if _, seen := merged[field]; !seen {
				merged[field] = def
			}
		}
	}
	return mappingColumns(merged), nil
}

// GetIndexes reports the document id as the only index. Every field is
// indexed by default, which the mapping already describes.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	es, err := a.esClient()
	if err != nil {
		return nil, err
	}
	err = a.decode("get_indexes", nil)(es.Indices.Exists([]string{table}, es.Indices.Exists.WithContext(ctx)))
	if err != nil {
		if isNotFound(err) {
			return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "index", table)
		}
		return nil, err
	}
	return []adapter.Index{{Name: IDField, Columns: []string{IDField}, Unique: true, Primary: true}}, nil
}

// GetViews lists aliases as views. The definition is the comma separated
// list of indices behind the alias.
func (a *Adapter) GetViews(ctx context.Context, database string) ([]adapter.View, error) {
	es, err := a.esClient()
	if err != nil {
		return nil, err
	}
	var entries []map[string]interface{}
	err = a.decode("get_views", &entries)(es.Cat.Aliases(
		es.Cat.Aliases.WithContext(ctx),
		es.Cat.Aliases.WithFormat("json"),
	))
	if err != nil {
		return nil, err
	}

	indices := map[string][]string{}
	for _, e := range entries {
		alias, _ := e["alias"].(string)
		index, _ := e["index"].(string)
		if alias == "" || a.hidden(alias) {
			continue
		}
		indices[alias] = append(indices[alias], index)
	}

	views := make([]adapter.View, 0, len(indices))
	for alias, names := range indices {
		sort.Strings(names)
		views = append(views, adapter.View{Name: alias, Definition: strings.Join(names, ",")})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views, nil
}

// GetViewDefinition returns the indices behind an alias.
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
	return "", adapter.NewNotFoundError(a.GetDatabaseType(), "alias", view)
}

// GetSchemaMetadata reads every mapping in one request.
func (a *Adapter) GetSchemaMetadata(ctx context.Context, database string) (*adapter.SchemaMetadata, error) {
	resp, err := a.mappings(ctx, "get_schema_metadata", "")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp))
	for name := range resp {
		if !a.hidden(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	meta := &adapter.SchemaMetadata{Database: database, Tables: make([]adapter.TableMetadata, 0, len(names))}
	for _, name := range names {
		cols := mappingColumns(resp[name].Mappings.Properties)
		tm := adapter.TableMetadata{Name: name, Columns: make([]adapter.ColumnMetadata, len(cols))}
		for i, c := range cols {
			tm.Columns[i] = adapter.ColumnMetadata{Name: c.Name, Type: c.Type}
		}
		meta.Tables = append(meta.Tables, tm)
	}
	return meta, nil
}
