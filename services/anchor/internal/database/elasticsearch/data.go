package elasticsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// filterQuery turns an equality map into a bool filter. _id matches the
// document id, nil requires the field to be missing and every other value
// is an exact term, so text fields need their keyword sub-field.
func filterQuery(where map[string]interface{}) map[string]interface{} {
	if len(where) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	var filter, mustNot []interface{}
	for _, k := range adapter.SortedKeys(where) {
		v := where[k]
		switch {
		case k == IDField:
			filter = append(filter, map[string]interface{}{
				"ids": map[string]interface{}{"values": []string{fmt.Sprint(v)}},
			})
		case v == nil:
			mustNot = append(mustNot, map[string]interface{}{
				"exists": map[string]interface{}{"field": k},
			})
		default:
			filter = append(filter, map[string]interface{}{
				"term": map[string]interface{}{k: v},
			})
		}
	}
	clause := map[string]interface{}{}
	if len(filter) > 0 {
		clause["filter"] = filter
	}
	if len(mustNot) > 0 {
		clause["must_not"] = mustNot
	}
	return map[string]interface{}{"bool": clause}
}

// searchBody renders table data options as a search request. Without a
// limit, max_rows documents are returned.
func (a *Adapter) searchBody(opts adapter.TableDataOptions) map[string]interface{} {
	size := opts.Limit
	if size <= 0 {
		size = a.config.GetInt("max_rows", 10000)
	}
	body := map[string]interface{}{
		"query": filterQuery(opts.Where),
		"size":  size,
	}
	if opts.Offset > 0 {
		body["from"] = opts.Offset
	}
	var sort []interface{}
	for _, o := range opts.OrderBy {
		if o.Column == "" {
			continue
		}
		order := "asc"
		if o.Desc {
			order = "desc"
		}
		sort = append(sort, map[string]interface{}{o.Column: map[string]interface{}{"order": order}})
	}
	if len(sort) > 0 {
		body["sort"] = sort
	}
	return body
}

// GetTableData searches an index with an exact-match filter.
func (a *Adapter) GetTableData(ctx context.Context, table string, opts adapter.TableDataOptions) *adapter.QueryResult {
	return a.searchResult(ctx, table, a.searchBody(opts), time.Now())
}

// InsertRow indexes one document. An _id in data becomes the document id
// and the write fails if that id already exists.
func (a *Adapter) InsertRow(ctx context.Context, table string, data map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	es, err := a.esClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	doc := make(map[string]interface{}, len(data))
	var id string
	for k, v := range data {
		if k == IDField {
			id = fmt.Sprint(v)
			continue
		}
		doc[k] = v
	}
	r, err := encode(doc)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "insert_row", err), started)
	}

	opts := []func(*esapi.IndexRequest){
		es.Index.WithContext(ctx),
		es.Index.WithRefresh("true"),
	}
	if id != "" {
		opts = append(opts, es.Index.WithDocumentID(id), es.Index.WithOpType("create"))
	}
	if err := a.decode("insert_row", nil)(es.Index(table, r, opts...)); err != nil {
		return adapter.ErrorResult(err, started)
	}
	return adapter.MutationResult(1, started)
}

// byQueryResponse is the outcome of an update or delete by query.
type byQueryResponse struct {
	Updated  int64         `json:"updated"`
	Deleted  int64         `json:"deleted"`
	Failures []interface{} `json:"failures"`
}

func (r byQueryResponse) err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d documents failed: %v", len(r.Failures), r.Failures[0])
}

// updateScript assigns each value through script params, so neither field
// names nor values are spliced into the painless source.
func updateScript(data map[string]interface{}) map[string]interface{} {
	var (
		source string
		params = map[string]interface{}{}
	)
	for i, k := range adapter.SortedKeys(data) {
		if i > 0 {
			source += "; "
		}
		source += fmt.Sprintf("ctx._source[params.f%d] = params.v%d", i, i)
		params[fmt.Sprintf("f%d", i)] = k
		params[fmt.Sprintf("v%d", i)] = data[k]
	}
	return map[string]interface{}{"source": source, "lang": "painless", "params": params}
}

// UpdateRow runs an update by query over the matching documents and
// refreshes the index.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	if len(data) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "update_row", "no values to update"), started)
	}
	if len(where) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "update_row", "update requires a where condition"), started)
	}
	if _, ok := data[IDField]; ok {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "update_row", "the document id cannot be updated"), started)
	}
	es, err := a.esClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	r, err := encode(map[string]interface{}{"query": filterQuery(where), "script": updateScript(data)})
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "update_row", err), started)
	}
	var resp byQueryResponse
	err = a.decode("update_row", &resp)(es.UpdateByQuery([]string{table},
		es.UpdateByQuery.WithContext(ctx),
		es.UpdateByQuery.WithBody(r),
		es.UpdateByQuery.WithRefresh(true),
	))
	if err == nil {
		err = resp.err()
	}
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "update_row", err), started)
	}
	return adapter.MutationResult(resp.Updated, started)
}

// DeleteRow runs a delete by query over the matching documents and
// refreshes the index.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	if len(where) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "delete_row", "delete requires a where condition"), started)
	}
	es, err := a.esClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	r, err := encode(map[string]interface{}{"query": filterQuery(where)})
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "delete_row", err), started)
	}
	var resp byQueryResponse
	err = a.decode("delete_row", &resp)(es.DeleteByQuery([]string{table}, r,
		es.DeleteByQuery.WithContext(ctx),
		es.DeleteByQuery.WithRefresh(true),
	))
	if err == nil {
		err = resp.err()
	}
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "delete_row", err), started)
	}
	return adapter.MutationResult(resp.Deleted, started)
}
