package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// ExecuteQuery runs a JSON search envelope or an SQL statement. A statement
// starting with "{" is an envelope of the form
//
//	{"index": "logs-*", "query": {...}, "size": 20, "sort": [...], "aggs": {...}}
//
// where every key but index is passed to _search unchanged. Anything else
// goes to the SQL API with params bound to its ? placeholders.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	trimmed := strings.TrimSpace(stmt)
	if strings.HasPrefix(trimmed, "{") {
		index, body, err := parseEnvelope(trimmed)
		if err != nil {
			return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "execute", err.Error()), started)
		}
		return a.searchResult(ctx, index, body, started)
	}
	return a.sqlQuery(ctx, trimmed, params, started)
}

// parseEnvelope splits the target index from the search body.
func parseEnvelope(stmt string) (string, map[string]interface{}, error) {
	var body map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(stmt))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return "", nil, fmt.Errorf("invalid JSON query: %v", err)
	}
	index, _ := body["index"].(string)
	if index == "" {
		return "", nil, fmt.Errorf("query envelope requires an \"index\"")
	}
	delete(body, "index")
	return index, body, nil
}

func (a *Adapter) search(ctx context.Context, index string, body map[string]interface{}) (*searchResponse, error) {
	es, err := a.esClient()
	if err != nil {
		return nil, err
	}
	r, err := encode(body)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "search", err)
	}
	var resp searchResponse
	err = a.decode("search", &resp)(es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(r),
	))
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// searchResult folds a search into rows. A search that returns no hits but
// has aggregations reports one row per aggregation.
func (a *Adapter) searchResult(ctx context.Context, index string, body map[string]interface{}, started time.Time) *adapter.QueryResult {
	resp, err := a.search(ctx, index, body)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	if len(resp.Hits.Hits) == 0 && len(resp.Aggregations) > 0 {
		rows := aggregationRows(resp.Aggregations)
		return adapter.NewResult(adapter.ColumnsFromRows(rows, "", classify), rows, started)
	}
	rows := hitRows(resp.Hits.Hits)
	return adapter.NewResult(adapter.ColumnsFromRows(rows, IDField, classify), rows, started)
}

// sqlResponse is a page of the SQL API in JSON format.
type sqlResponse struct {
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	Rows   [][]interface{} `json:"rows"`
	Cursor string          `json:"cursor"`
}

// sqlQuery runs stmt through the SQL API, following the cursor until
// max_rows rows have been read. A cursor left open is cleared.
func (a *Adapter) sqlQuery(ctx context.Context, stmt string, params []interface{}, started time.Time) *adapter.QueryResult {
	es, err := a.esClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	limit := a.config.GetInt("max_rows", 10000)

	request := map[string]interface{}{"query": stmt, "fetch_size": min(limit, 1000)}
	if len(params) > 0 {
		request["params"] = params
	}

	var (
		columns []adapter.Column
		rows    = []map[string]interface{}{}
		cursor  string
	)
	for {
		r, err := encode(request)
		if err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "sql", err), started)
		}
		var page sqlResponse
		err = a.decode("sql", &page)(es.SQL.Query(r,
			es.SQL.Query.WithContext(ctx),
			es.SQL.Query.WithFormat("json"),
		))
		if err != nil {
			return adapter.ErrorResult(err, started)
		}

		if columns == nil {
			columns = make([]adapter.Column, len(page.Columns))
			for i, c := range page.Columns {
				columns[i] = adapter.Column{Name: c.Name, Type: c.Type, Nullable: true, OrdinalPosition: i + 1}
			}
		}
		for _, values := range page.Rows {
			if len(rows) >= limit {
				break
			}
			row := make(map[string]interface{}, len(columns))
			for i, c := range columns {
				if i < len(values) {
					row[c.Name] = normalize(values[i])
				}
			}
			rows = append(rows, row)
		}

		cursor = page.Cursor
		if cursor == "" || len(rows) >= limit {
			break
		}
		request = map[string]interface{}{"cursor": cursor}
	}

	if cursor != "" {
		a.clearCursor(ctx, cursor)
	}
	return adapter.NewResult(columns, rows, started)
}

func (a *Adapter) clearCursor(ctx context.Context, cursor string) {
	es, err := a.esClient()
	if err != nil {
		return
	}
	r, err := encode(map[string]string{"cursor": cursor})
	if err != nil {
		return
	}
	_ = a.decode("clear_cursor", nil)(es.SQL.ClearCursor(r, es.SQL.ClearCursor.WithContext(ctx)))
}

// ExplainQuery translates SQL into the search DSL it runs as, or validates
// a JSON envelope with explanations.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	started := time.Now()
	es, err := a.esClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	trimmed := strings.TrimSpace(stmt)
	if !strings.HasPrefix(trimmed, "{") {
		r, err := encode(map[string]string{"query": trimmed})
		if err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
		}
		var translated map[string]interface{}
		if err := a.decode("explain", &translated)(es.SQL.Translate(r, es.SQL.Translate.WithContext(ctx))); err != nil {
			return adapter.ErrorResult(err, started)
		}
		plan, _ := json.Marshal(normalize(translated))
		rows := []map[string]interface{}{{"plan": string(plan)}}
		return adapter.NewResult([]adapter.Column{{Name: "plan", Type: "text", OrdinalPosition: 1}}, rows, started)
	}

	index, body, err := parseEnvelope(trimmed)
	if err != nil {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "explain", err.Error()), started)
	}
	query, ok := body["query"]
	if !ok {
		query = map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	r, err := encode(map[string]interface{}{"query": query})
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
	}
	var validated struct {
		Valid        bool                     `json:"valid"`
		Explanations []map[string]interface{} `json:"explanations"`
	}
	err = a.decode("explain", &validated)(es.Indices.ValidateQuery(
		es.Indices.ValidateQuery.WithContext(ctx),
		es.Indices.ValidateQuery.WithIndex(index),
		es.Indices.ValidateQuery.WithBody(r),
		es.Indices.ValidateQuery.WithExplain(true),
	))
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	rows := make([]map[string]interface{}, 0, len(validated.Explanations))
	for _, e := range validated.Explanations {
		rows = append(rows, normalize(e).(map[string]interface{}))
	}
	return adapter.NewResult(adapter.ColumnsFromRows(rows, "", classify), rows, started)
}
