package firestore

import (
	"context"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

func whereFilters(where map[string]interface{}) []Filter {
	keys := adapter.SortedKeys(where)
	filters := make([]Filter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, Filter{Path: k, Op: "==", Value: where[k]})
	}
	return filters
}

// GetTableData queries a collection with equality filters, order and paging.
func (a *Adapter) GetTableData(ctx context.Context, table string, opts adapter.TableDataOptions) *adapter.QueryResult {
	q := &Query{
		Collection: table,
		Operation:  OpFind,
		Filters:    whereFilters(opts.Where),
		OrderBy:    opts.OrderBy,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}
	return a.runOp(ctx, "get_table_data", q)
}

// InsertRow adds a document. An _id field names the document.
func (a *Adapter) InsertRow(ctx context.Context, table string, data map[string]interface{}) *adapter.QueryResult {
	if len(data) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "insert_row", "no fields to insert"), time.Now())
	}
	return a.runOp(ctx, "insert_row", &Query{Collection: table, Operation: OpInsertOne, Document: data})
}

// UpdateRow merges data into the first document matching where.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	if len(where) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "update_row", "where is required"), time.Now())
	}
	if len(data) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "update_row", "no fields to update"), time.Now())
	}
	return a.runOp(ctx, "update_row", &Query{Collection: table, Operation: OpUpdateOne, Filters: whereFilters(where), Update: data})
}

// DeleteRow deletes the first document matching where.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	if len(where) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "delete_row", "where is required"), time.Now())
	}
	return a.runOp(ctx, "delete_row", &Query{Collection: table, Operation: OpDeleteOne, Filters: whereFilters(where)})
}

func (a *Adapter) runOp(ctx context.Context, operation string, q *Query) *adapter.QueryResult {
	started := time.Now()
	if _, err := a.firestoreClient(); err != nil {
		return adapter.ErrorResult(err, started)
	}
	res, err := a.run(ctx, q, started)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), operation, err), started)
	}
	return res
}
