package neo4j

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// GetTableData returns the nodes of a label as rows of their properties
// plus _id.
func (a *Adapter) GetTableData(ctx context.Context, table string, opts adapter.TableDataOptions) *adapter.QueryResult {
	started := time.Now()
	stmt, params := a.selectNodes(table, opts)
	out, err := a.run(ctx, stmt, params)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
	}
	rows := make([]map[string]interface{}, 0, len(out.records))
	for _, rec := range out.records {
		if n, ok := rec.Values[0].(dbtype.Node); ok {
			rows = append(rows, nodeMap(n, false))
		}
	}
	return adapter.NewResult(adapter.ColumnsFromRows(rows, "", nil), rows, started)
}

// InsertRow creates one node with the label.
func (a *Adapter) InsertRow(ctx context.Context, table string, data map[string]interface{}) *adapter.QueryResult {
	stmt, params := a.createNode(table, data)
	return a.countMutation(ctx, "insert_row", stmt, params, nil)
}

// UpdateRow merges data into the properties of every matching node.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	stmt, params, err := a.updateNodes(table, data, where)
	return a.countMutation(ctx, "update_row", stmt, params, err)
}

// DeleteRow deletes matching nodes with their relationships.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	stmt, params, err := a.deleteNodes(table, where)
	return a.countMutation(ctx, "delete_row", stmt, params, err)
}

// countMutation runs a statement ending in RETURN count(n) AS affected.
func (a *Adapter) countMutation(ctx context.Context, op, stmt string, params map[string]interface{}, err error) *adapter.QueryResult {
	started := time.Now()
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), op, err), started)
	}
	out, err := a.run(ctx, stmt, params)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), op, err), started)
	}
	var n int64
	if len(out.records) > 0 {
		if v, ok := out.records[0].Get("affected"); ok {
			n, _ = v.(int64)
		}
	}
	return adapter.MutationResult(n, started)
}
