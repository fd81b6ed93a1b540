package cassandra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// GetTableData selects rows with an equality filter. A filter adds ALLOW
// FILTERING. CQL has no OFFSET and orders only by clustering columns, so
// ordering and offset are applied client side; an ordered read fetches up
// to max_rows rows first.
func (a *Adapter) GetTableData(ctx context.Context, table string, opts adapter.TableDataOptions) *adapter.QueryResult {
	started := time.Now()
	session, err := a.cqlSession()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	fetch := a.config.GetInt("max_rows", 10000)
	if len(opts.OrderBy) == 0 && opts.Limit > 0 {
		fetch = opts.Offset + opts.Limit
	}
	stmt, args := a.selectStatement(table, opts.Where, fetch)

	cols, rows, err := a.scanAll(session.Query(stmt, args...).WithContext(ctx).Iter(), fetch)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
	}
	adapter.SortRows(rows, opts.OrderBy)
	rows = adapter.PageRows(rows, opts.Offset, opts.Limit)
	return adapter.NewResult(cols, rows, started)
}

func (a *Adapter) selectStatement(table string, where map[string]interface{}, limit int) (string, []interface{}) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(a.EscapeIdentifier(table))
	cond, args := a.Dialect.WhereClause(where, 1)
	if cond != "" {
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if cond != "" {
		b.WriteString(" ALLOW FILTERING")
	}
	return b.String(), args
}

// InsertRow writes one row. CQL inserts are upserts and always apply.
func (a *Adapter) InsertRow(ctx context.Context, table string, data map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	stmt, args, err := a.Dialect.Insert(table, data)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "insert_row", err), started)
	}
	res := a.ExecuteQuery(ctx, stmt, args...)
	if res.Failed() {
		return res
	}
	return adapter.MutationResult(1, started)
}

// UpdateRow updates the row named by the primary key in where. Other where
// columns become IF conditions; with none the update is IF EXISTS. The
// [applied] flag gives the affected count.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "update_row", err), started)
	}
	if len(data) == 0 {
		return fail(fmt.Errorf("%w: no values to update", adapter.ErrInvalidArgument))
	}
	keys, err := a.GetPrimaryKey(ctx, table, "")
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	stmt, args, err := a.conditionalUpdate(table, keys, data, where)
	if err != nil {
		return fail(err)
	}
	return a.applied(ctx, "update_row", stmt, args, started)
}

// DeleteRow deletes the row named by the primary key in where, with the
// same conditions as UpdateRow.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	keys, err := a.GetPrimaryKey(ctx, table, "")
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	stmt, args, err := a.conditionalDelete(table, keys, where)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "delete_row", err), started)
	}
	return a.applied(ctx, "delete_row", stmt, args, started)
}

func (a *Adapter) applied(ctx context.Context, op, stmt string, args []interface{}, started time.Time) *adapter.QueryResult {
	res := a.ExecuteQuery(ctx, stmt, args...)
	if res.Failed() {
		return res
	}
	var n int64
	if len(res.Rows) > 0 {
		if ok, _ := res.Rows[0]["[applied]"].(bool); ok {
			n = 1
		}
	}
	return adapter.MutationResult(n, started)
}

// splitWhere separates the full primary key from the remaining conditions.
func splitWhere(keys []string, where map[string]interface{}) (map[string]interface{}, map[string]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("%w: table has no primary key", adapter.ErrInvalidArgument)
	}
	key := make(map[string]interface{}, len(keys))
	rest := make(map[string]interface{})
	for k, v := range where {
		rest[k] = v
	}
	for _, k := range keys {
		v, ok := where[k]
		if !ok || v == nil {
			return nil, nil, fmt.Errorf("%w: where must contain the full primary key (%s)",
				adapter.ErrInvalidArgument, strings.Join(keys, ", "))
		}
		key[k] = v
		delete(rest, k)
	}
	return key, rest, nil
}

// ifClause renders IF EXISTS, or IF "c" = ? AND ... for the given conditions.
func (a *Adapter) ifClause(cond map[string]interface{}) (string, []interface{}) {
	if len(cond) == 0 {
		return " IF EXISTS", nil
	}
	parts := make([]string, 0, len(cond))
	args := make([]interface{}, 0, len(cond))
	for _, k := range adapter.SortedKeys(cond) {
		parts = append(parts, a.EscapeIdentifier(k)+" = ?")
		args = append(args, cond[k])
	}
	return " IF " + strings.Join(parts, " AND "), args
}

func (a *Adapter) conditionalUpdate(table string, keys []string, data, where map[string]interface{}) (string, []interface{}, error) {
	key, rest, err := splitWhere(keys, where)
	if err != nil {
		return "", nil, err
	}
	for _, k := range keys {
		if _, ok := data[k]; ok {
			return "", nil, fmt.Errorf("%w: primary key column %s cannot be updated", adapter.ErrInvalidArgument, k)
		}
	}
	set, args := a.Dialect.SetClause(data, 1)
	cond, keyArgs := a.Dialect.WhereClause(key, len(args)+1)
	ifc, ifArgs := a.ifClause(rest)
	stmt := "UPDATE " + a.EscapeIdentifier(table) + " SET " + set + " WHERE " + cond + ifc
	return stmt, append(append(args, keyArgs...), ifArgs...), nil
}

func (a *Adapter) conditionalDelete(table string, keys []string, where map[string]interface{}) (string, []interface{}, error) {
	key, rest, err := splitWhere(keys, where)
	if err != nil {
		return "", nil, err
	}
	cond, args := a.Dialect.WhereClause(key, 1)
	ifc, ifArgs := a.ifClause(rest)
	stmt := "DELETE FROM " + a.EscapeIdentifier(table) + " WHERE " + cond + ifc
	return stmt, append(args, ifArgs...), nil
}
