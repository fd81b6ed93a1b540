package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// UpdateRow rewrites matching rows with an ALTER TABLE .. UPDATE mutation.
// The mutation runs synchronously and the affected count is taken from a
// count() over the same condition just before it.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	stmt, args, err := a.updateStatement(table, data, where)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "update_row", err), started)
	}
	return a.mutate(ctx, "update_row", table, where, stmt, args, started)
}

// DeleteRow removes matching rows with an ALTER TABLE .. DELETE mutation.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	stmt, args, err := a.deleteStatement(table, where)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "delete_row", err), started)
	}
	return a.mutate(ctx, "delete_row", table, where, stmt, args, started)
}

func (a *Adapter) updateStatement(table string, data, where map[string]interface{}) (string, []interface{}, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: no values to update", adapter.ErrInvalidArgument)
	}
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: update requires a where condition", adapter.ErrInvalidArgument)
	}
	set, args := a.Dialect.SetClause(data, 1)
	cond, whereArgs := a.Dialect.WhereClause(where, len(args)+1)
	stmt := fmt.Sprintf("ALTER TABLE %s UPDATE %s WHERE %s", a.EscapeIdentifier(table), set, cond)
	return stmt, append(args, whereArgs...), nil
}

func (a *Adapter) deleteStatement(table string, where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: delete requires a where condition", adapter.ErrInvalidArgument)
	}
	cond, args := a.Dialect.WhereClause(where, 1)
	return fmt.Sprintf("ALTER TABLE %s DELETE WHERE %s", a.EscapeIdentifier(table), cond), args, nil
}

func (a *Adapter) mutate(ctx context.Context, op, table string, where map[string]interface{}, stmt string, args []interface{}, started time.Time) *adapter.QueryResult {
	q, err := a.connectedQuerier()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	cond, whereArgs := a.Dialect.WhereClause(where, 1)
	var affected int64
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT count() FROM %s WHERE %s", a.EscapeIdentifier(table), cond), whereArgs...)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), op, err), started)
	}
	for rows.Next() {
		if err := rows.Scan(&affected); err != nil {
			rows.Close()
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), op, err), started)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), op, err), started)
	}
	if affected == 0 {
		return adapter.MutationResult(0, started)
	}

	ctx = clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{"mutations_sync": 1}))
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), op, err), started)
	}
	return adapter.MutationResult(affected, started)
}
