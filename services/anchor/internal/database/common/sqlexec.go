package common

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQLRunner executes statements through database/sql and folds the outcome
// into a QueryResult. The hooks let an engine normalize type names and
// driver values; both are optional.
type SQLRunner struct {
	DatabaseType dbcapabilities.DatabaseID

	// TypeName maps a driver column type to the reported type name.
	TypeName func(ct *sql.ColumnType) string
	// Value converts a scanned value. It runs after []byte has been turned
	// into a string.
	Value func(ct *sql.ColumnType, v interface{}) interface{}
	// IsQuery overrides the row-returning statement heuristic.
	IsQuery func(stmt string) bool
}

// Run executes stmt. Statements classified as queries are read into rows,
// everything else reports the affected row count.
func (r SQLRunner) Run(ctx context.Context, q Querier, stmt string, params []interface{}) *adapter.QueryResult {
	started := time.Now()
	if q == nil {
		return adapter.ErrorResult(adapter.NotConnected(r.DatabaseType), started)
	}

	isQuery := adapter.IsQueryStatement
	if r.IsQuery != nil {
		isQuery = r.IsQuery
	}

	if !isQuery(stmt) {
		res, err := q.ExecContext(ctx, stmt, params...)
		if err != nil {
			return adapter.ErrorResult(adapter.WrapError(r.DatabaseType, "execute", err), started)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			// Some drivers cannot report a count for DDL.
			affected = 0
		}
		return adapter.MutationResult(affected, started)
	}

	rows, err := q.QueryContext(ctx, stmt, params...)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(r.DatabaseType, "query", err), started)
	}
	defer rows.Close()

	columns, data, err := r.Scan(rows)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(r.DatabaseType, "query", err), started)
	}
	return adapter.NewResult(columns, data, started)
}

// Scan reads every row into column-name maps.
func (r SQLRunner) Scan(rows *sql.Rows) ([]adapter.Column, []map[string]interface{}, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}

	columns := make([]adapter.Column, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		columns[i] = adapter.Column{
			Name:            ct.Name(),
			Type:            r.typeName(ct),
			Nullable:        nullable || !ok,
			OrdinalPosition: i + 1,
		}
	}

	data := []map[string]interface{}{}
	values := make([]interface{}, len(types))
	pointers := make([]interface{}, len(types))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]interface{}, len(types))
		for i, ct := range types {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if r.Value != nil {
				v = r.Value(ct, v)
			}
			row[ct.Name()] = v
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, data, nil
}

func (r SQLRunner) typeName(ct *sql.ColumnType) string {
	if r.TypeName != nil {
		return r.TypeName(ct)
	}
	name := strings.ToLower(ct.DatabaseTypeName())
	if name == "" {
		return adapter.UnknownType
	}
	return name
}

// QueryStrings runs a query whose first column is text and returns it.
func QueryStrings(ctx context.Context, q Querier, stmt string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s.String)
	}
	return out, rows.Err()
}
