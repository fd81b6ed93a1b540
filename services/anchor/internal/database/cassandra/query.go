package cassandra

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// conditional matches lightweight transactions, which return an [applied]
// row.
var conditional = regexp.MustCompile(`(?i)\sIF\s+(NOT\s+)?(EXISTS|"?\w)`)

// ExecuteQuery runs one CQL statement. Cassandra does not report affected
// row counts, so plain writes return a result without AffectedRows.
// Conditional writes return their [applied] row.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	session, err := a.cqlSession()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	if strings.TrimSpace(stmt) == "" {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "execute", "empty statement"), started)
	}

	q := session.Query(stmt, params...).WithContext(ctx)
	if !returnsRows(stmt) {
		if err := q.Exec(); err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute", err), started)
		}
		return adapter.NewResult(nil, nil, started)
	}

	cols, rows, err := a.scanAll(q.Iter(), 0)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute", err), started)
	}
	return adapter.NewResult(cols, rows, started)
}

func returnsRows(stmt string) bool {
	return adapter.IsQueryStatement(stmt) || conditional.MatchString(stmt)
}

// scanAll reads every row, or at most max rows when max is positive.
func (a *Adapter) scanAll(iter *gocql.Iter, max int) ([]adapter.Column, []map[string]interface{}, error) {
	info := iter.Columns()
	cols := make([]adapter.Column, len(info))
	for i, c := range info {
		cols[i] = adapter.Column{Name: c.Name, Type: columnType(c.TypeInfo), Nullable: true, OrdinalPosition: i + 1}
	}

	var rows []map[string]interface{}
	for max <= 0 || len(rows) < max {
		row := make(map[string]interface{}, len(info))
		if !iter.MapScan(row) {
			break
		}
		rows = append(rows, normalizeRow(row))
	}
	if err := iter.Close(); err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}
