package adapter

import (
	"fmt"
	"sort"
	"strings"
)

// Pagination selects how LIMIT and OFFSET are rendered.
type Pagination int

const (
	// PaginateLimitOffset renders LIMIT n OFFSET m.
	PaginateLimitOffset Pagination = iota
	// PaginateOffsetFetch renders OFFSET m ROWS FETCH NEXT n ROWS ONLY and
	// requires an ORDER BY (SQL Server).
	PaginateOffsetFetch
	// PaginateFetchFirst renders OFFSET m ROWS FETCH NEXT n ROWS ONLY without
	// forcing an ORDER BY (Oracle 12c+).
	PaginateFetchFirst
)

// Dialect renders parameterized statements for one engine.
type Dialect struct {
	Quote       func(name string) string
	Placeholder PlaceholderStyle
	Pagination  Pagination
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WhereClause renders an equality-only condition starting at parameter index
// start. nil values become IS NULL. It returns "" when where is empty.
func (d Dialect) WhereClause(where map[string]interface{}, start int) (string, []interface{}) {
	if len(where) == 0 {
		return "", nil
	}
	var (
		parts []string
		args  []interface{}
		idx   = start
	)
	for _, k := range SortedKeys(where) {
		v := where[k]
		if v == nil {
			parts = append(parts, d.Quote(k)+" IS NULL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", d.Quote(k), d.Placeholder.Placeholder(idx)))
		args = append(args, v)
		idx++
	}
	return strings.Join(parts, " AND "), args
}

// OrderClause renders ORDER BY terms without the keyword.
func (d Dialect) OrderClause(order []OrderBy) string {
	parts := make([]string, 0, len(order))
	for _, o := range order {
		if o.Column == "" {
			continue
		}
		term := d.Quote(o.Column)
		if o.Desc {
			term += " DESC"
		} else {
			term += " ASC"
		}
		parts = append(parts, term)
	}
	return strings.Join(parts, ", ")
}

// Select builds SELECT * FROM table with optional WHERE, ORDER BY and paging.
func (d Dialect) Select(table string, opts TableDataOptions) (string, []interface{}) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(d.Quote(table))

	where, args := d.WhereClause(opts.Where, 1)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	order := d.OrderClause(opts.OrderBy)
	paging := opts.Limit > 0 || opts.Offset > 0
	if order == "" && paging && d.Pagination == PaginateOffsetFetch {
		order = "(SELECT NULL)"
	}
	if order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}

	switch d.Pagination {
	case PaginateOffsetFetch, PaginateFetchFirst:
		if paging {
			fmt.Fprintf(&b, " OFFSET %d ROWS", opts.Offset)
			if opts.Limit > 0 {
				fmt.Fprintf(&b, " FETCH NEXT %d ROWS ONLY", opts.Limit)
			}
		}
	default:
		if opts.Limit > 0 {
			fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
		}
		if opts.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
		}
	}

	return b.String(), args
}

// Insert builds a parameterized INSERT. Columns are emitted in lexical order.
func (d Dialect) Insert(table string, data map[string]interface{}) (string, []interface{}, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: no values to insert", ErrInvalidArgument)
	}
	keys := SortedKeys(data)
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		cols[i] = d.Quote(k)
		marks[i] = d.Placeholder.Placeholder(i + 1)
		args[i] = data[k]
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	return stmt, args, nil
}

// SetClause renders a = p1, b = p2 starting at parameter index start.
func (d Dialect) SetClause(data map[string]interface{}, start int) (string, []interface{}) {
	keys := SortedKeys(data)
	sets := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = %s", d.Quote(k), d.Placeholder.Placeholder(start+i))
		args[i] = data[k]
	}
	return strings.Join(sets, ", "), args
}

// Update builds a parameterized UPDATE. An empty where is rejected so a
// single-row edit can never rewrite the whole table.
func (d Dialect) Update(table string, data, where map[string]interface{}) (string, []interface{}, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: no values to update", ErrInvalidArgument)
	}
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: update requires a where condition", ErrInvalidArgument)
	}
	set, args := d.SetClause(data, 1)
	cond, whereArgs := d.WhereClause(where, len(args)+1)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s", d.Quote(table), set, cond)
	return stmt, append(args, whereArgs...), nil
}

// Delete builds a parameterized DELETE. An empty where is rejected.
func (d Dialect) Delete(table string, where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: delete requires a where condition", ErrInvalidArgument)
	}
	cond, args := d.WhereClause(where, 1)
	return fmt.Sprintf("DELETE FROM %s WHERE %s", d.Quote(table), cond), args, nil
}
