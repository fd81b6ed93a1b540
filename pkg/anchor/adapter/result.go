package adapter

import (
	"errors"
	"time"
)

// QueryResult is the uniform result of every query-shaped operation.
// When Error is set, Rows and Columns are empty.
type QueryResult struct {
	Columns       []Column                 `json:"columns"`
	Rows          []map[string]interface{} `json:"rows"`
	RowCount      int                      `json:"rowCount"`
	AffectedRows  *int64                   `json:"affectedRows,omitempty"`
	ExecutionTime float64                  `json:"executionTime"` // milliseconds
	Error         string                   `json:"error,omitempty"`
}

// Failed reports whether the operation did not complete.
func (r *QueryResult) Failed() bool {
	return r == nil || r.Error != ""
}

// Err returns the result error as an error value, or nil.
func (r *QueryResult) Err() error {
	if r == nil {
		return errors.New("no result")
	}
	if r.Error == "" {
		return nil
	}
	return errors.New(r.Error)
}

// ColumnNames returns the column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

func elapsedMillis(started time.Time) float64 {
	return float64(time.Since(started).Microseconds()) / 1000
}

// NewResult builds a successful row result.
func NewResult(columns []Column, rows []map[string]interface{}, started time.Time) *QueryResult {
	if columns == nil {
		columns = []Column{}
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return &QueryResult{
		Columns:       columns,
		Rows:          rows,
		RowCount:      len(rows),
		ExecutionTime: elapsedMillis(started),
	}
}

// MutationResult builds a successful result for a statement that changes rows.
func MutationResult(affected int64, started time.Time) *QueryResult {
	res := NewResult(nil, nil, started)
	res.AffectedRows = &affected
	return res
}

// ErrorResult folds an error into a result with empty rows and columns.
func ErrorResult(err error, started time.Time) *QueryResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &QueryResult{
		Columns:       []Column{},
		Rows:          []map[string]interface{}{},
		ExecutionTime: elapsedMillis(started),
		Error:         msg,
	}
}
