package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// render prints a query result. A failed result becomes the command error.
func (a *app) render(cmd *cobra.Command, res *adapter.QueryResult) error {
	if res.Failed() {
		return res.Err()
	}
	w := cmd.OutOrStdout()
	if a.jsonOut {
		return writeJSON(w, res)
	}
	if res.AffectedRows != nil {
		fmt.Fprintf(w, "%d rows affected (%.1f ms)\n", *res.AffectedRows, res.ExecutionTime)
		return nil
	}

	cols := resultColumns(res)
	rows := make([][]interface{}, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make([]interface{}, len(cols))
		for i, c := range cols {
			row[i] = r[c]
		}
		rows = append(rows, row)
	}
	renderRows(w, cols, rows)
	return nil
}

func renderRows(w io.Writer, cols []string, rows [][]interface{}) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}
