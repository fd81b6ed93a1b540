package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/pkg/health"
)

func (a *app) enginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List supported engines and whether this binary links them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type engine struct {
				dbcapabilities.Capability
				Linked bool `json:"linked"`
			}
			var engines []engine
			for _, id := range dbcapabilities.IDs() {
				engines = append(engines, engine{Capability: dbcapabilities.MustGet(id), Linked: adapter.IsRegistered(id)})
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), engines)
			}
			rows := make([][]interface{}, 0, len(engines))
			for _, e := range engines {
				paradigms := make([]string, len(e.Paradigms))
				for i, p := range e.Paradigms {
					paradigms[i] = string(p)
				}
				rows = append(rows, []interface{}{e.ID, e.Name, strings.Join(paradigms, ","), e.DefaultPort, e.SupportsTransactions, e.Linked})
			}
			renderRows(cmd.OutOrStdout(), []string{"id", "name", "paradigms", "port", "transactions", "linked"}, rows)
			return nil
		},
	}
}

func (a *app) testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Connect, probe and print the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			started := time.Now()
			if !db.TestConnection(cmd.Context()) {
				return fmt.Errorf("%s connection %s failed its probe", db.GetDatabaseType(), db.Config().ID)
			}
			version, err := db.GetVersion(cmd.Context())
			if err != nil {
				version = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s %s (%s)\n", db.GetDatabaseType(), version, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every connection in the connection file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := a.state.HealthCheck(cmd.Context())
			overall := checker.GetOverallStatus()
			checks := checker.GetAllChecks()
			if a.jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), map[string]interface{}{"status": overall, "checks": checks}); err != nil {
					return err
				}
			} else {
				rows := make([][]interface{}, 0, len(checks))
				for _, c := range checks {
					rows = append(rows, []interface{}{c.Name, c.Status, c.Latency.Round(time.Millisecond), c.Message})
				}
				renderRows(cmd.OutOrStdout(), []string{"connection", "status", "latency", "message"}, rows)
				fmt.Fprintf(cmd.OutOrStdout(), "overall: %s\n", overall)
			}
			if overall == health.StatusUnhealthy {
				return fmt.Errorf("all connections are unhealthy")
			}
			return nil
		},
	}
}

func (a *app) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables [database]",
		Short: "List tables, collections, labels or indices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			tables, err := db.GetTables(cmd.Context(), optionalArg(args, 0))
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), tables)
			}
			rows := make([][]interface{}, 0, len(tables))
			for _, t := range tables {
				var count interface{}
				if t.RowCount != nil {
					count = *t.RowCount
				}
				rows = append(rows, []interface{}{t.Schema, t.Name, t.Type, count})
			}
			renderRows(cmd.OutOrStdout(), []string{"schema", "name", "type", "rows"}, rows)
			return nil
		},
	}
}

func (a *app) columnsCmd() *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "columns <table>",
		Short: "Describe the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			columns, err := db.GetColumns(cmd.Context(), args[0], schema)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), columns)
			}
			rows := make([][]interface{}, 0, len(columns))
			for _, c := range columns {
				var def interface{}
				if c.Default != nil {
					def = *c.Default
				}
				rows = append(rows, []interface{}{c.Name, c.Type, c.Nullable, c.PrimaryKey, def})
			}
			renderRows(cmd.OutOrStdout(), []string{"name", "type", "nullable", "primary key", "default"}, rows)
			if note := inferredNote(db); note != "" {
				fmt.Fprintln(cmd.OutOrStdout(), note)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Schema or namespace of the table")
	return cmd
}

func (a *app) indexesCmd() *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "indexes <table>",
		Short: "List the indexes and primary key of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			indexes, err := db.GetIndexes(cmd.Context(), args[0], schema)
			if err != nil {
				return err
			}
			pk, err := db.GetPrimaryKey(cmd.Context(), args[0], schema)
			if err != nil {
				a.log.Debug("Primary key of %s unavailable: %v", args[0], err)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"primaryKey": pk, "indexes": indexes})
			}
			rows := make([][]interface{}, 0, len(indexes))
			for _, idx := range indexes {
				rows = append(rows, []interface{}{idx.Name, strings.Join(idx.Columns, ","), idx.Unique, idx.Primary})
			}
			renderRows(cmd.OutOrStdout(), []string{"name", "columns", "unique", "primary"}, rows)
			if len(pk) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "primary key: %s\n", strings.Join(pk, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Schema or namespace of the table")
	return cmd
}

func (a *app) viewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "views [database]",
		Short: "List views",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			views, err := adapter.Views(cmd.Context(), db, optionalArg(args, 0))
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			rows := make([][]interface{}, 0, len(views))
			for _, v := range views {
				rows = append(rows, []interface{}{v.Schema, v.Name})
			}
			renderRows(cmd.OutOrStdout(), []string{"schema", "name"}, rows)
			return nil
		},
	}
}

func (a *app) databasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the databases of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			names, err := adapter.Databases(cmd.Context(), db)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			capability := dbcapabilities.MustGet(db.GetDatabaseType())
			rows := make([][]interface{}, 0, len(names))
			for _, n := range names {
				rows = append(rows, []interface{}{n, capability.IsSystemDatabase(n)})
			}
			renderRows(cmd.OutOrStdout(), []string{"database", "system"}, rows)
			return nil
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	var explain, inline bool
	cmd := &cobra.Command{
		Use:   "query <statement> [params...]",
		Short: "Run a statement in the engine's native language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			params := make([]interface{}, 0, len(args)-1)
			for _, p := range args[1:] {
				params = append(params, parseValue(p))
			}
			stmt := args[0]
			if inline {
				if stmt, err = adapter.InlineStatement(db, stmt, params); err != nil {
					return err
				}
				params = nil
			}
			if explain {
				return a.render(cmd, adapter.Explain(cmd.Context(), db, stmt))
			}
			return a.render(cmd, db.ExecuteQuery(cmd.Context(), stmt, params...))
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the plan instead of running the statement")
	cmd.Flags().BoolVar(&inline, "inline", false, "Substitute params into the statement as SQL literals instead of binding them")
	return cmd
}

func (a *app) dataCmd() *cobra.Command {
	var (
		limit, offset int
		orderBy       []string
		where         []string
	)
	cmd := &cobra.Command{
		Use:   "data <table>",
		Short: "Read rows from a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseAssignments(where)
			if err != nil {
				return err
			}
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if limit == 0 {
				limit = a.state.Config.QueryLimit
			}
			opts := adapter.TableDataOptions{Limit: limit, Offset: offset, Where: filter, OrderBy: parseOrder(orderBy)}
			return a.render(cmd, db.GetTableData(cmd.Context(), args[0], opts))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (default from config)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().StringArrayVar(&orderBy, "order", nil, "Sort column, append :desc for descending")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Equality filter column=value")
	return cmd
}

func (a *app) insertCmd() *cobra.Command {
	var set []string
	cmd := &cobra.Command{
		Use:   "insert <table>",
		Short: "Insert one row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(set)
			if err != nil {
				return err
			}
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, db.InsertRow(cmd.Context(), args[0], data))
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "Column value column=value")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var set, where []string
	cmd := &cobra.Command{
		Use:   "update <table>",
		Short: "Update the rows matching --where",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(set)
			if err != nil {
				return err
			}
			filter, err := parseAssignments(where)
			if err != nil {
				return err
			}
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, db.UpdateRow(cmd.Context(), args[0], data, filter))
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "New value column=value")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Equality filter column=value")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete the rows matching --where",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseAssignments(where)
			if err != nil {
				return err
			}
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, db.DeleteRow(cmd.Context(), args[0], filter))
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "Equality filter column=value")
	return cmd
}

func (a *app) metadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata [database]",
		Short: "Print table and column names for autocomplete",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			meta := a.state.Metadata(cmd.Context(), db, optionalArg(args, 0))
			if meta == nil {
				return fmt.Errorf("schema metadata unavailable for %s", db.Config().ID)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), meta)
			}
			var rows [][]interface{}
			for _, t := range meta.Tables {
				for _, c := range t.Columns {
					rows = append(rows, []interface{}{t.Schema, t.Name, c.Name, c.Type})
				}
			}
			renderRows(cmd.OutOrStdout(), []string{"schema", "table", "column", "type"}, rows)
			return nil
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [database]",
		Short: "Print the full schema as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			schema, err := db.GetSchema(cmd.Context(), optionalArg(args, 0))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), schema)
		},
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// parseAssignments turns column=value pairs into a row map.
func parseAssignments(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected column=value, got %q", pair)
		}
		out[name] = parseValue(value)
	}
	return out, nil
}

// parseValue reads null, booleans and numbers; anything else is a string.
// Quote a value to keep it a string: name='42'.
func parseValue(s string) interface{} {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	switch s {
	case "null", "NULL":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// inferredNote explains where the columns of a schemaless engine come from.
func inferredNote(db adapter.Adapter) string {
	if !dbcapabilities.IsSchemaless(db.GetDatabaseType()) {
		return ""
	}
	return fmt.Sprintf("columns inferred from up to %d sampled records", db.Config().SampleSize)
}

func parseOrder(terms []string) []adapter.OrderBy {
	out := make([]adapter.OrderBy, 0, len(terms))
	for _, term := range terms {
		column, dir, _ := strings.Cut(term, ":")
		out = append(out, adapter.OrderBy{Column: column, Desc: strings.EqualFold(dir, "desc")})
	}
	return out
}

// resultColumns returns the declared column order, or the sorted keys of
// the rows when an engine reports none.
func resultColumns(res *adapter.QueryResult) []string {
	if len(res.Columns) > 0 {
		return res.ColumnNames()
	}
	seen := map[string]bool{}
	var names []string
	for _, row := range res.Rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}
