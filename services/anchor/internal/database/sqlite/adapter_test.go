package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

var fixture = []string{
	"CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)",
	"CREATE TABLE books (id INTEGER PRIMARY KEY, author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE, title TEXT NOT NULL, price REAL DEFAULT 9.5)",
	"CREATE INDEX idx_books_title ON books(title, price)",
	"CREATE VIEW cheap_books AS SELECT title FROM books WHERE price < 10",
	"CREATE TRIGGER books_touch AFTER UPDATE ON books BEGIN SELECT 1; END",
}

func newMemoryAdapter(t *testing.T) *Adapter {
	t.Helper()
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{ID: "lite", Type: dbcapabilities.SQLite, FilePath: MemoryPath})
	require.NoError(t, a.Connect(ctx))
	t.Cleanup(func() { a.Disconnect(context.Background()) })

	for _, stmt := range fixture {
		res := a.ExecuteQuery(ctx, stmt)
		require.False(t, res.Failed(), "%s: %s", stmt, res.Error)
	}
	return a
}

func TestInsertThenRead(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	res := a.InsertRow(ctx, "authors", map[string]interface{}{"id": 1, "name": "Le Guin"})
	require.False(t, res.Failed(), res.Error)
	require.NotNil(t, res.AffectedRows)
	assert.Equal(t, int64(1), *res.AffectedRows)

	res = a.InsertRow(ctx, "books", map[string]interface{}{"author_id": 1, "title": "The Dispossessed", "price": 8.0})
	require.False(t, res.Failed(), res.Error)

	data := a.GetTableData(ctx, "books", adapter.TableDataOptions{Where: map[string]interface{}{"author_id": 1}})
	require.False(t, data.Failed(), data.Error)
	require.Equal(t, 1, data.RowCount)
	assert.Equal(t, "The Dispossessed", data.Rows[0]["title"])
	assert.Equal(t, int64(1), data.Rows[0]["author_id"])
	assert.Equal(t, 8.0, data.Rows[0]["price"])
	assert.Equal(t, []string{"id", "author_id", "title", "price"}, data.ColumnNames())
}

func TestUpdateAndDeleteCounts(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	for i, name := range []string{"A", "B", "C"} {
		res := a.InsertRow(ctx, "authors", map[string]interface{}{"id": i + 1, "name": name})
		require.False(t, res.Failed(), res.Error)
	}

	res := a.UpdateRow(ctx, "authors", map[string]interface{}{"name": "Z"}, map[string]interface{}{"id": 2})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)

	res = a.DeleteRow(ctx, "authors", map[string]interface{}{"name": "Z"})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)

	res = a.DeleteRow(ctx, "authors", map[string]interface{}{"name": "missing"})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(0), *res.AffectedRows)

	res = a.DeleteRow(ctx, "authors", nil)
	assert.True(t, res.Failed())
}

func TestPaging(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)
	for i := 1; i <= 5; i++ {
		res := a.InsertRow(ctx, "authors", map[string]interface{}{"id": i, "name": string(rune('a' + i))})
		require.False(t, res.Failed(), res.Error)
	}

	res := a.GetTableData(ctx, "authors", adapter.TableDataOptions{
		Limit: 2, Offset: 1, OrderBy: []adapter.OrderBy{{Column: "id", Desc: true}},
	})
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, 2, res.RowCount)
	assert.Equal(t, int64(4), res.Rows[0]["id"])
	assert.Equal(t, int64(3), res.Rows[1]["id"])
}

func TestIntrospection(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	tables, err := a.GetTables(ctx, "")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "authors", tables[0].Name)
	assert.Equal(t, "main", tables[0].Schema)

	cols, err := a.GetColumns(ctx, "books", "")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].AutoIncrement)
	assert.False(t, cols[2].Nullable)
	assert.True(t, cols[3].Nullable)
	require.NotNil(t, cols[3].Default)
	assert.Equal(t, "9.5", *cols[3].Default)

	pk, err := a.GetPrimaryKey(ctx, "books", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)

	indexes, err := a.GetIndexes(ctx, "books", "")
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, adapter.Index{Name: "idx_books_title", Columns: []string{"title", "price"}}, indexes[0])

	authorIndexes, err := a.GetIndexes(ctx, "authors", "")
	require.NoError(t, err)
	require.Len(t, authorIndexes, 1)
	assert.True(t, authorIndexes[0].Unique)
	assert.Equal(t, []string{"name"}, authorIndexes[0].Columns)

	fks, err := a.GetForeignKeys(ctx, "books", "")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "authors", fks[0].ReferencedTable)
	assert.Equal(t, []string{"author_id"}, fks[0].Columns)
	assert.Equal(t, []string{"id"}, fks[0].ReferencedColumns)
	assert.Equal(t, "CASCADE", fks[0].OnDelete)

	views, err := a.GetViews(ctx, "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].Definition, "price < 10")

	def, err := a.GetViewDefinition(ctx, "cheap_books", "")
	require.NoError(t, err)
	assert.Contains(t, def, "CREATE VIEW")

	_, err = a.GetViewDefinition(ctx, "nope", "")
	assert.Error(t, err)

	triggers, err := a.GetTriggers(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []adapter.Trigger{{Name: "books_touch", Table: "books", Event: "UPDATE", Timing: "AFTER"}}, triggers)

	dbs, err := a.GetDatabases(ctx)
	require.NoError(t, err)
	assert.Contains(t, dbs, "main")

	_, err = a.GetColumns(ctx, "missing", "")
	assert.ErrorIs(t, err, adapter.ErrTableNotFound)
}

func TestSchemaAndMetadata(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	schema, err := a.GetSchema(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, dbcapabilities.SQLite, schema.DatabaseType)
	require.Len(t, schema.Tables, 2)
	assert.Len(t, schema.Tables[1].ForeignKeys, 1)
	assert.Len(t, schema.Views, 1)

	meta, err := a.GetSchemaMetadata(ctx, "")
	require.NoError(t, err)
	require.Len(t, meta.Tables, 2)
	assert.Equal(t, "authors", meta.Tables[0].Name)
	assert.Equal(t, []adapter.ColumnMetadata{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}}, meta.Tables[0].Columns)
	require.Len(t, meta.Views, 1)
	assert.Equal(t, "cheap_books", meta.Views[0].Name)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	require.NoError(t, a.BeginTransaction(ctx))
	assert.Error(t, a.BeginTransaction(ctx))
	res := a.InsertRow(ctx, "authors", map[string]interface{}{"id": 1, "name": "rolled back"})
	require.False(t, res.Failed(), res.Error)
	require.NoError(t, a.RollbackTransaction(ctx))

	res = a.ExecuteQuery(ctx, "SELECT COUNT(*) AS n FROM authors")
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(0), res.Rows[0]["n"])

	require.NoError(t, a.BeginTransaction(ctx))
	res = a.InsertRow(ctx, "authors", map[string]interface{}{"id": 1, "name": "kept"})
	require.False(t, res.Failed(), res.Error)
	require.NoError(t, a.CommitTransaction(ctx))

	res = a.ExecuteQuery(ctx, "SELECT name FROM authors WHERE id = ?", 1)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, "kept", res.Rows[0]["name"])

	assert.Error(t, a.CommitTransaction(ctx))
}

func TestTransactionOutlivesBeginContext(t *testing.T) {
	a := newMemoryAdapter(t)
	ctx := context.Background()

	reqCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, a.BeginTransaction(reqCtx))
	cancel()
	time.Sleep(20 * time.Millisecond)

	res := a.InsertRow(ctx, "authors", map[string]interface{}{"id": 7, "name": "after cancel"})
	require.False(t, res.Failed(), res.Error)
	require.NoError(t, a.CommitTransaction(ctx))

	res = a.ExecuteQuery(ctx, "SELECT name FROM authors WHERE id = ?", 7)
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "after cancel", res.Rows[0]["name"])
}

func TestReturningOnItsOwnLine(t *testing.T) {
	a := newMemoryAdapter(t)

	res := a.ExecuteQuery(context.Background(), "INSERT INTO authors (name) VALUES ('Jemisin')\nRETURNING id, name")
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "Jemisin", res.Rows[0]["name"])
}

func TestForeignKeysEnforced(t *testing.T) {
	a := newMemoryAdapter(t)
	res := a.InsertRow(context.Background(), "books", map[string]interface{}{"author_id": 42, "title": "orphan"})
	assert.True(t, res.Failed())
	assert.Empty(t, res.Rows)
}

func TestQueryErrorsAreFolded(t *testing.T) {
	a := newMemoryAdapter(t)
	res := a.ExecuteQuery(context.Background(), "SELECT * FROM nowhere")
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "[sqlite]")
	assert.Empty(t, res.Columns)
}

func TestExplainAndVersion(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	res := a.ExplainQuery(ctx, "SELECT * FROM books WHERE title = 'x'")
	require.False(t, res.Failed(), res.Error)
	assert.NotEmpty(t, res.Rows)

	version, err := a.GetVersion(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^3\.`, version)
}

func TestConnectionLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{ID: "lite", FilePath: filepath.Join(t.TempDir(), "app.db")})

	assert.True(t, a.TestConnection(ctx))
	assert.False(t, a.IsConnected())

	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.Connect(ctx))
	assert.True(t, a.IsConnected())
	require.NoError(t, a.Disconnect(ctx))
	require.NoError(t, a.Disconnect(ctx))

	res := a.ExecuteQuery(ctx, "SELECT 1")
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "not connected")

	_, err := a.GetTables(ctx, "")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestEscapeRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)
	name := `we"ird table`

	res := a.ExecuteQuery(ctx, "CREATE TABLE "+a.EscapeIdentifier(name)+" (v TEXT)")
	require.False(t, res.Failed(), res.Error)
	res = a.InsertRow(ctx, name, map[string]interface{}{"v": "ok"})
	require.False(t, res.Failed(), res.Error)

	tables, err := a.GetTables(ctx, "")
	require.NoError(t, err)
	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
	}
	assert.Contains(t, names, name)
}

func TestDSN(t *testing.T) {
	a := newAdapter(adapter.ConnectionConfig{FilePath: "/data/app.db", Options: map[string]interface{}{"read_only": true}})
	dsn := a.dsn()
	assert.Contains(t, dsn, "file:/data/app.db?")
	assert.Contains(t, dsn, "mode=ro")
	assert.Contains(t, dsn, "foreign_keys%281%29")

	mem := newAdapter(adapter.ConnectionConfig{})
	assert.Equal(t, MemoryPath, mem.path())
	assert.NotContains(t, mem.dsn(), "mode=ro")
}
