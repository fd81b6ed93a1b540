package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSQLiteRoundTrip(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "cli.db")

	_, err := run(t, "--url", url, "query", "CREATE TABLE pets (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)")
	require.NoError(t, err)

	out, err := run(t, "--url", url, "insert", "pets", "--set", "id=1", "--set", "name=Rex", "--set", "age=3")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows affected")
	_, err = run(t, "--url", url, "insert", "pets", "--set", "id=2", "--set", "name='007'", "--set", "age=null")
	require.NoError(t, err)

	out, err = run(t, "--url", url, "data", "pets", "--order", "id:desc")
	require.NoError(t, err)
	assert.Contains(t, out, "Rex")
	assert.Contains(t, out, "(2 rows)")

	out, err = run(t, "--url", url, "--json", "data", "pets", "--where", "id=2")
	require.NoError(t, err)
	var res adapter.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "007", res.Rows[0]["name"])
	assert.Nil(t, res.Rows[0]["age"])

	out, err = run(t, "--url", url, "update", "pets", "--set", "age=4", "--where", "name=Rex")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows affected")

	out, err = run(t, "--url", url, "delete", "pets", "--where", "id=2")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows affected")

	out, err = run(t, "--url", url, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "pets")

	out, err = run(t, "--url", url, "columns", "pets")
	require.NoError(t, err)
	assert.Contains(t, out, "name")

	out, err = run(t, "--url", url, "metadata")
	require.NoError(t, err)
	assert.Contains(t, out, "age")

	out, err = run(t, "--url", url, "test")
	require.NoError(t, err)
	assert.Contains(t, out, "OK sqlite")
}

func TestQueryInline(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "inline.db")
	_, err := run(t, "--url", url, "query", "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)

	out, err := run(t, "--url", url, "query", "--inline", "INSERT INTO notes (id, body) VALUES (?, ?) -- don't bind", "1", "it's")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows affected")

	out, err = run(t, "--url", url, "--json", "query", "--inline", "SELECT body FROM notes WHERE id = ?", "1")
	require.NoError(t, err)
	var res adapter.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "it's", res.Rows[0]["body"])

	_, err = run(t, "--url", url, "query", "--inline", "SELECT ?, ?", "1")
	assert.ErrorIs(t, err, adapter.ErrInvalidQuery)
}

func TestQueryFailureIsCommandError(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "bad.db")
	_, err := run(t, "--url", url, "query", "SELECT * FROM nowhere")
	assert.Error(t, err)
}

func TestEnginesListsLinkedEngines(t *testing.T) {
	out, err := run(t, "engines")
	require.NoError(t, err)
	assert.Contains(t, out, "postgres")
	assert.Contains(t, out, "elasticsearch")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, true, parseValue("true"))
	assert.Nil(t, parseValue("null"))
	assert.Equal(t, "42", parseValue("'42'"))
	assert.Equal(t, "plain", parseValue("plain"))
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": int64(1), "b": "x=y"}, got)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	assert.Equal(t, []adapter.OrderBy{{Column: "a"}, {Column: "b", Desc: true}}, parseOrder([]string{"a", "b:DESC"}))
}

func TestResultColumnsFallsBackToRowKeys(t *testing.T) {
	res := &adapter.QueryResult{Rows: []map[string]interface{}{{"b": 1}, {"a": 2}}}
	assert.Equal(t, []string{"a", "b"}, resultColumns(res))
}

func TestHealthUsesConnectionFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "anchor.yaml")
	content := "connections:\n" +
		"  - id: scratch\n    type: sqlite\n    file_path: " + filepath.Join(dir, "ok.db") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))

	out, err := run(t, "--config", cfg, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "scratch")
	assert.Contains(t, out, "overall: healthy")

	out, err = run(t, "--config", cfg, "-c", "scratch", "test")
	require.NoError(t, err)
	assert.Contains(t, out, "OK sqlite")
}

func TestInferredNote(t *testing.T) {
	mongo, err := adapter.New(adapter.ConnectionConfig{ID: "docs", Type: dbcapabilities.MongoDB, Host: "localhost", SampleSize: 50})
	require.NoError(t, err)
	assert.Equal(t, "columns inferred from up to 50 sampled records", inferredNote(mongo))

	lite, err := adapter.New(adapter.ConnectionConfig{ID: "lite", Type: dbcapabilities.SQLite, FilePath: ":memory:"})
	require.NoError(t, err)
	assert.Empty(t, inferredNote(lite))
}
