package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

type executed struct {
	stmt   string
	params []interface{}
}

// fakeEngine records the statements Base synthesizes.
type fakeEngine struct {
	Base
	connected   bool
	connectErr  error
	failOn      map[string]string
	panicOn     string
	tables      []Table
	columns     map[string][]Column
	calls       []executed
	disconnects int
}

func newFakeEngine() *fakeEngine {
	f := &fakeEngine{
		failOn:  map[string]string{},
		columns: map[string][]Column{},
	}
	f.Base = NewBase(dbcapabilities.PostgreSQL, f, DollarPlaceholder)
	return f
}

func (f *fakeEngine) Config() ConnectionConfig { return ConnectionConfig{ID: "fake"} }

func (f *fakeEngine) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeEngine) Disconnect(ctx context.Context) error {
	f.connected = false
	f.disconnects++
	return nil
}

func (f *fakeEngine) IsConnected() bool { return f.connected }

func (f *fakeEngine) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *QueryResult {
	f.calls = append(f.calls, executed{stmt: stmt, params: params})
	if stmt == f.panicOn {
		panic("boom")
	}
	if msg, ok := f.failOn[stmt]; ok {
		return ErrorResult(errors.New(msg), time.Now())
	}
	return NewResult(nil, nil, time.Now())
}

func (f *fakeEngine) GetTables(ctx context.Context, database string) ([]Table, error) {
	return f.tables, nil
}

func (f *fakeEngine) GetColumns(ctx context.Context, table, schema string) ([]Column, error) {
	cols, ok := f.columns[table]
	if !ok {
		return nil, errors.New("no such table")
	}
	return cols, nil
}

func (f *fakeEngine) GetIndexes(ctx context.Context, table, schema string) ([]Index, error) {
	return []Index{}, nil
}

func (f *fakeEngine) GetVersion(ctx context.Context) (string, error) { return "fake 1.0", nil }

func (f *fakeEngine) EscapeIdentifier(name string) string { return DoubleQuote(name) }

func (f *fakeEngine) last() executed {
	return f.calls[len(f.calls)-1]
}

var _ Adapter = (*fakeEngine)(nil)

func TestBaseTableData(t *testing.T) {
	ctx := context.Background()
	f := newFakeEngine()

	res := f.GetTableData(ctx, "users", TableDataOptions{
		Limit:   10,
		Offset:  20,
		OrderBy: []OrderBy{{Column: "name", Desc: true}},
		Where:   map[string]interface{}{"active": true},
	})
	require.False(t, res.Failed())
	assert.Equal(t, `SELECT * FROM "users" WHERE "active" = $1 ORDER BY "name" DESC LIMIT 10 OFFSET 20`, f.last().stmt)
	assert.Equal(t, []interface{}{true}, f.last().params)
}

func TestBaseRowEdits(t *testing.T) {
	ctx := context.Background()
	f := newFakeEngine()

	t.Run("insert", func(t *testing.T) {
		f.InsertRow(ctx, "users", map[string]interface{}{"name": "Ada", "age": 36})
		assert.Equal(t, `INSERT INTO "users" ("age", "name") VALUES ($1, $2)`, f.last().stmt)
		assert.Equal(t, []interface{}{36, "Ada"}, f.last().params)
	})

	t.Run("update", func(t *testing.T) {
		f.UpdateRow(ctx, "users", map[string]interface{}{"name": "Grace"}, map[string]interface{}{"id": 7})
		assert.Equal(t, `UPDATE "users" SET "name" = $1 WHERE "id" = $2`, f.last().stmt)
		assert.Equal(t, []interface{}{"Grace", 7}, f.last().params)
	})

	t.Run("delete", func(t *testing.T) {
		f.DeleteRow(ctx, "users", map[string]interface{}{"id": 7})
		assert.Equal(t, `DELETE FROM "users" WHERE "id" = $1`, f.last().stmt)
	})

	t.Run("empty where is rejected before execution", func(t *testing.T) {
		before := len(f.calls)
		res := f.DeleteRow(ctx, "users", nil)
		assert.True(t, res.Failed())
		assert.Contains(t, res.Error, "where")
		assert.Empty(t, res.Rows)
		assert.Len(t, f.calls, before)
	})

	t.Run("empty insert is rejected", func(t *testing.T) {
		res := f.InsertRow(ctx, "users", map[string]interface{}{})
		assert.True(t, res.Failed())
	})
}

func TestBaseTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFakeEngine()

	require.NoError(t, f.BeginTransaction(ctx))
	require.NoError(t, f.CommitTransaction(ctx))
	assert.Equal(t, "COMMIT", f.last().stmt)

	f.failOn["ROLLBACK"] = "no transaction in progress"
	err := f.RollbackTransaction(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.Contains(t, err.Error(), "no transaction in progress")
}

func TestBaseTestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("restores disconnected state", func(t *testing.T) {
		f := newFakeEngine()
		assert.True(t, f.TestConnection(ctx))
		assert.False(t, f.IsConnected())
		assert.Equal(t, 1, f.disconnects)
		assert.Equal(t, "SELECT 1", f.last().stmt)
	})

	t.Run("keeps an existing connection", func(t *testing.T) {
		f := newFakeEngine()
		require.NoError(t, f.Connect(ctx))
		assert.True(t, f.TestConnection(ctx))
		assert.True(t, f.IsConnected())
		assert.Zero(t, f.disconnects)
	})

	t.Run("connect failure", func(t *testing.T) {
		f := newFakeEngine()
		f.connectErr = errors.New("refused")
		assert.False(t, f.TestConnection(ctx))
	})

	t.Run("probe failure", func(t *testing.T) {
		f := newFakeEngine()
		f.failOn["SELECT 1"] = "denied"
		assert.False(t, f.TestConnection(ctx))
	})

	t.Run("panic is contained", func(t *testing.T) {
		f := newFakeEngine()
		f.panicOn = "SELECT 1"
		assert.False(t, f.TestConnection(ctx))
	})

	t.Run("custom probe", func(t *testing.T) {
		f := newFakeEngine()
		f.Probe = func(ctx context.Context) error { return nil }
		assert.True(t, f.TestConnection(ctx))
		assert.Empty(t, f.calls)
	})
}

func TestBasePrimaryKeyAndSchema(t *testing.T) {
	ctx := context.Background()
	f := newFakeEngine()
	f.tables = []Table{{Name: "users", Schema: "public", Type: TableKindTable}, {Name: "broken", Schema: "public", Type: TableKindTable}}
	f.columns["users"] = []Column{
		{Name: "id", Type: "integer", PrimaryKey: true},
		{Name: "email", Type: "text"},
	}

	keys, err := f.GetPrimaryKey(ctx, "users", "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, keys)

	schema, err := f.GetSchema(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, dbcapabilities.PostgreSQL, schema.DatabaseType)
	require.Len(t, schema.Tables, 2)
	assert.Len(t, schema.Tables[0].Columns, 2)
	assert.Empty(t, schema.Tables[1].Columns)

	meta, err := f.GetSchemaMetadata(ctx, "app")
	require.NoError(t, err)
	require.Len(t, meta.Tables, 2)
	assert.Equal(t, "users", meta.Tables[0].Name)
	assert.Equal(t, []ColumnMetadata{{Name: "id", Type: "integer"}, {Name: "email", Type: "text"}}, meta.Tables[0].Columns)
	assert.Empty(t, meta.Tables[1].Columns)
}
