package mysql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := NewWithType(dbcapabilities.MySQL, adapter.ConnectionConfig{ID: "my", Type: dbcapabilities.MySQL, DatabaseName: "app"})
	a.Attach(db)
	return a, mock
}

func TestQuoteIdentifier(t *testing.T) {
	a := New(adapter.ConnectionConfig{ID: "my"})
	tests := []struct {
		input    string
		expected string
	}{
		{"simple_table", "`simple_table`"},
		{"table`with`backticks", "`table``with``backticks`"},
		{"table with spaces", "`table with spaces`"},
		{"", "``"},
	}

	for _, test := range tests {
		result := a.EscapeIdentifier(test.input)
		assert.Equal(t, test.expected, result)
		back, ok := adapter.UnquoteWith(result, "`", "`")
		assert.True(t, ok)
		assert.Equal(t, test.input, back)
	}
}

func TestInsertThenDelete(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	mock.ExpectExec("INSERT INTO `users` \\(`age`, `name`\\) VALUES \\(\\?, \\?\\)").
		WithArgs(36, "Ada").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM `users` WHERE `name` = \\?").
		WithArgs("Ada").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res := a.InsertRow(ctx, "users", map[string]interface{}{"name": "Ada", "age": 36})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)

	res = a.DeleteRow(ctx, "users", map[string]interface{}{"name": "Ada"})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTableData(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT \\* FROM `users` ORDER BY `id` ASC LIMIT 2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ada").AddRow(int64(2), "Grace"))

	res := a.GetTableData(ctx, "users", adapter.TableDataOptions{Limit: 2, OrderBy: []adapter.OrderBy{{Column: "id"}}})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, "Grace", res.Rows[1]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetColumnsAndPrimaryKey(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	columns := []string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "COLUMN_KEY", "EXTRA", "ORDINAL_POSITION"}
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("FROM information_schema.COLUMNS").
			WithArgs("", "users").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("id", "int unsigned", "NO", nil, "PRI", "auto_increment", 1).
				AddRow("email", "varchar(255)", "YES", "n/a", "", "", 2))
	}

	cols, err := a.GetColumns(ctx, "users", "")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].AutoIncrement)
	assert.False(t, cols[0].Nullable)
	assert.Nil(t, cols[0].Default)
	assert.Equal(t, "varchar(255)", cols[1].Type)
	require.NotNil(t, cols[1].Default)
	assert.Equal(t, "n/a", *cols[1].Default)

	keys, err := a.GetPrimaryKey(ctx, "users", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIndexes(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	mock.ExpectQuery("FROM information_schema.STATISTICS").
		WithArgs("app", "users").
		WillReturnRows(sqlmock.NewRows([]string{"INDEX_NAME", "NON_UNIQUE", "COLUMN_NAME"}).
			AddRow("PRIMARY", 0, "id").
			AddRow("idx_name", 1, "last").
			AddRow("idx_name", 1, "first"))

	indexes, err := a.GetIndexes(ctx, "users", "app")
	require.NoError(t, err)
	assert.Equal(t, []adapter.Index{
		{Name: "PRIMARY", Columns: []string{"id"}, Unique: true, Primary: true},
		{Name: "idx_name", Columns: []string{"last", "first"}},
	}, indexes)
}

func TestGetDatabasesFiltersSystem(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SHOW DATABASES").
		WillReturnRows(sqlmock.NewRows([]string{"Database"}).AddRow("app").AddRow("mysql").AddRow("sys").AddRow("shop"))

	dbs, err := a.GetDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "shop"}, dbs)
}

func TestTransactionPinsStatements(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `accounts`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	require.NoError(t, a.BeginTransaction(ctx))
	res := a.UpdateRow(ctx, "accounts", map[string]interface{}{"balance": 0}, map[string]interface{}{"id": 1})
	require.False(t, res.Failed(), res.Error)
	require.NoError(t, a.RollbackTransaction(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryErrorIsFolded(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SELECT nope").WillReturnError(assert.AnError)

	res := a.ExecuteQuery(context.Background(), "SELECT nope")
	assert.True(t, res.Failed())
	assert.Empty(t, res.Rows)
	assert.Contains(t, res.Error, "mysql")
}

func TestDisconnected(t *testing.T) {
	a := New(adapter.ConnectionConfig{ID: "my", Type: dbcapabilities.MySQL})
	res := a.ExecuteQuery(context.Background(), "SELECT 1")
	assert.True(t, res.Failed())

	_, err := a.GetTables(context.Background(), "")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestDriverConfig(t *testing.T) {
	a := NewWithType(dbcapabilities.MySQL, adapter.ConnectionConfig{
		Host: "db", Port: 3307, Username: "root", Password: "secret", DatabaseName: "app",
	})
	cfg, err := a.driverConfig()
	require.NoError(t, err)
	assert.Equal(t, "db:3307", cfg.Addr)
	assert.Equal(t, "app", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Nil(t, cfg.TLS)

	a.config.SSL = true
	cfg, err = a.driverConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.TLS)
	assert.Equal(t, "db", cfg.TLS.ServerName)
}
