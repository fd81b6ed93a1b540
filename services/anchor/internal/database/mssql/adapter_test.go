package mssql

import (
	"context"
	"database/sql"
	"net/url"
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

	a := newAdapter(adapter.ConnectionConfig{ID: "ms", Type: dbcapabilities.SQLServer})
	a.Attach(db)
	return a, mock
}

func TestEscapeIdentifier(t *testing.T) {
	a := newAdapter(adapter.ConnectionConfig{ID: "ms"})
	for _, name := range []string{"users", "odd]name", "with space", "[x]"} {
		quoted := a.EscapeIdentifier(name)
		back, ok := adapter.UnquoteWith(quoted, "[", "]")
		require.True(t, ok, quoted)
		assert.Equal(t, name, back)
	}
	assert.Equal(t, "[odd]]name]", a.EscapeIdentifier("odd]name"))
}

func TestGetTableDataPaginates(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(`SELECT \* FROM \[orders\] WHERE \[status\] = @p1 ORDER BY \(SELECT NULL\) OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY`).
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))

	res := a.GetTableData(context.Background(), "orders", adapter.TableDataOptions{
		Limit: 10, Offset: 20, Where: map[string]interface{}{"status": "open"},
	})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 1, res.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRowPlaceholders(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec(`UPDATE \[users\] SET \[name\] = @p1 WHERE \[id\] = @p2`).
		WithArgs("Ada", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res := a.UpdateRow(context.Background(), "users", map[string]interface{}{"name": "Ada"}, map[string]interface{}{"id": 7})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)
}

func TestGetColumns(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS c").
		WithArgs("dbo", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "LEN", "IS_NULLABLE", "COLUMN_DEFAULT", "IDENTITY", "PK", "ORDINAL_POSITION"}).
			AddRow("id", "int", nil, "NO", nil, 1, 1, 1).
			AddRow("bio", "nvarchar", -1, "YES", nil, 0, 0, 2).
			AddRow("code", "char", 3, "NO", "('XX')", 0, 0, 3))

	cols, err := a.GetColumns(context.Background(), "users", "")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].AutoIncrement)
	assert.Equal(t, "nvarchar(max)", cols[1].Type)
	assert.Equal(t, "char(3)", cols[2].Type)
	assert.Equal(t, "('XX')", *cols[2].Default)
}

func TestGetForeignKeysActions(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("FROM sys.foreign_keys fk").
		WithArgs("sales", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "col", "ref", "refcol", "del", "upd"}).
			AddRow("fk_orders_customer", "customer_id", "customers", "id", "CASCADE", "NO_ACTION"))

	fks, err := a.GetForeignKeys(context.Background(), "orders", "sales")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "CASCADE", fks[0].OnDelete)
	assert.Equal(t, "NO ACTION", fks[0].OnUpdate)
	assert.Equal(t, []string{"customer_id"}, fks[0].Columns)
}

func TestGetTriggersMergesEvents(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("FROM sys.triggers t").
		WillReturnRows(sqlmock.NewRows([]string{"t", "o", "e", "timing"}).
			AddRow("trg_audit", "orders", "INSERT", "AFTER").
			AddRow("trg_audit", "orders", "UPDATE", "AFTER").
			AddRow("trg_block", "users", "DELETE", "INSTEAD OF"))

	triggers, err := a.GetTriggers(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []adapter.Trigger{
		{Name: "trg_audit", Table: "orders", Event: "INSERT,UPDATE", Timing: "AFTER"},
		{Name: "trg_block", Table: "users", Event: "DELETE", Timing: "INSTEAD OF"},
	}, triggers)
}

func TestViewDefinitionNotFound(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("FROM sys.sql_modules").
		WithArgs("dbo", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"definition"}))

	_, err := a.GetViewDefinition(context.Background(), "missing", "")
	var notFound *adapter.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestConnectionURL(t *testing.T) {
	reject := false
	a := newAdapter(adapter.ConnectionConfig{
		Host: "sql.local", Port: 1433, Username: "sa", Password: "p@ss;word", DatabaseName: "app",
		SSL: true, SSLRejectUnauthorized: &reject,
	})
	u, err := url.Parse(a.connectionURL())
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "sql.local:1433", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss;word", pw)
	assert.Equal(t, "app", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))

	a.config.SSL = false
	a.config.Options = map[string]interface{}{"instance": "SQLEXPRESS"}
	u, err = url.Parse(a.connectionURL())
	require.NoError(t, err)
	assert.Equal(t, "sql.local", u.Host)
	assert.Equal(t, "/SQLEXPRESS", u.Path)
	assert.Equal(t, "disable", u.Query().Get("encrypt"))
}

func TestColumnTypeName(t *testing.T) {
	assert.Equal(t, "int", columnTypeName("int", sql.NullInt64{}))
	assert.Equal(t, "varchar(50)", columnTypeName("varchar", sql.NullInt64{Int64: 50, Valid: true}))
	assert.Equal(t, "varbinary(max)", columnTypeName("varbinary", sql.NullInt64{Int64: -1, Valid: true}))
	assert.Equal(t, "text", columnTypeName("text", sql.NullInt64{Int64: 2147483647, Valid: true}))
}

func TestUniqueIdentifierRendering(t *testing.T) {
	a, mock := newMockAdapter(t)
	raw := []byte{0x67, 0x45, 0x23, 0x01, 0xab, 0x89, 0xef, 0xcd, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	mock.ExpectQuery("SELECT id FROM t").WillReturnRows(
		sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn("id").OfType("UNIQUEIDENTIFIER", []byte{})).AddRow(raw))

	res := a.ExecuteQuery(context.Background(), "SELECT id FROM t")
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, "01234567-89AB-CDEF-0123-456789ABCDEF", res.Rows[0]["id"])
}

func TestDisconnected(t *testing.T) {
	a := newAdapter(adapter.ConnectionConfig{ID: "ms"})
	assert.True(t, a.ExplainQuery(context.Background(), "SELECT 1").Failed())
	_, err := a.GetSchemas(context.Background())
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.False(t, a.IsConnected())
}
