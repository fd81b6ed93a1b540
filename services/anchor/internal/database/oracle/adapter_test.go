//go:build cgo

package oracle

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/godror/godror"
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

	a := newAdapter(adapter.ConnectionConfig{ID: "ora", Type: dbcapabilities.Oracle})
	a.Attach(db)
	return a, mock
}

func TestEscapeIdentifier(t *testing.T) {
	a := newAdapter(adapter.ConnectionConfig{ID: "ora"})
	assert.Equal(t, `"Mixed""Case"`, a.EscapeIdentifier(`Mixed"Case`))
	back, ok := adapter.UnquoteWith(a.EscapeIdentifier(`Mixed"Case`), `"`, `"`)
	assert.True(t, ok)
	assert.Equal(t, `Mixed"Case`, back)
}

func TestTrimStatement(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "SELECT 1 FROM DUAL;", "SELECT 1 FROM DUAL"},
		{"spaces", "  DELETE FROM t ;  \n", "DELETE FROM t"},
		{"plsql", "BEGIN NULL; END;", "BEGIN NULL; END;"},
		{"declare", "DECLARE x NUMBER; BEGIN x := 1; END;", "DECLARE x NUMBER; BEGIN x := 1; END;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimStatement(tt.in))
		})
	}
}

func TestGetTableDataFetchFirst(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(`SELECT \* FROM "EMP" WHERE "DEPTNO" = :p1 OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"EMPNO"}).AddRow(godror.Number("7839")))

	res := a.GetTableData(context.Background(), "EMP", adapter.TableDataOptions{
		Limit: 5, Where: map[string]interface{}{"DEPTNO": 10},
	})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(7839), res.Rows[0]["EMPNO"])
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, int64(42), normalizeValue(nil, godror.Number("42")))
	assert.Equal(t, "3.14159", normalizeValue(nil, godror.Number("3.14159")))
	assert.Equal(t, "text", normalizeValue(nil, "text"))
}

func TestColumnTypeName(t *testing.T) {
	valid := func(n int64) sql.NullInt64 { return sql.NullInt64{Int64: n, Valid: true} }
	assert.Equal(t, "VARCHAR2(30)", columnTypeName("VARCHAR2", valid(30), sql.NullInt64{}, sql.NullInt64{}))
	assert.Equal(t, "NUMBER(10,2)", columnTypeName("NUMBER", valid(22), valid(10), valid(2)))
	assert.Equal(t, "NUMBER(5)", columnTypeName("NUMBER", valid(22), valid(5), valid(0)))
	assert.Equal(t, "NUMBER", columnTypeName("NUMBER", valid(22), sql.NullInt64{}, sql.NullInt64{}))
	assert.Equal(t, "DATE", columnTypeName("DATE", valid(7), sql.NullInt64{}, sql.NullInt64{}))
}

func TestGetColumns(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("FROM ALL_TAB_COLUMNS c").
		WithArgs("", "EMP").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "CHAR_LENGTH", "DATA_PRECISION", "DATA_SCALE", "NULLABLE", "DATA_DEFAULT", "IDENTITY_COLUMN", "PK", "COLUMN_ID"}).
			AddRow("EMPNO", "NUMBER", 0, 4, 0, "N", nil, "YES", 1, 1).
			AddRow("ENAME", "VARCHAR2", 10, nil, nil, "Y", "'NONE'\n", "NO", 0, 2))

	cols, err := a.GetColumns(context.Background(), "EMP", "")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "NUMBER(4)", cols[0].Type)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].AutoIncrement)
	assert.Equal(t, "VARCHAR2(10)", cols[1].Type)
	assert.Equal(t, "'NONE'", *cols[1].Default)
}

func TestGetTriggersTiming(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("FROM ALL_TRIGGERS").
		WillReturnRows(sqlmock.NewRows([]string{"TRIGGER_NAME", "TABLE_NAME", "TRIGGERING_EVENT", "TRIGGER_TYPE"}).
			AddRow("EMP_BI", "EMP", "INSERT", "BEFORE EACH ROW").
			AddRow("EMP_V_IO", "EMP_V", "UPDATE", "INSTEAD OF"))

	triggers, err := a.GetTriggers(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "BEFORE", triggers[0].Timing)
	assert.Equal(t, "INSTEAD OF", triggers[1].Timing)
}

func TestGetRolesFallsBack(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("FROM DBA_ROLES").WillReturnError(assert.AnError)
	mock.ExpectQuery("FROM USER_ROLE_PRIVS").
		WillReturnRows(sqlmock.NewRows([]string{"GRANTED_ROLE"}).AddRow("CONNECT").AddRow("RESOURCE"))

	roles, err := a.GetRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []adapter.Role{{Name: "CONNECT"}, {Name: "RESOURCE"}}, roles)
}

func TestConnectString(t *testing.T) {
	a := newAdapter(adapter.ConnectionConfig{Host: "ora", Port: 1521, DatabaseName: "ORCLPDB1"})
	assert.Equal(t, "ora:1521/ORCLPDB1", a.connectString())

	a.config.SSL = true
	a.config.Port = 2484
	a.config.SSLRootCert = "/wallet"
	assert.Equal(t, "tcps://ora:2484/ORCLPDB1?wallet_location=%2Fwallet", a.connectString())
}

func TestProbeUsesDual(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(`SELECT 1 FROM DUAL`).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(godror.Number("1")))
	assert.True(t, a.TestConnection(context.Background()))
}
