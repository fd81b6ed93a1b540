package common

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func TestRunnerQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name FROM users").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("Ada")).
			AddRow(int64(2), nil))

	r := SQLRunner{DatabaseType: dbcapabilities.MySQL}
	res := r.Run(context.Background(), db, "SELECT id, name FROM users WHERE id > ?", []interface{}{1})

	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, []string{"id", "name"}, res.ColumnNames())
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, "Ada", res.Rows[0]["name"])
	assert.Nil(t, res.Rows[1]["name"])
	assert.Nil(t, res.AffectedRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE users SET").
		WithArgs("x", 3).
		WillReturnResult(sqlmock.NewResult(0, 2))

	r := SQLRunner{DatabaseType: dbcapabilities.MySQL}
	res := r.Run(context.Background(), db, "UPDATE users SET name = ? WHERE id = ?", []interface{}{"x", 3})

	require.False(t, res.Failed(), res.Error)
	require.NotNil(t, res.AffectedRows)
	assert.Equal(t, int64(2), *res.AffectedRows)
	assert.Empty(t, res.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT nope").WillReturnError(errors.New("unknown column"))

	r := SQLRunner{DatabaseType: dbcapabilities.SQLServer}
	res := r.Run(context.Background(), db, "SELECT nope", nil)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "unknown column")
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Columns)

	res = r.Run(context.Background(), nil, "SELECT 1", nil)
	assert.True(t, res.Failed())
	assert.ErrorIs(t, adapter.NotConnected(dbcapabilities.SQLServer), adapter.ErrNotConnected)
	assert.Contains(t, res.Error, "not connected")
}

func TestRunnerHooks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT flag").
		WillReturnRows(sqlmock.NewRows([]string{"flag"}).AddRow(int64(1)))

	r := SQLRunner{
		DatabaseType: dbcapabilities.SQLite,
		Value: func(_ *sql.ColumnType, v interface{}) interface{} {
			if n, ok := v.(int64); ok {
				return n == 1
			}
			return v
		},
	}
	res := r.Run(context.Background(), db, "SELECT flag FROM t", nil)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, true, res.Rows[0]["flag"])
}

func TestQueryStrings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a").AddRow(nil).AddRow("b"))

	names, err := QueryStrings(context.Background(), db, "SELECT name FROM t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "b"}, names)
}
