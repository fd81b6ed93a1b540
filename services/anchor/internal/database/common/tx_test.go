package common

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func TestSQLConnTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	conn := &SQLConn{Runner: SQLRunner{DatabaseType: dbcapabilities.MySQL}}
	assert.False(t, conn.IsConnected())
	conn.Attach(db)
	assert.True(t, conn.IsConnected())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, conn.Begin(ctx))
	assert.True(t, conn.InTransaction())

	err = conn.Begin(ctx)
	assert.ErrorIs(t, err, adapter.ErrTransactionFailed)

	res := conn.Exec(ctx, "INSERT INTO t (a) VALUES (?)", []interface{}{1})
	require.False(t, res.Failed(), res.Error)

	require.NoError(t, conn.Commit())
	assert.False(t, conn.InTransaction())

	err = conn.Rollback()
	assert.ErrorIs(t, err, adapter.ErrTransactionFailed)
	assert.Contains(t, err.Error(), "no transaction in progress")

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsConnected())
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnCloseRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	conn := &SQLConn{Runner: SQLRunner{DatabaseType: dbcapabilities.SQLite}}
	conn.Attach(db)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectClose()

	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnDisconnected(t *testing.T) {
	conn := &SQLConn{Runner: SQLRunner{DatabaseType: dbcapabilities.Oracle}}
	res := conn.Exec(context.Background(), "SELECT 1 FROM DUAL", nil)
	assert.True(t, res.Failed())

	err := conn.Begin(context.Background())
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestSQLConnTransactionSurvivesCanceledContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	conn := &SQLConn{Runner: SQLRunner{DatabaseType: dbcapabilities.MySQL}}
	conn.Attach(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, conn.Begin(reqCtx))
	cancel()
	time.Sleep(20 * time.Millisecond)

	res := conn.Exec(context.Background(), "INSERT INTO t (a) VALUES (?)", []interface{}{1})
	require.False(t, res.Failed(), res.Error)
	require.NoError(t, conn.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
