package database

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/pkg/logger"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/sqlite"
)

func TestConnectionMessages(t *testing.T) {
	dl := NewDatabaseLogger(nil)
	tests := []struct {
		name string
		ctx  DatabaseLogContext
		want string
	}{
		{"full", DatabaseLogContext{DatabaseType: "postgres", ConnectionID: "main", Host: "db", Port: 5432}, "[client:postgres] Connected connection_id=main host=db:5432"},
		{"no port", DatabaseLogContext{DatabaseType: "sqlite", ConnectionID: "lite", Host: "/tmp/a.db"}, "[client:sqlite] Connected connection_id=lite host=/tmp/a.db"},
		{"bare", DatabaseLogContext{DatabaseType: "redis"}, "[client:redis] Connected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dl.formatConnectionMessage("Connected", tt.ctx))
		})
	}

	op := DatabaseLogContext{DatabaseType: "mysql", ConnectionID: "m", Operation: "get_tables"}
	assert.Equal(t, "[client:mysql] Operation failed operation=get_tables connection_id=m", dl.formatOperationMessage("Operation failed", op))
}

func TestContextForUsesFilePath(t *testing.T) {
	a := sqlite.New(adapter.ConnectionConfig{ID: "lite", Type: dbcapabilities.SQLite, FilePath: "/tmp/a.db"})
	ctx := contextFor(a)
	assert.Equal(t, "sqlite", ctx.DatabaseType)
	assert.Equal(t, "/tmp/a.db", ctx.Host)
	assert.Zero(t, ctx.Port)
}

func TestNilLoggerIsSilent(t *testing.T) {
	dl := NewDatabaseLogger(nil)
	assert.NotPanics(t, func() {
		dl.LogConnectionFailure(DatabaseLogContext{}, errors.New("x"))
		dl.LogHealthCheck(DatabaseLogContext{}, true)
	})

	var buf bytes.Buffer
	l := logger.New("anchor", "test")
	l.SetOutput(&buf)
	NewDatabaseLogger(l).LogOperationFailure(DatabaseLogContext{DatabaseType: "redis", Operation: "scan"}, errors.New("timeout"))
	assert.Contains(t, buf.String(), "operation=scan: timeout")
}
