package common

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// SQLConn holds the *sql.DB of a database/sql engine together with its
// connected flag and pinned transaction.
type SQLConn struct {
	Runner SQLRunner

	mu        sync.RWMutex
	db        *sql.DB
	connected int32
	tx        TxState
}

// Attach stores an opened and pinged pool.
func (c *SQLConn) Attach(db *sql.DB) {
	c.mu.Lock()
	c.db = db
	c.mu.Unlock()
	atomic.StoreInt32(&c.connected, 1)
}

// DB returns the pool, or nil when disconnected.
func (c *SQLConn) DB() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// IsConnected reports whether Attach has been called since the last Close.
func (c *SQLConn) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Close rolls back any open transaction and closes the pool. Closing a
// closed connection is a no-op.
func (c *SQLConn) Close() error {
	c.tx.Reset()
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()
	atomic.StoreInt32(&c.connected, 0)
	if db == nil {
		return nil
	}
	return db.Close()
}

// Querier returns the open transaction or the pool.
func (c *SQLConn) Querier() Querier {
	return c.tx.Querier(c.DB())
}

// Exec runs stmt on the open transaction or the pool.
func (c *SQLConn) Exec(ctx context.Context, stmt string, params []interface{}) *adapter.QueryResult {
	return c.Runner.Run(ctx, c.Querier(), stmt, params)
}

// Begin opens a pinned transaction.
func (c *SQLConn) Begin(ctx context.Context) error {
	return c.tx.Begin(ctx, c.Runner.DatabaseType, c.DB())
}

// Commit commits the pinned transaction.
func (c *SQLConn) Commit() error {
	return c.tx.Commit(c.Runner.DatabaseType)
}

// Rollback rolls the pinned transaction back.
func (c *SQLConn) Rollback() error {
	return c.tx.Rollback(c.Runner.DatabaseType)
}

// InTransaction reports whether a transaction is pinned.
func (c *SQLConn) InTransaction() bool {
	return c.tx.Active()
}
