package common

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// TxState pins one *sql.Tx so that statements issued between Begin and
// Commit run on the same connection.
type TxState struct {
	mu sync.Mutex
	tx *sql.Tx
}

// Querier returns the open transaction, or db when none is open.
func (s *TxState) Querier(db *sql.DB) Querier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	if db == nil {
		return nil
	}
	return db
}

// Active reports whether a transaction is open.
func (s *TxState) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Begin opens a transaction on db. The transaction outlives ctx: Begin,
// Commit and Rollback arrive as separate calls, usually with separate
// request contexts, and database/sql would roll back once ctx is done.
func (s *TxState) Begin(ctx context.Context, dbType dbcapabilities.DatabaseID, db *sql.DB) error {
	if db == nil {
		return adapter.NotConnected(dbType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return adapter.NewDatabaseError(dbType, "begin_transaction",
			fmt.Errorf("%w: transaction already in progress", adapter.ErrTransactionFailed))
	}
	tx, err := db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return adapter.NewDatabaseError(dbType, "begin_transaction", fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction.
func (s *TxState) Commit(dbType dbcapabilities.DatabaseID) error {
	return s.finish(dbType, "commit_transaction", (*sql.Tx).Commit)
}

// Rollback rolls the open transaction back.
func (s *TxState) Rollback(dbType dbcapabilities.DatabaseID) error {
	return s.finish(dbType, "rollback_transaction", (*sql.Tx).Rollback)
}

// Reset drops the transaction without finishing it. Used on disconnect.
func (s *TxState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
}

func (s *TxState) finish(dbType dbcapabilities.DatabaseID, op string, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return adapter.NewDatabaseError(dbType, op, fmt.Errorf("%w: no transaction in progress", adapter.ErrTransactionFailed))
	}
	tx := s.tx
	s.tx = nil
	if err := fn(tx); err != nil {
		return adapter.NewDatabaseError(dbType, op, fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	return nil
}
