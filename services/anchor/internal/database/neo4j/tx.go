package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// BeginTransaction opens a write session and an explicit transaction. Every
// statement runs inside it until CommitTransaction or RollbackTransaction.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	driver, err := a.neo4jDriver()
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "begin_transaction",
			fmt.Errorf("%w: transaction already open", adapter.ErrTransactionFailed))
	}
	session := driver.NewSession(ctx, a.sessionConfig(neo4j.AccessModeWrite))
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return adapter.NewDatabaseError(a.GetDatabaseType(), "begin_transaction",
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	a.session, a.tx = session, tx
	return nil
}

// CommitTransaction commits and closes the session.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.finish(ctx, "commit_transaction", func(tx neo4j.ExplicitTransaction) error { return tx.Commit(ctx) })
}

// RollbackTransaction rolls back and closes the session.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.finish(ctx, "rollback_transaction", func(tx neo4j.ExplicitTransaction) error { return tx.Rollback(ctx) })
}

func (a *Adapter) finish(ctx context.Context, operation string, end func(neo4j.ExplicitTransaction) error) error {
	a.mu.Lock()
	session, tx := a.session, a.tx
	a.session, a.tx = nil, nil
	a.mu.Unlock()
	if tx == nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), operation,
			fmt.Errorf("%w: no transaction in progress", adapter.ErrTransactionFailed))
	}
	defer session.Close(ctx)
	if err := end(tx); err != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), operation,
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	return nil
}
