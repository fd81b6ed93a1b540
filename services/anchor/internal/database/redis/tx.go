package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// writer returns the pinned transaction connection, or the client.
func (a *Adapter) writer() (processor, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	if a.tx != nil {
		return a.tx, nil
	}
	return a.client, nil
}

func (a *Adapter) inTransaction() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tx != nil
}

// BeginTransaction pins a connection and sends MULTI. Commands run through
// ExecuteQuery and the row edits are queued until CommitTransaction.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	client, err := a.redisClient()
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "begin_transaction",
			fmt.Errorf("%w: transaction already open", adapter.ErrTransactionFailed))
	}

	conn := client.Conn()
	if err := do(ctx, conn, "MULTI").Err(); err != nil {
		_ = conn.Close()
		return adapter.NewDatabaseError(a.GetDatabaseType(), "begin_transaction",
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	a.tx = conn
	return nil
}

// CommitTransaction sends EXEC. A nil reply means a watched key changed and
// nothing was applied.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.finish(ctx, "EXEC", "commit_transaction")
}

// RollbackTransaction sends DISCARD.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.finish(ctx, "DISCARD", "rollback_transaction")
}

func (a *Adapter) finish(ctx context.Context, command, operation string) error {
	a.mu.Lock()
	conn := a.tx
	a.tx = nil
	a.mu.Unlock()
	if conn == nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), operation,
			fmt.Errorf("%w: no transaction in progress", adapter.ErrTransactionFailed))
	}
	defer conn.Close()

	reply, err := do(ctx, conn, command).Result()
	if command == "EXEC" && (errors.Is(err, redis.Nil) || (err == nil && reply == nil)) {
		err = errors.New("transaction aborted by a watched key")
	}
	if err != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), operation,
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	return nil
}
