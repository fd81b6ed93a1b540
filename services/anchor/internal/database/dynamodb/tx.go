package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// enqueue buffers a row edit when a transaction is open.
func (a *Adapter) enqueue(item types.TransactWriteItem) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.inTx {
		return false
	}
	a.tx = append(a.tx, item)
	return true
}

// BeginTransaction starts buffering InsertRow, UpdateRow and DeleteRow.
// ExecuteQuery still runs immediately.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	if _, err := a.dynamoClient(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inTx {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "begin_transaction",
			fmt.Errorf("%w: transaction already open", adapter.ErrTransactionFailed))
	}
	a.inTx, a.tx = true, nil
	return nil
}

// CommitTransaction writes the buffered edits with one TransactWriteItems
// call. Either all of them apply or none do.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	items, err := a.take("commit_transaction")
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > maxTransactItems {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "commit_transaction",
			fmt.Errorf("%w: %d writes exceed the limit of %d", adapter.ErrTransactionFailed, len(items), maxTransactItems))
	}
	client, err := a.dynamoClient()
	if err != nil {
		return err
	}
	_, err = client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "commit_transaction",
			fmt.Errorf("%w: %s", adapter.ErrTransactionFailed, cancellationReasons(canceled)))
	}
	if err != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "commit_transaction",
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	return nil
}

// RollbackTransaction drops the buffered edits.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	_, err := a.take("rollback_transaction")
	return err
}

func (a *Adapter) take(operation string) ([]types.TransactWriteItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.inTx {
		return nil, adapter.NewDatabaseError(a.GetDatabaseType(), operation,
			fmt.Errorf("%w: no transaction in progress", adapter.ErrTransactionFailed))
	}
	items := a.tx
	a.tx, a.inTx = nil, false
	return items, nil
}

func cancellationReasons(e *types.TransactionCanceledException) string {
	var reasons []string
	for i, r := range e.CancellationReasons {
		if r.Code == nil || *r.Code == "None" {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("item %d: %s", i, *r.Code))
	}
	if len(reasons) == 0 {
		return e.ErrorMessage()
	}
	return fmt.Sprint(reasons)
}
