package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// ExecuteQuery runs a parameterized statement. Statements that return a
// row description produce rows; everything else reports the affected row
// count from the command tag.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	q := a.querier()
	if q == nil {
		return adapter.ErrorResult(adapter.NotConnected(a.GetDatabaseType()), started)
	}

	rows, err := q.Query(ctx, stmt, params...)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "query", err), started)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]adapter.Column, len(fields))
	for i, fd := range fields {
		columns[i] = adapter.Column{
			Name:            fd.Name,
			Type:            typeNameForOID(fd.DataTypeOID),
			Nullable:        true,
			OrdinalPosition: i + 1,
		}
	}

	data := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "query", err), started)
		}
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			row[fd.Name] = normalizeValue(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "query", err), started)
	}
	rows.Close()

	if len(fields) == 0 {
		return adapter.MutationResult(rows.CommandTag().RowsAffected(), started)
	}
	return adapter.NewResult(columns, data, started)
}

// BeginTransaction pins a pgx transaction; subsequent statements run on it
// until commit or rollback.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool == nil {
		return adapter.NotConnected(a.GetDatabaseType())
	}
	if a.tx != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "begin_transaction",
			fmt.Errorf("%w: transaction already in progress", adapter.ErrTransactionFailed))
	}
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "begin_transaction",
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	a.tx = tx
	return nil
}

// CommitTransaction commits the pinned transaction.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	tx, err := a.takeTx("commit_transaction")
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "commit_transaction",
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	return nil
}

// RollbackTransaction rolls the pinned transaction back.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	tx, err := a.takeTx("rollback_transaction")
	if err != nil {
		return err
	}
	if err := tx.Rollback(ctx); err != nil {
		return adapter.NewDatabaseError(a.GetDatabaseType(), "rollback_transaction",
			fmt.Errorf("%w: %v", adapter.ErrTransactionFailed, err))
	}
	return nil
}

func (a *Adapter) takeTx(op string) (txFinisher, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx == nil {
		return nil, adapter.NewDatabaseError(a.GetDatabaseType(), op,
			fmt.Errorf("%w: no transaction in progress", adapter.ErrTransactionFailed))
	}
	tx := a.tx
	a.tx = nil
	return tx, nil
}

type txFinisher interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ExplainQuery returns the plan of stmt as JSON rows.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	return a.ExecuteQuery(ctx, "EXPLAIN (FORMAT JSON) "+stmt)
}
