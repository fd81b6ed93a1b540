// Package cockroach adapts CockroachDB through the PostgreSQL wire protocol.
// It reuses the postgres adapter and overrides what CockroachDB does
// differently: catalog schemas, EXPLAIN output, the database listing and
// the lack of triggers.
package cockroach

import (
	"context"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/postgres"
)

func init() {
	adapter.Register(dbcapabilities.CockroachDB, New)
}

// Adapter is a postgres adapter tuned for CockroachDB.
type Adapter struct {
	*postgres.Adapter
}

// New creates a CockroachDB adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return &Adapter{
		Adapter: postgres.NewWithOptions(dbcapabilities.CockroachDB, config, postgres.Options{
			ExcludedSchemas: []string{"crdb_internal", "pg_extension"},
			DefaultDatabase: "defaultdb",
		}),
	}
}

// ExplainQuery returns the plan tree; CockroachDB has no JSON format.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	return a.ExecuteQuery(ctx, "EXPLAIN "+stmt)
}

// GetDatabases lists user databases.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	res := a.ExecuteQuery(ctx,
		"SELECT database_name FROM [SHOW DATABASES] WHERE database_name <> 'system' ORDER BY 1")
	if res.Failed() {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", res.Err())
	}
	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if name, ok := row["database_name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// GetTriggers reports that triggers are not available.
func (a *Adapter) GetTriggers(ctx context.Context, database string) ([]adapter.Trigger, error) {
	return nil, a.Unsupported("triggers", "CockroachDB has no trigger catalog")
}
