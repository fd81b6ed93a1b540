package firestore

import (
	"context"
	"sort"

	"google.golang.org/api/iterator"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// GetTables lists the top-level collections. database is ignored, a client
// is bound to one database.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	client, err := a.firestoreClient()
	if err != nil {
		return nil, err
	}

	var tables []adapter.Table
	it := client.Collections(ctx)
	for {
		coll, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
		}
		tables = append(tables, adapter.Table{Name: coll.ID, Type: adapter.TableKindCollection})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	if tables == nil {
		tables = []adapter.Table{}
	}
	return tables, nil
}

// GetColumns infers fields from a sample of documents, _id first.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	coll, err := a.collection(table)
	if err != nil {
		return nil, err
	}
	sampler := adapter.NewFieldSampler(a.config.SampleSize, IDField, classify)

	snaps, err := coll.Limit(sampler.SampleSize()).Documents(ctx).GetAll()
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	for _, s := range snaps {
		sampler.Observe(snapshotDoc(s))
	}
	return sampler.Columns(), nil
}

// GetIndexes reports the implicit document ID index. Composite indexes live
// in the admin API, which a data client cannot read.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	if _, err := a.collection(table); err != nil {
		return nil, err
	}
	return []adapter.Index{{Name: "__name__", Columns: []string{IDField}, Unique: true, Primary: true}}, nil
}

// GetDatabases returns the database the client is bound to.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	if _, err := a.firestoreClient(); err != nil {
		return nil, err
	}
	return []string{a.databaseID()}, nil
}
