package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// GetTableData finds documents matching the equality filter.
func (a *Adapter) GetTableData(ctx context.Context, table string, opts adapter.TableDataOptions) *adapter.QueryResult {
	started := time.Now()
	coll, err := a.collection(table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if len(opts.OrderBy) > 0 {
		findOpts.SetSort(sortDocument(opts.OrderBy))
	}

	cursor, err := coll.Find(ctx, toDocument(opts.Where), findOpts)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
	}
	res, err := cursorResult(ctx, cursor, started)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
	}
	return res
}

func sortDocument(order []adapter.OrderBy) bson.D {
	doc := make(bson.D, 0, len(order))
	for _, o := range order {
		dir := 1
		if o.Desc {
			dir = -1
		}
		doc = append(doc, bson.E{Key: o.Column, Value: dir})
	}
	return doc
}

// InsertRow inserts one document and reports its _id.
func (a *Adapter) InsertRow(ctx context.Context, table string, data map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	coll, err := a.collection(table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	if len(data) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "insert_row", "no fields to insert"), started)
	}

	out, err := coll.InsertOne(ctx, toDocument(data))
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "insert_row", err), started)
	}
	return insertedResult([]interface{}{out.InsertedID}, started)
}

// UpdateRow sets fields on the first document matching where. AffectedRows
// is the matched count, so an update that changes nothing still reports 1.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	coll, err := a.collection(table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	if len(where) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "update_row", "where is required"), started)
	}
	if len(data) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "update_row", "no fields to update"), started)
	}

	update := bson.D{{Key: "$set", Value: toDocument(data)}}
	out, err := coll.UpdateOne(ctx, toDocument(where), update)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "update_row", err), started)
	}
	return adapter.MutationResult(out.MatchedCount, started)
}

// DeleteRow deletes the first document matching where.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	coll, err := a.collection(table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	if len(where) == 0 {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "delete_row", "where is required"), started)
	}

	out, err := coll.DeleteOne(ctx, toDocument(where))
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "delete_row", err), started)
	}
	return adapter.MutationResult(out.DeletedCount, started)
}
