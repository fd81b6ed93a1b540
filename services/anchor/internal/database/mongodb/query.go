package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Operations accepted in the command envelope.
const (
	opFind       = "find"
	opFindOne    = "findOne"
	opAggregate  = "aggregate"
	opCount      = "count"
	opDistinct   = "distinct"
	opInsertOne  = "insertOne"
	opInsertMany = "insertMany"
	opUpdateOne  = "updateOne"
	opUpdateMany = "updateMany"
	opReplaceOne = "replaceOne"
	opDeleteOne  = "deleteOne"
	opDeleteMany = "deleteMany"
	opCommand    = "runCommand"
)

// envelope is the JSON form of a query. Filter, projection, sort, update,
// document and command may use Extended JSON ({"$oid": ...}, {"$date": ...}).
type envelope struct {
	Collection string          `json:"collection"`
	Operation  string          `json:"operation"`
	Filter     json.RawMessage `json:"filter,omitempty"`
	Projection json.RawMessage `json:"projection,omitempty"`
	Sort       json.RawMessage `json:"sort,omitempty"`
	Limit      int64           `json:"limit,omitempty"`
	Skip       int64           `json:"skip,omitempty"`
	Pipeline   json.RawMessage `json:"pipeline,omitempty"`
	Document   json.RawMessage `json:"document,omitempty"`
	Documents  json.RawMessage `json:"documents,omitempty"`
	Update     json.RawMessage `json:"update,omitempty"`
	Field      string          `json:"field,omitempty"`
	Command    json.RawMessage `json:"command,omitempty"`
}

// command is a parsed envelope.
type command struct {
	collection string
	operation  string
	filter     bson.D
	projection bson.D
	sort       bson.D
	limit      int64
	skip       int64
	pipeline   []bson.D
	document   bson.D
	documents  []bson.D
	update     interface{}
	field      string
	command    bson.D
}

func invalidQuery(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", adapter.ErrInvalidQuery, fmt.Sprintf(format, args...))
}

func isEmptyRaw(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func extDocument(name string, raw json.RawMessage) (bson.D, error) {
	if isEmptyRaw(raw) {
		return bson.D{}, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, invalidQuery("%s: %v", name, err)
	}
	return doc, nil
}

// extList decodes a JSON array of documents. Extended JSON only accepts a
// document at the top level, so the array is wrapped first.
func extList(name string, raw json.RawMessage) ([]bson.D, error) {
	if isEmptyRaw(raw) {
		return nil, nil
	}
	var wrapped struct {
		V []bson.D `bson:"v"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+string(raw)+`}`), false, &wrapped); err != nil {
		return nil, invalidQuery("%s: %v", name, err)
	}
	return wrapped.V, nil
}

// extValue decodes a document or an array (update pipelines).
func extValue(name string, raw json.RawMessage) (interface{}, error) {
	if isEmptyRaw(raw) {
		return nil, nil
	}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		list, err := extList(name, raw)
		if err != nil {
			return nil, err
		}
		return list, nil
	}
	return extDocument(name, raw)
}

// parseCommand validates and decodes a command envelope.
func parseCommand(stmt string) (*command, error) {
	var env envelope
	dec := json.NewDecoder(strings.NewReader(stmt))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, invalidQuery("expected a JSON command envelope: %v", err)
	}
	if env.Operation == "" {
		return nil, invalidQuery("operation is required")
	}
	if env.Operation != opCommand && env.Collection == "" {
		return nil, invalidQuery("collection is required for %s", env.Operation)
	}
	if env.Limit < 0 || env.Skip < 0 {
		return nil, invalidQuery("limit and skip must not be negative")
	}

	cmd := &command{
		collection: env.Collection,
		operation:  env.Operation,
		limit:      env.Limit,
		skip:       env.Skip,
		field:      env.Field,
	}
	var err error
	if cmd.filter, err = extDocument("filter", env.Filter); err != nil {
		return nil, err
	}
	if cmd.projection, err = extDocument("projection", env.Projection); err != nil {
		return nil, err
	}
	if cmd.sort, err = extDocument("sort", env.Sort); err != nil {
		return nil, err
	}
	if cmd.pipeline, err = extList("pipeline", env.Pipeline); err != nil {
		return nil, err
	}
	if cmd.document, err = extDocument("document", env.Document); err != nil {
		return nil, err
	}
	if cmd.documents, err = extList("documents", env.Documents); err != nil {
		return nil, err
	}
	if cmd.update, err = extValue("update", env.Update); err != nil {
		return nil, err
	}
	if cmd.command, err = extDocument("command", env.Command); err != nil {
		return nil, err
	}

	switch cmd.operation {
	case opFind, opFindOne, opAggregate, opCount, opDeleteOne, opDeleteMany:
	case opDistinct:
		if cmd.field == "" {
			return nil, invalidQuery("distinct requires field")
		}
	case opInsertOne:
		if len(env.Document) == 0 {
			return nil, invalidQuery("insertOne requires document")
		}
	case opInsertMany:
		if len(cmd.documents) == 0 {
			return nil, invalidQuery("insertMany requires documents")
		}
	case opUpdateOne, opUpdateMany:
		if cmd.update == nil {
			return nil, invalidQuery("%s requires update", cmd.operation)
		}
	case opReplaceOne:
		if len(env.Document) == 0 {
			return nil, invalidQuery("replaceOne requires document")
		}
	case opCommand:
		if len(cmd.command) == 0 {
			return nil, invalidQuery("runCommand requires command")
		}
	default:
		return nil, invalidQuery("unsupported operation %q", cmd.operation)
	}
	return cmd, nil
}

// ExecuteQuery runs a JSON command envelope, for example
//
//	{"collection":"users","operation":"find","filter":{"age":{"$gt":30}},"limit":10}
//
// Positional params are not used.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	db, err := a.database("")
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	cmd, err := parseCommand(stmt)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute_query", err), started)
	}
	res, err := a.run(ctx, db, cmd, started)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), cmd.operation, err), started)
	}
	return res
}

func (a *Adapter) run(ctx context.Context, db *mongo.Database, cmd *command, started time.Time) (*adapter.QueryResult, error) {
	if cmd.operation == opCommand {
		var doc bson.M
		if err := db.RunCommand(ctx, cmd.command).Decode(&doc); err != nil {
			return nil, err
		}
		return documentsResult([]bson.M{doc}, started), nil
	}

	coll := db.Collection(cmd.collection)
	switch cmd.operation {
	case opFind:
		opts := options.Find()
		if len(cmd.projection) > 0 {
			opts.SetProjection(cmd.projection)
		}
		if len(cmd.sort) > 0 {
			opts.SetSort(cmd.sort)
		}
		if cmd.limit > 0 {
			opts.SetLimit(cmd.limit)
		}
		if cmd.skip > 0 {
			opts.SetSkip(cmd.skip)
		}
		cursor, err := coll.Find(ctx, cmd.filter, opts)
		if err != nil {
			return nil, err
		}
		return cursorResult(ctx, cursor, started)

	case opFindOne:
		opts := options.FindOne()
		if len(cmd.projection) > 0 {
			opts.SetProjection(cmd.projection)
		}
		if len(cmd.sort) > 0 {
			opts.SetSort(cmd.sort)
		}
		if cmd.skip > 0 {
			opts.SetSkip(cmd.skip)
		}
		var doc bson.M
		err := coll.FindOne(ctx, cmd.filter, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return documentsResult(nil, started), nil
		}
		if err != nil {
			return nil, err
		}
		return documentsResult([]bson.M{doc}, started), nil

	case opAggregate:
		pipeline := cmd.pipeline
		if pipeline == nil {
			pipeline = []bson.D{}
		}
		cursor, err := coll.Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		return cursorResult(ctx, cursor, started)

	case opCount:
		n, err := coll.CountDocuments(ctx, cmd.filter)
		if err != nil {
			return nil, err
		}
		return adapter.NewResult(
			[]adapter.Column{{Name: "count", Type: adapter.InferredNumber}},
			[]map[string]interface{}{{"count": n}},
			started,
		), nil

	case opDistinct:
		var values []interface{}
		if err := coll.Distinct(ctx, cmd.field, cmd.filter).Decode(&values); err != nil {
			return nil, err
		}
		rows := make([]map[string]interface{}, len(values))
		for i, v := range values {
			rows[i] = map[string]interface{}{cmd.field: normalize(v)}
		}
		return adapter.NewResult(adapter.ColumnsFromRows(rows, "", nil), rows, started), nil

	case opInsertOne:
		out, err := coll.InsertOne(ctx, cmd.document)
		if err != nil {
			return nil, err
		}
		return insertedResult([]interface{}{out.InsertedID}, started), nil

	case opInsertMany:
		docs := make([]interface{}, len(cmd.documents))
		for i, d := range cmd.documents {
			docs[i] = d
		}
		out, err := coll.InsertMany(ctx, docs)
		if err != nil {
			return nil, err
		}
		return insertedResult(out.InsertedIDs, started), nil

	case opUpdateOne:
		out, err := coll.UpdateOne(ctx, cmd.filter, cmd.update)
		if err != nil {
			return nil, err
		}
		return adapter.MutationResult(out.MatchedCount, started), nil

	case opUpdateMany:
		out, err := coll.UpdateMany(ctx, cmd.filter, cmd.update)
		if err != nil {
			return nil, err
		}
		return adapter.MutationResult(out.MatchedCount, started), nil

	case opReplaceOne:
		out, err := coll.ReplaceOne(ctx, cmd.filter, cmd.document)
		if err != nil {
			return nil, err
		}
		return adapter.MutationResult(out.MatchedCount, started), nil

	case opDeleteOne:
		out, err := coll.DeleteOne(ctx, cmd.filter)
		if err != nil {
			return nil, err
		}
		return adapter.MutationResult(out.DeletedCount, started), nil

	case opDeleteMany:
		out, err := coll.DeleteMany(ctx, cmd.filter)
		if err != nil {
			return nil, err
		}
		return adapter.MutationResult(out.DeletedCount, started), nil
	}
	return nil, invalidQuery("unsupported operation %q", cmd.operation)
}

func cursorResult(ctx context.Context, cursor *mongo.Cursor, started time.Time) (*adapter.QueryResult, error) {
	defer cursor.Close(ctx)
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return documentsResult(docs, started), nil
}

func documentsResult(docs []bson.M, started time.Time) *adapter.QueryResult {
	raw := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		raw[i] = map[string]interface{}(d)
	}
	cols := adapter.ColumnsFromRows(raw, IDField, classify)
	return adapter.NewResult(cols, normalizeRows(docs), started)
}

func insertedResult(ids []interface{}, started time.Time) *adapter.QueryResult {
	rows := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		rows[i] = map[string]interface{}{"insertedId": normalize(id)}
	}
	res := adapter.NewResult([]adapter.Column{{Name: "insertedId", Type: adapter.InferredString}}, rows, started)
	n := int64(len(ids))
	res.AffectedRows = &n
	return res
}

// ExplainQuery runs the explain command for a find, aggregate, count or
// distinct envelope.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	started := time.Now()
	db, err := a.database("")
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	cmd, err := parseCommand(stmt)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
	}

	var inner bson.D
	switch cmd.operation {
	case opFind, opFindOne:
		inner = bson.D{{Key: "find", Value: cmd.collection}, {Key: "filter", Value: cmd.filter}}
		if len(cmd.sort) > 0 {
			inner = append(inner, bson.E{Key: "sort", Value: cmd.sort})
		}
		if cmd.limit > 0 {
			inner = append(inner, bson.E{Key: "limit", Value: cmd.limit})
		}
	case opAggregate:
		inner = bson.D{{Key: "aggregate", Value: cmd.collection}, {Key: "pipeline", Value: cmd.pipeline}, {Key: "cursor", Value: bson.D{}}}
	case opCount:
		inner = bson.D{{Key: "count", Value: cmd.collection}, {Key: "query", Value: cmd.filter}}
	case opDistinct:
		inner = bson.D{{Key: "distinct", Value: cmd.collection}, {Key: "key", Value: cmd.field}, {Key: "query", Value: cmd.filter}}
	default:
		return adapter.ErrorResult(a.Unsupported("explain", cmd.operation+" cannot be explained"), started)
	}

	var plan bson.M
	explain := bson.D{{Key: "explain", Value: inner}, {Key: "verbosity", Value: "queryPlanner"}}
	if err := db.RunCommand(ctx, explain).Decode(&plan); err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
	}
	return documentsResult([]bson.M{plan}, started)
}
