package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// ExecuteQuery parses stmt with ParseQuery and runs it. Parse failures are
// returned as an error result. Positional params are not used.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	if _, err := a.firestoreClient(); err != nil {
		return adapter.ErrorResult(err, started)
	}
	q, err := ParseQuery(stmt)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute_query", err), started)
	}
	res, err := a.run(ctx, q, started)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), q.Operation, err), started)
	}
	return res
}

func (a *Adapter) run(ctx context.Context, q *Query, started time.Time) (*adapter.QueryResult, error) {
	coll, err := a.collection(q.Collection)
	if err != nil {
		return nil, err
	}

	switch q.Operation {
	case OpGetDoc:
		snap, err := coll.Doc(q.DocID).Get(ctx)
		if status.Code(err) == codes.NotFound {
			return snapshotsResult(nil, started), nil
		}
		if err != nil {
			return nil, err
		}
		return snapshotsResult([]*firestore.DocumentSnapshot{snap}, started), nil

	case OpFind, OpFindOne:
		if q.Operation == OpFindOne {
			q.Limit = 1
		}
		fq, err := buildQuery(coll, q)
		if err != nil {
			return nil, err
		}
		snaps, err := fq.Documents(ctx).GetAll()
		if err != nil {
			return nil, err
		}
		return snapshotsResult(snaps, started), nil

	case OpCount:
		fq, err := buildQuery(coll, q)
		if err != nil {
			return nil, err
		}
		n, err := count(ctx, fq)
		if err != nil {
			return nil, err
		}
		return adapter.NewResult(
			[]adapter.Column{{Name: "count", Type: adapter.InferredNumber}},
			[]map[string]interface{}{{"count": n}},
			started,
		), nil

	case OpInsertOne:
		id, err := insert(ctx, coll, q.Document)
		if err != nil {
			return nil, err
		}
		return insertedResult(id, started), nil

	case OpUpdateOne:
		ref, err := a.firstMatch(ctx, coll, q)
		if err != nil || ref == nil {
			return adapter.MutationResult(0, started), err
		}
		if _, err := ref.Set(ctx, toFirestoreMap(q.Update), firestore.MergeAll); err != nil {
			return nil, err
		}
		return adapter.MutationResult(1, started), nil

	case OpDeleteOne:
		ref, err := a.firstMatch(ctx, coll, q)
		if err != nil || ref == nil {
			return adapter.MutationResult(0, started), err
		}
		if _, err := ref.Delete(ctx); err != nil {
			return nil, err
		}
		return adapter.MutationResult(1, started), nil
	}
	return nil, invalidQuery("unsupported operation %q", q.Operation)
}

// buildQuery applies filters, order and paging. Filters on _id compare
// against document references.
func buildQuery(coll *firestore.CollectionRef, q *Query) (firestore.Query, error) {
	fq := coll.Query
	for _, f := range q.Filters {
		if !validOps[f.Op] {
			return fq, invalidQuery("unsupported operator %q", f.Op)
		}
		if f.Path == IDField {
			v, err := docRefs(coll, f.Value)
			if err != nil {
				return fq, err
			}
			fq = fq.Where(firestore.DocumentID, f.Op, v)
			continue
		}
		fq = fq.Where(f.Path, f.Op, toFirestoreValue(f.Value))
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Desc {
			dir = firestore.Desc
		}
		path := o.Column
		if path == IDField {
			path = firestore.DocumentID
		}
		fq = fq.OrderBy(path, dir)
	}
	if q.Offset > 0 {
		fq = fq.Offset(q.Offset)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq, nil
}

func docRefs(coll *firestore.CollectionRef, v interface{}) (interface{}, error) {
	switch id := v.(type) {
	case string:
		return coll.Doc(id), nil
	case []interface{}:
		refs := make([]interface{}, len(id))
		for i, item := range id {
			s, ok := item.(string)
			if !ok {
				return nil, invalidQuery("document ids must be strings")
			}
			refs[i] = coll.Doc(s)
		}
		return refs, nil
	}
	return nil, invalidQuery("document ids must be strings, got %T", v)
}

func count(ctx context.Context, fq firestore.Query) (int64, error) {
	res, err := fq.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, err
	}
	switch v := res["count"].(type) {
	case *firestorepb.Value:
		return v.GetIntegerValue(), nil
	case int64:
		return v, nil
	}
	return 0, fmt.Errorf("unexpected count result %T", res["count"])
}

// insert adds a document. An _id in data names the document, otherwise
// Firestore generates one. An existing document with that id is an error.
func insert(ctx context.Context, coll *firestore.CollectionRef, data map[string]interface{}) (string, error) {
	fields := make(map[string]interface{}, len(data))
	for k, v := range data {
		if k != IDField {
			fields[k] = v
		}
	}
	fields = toFirestoreMap(fields)

	if id, ok := data[IDField].(string); ok && id != "" {
		ref := coll.Doc(id)
		if _, err := ref.Create(ctx, fields); err != nil {
			return "", err
		}
		return ref.ID, nil
	}
	ref, _, err := coll.Add(ctx, fields)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// firstMatch returns the document q targets: the one named by DocID or an
// _id equality filter, else the first query match. It returns nil when
// nothing matches.
func (a *Adapter) firstMatch(ctx context.Context, coll *firestore.CollectionRef, q *Query) (*firestore.DocumentRef, error) {
	id := q.DocID
	if id == "" && len(q.Filters) == 1 && q.Filters[0].Path == IDField && q.Filters[0].Op == "==" {
		id, _ = q.Filters[0].Value.(string)
	}
	if id != "" {
		snap, err := coll.Doc(id).Get(ctx)
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return snap.Ref, nil
	}
	if len(q.Filters) == 0 {
		return nil, adapter.InvalidArgument(a.GetDatabaseType(), q.Operation, "a filter is required")
	}

	one := *q
	one.Limit, one.Offset, one.OrderBy = 1, 0, nil
	fq, err := buildQuery(coll, &one)
	if err != nil {
		return nil, err
	}
	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return snaps[0].Ref, nil
}

func insertedResult(id string, started time.Time) *adapter.QueryResult {
	res := adapter.NewResult(
		[]adapter.Column{{Name: "insertedId", Type: adapter.InferredString}},
		[]map[string]interface{}{{"insertedId": id}},
		started,
	)
	n := int64(1)
	res.AffectedRows = &n
	return res
}

func snapshotsResult(snaps []*firestore.DocumentSnapshot, started time.Time) *adapter.QueryResult {
	raw := make([]map[string]interface{}, 0, len(snaps))
	rows := make([]map[string]interface{}, 0, len(snaps))
	for _, s := range snaps {
		doc := snapshotDoc(s)
		raw = append(raw, doc)
		rows = append(rows, normalizeDoc(doc))
	}
	return adapter.NewResult(adapter.ColumnsFromRows(raw, IDField, classify), rows, started)
}

func snapshotDoc(s *firestore.DocumentSnapshot) map[string]interface{} {
	doc := s.Data()
	if doc == nil {
		doc = map[string]interface{}{}
	}
	doc[IDField] = s.Ref.ID
	return doc
}
