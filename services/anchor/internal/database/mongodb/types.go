package mongodb

import (
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Inferred types specific to BSON.
const (
	typeObjectID   = "objectId"
	typeDecimal128 = "decimal"
)

// classify names the BSON type of a raw decoded value.
func classify(v interface{}) string {
	switch v.(type) {
	case bson.ObjectID:
		return typeObjectID
	case bson.Decimal128:
		return typeDecimal128
	case bson.DateTime, bson.Timestamp:
		return adapter.InferredDate
	case bson.Binary:
		return adapter.InferredBinary
	case bson.D, bson.M:
		return adapter.InferredMap
	case bson.A:
		return adapter.InferredArray
	case bson.Null, bson.Undefined:
		return adapter.InferredNull
	}
	return adapter.InferType(v)
}

// normalize converts BSON wrapper types into plain Go values that encode
// cleanly as JSON. Documents and arrays are converted recursively.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC()
	case bson.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case bson.Decimal128:
		return val.String()
	case bson.Binary:
		return val.Data
	case bson.Regex:
		return fmt.Sprintf("/%s/%s", val.Pattern, val.Options)
	case bson.Null, bson.Undefined:
		return nil
	case int32:
		return int64(val)
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.M:
		return normalizeDoc(val)
	case map[string]interface{}:
		return normalizeDoc(val)
	case bson.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

func normalizeDoc(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = normalize(v)
	}
	return out
}

// normalizeRows converts decoded documents into result rows.
func normalizeRows(docs []bson.M) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		rows[i] = normalizeDoc(d)
	}
	return rows
}

// toDocument converts a row map into an ordered BSON document. Keys are
// sorted so the same input always produces the same filter. A 24 digit hex
// string under _id becomes an ObjectID.
func toDocument(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if k == IDField {
			v = objectIDOrValue(v)
		}
		doc = append(doc, bson.E{Key: k, Value: toBSONValue(v)})
	}
	return doc
}

func toBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return toDocument(val)
	case []interface{}:
		arr := make(bson.A, len(val))
		for i, item := range val {
			arr[i] = toBSONValue(item)
		}
		return arr
	case []map[string]interface{}:
		arr := make(bson.A, len(val))
		for i, item := range val {
			arr[i] = toDocument(item)
		}
		return arr
	}
	return v
}

func objectIDOrValue(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || len(s) != 24 {
		return v
	}
	if oid, err := bson.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return v
}
