package firestore

import (
	"cloud.google.com/go/firestore"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

const typeReference = "reference"

func classify(v interface{}) string {
	if _, ok := v.(*firestore.DocumentRef); ok {
		return typeReference
	}
	return adapter.InferType(v)
}

// normalize renders document references as their path. Maps and arrays are
// converted recursively, everything else is already a plain Go value.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case *firestore.DocumentRef:
		if val == nil {
			return nil
		}
		return val.Path
	case map[string]interface{}:
		return normalizeDoc(val)
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

// toFirestoreValue widens Go integer kinds to int64, the only integer type
// Firestore stores.
func toFirestoreValue(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	case uint32:
		return int64(val)
	case uint16:
		return int64(val)
	case uint8:
		return int64(val)
	case float32:
		return float64(val)
	case map[string]interface{}:
		return toFirestoreMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = toFirestoreValue(item)
		}
		return out
	}
	return v
}

func toFirestoreMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = toFirestoreValue(v)
	}
	return out
}
