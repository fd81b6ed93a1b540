package clickhouse

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// typeName reports the ClickHouse type as written in DDL, for example
// "LowCardinality(Nullable(String))".
func typeName(ct *sql.ColumnType) string {
	if name := ct.DatabaseTypeName(); name != "" {
		return name
	}
	return adapter.UnknownType
}

// isNullableType reports whether a ClickHouse type admits NULL.
func isNullableType(t string) bool {
	t = strings.TrimPrefix(t, "LowCardinality(")
	return strings.HasPrefix(t, "Nullable(")
}

// normalizeValue dereferences Nullable pointers and renders big numbers,
// decimals, UUIDs and IPs as strings.
func normalizeValue(_ *sql.ColumnType, v interface{}) interface{} {
	return normalize(v)
}

func normalize(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}

	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case *time.Time:
		return x.UTC()
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}

	switch rv.Kind() {
	case reflect.Ptr:
		return normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}
