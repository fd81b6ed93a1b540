package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// typeName maps a native protocol type code to its CQL name.
func typeName(t gocql.Type) string {
	switch t {
	case gocql.TypeCustom:
		return "custom"
	case gocql.TypeAscii:
		return "ascii"
	case gocql.TypeBigInt:
		return "bigint"
	case gocql.TypeBlob:
		return "blob"
	case gocql.TypeBoolean:
		return "boolean"
	case gocql.TypeCounter:
		return "counter"
	case gocql.TypeDecimal:
		return "decimal"
	case gocql.TypeDouble:
		return "double"
	case gocql.TypeFloat:
		return "float"
	case gocql.TypeInt:
		return "int"
	case gocql.TypeText:
		return "text"
	case gocql.TypeTimestamp:
		return "timestamp"
	case gocql.TypeUUID:
		return "uuid"
	case gocql.TypeVarchar:
		return "varchar"
	case gocql.TypeVarint:
		return "varint"
	case gocql.TypeTimeUUID:
		return "timeuuid"
	case gocql.TypeInet:
		return "inet"
	case gocql.TypeDate:
		return "date"
	case gocql.TypeTime:
		return "time"
	case gocql.TypeSmallInt:
		return "smallint"
	case gocql.TypeTinyInt:
		return "tinyint"
	case gocql.TypeDuration:
		return "duration"
	case gocql.TypeList:
		return "list"
	case gocql.TypeMap:
		return "map"
	case gocql.TypeSet:
		return "set"
	case gocql.TypeUDT:
		return "udt"
	case gocql.TypeTuple:
		return "tuple"
	}
	return adapter.UnknownType
}

// columnType renders collection types with their element types.
func columnType(info gocql.TypeInfo) string {
	switch ti := info.(type) {
	case gocql.CollectionType:
		switch ti.Type() {
		case gocql.TypeMap:
			return fmt.Sprintf("map<%s, %s>", columnType(ti.Key), columnType(ti.Elem))
		case gocql.TypeList, gocql.TypeSet:
			return fmt.Sprintf("%s<%s>", typeName(ti.Type()), columnType(ti.Elem))
		}
	case gocql.UDTTypeInfo:
		return ti.Name
	}
	return typeName(info.Type())
}

// normalize converts driver values to plain values. UUIDs, decimals,
// varints and addresses become their text form.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, bool, []byte, int, int8, int16, int32, int64, float32, float64:
		return val
	case time.Time:
		return val.UTC()
	case time.Duration:
		return val.String()
	case gocql.Duration:
		return fmt.Sprintf("%dmo%dd%dns", val.Months, val.Days, val.Nanoseconds)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case fmt.Stringer:
		return val.String()
	}
	return v
}

func normalizeRow(row map[string]interface{}) map[string]interface{} {
	for k, v := range row {
		row[k] = normalize(v)
	}
	return row
}
