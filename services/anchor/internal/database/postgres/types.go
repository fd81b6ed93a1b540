package postgres

import (
	"database/sql/driver"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// oidNames maps the common type OIDs to the names information_schema uses.
var oidNames = map[uint32]string{
	pgtype.BoolOID:         "boolean",
	pgtype.ByteaOID:        "bytea",
	pgtype.QCharOID:        "char",
	pgtype.NameOID:         "name",
	pgtype.Int8OID:         "bigint",
	pgtype.Int2OID:         "smallint",
	pgtype.Int4OID:         "integer",
	pgtype.TextOID:         "text",
	pgtype.OIDOID:          "oid",
	pgtype.JSONOID:         "json",
	pgtype.JSONBOID:        "jsonb",
	pgtype.Float4OID:       "real",
	pgtype.Float8OID:       "double precision",
	pgtype.BPCharOID:       "character",
	pgtype.VarcharOID:      "character varying",
	pgtype.DateOID:         "date",
	pgtype.TimeOID:         "time without time zone",
	pgtype.TimestampOID:    "timestamp without time zone",
	pgtype.TimestamptzOID:  "timestamp with time zone",
	pgtype.IntervalOID:     "interval",
	pgtype.NumericOID:      "numeric",
	pgtype.UUIDOID:         "uuid",
	pgtype.InetOID:         "inet",
	pgtype.CIDROID:         "cidr",
	pgtype.MacaddrOID:      "macaddr",
	pgtype.BoolArrayOID:    "boolean[]",
	pgtype.Int2ArrayOID:    "smallint[]",
	pgtype.Int4ArrayOID:    "integer[]",
	pgtype.Int8ArrayOID:    "bigint[]",
	pgtype.TextArrayOID:    "text[]",
	pgtype.VarcharArrayOID: "character varying[]",
	pgtype.Float8ArrayOID:  "double precision[]",
	pgtype.UUIDArrayOID:    "uuid[]",
	pgtype.JSONBArrayOID:   "jsonb[]",
}

var (
	typeMapMu sync.Mutex
	typeMap   = pgtype.NewMap()
)

// typeNameForOID returns the type name for a result column OID. OIDs outside
// the table fall back to the pgtype registry, then to adapter.UnknownType.
func typeNameForOID(oid uint32) string {
	if name, ok := oidNames[oid]; ok {
		return name
	}
	typeMapMu.Lock()
	defer typeMapMu.Unlock()
	if t, ok := typeMap.TypeForOID(oid); ok {
		return t.Name
	}
	return adapter.UnknownType
}

// normalizeValue converts pgx decoded values into plain values: UUIDs and
// network types become strings, numerics keep their exact text.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, string, bool, int16, int32, int64, float32, float64, time.Time, []byte:
		return v
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		dv, err := x.Value()
		if err != nil {
			return nil
		}
		return dv
	case netip.Prefix:
		return x.String()
	case net.HardwareAddr:
		return x.String()
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(x)
		}
		return dv
	case fmt.Stringer:
		return x.String()
	}
	return v
}
