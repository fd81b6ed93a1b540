//go:build cgo

package oracle

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/godror/godror"
)

// normalizeValue turns integral NUMBER values into int64. Fractional values
// keep their exact decimal text.
func normalizeValue(_ *sql.ColumnType, v interface{}) interface{} {
	var s string
	switch n := v.(type) {
	case godror.Number:
		s = string(n)
	default:
		return v
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

// columnTypeName renders the declared type the way DDL would spell it.
func columnTypeName(dataType string, length, precision, scale sql.NullInt64) string {
	switch strings.ToUpper(dataType) {
	case "VARCHAR2", "NVARCHAR2", "CHAR", "NCHAR", "RAW":
		if length.Valid {
			return fmt.Sprintf("%s(%d)", dataType, length.Int64)
		}
	case "NUMBER":
		switch {
		case precision.Valid && scale.Valid && scale.Int64 != 0:
			return fmt.Sprintf("NUMBER(%d,%d)", precision.Int64, scale.Int64)
		case precision.Valid:
			return fmt.Sprintf("NUMBER(%d)", precision.Int64)
		}
	}
	return dataType
}
