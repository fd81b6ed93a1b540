package mssql

import (
	"database/sql"
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"
)

// normalizeValue renders UNIQUEIDENTIFIER columns in their canonical text
// form. The driver returns them as 16 raw bytes in SQL Server byte order.
func normalizeValue(ct *sql.ColumnType, v interface{}) interface{} {
	if !strings.EqualFold(ct.DatabaseTypeName(), "UNIQUEIDENTIFIER") {
		return v
	}
	s, ok := v.(string)
	if !ok || len(s) != 16 {
		return v
	}
	var id mssqldb.UniqueIdentifier
	if err := id.Scan([]byte(s)); err != nil {
		return v
	}
	return id.String()
}

// columnTypeName appends the length to character and binary types.
// INFORMATION_SCHEMA reports -1 for MAX.
func columnTypeName(dataType string, maxLength sql.NullInt64) string {
	if !maxLength.Valid {
		return dataType
	}
	switch strings.ToLower(dataType) {
	case "char", "varchar", "nchar", "nvarchar", "binary", "varbinary":
		if maxLength.Int64 < 0 {
			return dataType + "(max)"
		}
		return dataType + "(" + strconv.FormatInt(maxLength.Int64, 10) + ")"
	}
	return dataType
}
