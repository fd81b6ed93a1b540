package adapter

import "github.com/redbco/redb-anchor/pkg/dbcapabilities"

// UnknownType is the type name reported when an engine type code has no mapping.
const UnknownType = "unknown"

// Column describes one column, field or property.
type Column struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Nullable        bool    `json:"nullable"`
	PrimaryKey      bool    `json:"primaryKey"`
	Default         *string `json:"default,omitempty"`
	AutoIncrement   bool    `json:"autoIncrement,omitempty"`
	OrdinalPosition int     `json:"ordinalPosition,omitempty"`
}

// Index describes an index over ordered columns.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Primary bool     `json:"primary,omitempty"`
}

// ForeignKey describes a reference from a table to another table.
type ForeignKey struct {
	Name              string   `json:"name"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns"`
	OnDelete          string   `json:"onDelete,omitempty"`
	OnUpdate          string   `json:"onUpdate,omitempty"`
}

// Table kinds reported in Table.Type.
const (
	TableKindTable      = "table"
	TableKindView       = "view"
	TableKindCollection = "collection"
	TableKindLabel      = "label"
	TableKindIndex      = "index"
	TableKindBucket     = "bucket"
)

// Table describes a table, collection, label, index or key bucket.
// Columns of schemaless engines are inferred and never authoritative.
type Table struct {
	Name        string       `json:"name"`
	Schema      string       `json:"schema,omitempty"`
	Type        string       `json:"type,omitempty"`
	Columns     []Column     `json:"columns,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
	RowCount    *int64       `json:"rowCount,omitempty"`
}

// View describes a view and, when known, its definition.
type View struct {
	Name       string `json:"name"`
	Schema     string `json:"schema,omitempty"`
	Definition string `json:"definition,omitempty"`
}

// Routine describes a stored procedure or function.
type Routine struct {
	Name       string `json:"name"`
	Schema     string `json:"schema,omitempty"`
	Kind       string `json:"kind"`
	ReturnType string `json:"returnType,omitempty"`
}

// Trigger describes a trigger attached to a table.
type Trigger struct {
	Name   string `json:"name"`
	Table  string `json:"table"`
	Event  string `json:"event,omitempty"`
	Timing string `json:"timing,omitempty"`
}

// User is a database login.
type User struct {
	Name string `json:"name"`
	Host string `json:"host,omitempty"`
}

// Role is a database role.
type Role struct {
	Name string `json:"name"`
}

// Schema is the full description of a database.
type Schema struct {
	DatabaseType dbcapabilities.DatabaseID `json:"databaseType"`
	Database     string                    `json:"database,omitempty"`
	Tables       []Table                   `json:"tables"`
	Views        []View                    `json:"views,omitempty"`
}

// ColumnMetadata is the name and type of a column in SchemaMetadata.
type ColumnMetadata struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableMetadata is the lightweight projection of a table.
type TableMetadata struct {
	Name    string           `json:"name"`
	Schema  string           `json:"schema,omitempty"`
	Columns []ColumnMetadata `json:"columns"`
}

// SchemaMetadata is the table and column summary used for autocomplete and
// query assistance. It is advisory and never used to validate DDL.
type SchemaMetadata struct {
	Database string          `json:"database,omitempty"`
	Tables   []TableMetadata `json:"tables"`
	Views    []TableMetadata `json:"views,omitempty"`
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// TableDataOptions controls GetTableData. Where is equality only.
type TableDataOptions struct {
	Limit   int                    `json:"limit,omitempty"`
	Offset  int                    `json:"offset,omitempty"`
	OrderBy []OrderBy              `json:"orderBy,omitempty"`
	Where   map[string]interface{} `json:"where,omitempty"`
}
