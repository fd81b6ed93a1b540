package common

import "github.com/redbco/redb-anchor/pkg/anchor/adapter"

// IndexCollector groups one-row-per-column catalog output into indexes,
// keeping first-seen index order and column order.
type IndexCollector struct {
	indexes []adapter.Index
	pos     map[string]int
}

// Add records one column of an index.
func (c *IndexCollector) Add(name, column string, unique, primary bool) {
	if c.pos == nil {
		c.pos = make(map[string]int)
	}
	i, ok := c.pos[name]
	if !ok {
		c.indexes = append(c.indexes, adapter.Index{Name: name, Unique: unique || primary, Primary: primary})
		i = len(c.indexes) - 1
		c.pos[name] = i
	}
	c.indexes[i].Columns = append(c.indexes[i].Columns, column)
}

// Indexes returns the collected indexes, never nil.
func (c *IndexCollector) Indexes() []adapter.Index {
	if c.indexes == nil {
		return []adapter.Index{}
	}
	return c.indexes
}

// ForeignKeyCollector groups one-row-per-column foreign key output.
type ForeignKeyCollector struct {
	keys []adapter.ForeignKey
	pos  map[string]int
}

// Add records one column pair of a foreign key.
func (c *ForeignKeyCollector) Add(name, column, refTable, refColumn, onDelete, onUpdate string) {
	if c.pos == nil {
		c.pos = make(map[string]int)
	}
	i, ok := c.pos[name]
	if !ok {
		c.keys = append(c.keys, adapter.ForeignKey{
			Name:            name,
			ReferencedTable: refTable,
			OnDelete:        onDelete,
			OnUpdate:        onUpdate,
		})
		i = len(c.keys) - 1
		c.pos[name] = i
	}
	c.keys[i].Columns = append(c.keys[i].Columns, column)
	c.keys[i].ReferencedColumns = append(c.keys[i].ReferencedColumns, refColumn)
}

// ForeignKeys returns the collected keys, never nil.
func (c *ForeignKeyCollector) ForeignKeys() []adapter.ForeignKey {
	if c.keys == nil {
		return []adapter.ForeignKey{}
	}
	return c.keys
}

// MetadataCollector builds SchemaMetadata from rows ordered by table.
type MetadataCollector struct {
	meta    adapter.SchemaMetadata
	current *adapter.TableMetadata
	isView  bool
}

// NewMetadataCollector starts a summary for database.
func NewMetadataCollector(database string) *MetadataCollector {
	return &MetadataCollector{meta: adapter.SchemaMetadata{Database: database, Tables: []adapter.TableMetadata{}}}
}

// Add records one column. Rows of the same table must be adjacent.
func (c *MetadataCollector) Add(schema, table, column, columnType string, isView bool) {
	if c.current == nil || c.current.Schema != schema || c.current.Name != table {
		c.flush()
		c.current = &adapter.TableMetadata{Name: table, Schema: schema, Columns: []adapter.ColumnMetadata{}}
		c.isView = isView
	}
	c.current.Columns = append(c.current.Columns, adapter.ColumnMetadata{Name: column, Type: columnType})
}

func (c *MetadataCollector) flush() {
	if c.current == nil {
		return
	}
	if c.isView {
		c.meta.Views = append(c.meta.Views, *c.current)
	} else {
		c.meta.Tables = append(c.meta.Tables, *c.current)
	}
	c.current = nil
}

// Metadata finishes the summary.
func (c *MetadataCollector) Metadata() *adapter.SchemaMetadata {
	c.flush()
	meta := c.meta
	return &meta
}
