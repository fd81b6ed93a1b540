package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

func TestIndexCollector(t *testing.T) {
	var c IndexCollector
	assert.Equal(t, []adapter.Index{}, c.Indexes())

	c.Add("PRIMARY", "id", false, true)
	c.Add("idx_name", "last", false, false)
	c.Add("idx_name", "first", false, false)

	assert.Equal(t, []adapter.Index{
		{Name: "PRIMARY", Columns: []string{"id"}, Unique: true, Primary: true},
		{Name: "idx_name", Columns: []string{"last", "first"}},
	}, c.Indexes())
}

func TestForeignKeyCollector(t *testing.T) {
	var c ForeignKeyCollector
	c.Add("fk_order_item", "order_id", "orders", "id", "CASCADE", "NO ACTION")
	c.Add("fk_order_item", "tenant_id", "orders", "tenant_id", "CASCADE", "NO ACTION")

	keys := c.ForeignKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, []string{"order_id", "tenant_id"}, keys[0].Columns)
	assert.Equal(t, []string{"id", "tenant_id"}, keys[0].ReferencedColumns)
	assert.Equal(t, "orders", keys[0].ReferencedTable)
}

func TestMetadataCollector(t *testing.T) {
	c := NewMetadataCollector("app")
	c.Add("app", "users", "id", "int", false)
	c.Add("app", "users", "email", "varchar", false)
	c.Add("app", "active_users", "id", "int", true)
	c.Add("app", "orders", "id", "int", false)

	meta := c.Metadata()
	assert.Equal(t, "app", meta.Database)
	require.Len(t, meta.Tables, 2)
	assert.Equal(t, "users", meta.Tables[0].Name)
	assert.Len(t, meta.Tables[0].Columns, 2)
	assert.Equal(t, "orders", meta.Tables[1].Name)
	require.Len(t, meta.Views, 1)
	assert.Equal(t, "active_users", meta.Views[0].Name)

	empty := NewMetadataCollector("").Metadata()
	assert.Equal(t, []adapter.TableMetadata{}, empty.Tables)
}
