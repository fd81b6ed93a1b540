package mongodb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// Runs against a live server when ANCHOR_TEST_MONGO_URI is set.
func TestLiveRoundTrip(t *testing.T) {
	uri := os.Getenv("ANCHOR_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ANCHOR_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{
		Type:         dbcapabilities.MongoDB,
		DatabaseName: "anchor_test",
		Options:      map[string]interface{}{"uri": uri},
	})
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect(ctx)
	assert.True(t, a.TestConnection(ctx))

	coll := "people_" + uuid.NewString()[:8]
	defer a.ExecuteQuery(ctx, `{"operation":"runCommand","command":{"drop":"`+coll+`"}}`)

	res := a.InsertRow(ctx, coll, map[string]interface{}{"name": "Ada", "age": 36})
	require.False(t, res.Failed(), res.Error)
	id := res.Rows[0]["insertedId"].(string)

	res = a.UpdateRow(ctx, coll, map[string]interface{}{"age": 37}, map[string]interface{}{"_id": id})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)

	data := a.GetTableData(ctx, coll, adapter.TableDataOptions{Where: map[string]interface{}{"name": "Ada"}})
	require.False(t, data.Failed(), data.Error)
	require.Equal(t, 1, data.RowCount)
	assert.Equal(t, int64(37), data.Rows[0]["age"])
	assert.Equal(t, "_id", data.Columns[0].Name)

	cols, err := a.GetColumns(ctx, coll, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "age", "name"}, []string{cols[0].Name, cols[1].Name, cols[2].Name})

	pk, err := a.GetPrimaryKey(ctx, coll, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"_id"}, pk)

	res = a.DeleteRow(ctx, coll, map[string]interface{}{"_id": id})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)
}
