package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func TestBuckets(t *testing.T) {
	assert.Equal(t, "user", BucketOf("user:1"))
	assert.Equal(t, "user", BucketOf("user:1:profile"))
	assert.Equal(t, DefaultBucket, BucketOf("counter"))
	assert.Equal(t, DefaultBucket, BucketOf(":odd"))

	assert.Equal(t, "default", BucketOf("default:1"))

	tables := bucketTables([]string{"counter", "default:1", "session:a", "user:1", "user:2"})
	require.Len(t, tables, 4)
	assert.Equal(t, DefaultBucket, tables[0].Name)
	assert.Equal(t, int64(1), *tables[0].RowCount)
	assert.Equal(t, "default", tables[1].Name)
	assert.Equal(t, int64(1), *tables[1].RowCount)
	assert.Equal(t, "session", tables[2].Name)
	assert.Equal(t, "user", tables[3].Name)
	assert.Equal(t, int64(2), *tables[3].RowCount)
	assert.Equal(t, adapter.TableKindBucket, tables[3].Type)

	assert.Equal(t, "*", matchPattern(DefaultBucket))
	assert.Equal(t, "default:*", matchPattern("default"))
	assert.Equal(t, `a\*b:*`, matchPattern("a*b"))
}

func TestColumnsForTypes(t *testing.T) {
	names := func(cols []adapter.Column) []string {
		out := make([]string, len(cols))
		for i, c := range cols {
			out[i] = c.Name
		}
		return out
	}
	assert.Equal(t, []string{"key"}, names(columnsForTypes(nil)))
	assert.Equal(t, []string{"key", "value", "ttl"}, names(columnsForTypes([]string{typeString})))
	assert.Equal(t, []string{"key", "field", "value", "member", "score"}, names(columnsForTypes([]string{typeHash, typeZSet, typeHash})))

	cols := columnsForTypes([]string{typeStream})
	assert.True(t, cols[0].PrimaryKey)
	assert.Equal(t, 3, cols[2].OrdinalPosition)
	assert.Equal(t, adapter.InferredMap, cols[2].Type)
}

func TestFullKey(t *testing.T) {
	k, err := fullKey("user", "user:1")
	require.NoError(t, err)
	assert.Equal(t, "user:1", k)

	k, err = fullKey("user", "1")
	require.NoError(t, err)
	assert.Equal(t, "user:1", k)

	k, err = fullKey(DefaultBucket, "counter")
	require.NoError(t, err)
	assert.Equal(t, "counter", k)

	k, err = fullKey("default", "7")
	require.NoError(t, err)
	assert.Equal(t, "default:7", k)

	_, err = fullKey(DefaultBucket, "user:1")
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
	_, err = fullKey("user", 7)
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
}

func TestInferType(t *testing.T) {
	assert.Equal(t, typeString, inferType(map[string]interface{}{"key": "k", "value": "v"}))
	assert.Equal(t, typeHash, inferType(map[string]interface{}{"key": "k", "field": "f", "value": "v"}))
	assert.Equal(t, typeZSet, inferType(map[string]interface{}{"key": "k", "member": "m", "score": 1}))
	assert.Equal(t, typeSet, inferType(map[string]interface{}{"key": "k", "member": "m"}))
	assert.Equal(t, typeStream, inferType(map[string]interface{}{"key": "k", "fields": map[string]interface{}{"a": 1}}))
	assert.Equal(t, typeList, inferType(map[string]interface{}{"key": "k", "type": "list", "value": "v"}))
}

func TestDatabaseIndex(t *testing.T) {
	assert.Equal(t, 0, databaseIndex(""))
	assert.Equal(t, 3, databaseIndex("3"))
	assert.Equal(t, 5, databaseIndex("db5"))
	assert.Equal(t, 0, databaseIndex("cache"))
}

func TestDisconnected(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{Type: dbcapabilities.Redis, Host: "localhost", Port: 6379})

	assert.False(t, a.IsConnected())
	res := a.ExecuteQuery(ctx, "PING")
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "not connected")

	_, err := a.GetTables(ctx, "")
	assert.True(t, errors.Is(err, adapter.ErrNotConnected))
	assert.True(t, errors.Is(a.BeginTransaction(ctx), adapter.ErrNotConnected))
	assert.True(t, errors.Is(a.CommitTransaction(ctx), adapter.ErrTransactionFailed))
}

// Runs against a live server when ANCHOR_TEST_REDIS_ADDR (host:port) is set.
func TestLiveBuckets(t *testing.T) {
	addr := os.Getenv("ANCHOR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ANCHOR_TEST_REDIS_ADDR not set")
	}
	cfg, err := adapter.ConfigFromURL("live", "redis://"+addr+"/15")
	require.NoError(t, err)

	ctx := context.Background()
	a := newAdapter(cfg)
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect(ctx)

	bucket := "t" + uuid.NewString()[:8]
	defer a.ExecuteQuery(ctx, "DEL "+bucket+":s "+bucket+":h "+bucket+":z")

	require.False(t, a.InsertRow(ctx, bucket, map[string]interface{}{"key": "s", "value": "hello"}).Failed())
	require.False(t, a.InsertRow(ctx, bucket, map[string]interface{}{"key": "h", "field": "name", "value": "Ada"}).Failed())
	require.False(t, a.InsertRow(ctx, bucket, map[string]interface{}{"key": "z", "member": "ada", "score": 3}).Failed())

	cols, err := a.GetColumns(ctx, bucket, "")
	require.NoError(t, err)
	assert.Equal(t, "key", cols[0].Name)

	data := a.GetTableData(ctx, bucket, adapter.TableDataOptions{Where: map[string]interface{}{"key": "h"}})
	require.False(t, data.Failed(), data.Error)
	require.Equal(t, 1, data.RowCount)
	assert.Equal(t, "Ada", data.Rows[0]["value"])

	res := a.ExecuteQuery(ctx, "HGETALL "+a.EscapeIdentifier(bucket+":h"))
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, []map[string]interface{}{{"field": "name", "value": "Ada"}}, res.Rows)

	require.NoError(t, a.BeginTransaction(ctx))
	res = a.UpdateRow(ctx, bucket, map[string]interface{}{"value": "bye"}, map[string]interface{}{"key": "s"})
	require.False(t, res.Failed(), res.Error)
	assert.Nil(t, res.AffectedRows)
	require.NoError(t, a.CommitTransaction(ctx))

	res = a.ExecuteQuery(ctx, "GET "+bucket+":s")
	assert.Equal(t, "bye", res.Rows[0]["result"])

	res = a.DeleteRow(ctx, bucket, map[string]interface{}{"key": "z", "member": "ada"})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)
}
