package cassandra

import (
	"context"
	"errors"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func testAdapter() *Adapter {
	return newAdapter(adapter.ConnectionConfig{ID: "c", Type: dbcapabilities.Cassandra, Host: "a, b", Port: 9042, DatabaseName: "shop"})
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "bigint", typeName(gocql.TypeBigInt))
	assert.Equal(t, "timeuuid", typeName(gocql.TypeTimeUUID))
	assert.Equal(t, "duration", typeName(gocql.TypeDuration))
	assert.Equal(t, adapter.UnknownType, typeName(gocql.Type(0x7f)))

	assert.Equal(t, "map<text, int>", columnType(gocql.CollectionType{
		NativeType: gocql.NewNativeType(4, gocql.TypeMap, ""),
		Key:        gocql.NewNativeType(4, gocql.TypeText, ""),
		Elem:       gocql.NewNativeType(4, gocql.TypeInt, ""),
	}))
	assert.Equal(t, "set<uuid>", columnType(gocql.CollectionType{
		NativeType: gocql.NewNativeType(4, gocql.TypeSet, ""),
		Elem:       gocql.NewNativeType(4, gocql.TypeUUID, ""),
	}))
}

func TestNormalize(t *testing.T) {
	id := gocql.TimeUUID()
	row := normalizeRow(map[string]interface{}{
		"id":     id,
		"n":      big.NewInt(12),
		"at":     time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600)),
		"d":      gocql.Duration{Months: 1, Days: 2, Nanoseconds: 3},
		"tags":   []interface{}{id},
		"name":   "x",
		"absent": nil,
	})
	assert.Equal(t, id.String(), row["id"])
	assert.Equal(t, "12", row["n"])
	assert.Equal(t, time.Date(2024, 1, 2, 2, 4, 5, 0, time.UTC), row["at"])
	assert.Equal(t, "1mo2d3ns", row["d"])
	assert.Equal(t, []interface{}{id.String()}, row["tags"])
	assert.Nil(t, row["absent"])
}

func TestSelectStatement(t *testing.T) {
	a := testAdapter()
	stmt, args := a.selectStatement("orders", map[string]interface{}{"state": "open", "customer": 7}, 20)
	assert.Equal(t, `SELECT * FROM "orders" WHERE "customer" = ? AND "state" = ? LIMIT 20 ALLOW FILTERING`, stmt)
	assert.Equal(t, []interface{}{7, "open"}, args)

	stmt, args = a.selectStatement("orders", nil, 0)
	assert.Equal(t, `SELECT * FROM "orders"`, stmt)
	assert.Empty(t, args)
}

func TestConditionalStatements(t *testing.T) {
	a := testAdapter()
	keys := []string{"customer", "created"}

	stmt, args, err := a.conditionalUpdate("orders", keys,
		map[string]interface{}{"state": "paid"},
		map[string]interface{}{"customer": 7, "created": 100})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "orders" SET "state" = ? WHERE "created" = ? AND "customer" = ? IF EXISTS`, stmt)
	assert.Equal(t, []interface{}{"paid", 100, 7}, args)

	stmt, args, err = a.conditionalDelete("orders", keys,
		map[string]interface{}{"customer": 7, "created": 100, "state": "open"})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "orders" WHERE "created" = ? AND "customer" = ? IF "state" = ?`, stmt)
	assert.Equal(t, []interface{}{100, 7, "open"}, args)

	_, _, err = a.conditionalDelete("orders", keys, map[string]interface{}{"customer": 7})
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
	_, _, err = a.conditionalUpdate("orders", keys, map[string]interface{}{"customer": 8},
		map[string]interface{}{"customer": 7, "created": 100})
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
	_, _, err = a.conditionalDelete("orders", nil, map[string]interface{}{"customer": 7})
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, returnsRows("SELECT * FROM t"))
	assert.True(t, returnsRows(`INSERT INTO t (id) VALUES (1) IF NOT EXISTS`))
	assert.True(t, returnsRows(`UPDATE t SET a = 1 WHERE id = 1 IF a = 0`))
	assert.False(t, returnsRows(`INSERT INTO t (id, diff) VALUES (1, 2)`))
	assert.False(t, returnsRows("TRUNCATE t"))
}

func TestOrderColumnsAndMetadata(t *testing.T) {
	raw := []schemaColumn{
		{Table: "orders", Name: "total", Type: "decimal", Kind: "regular", Position: -1},
		{Table: "orders", Name: "created", Type: "timestamp", Kind: "clustering", Position: 0},
		{Table: "orders", Name: "note", Type: "text", Kind: "static", Position: -1},
		{Table: "orders", Name: "customer", Type: "int", Kind: "partition_key", Position: 0},
		{Table: "items", Name: "sku", Type: "text", Kind: "partition_key", Position: 0},
		{Table: "orders", Name: "amount", Type: "int", Kind: "regular", Position: -1},
	}
	meta := metadataFromColumns("shop", raw)
	require.Len(t, meta.Tables, 2)
	assert.Equal(t, "items", meta.Tables[0].Name)
	var names []string
	for _, c := range meta.Tables[1].Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"customer", "created", "note", "amount", "total"}, names)
	assert.Equal(t, "shop", meta.Database)
}

func TestIndexTargetAndViews(t *testing.T) {
	assert.Equal(t, "tags", indexTarget("values(tags)"))
	assert.Equal(t, "Email", indexTarget(`"Email"`))
	assert.Equal(t, "state", indexTarget("state"))
	assert.Equal(t, `SELECT * FROM "shop"."orders" WHERE state IS NOT NULL`, viewDefinition("shop", "orders", "state IS NOT NULL"))
}

func TestClusterConfig(t *testing.T) {
	a := testAdapter()
	cluster, err := a.clusterConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cluster.Hosts)
	assert.Equal(t, 9042, cluster.Port)
	assert.Equal(t, "shop", cluster.Keyspace)
	assert.Equal(t, gocql.Quorum, cluster.Consistency)
	assert.Nil(t, cluster.SslOpts)
	assert.Nil(t, cluster.Authenticator)

	a.config.Username, a.config.Password = "u", "p"
	a.config.Options = map[string]interface{}{"consistency": "LOCAL_ONE"}
	cluster, err = a.clusterConfig()
	require.NoError(t, err)
	assert.Equal(t, gocql.LocalOne, cluster.Consistency)
	assert.Equal(t, gocql.PasswordAuthenticator{Username: "u", Password: "p"}, cluster.Authenticator)

	a.config.Options["consistency"] = "SOMETIMES"
	_, err = a.clusterConfig()
	assert.True(t, adapter.IsConfigurationError(err))

	a.config.Host = " "
	_, err = a.clusterConfig()
	assert.True(t, adapter.IsConfigurationError(err))
}

func TestDisconnected(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{Type: dbcapabilities.Cassandra})
	assert.Equal(t, `"Order""s"`, a.EscapeIdentifier(`Order"s`))

	assert.True(t, a.ExecuteQuery(ctx, "SELECT * FROM t").Failed())
	_, err := a.GetTables(ctx, "ks")
	assert.True(t, errors.Is(err, adapter.ErrNotConnected))
	assert.True(t, adapter.IsUnsupported(a.BeginTransaction(ctx)))
	assert.True(t, adapter.IsUnsupported(a.CommitTransaction(ctx)))
	assert.True(t, adapter.IsUnsupported(a.RollbackTransaction(ctx)))
	_, err = a.keyspace("")
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
}

// Runs against a live node when ANCHOR_TEST_CASSANDRA_HOST is set. The
// keyspace named by ANCHOR_TEST_CASSANDRA_KEYSPACE must exist.
func TestIntegration(t *testing.T) {
	host := os.Getenv("ANCHOR_TEST_CASSANDRA_HOST")
	ks := os.Getenv("ANCHOR_TEST_CASSANDRA_KEYSPACE")
	if host == "" || ks == "" {
		t.Skip("ANCHOR_TEST_CASSANDRA_HOST or ANCHOR_TEST_CASSANDRA_KEYSPACE not set")
	}
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{ID: "live", Type: dbcapabilities.Cassandra, Host: host, DatabaseName: ks,
		Options: map[string]interface{}{"consistency": "ONE"}})
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect(ctx)

	table := "t_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	res := a.ExecuteQuery(ctx, "CREATE TABLE "+table+" (k int, c int, v text, PRIMARY KEY (k, c))")
	require.False(t, res.Failed(), res.Error)
	defer a.ExecuteQuery(ctx, "DROP TABLE "+table)

	for i := 0; i < 3; i++ {
		res = a.InsertRow(ctx, table, map[string]interface{}{"k": 1, "c": i, "v": "x"})
		require.False(t, res.Failed(), res.Error)
	}
	pk, err := a.GetPrimaryKey(ctx, table, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "c"}, pk)

	data := a.GetTableData(ctx, table, adapter.TableDataOptions{
		Where: map[string]interface{}{"v": "x"}, OrderBy: []adapter.OrderBy{{Column: "c", Desc: true}}, Offset: 1, Limit: 1,
	})
	require.False(t, data.Failed(), data.Error)
	require.Equal(t, 1, data.RowCount)
	assert.Equal(t, 1, data.Rows[0]["c"])

	res = a.UpdateRow(ctx, table, map[string]interface{}{"v": "y"}, map[string]interface{}{"k": 1, "c": 0})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)
	res = a.DeleteRow(ctx, table, map[string]interface{}{"k": 1, "c": 9})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(0), *res.AffectedRows)
}
