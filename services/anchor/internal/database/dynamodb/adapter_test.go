package dynamodb

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func TestExpression(t *testing.T) {
	e := newExpression()
	set, err := e.set(map[string]interface{}{"name": "Ada", "age": 36})
	require.NoError(t, err)
	assert.Equal(t, "SET #n0 = :v0, #n1 = :v1", set)

	cond, err := e.equals(map[string]interface{}{"name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "#n1 = :v2", cond, "names are reused across clauses")
	assert.Equal(t, "attribute_exists(#n2)", e.exists("id"))

	assert.Equal(t, map[string]string{"#n0": "age", "#n1": "name", "#n2": "id"}, e.Names())
	assert.Len(t, e.Values(), 3)
	assert.Equal(t, "a AND b", and("a", "", "b"))

	empty := newExpression()
	cond, err = empty.equals(nil)
	require.NoError(t, err)
	assert.Empty(t, cond)
	assert.Nil(t, empty.Names())
	assert.Nil(t, empty.Values())
}

func TestSplitKey(t *testing.T) {
	key, rest, err := splitKey([]string{"pk", "sk"}, map[string]interface{}{"pk": "a", "sk": 1, "state": "open"})
	require.NoError(t, err)
	assert.Len(t, key, 2)
	assert.Equal(t, map[string]interface{}{"state": "open"}, rest)

	_, _, err = splitKey([]string{"pk", "sk"}, map[string]interface{}{"pk": "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "pk, sk")
}

func testDescription() *types.TableDescription {
	return &types.TableDescription{
		TableName: aws.String("orders"),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("created"), KeyType: types.KeyTypeRange},
			{AttributeName: aws.String("customer"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("customer"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("created"), AttributeType: types.ScalarAttributeTypeN},
			{AttributeName: aws.String("state"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndexDescription{{
			IndexName: aws.String("by_state"),
			KeySchema: []types.KeySchemaElement{{AttributeName: aws.String("state"), KeyType: types.KeyTypeHash}},
		}},
		LocalSecondaryIndexes: []types.LocalSecondaryIndexDescription{{
			IndexName: aws.String("by_total"),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("customer"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("total"), KeyType: types.KeyTypeRange},
			},
		}},
	}
}

func TestIndexesFromDescription(t *testing.T) {
	idx := indexesFromDescription(testDescription())
	require.Len(t, idx, 3)
	assert.Equal(t, adapter.Index{Name: "PRIMARY", Columns: []string{"customer", "created"}, Unique: true, Primary: true}, idx[0])
	assert.Equal(t, "by_state", idx[1].Name)
	assert.Equal(t, []string{"customer", "total"}, idx[2].Columns)
}

func TestMergeColumns(t *testing.T) {
	sampled := []adapter.Column{
		{Name: "created", Type: adapter.InferredNumber},
		{Name: "state", Type: adapter.InferredString},
		{Name: "total", Type: adapter.InferredNumber},
	}
	cols := mergeColumns(testDescription(), sampled)
	require.Len(t, cols, 4)
	assert.Equal(t, adapter.Column{Name: "customer", Type: "string", PrimaryKey: true, OrdinalPosition: 1}, cols[0])
	assert.Equal(t, adapter.Column{Name: "created", Type: "number", PrimaryKey: true, OrdinalPosition: 2}, cols[1])
	assert.Equal(t, "state", cols[2].Name)
	assert.True(t, cols[2].Nullable)
	assert.Equal(t, 4, cols[3].OrdinalPosition)
}

func TestEndpoint(t *testing.T) {
	a := newAdapter(adapter.ConnectionConfig{Type: dbcapabilities.DynamoDB, Host: "localhost", Port: 8000})
	assert.Equal(t, "http://localhost:8000", a.endpoint())
	assert.Equal(t, DefaultRegion, a.region())

	a = newAdapter(adapter.ConnectionConfig{Host: "dynamodb.eu-west-1.amazonaws.com", Region: "eu-west-1"})
	assert.Empty(t, a.endpoint())
	assert.Equal(t, "eu-west-1", a.region())

	a = newAdapter(adapter.ConnectionConfig{Endpoint: "https://ddb.internal", Host: "ignored"})
	assert.Equal(t, "https://ddb.internal", a.endpoint())
}

func TestDisconnected(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{Type: dbcapabilities.DynamoDB})
	assert.Equal(t, `"my""table"`, a.EscapeIdentifier(`my"table`))

	res := a.ExecuteQuery(ctx, "SELECT * FROM t")
	assert.True(t, res.Failed())

	_, err := a.GetTables(ctx, "")
	assert.True(t, errors.Is(err, adapter.ErrNotConnected))
	assert.True(t, errors.Is(a.BeginTransaction(ctx), adapter.ErrNotConnected))
	_, err = a.GetVersion(ctx)
	assert.True(t, errors.Is(err, adapter.ErrNotConnected))
}

func TestTransactionBuffer(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{Type: dbcapabilities.DynamoDB})
	a.client = dynamodb.New(dynamodb.Options{Region: DefaultRegion})

	assert.False(t, a.enqueue(types.TransactWriteItem{}))
	require.NoError(t, a.BeginTransaction(ctx))
	assert.True(t, errors.Is(a.BeginTransaction(ctx), adapter.ErrTransactionFailed))
	assert.True(t, a.enqueue(types.TransactWriteItem{}))
	require.NoError(t, a.RollbackTransaction(ctx))
	assert.Empty(t, a.tx)
	assert.True(t, errors.Is(a.RollbackTransaction(ctx), adapter.ErrTransactionFailed))

	// An empty transaction commits without a request.
	require.NoError(t, a.BeginTransaction(ctx))
	require.NoError(t, a.CommitTransaction(ctx))

	require.NoError(t, a.BeginTransaction(ctx))
	for i := 0; i <= maxTransactItems; i++ {
		a.enqueue(types.TransactWriteItem{})
	}
	err := a.CommitTransaction(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrTransactionFailed))
	assert.Contains(t, err.Error(), "limit of 100")
}

// Runs against DynamoDB Local when ANCHOR_TEST_DYNAMODB_ENDPOINT is set.
func TestIntegration(t *testing.T) {
	endpoint := os.Getenv("ANCHOR_TEST_DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("ANCHOR_TEST_DYNAMODB_ENDPOINT not set")
	}
	ctx := context.Background()
	a := newAdapter(adapter.ConnectionConfig{
		ID: "live", Type: dbcapabilities.DynamoDB, Endpoint: endpoint,
		AccessKeyID: "local", SecretAccessKey: "local",
	})
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect(ctx)

	table := "t_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	_, err := a.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(table),
		BillingMode:          types.BillingModePayPerRequest,
		KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
		AttributeDefinitions: []types.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS}},
	})
	require.NoError(t, err)
	defer a.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(table)})

	res := a.InsertRow(ctx, table, map[string]interface{}{"id": "a", "n": 1})
	require.False(t, res.Failed(), res.Error)
	assert.True(t, a.InsertRow(ctx, table, map[string]interface{}{"id": "a"}).Failed())

	res = a.UpdateRow(ctx, table, map[string]interface{}{"n": 2}, map[string]interface{}{"id": "a"})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(1), *res.AffectedRows)
	res = a.UpdateRow(ctx, table, map[string]interface{}{"n": 3}, map[string]interface{}{"id": "missing"})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, int64(0), *res.AffectedRows)

	res = a.ExecuteQuery(ctx, `SELECT * FROM "`+table+`" WHERE id = ?`, "a")
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, int64(2), res.Rows[0]["n"])

	require.NoError(t, a.BeginTransaction(ctx))
	require.False(t, a.InsertRow(ctx, table, map[string]interface{}{"id": "b"}).Failed())
	require.False(t, a.DeleteRow(ctx, table, map[string]interface{}{"id": "a"}).Failed())
	require.NoError(t, a.CommitTransaction(ctx))

	data := a.GetTableData(ctx, table, adapter.TableDataOptions{})
	require.False(t, data.Failed(), data.Error)
	require.Equal(t, 1, data.RowCount)
	assert.Equal(t, "b", data.Rows[0]["id"])

	pk, err := a.GetPrimaryKey(ctx, table, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)
}
