// Package dynamodb adapts Amazon DynamoDB. Tables come from DescribeTable,
// ExecuteQuery runs PartiQL and row edits use the item API. Transactions
// buffer row edits and commit them with TransactWriteItems.
package dynamodb

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.DynamoDB, New)
}

// DefaultRegion is used when the configuration names none.
const DefaultRegion = "us-east-1"

// maxTransactItems is the TransactWriteItems limit.
const maxTransactItems = 100

// Adapter implements adapter.Adapter for DynamoDB.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig

	mu        sync.RWMutex
	client    *dynamodb.Client
	tx        []types.TransactWriteItem
	inTx      bool
	connected int32
}

// New creates a DynamoDB adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.DynamoDB, a, adapter.QuestionPlaceholder)
	a.Probe = a.probe
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// IsConnected reports whether Connect succeeded and Disconnect has not run.
func (a *Adapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// EscapeIdentifier double quotes a PartiQL identifier.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.DoubleQuote(name)
}

// GetVersion reports the service and region. DynamoDB has no server version.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	if _, err := a.dynamoClient(); err != nil {
		return "", err
	}
	return "Amazon DynamoDB (" + a.region() + ")", nil
}

func (a *Adapter) dynamoClient() (*dynamodb.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return a.client, nil
}

var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.Transactor = (*Adapter)(nil)
)
