// Package elasticsearch adapts Elasticsearch. Indices are tables, columns
// come from the index mapping with object properties flattened into dotted
// names, and ExecuteQuery accepts either a JSON search envelope or SQL.
package elasticsearch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.Elasticsearch, New)
}

// IDField is the document id, reported as the primary key of every index.
const IDField = "_id"

// DefaultPort is the HTTP port used when the configuration has none.
const DefaultPort = 9200

// Adapter implements adapter.Adapter for Elasticsearch over the REST API.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig

	mu        sync.RWMutex
	client    *elasticsearch.Client
	connected int32
}

// New creates an Elasticsearch adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.Elasticsearch, a, adapter.QuestionPlaceholder)
	a.Probe = a.ping
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// EscapeIdentifier quotes an index or field name for the SQL API.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.DoubleQuote(name)
}

// IsConnected reports whether Connect succeeded and Disconnect has not run.
func (a *Adapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// BeginTransaction is not supported.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "Elasticsearch has no transactions")
}

// CommitTransaction is not supported.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "Elasticsearch has no transactions")
}

// RollbackTransaction is not supported.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "Elasticsearch has no transactions")
}

// GetVersion returns version.number from the cluster info.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	es, err := a.esClient()
	if err != nil {
		return "", err
	}
	var info struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := a.decode("get_version", &info)(es.Info(es.Info.WithContext(ctx))); err != nil {
		return "", err
	}
	return info.Version.Number, nil
}

func (a *Adapter) ping(ctx context.Context) error {
	es, err := a.esClient()
	if err != nil {
		return err
	}
	return a.decode("ping", nil)(es.Ping(es.Ping.WithContext(ctx)))
}

func (a *Adapter) esClient() (*elasticsearch.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return a.client, nil
}

var (
	_ adapter.Adapter                = (*Adapter)(nil)
	_ adapter.Transactor             = (*Adapter)(nil)
	_ adapter.ViewLister             = (*Adapter)(nil)
	_ adapter.ViewDefinitionProvider = (*Adapter)(nil)
	_ adapter.Explainer              = (*Adapter)(nil)
	_ adapter.SchemaMetadataProvider = (*Adapter)(nil)
)
