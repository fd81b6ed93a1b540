// Package mongodb adapts MongoDB. Collections are tables, columns are
// inferred from sampled documents and ExecuteQuery takes a JSON command
// envelope instead of SQL.
package mongodb

import (
	"context"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.MongoDB, New)
}

// IDField is the primary key of every collection.
const IDField = "_id"

// Adapter implements adapter.Adapter for MongoDB.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig

	mu        sync.RWMutex
	client    *mongo.Client
	db        *mongo.Database
	connected int32
}

// New creates a MongoDB adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.MongoDB, a, adapter.QuestionPlaceholder)
	a.Probe = a.ping
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// EscapeIdentifier returns name unchanged. Collection and field names are
// never spliced into a query string.
func (a *Adapter) EscapeIdentifier(name string) string {
	return name
}

// IsConnected reports whether Connect succeeded and Disconnect has not run.
func (a *Adapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// BeginTransaction is not supported. Multi-document transactions need a
// replica set session, which this adapter does not keep.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "sessions are not pinned")
}

// CommitTransaction is not supported.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "sessions are not pinned")
}

// RollbackTransaction is not supported.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "sessions are not pinned")
}

// GetVersion returns the server version from buildInfo.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	db, err := a.database("")
	if err != nil {
		return "", err
	}
	var info struct {
		Version string `bson:"version"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_version", err)
	}
	return info.Version, nil
}

func (a *Adapter) ping(ctx context.Context) error {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()
	if client == nil {
		return adapter.NotConnected(a.GetDatabaseType())
	}
	return client.Ping(ctx, readpref.Primary())
}

// database returns the named database, or the configured one when name is
// empty.
func (a *Adapter) database(name string) (*mongo.Database, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	if name == "" || name == a.db.Name() {
		return a.db, nil
	}
	return a.client.Database(name), nil
}

func (a *Adapter) collection(name string) (*mongo.Collection, error) {
	db, err := a.database("")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, adapter.InvalidArgument(a.GetDatabaseType(), "collection", "collection name is required")
	}
	return db.Collection(name), nil
}

var (
	_ adapter.Adapter                = (*Adapter)(nil)
	_ adapter.Transactor             = (*Adapter)(nil)
	_ adapter.ViewLister             = (*Adapter)(nil)
	_ adapter.ViewDefinitionProvider = (*Adapter)(nil)
	_ adapter.UserLister             = (*Adapter)(nil)
	_ adapter.RoleLister             = (*Adapter)(nil)
	_ adapter.DatabaseLister         = (*Adapter)(nil)
	_ adapter.Explainer              = (*Adapter)(nil)
)
