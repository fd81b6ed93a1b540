// Package firestore adapts Cloud Firestore. Top-level collections are
// tables and the document ID is surfaced as the _id column. ExecuteQuery
// accepts the JSON command envelope shared with MongoDB or a chained query
// expression such as users.where("age", ">=", 21).limit(10).
package firestore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.Firestore, New)
}

// IDField is the synthetic column holding the document ID.
const IDField = "_id"

// Adapter implements adapter.Adapter for Firestore.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig

	mu        sync.RWMutex
	client    *firestore.Client
	connected int32
}

// New creates a Firestore adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.Firestore, a, adapter.QuestionPlaceholder)
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

var simpleFieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EscapeIdentifier quotes a field path segment with backticks when it is not
// a simple name. Backticks and backslashes inside are backslash escaped.
func (a *Adapter) EscapeIdentifier(name string) string {
	if simpleFieldName.MatchString(name) {
		return name
	}
	r := strings.NewReplacer(`\`, `\\`, "`", "\\`")
	return "`" + r.Replace(name) + "`"
}

// BeginTransaction is not supported. Firestore transactions are retried
// closures and cannot span separate calls.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "transactions run as retried closures")
}

// CommitTransaction is not supported.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "transactions run as retried closures")
}

// RollbackTransaction is not supported.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	return a.Unsupported("transactions", "transactions run as retried closures")
}

// GetVersion reports the service and database, Firestore has no server version.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	if _, err := a.firestoreClient(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Cloud Firestore (%s/%s)", a.config.ProjectID, a.databaseID()), nil
}

func (a *Adapter) probe(ctx context.Context) error {
	client, err := a.firestoreClient()
	if err != nil {
		return err
	}
	_, err = client.Collections(ctx).Next()
	if err == iterator.Done {
		return nil
	}
	return err
}

func (a *Adapter) firestoreClient() (*firestore.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return a.client, nil
}

func (a *Adapter) collection(name string) (*firestore.CollectionRef, error) {
	client, err := a.firestoreClient()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, adapter.InvalidArgument(a.GetDatabaseType(), "collection", "collection name is required")
	}
	coll := client.Collection(name)
	if coll == nil {
		return nil, adapter.InvalidArgument(a.GetDatabaseType(), "collection", "invalid collection path "+name)
	}
	return coll, nil
}

var (
	_ adapter.Adapter        = (*Adapter)(nil)
	_ adapter.Transactor     = (*Adapter)(nil)
	_ adapter.DatabaseLister = (*Adapter)(nil)
)
