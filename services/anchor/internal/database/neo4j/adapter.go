// Package neo4j adapts Neo4j. Node labels are exposed as tables and node
// properties as columns. Row edits are parameterized Cypher and
// transactions use an explicit driver transaction.
package neo4j

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.Neo4j, New)
}

// Adapter implements adapter.Adapter for Neo4j.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig

	mu        sync.RWMutex
	driver    neo4j.DriverWithContext
	session   neo4j.SessionWithContext
	tx        neo4j.ExplicitTransaction
	connected int32
}

// New creates a Neo4j adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.Neo4j, a, adapter.DollarPPlaceholder)
	a.ProbeQuery = "RETURN 1"
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

// EscapeIdentifier backtick quotes a label, relationship type or property.
func (a *Adapter) EscapeIdentifier(name string) string {
	return adapter.Backtick(name)
}

// GetVersion returns the kernel name, version and edition.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	out, err := a.run(ctx, "CALL dbms.components() YIELD name, versions, edition RETURN name, versions, edition", nil)
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_version", err)
	}
	for _, rec := range out.records {
		name, _ := rec.Get("name")
		if fmt.Sprint(name) != "Neo4j Kernel" {
			continue
		}
		versions, _ := rec.Get("versions")
		edition, _ := rec.Get("edition")
		if list, ok := versions.([]interface{}); ok && len(list) > 0 {
			return fmt.Sprintf("Neo4j %v %v", list[0], edition), nil
		}
	}
	return "", adapter.NewDatabaseError(a.GetDatabaseType(), "get_version", fmt.Errorf("kernel component not reported"))
}

func (a *Adapter) neo4jDriver() (neo4j.DriverWithContext, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.driver == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return a.driver, nil
}

var (
	_ adapter.Adapter        = (*Adapter)(nil)
	_ adapter.Transactor     = (*Adapter)(nil)
	_ adapter.DatabaseLister = (*Adapter)(nil)
	_ adapter.UserLister     = (*Adapter)(nil)
	_ adapter.RoleLister     = (*Adapter)(nil)
	_ adapter.RoutineLister  = (*Adapter)(nil)
	_ adapter.Explainer      = (*Adapter)(nil)
)
