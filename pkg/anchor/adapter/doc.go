// Package adapter defines the contract shared by every database engine and
// the generic algorithms built on top of it.
//
// # Architecture
//
//   - Adapter: the contract (connection lifecycle, query execution, row
//     edits, introspection, identifier escaping)
//   - Optional capabilities: Transactor, ViewLister, RoutineLister,
//     Explainer and friends, checked by type assertion
//   - Base: default GetTableData/InsertRow/UpdateRow/DeleteRow synthesis,
//     literal transactions, TestConnection and the schema fan-out, built
//     from the Primitives of a concrete adapter
//   - Registry: engine tag to constructor, filled by engine packages in init
//
// # Usage
//
// An engine embeds Base and hands itself over as the primitive set:
//
//	type Adapter struct {
//	    adapter.Base
//	    cfg  adapter.ConnectionConfig
//	    pool *pgxpool.Pool
//	}
//
//	func New(cfg adapter.ConnectionConfig) adapter.Adapter {
//	    a := &Adapter{cfg: cfg}
//	    a.Base = adapter.NewBase(dbcapabilities.PostgreSQL, a, adapter.DollarPlaceholder)
//	    return a
//	}
//
//	func init() {
//	    adapter.Register(dbcapabilities.PostgreSQL, New)
//	}
//
// Callers construct adapters through the registry and check results rather
// than errors for query-shaped calls:
//
//	a, err := adapter.New(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := a.Connect(ctx); err != nil {
//	    return err
//	}
//	res := a.ExecuteQuery(ctx, "SELECT * FROM users WHERE id = $1", 42)
//	if res.Failed() {
//	    log.Printf("query failed: %s", res.Error)
//	}
//
// # Errors
//
// Lifecycle failures are ConnectionErrors. Introspection wraps driver
// errors in DatabaseError. Missing capabilities are
// UnsupportedOperationErrors, detectable with IsUnsupported.
package adapter
