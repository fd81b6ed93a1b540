// Package dbcapabilities describes the fifteen engines the adapter layer
// supports: canonical ids, aliases, default ports, system databases and data
// paradigms. It also parses connection URLs into connection details.
//
//	id, ok := dbcapabilities.ParseID("postgresql")
//	if ok && dbcapabilities.SupportsTransactions(id) {
//	    ...
//	}
package dbcapabilities
