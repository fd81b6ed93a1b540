package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

type outcome struct {
	keys    []string
	records []*neo4j.Record
	summary neo4j.ResultSummary
}

// run executes cypher in the open transaction, or in a fresh write session.
// Records are collected before the session closes.
func (a *Adapter) run(ctx context.Context, cypher string, params map[string]interface{}) (*outcome, error) {
	driver, err := a.neo4jDriver()
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	tx := a.tx
	a.mu.RUnlock()

	if tx != nil {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return collect(ctx, result)
	}

	session := driver.NewSession(ctx, a.sessionConfig(neo4j.AccessModeWrite))
	defer session.Close(ctx)
	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return collect(ctx, result)
}

func collect(ctx context.Context, result neo4j.ResultWithContext) (*outcome, error) {
	keys, err := result.Keys()
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return nil, err
	}
	return &outcome{keys: keys, records: records, summary: summary}, nil
}

// bindParams maps positional params to $p1..$pN. A single map argument is
// used as the named parameter map.
func bindParams(params []interface{}) map[string]interface{} {
	if len(params) == 1 {
		if m, ok := params[0].(map[string]interface{}); ok {
			return m
		}
	}
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for i, p := range params {
		out[adapter.DollarPPlaceholder.ParamName(i+1)] = p
	}
	return out
}

// ExecuteQuery runs a Cypher statement. Statements without a RETURN report
// the number of nodes and relationships created or deleted, or the number
// of properties and labels changed when no entity was.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	if strings.TrimSpace(stmt) == "" {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "execute", "empty statement"), started)
	}
	out, err := a.run(ctx, stmt, bindParams(params))
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute", err), started)
	}
	if len(out.keys) == 0 {
		return adapter.MutationResult(affected(out.summary.Counters()), started)
	}
	rows := recordRows(out.records)
	return adapter.NewResult(columnsFor(out.keys, rows), rows, started)
}

func affected(c neo4j.Counters) int64 {
	n := c.NodesCreated() + c.NodesDeleted() + c.RelationshipsCreated() + c.RelationshipsDeleted()
	if n == 0 {
		n = c.PropertiesSet() + c.LabelsAdded() + c.LabelsRemoved()
	}
	return int64(n)
}

func recordRows(records []*neo4j.Record) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		row := make(map[string]interface{}, len(rec.Keys))
		for j, k := range rec.Keys {
			row[k] = unwrap(rec.Values[j])
		}
		rows[i] = row
	}
	return rows
}

// columnsFor keeps the RETURN order and types each column by its first
// non-null value.
func columnsFor(keys []string, rows []map[string]interface{}) []adapter.Column {
	cols := make([]adapter.Column, len(keys))
	for i, k := range keys {
		typ := adapter.InferredNull
		for _, r := range rows {
			if v := r[k]; v != nil {
				typ = adapter.InferType(v)
				break
			}
		}
		cols[i] = adapter.Column{Name: k, Type: typ, Nullable: true, OrdinalPosition: i + 1}
	}
	return cols
}

// ExplainQuery returns the plan operators depth first.
func (a *Adapter) ExplainQuery(ctx context.Context, stmt string) *adapter.QueryResult {
	started := time.Now()
	out, err := a.run(ctx, "EXPLAIN "+stmt, nil)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "explain", err), started)
	}
	var rows []map[string]interface{}
	if plan := out.summary.Plan(); plan != nil {
		rows = planRows(plan, 0, rows)
	}
	return adapter.NewResult([]adapter.Column{
		{Name: "depth", Type: adapter.InferredNumber, OrdinalPosition: 1},
		{Name: "operator", Type: adapter.InferredString, OrdinalPosition: 2},
		{Name: "identifiers", Type: adapter.InferredArray, OrdinalPosition: 3},
		{Name: "details", Type: adapter.InferredString, Nullable: true, OrdinalPosition: 4},
	}, rows, started)
}

func planRows(p neo4j.Plan, depth int, rows []map[string]interface{}) []map[string]interface{} {
	var details interface{}
	if d, ok := p.Arguments()["Details"]; ok {
		details = fmt.Sprint(d)
	}
	rows = append(rows, map[string]interface{}{
		"depth":       int64(depth),
		"operator":    p.Operator(),
		"identifiers": p.Identifiers(),
		"details":     details,
	})
	for _, child := range p.Children() {
		rows = planRows(child, depth+1, rows)
	}
	return rows
}
