package neo4j

import (
	"fmt"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// IDField matches a node by element id in where maps.
const IDField = "_id"

// cypher accumulates $pN parameters for one statement.
type cypher struct {
	quote  func(string) string
	params map[string]interface{}
}

func newCypher(quote func(string) string) *cypher {
	return &cypher{quote: quote, params: map[string]interface{}{}}
}

func (c *cypher) param(v interface{}) string {
	name := adapter.DollarPPlaceholder.ParamName(len(c.params) + 1)
	c.params[name] = v
	return "$" + name
}

// where renders "n.`a` = $p1 AND ..." in key order. _id compares the
// element id.
func (c *cypher) where(where map[string]interface{}) string {
	parts := make([]string, 0, len(where))
	for _, k := range adapter.SortedKeys(where) {
		if k == IDField {
			parts = append(parts, "elementId(n) = "+c.param(fmt.Sprint(where[k])))
			continue
		}
		if where[k] == nil {
			parts = append(parts, "n."+c.quote(k)+" IS NULL")
			continue
		}
		parts = append(parts, "n."+c.quote(k)+" = "+c.param(where[k]))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

func (c *cypher) orderBy(order []adapter.OrderBy) string {
	if len(order) == 0 {
		return ""
	}
	terms := make([]string, len(order))
	for i, o := range order {
		terms[i] = "n." + c.quote(o.Column)
		if o.Column == IDField {
			terms[i] = "elementId(n)"
		}
		if o.Desc {
			terms[i] += " DESC"
		}
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

// properties drops _id and _labels, which are not node properties.
func properties(data map[string]interface{}) map[string]interface{} {
	props := make(map[string]interface{}, len(data))
	for k, v := range data {
		if k == IDField || k == "_labels" {
			continue
		}
		props[k] = v
	}
	return props
}

func (a *Adapter) selectNodes(label string, opts adapter.TableDataOptions) (string, map[string]interface{}) {
	c := newCypher(a.EscapeIdentifier)
	stmt := "MATCH (n:" + a.EscapeIdentifier(label) + ")" + c.where(opts.Where) + " RETURN n" + c.orderBy(opts.OrderBy)
	if opts.Offset > 0 {
		stmt += " SKIP " + c.param(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		stmt += " LIMIT " + c.param(int64(opts.Limit))
	}
	return stmt, c.params
}

func (a *Adapter) createNode(label string, data map[string]interface{}) (string, map[string]interface{}) {
	c := newCypher(a.EscapeIdentifier)
	props := c.param(properties(data))
	return "CREATE (n:" + a.EscapeIdentifier(label) + " " + props + ") RETURN count(n) AS affected", c.params
}

func (a *Adapter) updateNodes(label string, data, where map[string]interface{}) (string, map[string]interface{}, error) {
	props := properties(data)
	if len(props) == 0 {
		return "", nil, fmt.Errorf("%w: no properties to update", adapter.ErrInvalidArgument)
	}
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: update requires a where condition", adapter.ErrInvalidArgument)
	}
	c := newCypher(a.EscapeIdentifier)
	cond := c.where(where)
	set := c.param(props)
	return "MATCH (n:" + a.EscapeIdentifier(label) + ")" + cond + " SET n += " + set + " RETURN count(n) AS affected", c.params, nil
}

func (a *Adapter) deleteNodes(label string, where map[string]interface{}) (string, map[string]interface{}, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: delete requires a where condition", adapter.ErrInvalidArgument)
	}
	c := newCypher(a.EscapeIdentifier)
	return "MATCH (n:" + a.EscapeIdentifier(label) + ")" + c.where(where) + " DETACH DELETE n RETURN count(n) AS affected", c.params, nil
}
