package dynamodb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// expression collects the #nN name and :vN value placeholders shared by the
// condition, filter and update expressions of one request.
type expression struct {
	names  map[string]string
	byAttr map[string]string
	values map[string]types.AttributeValue
}

func newExpression() *expression {
	return &expression{
		names:  map[string]string{},
		byAttr: map[string]string{},
		values: map[string]types.AttributeValue{},
	}
}

func (e *expression) name(attr string) string {
	if ph, ok := e.byAttr[attr]; ok {
		return ph
	}
	ph := fmt.Sprintf("#n%d", len(e.names))
	e.names[ph] = attr
	e.byAttr[attr] = ph
	return ph
}

func (e *expression) value(v interface{}) (string, error) {
	av, err := toAttributeValue(v)
	if err != nil {
		return "", err
	}
	ph := fmt.Sprintf(":v%d", len(e.values))
	e.values[ph] = av
	return ph, nil
}

// equals renders "#n0 = :v0 AND ..." in key order. It returns "" for an
// empty map.
func (e *expression) equals(where map[string]interface{}) (string, error) {
	parts := make([]string, 0, len(where))
	for _, k := range adapter.SortedKeys(where) {
		v, err := e.value(where[k])
		if err != nil {
			return "", fmt.Errorf("attribute %s: %w", k, err)
		}
		parts = append(parts, e.name(k)+" = "+v)
	}
	return strings.Join(parts, " AND "), nil
}

// set renders "SET #n0 = :v0, ..." in key order.
func (e *expression) set(data map[string]interface{}) (string, error) {
	parts := make([]string, 0, len(data))
	for _, k := range adapter.SortedKeys(data) {
		v, err := e.value(data[k])
		if err != nil {
			return "", fmt.Errorf("attribute %s: %w", k, err)
		}
		parts = append(parts, e.name(k)+" = "+v)
	}
	return "SET " + strings.Join(parts, ", "), nil
}

func (e *expression) exists(attr string) string {
	return "attribute_exists(" + e.name(attr) + ")"
}

func (e *expression) notExists(attr string) string {
	return "attribute_not_exists(" + e.name(attr) + ")"
}

// Names and Values return nil when empty; DynamoDB rejects empty maps.
func (e *expression) Names() map[string]string {
	if len(e.names) == 0 {
		return nil
	}
	return e.names
}

func (e *expression) Values() map[string]types.AttributeValue {
	if len(e.values) == 0 {
		return nil
	}
	return e.values
}

func and(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " AND ")
}

// splitKey separates the primary key attributes from the rest of where. All
// key attributes must be present.
func splitKey(keys []string, where map[string]interface{}) (map[string]types.AttributeValue, map[string]interface{}, error) {
	key := make(map[string]types.AttributeValue, len(keys))
	rest := make(map[string]interface{})
	for k, v := range where {
		rest[k] = v
	}
	for _, k := range keys {
		v, ok := where[k]
		if !ok {
			return nil, nil, fmt.Errorf("%w: where must contain the full primary key (%s)",
				adapter.ErrInvalidArgument, strings.Join(keys, ", "))
		}
		av, err := toAttributeValue(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: key %s: %v", adapter.ErrInvalidArgument, k, err)
		}
		key[k] = av
		delete(rest, k)
	}
	return key, rest, nil
}
