package elasticsearch

import (
	"sort"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// indexMapping is one entry of a GET _mapping response.
type indexMapping struct {
	Mappings struct {
		Properties map[string]interface{} `json:"properties"`
	} `json:"mappings"`
}

// mappingColumns flattens mapping properties into columns. Object and
// nested fields contribute their leaves as dotted names, multi-fields
// appear as name.sub. _id comes first as the primary key.
func mappingColumns(properties map[string]interface{}) []adapter.Column {
	cols := []adapter.Column{{Name: IDField, Type: "keyword", PrimaryKey: true, OrdinalPosition: 1}}
	flatten("", properties, func(name, fieldType string) {
		cols = append(cols, adapter.Column{
			Name:            name,
			Type:            fieldType,
			Nullable:        true,
			OrdinalPosition: len(cols) + 1,
		})
	})
	return cols
}

func flatten(prefix string, properties map[string]interface{}, emit func(name, fieldType string)) {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field, ok := properties[name].(map[string]interface{})
		if !ok {
			continue
		}
		path := prefix + name
		if sub, ok := field["properties"].(map[string]interface{}); ok {
			flatten(path+".", sub, emit)
			continue
		}
		fieldType, _ := field["type"].(string)
		if fieldType == "" {
			fieldType = "object"
		}
		emit(path, fieldType)
		if multi, ok := field["fields"].(map[string]interface{}); ok {
			flatten(path+".", multi, emit)
		}
	}
}

// classify maps decoded JSON values to Elasticsearch field types.
func classify(v interface{}) string {
	switch x := v.(type) {
	case string:
		return "keyword"
	case int64:
		return "long"
	case float64:
		return "double"
	case bool:
		return "boolean"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		for _, e := range x {
			if e != nil {
				return classify(e)
			}
		}
		return adapter.InferredArray
	case nil:
		return adapter.InferredNull
	}
	return adapter.InferType(v)
}

// hit is one search hit.
type hit struct {
	ID     string                 `json:"_id"`
	Source map[string]interface{} `json:"_source"`
}

// searchResponse is the subset of a search response the adapter reads.
type searchResponse struct {
	Hits struct {
		Hits []hit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]interface{} `json:"aggregations"`
}

// hitRows flattens hits into rows keyed by source field, plus _id.
func hitRows(hits []hit) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(hits))
	for _, h := range hits {
		row := make(map[string]interface{}, len(h.Source)+1)
		for k, v := range h.Source {
			row[k] = normalize(v)
		}
		row[IDField] = h.ID
		rows = append(rows, row)
	}
	return rows
}

// aggregationRows renders each top-level aggregation as one row.
func aggregationRows(aggs map[string]interface{}) []map[string]interface{} {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		row := map[string]interface{}{"aggregation": name}
		if body, ok := normalize(aggs[name]).(map[string]interface{}); ok {
			for k, v := range body {
				row[k] = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}
