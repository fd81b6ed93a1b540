package neo4j

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// unwrap converts driver values into plain maps, slices and scalars.
// Nodes keep their element id and labels under _id and _labels.
func unwrap(v interface{}) interface{} {
	switch val := v.(type) {
	case dbtype.Node:
		return nodeMap(val, true)
	case dbtype.Relationship:
		m := unwrapMap(val.Props)
		m["_id"] = val.ElementId
		m["_type"] = val.Type
		m["_start"] = val.StartElementId
		m["_end"] = val.EndElementId
		return m
	case dbtype.Path:
		nodes := make([]interface{}, len(val.Nodes))
		for i, n := range val.Nodes {
			nodes[i] = unwrap(n)
		}
		rels := make([]interface{}, len(val.Relationships))
		for i, r := range val.Relationships {
			rels[i] = unwrap(r)
		}
		return map[string]interface{}{"nodes": nodes, "relationships": rels}
	case dbtype.Date:
		return val.Time().Format("2006-01-02")
	case dbtype.LocalTime:
		return val.String()
	case dbtype.Time:
		return val.String()
	case dbtype.LocalDateTime:
		return val.String()
	case dbtype.Duration:
		return val.String()
	case dbtype.Point2D:
		return map[string]interface{}{"srid": int64(val.SpatialRefId), "x": val.X, "y": val.Y}
	case dbtype.Point3D:
		return map[string]interface{}{"srid": int64(val.SpatialRefId), "x": val.X, "y": val.Y, "z": val.Z}
	case time.Time:
		return val
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = unwrap(item)
		}
		return out
	case map[string]interface{}:
		return unwrapMap(val)
	}
	return v
}

func unwrapMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+4)
	for k, v := range m {
		out[k] = unwrap(v)
	}
	return out
}

// nodeMap flattens a node into its properties plus _id and, optionally,
// _labels.
func nodeMap(n dbtype.Node, labels bool) map[string]interface{} {
	m := unwrapMap(n.Props)
	m["_id"] = n.ElementId
	if labels {
		m["_labels"] = n.Labels
	}
	return m
}

// classify types raw property values for column inference.
func classify(v interface{}) string {
	switch v.(type) {
	case dbtype.Date, dbtype.LocalTime, dbtype.Time, dbtype.LocalDateTime, dbtype.Duration, time.Time:
		return adapter.InferredDate
	case dbtype.Point2D, dbtype.Point3D:
		return adapter.InferredMap
	}
	return adapter.InferType(v)
}
