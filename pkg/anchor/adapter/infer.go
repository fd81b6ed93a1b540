package adapter

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Inferred type names shared by the schemaless engines.
const (
	InferredString  = "string"
	InferredNumber  = "number"
	InferredBoolean = "boolean"
	InferredDate    = "date"
	InferredArray   = "array"
	InferredMap     = "map"
	InferredBinary  = "binary"
	InferredNull    = "null"
)

// InferType classifies a plain Go value. Engines with their own wrapper
// types run their classifier first and fall back to this one.
func InferType(v interface{}) string {
	switch v.(type) {
	case nil:
		return InferredNull
	case string:
		return InferredString
	case bool:
		return InferredBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return InferredNumber
	case time.Time, *time.Time:
		return InferredDate
	case []byte:
		return InferredBinary
	case map[string]interface{}:
		return InferredMap
	case []interface{}:
		return InferredArray
	case fmt.Stringer:
		return InferredString
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return InferredArray
	case reflect.Map, reflect.Struct:
		return InferredMap
	case reflect.Ptr:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return InferredNull
		}
		return InferType(rv.Elem().Interface())
	}
	return UnknownType
}

// FieldSampler unions the fields observed across sampled documents. Field
// order is order of first appearance (keys of one document in lexical
// order); the first non-null type seen for a field wins.
type FieldSampler struct {
	sampleSize int
	primaryKey string
	classify   func(interface{}) string

	observed int
	order    []string
	types    map[string]string
}

// NewFieldSampler creates a sampler that accepts up to sampleSize documents.
// primaryKey, when not empty, is always reported first and flagged as key.
// classify defaults to InferType.
func NewFieldSampler(sampleSize int, primaryKey string, classify func(interface{}) string) *FieldSampler {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if classify == nil {
		classify = InferType
	}
	return &FieldSampler{
		sampleSize: sampleSize,
		primaryKey: primaryKey,
		classify:   classify,
		types:      make(map[string]string),
	}
}

// SampleSize returns the configured number of documents to sample.
func (s *FieldSampler) SampleSize() int {
	return s.sampleSize
}

// Full reports whether the sampler has seen sampleSize documents.
func (s *FieldSampler) Full() bool {
	return s.observed >= s.sampleSize
}

// Observe records one document. Documents past the sample size are ignored.
func (s *FieldSampler) Observe(doc map[string]interface{}) {
	if s.Full() {
		return
	}
	s.observed++

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t := s.classify(doc[k])
		existing, seen := s.types[k]
		if !seen {
			s.order = append(s.order, k)
			s.types[k] = t
			continue
		}
		if existing == InferredNull && t != InferredNull {
			s.types[k] = t
		}
	}
}

// Columns returns the inferred columns.
func (s *FieldSampler) Columns() []Column {
	cols := make([]Column, 0, len(s.order)+1)
	if s.primaryKey != "" {
		t, ok := s.types[s.primaryKey]
		if !ok {
			t = InferredString
		}
		cols = append(cols, Column{Name: s.primaryKey, Type: t, PrimaryKey: true, OrdinalPosition: 1})
	}
	for _, name := range s.order {
		if name == s.primaryKey {
			continue
		}
		cols = append(cols, Column{
			Name:            name,
			Type:            s.types[name],
			Nullable:        true,
			OrdinalPosition: len(cols) + 1,
		})
	}
	return cols
}

// ColumnsFromRows infers result columns from map rows. primaryKey is put
// first when at least one row carries it.
func ColumnsFromRows(rows []map[string]interface{}, primaryKey string, classify func(interface{}) string) []Column {
	if len(rows) == 0 {
		return []Column{}
	}
	pk := ""
	for _, row := range rows {
		if _, ok := row[primaryKey]; ok && primaryKey != "" {
			pk = primaryKey
			break
		}
	}
	sampler := NewFieldSampler(len(rows), pk, classify)
	for _, row := range rows {
		sampler.Observe(row)
	}
	return sampler.Columns()
}
