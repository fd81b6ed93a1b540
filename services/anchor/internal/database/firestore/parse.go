package firestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Query operations.
const (
	OpFind      = "find"
	OpFindOne   = "findOne"
	OpGetDoc    = "doc"
	OpCount     = "count"
	OpInsertOne = "insertOne"
	OpUpdateOne = "updateOne"
	OpDeleteOne = "deleteOne"
)

// Filter is one where condition.
type Filter struct {
	Path  string
	Op    string
	Value interface{}
}

// Query is the parsed form of both the JSON envelope and the chained
// expression syntax.
type Query struct {
	Collection string
	Operation  string
	DocID      string
	Filters    []Filter
	OrderBy    []adapter.OrderBy
	Limit      int
	Offset     int
	Document   map[string]interface{}
	Update     map[string]interface{}
}

var validOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"in": true, "not-in": true, "array-contains": true, "array-contains-any": true,
}

// Mongo style operators accepted in envelope filters.
var envelopeOps = map[string]string{
	"$eq": "==", "$ne": "!=", "$lt": "<", "$lte": "<=", "$gt": ">", "$gte": ">=",
	"$in": "in", "$nin": "not-in",
}

func invalidQuery(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", adapter.ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// ParseQuery parses a JSON envelope when stmt starts with "{", the chained
// expression syntax otherwise.
func ParseQuery(stmt string) (*Query, error) {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil, invalidQuery("empty query")
	}
	if strings.HasPrefix(stmt, "{") {
		return parseEnvelope(stmt)
	}
	return parseChain(stmt)
}

type envelope struct {
	Collection string                 `json:"collection"`
	Operation  string                 `json:"operation"`
	ID         string                 `json:"id,omitempty"`
	Filter     map[string]interface{} `json:"filter,omitempty"`
	Sort       json.RawMessage        `json:"sort,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	Skip       int                    `json:"skip,omitempty"`
	Document   map[string]interface{} `json:"document,omitempty"`
	Update     map[string]interface{} `json:"update,omitempty"`
}

func parseEnvelope(stmt string) (*Query, error) {
	var env envelope
	dec := json.NewDecoder(strings.NewReader(stmt))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, invalidQuery("expected a JSON command envelope: %v", err)
	}
	if env.Collection == "" {
		return nil, invalidQuery("collection is required")
	}
	if env.Limit < 0 || env.Skip < 0 {
		return nil, invalidQuery("limit and skip must not be negative")
	}

	q := &Query{
		Collection: env.Collection,
		Operation:  env.Operation,
		DocID:      env.ID,
		Limit:      env.Limit,
		Offset:     env.Skip,
		Document:   plainMap(env.Document),
	}
	if q.Operation == "" {
		q.Operation = OpFind
	}

	filters, err := envelopeFilters(env.Filter)
	if err != nil {
		return nil, err
	}
	q.Filters = filters

	if q.OrderBy, err = envelopeSort(env.Sort); err != nil {
		return nil, err
	}

	update := plainMap(env.Update)
	if set, ok := update["$set"].(map[string]interface{}); ok {
		update = set
	}
	q.Update = update

	switch q.Operation {
	case OpFind, OpFindOne, OpCount, OpDeleteOne:
	case OpGetDoc:
		if q.DocID == "" {
			return nil, invalidQuery("doc requires id")
		}
	case OpInsertOne:
		if len(q.Document) == 0 {
			return nil, invalidQuery("insertOne requires document")
		}
	case OpUpdateOne:
		if len(q.Update) == 0 {
			return nil, invalidQuery("updateOne requires update")
		}
	default:
		return nil, invalidQuery("unsupported operation %q", q.Operation)
	}
	return q, nil
}

func envelopeFilters(filter map[string]interface{}) ([]Filter, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Filter
	for _, path := range keys {
		v := plainValue(filter[path])
		cond, ok := v.(map[string]interface{})
		if !ok || !hasOperatorKeys(cond) {
			out = append(out, Filter{Path: path, Op: "==", Value: v})
			continue
		}
		ops := make([]string, 0, len(cond))
		for op := range cond {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			fsOp, ok := envelopeOps[op]
			if !ok {
				return nil, invalidQuery("unsupported filter operator %s on %s", op, path)
			}
			out = append(out, Filter{Path: path, Op: fsOp, Value: cond[op]})
		}
	}
	return out, nil
}

func hasOperatorKeys(m map[string]interface{}) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// envelopeSort reads an ordered {"field": 1 | -1} object.
func envelopeSort(raw json.RawMessage) ([]adapter.OrderBy, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, invalidQuery("sort must be an object")
	}
	var order []adapter.OrderBy
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, invalidQuery("sort: %v", err)
		}
		field, _ := tok.(string)
		var dir float64
		if err := dec.Decode(&dir); err != nil {
			return nil, invalidQuery("sort direction for %s must be 1 or -1", field)
		}
		order = append(order, adapter.OrderBy{Column: field, Desc: dir < 0})
	}
	return order, nil
}

// plainValue converts json.Number into int64 or float64, recursively.
func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		return plainMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	}
	return v
}

func plainMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

// parseChain parses collection.method(args).method(args)... Supported
// methods: where(path, op, value), orderBy(path[, "asc"|"desc"]),
// limit(n), offset(n), doc(id), get() and count().
func parseChain(stmt string) (*Query, error) {
	dot := strings.IndexByte(stmt, '.')
	if dot <= 0 {
		return nil, invalidQuery("expected collection.method(...)")
	}
	q := &Query{Collection: strings.TrimSpace(stmt[:dot]), Operation: OpFind}
	if strings.ContainsAny(q.Collection, " \t\"'()") {
		return nil, invalidQuery("invalid collection name %q", q.Collection)
	}

	lx := &lexer{src: stmt[dot:]}
	for {
		lx.skipSpace()
		if lx.done() {
			break
		}
		if !lx.consume('.') {
			return nil, lx.errorf("expected '.'")
		}
		name := lx.ident()
		if name == "" {
			return nil, lx.errorf("expected method name")
		}
		args, err := lx.args()
		if err != nil {
			return nil, err
		}
		if err := q.apply(name, args); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (q *Query) apply(method string, args []interface{}) error {
	want := func(n ...int) error {
		for _, c := range n {
			if len(args) == c {
				return nil
			}
		}
		return invalidQuery("%s takes %v arguments, got %d", method, n, len(args))
	}

	switch method {
	case "where":
		if err := want(3); err != nil {
			return err
		}
		path, ok1 := args[0].(string)
		op, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return invalidQuery("where expects (path, operator, value)")
		}
		if !validOps[op] {
			return invalidQuery("unsupported operator %q", op)
		}
		q.Filters = append(q.Filters, Filter{Path: path, Op: op, Value: args[2]})
	case "orderBy":
		if err := want(1, 2); err != nil {
			return err
		}
		path, ok := args[0].(string)
		if !ok {
			return invalidQuery("orderBy expects a field path")
		}
		o := adapter.OrderBy{Column: path}
		if len(args) == 2 {
			dir, _ := args[1].(string)
			switch strings.ToLower(dir) {
			case "asc":
			case "desc":
				o.Desc = true
			default:
				return invalidQuery("orderBy direction must be asc or desc")
			}
		}
		q.OrderBy = append(q.OrderBy, o)
	case "limit", "offset":
		if err := want(1); err != nil {
			return err
		}
		n, ok := args[0].(int64)
		if !ok || n < 0 {
			return invalidQuery("%s expects a non-negative integer", method)
		}
		if method == "limit" {
			q.Limit = int(n)
		} else {
			q.Offset = int(n)
		}
	case "doc":
		if err := want(1); err != nil {
			return err
		}
		id, ok := args[0].(string)
		if !ok || id == "" {
			return invalidQuery("doc expects a document id")
		}
		q.Operation = OpGetDoc
		q.DocID = id
	case "get":
		if err := want(0); err != nil {
			return err
		}
	case "count":
		if err := want(0); err != nil {
			return err
		}
		q.Operation = OpCount
	default:
		return invalidQuery("unknown method %q", method)
	}
	return nil
}

// lexer reads method calls and literal arguments. Strings take single or
// double quotes with backslash escapes.
type lexer struct {
	src string
	pos int
}

func (l *lexer) done() bool { return l.pos >= len(l.src) }

func (l *lexer) errorf(format string, args ...interface{}) error {
	return invalidQuery("%s at offset %d", fmt.Sprintf(format, args...), l.pos)
}

func (l *lexer) skipSpace() {
	for !l.done() && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
}

func (l *lexer) consume(c byte) bool {
	l.skipSpace()
	if !l.done() && l.src[l.pos] == c {
		l.pos++
		return true
	}
	return false
}

func (l *lexer) ident() string {
	l.skipSpace()
	start := l.pos
	for !l.done() {
		c := l.src[l.pos]
		if c == '_' || unicode.IsLetter(rune(c)) || (l.pos > start && unicode.IsDigit(rune(c))) {
			l.pos++
			continue
		}
		break
	}
	return l.src[start:l.pos]
}

func (l *lexer) args() ([]interface{}, error) {
	if !l.consume('(') {
		return nil, l.errorf("expected '('")
	}
	var out []interface{}
	if l.consume(')') {
		return out, nil
	}
	for {
		v, err := l.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if l.consume(')') {
			return out, nil
		}
		if !l.consume(',') {
			return nil, l.errorf("expected ',' or ')'")
		}
	}
}

func (l *lexer) value() (interface{}, error) {
	l.skipSpace()
	if l.done() {
		return nil, l.errorf("unexpected end of query")
	}
	switch c := l.src[l.pos]; {
	case c == '"' || c == '\'':
		return l.str(c)
	case c == '[':
		l.pos++
		var list []interface{}
		if l.consume(']') {
			return []interface{}{}, nil
		}
		for {
			v, err := l.value()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
			if l.consume(']') {
				return list, nil
			}
			if !l.consume(',') {
				return nil, l.errorf("expected ',' or ']'")
			}
		}
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return l.number()
	}

	switch word := l.ident(); word {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "":
		return nil, l.errorf("unexpected %q", l.src[l.pos])
	default:
		return nil, l.errorf("unexpected word %q", word)
	}
}

func (l *lexer) str(quote byte) (string, error) {
	l.pos++
	var b strings.Builder
	for !l.done() {
		c := l.src[l.pos]
		l.pos++
		switch {
		case c == '\\' && !l.done():
			b.WriteByte(l.src[l.pos])
			l.pos++
		case c == quote:
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", l.errorf("unterminated string")
}

func (l *lexer) number() (interface{}, error) {
	start := l.pos
	for !l.done() && strings.IndexByte("+-0123456789.eE", l.src[l.pos]) >= 0 {
		l.pos++
	}
	text := l.src[start:l.pos]
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, invalidQuery("invalid number %q", text)
	}
	return f, nil
}
