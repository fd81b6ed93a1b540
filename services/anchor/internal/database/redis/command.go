package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// processor runs one command. *redis.Client and the *redis.Conn pinned by
// a transaction both satisfy it.
type processor interface {
	Process(ctx context.Context, cmd redis.Cmder) error
}

func do(ctx context.Context, p processor, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx, args...)
	_ = p.Process(ctx, cmd)
	return cmd
}

// Tokenize splits a command line the way redis-cli does. Double quoted
// arguments take \n \r \t \\ \" and \xHH escapes, single quoted arguments
// only \'. A closing quote must be followed by whitespace or the end.
func Tokenize(line string) ([]string, error) {
	var (
		args []string
		cur  strings.Builder
		in   bool
	)
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if in {
				args = append(args, cur.String())
				cur.Reset()
				in = false
			}
			i++
		case (c == '"' || c == '\'') && !in:
			s, next, err := quoted(line, i)
			if err != nil {
				return nil, err
			}
			if next < len(line) && !isSpace(line[next]) {
				return nil, fmt.Errorf("%w: closing quote must be followed by a space", adapter.ErrInvalidQuery)
			}
			args = append(args, s)
			i = next
		default:
			cur.WriteByte(c)
			in = true
			i++
		}
	}
	if in {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", adapter.ErrInvalidQuery)
	}
	return args, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// quoted reads the quoted argument starting at line[start] and returns it
// with the index just past the closing quote.
func quoted(line string, start int) (string, int, error) {
	q := line[start]
	var b strings.Builder
	for i := start + 1; i < len(line); i++ {
		c := line[i]
		if c == q {
			return b.String(), i + 1, nil
		}
		if c != '\\' || i+1 >= len(line) {
			b.WriteByte(c)
			continue
		}
		next := line[i+1]
		if q == '\'' {
			if next == '\'' {
				b.WriteByte('\'')
				i++
			} else {
				b.WriteByte(c)
			}
			continue
		}
		i++
		switch next {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'x':
			if i+2 < len(line) {
				if v, err := strconv.ParseUint(line[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			b.WriteByte('x')
		default:
			b.WriteByte(next)
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated quote", adapter.ErrInvalidQuery)
}

// ExecuteQuery tokenizes stmt as a command line and sends it with Do.
// Positional params are appended as extra arguments. Inside a transaction
// commands are queued on the pinned connection.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	p, err := a.writer()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	tokens, err := Tokenize(stmt)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute_query", err), started)
	}

	args := make([]interface{}, 0, len(tokens)+len(params))
	for _, t := range tokens {
		args = append(args, t)
	}
	args = append(args, params...)

	reply, err := do(ctx, p, args...).Result()
	if errors.Is(err, redis.Nil) {
		return adapter.NewResult(nil, nil, started)
	}
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), strings.ToLower(tokens[0]), err), started)
	}
	rows := replyRows(tokens, reply)
	return adapter.NewResult(adapter.ColumnsFromRows(rows, "", nil), rows, started)
}

// pairCommand reports whether the reply of the command is a list of
// field/value pairs.
func pairCommand(tokens []string) bool {
	name := strings.ToUpper(tokens[0])
	if name == "HGETALL" {
		return true
	}
	if name == "CONFIG" && len(tokens) > 1 && strings.EqualFold(tokens[1], "GET") {
		return true
	}
	for _, t := range tokens[1:] {
		if strings.EqualFold(t, "WITHSCORES") || strings.EqualFold(t, "WITHVALUES") {
			return true
		}
	}
	return false
}

// replyRows shapes a reply into rows: maps and pair lists become
// field/value rows, other arrays index/value rows and scalars one result row.
func replyRows(tokens []string, reply interface{}) []map[string]interface{} {
	switch val := reply.(type) {
	case nil:
		return nil
	case map[interface{}]interface{}:
		return mapRows(val)
	case map[string]interface{}:
		m := make(map[interface{}]interface{}, len(val))
		for k, v := range val {
			m[k] = v
		}
		return mapRows(m)
	case []interface{}:
		if pairCommand(tokens) {
			if rows, ok := pairRows(val); ok {
				return rows
			}
		}
		rows := make([]map[string]interface{}, len(val))
		for i, item := range val {
			rows[i] = map[string]interface{}{"index": int64(i), "value": normalizeReply(item)}
		}
		return rows
	}
	return []map[string]interface{}{{"result": normalizeReply(reply)}}
}

func mapRows(m map[interface{}]interface{}) []map[string]interface{} {
	fields := make([]string, 0, len(m))
	values := make(map[string]interface{}, len(m))
	for k, v := range m {
		f := fmt.Sprint(k)
		fields = append(fields, f)
		values[f] = v
	}
	sort.Strings(fields)
	rows := make([]map[string]interface{}, len(fields))
	for i, f := range fields {
		rows[i] = map[string]interface{}{"field": f, "value": normalizeReply(values[f])}
	}
	return rows
}

// pairRows accepts RESP3 nested pairs ([[a, 1], [b, 2]]) and RESP2 flat
// pairs ([a, 1, b, 2]).
func pairRows(items []interface{}) ([]map[string]interface{}, bool) {
	nested := len(items) > 0
	for _, item := range items {
		if pair, ok := item.([]interface{}); !ok || len(pair) != 2 {
			nested = false
			break
		}
	}
	var rows []map[string]interface{}
	switch {
	case nested:
		for _, item := range items {
			pair := item.([]interface{})
			rows = append(rows, map[string]interface{}{"field": normalizeReply(pair[0]), "value": normalizeReply(pair[1])})
		}
	case len(items)%2 == 0:
		for i := 0; i < len(items); i += 2 {
			rows = append(rows, map[string]interface{}{"field": normalizeReply(items[i]), "value": normalizeReply(items[i+1])})
		}
	default:
		return nil, false
	}
	return rows, true
}

// normalizeReply converts RESP3 maps to string keyed maps, recursively.
func normalizeReply(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeReply(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeReply(item)
		}
		return out
	case fmt.Stringer:
		return val.String()
	}
	return v
}
