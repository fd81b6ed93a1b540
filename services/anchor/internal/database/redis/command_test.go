package redis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{`GET user:1`, []string{"GET", "user:1"}},
		{`  SET   k   v  `, []string{"SET", "k", "v"}},
		{`SET greeting "hello world"`, []string{"SET", "greeting", "hello world"}},
		{`SET q "say \"hi\"\n"`, []string{"SET", "q", "say \"hi\"\n"}},
		{`SET s 'it\'s raw \n'`, []string{"SET", "s", `it's raw \n`}},
		{`SET hex "\x41\x42"`, []string{"SET", "hex", "AB"}},
		{`SET empty ""`, []string{"SET", "empty", ""}},
	}
	for _, c := range cases {
		got, err := Tokenize(c.line)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.want, got, c.line)
	}
}

func TestTokenizeErrors(t *testing.T) {
	for _, line := range []string{``, `   `, `GET "unterminated`, `GET "a"b`} {
		_, err := Tokenize(line)
		require.Error(t, err, line)
		assert.True(t, errors.Is(err, adapter.ErrInvalidQuery), line)
	}
}

func TestEscapeIdentifierRoundTrip(t *testing.T) {
	a := newAdapter(adapter.ConnectionConfig{Type: dbcapabilities.Redis})
	for _, key := range []string{"plain", "with space", `quote"inside`, `back\slash`} {
		tokens, err := Tokenize("GET " + a.EscapeIdentifier(key))
		require.NoError(t, err)
		assert.Equal(t, []string{"GET", key}, tokens)
	}
}

func TestReplyRows(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		assert.Equal(t, []map[string]interface{}{{"result": "PONG"}}, replyRows([]string{"PING"}, "PONG"))
	})
	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, replyRows([]string{"GET", "x"}, nil))
	})
	t.Run("resp3 map", func(t *testing.T) {
		reply := map[interface{}]interface{}{"b": "2", "a": "1"}
		assert.Equal(t, []map[string]interface{}{
			{"field": "a", "value": "1"},
			{"field": "b", "value": "2"},
		}, replyRows([]string{"HGETALL", "h"}, reply))
	})
	t.Run("flat pairs", func(t *testing.T) {
		reply := []interface{}{"maxmemory", "0", "timeout", "300"}
		assert.Equal(t, []map[string]interface{}{
			{"field": "maxmemory", "value": "0"},
			{"field": "timeout", "value": "300"},
		}, replyRows([]string{"CONFIG", "GET", "*"}, reply))
	})
	t.Run("nested pairs", func(t *testing.T) {
		reply := []interface{}{[]interface{}{"ada", 3.0}, []interface{}{"bob", 1.5}}
		assert.Equal(t, []map[string]interface{}{
			{"field": "ada", "value": 3.0},
			{"field": "bob", "value": 1.5},
		}, replyRows([]string{"ZRANGE", "z", "0", "-1", "WITHSCORES"}, reply))
	})
	t.Run("array", func(t *testing.T) {
		reply := []interface{}{"x", int64(2), map[interface{}]interface{}{"k": "v"}}
		assert.Equal(t, []map[string]interface{}{
			{"index": int64(0), "value": "x"},
			{"index": int64(1), "value": int64(2)},
			{"index": int64(2), "value": map[string]interface{}{"k": "v"}},
		}, replyRows([]string{"LRANGE", "l", "0", "-1"}, reply))
	})
}

func TestParseInfo(t *testing.T) {
	info := "# Server\r\nredis_version:7.2.4\r\nredis_mode:standalone\r\n\r\n# Keyspace\r\ndb0:keys=3,expires=0\r\n"
	got := parseInfo(info)
	assert.Equal(t, "7.2.4", got["redis_version"])
	assert.Equal(t, "keys=3,expires=0", got["db0"])
	assert.NotContains(t, got, "# Server")
}
