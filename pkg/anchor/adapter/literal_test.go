package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func TestEscapeLiteral(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input    interface{}
		expected string
	}{
		{nil, "NULL"},
		{true, "TRUE"},
		{false, "FALSE"},
		{42, "42"},
		{int64(-7), "-7"},
		{1.5, "1.5"},
		{"O'Brien", "'O''Brien'"},
		{[]byte("raw"), "'raw'"},
		{ts, "'2024-03-01T12:00:00Z'"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, EscapeLiteral(test.input))
	}
}

func TestInlineParams(t *testing.T) {
	stmt, err := InlineParams("SELECT * FROM t WHERE a = $1 AND b = '$2' AND c = $2", DollarPlaceholder, []interface{}{1, "x"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = 1 AND b = '$2' AND c = 'x'", stmt)

	stmt, err = InlineParams("UPDATE t SET a = ? WHERE id = ?", QuestionPlaceholder, []interface{}{nil, 9})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE t SET a = NULL WHERE id = 9", stmt)

	stmt, err = InlineParams("SELECT :p1 FROM DUAL", ColonPPlaceholder, []interface{}{"it's"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'it''s' FROM DUAL", stmt)

	_, err = InlineParams("SELECT $3", DollarPlaceholder, []interface{}{1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	stmt, err = InlineParams("SELECT ? -- don't\nFROM t WHERE a = ?", QuestionPlaceholder, []interface{}{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 -- don't\nFROM t WHERE a = 2", stmt)

	stmt, err = InlineParams(`SELECT "a$1", /* it's $1 */ $1, 'x''$1'`, DollarPlaceholder, []interface{}{"v"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "a$1", /* it's $1 */ 'v', 'x''$1'`, stmt)

	stmt, err = InlineParams("SELECT 1", DollarPlaceholder, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", stmt)
}

func TestInlineStatement(t *testing.T) {
	engine := newFakeEngine()
	stmt, err := InlineStatement(engine, "DELETE FROM t WHERE id = $1", []interface{}{5})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM t WHERE id = 5", stmt)

	_, err = InlineStatement(engine, "SELECT $2", []interface{}{1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	keyValue := newFakeEngine()
	keyValue.Base = NewBase(dbcapabilities.Redis, keyValue, QuestionPlaceholder)
	_, err = InlineStatement(keyValue, "GET ?", []interface{}{"k"})
	assert.True(t, IsUnsupported(err))
}
