package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectSelectPagination(t *testing.T) {
	opts := TableDataOptions{Limit: 5, Offset: 10}

	tests := []struct {
		name    string
		dialect Dialect
		want    string
	}{
		{
			name:    "limit offset",
			dialect: Dialect{Quote: Backtick, Placeholder: QuestionPlaceholder},
			want:    "SELECT * FROM `t` LIMIT 5 OFFSET 10",
		},
		{
			name:    "offset fetch forces an order",
			dialect: Dialect{Quote: Bracket, Placeholder: AtPPlaceholder, Pagination: PaginateOffsetFetch},
			want:    "SELECT * FROM [t] ORDER BY (SELECT NULL) OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY",
		},
		{
			name:    "fetch first",
			dialect: Dialect{Quote: DoubleQuote, Placeholder: ColonPPlaceholder, Pagination: PaginateFetchFirst},
			want:    `SELECT * FROM "t" OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, args := tt.dialect.Select("t", opts)
			assert.Equal(t, tt.want, stmt)
			assert.Empty(t, args)
		})
	}
}

func TestDialectSelectWithoutPaging(t *testing.T) {
	d := Dialect{Quote: Bracket, Placeholder: AtPPlaceholder, Pagination: PaginateOffsetFetch}
	stmt, _ := d.Select("t", TableDataOptions{})
	assert.Equal(t, "SELECT * FROM [t]", stmt)
}

func TestDialectWhereClause(t *testing.T) {
	d := Dialect{Quote: DoubleQuote, Placeholder: DollarPlaceholder}

	cond, args := d.WhereClause(map[string]interface{}{"b": 2, "a": 1, "deleted_at": nil}, 3)
	assert.Equal(t, `"a" = $3 AND "b" = $4 AND "deleted_at" IS NULL`, cond)
	assert.Equal(t, []interface{}{1, 2}, args)

	cond, args = d.WhereClause(nil, 1)
	assert.Empty(t, cond)
	assert.Nil(t, args)
}

func TestDialectUpdateNumbering(t *testing.T) {
	d := Dialect{Quote: Bracket, Placeholder: AtPPlaceholder}
	stmt, args, err := d.Update("users",
		map[string]interface{}{"name": "x", "age": 3},
		map[string]interface{}{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE [users] SET [age] = @p1, [name] = @p2 WHERE [id] = @p3", stmt)
	assert.Equal(t, []interface{}{3, "x", 1}, args)
}

func TestDialectRejectsUnboundedEdits(t *testing.T) {
	d := Dialect{Quote: DoubleQuote, Placeholder: DollarPlaceholder}

	_, _, err := d.Update("t", map[string]interface{}{"a": 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = d.Update("t", nil, map[string]interface{}{"a": 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = d.Delete("t", map[string]interface{}{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = d.Insert("t", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPlaceholderStyles(t *testing.T) {
	assert.Equal(t, "$2", DollarPlaceholder.Placeholder(2))
	assert.Equal(t, "?", QuestionPlaceholder.Placeholder(2))
	assert.Equal(t, "@p2", AtPPlaceholder.Placeholder(2))
	assert.Equal(t, ":p2", ColonPPlaceholder.Placeholder(2))
	assert.Equal(t, "$p2", DollarPPlaceholder.Placeholder(2))

	assert.Equal(t, "p3", ColonPPlaceholder.ParamName(3))
	assert.Empty(t, QuestionPlaceholder.ParamName(3))
}
