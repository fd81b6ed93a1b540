package mysql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTextProtocolValues(t *testing.T) {
	a, mock := newMockAdapter(t)

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("price").OfType("DECIMAL", ""),
		sqlmock.NewColumn("ratio").OfType("DOUBLE", float64(0)),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
	).AddRow([]byte("42"), []byte("9.90"), []byte("0.5"), []byte("Ada"))
	mock.ExpectQuery("SELECT id, price, ratio, name FROM items").WillReturnRows(rows)

	res := a.ExecuteQuery(context.Background(), "SELECT id, price, ratio, name FROM items")
	require.False(t, res.Failed(), res.Error)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(42), res.Rows[0]["id"])
	assert.Equal(t, "9.90", res.Rows[0]["price"])
	assert.Equal(t, 0.5, res.Rows[0]["ratio"])
	assert.Equal(t, "Ada", res.Rows[0]["name"])
	assert.Equal(t, "bigint", res.Columns[0].Type)
}
