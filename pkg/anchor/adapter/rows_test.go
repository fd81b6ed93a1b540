package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortAndPageRows(t *testing.T) {
	rows := []map[string]interface{}{
		{"key": "b", "score": int64(10)},
		{"key": "a", "score": int64(2)},
		{"key": "c", "score": int64(2)},
	}
	SortRows(rows, []OrderBy{{Column: "score"}, {Column: "key", Desc: true}})
	assert.Equal(t, "c", rows[0]["key"])
	assert.Equal(t, "a", rows[1]["key"])
	assert.Equal(t, "b", rows[2]["key"])

	assert.Len(t, PageRows(rows, 1, 1), 1)
	assert.Equal(t, "a", PageRows(rows, 1, 1)[0]["key"])
	assert.Empty(t, PageRows(rows, 5, 0))
	assert.Len(t, PageRows(rows, 0, 0), 3)
}

func TestMatchesWhere(t *testing.T) {
	row := map[string]interface{}{"id": int64(7), "name": "x"}
	assert.True(t, MatchesWhere(row, map[string]interface{}{"id": 7}))
	assert.True(t, MatchesWhere(row, nil))
	assert.False(t, MatchesWhere(row, map[string]interface{}{"name": "y"}))
	assert.False(t, MatchesWhere(row, map[string]interface{}{"missing": 1}))
}
