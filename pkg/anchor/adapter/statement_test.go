package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadingKeyword(t *testing.T) {
	tests := map[string]string{
		"select 1":                          "SELECT",
		"  \n\tWITH x AS (SELECT 1) SELECT": "WITH",
		"-- note\nINSERT INTO t VALUES (1)": "INSERT",
		"/* hint */ update t set a = 1":     "UPDATE",
		"((SELECT 1))":                      "SELECT",
		"-- only a comment":                 "",
		"":                                  "",
	}
	for stmt, want := range tests {
		assert.Equal(t, want, LeadingKeyword(stmt), stmt)
	}
}

func TestIsQueryStatement(t *testing.T) {
	queries := []string{
		"SELECT * FROM t",
		"show tables",
		"PRAGMA table_info(t)",
		"EXPLAIN SELECT 1",
		"INSERT INTO t (a) VALUES (1) RETURNING id",
		"INSERT INTO t (a) OUTPUT INSERTED.id VALUES (1)",
		"INSERT INTO t (name) VALUES ('a')\nRETURNING id",
		"UPDATE t SET a = 1\treturning a",
		"DELETE FROM t WHERE a = 1 RETURNING *",
		"DELETE FROM t\nOUTPUT\tDELETED.id WHERE a = 1",
	}
	for _, q := range queries {
		assert.True(t, IsQueryStatement(q), q)
	}

	mutations := []string{
		"INSERT INTO t (a) VALUES (1)",
		"update t set a = 1",
		"DELETE FROM t",
		"CREATE TABLE t (a int)",
		"INSERT INTO t (returning_id) VALUES (1)",
		"UPDATE t SET output_inserted = 1",
	}
	for _, q := range mutations {
		assert.False(t, IsQueryStatement(q), q)
	}
}
