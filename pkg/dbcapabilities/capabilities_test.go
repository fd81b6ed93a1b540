package dbcapabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllEnginesRegistered(t *testing.T) {
	assert.Len(t, All, 15)
	for id, c := range All {
		assert.Equal(t, id, c.ID, "capability keyed under wrong id")
		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.Paradigms)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input    string
		expected DatabaseID
		ok       bool
	}{
		{"postgres", PostgreSQL, true},
		{"PostgreSQL", PostgreSQL, true},
		{" pgsql ", PostgreSQL, true},
		{"sqlserver", SQLServer, true},
		{"sqlite3", SQLite, true},
		{"crdb", CockroachDB, true},
		{"mongo", MongoDB, true},
		{"Cloud Firestore", Firestore, true},
		{"es", Elasticsearch, true},
		{"", "", false},
		{"db2", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, ok := ParseID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestCapabilityFlags(t *testing.T) {
	assert.True(t, SupportsTransactions(PostgreSQL))
	assert.False(t, SupportsTransactions(Cassandra))
	assert.False(t, SupportsTransactions(ClickHouse))
	assert.True(t, IsSchemaless(MongoDB))
	assert.False(t, IsSchemaless(MySQL))
	assert.True(t, SupportsParadigm(Neo4j, ParadigmGraph))
	assert.False(t, SupportsParadigm(Redis, ParadigmRelational))
	assert.False(t, IsSchemaless(DatabaseID("nope")))
}

func TestIDsSorted(t *testing.T) {
	ids := IDs()
	assert.Len(t, ids, len(All))
	for i := 1; i < len(ids); i++ {
		assert.Less(t, string(ids[i-1]), string(ids[i]))
	}
}

func TestMustGetPanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { MustGet(DatabaseID("nope")) })
}

func TestIsSystemDatabase(t *testing.T) {
	assert.True(t, MustGet(PostgreSQL).IsSystemDatabase("postgres"))
	assert.True(t, MustGet(Cassandra).IsSystemDatabase("SYSTEM_SCHEMA"))
	assert.False(t, MustGet(MySQL).IsSystemDatabase("shop"))
	assert.False(t, MustGet(Redis).IsSystemDatabase("0"))
}
