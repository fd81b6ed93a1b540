package dbcapabilities

import (
	"sort"
	"strings"
)

// DatabaseID is the canonical identifier of an engine the adapter layer can talk to.
type DatabaseID string

const (
	// Relational SQL
	PostgreSQL  DatabaseID = "postgres"
	MySQL       DatabaseID = "mysql"
	MariaDB     DatabaseID = "mariadb"
	SQLServer   DatabaseID = "mssql"
	Oracle      DatabaseID = "oracle"
	SQLite      DatabaseID = "sqlite"
	CockroachDB DatabaseID = "cockroach"

	// Document
	MongoDB   DatabaseID = "mongodb"
	Firestore DatabaseID = "firestore"

	// Key-value
	Redis    DatabaseID = "redis"
	DynamoDB DatabaseID = "dynamodb"

	// Graph, wide-column, columnar, search
	Neo4j         DatabaseID = "neo4j"
	Cassandra     DatabaseID = "cassandra"
	ClickHouse    DatabaseID = "clickhouse"
	Elasticsearch DatabaseID = "elasticsearch"
)

// DataParadigm enumerates the primary data storage paradigms a database supports.
type DataParadigm string

const (
	ParadigmRelational  DataParadigm = "relational"  // Tables, schemas, SQL
	ParadigmDocument    DataParadigm = "document"    // Collections, documents
	ParadigmKeyValue    DataParadigm = "keyvalue"    // Key/Value
	ParadigmGraph       DataParadigm = "graph"       // Nodes/Edges
	ParadigmColumnar    DataParadigm = "columnar"    // Columnar analytics
	ParadigmWideColumn  DataParadigm = "widecolumn"  // Wide-column (e.g., Cassandra)
	ParadigmSearchIndex DataParadigm = "searchindex" // Inverted indices (e.g., Elasticsearch)
)

// Capability describes an engine in a way every component can consume uniformly.
type Capability struct {
	// Human-friendly product name, e.g., "PostgreSQL".
	Name string `json:"name"`

	// Canonical ID, e.g., "postgres".
	ID DatabaseID `json:"id"`

	// Port used when a connection does not specify one. Zero for engines
	// reached through a cloud endpoint or a local file.
	DefaultPort int `json:"defaultPort"`

	// Whether the engine exposes a built-in system database and its typical names.
	HasSystemDatabase bool     `json:"hasSystemDatabase"`
	SystemDatabases   []string `json:"systemDatabases,omitempty"`

	// Whether the engine offers multi-statement transactions.
	SupportsTransactions bool `json:"supportsTransactions"`

	// Schemaless engines have their columns inferred by sampling.
	Schemaless bool `json:"schemaless"`

	// Primary data storage paradigms supported.
	Paradigms []DataParadigm `json:"paradigms"`

	// Common aliases (URL schemes, driver names) that map to this engine.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical database ID.
var All = map[DatabaseID]Capability{
	PostgreSQL: {
		Name:                 "PostgreSQL",
		ID:                   PostgreSQL,
		DefaultPort:          5432,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"postgres"},
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Aliases:              []string{"postgresql", "pgsql", "pg"},
	},
	MySQL: {
		Name:                 "MySQL",
		ID:                   MySQL,
		DefaultPort:          3306,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"mysql"},
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Aliases:              []string{"aurora-mysql"},
	},
	MariaDB: {
		Name:                 "MariaDB",
		ID:                   MariaDB,
		DefaultPort:          3306,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"mysql"},
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmRelational},
	},
	SQLServer: {
		Name:                 "Microsoft SQL Server",
		ID:                   SQLServer,
		DefaultPort:          1433,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"master"},
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Aliases:              []string{"sqlserver", "azure-sql"},
	},
	Oracle: {
		Name:                 "Oracle Database",
		ID:                   Oracle,
		DefaultPort:          1521,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"CDB$ROOT"},
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Aliases:              []string{"godror"},
	},
	SQLite: {
		Name:                 "SQLite",
		ID:                   SQLite,
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Aliases:              []string{"sqlite3", "file"},
	},
	CockroachDB: {
		Name:                 "CockroachDB",
		ID:                   CockroachDB,
		DefaultPort:          26257,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"system", "defaultdb"},
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Aliases:              []string{"cockroachdb", "crdb"},
	},
	MongoDB: {
		Name:              "MongoDB",
		ID:                MongoDB,
		DefaultPort:       27017,
		HasSystemDatabase: true,
		SystemDatabases:   []string{"admin"},
		Schemaless:        true,
		Paradigms:         []DataParadigm{ParadigmDocument},
		Aliases:           []string{"mongo", "mongodb+srv"},
	},
	Firestore: {
		Name:       "Cloud Firestore",
		ID:         Firestore,
		Schemaless: true,
		Paradigms:  []DataParadigm{ParadigmDocument},
		Aliases:    []string{"gcp-firestore"},
	},
	Redis: {
		Name:        "Redis",
		ID:          Redis,
		DefaultPort: 6379,
		Schemaless:  true,
		Paradigms:   []DataParadigm{ParadigmKeyValue},
		Aliases:     []string{"rediss"},
	},
	DynamoDB: {
		Name:       "Amazon DynamoDB",
		ID:         DynamoDB,
		Schemaless: true,
		Paradigms:  []DataParadigm{ParadigmKeyValue, ParadigmDocument},
		Aliases:    []string{"dynamo", "aws-dynamodb"},
	},
	Neo4j: {
		Name:                 "Neo4j",
		ID:                   Neo4j,
		DefaultPort:          7687,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"system"},
		SupportsTransactions: true,
		Paradigms:            []DataParadigm{ParadigmGraph},
		Aliases:              []string{"bolt", "neo4j+s", "neo4j+ssc", "bolt+s", "bolt+ssc"},
	},
	Cassandra: {
		Name:              "Apache Cassandra",
		ID:                Cassandra,
		DefaultPort:       9042,
		HasSystemDatabase: true,
		SystemDatabases:   []string{"system", "system_schema"},
		Paradigms:         []DataParadigm{ParadigmWideColumn},
		Aliases:           []string{"scylla", "cql"},
	},
	ClickHouse: {
		Name:              "ClickHouse",
		ID:                ClickHouse,
		DefaultPort:       9000,
		HasSystemDatabase: true,
		SystemDatabases:   []string{"system"},
		Paradigms:         []DataParadigm{ParadigmColumnar, ParadigmRelational},
		Aliases:           []string{"ch"},
	},
	Elasticsearch: {
		Name:        "Elasticsearch",
		ID:          Elasticsearch,
		DefaultPort: 9200,
		Schemaless:  true,
		Paradigms:   []DataParadigm{ParadigmSearchIndex, ParadigmDocument},
		Aliases:     []string{"elastic", "es"},
	},
}

// nameToID is a normalized lookup index from any known name/alias to the canonical DatabaseID.
var nameToID map[string]DatabaseID

func init() {
	nameToID = make(map[string]DatabaseID, len(All)*2)
	for id, c := range All {
		nameToID[strings.ToLower(string(id))] = id
		if c.Name != "" {
			nameToID[strings.ToLower(c.Name)] = id
		}
		for _, a := range c.Aliases {
			if a == "" {
				continue
			}
			nameToID[strings.ToLower(a)] = id
		}
	}
}

// ParseID attempts to resolve an arbitrary database name (canonical id, alias, or product name)
// to a canonical DatabaseID. Returns false if unknown.
func ParseID(name string) (DatabaseID, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	id, ok := nameToID[n]
	return id, ok
}

// IsSystemDatabase reports whether name is one of the engine's internal
// databases or keyspaces. Names compare case-insensitively.
func (c Capability) IsSystemDatabase(name string) bool {
	for _, sys := range c.SystemDatabases {
		if strings.EqualFold(sys, name) {
			return true
		}
	}
	return false
}

// IDs returns all known database IDs in a stable order.
func IDs() []DatabaseID {
	out := make([]DatabaseID, 0, len(All))
	for id := range All {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns capabilities for the given ID and a boolean indicating existence.
func Get(id DatabaseID) (Capability, bool) {
	c, ok := All[id]
	return c, ok
}

// MustGet returns capabilities for the given ID and panics if not found.
func MustGet(id DatabaseID) Capability {
	c, ok := Get(id)
	if !ok {
		panic("dbcapabilities: unknown database id: " + string(id))
	}
	return c
}

// SupportsParadigm reports whether the database supports a given data paradigm.
func SupportsParadigm(id DatabaseID, p DataParadigm) bool {
	c, ok := Get(id)
	if !ok {
		return false
	}
	for _, dp := range c.Paradigms {
		if dp == p {
			return true
		}
	}
	return false
}

// SupportsTransactions reports whether the engine has multi-statement transactions.
func SupportsTransactions(id DatabaseID) bool {
	c, ok := Get(id)
	return ok && c.SupportsTransactions
}

// IsSchemaless reports whether columns for the engine are inferred rather than declared.
func IsSchemaless(id DatabaseID) bool {
	c, ok := Get(id)
	return ok && c.Schemaless
}
