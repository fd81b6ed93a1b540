//go:build !minimal

package main

import (
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/cassandra"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/clickhouse"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/cockroach"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/dynamodb"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/elasticsearch"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/firestore"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/mariadb"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/mongodb"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/mssql"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/mysql"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/neo4j"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/postgres"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/redis"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/sqlite"
)
