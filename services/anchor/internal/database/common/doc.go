// Package common holds the pieces shared by the database/sql based engines:
// statement execution into QueryResult, the pinned transaction and TLS
// configuration.
package common
