//go:build minimal

package main

import (
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/postgres"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/sqlite"
)
