//go:build cgo && !minimal

package main

// godror needs cgo.
import _ "github.com/redbco/redb-anchor/services/anchor/internal/database/oracle"
