package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Connect opens the database file and pings it.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	path := a.path()
	db, err := sql.Open("sqlite", a.dsn())
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), path, 0,
			fmt.Errorf("failed to open database: %w", err))
	}

	// Every connection to :memory: is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), path, 0,
			fmt.Errorf("failed to ping database: %w", err))
	}

	a.Attach(db)
	return nil
}

// Disconnect closes the database. An in-memory database is discarded.
func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.Close()
}

func (a *Adapter) path() string {
	switch {
	case a.config.FilePath != "":
		return a.config.FilePath
	case a.config.DatabaseName != "":
		return a.config.DatabaseName
	default:
		return MemoryPath
	}
}

// dsn appends the driver pragmas. Foreign keys are enforced unless the
// foreign_keys option turns them off.
func (a *Adapter) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("foreign_keys(%d)", boolInt(a.config.GetBool("foreign_keys", true))))
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", a.config.GetInt("busy_timeout", 5000)))

	path := a.path()
	if a.config.GetBool("read_only", false) && path != MemoryPath {
		if !strings.HasPrefix(path, "file:") {
			path = "file:" + path
		}
		q.Set("mode", "ro")
	}
	return path + "?" + q.Encode()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
