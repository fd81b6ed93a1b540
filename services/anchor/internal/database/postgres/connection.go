package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Connect opens the pool and pings the server. Connecting a connected
// adapter is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(a.connectionString())
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error parsing connection string: %w", err))
	}
	if max := a.config.GetInt("max_connections", 0); max > 0 {
		poolConfig.MaxConns = int32(max)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error connecting to database: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error pinging database: %w", err))
	}

	a.mu.Lock()
	a.pool = pool
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect rolls back any open transaction and closes the pool.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	pool, tx := a.pool, a.tx
	a.pool, a.tx = nil, nil
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)

	if tx != nil {
		_ = tx.Rollback(ctx)
	}
	if pool != nil {
		pool.Close()
	}
	return nil
}

// IsConnected reports whether the pool is open.
func (a *Adapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// connectionString builds a postgres:// URL from the config.
func (a *Adapter) connectionString() string {
	database := a.config.DatabaseName
	if database == "" {
		database = a.opts.DefaultDatabase
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   a.config.Host + ":" + strconv.Itoa(a.config.Port),
		Path:   "/" + database,
	}
	if a.config.Username != "" {
		u.User = url.UserPassword(a.config.Username, a.config.Password)
	}

	query := url.Values{}
	if a.config.SSL {
		query.Set("sslmode", sslMode(a.config))
		if a.config.SSLCert != "" && a.config.SSLKey != "" {
			query.Set("sslcert", a.config.SSLCert)
			query.Set("sslkey", a.config.SSLKey)
		}
		if a.config.SSLRootCert != "" {
			query.Set("sslrootcert", a.config.SSLRootCert)
		}
	} else {
		query.Set("sslmode", "disable")
	}
	if appName := a.config.GetString("application_name", ""); appName != "" {
		query.Set("application_name", appName)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// sslMode returns the configured mode, else verify-full, or require when
// certificate verification is off.
func sslMode(config adapter.ConnectionConfig) string {
	if config.SSLMode != "" {
		return config.SSLMode
	}
	if !config.RejectUnauthorized() {
		return "require"
	}
	return "verify-full"
}
