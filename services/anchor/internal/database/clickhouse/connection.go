package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// Connect opens the pool and pings the server.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	opts, err := a.options()
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port, err)
	}

	db := clickhouse.OpenDB(opts)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error pinging ClickHouse: %w", err))
	}

	a.Attach(db)
	return nil
}

// Disconnect closes the pool.
func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.Close()
}

// options maps the configuration onto clickhouse.Options. The "protocol"
// option selects "native" (default) or "http".
func (a *Adapter) options() (*clickhouse.Options, error) {
	opts := &clickhouse.Options{
		Addr: []string{a.config.Address()},
		Auth: clickhouse.Auth{
			Database: a.config.DatabaseName,
			Username: a.config.Username,
			Password: a.config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": a.config.GetInt("max_execution_time", 60),
		},
		DialTimeout:     time.Duration(a.config.GetInt("connect_timeout", 10)) * time.Second,
		MaxOpenConns:    a.config.GetInt("max_open_conns", 10),
		MaxIdleConns:    a.config.GetInt("max_idle_conns", 5),
		ConnMaxLifetime: time.Hour,
	}

	switch strings.ToLower(a.config.GetString("protocol", "native")) {
	case "native":
		opts.Protocol = clickhouse.Native
	case "http":
		opts.Protocol = clickhouse.HTTP
	default:
		return nil, adapter.NewConfigurationError(a.GetDatabaseType(), "protocol",
			fmt.Sprintf("unknown protocol %q", a.config.GetString("protocol", "")))
	}
	if a.config.GetBool("compress", false) {
		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	}

	tlsConfig, err := common.BuildTLSConfig(a.config)
	if err != nil {
		return nil, err
	}
	opts.TLS = tlsConfig
	return opts, nil
}
