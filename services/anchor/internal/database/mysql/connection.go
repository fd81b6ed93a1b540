package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// Connect opens the pool and pings the server. Connecting a connected
// adapter is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	cfg, err := a.driverConfig()
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port, err)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to open connection: %w", err))
	}
	db := sql.OpenDB(connector)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to ping database: %w", err))
	}

	db.SetMaxOpenConns(a.config.GetInt("max_open_conns", 25))
	db.SetMaxIdleConns(a.config.GetInt("max_idle_conns", 5))

	a.Attach(db)
	return nil
}

// Disconnect closes the pool.
func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.Close()
}

// driverConfig builds the driver configuration. Times are parsed into
// time.Time.
func (a *Adapter) driverConfig() (*mysql.Config, error) {
	cfg := mysql.NewConfig()
	cfg.User = a.config.Username
	cfg.Passwd = a.config.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))
	cfg.DBName = a.config.DatabaseName
	cfg.ParseTime = true
	cfg.MultiStatements = a.config.GetBool("multi_statements", false)
	cfg.Timeout = time.Duration(a.config.GetInt("connect_timeout", 10)) * time.Second

	tlsConfig, err := common.BuildTLSConfig(a.config)
	if err != nil {
		return nil, err
	}
	cfg.TLS = tlsConfig

	return cfg, nil
}
