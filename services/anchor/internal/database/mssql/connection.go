package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Connect opens the pool and pings the server.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	db, err := sql.Open("sqlserver", a.connectionURL())
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to open connection: %w", err))
	}

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

// connectionURL builds a sqlserver:// URL. A named instance is taken from
// the "instance" option and replaces the port.
func (a *Adapter) connectionURL() string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(a.config.Username, a.config.Password),
		Host:   net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port)),
	}
	if instance := a.config.GetString("instance", ""); instance != "" {
		u.Host = a.config.Host
		u.Path = instance
	}

	q := url.Values{}
	if a.config.DatabaseName != "" {
		q.Set("database", a.config.DatabaseName)
	}
	if a.config.SSL {
		q.Set("encrypt", "true")
		q.Set("TrustServerCertificate", strconv.FormatBool(!a.config.RejectUnauthorized()))
		if a.config.SSLRootCert != "" {
			q.Set("certificate", a.config.SSLRootCert)
		}
		q.Set("hostNameInCertificate", a.config.Host)
	} else {
		q.Set("encrypt", "disable")
	}
	q.Set("app name", a.config.GetString("application_name", "redb-anchor"))
	q.Set("connection timeout", strconv.Itoa(a.config.GetInt("connect_timeout", 10)))
	u.RawQuery = q.Encode()
	return u.String()
}
