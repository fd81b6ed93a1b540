//go:build cgo

package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/godror/godror"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Connect opens the pool and pings the server.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	var params godror.ConnectionParams
	params.Username = a.config.Username
	params.Password = godror.NewPassword(a.config.Password)
	params.ConnectString = a.connectString()

	db := sql.OpenDB(godror.NewConnector(params))
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to ping database: %w", err))
	}

	db.SetMaxOpenConns(a.config.GetInt("max_open_conns", 25))
	db.SetMaxIdleConns(a.config.GetInt("max_idle_conns", 5))
	db.SetConnMaxLifetime(5 * time.Minute)

	a.Attach(db)
	return nil
}

// Disconnect closes the pool.
func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.Close()
}

// connectString renders an Easy Connect string host:port/service. With SSL
// the tcps protocol is used and SSLRootCert names the wallet directory.
func (a *Adapter) connectString() string {
	hostPort := net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))
	service := a.config.GetString("service_name", a.config.DatabaseName)
	if !a.config.SSL {
		return hostPort + "/" + service
	}

	q := url.Values{}
	if a.config.SSLRootCert != "" {
		q.Set("wallet_location", a.config.SSLRootCert)
	}
	if !a.config.RejectUnauthorized() {
		q.Set("ssl_server_dn_match", "false")
	}
	s := "tcps://" + hostPort + "/" + service
	if len(q) > 0 {
		s += "?" + q.Encode()
	}
	return s
}
