package neo4j

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Connect creates the driver and verifies connectivity.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	driver, err := neo4j.NewDriverWithContext(a.uri(), a.auth(), func(c *config.Config) {
		c.MaxConnectionPoolSize = a.config.GetInt("pool_size", 10)
		c.SocketConnectTimeout = time.Duration(a.config.GetInt("connect_timeout", 5)) * time.Second
		c.ConnectionAcquisitionTimeout = time.Duration(a.config.GetInt("acquire_timeout", 30)) * time.Second
		c.UserAgent = a.config.GetString("application_name", "redb-anchor")
	})
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error creating Neo4j driver: %w", err))
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error connecting to Neo4j database: %w", err))
	}

	a.mu.Lock()
	a.driver = driver
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect rolls back an open transaction and closes the driver.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	driver, session, tx := a.driver, a.session, a.tx
	a.driver, a.session, a.tx = nil, nil, nil
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)

	if tx != nil {
		_ = tx.Rollback(ctx)
	}
	if session != nil {
		_ = session.Close(ctx)
	}
	if driver == nil {
		return nil
	}
	if err := driver.Close(ctx); err != nil {
		return adapter.WrapError(a.GetDatabaseType(), "disconnect", err)
	}
	return nil
}

// uri builds the connection URI. The "uri" option wins. Without an explicit
// scheme, SSL selects neo4j+s, or neo4j+ssc when the certificate is not
// verified.
func (a *Adapter) uri() string {
	if u := a.config.GetString("uri", ""); u != "" {
		return u
	}
	scheme := a.config.Scheme
	if scheme == "" {
		scheme = "neo4j"
		if a.config.SSL {
			scheme = "neo4j+s"
			if !a.config.RejectUnauthorized() {
				scheme = "neo4j+ssc"
			}
		}
	}
	port := a.config.Port
	if port == 0 {
		port = 7687
	}
	return scheme + "://" + net.JoinHostPort(a.config.Host, strconv.Itoa(port))
}

func (a *Adapter) auth() neo4j.AuthToken {
	if a.config.Username == "" {
		return neo4j.NoAuth()
	}
	return neo4j.BasicAuth(a.config.Username, a.config.Password, "")
}

func (a *Adapter) sessionConfig(mode neo4j.AccessMode) neo4j.SessionConfig {
	return neo4j.SessionConfig{AccessMode: mode, DatabaseName: a.config.DatabaseName}
}
