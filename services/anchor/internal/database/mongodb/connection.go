package mongodb

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// Connect creates the client and pings the primary.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	opts := options.Client().
		ApplyURI(a.connectionURI()).
		SetConnectTimeout(time.Duration(a.config.GetInt("connect_timeout", 10)) * time.Second).
		SetServerSelectionTimeout(time.Duration(a.config.GetInt("server_selection_timeout", 10)) * time.Second)

	tlsConfig, err := common.BuildTLSConfig(a.config)
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port, err)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to create client: %w", err))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("failed to ping server: %w", err))
	}

	a.mu.Lock()
	a.client = client
	a.db = client.Database(a.databaseName())
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect closes the client.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.db = nil
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return adapter.WrapError(a.GetDatabaseType(), "disconnect", err)
	}
	return nil
}

func (a *Adapter) databaseName() string {
	if a.config.DatabaseName != "" {
		return a.config.DatabaseName
	}
	return "test"
}

// connectionURI returns the "uri" option verbatim, or builds a mongodb://
// URI. The srv option switches to mongodb+srv, which takes no port.
func (a *Adapter) connectionURI() string {
	if uri := a.config.GetString("uri", ""); uri != "" {
		return uri
	}

	u := &url.URL{Scheme: "mongodb", Host: net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))}
	if a.config.GetBool("srv", false) {
		u.Scheme = "mongodb+srv"
		u.Host = a.config.Host
	}
	if a.config.Username != "" {
		u.User = url.UserPassword(a.config.Username, a.config.Password)
	}
	u.Path = "/" + a.config.DatabaseName

	q := url.Values{}
	if a.config.Username != "" {
		q.Set("authSource", a.config.GetString("auth_source", "admin"))
	}
	if rs := a.config.GetString("replica_set", ""); rs != "" {
		q.Set("replicaSet", rs)
	}
	if a.config.GetBool("direct_connection", false) {
		q.Set("directConnection", "true")
	}
	q.Set("appName", a.config.GetString("application_name", "redb-anchor"))
	u.RawQuery = q.Encode()
	return u.String()
}
