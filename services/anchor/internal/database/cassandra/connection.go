package cassandra

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gocql/gocql"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// Connect creates the session and reads the release version.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}
	cluster, err := a.clusterConfig()
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port, err)
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error connecting to Cassandra: %w", err))
	}
	if err := session.Query("SELECT release_version FROM system.local").WithContext(ctx).Scan(new(string)); err != nil {
		session.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error testing Cassandra connection: %w", err))
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect closes the session.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	session := a.session
	a.session = nil
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)
	if session != nil {
		session.Close()
	}
	return nil
}

// clusterConfig maps the configuration onto a gocql cluster. Host may list
// several contact points separated by commas.
func (a *Adapter) clusterConfig() (*gocql.ClusterConfig, error) {
	var hosts []string
	for _, h := range strings.Split(a.config.Host, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return nil, adapter.NewConfigurationError(a.GetDatabaseType(), "host", "at least one contact point is required")
	}

	cluster := gocql.NewCluster(hosts...)
	if a.config.Port > 0 {
		cluster.Port = a.config.Port
	}
	cluster.Keyspace = a.config.DatabaseName
	if a.config.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: a.config.Username,
			Password: a.config.Password,
		}
	}

	consistency, err := gocql.ParseConsistencyWrapper(a.config.GetString("consistency", "QUORUM"))
	if err != nil {
		return nil, adapter.NewConfigurationError(a.GetDatabaseType(), "consistency", err.Error())
	}
	cluster.Consistency = consistency
	cluster.Timeout = time.Duration(a.config.GetInt("timeout", 10)) * time.Second
	cluster.ConnectTimeout = time.Duration(a.config.GetInt("connect_timeout", 10)) * time.Second
	cluster.NumConns = a.config.GetInt("num_conns", 2)
	if v := a.config.GetInt("protocol_version", 0); v > 0 {
		cluster.ProtoVersion = v
	}
	if dc := a.config.GetString("local_dc", ""); dc != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(dc))
	}

	tlsConfig, err := common.BuildTLSConfig(a.config)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		cluster.SslOpts = &gocql.SslOptions{
			Config:                 tlsConfig,
			EnableHostVerification: a.config.RejectUnauthorized(),
		}
	}
	return cluster, nil
}
