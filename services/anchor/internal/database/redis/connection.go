package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// Connect creates the client and pings the server.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}
	opts, err := a.clientOptions()
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error connecting to Redis: %w", err))
	}

	a.mu.Lock()
	a.client = client
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect discards an open transaction and closes the client.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	client, tx := a.client, a.tx
	a.client, a.tx = nil, nil
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)

	if tx != nil {
		_ = tx.Close()
	}
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return adapter.WrapError(a.GetDatabaseType(), "disconnect", err)
	}
	return nil
}

// clientOptions maps the configuration onto redis.Options. DatabaseName
// selects the logical database by number, "db3" and "3" both select 3.
func (a *Adapter) clientOptions() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:         a.config.Address(),
		Username:     a.config.Username,
		Password:     a.config.Password,
		DB:           databaseIndex(a.config.DatabaseName),
		Protocol:     a.config.GetInt("protocol", 3),
		DialTimeout:  time.Duration(a.config.GetInt("connect_timeout", 5)) * time.Second,
		ClientName:   a.config.GetString("application_name", "redb-anchor"),
		MaxRetries:   a.config.GetInt("max_retries", 3),
		PoolSize:     a.config.GetInt("pool_size", 10),
		ReadTimeout:  time.Duration(a.config.GetInt("read_timeout", 30)) * time.Second,
		WriteTimeout: time.Duration(a.config.GetInt("write_timeout", 30)) * time.Second,
	}
	tlsConfig, err := common.BuildTLSConfig(a.config)
	if err != nil {
		return nil, err
	}
	opts.TLSConfig = tlsConfig
	return opts, nil
}

func databaseIndex(name string) int {
	if len(name) > 2 && name[:2] == "db" {
		name = name[2:]
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 {
		return n
	}
	return 0
}
