// Package redis adapts Redis. Keys are grouped into buckets by the prefix
// before their first colon and each bucket is presented as a table whose
// rows depend on the value type of its keys.
package redis

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

func init() {
	adapter.Register(dbcapabilities.Redis, New)
}

// DefaultBucket holds keys without a prefix. Prefixes never contain a colon,
// so the name cannot collide with a real bucket such as "default".
const DefaultBucket = ":default"

// Adapter implements adapter.Adapter for Redis.
type Adapter struct {
	adapter.Base

	config adapter.ConnectionConfig

	mu        sync.RWMutex
	client    *redis.Client
	tx        *redis.Conn
	connected int32
}

// New creates a Redis adapter. It does not connect.
func New(config adapter.ConnectionConfig) adapter.Adapter {
	return newAdapter(config)
}

func newAdapter(config adapter.ConnectionConfig) *Adapter {
	a := &Adapter{config: config}
	a.Base = adapter.NewBase(dbcapabilities.Redis, a, adapter.QuestionPlaceholder)
	a.Probe = func(ctx context.Context) error {
		client, err := a.redisClient()
		if err != nil {
			return err
		}
		return client.Ping(ctx).Err()
	}
	return a
}

// Config returns the connection configuration.
func (a *Adapter) Config() adapter.ConnectionConfig {
	return a.config
}

// IsConnected reports whether Connect succeeded and Disconnect has not run.
func (a *Adapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// EscapeIdentifier double quotes a key so the command tokenizer reads it
// back as one argument.
func (a *Adapter) EscapeIdentifier(name string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(name) + `"`
}

// GetVersion returns redis_version from INFO server.
func (a *Adapter) GetVersion(ctx context.Context) (string, error) {
	client, err := a.redisClient()
	if err != nil {
		return "", err
	}
	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		return "", adapter.WrapError(a.GetDatabaseType(), "get_version", err)
	}
	return parseInfo(info)["redis_version"], nil
}

// parseInfo parses INFO output into a map, skipping section headers.
func parseInfo(info string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			result[k] = v
		}
	}
	return result
}

func (a *Adapter) redisClient() (*redis.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	return a.client, nil
}

var (
	_ adapter.Adapter        = (*Adapter)(nil)
	_ adapter.Transactor     = (*Adapter)(nil)
	_ adapter.DatabaseLister = (*Adapter)(nil)
)
