package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/pkg/logger"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/sqlite"
)

// stubEngine is a minimal adapter whose lifecycle calls can be observed.
type stubEngine struct {
	adapter.Base
	config        adapter.ConnectionConfig
	connected     int32
	disconnects   int32
	connectErr    error
	disconnectErr error
	disconnectFn  func()
}

func newStubEngine(cfg adapter.ConnectionConfig) *stubEngine {
	s := &stubEngine{config: cfg}
	s.Base = adapter.NewBase(cfg.Type, s, adapter.QuestionPlaceholder)
	return s
}

func (s *stubEngine) Config() adapter.ConnectionConfig { return s.config }

func (s *stubEngine) Connect(ctx context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	atomic.StoreInt32(&s.connected, 1)
	return nil
}

func (s *stubEngine) Disconnect(ctx context.Context) error {
	atomic.AddInt32(&s.disconnects, 1)
	atomic.StoreInt32(&s.connected, 0)
	if s.disconnectFn != nil {
		s.disconnectFn()
	}
	return s.disconnectErr
}

func (s *stubEngine) IsConnected() bool { return atomic.LoadInt32(&s.connected) == 1 }

func (s *stubEngine) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	return adapter.NewResult(nil, nil, time.Now())
}

func (s *stubEngine) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	return []adapter.Table{}, nil
}

func (s *stubEngine) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	return []adapter.Column{}, nil
}

func (s *stubEngine) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	return []adapter.Index{}, nil
}

func (s *stubEngine) GetVersion(ctx context.Context) (string, error) { return "stub", nil }

func (s *stubEngine) EscapeIdentifier(name string) string { return adapter.DoubleQuote(name) }

// stubDrivers registers a constructor for Redis that records every engine
// it builds, keyed by connection id.
func stubDrivers(built map[string]*stubEngine, configure func(*stubEngine)) *adapter.Registry {
	drivers := adapter.NewRegistry()
	drivers.Register(dbcapabilities.Redis, func(cfg adapter.ConnectionConfig) adapter.Adapter {
		s := newStubEngine(cfg)
		if configure != nil {
			configure(s)
		}
		built[cfg.ID] = s
		return s
	})
	return drivers
}

func redisConfig(id string) adapter.ConnectionConfig {
	return adapter.ConnectionConfig{ID: id, Type: dbcapabilities.Redis, Host: "localhost"}
}

func TestRegistryCreateIsIdempotent(t *testing.T) {
	built := map[string]*stubEngine{}
	r := NewRegistry(WithDrivers(stubDrivers(built, nil)))

	first, err := r.Create(redisConfig("cache"))
	require.NoError(t, err)
	second, err := r.Create(adapter.ConnectionConfig{ID: "cache", Type: dbcapabilities.Redis, Host: "elsewhere"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, built, 1)
	assert.False(t, first.IsConnected())
	assert.Equal(t, 6379, first.Config().Port)
}

func TestRegistryCreateErrors(t *testing.T) {
	r := NewRegistry(WithDrivers(adapter.NewRegistry()))

	_, err := r.Create(adapter.ConnectionConfig{Type: dbcapabilities.Redis})
	assert.True(t, adapter.IsConfigurationError(err))

	_, err = r.Create(adapter.ConnectionConfig{ID: "x", Type: "nosuchdb"})
	assert.True(t, adapter.IsConfigurationError(err))

	_, err = r.Create(redisConfig("x"))
	assert.ErrorIs(t, err, adapter.ErrAdapterNotFound)
	assert.Zero(t, r.Len())
}

func TestRegistryGet(t *testing.T) {
	built := map[string]*stubEngine{}
	r := NewRegistry(WithDrivers(stubDrivers(built, nil)))

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	created, err := r.Create(redisConfig("cache"))
	require.NoError(t, err)
	got, err := r.Get("cache")
	require.NoError(t, err)
	assert.Same(t, created, got)
}

func TestRegistryConnectLogs(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("anchor", "test")
	l.SetOutput(&buf)

	built := map[string]*stubEngine{}
	r := NewRegistry(WithLogger(l), WithDrivers(stubDrivers(built, func(s *stubEngine) {
		if s.config.ID == "broken" {
			s.connectErr = errors.New("connection refused")
		}
	})))

	_, err := r.Create(redisConfig("cache"))
	require.NoError(t, err)
	a, err := r.Connect(context.Background(), "cache")
	require.NoError(t, err)
	assert.True(t, a.IsConnected())
	assert.Contains(t, buf.String(), "[client:redis] Connection established connection_id=cache host=localhost:6379")

	_, err = r.Create(redisConfig("broken"))
	require.NoError(t, err)
	_, err = r.Connect(context.Background(), "broken")
	assert.EqualError(t, err, "connection refused")
	assert.Contains(t, buf.String(), "Connection failed connection_id=broken")

	_, err = r.Connect(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestRegistryRemoveSwallowsDisconnectErrors(t *testing.T) {
	built := map[string]*stubEngine{}
	r := NewRegistry(WithDrivers(stubDrivers(built, func(s *stubEngine) {
		s.disconnectErr = errors.New("already closed")
	})))
	ctx := context.Background()

	_, err := r.Create(redisConfig("cache"))
	require.NoError(t, err)
	_, err = r.Connect(ctx, "cache")
	require.NoError(t, err)

	r.Remove(ctx, "cache")
	assert.Equal(t, int32(1), built["cache"].disconnects)
	_, err = r.Get("cache")
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	r.Remove(ctx, "cache")
	assert.Equal(t, int32(1), built["cache"].disconnects)
}

func TestRegistryRemoveRecoversPanics(t *testing.T) {
	built := map[string]*stubEngine{}
	r := NewRegistry(WithDrivers(stubDrivers(built, func(s *stubEngine) {
		s.disconnectFn = func() { panic("driver bug") }
	})))

	_, err := r.Create(redisConfig("cache"))
	require.NoError(t, err)
	assert.NotPanics(t, func() { r.Remove(context.Background(), "cache") })
	assert.Zero(t, r.Len())
}

func TestRegistryDisconnectAllRunsConcurrently(t *testing.T) {
	const n = 5
	var (
		started = make(chan struct{}, n)
		release = make(chan struct{})
	)
	built := map[string]*stubEngine{}
	r := NewRegistry(WithDrivers(stubDrivers(built, func(s *stubEngine) {
		s.disconnectErr = errors.New("ignored")
		s.disconnectFn = func() {
			started <- struct{}{}
			<-release
		}
	})))
	for i := 0; i < n; i++ {
		_, err := r.Create(redisConfig(fmt.Sprintf("c%d", i)))
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		r.DisconnectAll(context.Background())
		close(done)
	}()

	// Every disconnect must be in flight before any of them is released.
	for i := 0; i < n; i++ {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("disconnects did not run concurrently")
		}
	}
	close(release)
	<-done

	assert.Zero(t, r.Len())
	assert.Empty(t, r.List())
	for _, s := range built {
		assert.Equal(t, int32(1), s.disconnects)
	}
}

func TestRegistryList(t *testing.T) {
	built := map[string]*stubEngine{}
	r := NewRegistry(WithDrivers(stubDrivers(built, nil)))
	for _, id := range []string{"b", "a", "c"} {
		_, err := r.Create(redisConfig(id))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.List())
}

func TestRegistryWithSQLite(t *testing.T) {
	ctx := context.Background()
	drivers := adapter.NewRegistry()
	drivers.Register(dbcapabilities.SQLite, sqlite.New)
	r := NewRegistry(WithDrivers(drivers))

	_, err := r.Create(adapter.ConnectionConfig{ID: "local", Type: dbcapabilities.SQLite, FilePath: sqlite.MemoryPath})
	require.NoError(t, err)
	a, err := r.Connect(ctx, "local")
	require.NoError(t, err)

	res := a.ExecuteQuery(ctx, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.False(t, res.Failed(), res.Error)
	res = a.InsertRow(ctx, "notes", map[string]interface{}{"id": 1, "body": "hello"})
	require.False(t, res.Failed(), res.Error)

	res = a.GetTableData(ctx, "notes", adapter.TableDataOptions{})
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 1, res.RowCount)

	r.DisconnectAll(ctx)
	assert.False(t, a.IsConnected())
}

func TestRegistryProbe(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("anchor", "test")
	l.SetOutput(&buf)

	built := map[string]*stubEngine{}
	r := NewRegistry(WithLogger(l), WithDrivers(stubDrivers(built, nil)))
	ctx := context.Background()

	assert.False(t, r.Probe(ctx, "missing"))

	_, err := r.Create(redisConfig("cache"))
	require.NoError(t, err)
	_, err = r.Connect(ctx, "cache")
	require.NoError(t, err)
	assert.True(t, r.Probe(ctx, "cache"))

	built["cache"].connected = 0
	built["cache"].connectErr = errors.New("connection refused")
	assert.False(t, r.Probe(ctx, "cache"))
	assert.Contains(t, buf.String(), "Health check failed connection_id=cache")
}
