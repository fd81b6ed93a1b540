package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
	"github.com/redbco/redb-anchor/pkg/health"
	"github.com/redbco/redb-anchor/services/anchor/internal/config"
	_ "github.com/redbco/redb-anchor/services/anchor/internal/database/sqlite"
)

func TestOpenQueryAndShutdown(t *testing.T) {
	ctx := context.Background()
	gs := New(&config.Config{
		MetadataTTL: config.DefaultMetadataTTL,
		Connections: []adapter.ConnectionConfig{
			{ID: "local", Name: "scratch", Type: dbcapabilities.SQLite, FilePath: ":memory:"},
		},
	}, nil)

	a, err := gs.Open(ctx, "scratch")
	require.NoError(t, err)
	require.True(t, a.IsConnected())

	res := a.ExecuteQuery(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)")
	require.False(t, res.Failed(), res.Error)

	meta := gs.Metadata(ctx, a, "")
	require.NotNil(t, meta)
	require.Len(t, meta.Tables, 1)
	assert.Equal(t, "items", meta.Tables[0].Name)

	again, err := gs.Open(ctx, "local")
	require.NoError(t, err)
	assert.Same(t, a, again)

	gs.Close(ctx, "local")
	assert.False(t, a.IsConnected())
	assert.Zero(t, gs.Registry.Len())

	_, err = gs.Open(ctx, "missing")
	assert.Error(t, err)

	_, err = gs.Open(ctx, "")
	require.NoError(t, err)
	gs.Shutdown(ctx)
	assert.Zero(t, gs.Registry.Len())
	assert.Zero(t, gs.Cache.Len())
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	gs := New(&config.Config{
		MetadataTTL: config.DefaultMetadataTTL,
		Connections: []adapter.ConnectionConfig{
			{ID: "good", Name: "good", Type: dbcapabilities.SQLite, FilePath: ":memory:"},
			{ID: "bad", Name: "bad", Type: dbcapabilities.SQLite, FilePath: filepath.Join(t.TempDir(), "missing", "x.db")},
		},
	}, nil)
	defer gs.Shutdown(ctx)

	checker := gs.HealthCheck(ctx)
	assert.Equal(t, health.StatusDegraded, checker.GetOverallStatus())
	checks := checker.GetAllChecks()
	require.Len(t, checks, 2)
	assert.Equal(t, "bad", checks[0].Name)
	assert.Equal(t, health.StatusUnhealthy, checks[0].Status)
	assert.Equal(t, health.StatusHealthy, checks[1].Status)
}
