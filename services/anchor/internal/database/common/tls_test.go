package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

func TestBuildTLSConfig(t *testing.T) {
	cfg, err := BuildTLSConfig(adapter.ConnectionConfig{Host: "db"})
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = BuildTLSConfig(adapter.ConnectionConfig{Host: "db", SSL: true})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "db", cfg.ServerName)
	assert.False(t, cfg.InsecureSkipVerify)

	reject := false
	cfg, err = BuildTLSConfig(adapter.ConnectionConfig{Host: "db", SSL: true, SSLRejectUnauthorized: &reject})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)

	_, err = BuildTLSConfig(adapter.ConnectionConfig{Host: "db", SSL: true, SSLRootCert: "-----BEGIN CERTIFICATE-----\nnot a cert\n-----END CERTIFICATE-----"})
	assert.Error(t, err)

	_, err = BuildTLSConfig(adapter.ConnectionConfig{Host: "db", SSL: true, SSLCert: "/missing/cert.pem", SSLKey: "/missing/key.pem"})
	assert.Error(t, err)
}
