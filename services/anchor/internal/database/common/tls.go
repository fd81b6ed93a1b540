package common

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// BuildTLSConfig returns the client TLS configuration for cfg, or nil when
// SSL is off. SSLRootCert may be a file path or inline PEM.
func BuildTLSConfig(cfg adapter.ConnectionConfig) (*tls.Config, error) {
	if !cfg.SSL {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         cfg.Host,
		InsecureSkipVerify: !cfg.RejectUnauthorized(),
	}

	if cfg.SSLCert != "" && cfg.SSLKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.SSLCert, cfg.SSLKey)
		if err != nil {
			return nil, fmt.Errorf("error loading client certificates: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.SSLRootCert != "" {
		pem, err := readPEM(cfg.SSLRootCert)
		if err != nil {
			return nil, fmt.Errorf("error loading root certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in root certificate")
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

func readPEM(source string) ([]byte, error) {
	if strings.Contains(source, "-----BEGIN") {
		return []byte(source), nil
	}
	return os.ReadFile(source)
}
