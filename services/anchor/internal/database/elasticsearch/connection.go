package elasticsearch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/services/anchor/internal/database/common"
)

// Connect creates the client and reads the cluster info.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}

	cfg, err := a.clientConfig()
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port, err)
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error creating Elasticsearch client: %w", err))
	}
	if err := a.decode("connect", nil)(es.Info(es.Info.WithContext(ctx))); err != nil {
		return adapter.NewConnectionError(a.GetDatabaseType(), a.config.Host, a.config.Port,
			fmt.Errorf("error connecting to Elasticsearch: %w", err))
	}

	a.mu.Lock()
	a.client = es
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 1)
	return nil
}

// Disconnect drops the client. The HTTP transport holds no server state.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.client = nil
	a.mu.Unlock()
	atomic.StoreInt32(&a.connected, 0)
	return nil
}

// clientConfig maps the configuration onto elasticsearch.Config. The
// "cloud_id" and "api_key" options select Elastic Cloud and API key
// authentication.
func (a *Adapter) clientConfig() (elasticsearch.Config, error) {
	cfg := elasticsearch.Config{
		Username:   a.config.Username,
		Password:   a.config.Password,
		APIKey:     a.config.GetString("api_key", ""),
		CloudID:    a.config.GetString("cloud_id", ""),
		MaxRetries: a.config.GetInt("max_retries", 3),
	}
	if cfg.CloudID == "" {
		cfg.Addresses = a.addresses()
	}

	tlsConfig, err := common.BuildTLSConfig(a.config)
	if err != nil {
		return cfg, err
	}
	if tlsConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		cfg.Transport = transport
	}
	return cfg, nil
}

// addresses returns the node URLs. The "url" option wins; otherwise Host
// may list several nodes separated by commas.
func (a *Adapter) addresses() []string {
	if u := a.config.GetString("url", ""); u != "" {
		return []string{u}
	}
	scheme := a.config.Scheme
	if scheme == "" {
		scheme = "http"
		if a.config.SSL {
			scheme = "https"
		}
	}
	port := a.config.Port
	if port == 0 {
		port = DefaultPort
	}

	var out []string
	for _, host := range strings.Split(a.config.Host, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if !strings.Contains(host, ":") {
			host = host + ":" + strconv.Itoa(port)
		}
		out = append(out, scheme+"://"+host)
	}
	if len(out) == 0 {
		out = []string{scheme + "://localhost:" + strconv.Itoa(port)}
	}
	return out
}
