// Package config loads the connection file used by the anchor CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Defaults
const (
	EnvPrefix          = "ANCHOR_"
	DefaultLogLevel    = "info"
	DefaultMetadataTTL = 60 * time.Second
	DefaultQueryLimit  = 100
)

// DefaultFiles are searched in the working directory when no path is given.
var DefaultFiles = []string{"anchor.yaml", "anchor.yml"}

// Config is the content of a connection file.
type Config struct {
	LogLevel          string        `koanf:"log_level"`
	MetadataTTL       time.Duration `koanf:"metadata_ttl"`
	QueryLimit        int           `koanf:"query_limit"`
	DefaultConnection string        `koanf:"default_connection"`

	Connections []adapter.ConnectionConfig `koanf:"-"`

	// Path of the file that was read, empty when none was found.
	Source string `koanf:"-"`
}

// connectionEntry is one item of the connections list. URL, when set, is
// parsed first and the explicit fields override it.
type connectionEntry struct {
	adapter.ConnectionConfig `koanf:",squash"`
	URL                      string `koanf:"url"`
}

// Load reads defaults, then the file, then ANCHOR_* environment variables.
// An empty path searches DefaultFiles; a missing default file is not an
// error, a missing explicit file is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"log_level":    DefaultLogLevel,
		"metadata_ttl": DefaultMetadataTTL.String(),
		"query_limit":  DefaultQueryLimit,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	source := findConfigFile(path)
	if source != "" {
		if err := k.Load(file.Provider(source), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", source, err)
		}
	}

	// ANCHOR_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	cfg := &Config{Source: source}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var entries []connectionEntry
	if err := k.Unmarshal("connections", &entries); err != nil {
		return nil, fmt.Errorf("failed to parse connections: %w", err)
	}
	connections, err := resolveConnections(entries)
	if err != nil {
		return nil, err
	}
	cfg.Connections = connections
	return cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// resolveConnections applies URLs and defaults, assigns missing ids and
// rejects duplicates.
func resolveConnections(entries []connectionEntry) ([]adapter.ConnectionConfig, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]adapter.ConnectionConfig, 0, len(entries))
	for i, e := range entries {
		cfg := e.ConnectionConfig
		if e.URL != "" {
			fromURL, err := adapter.ConfigFromURL(cfg.ID, e.URL)
			if err != nil {
				return nil, fmt.Errorf("connection %d: %w", i, err)
			}
			cfg = overlay(fromURL, cfg)
		}
		if cfg.ID == "" {
			cfg.ID = uuid.New().String()
		}
		if cfg.Name == "" {
			cfg.Name = cfg.ID
		}
		cfg = cfg.WithDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("connection %d: duplicate id %q", i, cfg.ID)
		}
		seen[cfg.ID] = true
		out = append(out, cfg)
	}
	return out, nil
}

// overlay copies the non-zero fields of explicit onto base.
func overlay(base, explicit adapter.ConnectionConfig) adapter.ConnectionConfig {
	if explicit.ID != "" {
		base.ID = explicit.ID
	}
	if explicit.Name != "" {
		base.Name = explicit.Name
	}
	if explicit.Type != "" {
		base.Type = explicit.Type
	}
	if explicit.Host != "" {
		base.Host = explicit.Host
	}
	if explicit.Port != 0 {
		base.Port = explicit.Port
	}
	if explicit.Username != "" {
		base.Username = explicit.Username
	}
	if explicit.Password != "" {
		base.Password = explicit.Password
	}
	if explicit.DatabaseName != "" {
		base.DatabaseName = explicit.DatabaseName
	}
	if explicit.SSL {
		base.SSL = true
	}
	if explicit.SSLMode != "" {
		base.SSLMode = explicit.SSLMode
	}
	if explicit.SSLRejectUnauthorized != nil {
		base.SSLRejectUnauthorized = explicit.SSLRejectUnauthorized
	}
	if explicit.SampleSize != 0 {
		base.SampleSize = explicit.SampleSize
	}
	for key, v := range explicit.Options {
		if base.Options == nil {
			base.Options = make(map[string]interface{})
		}
		base.Options[key] = v
	}

	// Fields a URL never carries.
	base.SSLCert = firstNonEmpty(explicit.SSLCert, base.SSLCert)
	base.SSLKey = firstNonEmpty(explicit.SSLKey, base.SSLKey)
	base.SSLRootCert = firstNonEmpty(explicit.SSLRootCert, base.SSLRootCert)
	base.AccessKeyID = explicit.AccessKeyID
	base.SecretAccessKey = explicit.SecretAccessKey
	base.SessionToken = explicit.SessionToken
	base.Region = explicit.Region
	base.Endpoint = explicit.Endpoint
	base.ProjectID = explicit.ProjectID
	base.CredentialsFile = explicit.CredentialsFile
	base.CredentialsJSON = explicit.CredentialsJSON
	base.Scheme = firstNonEmpty(explicit.Scheme, base.Scheme)
	base.FilePath = firstNonEmpty(explicit.FilePath, base.FilePath)
	return base
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Connection returns the connection with the given id or name. An empty
// ref selects DefaultConnection, then the only connection of the file.
func (c *Config) Connection(ref string) (adapter.ConnectionConfig, error) {
	if ref == "" {
		ref = c.DefaultConnection
	}
	if ref == "" {
		if len(c.Connections) == 1 {
			return c.Connections[0], nil
		}
		return adapter.ConnectionConfig{}, fmt.Errorf("no connection selected and %d connections configured", len(c.Connections))
	}
	for _, conn := range c.Connections {
		if conn.ID == ref || conn.Name == ref {
			return conn, nil
		}
	}
	return adapter.ConnectionConfig{}, fmt.Errorf("connection %q not found", ref)
}
