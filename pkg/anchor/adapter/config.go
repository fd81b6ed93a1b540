package adapter

import (
	"fmt"
	"strconv"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// DefaultSampleSize is the number of documents or nodes read when columns are
// inferred for a schemaless engine.
const DefaultSampleSize = 100

// ConnectionConfig contains the configuration for a database connection.
// This is a unified configuration that works across all database types.
type ConnectionConfig struct {
	// Core identifiers. ID is the registry key and must be unique.
	ID   string                    `json:"id" koanf:"id"`
	Name string                    `json:"name,omitempty" koanf:"name"`
	Type dbcapabilities.DatabaseID `json:"type" koanf:"type"`

	// Connection details
	Host         string `json:"host,omitempty" koanf:"host"`
	Port         int    `json:"port,omitempty" koanf:"port"`
	Username     string `json:"username,omitempty" koanf:"username"`
	Password     string `json:"password,omitempty" koanf:"password"`
	DatabaseName string `json:"databaseName,omitempty" koanf:"database"`

	// SSL/TLS configuration
	SSL                   bool   `json:"ssl,omitempty" koanf:"ssl"`
	SSLMode               string `json:"sslMode,omitempty" koanf:"ssl_mode"` // disable, require, verify-ca, verify-full
	SSLRejectUnauthorized *bool  `json:"sslRejectUnauthorized,omitempty" koanf:"ssl_reject_unauthorized"`
	SSLCert               string `json:"sslCert,omitempty" koanf:"ssl_cert"`
	SSLKey                string `json:"sslKey,omitempty" koanf:"ssl_key"`
	SSLRootCert           string `json:"sslRootCert,omitempty" koanf:"ssl_root_cert"`

	// DynamoDB
	AccessKeyID     string `json:"accessKeyId,omitempty" koanf:"access_key_id"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" koanf:"secret_access_key"`
	SessionToken    string `json:"sessionToken,omitempty" koanf:"session_token"`
	Region          string `json:"region,omitempty" koanf:"region"`
	Endpoint        string `json:"endpoint,omitempty" koanf:"endpoint"`

	// Firestore
	ProjectID       string `json:"projectId,omitempty" koanf:"project_id"`
	CredentialsFile string `json:"credentialsFile,omitempty" koanf:"credentials_file"`
	CredentialsJSON string `json:"credentialsJson,omitempty" koanf:"credentials_json"`

	// Neo4j URI scheme: neo4j, neo4j+s, neo4j+ssc, bolt, bolt+s, bolt+ssc
	Scheme string `json:"scheme,omitempty" koanf:"scheme"`

	// SQLite database file, ":memory:" for an in-memory database
	FilePath string `json:"filePath,omitempty" koanf:"file_path"`

	// Number of documents sampled when inferring columns. Zero means DefaultSampleSize.
	SampleSize int `json:"sampleSize,omitempty" koanf:"sample_size"`

	// Engine specific extras
	Options map[string]interface{} `json:"options,omitempty" koanf:"options"`
}

// Validate checks the fields every engine needs.
func (c ConnectionConfig) Validate() error {
	if c.ID == "" {
		return NewConfigurationError(c.Type, "id", "connection id is required")
	}
	if _, ok := dbcapabilities.Get(c.Type); !ok {
		return NewConfigurationError(c.Type, "type", fmt.Sprintf("unknown database type: %s", c.Type))
	}
	return nil
}

// WithDefaults returns a copy with the engine default port and sample size filled in.
func (c ConnectionConfig) WithDefaults() ConnectionConfig {
	if id, ok := dbcapabilities.ParseID(string(c.Type)); ok {
		c.Type = id
	}
	if c.Port == 0 {
		if capability, ok := dbcapabilities.Get(c.Type); ok {
			c.Port = capability.DefaultPort
		}
	}
	if c.SampleSize <= 0 {
		c.SampleSize = DefaultSampleSize
	}
	return c
}

// Address returns host:port.
func (c ConnectionConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RejectUnauthorized reports whether server certificates must be verified.
// Defaults to true.
func (c ConnectionConfig) RejectUnauthorized() bool {
	return c.SSLRejectUnauthorized == nil || *c.SSLRejectUnauthorized
}

// GetString returns a string option or the default.
func (c ConnectionConfig) GetString(key, def string) string {
	if v, ok := c.Options[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return def
}

// GetInt returns an integer option or the default.
func (c ConnectionConfig) GetInt(key string, def int) int {
	v, ok := c.Options[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// GetBool returns a boolean option or the default.
func (c ConnectionConfig) GetBool(key string, def bool) bool {
	v, ok := c.Options[key]
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

// ConfigFromURL builds a connection config from a connection URL.
func ConfigFromURL(id, rawURL string) (ConnectionConfig, error) {
	details, err := dbcapabilities.ParseConnectionString(rawURL)
	if err != nil {
		return ConnectionConfig{}, NewConfigurationError("", "url", err.Error())
	}

	cfg := ConnectionConfig{
		ID:           id,
		Type:         details.DatabaseType,
		Host:         details.Host,
		Port:         details.Port,
		Username:     details.Username,
		Password:     details.Password,
		DatabaseName: details.DatabaseName,
		SSL:          details.SSL,
		SSLMode:      details.SSLMode,
		FilePath:     details.FilePath,
		SSLCert:      details.Parameters["ssl_cert"],
		SSLKey:       details.Parameters["ssl_key"],
		SSLRootCert:  details.Parameters["ssl_root_cert"],
	}
	if details.DatabaseType == dbcapabilities.Neo4j {
		cfg.Scheme = details.Scheme
	}
	if len(details.Parameters) > 0 {
		cfg.Options = make(map[string]interface{}, len(details.Parameters))
		for k, v := range details.Parameters {
			cfg.Options[k] = v
		}
	}
	return cfg.WithDefaults(), nil
}
