package database

import (
	"fmt"
	"strings"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
	"github.com/redbco/redb-anchor/pkg/logger"
)

// DatabaseLogContext identifies the connection a log line is about.
type DatabaseLogContext struct {
	DatabaseType string
	ConnectionID string
	Host         string
	Port         int
	Operation    string
}

// contextFor builds the log context of an adapter.
func contextFor(a adapter.Adapter) DatabaseLogContext {
	cfg := a.Config()
	host := cfg.Host
	if host == "" {
		host = cfg.FilePath
	}
	return DatabaseLogContext{
		DatabaseType: string(a.GetDatabaseType()),
		ConnectionID: cfg.ID,
		Host:         host,
		Port:         cfg.Port,
	}
}

// DatabaseLogger writes connection lifecycle events. A nil logger is silent.
type DatabaseLogger struct {
	logger *logger.Logger
}

// NewDatabaseLogger creates a new database logger
func NewDatabaseLogger(logger *logger.Logger) *DatabaseLogger {
	return &DatabaseLogger{logger: logger}
}

// LogConnectionAttempt logs when a connection attempt is starting
func (dl *DatabaseLogger) LogConnectionAttempt(ctx DatabaseLogContext) {
	if dl.logger == nil {
		return
	}
	dl.logger.Info("%s", dl.formatConnectionMessage("Attempting connection", ctx))
}

// LogConnectionSuccess logs successful database connections
func (dl *DatabaseLogger) LogConnectionSuccess(ctx DatabaseLogContext) {
	if dl.logger == nil {
		return
	}
	dl.logger.Info("%s", dl.formatConnectionMessage("Connection established", ctx))
}

// LogConnectionFailure logs connection failures. Client databases failing
// is expected, so these are warnings.
func (dl *DatabaseLogger) LogConnectionFailure(ctx DatabaseLogContext, err error) {
	if dl.logger == nil {
		return
	}
	dl.logger.Warn("%s: %v", dl.formatConnectionMessage("Connection failed", ctx), err)
}

// LogDisconnectionAttempt logs when disconnection is starting
func (dl *DatabaseLogger) LogDisconnectionAttempt(ctx DatabaseLogContext) {
	if dl.logger == nil {
		return
	}
	dl.logger.Debug("%s", dl.formatConnectionMessage("Attempting disconnection", ctx))
}

// LogDisconnectionSuccess logs successful disconnections
func (dl *DatabaseLogger) LogDisconnectionSuccess(ctx DatabaseLogContext) {
	if dl.logger == nil {
		return
	}
	dl.logger.Info("%s", dl.formatConnectionMessage("Disconnection completed", ctx))
}

// LogDisconnectionFailure logs disconnection failures
func (dl *DatabaseLogger) LogDisconnectionFailure(ctx DatabaseLogContext, err error) {
	if dl.logger == nil {
		return
	}
	dl.logger.Warn("%s: %v", dl.formatConnectionMessage("Disconnection failed", ctx), err)
}

// LogOperationFailure logs operation failures
func (dl *DatabaseLogger) LogOperationFailure(ctx DatabaseLogContext, err error) {
	if dl.logger == nil {
		return
	}
	dl.logger.Warn("%s: %v", dl.formatOperationMessage("Operation failed", ctx), err)
}

// LogHealthCheck logs connection probe results
func (dl *DatabaseLogger) LogHealthCheck(ctx DatabaseLogContext, isHealthy bool) {
	if dl.logger == nil {
		return
	}
	if isHealthy {
		dl.logger.Debug("%s", dl.formatConnectionMessage("Health check passed", ctx))
		return
	}
	dl.logger.Warn("%s", dl.formatConnectionMessage("Health check failed", ctx))
}

func (dl *DatabaseLogger) formatConnectionMessage(action string, ctx DatabaseLogContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[client:%s] %s", ctx.DatabaseType, action)
	if ctx.ConnectionID != "" {
		fmt.Fprintf(&b, " connection_id=%s", ctx.ConnectionID)
	}
	if ctx.Host != "" {
		if ctx.Port > 0 {
			fmt.Fprintf(&b, " host=%s:%d", ctx.Host, ctx.Port)
		} else {
			fmt.Fprintf(&b, " host=%s", ctx.Host)
		}
	}
	return b.String()
}

func (dl *DatabaseLogger) formatOperationMessage(action string, ctx DatabaseLogContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[client:%s] %s", ctx.DatabaseType, action)
	if ctx.Operation != "" {
		fmt.Fprintf(&b, " operation=%s", ctx.Operation)
	}
	if ctx.ConnectionID != "" {
		fmt.Fprintf(&b, " connection_id=%s", ctx.ConnectionID)
	}
	return b.String()
}
