package adapter

import (
	"errors"
	"fmt"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// Sentinels matched with errors.Is. The typed errors below report one of
// these through their Is methods so callers never need a type switch.
var (
	ErrOperationNotSupported = errors.New("operation not supported by this database")
	ErrNotConnected          = errors.New("not connected")
	ErrConnectionFailed      = errors.New("connection failed")
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrTableNotFound         = errors.New("table not found")
	ErrDatabaseNotFound      = errors.New("database not found")
	ErrAdapterNotFound       = errors.New("adapter not found")
	ErrInvalidQuery          = errors.New("invalid query")
	ErrTransactionFailed     = errors.New("transaction failed")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// DatabaseError tags a driver error with the engine and the adapter
// operation that produced it.
type DatabaseError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Cause        error
	Details      map[string]any
}

func (e *DatabaseError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %v", e.DatabaseType, e.Operation, e.Cause)
	if len(e.Details) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %v)", msg, e.Details)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

// NewDatabaseError wraps cause for operation on dbType.
func NewDatabaseError(dbType dbcapabilities.DatabaseID, operation string, cause error) *DatabaseError {
	return &DatabaseError{DatabaseType: dbType, Operation: operation, Cause: cause}
}

// WithContext attaches a key/value detail rendered after the cause.
func (e *DatabaseError) WithContext(key string, value any) *DatabaseError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WrapError returns nil for a nil err and leaves errors that already carry
// a DatabaseError untouched, so the innermost operation name wins.
func WrapError(dbType dbcapabilities.DatabaseID, operation string, err error) error {
	if err == nil {
		return nil
	}
	var existing *DatabaseError
	if errors.As(err, &existing) {
		return err
	}
	return NewDatabaseError(dbType, operation, err)
}

// NotConnected is what every data operation returns before Connect succeeds.
func NotConnected(dbType dbcapabilities.DatabaseID) error {
	return NewDatabaseError(dbType, "execute", ErrNotConnected)
}

// InvalidArgument rejects a caller-supplied row, filter or option.
func InvalidArgument(dbType dbcapabilities.DatabaseID, operation, reason string) error {
	return NewDatabaseError(dbType, operation, fmt.Errorf("%w: %s", ErrInvalidArgument, reason))
}

// UnsupportedOperationError reports an operation the engine has no
// equivalent for. It matches ErrOperationNotSupported.
type UnsupportedOperationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Reason       string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("%s does not support %s", e.DatabaseType, e.Operation)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrOperationNotSupported
}

func NewUnsupportedOperationError(dbType dbcapabilities.DatabaseID, operation, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{DatabaseType: dbType, Operation: operation, Reason: reason}
}

// ConnectionError is returned by Connect. File based engines pass an empty
// host and get the shorter message.
type ConnectionError struct {
	DatabaseType dbcapabilities.DatabaseID
	Host         string
	Port         int
	Cause        error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("%s: connection failed: %v", e.DatabaseType, e.Cause)
	}
	return fmt.Sprintf("%s: failed to connect to %s:%d: %v", e.DatabaseType, e.Host, e.Port, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

func NewConnectionError(dbType dbcapabilities.DatabaseID, host string, port int, cause error) *ConnectionError {
	return &ConnectionError{DatabaseType: dbType, Host: host, Port: port, Cause: cause}
}

// ConfigurationError flags a ConnectionConfig that cannot be used.
type ConfigurationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Field        string
	Reason       string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.DatabaseType, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: field '%s': %s", e.DatabaseType, e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func NewConfigurationError(dbType dbcapabilities.DatabaseID, field, reason string) *ConfigurationError {
	return &ConfigurationError{DatabaseType: dbType, Field: field, Reason: reason}
}

// NotFoundError names a missing table, collection, index or database.
// Tables and collections match ErrTableNotFound, databases match
// ErrDatabaseNotFound.
type NotFoundError struct {
	DatabaseType dbcapabilities.DatabaseID
	ResourceType string
	ResourceName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found in %s: %s", e.ResourceType, e.DatabaseType, e.ResourceName)
}

func (e *NotFoundError) Is(target error) bool {
	switch e.ResourceType {
	case "table", "collection":
		return target == ErrTableNotFound
	case "database":
		return target == ErrDatabaseNotFound
	}
	return false
}

func NewNotFoundError(dbType dbcapabilities.DatabaseID, resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{DatabaseType: dbType, ResourceType: resourceType, ResourceName: resourceName}
}

func IsUnsupported(err error) bool { return errors.Is(err, ErrOperationNotSupported) }

func IsConnectionError(err error) bool { return errors.Is(err, ErrConnectionFailed) }

func IsConfigurationError(err error) bool { return errors.Is(err, ErrInvalidConfiguration) }
