package testdb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// sqlStateObjectInUse is reported when a database cannot be dropped because
// another session is still connected to it.
const sqlStateObjectInUse = "55006"

// ConfigurationError is returned before any database is touched when the
// provisioner is missing something it needs.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// SchemaNotFoundError is returned when the catalog has no rows for a table.
type SchemaNotFoundError struct {
	Schema string
	Table  string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("there is no table information for %s.%s", e.Schema, e.Table)
}

// MalformedFixtureError is returned when a fixture entry is not a list of rows.
type MalformedFixtureError struct {
	Table string
	Type  string
}

func (e *MalformedFixtureError) Error() string {
	return fmt.Sprintf("mock data for %s is not correctly formatted: must be a list of rows but was %s", e.Table, e.Type)
}

// BusyResourceError wraps a drop failure caused by other sessions holding the
// database open.
type BusyResourceError struct {
	Database string
	Err      error
}

func (e *BusyResourceError) Error() string {
	return fmt.Sprintf("database %s is in use: %v", e.Database, e.Err)
}

func (e *BusyResourceError) Unwrap() error { return e.Err }

// IsBusy reports whether err means the target database is held open by
// another session. Both supported drivers are recognised.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateObjectInUse
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlStateObjectInUse
	}

	return strings.Contains(strings.ToLower(err.Error()), "is being accessed by other users")
}
