package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

const namePrefix = "test_env_"

// Options configures an ephemeral database.
type Options struct {
	// NameOverride replaces the random suffix of the database name when set.
	NameOverride string
	// DeleteOnFinish drops the database in Destroy. When false the database
	// is kept and its name is printed to Stdout.
	DeleteOnFinish bool
	// TestUser owns the tables truncated between scenarios. Defaults to Params.User.
	TestUser string
	// Params reach the warehouse; Database is replaced by the ephemeral name.
	Params ConnParams
	Open   OpenFunc
	Retry  RetryPolicy
	Logger *slog.Logger
	Stdout io.Writer
}

// Database is one ephemeral test database together with the reference
// connection it was created from.
type Database struct {
	name   string
	ref    Conn
	test   Conn
	opts   Options
	log    *slog.Logger
	stdout io.Writer
}

// Create provisions a fresh ephemeral database through ref and connects to it.
func Create(ctx context.Context, ref Conn, opts Options) (*Database, error) {
	if isNilConn(ref) {
		return nil, &ConfigurationError{Reason: "no reference database provided"}
	}

	if opts.Open == nil {
		opts.Open = openConn
	}
	if opts.TestUser == "" {
		opts.TestUser = opts.Params.User
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	name := DatabaseName(opts.NameOverride)
	if err := checkIdentifier(name); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("test database name override: %v", err)}
	}

	stale, err := staleDatabaseExists(ctx, ref, name)
	if err != nil {
		return nil, fmt.Errorf("look up existing test database: %w", err)
	}
	if stale {
		if _, err := ref.ExecContext(ctx, "drop database "+name); err != nil {
			return nil, fmt.Errorf("drop stale test database %s: %w", name, err)
		}
		log.Info("Dropped stale test database", "database", name)
	}

	if _, err := ref.ExecContext(ctx, "create database "+name); err != nil {
		return nil, fmt.Errorf("create test database %s: %w", name, err)
	}
	log.Debug("Created test database", "database", name)

	test, err := opts.Open(ctx, opts.Params.WithDatabase(name))
	if err != nil {
		abandon(ctx, ref, name, opts.DeleteOnFinish, log)
		return nil, fmt.Errorf("connect to test database %s: %w", name, err)
	}

	return &Database{
		name:   name,
		ref:    ref,
		test:   test,
		opts:   opts,
		log:    log,
		stdout: stdout,
	}, nil
}

// abandon cleans up a database that was created but could not be connected
// to. A database that is to be kept is only reported.
func abandon(ctx context.Context, ref Conn, name string, drop bool, log *slog.Logger) {
	if !drop {
		log.Warn("Test database left behind after failed connect", "database", name)
		return
	}
	if _, err := ref.ExecContext(context.WithoutCancel(ctx), "drop database "+name); err != nil {
		log.Warn("Could not drop test database after failed connect", "database", name, "error", err)
		return
	}
	log.Info("Dropped test database after failed connect", "database", name)
}

// DatabaseName builds the ephemeral database name from an override, or from
// a random five digit number when the override is blank.
func DatabaseName(override string) string {
	suffix := strings.TrimSpace(override)
	if suffix == "" {
		suffix = strconv.Itoa(10000 + rand.Intn(90000))
	}
	return namePrefix + suffix
}

// Name returns the ephemeral database name.
func (d *Database) Name() string {
	return d.name
}

// The lookup is a substring match, so an unrelated database whose name
// contains ours also counts as stale.
func staleDatabaseExists(ctx context.Context, ref Conn, name string) (bool, error) {
	rows, err := ref.QueryContext(ctx, "select datname from pg_database where datname like $1", "%"+name+"%")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}

func isNilConn(c Conn) bool {
	if c == nil {
		return true
	}
	db, ok := c.(*sql.DB)
	return ok && db == nil
}

// ListTestDatabases returns the ephemeral databases present on the warehouse,
// including those kept by earlier runs.
func ListTestDatabases(ctx context.Context, ref Conn) ([]string, error) {
	rows, err := ref.QueryContext(ctx, "select datname from pg_database where datname like $1 order by datname", namePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list test databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if IsTestDatabaseName(name) {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// IsTestDatabaseName reports whether name is one this package would create.
func IsTestDatabaseName(name string) bool {
	return strings.HasPrefix(name, namePrefix) && len(name) > len(namePrefix) && checkIdentifier(name) == nil
}
