package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// Conn is a live connection to one database. *sql.DB satisfies it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// ConnParams holds what is needed to reach a database on the warehouse.
type ConnParams struct {
	Driver   string
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// WithDatabase returns a copy of p pointing at another database on the same host.
func (p ConnParams) WithDatabase(name string) ConnParams {
	p.Database = name
	return p
}

// DSN renders p as a postgres:// URL, which both drivers accept.
func (p ConnParams) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   p.Host,
		Path:   "/" + p.Database,
	}
	if p.Port != "" {
		u.Host = net.JoinHostPort(p.Host, p.Port)
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	if p.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", p.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// OpenFunc opens a connection described by params.
type OpenFunc func(ctx context.Context, params ConnParams) (Conn, error)

// Open connects to the database described by params and pings it. The pool
// is limited to a single connection so that session settings such as the
// search path apply to every following statement. Server notices are printed
// to stderr.
func Open(ctx context.Context, params ConnParams) (*sql.DB, error) {
	var db *sql.DB
	switch strings.TrimSpace(params.Driver) {
	case "", DriverPgx:
		cfg, err := pgx.ParseConfig(params.DSN())
		if err != nil {
			return nil, err
		}
		cfg.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
			writeNotice(os.Stderr, n.Severity, n.Message)
		}
		db = stdlib.OpenDB(*cfg)
	case DriverPq:
		connector, err := pq.NewConnector(params.DSN())
		if err != nil {
			return nil, err
		}
		db = sql.OpenDB(pq.ConnectorWithNoticeHandler(connector, func(n *pq.Error) {
			writeNotice(os.Stderr, n.Severity, n.Message)
		}))
	default:
		return nil, fmt.Errorf("unsupported driver %q", params.Driver)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// writeNotice prints a server notice the way psql does.
func writeNotice(w io.Writer, severity, message string) {
	if severity == "" {
		severity = "NOTICE"
	}
	fmt.Fprintf(w, "%s:  %s\n", severity, message)
}

func openConn(ctx context.Context, params ConnParams) (Conn, error) {
	return Open(ctx, params)
}
