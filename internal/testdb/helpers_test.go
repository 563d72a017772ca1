package testdb

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockConn(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return db, mock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOpener struct {
	conn   Conn
	err    error
	params []ConnParams
	before func()
}

func (f *fakeOpener) open(_ context.Context, params ConnParams) (Conn, error) {
	if f.before != nil {
		f.before()
	}
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

// newMockDatabase provisions test_env_acme on a mocked reference connection.
func newMockDatabase(t *testing.T, opts Options) (*Database, sqlmock.Sqlmock, sqlmock.Sqlmock, *bytes.Buffer) {
	t.Helper()

	ref, refMock := newMockConn(t)
	test, testMock := newMockConn(t)

	refMock.ExpectQuery("select datname from pg_database where datname like $1").
		WithArgs("%test_env_acme%").
		WillReturnRows(sqlmock.NewRows([]string{"datname"}))
	refMock.ExpectExec("create database test_env_acme").
		WillReturnResult(sqlmock.NewResult(0, 0))

	opener := &fakeOpener{conn: test}
	out := &bytes.Buffer{}
	opts.NameOverride = "acme"
	opts.Open = opener.open
	opts.Logger = discardLogger()
	opts.Stdout = out
	if opts.Params.User == "" {
		opts.Params.User = "tester"
	}

	db, err := Create(context.Background(), ref, opts)
	require.NoError(t, err)
	return db, refMock, testMock, out
}
