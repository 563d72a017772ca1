package testdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
)

// RetryPolicy bounds how often a busy database drop is attempted.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// IsBusy decides which failures are worth another attempt.
	IsBusy func(error) bool
	// OnRetry, when set, is called before every wait.
	OnRetry func(attempt int, wait time.Duration)
}

// DefaultRetryPolicy tries three times, five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
		IsBusy:      IsBusy,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// DropDatabase drops name through ref, retrying while another session holds
// the database open. When the attempts run out the returned error is a
// *BusyResourceError.
func DropDatabase(ctx context.Context, ref Conn, name string, policy RetryPolicy, log *slog.Logger) error {
	if err := checkIdentifier(name); err != nil {
		return err
	}
	if log == nil {
		log = slog.Default()
	}
	isBusy := policy.IsBusy
	if isBusy == nil {
		isBusy = IsBusy
	}

	attempt := 0
	op := func() error {
		attempt++
		_, err := ref.ExecContext(ctx, "drop database "+name)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return backoff.Permanent(err)
		}
		return &BusyResourceError{Database: name, Err: err}
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Test database is busy, retrying drop", "database", name, "attempt", attempt, "wait", wait, "error", err)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, wait)
		}
	}

	if err := backoff.RetryNotify(op, policy.backOff(ctx), notify); err != nil {
		var busy *BusyResourceError
		if errors.As(err, &busy) {
			return err
		}
		return fmt.Errorf("drop test database %s: %w", name, err)
	}
	log.Debug("Dropped test database", "database", name, "attempts", attempt)
	return nil
}

// TruncateAllOwnedTables empties every table the test user owns on the test
// database, one statement per table.
func (d *Database) TruncateAllOwnedTables(ctx context.Context) error {
	tables, err := d.ownedTables(ctx)
	if err != nil {
		return fmt.Errorf("list owned tables: %w", err)
	}
	for _, table := range tables {
		if err := d.Exec(ctx, "truncate table "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

func (d *Database) ownedTables(ctx context.Context) ([]string, error) {
	rows, err := d.test.QueryContext(ctx, "select schemaname || '.' || tablename as schema_and_table from pg_tables where tableowner = $1", d.opts.TestUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// Destroy closes the test connection, drops the test database unless it is
// to be kept, and closes the reference connection. Teardown is not
// cancellable and a drop that stays busy is logged rather than returned.
func (d *Database) Destroy(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	var result *multierror.Error
	if err := d.test.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close test database connection: %w", err))
	}

	if d.opts.DeleteOnFinish {
		if err := DropDatabase(ctx, d.ref, d.name, d.opts.Retry, d.log); err != nil {
			var busy *BusyResourceError
			if errors.As(err, &busy) {
				d.log.Warn("Giving up on dropping test database", "database", d.name, "error", busy.Err)
			} else {
				result = multierror.Append(result, err)
			}
		}
	} else {
		fmt.Fprintf(d.stdout, "\nTest database has been kept alive: %s\n", d.name)
		d.log.Info("Test database kept", "database", d.name)
	}

	if err := d.ref.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close reference database connection: %w", err))
	}

	return result.ErrorOrNil()
}
