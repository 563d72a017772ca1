package testdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Setup recreates every schema empty on the test database.
func (d *Database) Setup(ctx context.Context, schemas []string) error {
	for _, schema := range schemas {
		if err := checkIdentifier(schema); err != nil {
			return err
		}
		if err := d.Exec(ctx, "drop schema if exists "+schema+" cascade"); err != nil {
			return fmt.Errorf("drop schema %s: %w", schema, err)
		}
		if err := d.Exec(ctx, "create schema "+schema); err != nil {
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	return nil
}

// Exec runs statement on the test database.
func (d *Database) Exec(ctx context.Context, statement string) error {
	_, err := d.test.ExecContext(ctx, statement)
	return err
}

// ExecFile runs the content of the file at path on the test database. Files
// holding nothing but comments are skipped.
func (d *Database) ExecFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sql file: %w", err)
	}
	if stripLeadingComments(string(content)) == "" {
		d.log.Debug("Skipping empty SQL file", "path", path)
		return nil
	}
	if err := d.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("execute %s: %w", path, err)
	}
	return nil
}

// Query runs query on the test database and returns the column names and
// one map per row.
func (d *Database) Query(ctx context.Context, query string) ([]string, []map[string]any, error) {
	return executeQuery(ctx, d.test, query)
}

func executeQuery(ctx context.Context, db Conn, query string) ([]string, []map[string]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	dbTypes := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i := range colTypes {
			if i < len(dbTypes) {
				dbTypes[i] = strings.ToUpper(colTypes[i].DatabaseTypeName())
			}
		}
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeDBValue(values[i], dbTypes[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, result, nil
}

func normalizeDBValue(v any, dbType string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if dbType == "DATE" {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	case []byte:
		// lib/pq hands numeric and char values over as text; keep it verbatim.
		return string(t)
	default:
		return t
	}
}
