package testdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Row maps column names to literal values. Nil values are left out of the
// insert so the column takes its default.
type Row map[string]any

// Fixtures maps "schema.table" to the rows to seed. Each value must be a
// list of rows; fixture files decode lists as []any of map[string]any.
type Fixtures map[string]any

// InsertStatement renders row as an insert into table. It reports false when
// every value is nil, in which case there is nothing to insert.
func InsertStatement(table TableRef, row Row) (string, bool, error) {
	keys := make([]string, 0, len(row))
	for k, v := range row {
		if v != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false, nil
	}
	sort.Strings(keys)

	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := checkIdentifier(k); err != nil {
			return "", false, fmt.Errorf("column of %s: %w", table, err)
		}
		lit, err := renderLiteral(row[k])
		if err != nil {
			return "", false, fmt.Errorf("column %s of %s: %w", k, table, err)
		}
		vals = append(vals, lit)
	}

	statement := fmt.Sprintf("insert into %s (%s) values (%s)", table, strings.Join(keys, ","), strings.Join(vals, ","))
	return statement, true, nil
}

// InsertRow inserts one row into table on the test database.
func (d *Database) InsertRow(ctx context.Context, table string, row Row) error {
	ref, err := ParseTableRef(table)
	if err != nil {
		return err
	}

	statement, ok, err := InsertStatement(ref, row)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return d.Exec(ctx, statement)
}

// Mock seeds every table in fixtures, one statement per row. The whole batch
// is validated before the first insert; rows inserted before a failing
// statement stay committed.
func (d *Database) Mock(ctx context.Context, fixtures Fixtures) error {
	tables := make([]string, 0, len(fixtures))
	for table := range fixtures {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	batches := make(map[string][]Row, len(fixtures))
	for _, table := range tables {
		rows, err := fixtureRows(table, fixtures[table])
		if err != nil {
			return err
		}
		batches[table] = rows
	}

	for _, table := range tables {
		for _, row := range batches[table] {
			if err := d.InsertRow(ctx, table, row); err != nil {
				return fmt.Errorf("mock %s: %w", table, err)
			}
		}
		d.log.Debug("Mocked table", "table", table, "rows", len(batches[table]))
	}
	return nil
}

func fixtureRows(table string, data any) ([]Row, error) {
	switch t := data.(type) {
	case []Row:
		return t, nil
	case []map[string]any:
		out := make([]Row, 0, len(t))
		for _, r := range t {
			out = append(out, Row(r))
		}
		return out, nil
	case []any:
		out := make([]Row, 0, len(t))
		for _, item := range t {
			switch r := item.(type) {
			case map[string]any:
				out = append(out, Row(r))
			case Row:
				out = append(out, r)
			default:
				return nil, &MalformedFixtureError{Table: table, Type: fmt.Sprintf("list containing %T", item)}
			}
		}
		return out, nil
	default:
		return nil, &MalformedFixtureError{Table: table, Type: fmt.Sprintf("%T", data)}
	}
}
