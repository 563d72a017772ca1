package testdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Column is one row of the warehouse's table catalog.
type Column struct {
	Name     string
	DataType string
	DistKey  bool
	// SortKey is the column's position in the sort key, 0 when it is not part of it.
	SortKey int
}

// TableDef is the reflected shape of a production table.
type TableDef struct {
	Schema  string
	Table   string
	Columns []Column
}

// ReflectTable reads the definition of schema.table from the catalog of conn.
// pg_table_def only lists tables on the search path, so the schema is added
// to it first.
func ReflectTable(ctx context.Context, conn Conn, schema, table string) (TableDef, error) {
	if err := checkIdentifier(schema); err != nil {
		return TableDef{}, err
	}
	if err := checkIdentifier(table); err != nil {
		return TableDef{}, err
	}

	if _, err := conn.ExecContext(ctx, "set search_path to '$user', "+schema+";"); err != nil {
		return TableDef{}, fmt.Errorf("set search path: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `select "column", type, distkey, sortkey from pg_table_def where schemaname = $1 and tablename = $2;`, schema, table)
	if err != nil {
		return TableDef{}, fmt.Errorf("query table definition: %w", err)
	}
	defer rows.Close()

	def := TableDef{Schema: schema, Table: table}
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.DistKey, &c.SortKey); err != nil {
			return TableDef{}, err
		}
		def.Columns = append(def.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return TableDef{}, err
	}

	if len(def.Columns) == 0 {
		return TableDef{}, &SchemaNotFoundError{Schema: schema, Table: table}
	}
	return def, nil
}

// DistKey returns the distribution key column, or "" when there is none.
func (t TableDef) DistKey() string {
	for _, c := range t.Columns {
		if c.DistKey {
			return c.Name
		}
	}
	return ""
}

// SortKeys returns the sort key columns ordered by rank.
func (t TableDef) SortKeys() []string {
	keyed := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.SortKey != 0 {
			keyed = append(keyed, c)
		}
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].SortKey < keyed[j].SortKey
	})

	out := make([]string, 0, len(keyed))
	for _, c := range keyed {
		out = append(out, c.Name)
	}
	return out
}

// CreateStatement renders t as a create table statement. Every column is
// nullable so fixtures may leave any of them out.
func (t TableDef) CreateStatement() string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, c.Name+" "+c.DataType+" default null")
	}

	var b strings.Builder
	b.WriteString("create table if not exists ")
	b.WriteString(t.Schema)
	b.WriteByte('.')
	b.WriteString(t.Table)
	b.WriteString(" (")
	b.WriteString(strings.Join(defs, ","))
	b.WriteByte(')')

	if dist := t.DistKey(); dist != "" {
		b.WriteString(" distkey(")
		b.WriteString(dist)
		b.WriteByte(')')
	}
	if sortKeys := t.SortKeys(); len(sortKeys) > 0 {
		b.WriteString(" sortkey(")
		b.WriteString(strings.Join(sortKeys, ","))
		b.WriteByte(')')
	}

	b.WriteByte(';')
	return b.String()
}

// SynthesizeCreateTable reflects schema.table through conn and renders it as
// a create table statement that is safe to run repeatedly.
func SynthesizeCreateTable(ctx context.Context, conn Conn, schema, table string) (string, error) {
	def, err := ReflectTable(ctx, conn, schema, table)
	if err != nil {
		return "", err
	}
	return def.CreateStatement(), nil
}

// CopyTableDefFromProd creates schema.table on the test database with the
// shape it has on the reference database. The warehouse cannot run
// "create table ... (like other_db.table)" across databases, so the
// statement is rebuilt from the catalog.
func (d *Database) CopyTableDefFromProd(ctx context.Context, schema, table string) error {
	statement, err := SynthesizeCreateTable(ctx, d.ref, schema, table)
	if err != nil {
		return err
	}
	if err := d.Exec(ctx, statement); err != nil {
		return fmt.Errorf("create %s.%s: %w", schema, table, err)
	}
	d.log.Debug("Copied table definition", "table", schema+"."+table)
	return nil
}

// CopyTableDefsFromProd copies every table in order.
func (d *Database) CopyTableDefsFromProd(ctx context.Context, tables []TableRef) error {
	for _, t := range tables {
		if err := d.CopyTableDefFromProd(ctx, t.Schema, t.Table); err != nil {
			return err
		}
	}
	return nil
}
