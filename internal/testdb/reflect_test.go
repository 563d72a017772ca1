package testdb

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

const tableDefQuery = `select "column", type, distkey, sortkey from pg_table_def where schemaname = $1 and tablename = $2;`

func tableDefRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"column", "type", "distkey", "sortkey"})
}

func TestCreateStatement(t *testing.T) {
	tests := []struct {
		name string
		def  TableDef
		want string
	}{
		{
			name: "distkey and sortkey",
			def: TableDef{Schema: "s", Table: "t", Columns: []Column{
				{Name: "id", DataType: "integer", DistKey: true},
				{Name: "ts", DataType: "timestamp", SortKey: 1},
			}},
			want: "create table if not exists s.t (id integer default null,ts timestamp default null) distkey(id) sortkey(ts);",
		},
		{
			name: "no keys",
			def: TableDef{Schema: "s", Table: "t", Columns: []Column{
				{Name: "a", DataType: "integer"},
				{Name: "b", DataType: "character varying(255)"},
			}},
			want: "create table if not exists s.t (a integer default null,b character varying(255) default null);",
		},
		{
			name: "sortkey only",
			def: TableDef{Schema: "s", Table: "t", Columns: []Column{
				{Name: "a", DataType: "integer", SortKey: 1},
			}},
			want: "create table if not exists s.t (a integer default null) sortkey(a);",
		},
		{
			name: "distkey only",
			def: TableDef{Schema: "s", Table: "t", Columns: []Column{
				{Name: "a", DataType: "integer", DistKey: true},
				{Name: "b", DataType: "date"},
			}},
			want: "create table if not exists s.t (a integer default null,b date default null) distkey(a);",
		},
		{
			name: "sort ranks out of column order",
			def: TableDef{Schema: "some_schema", Table: "some_table", Columns: []Column{
				{Name: "some_column", DataType: "integer", DistKey: true, SortKey: 1},
				{Name: "some_other_column", DataType: "character varying(255)"},
				{Name: "yet_another_column", DataType: "character(5)", SortKey: 2},
				{Name: "first", DataType: "bigint", SortKey: -1},
			}},
			want: "create table if not exists some_schema.some_table (some_column integer default null," +
				"some_other_column character varying(255) default null,yet_another_column character(5) default null," +
				"first bigint default null) distkey(some_column) sortkey(first,some_column,yet_another_column);",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.def.CreateStatement()
			if got != tt.want {
				t.Fatalf("unexpected statement\nwant: %s\n got: %s", tt.want, got)
			}
			if n := strings.Count(got, "distkey("); n > 1 {
				t.Fatalf("expected at most one distkey clause, got %d", n)
			}
		})
	}
}

func TestSynthesizeCreateTable(t *testing.T) {
	ref, mock := newMockConn(t)
	defer ref.Close()

	mock.ExpectExec("set search_path to '$user', s;").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(tableDefQuery).
		WithArgs("s", "t").
		WillReturnRows(tableDefRows().
			AddRow("id", "integer", true, 0).
			AddRow("ts", "timestamp", false, 1))

	got, err := SynthesizeCreateTable(context.Background(), ref, "s", "t")
	require.NoError(t, err)
	require.Equal(t, "create table if not exists s.t (id integer default null,ts timestamp default null) distkey(id) sortkey(ts);", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflectTableNotFound(t *testing.T) {
	ref, mock := newMockConn(t)
	defer ref.Close()

	mock.ExpectExec("set search_path to '$user', s;").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(tableDefQuery).
		WithArgs("s", "missing").
		WillReturnRows(tableDefRows())

	got, err := SynthesizeCreateTable(context.Background(), ref, "s", "missing")
	require.Empty(t, got)

	var notFound *SchemaNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "s", notFound.Schema)
	require.Equal(t, "missing", notFound.Table)
	require.Contains(t, err.Error(), "s.missing")
}

func TestReflectTableRejectsBadIdentifiers(t *testing.T) {
	ref, mock := newMockConn(t)
	defer ref.Close()

	_, err := ReflectTable(context.Background(), ref, "s; drop schema prod", "t")
	require.ErrorContains(t, err, "invalid identifier")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyTableDefsFromProd(t *testing.T) {
	db, refMock, testMock, _ := newMockDatabase(t, Options{})

	for _, ref := range []TableRef{{"some_schema", "some_table"}, {"some_other_schema", "some_other_table"}} {
		refMock.ExpectExec("set search_path to '$user', " + ref.Schema + ";").
			WillReturnResult(sqlmock.NewResult(0, 0))
		refMock.ExpectQuery(tableDefQuery).
			WithArgs(ref.Schema, ref.Table).
			WillReturnRows(tableDefRows().AddRow("id", "integer", false, 0))
		testMock.ExpectExec("create table if not exists " + ref.String() + " (id integer default null);").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := db.CopyTableDefsFromProd(context.Background(), []TableRef{
		{Schema: "some_schema", Table: "some_table"},
		{Schema: "some_other_schema", Table: "some_other_table"},
	})
	require.NoError(t, err)
	require.NoError(t, refMock.ExpectationsWereMet())
	require.NoError(t, testMock.ExpectationsWereMet())
}

func TestCopyTableDefIsRepeatable(t *testing.T) {
	db, refMock, testMock, _ := newMockDatabase(t, Options{})

	for i := 0; i < 2; i++ {
		refMock.ExpectExec("set search_path to '$user', s;").
			WillReturnResult(sqlmock.NewResult(0, 0))
		refMock.ExpectQuery(tableDefQuery).
			WithArgs("s", "t").
			WillReturnRows(tableDefRows().AddRow("id", "integer", true, 1))
		testMock.ExpectExec("create table if not exists s.t (id integer default null) distkey(id) sortkey(id);").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, db.CopyTableDefFromProd(context.Background(), "s", "t"))
	require.NoError(t, db.CopyTableDefFromProd(context.Background(), "s", "t"))
	require.NoError(t, testMock.ExpectationsWereMet())
}
