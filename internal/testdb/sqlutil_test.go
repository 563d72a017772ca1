package testdb

import (
	"testing"
	"time"
)

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		in      string
		want    TableRef
		wantErr bool
	}{
		{in: "sales.orders", want: TableRef{Schema: "sales", Table: "orders"}},
		{in: " sales.orders ", want: TableRef{Schema: "sales", Table: "orders"}},
		{in: "_stage.t$1", want: TableRef{Schema: "_stage", Table: "t$1"}},
		{in: "orders", wantErr: true},
		{in: "db.sales.orders", wantErr: true},
		{in: "sales.", wantErr: true},
		{in: "sales.orders;drop", wantErr: true},
		{in: "1sales.orders", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTableRef(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseTableRef(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.String() != tt.want.Schema+"."+tt.want.Table {
			t.Fatalf("unexpected String(): %q", got.String())
		}
	}
}

func TestRenderLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "string", in: "abc", want: "'abc'"},
		{name: "embedded quote", in: "it's", want: "'it''s'"},
		{name: "numeric string stays quoted", in: "42", want: "'42'"},
		{name: "bytes", in: []byte("x"), want: "'x'"},
		{name: "int", in: 7, want: "7"},
		{name: "int64", in: int64(-3), want: "-3"},
		{name: "uint8", in: uint8(9), want: "9"},
		{name: "float", in: 1.25, want: "1.25"},
		{name: "bool", in: true, want: "true"},
		{name: "time", in: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), want: "'2024-01-02 03:04:05'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderLiteral(tt.in)
			if err != nil {
				t.Fatalf("renderLiteral returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("renderLiteral(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := renderLiteral(struct{}{}); err == nil {
		t.Fatalf("expected error for struct value")
	}
}

func TestStripLeadingComments(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "select 1", want: "select 1"},
		{in: "-- note\nselect 1", want: "select 1"},
		{in: "/* block */ select 1", want: "select 1"},
		{in: "-- a\n/* b\n c */\n-- d\ninsert into t values (1)", want: "insert into t values (1)"},
		{in: "-- only a comment", want: ""},
		{in: "/* unterminated", want: ""},
		{in: "   ", want: ""},
	}

	for _, tt := range tests {
		if got := stripLeadingComments(tt.in); got != tt.want {
			t.Fatalf("stripLeadingComments(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
