// Package render formats query results for the terminal and for assertion
// failures.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Output renders rows in the given format.
func Output(format string, columns []string, rows []map[string]any) (string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal json output: %w", err)
		}
		return string(payload), nil
	case FormatTable, "":
		return Table(columns, rows), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

func Table(columns []string, rows []map[string]any) string {
	if len(columns) == 0 {
		return "No rows returned."
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}

	stringRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			v := FormatCell(row[col])
			line[i] = v
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
		stringRows = append(stringRows, line)
	}

	hline := buildHorizontalLine(widths)
	var b strings.Builder
	b.WriteString(hline)
	b.WriteByte('\n')
	b.WriteString(buildTableRow(columns, widths))
	b.WriteByte('\n')
	b.WriteString(hline)
	b.WriteByte('\n')

	for _, line := range stringRows {
		b.WriteString(buildTableRow(line, widths))
		b.WriteByte('\n')
	}

	b.WriteString(hline)
	if len(rows) == 0 {
		b.WriteString("\n(0 rows)")
	}

	return b.String()
}

// Rows renders rows as a bare pipe table with one line per row and no rules,
// which keeps two renderings of the same columns line-diffable.
func Rows(columns []string, rows []map[string]any) string {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range rows {
		for i, col := range columns {
			if n := len(plainCell(row[col])); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	b.WriteString(buildTableRow(columns, widths))
	b.WriteByte('\n')
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			line[i] = plainCell(row[col])
		}
		b.WriteString(buildTableRow(line, widths))
		b.WriteByte('\n')
	}
	return b.String()
}

// Diff returns a unified diff from expected to actual, or "" when they are
// equal.
func Diff(expected, actual string) string {
	if expected == actual {
		return ""
	}
	expected = withTrailingNewline(expected)
	actual = withTrailingNewline(actual)
	edits := myers.ComputeEdits(span.URIFromPath("expected"), expected, actual)
	return fmt.Sprint(gotextdiff.ToUnified("expected", "actual", expected, edits))
}

func withTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func buildHorizontalLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func buildTableRow(values []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, v := range values {
		b.WriteByte(' ')
		b.WriteString(v)
		padding := widths[i] - len(v)
		if padding > 0 {
			b.WriteString(strings.Repeat(" ", padding))
		}
		b.WriteByte(' ')
		b.WriteByte('|')
	}
	return b.String()
}

// FormatCell renders a single value, NULL for nil, on one line.
func FormatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return plainCell(v)
}

// plainCell is FormatCell without the NULL marker; nil renders empty.
func plainCell(v any) string {
	if v == nil {
		return ""
	}
	str := fmt.Sprintf("%v", v)
	str = strings.ReplaceAll(str, "\n", " ")
	str = strings.ReplaceAll(str, "\r", " ")
	return str
}
