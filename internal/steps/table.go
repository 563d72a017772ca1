package steps

// Table is a data table with a header row. A cell missing from a short row
// is treated as an empty string.
type Table struct {
	Columns []string
	Rows    [][]string
}

func NewTable(columns []string, rows ...[]string) Table {
	return Table{Columns: columns, Rows: rows}
}

// Hashes returns one map per row keyed by column.
func (t Table) Hashes() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		hash := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				hash[col] = row[i]
			} else {
				hash[col] = ""
			}
		}
		out = append(out, hash)
	}
	return out
}
