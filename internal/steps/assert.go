package steps

import (
	"strings"

	"redspec/internal/render"
)

// AssertionError is returned when the queried result does not meet an
// expectation. Got holds the actual rows; Diff compares them with the
// expected rows over the same columns.
type AssertionError struct {
	Message string
	Got     string
	Diff    string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString(", got:\n")
	b.WriteString(e.Got)
	if e.Diff != "" {
		b.WriteByte('\n')
		b.WriteString(e.Diff)
	}
	return b.String()
}

// ResultStartsWith checks that the first rows of the result match expected,
// row by row.
func (s *Session) ResultStartsWith(expected Table) error {
	want := expected.Hashes()
	for i, hash := range want {
		if i >= len(s.result) || !s.rowMatches(s.result[i], hash) {
			return s.failure("Does not start with expected result", expected)
		}
	}
	return nil
}

// ResultIncludes checks that every expected row matches some row of the
// result.
func (s *Session) ResultIncludes(expected Table) error {
	for _, hash := range expected.Hashes() {
		if !s.anyRowMatches(hash) {
			return s.failure("Result is not included", expected)
		}
	}
	return nil
}

// ResultDoesNotInclude checks that no expected row matches any row of the
// result.
func (s *Session) ResultDoesNotInclude(expected Table) error {
	for _, hash := range expected.Hashes() {
		if s.anyRowMatches(hash) {
			return s.failure("Result is included", expected)
		}
	}
	return nil
}

// ResultExactlyMatches checks that the result has as many rows as expected
// and that the rows match pairwise in both directions.
func (s *Session) ResultExactlyMatches(expected Table) error {
	want := expected.Hashes()
	if len(want) != len(s.result) {
		return s.failure("Does not match exactly", expected)
	}
	now := s.clock.Now()
	for i, row := range s.result {
		for key, value := range want[i] {
			if !ValueMatches(row[key], value, now) {
				return s.failure("Does not match exactly", expected)
			}
		}
		if !s.rowMatches(row, want[i]) {
			return s.failure("Does not match exactly", expected)
		}
	}
	return nil
}

func (s *Session) ResultIsEmpty() error {
	if len(s.result) != 0 {
		return s.failure("Result is not empty", Table{})
	}
	return nil
}

// rowMatches checks every column of the result against hash. Columns the
// expectation does not mention are ignored.
func (s *Session) rowMatches(row map[string]any, hash map[string]string) bool {
	now := s.clock.Now()
	for _, col := range s.columns {
		want, ok := hash[col]
		if !ok {
			continue
		}
		if !ValueMatches(row[col], want, now) {
			return false
		}
	}
	return true
}

func (s *Session) anyRowMatches(hash map[string]string) bool {
	for _, row := range s.result {
		if s.rowMatches(row, hash) {
			return true
		}
	}
	return false
}

func (s *Session) failure(msg string, expected Table) *AssertionError {
	headings := expected.Columns
	if len(expected.Rows) == 0 {
		headings = s.columns
	}

	got := render.Rows(headings, s.result)
	err := &AssertionError{Message: msg, Got: got}
	if len(expected.Rows) > 0 {
		want := make([]map[string]any, 0, len(expected.Rows))
		for _, hash := range expected.Hashes() {
			row := make(map[string]any, len(hash))
			for k, v := range hash {
				row[k] = v
			}
			want = append(want, row)
		}
		err.Diff = render.Diff(render.Rows(headings, want), got)
	}
	return err
}
