package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"redspec/internal/steps"
	"redspec/internal/testdb"
)

const (
	matchStartsWith = "starts_with"
	matchIncludes   = "includes"
	matchExcludes   = "excludes"
	matchExactly    = "exactly"
	matchEmpty      = "empty"
)

// expectation describes the rows a job should leave behind in a table.
type expectation struct {
	Table   string     `yaml:"table"`
	OrderBy string     `yaml:"order_by"`
	Match   string     `yaml:"match"`
	Columns []string   `yaml:"columns"`
	Rows    [][]string `yaml:"rows"`
}

// loadFixtures reads a YAML document mapping "schema.table" to a list of
// rows.
func loadFixtures(fs afero.Fs, path string) (testdb.Fixtures, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var fixtures testdb.Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	if fixtures == nil {
		fixtures = testdb.Fixtures{}
	}
	return fixtures, nil
}

// resolveFixtureDates replaces relative date placeholders in the string
// values of well-formed fixture rows.
func resolveFixtureDates(fixtures testdb.Fixtures, resolve func(string) string) {
	for _, data := range fixtures {
		rows, ok := data.([]any)
		if !ok {
			continue
		}
		for _, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				continue
			}
			for k, v := range row {
				if s, ok := v.(string); ok {
					row[k] = resolve(s)
				}
			}
		}
	}
}

func loadExpectation(fs afero.Fs, path string) (expectation, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return expectation{}, fmt.Errorf("read expectation: %w", err)
	}

	var exp expectation
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return exp, fmt.Errorf("parse expectation %s: %w", path, err)
	}

	exp.Match = strings.ToLower(strings.TrimSpace(exp.Match))
	if exp.Match == "" {
		exp.Match = matchExactly
	}
	if _, err := testdb.ParseTableRef(exp.Table); err != nil {
		return exp, fmt.Errorf("expectation %s: %w", path, err)
	}
	switch exp.Match {
	case matchStartsWith, matchIncludes, matchExcludes, matchExactly, matchEmpty:
	default:
		return exp, fmt.Errorf("expectation %s: unsupported match %q (expected %s|%s|%s|%s|%s)",
			path, exp.Match, matchStartsWith, matchIncludes, matchExcludes, matchExactly, matchEmpty)
	}
	for i, row := range exp.Rows {
		if len(row) > len(exp.Columns) {
			return exp, fmt.Errorf("expectation %s: row %d has %d values for %d columns", path, i+1, len(row), len(exp.Columns))
		}
	}
	return exp, nil
}

// check runs the assertion the expectation names against the session's
// last result.
func (e expectation) check(s *steps.Session) error {
	table := steps.NewTable(e.Columns, e.Rows...)
	switch e.Match {
	case matchStartsWith:
		return s.ResultStartsWith(table)
	case matchIncludes:
		return s.ResultIncludes(table)
	case matchExcludes:
		return s.ResultDoesNotInclude(table)
	case matchEmpty:
		return s.ResultIsEmpty()
	default:
		return s.ResultExactlyMatches(table)
	}
}
