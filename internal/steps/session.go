// Package steps drives an ephemeral test database through the stages of a
// SQL scenario: dependencies, seeded tables, job files, and checks on the
// resulting table.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"redspec/internal/testdb"
)

// Engine is the part of *testdb.Database a session drives.
type Engine interface {
	Setup(ctx context.Context, schemas []string) error
	CopyTableDefsFromProd(ctx context.Context, tables []testdb.TableRef) error
	Mock(ctx context.Context, fixtures testdb.Fixtures) error
	TruncateAllOwnedTables(ctx context.Context) error
	ExecFile(ctx context.Context, path string) error
	Query(ctx context.Context, query string) ([]string, []map[string]any, error)
}

type Config struct {
	Clock      clockwork.Clock
	ShowOutput bool
	Logger     *slog.Logger
}

// Session holds the state shared by the steps of a run. Setup state lives as
// long as the feature does; everything else is reset per scenario.
type Session struct {
	db    Engine
	clock clockwork.Clock
	show  bool
	log   *slog.Logger

	feature string
	setup   bool

	defaults map[string]map[string]string
	sqlPath  string
	sqlFiles []string
	columns  []string
	result   []map[string]any
}

func NewSession(db Engine, cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		db:       db,
		clock:    cfg.Clock,
		show:     cfg.ShowOutput,
		log:      cfg.Logger,
		defaults: map[string]map[string]string{},
	}
}

// BeginScenario starts a scenario of feature. Switching to another feature
// forgets that the database has been set up.
func (s *Session) BeginScenario(feature string) {
	if feature != s.feature {
		s.log.Debug("Starting feature", "feature", feature)
		s.feature = feature
		s.setup = false
	}
	s.defaults = map[string]map[string]string{}
	s.sqlPath = ""
	s.sqlFiles = nil
	s.columns = nil
	s.result = nil
}

// IsSetUp reports whether the table dependencies of the current feature
// have been created.
func (s *Session) IsSetUp() bool {
	return s.setup
}

// SchemaDependencies recreates schemas unless the feature is already set up.
func (s *Session) SchemaDependencies(ctx context.Context, schemas []string) error {
	if s.setup {
		return nil
	}
	return s.db.Setup(ctx, distinct(schemas))
}

// TableDependencies empties the owned tables when the feature is already set
// up. Otherwise it recreates the schemas of tables, copies their definitions
// from the reference database and marks the feature as set up.
func (s *Session) TableDependencies(ctx context.Context, tables []string) error {
	if s.setup {
		return s.silence(func() error { return s.db.TruncateAllOwnedTables(ctx) })
	}

	refs := make([]testdb.TableRef, 0, len(tables))
	schemas := make([]string, 0, len(tables))
	for _, t := range tables {
		ref, err := testdb.ParseTableRef(t)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
		schemas = append(schemas, ref.Schema)
	}

	err := s.silence(func() error {
		if err := s.db.Setup(ctx, distinct(schemas)); err != nil {
			return err
		}
		return s.db.CopyTableDefsFromProd(ctx, refs)
	})
	if err != nil {
		return err
	}
	s.setup = true
	return nil
}

func (s *Session) CleanEnvironment(ctx context.Context) error {
	return s.silence(func() error { return s.db.TruncateAllOwnedTables(ctx) })
}

// SetDefaults records values used for every column of table that a seeded
// row leaves out.
func (s *Session) SetDefaults(table string, row map[string]string) {
	s.defaults[table] = row
}

// ExistingTable seeds table with the rows of data merged over the table's
// defaults. With placeholders, relative dates are resolved first.
func (s *Session) ExistingTable(ctx context.Context, table string, data Table, placeholders bool) error {
	if _, err := testdb.ParseTableRef(table); err != nil {
		return err
	}

	defaults := s.defaults[table]
	rows := make([]testdb.Row, 0, len(data.Rows))
	for _, hash := range data.Hashes() {
		merged := make(map[string]string, len(defaults)+len(hash))
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range hash {
			merged[k] = v
		}

		row := make(testdb.Row, len(merged))
		for k, v := range merged {
			if placeholders {
				v = ResolveDate(v, s.clock.Now())
			}
			row[k] = v
		}
		rows = append(rows, row)
	}

	return s.db.Mock(ctx, testdb.Fixtures{table: rows})
}

// SQLFiles queues files under dir for ExecuteFiles and makes dir the path
// for ExecuteFile.
func (s *Session) SQLFiles(dir string, files []string) {
	s.sqlPath = dir
	s.sqlFiles = make([]string, 0, len(files))
	for _, f := range files {
		s.sqlFiles = append(s.sqlFiles, filepath.Join(dir, f))
	}
}

func (s *Session) SQLFilePath(dir string) {
	s.sqlPath = dir
}

// ExecuteFiles runs the files queued by SQLFiles in order.
func (s *Session) ExecuteFiles(ctx context.Context) error {
	return s.silence(func() error {
		for _, f := range s.sqlFiles {
			if err := s.db.ExecFile(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExecuteFile runs name relative to the SQL file path.
func (s *Session) ExecuteFile(ctx context.Context, name string) error {
	return s.silence(func() error {
		return s.db.ExecFile(ctx, filepath.Join(s.sqlPath, name))
	})
}

// QueryResult selects every row of table, optionally ordered by a column,
// and keeps the result for the assertions.
func (s *Session) QueryResult(ctx context.Context, table, orderBy string) error {
	query := fmt.Sprintf("select * from %s;", table)
	if orderBy != "" {
		query = fmt.Sprintf("select * from %s order by %s;", table, orderBy)
	}

	columns, rows, err := s.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	s.columns = columns
	s.result = rows
	return nil
}

// Now is the session clock's current time.
func (s *Session) Now() time.Time {
	return s.clock.Now()
}

// Result returns the columns and rows of the last QueryResult.
func (s *Session) Result() ([]string, []map[string]any) {
	return s.columns, s.result
}

func (s *Session) silence(fn func() error) error {
	return Silence(s.show, fn)
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
