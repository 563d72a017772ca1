package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"redspec/internal/render"
	"redspec/internal/steps"
	"redspec/internal/testdb"
)

const runScenarioName = "redspec run"

type dependencies struct {
	schemas []string
	tables  []string
}

type runOptions struct {
	deps         dependencies
	fixtures     string
	placeholders bool
	files        []string
	expect       string
	query        string
	output       string
	keep         bool
}

func addDependencyFlags(flags *pflag.FlagSet, deps *dependencies) {
	flags.StringSliceVar(&deps.schemas, "schemas", nil, "schemas to recreate empty on the test database")
	flags.StringSliceVar(&deps.tables, "tables", nil, "schema.table definitions to copy from the reference database")
}

func addOutputFlag(flags *pflag.FlagSet, target *string) {
	flags.StringVarP(target, "output", "o", render.FormatTable, "output format: table|json")
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run SQL files against a fresh test database and print or check the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), o)
		},
	}

	flags := cmd.Flags()
	addDependencyFlags(flags, &o.deps)
	flags.StringVar(&o.fixtures, "fixtures", "", "YAML file mapping schema.table to the rows to seed")
	flags.BoolVar(&o.placeholders, "date-placeholders", false, "resolve relative dates such as \"3 days ago\" in fixture values")
	flags.StringArrayVarP(&o.files, "file", "f", nil, "SQL file to execute, in order (repeatable)")
	flags.StringVar(&o.expect, "expect", "", "YAML file describing the rows a table must hold afterwards")
	flags.StringVarP(&o.query, "query", "q", "", "query to print after the files ran")
	addOutputFlag(flags, &o.output)
	flags.BoolVar(&o.keep, "keep", false, "keep the test database (same as KEEP_TEST_DB=1)")
	return cmd
}

func (a *app) run(ctx context.Context, o *runOptions) (err error) {
	if o.output != render.FormatTable && o.output != render.FormatJSON {
		return fmt.Errorf("unsupported output format %q", o.output)
	}

	var fixtures testdb.Fixtures
	if o.fixtures != "" {
		if fixtures, err = loadFixtures(a.fs, o.fixtures); err != nil {
			return err
		}
	}
	var exp *expectation
	if o.expect != "" {
		loaded, err := loadExpectation(a.fs, o.expect)
		if err != nil {
			return err
		}
		exp = &loaded
	}

	cfg, log, ref, err := a.connect(ctx)
	if err != nil {
		return err
	}

	opts := a.testDBOptions(cfg, log)
	if o.keep {
		opts.DeleteOnFinish = false
	}
	db, err := testdb.Create(ctx, ref, opts)
	if err != nil {
		_ = ref.Close()
		return err
	}
	log.Info("Provisioned test database", "database", db.Name())

	defer func() {
		if derr := db.Destroy(ctx); derr != nil {
			err = multierror.Append(err, derr)
		}
	}()

	session := steps.NewSession(db, steps.Config{ShowOutput: cfg.ShowOutput, Logger: log})
	session.BeginScenario(runScenarioName)

	if err := prepare(ctx, session, o.deps); err != nil {
		return err
	}

	if fixtures != nil {
		if o.placeholders {
			now := session.Now()
			resolveFixtureDates(fixtures, func(v string) string { return steps.ResolveDate(v, now) })
		}
		if err := db.Mock(ctx, fixtures); err != nil {
			return err
		}
		log.Debug("Seeded fixtures", "tables", len(fixtures))
	}

	session.SQLFiles("", o.files)
	if err := session.ExecuteFiles(ctx); err != nil {
		return err
	}

	if exp != nil {
		if err := session.QueryResult(ctx, exp.Table, exp.OrderBy); err != nil {
			return err
		}
		columns, rows := session.Result()
		if err := a.printRows(o.output, columns, rows); err != nil {
			return err
		}
		return exp.check(session)
	}

	if o.query != "" {
		columns, rows, err := db.Query(ctx, o.query)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		return a.printRows(o.output, columns, rows)
	}
	return nil
}

func prepare(ctx context.Context, session *steps.Session, deps dependencies) error {
	if len(deps.schemas) > 0 {
		if err := session.SchemaDependencies(ctx, deps.schemas); err != nil {
			return err
		}
	}
	if len(deps.tables) > 0 {
		if err := session.TableDependencies(ctx, deps.tables); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) printRows(format string, columns []string, rows []map[string]any) error {
	out, err := render.Output(format, columns, rows)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, out)
	return nil
}

func newProvisionCmd(a *app) *cobra.Command {
	var deps dependencies
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a test database, prepare its dependencies and keep it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.provision(cmd.Context(), deps)
		},
	}
	addDependencyFlags(cmd.Flags(), &deps)
	return cmd
}

func (a *app) provision(ctx context.Context, deps dependencies) (err error) {
	cfg, log, ref, err := a.connect(ctx)
	if err != nil {
		return err
	}

	opts := a.testDBOptions(cfg, log)
	opts.DeleteOnFinish = false
	db, err := testdb.Create(ctx, ref, opts)
	if err != nil {
		_ = ref.Close()
		return err
	}
	log.Info("Provisioned test database", "database", db.Name())

	defer func() {
		if derr := db.Destroy(ctx); derr != nil {
			err = multierror.Append(err, derr)
		}
	}()

	session := steps.NewSession(db, steps.Config{ShowOutput: cfg.ShowOutput, Logger: log.With(slog.String("database", db.Name()))})
	return prepare(ctx, session, deps)
}
