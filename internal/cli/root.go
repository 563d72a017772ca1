// Package cli implements the redspec command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"redspec/internal/config"
	"redspec/internal/testdb"
)

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	fs     afero.Fs
	open   testdb.OpenFunc

	verbose  bool
	envFiles []string
}

func Run() error {
	a := &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		fs:     afero.NewOsFs(),
		open: func(ctx context.Context, params testdb.ConnParams) (testdb.Conn, error) {
			return testdb.Open(ctx, params)
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd(a).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "redspec",
		Short:         "Run SQL jobs against throwaway copies of a Redshift schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "set debug logging level")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "load variables from these files; the environment wins (default .env)")

	root.AddCommand(
		newConfigCmd(a),
		newDDLCmd(a),
		newRunCmd(a),
		newProvisionCmd(a),
		newListCmd(a),
		newDropCmd(a),
		newTasksCmd(a),
	)
	return root
}

func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// connect loads and validates the configuration and opens the reference
// database.
func (a *app) connect(ctx context.Context) (config.Config, *slog.Logger, testdb.Conn, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log := a.newLogger(cfg)

	ref, err := a.open(ctx, cfg.ReferenceParams())
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("open reference database: %w", err)
	}
	return cfg, log, ref, nil
}

// testDBOptions returns the options for an ephemeral database opened the same
// way as the reference database.
func (a *app) testDBOptions(cfg config.Config, log *slog.Logger) testdb.Options {
	opts := cfg.TestDBOptions(log)
	opts.Open = a.open
	opts.Stdout = a.out
	return opts
}

func (a *app) newLogger(cfg config.Config) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	return newLogger(a.errOut, level)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
