package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"redspec/internal/testdb"
)

type dropOptions struct {
	all    bool
	yes    bool
	dryRun bool
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the test databases present on the warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, _, ref, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer ref.Close()

			names, err := testdb.ListTestDatabases(ctx, ref)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(a.out, "No test databases found.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func newDropCmd(a *app) *cobra.Command {
	o := &dropOptions{}
	cmd := &cobra.Command{
		Use:   "drop [NAME...]",
		Short: "Drop test databases kept by earlier runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !o.all {
				return errors.New("name at least one test database or pass --all")
			}
			if len(args) > 0 && o.all {
				return errors.New("--all does not take database names")
			}
			for _, name := range args {
				if !testdb.IsTestDatabaseName(name) {
					return fmt.Errorf("refusing to drop %q: not a test database name", name)
				}
			}
			return a.drop(cmd.Context(), args, o)
		},
	}
	cmd.Flags().BoolVar(&o.all, "all", false, "drop every test database")
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "only print what would be dropped")
	return cmd
}

func (a *app) drop(ctx context.Context, names []string, o *dropOptions) error {
	cfg, log, ref, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer ref.Close()

	present, err := testdb.ListTestDatabases(ctx, ref)
	if err != nil {
		return err
	}
	if o.all {
		names = present
	}

	targets, missing := splitPresent(names, present)
	if len(missing) > 0 {
		fmt.Fprintln(a.out, "Already missing:")
		for _, name := range missing {
			fmt.Fprintf(a.out, "- %s\n", name)
		}
	}
	if len(targets) == 0 {
		fmt.Fprintln(a.out, "Nothing to drop.")
		return nil
	}

	if o.dryRun {
		fmt.Fprintln(a.out, "Dry run (no databases dropped).")
		fmt.Fprintln(a.out, "Would drop:")
		for _, name := range targets {
			fmt.Fprintf(a.out, "- %s\n", name)
		}
		return nil
	}

	if !o.yes {
		ok, err := confirmDrop(a.in, a.errOut, targets)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.errOut, "Drop cancelled.")
			return nil
		}
	}

	dropped := make([]string, 0, len(targets))
	for _, name := range targets {
		if err := testdb.DropDatabase(ctx, ref, name, cfg.RetryPolicy(), log); err != nil {
			reportDropped(a.out, dropped)
			return err
		}
		dropped = append(dropped, name)
	}
	reportDropped(a.out, dropped)
	return nil
}

func reportDropped(w io.Writer, dropped []string) {
	if len(dropped) == 0 {
		return
	}
	color.New(color.FgGreen).Fprintln(w, "Dropped:")
	for _, name := range dropped {
		fmt.Fprintf(w, "- %s\n", name)
	}
}

func splitPresent(names, present []string) (targets, missing []string) {
	exists := make(map[string]struct{}, len(present))
	for _, p := range present {
		exists[p] = struct{}{}
	}
	for _, name := range names {
		if _, ok := exists[name]; ok {
			targets = append(targets, name)
		} else {
			missing = append(missing, name)
		}
	}
	return targets, missing
}

func confirmDrop(in io.Reader, out io.Writer, names []string) (bool, error) {
	color.New(color.FgYellow, color.Bold).Fprintf(out, "Drop %d test database(s)? This cannot be undone:\n", len(names))
	for _, name := range names {
		fmt.Fprintf(out, "- %s\n", name)
	}
	fmt.Fprint(out, "Continue? [y/N]: ")

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) == "" {
				return false, nil
			}
		} else if errors.Is(err, os.ErrClosed) {
			return false, nil
		} else if len(strings.TrimSpace(line)) == 0 {
			return false, err
		}
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	switch answer {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
