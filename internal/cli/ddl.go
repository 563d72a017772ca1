package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"redspec/internal/testdb"
)

func newDDLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl schema.table...",
		Short: "Print the create statement a test database would use for each table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := make([]testdb.TableRef, 0, len(args))
			for _, arg := range args {
				ref, err := testdb.ParseTableRef(arg)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}

			ctx := cmd.Context()
			_, log, conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			for _, ref := range refs {
				statement, err := testdb.SynthesizeCreateTable(ctx, conn, ref.Schema, ref.Table)
				if err != nil {
					return err
				}
				log.Debug("Synthesized table definition", "table", ref.String())
				fmt.Fprintln(a.out, statement)
			}
			return nil
		},
	}
}
