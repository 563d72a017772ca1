package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"redspec/internal/tasks"
)

func newTasksCmd(a *app) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "tasks [NAME[LINE]]",
		Short: "List the test tasks derived from the features directory",
		Long: "List one task per feature file and one per directory holding features.\n" +
			"With NAME, print the feature target and report file of that task; a\n" +
			"trailing [LINE] narrows a feature task to one scenario.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := tasks.Discover(a.fs, root)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				task, err := tasks.Find(all, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s\t%s\n", task.Target(), task.Report)
				return nil
			}

			if len(all) == 0 {
				fmt.Fprintf(a.out, "No features found under %s.\n", root)
				return nil
			}

			table := tablewriter.NewWriter(a.out)
			table.SetAutoWrapText(false)
			table.SetAutoFormatHeaders(false)
			table.SetBorder(true)
			table.SetHeader([]string{"Task", "Target", "Report", "Description"})
			for _, t := range all {
				table.Append([]string{t.Name, t.Target(), t.Report, t.Description})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project root holding the features directory")
	return cmd
}
