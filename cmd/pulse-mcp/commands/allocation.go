package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/dashboard"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func allocationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "allocation",
		Aliases: []string{"alloc"},
		Short:   "Manage planned allocations",
	}
	cmd.AddCommand(allocationListCmd(), allocationAddCmd(), allocationDeleteCmd(),
		allocationImportCmd(), allocationExportCmd())
	return cmd
}

type allocationFilter struct {
	project, person, from, to string
}

func (f *allocationFilter) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "only records of this project")
	cmd.Flags().StringVar(&f.person, "person", "", "only records of this account id")
	cmd.Flags().StringVar(&f.from, "from", "", "only records overlapping a range starting here (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "end of the overlap range (YYYY-MM-DD)")
}

func allocationListCmd() *cobra.Command {
	var f allocationFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				records, err := a.svc.ListAllocations(ctx, f.project, f.person, f.from, f.to)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, records)
				}
				renderAllocations(out, records)
				return nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func renderAllocations(w io.Writer, records []capacity.AllocationRecord) {
	tw := newTable(w, "", table.Row{"ID", "Person", "Project", "Start", "End", "Percent", "Note"})
	for _, r := range records {
		tw.AppendRow(table.Row{
			r.ID, orDash(r.DisplayName) + " (" + r.PersonID + ")", orDash(r.ProjectKey),
			r.StartDate, r.EndDate, percent(r.Percent), r.Note,
		})
	}
	alignNumbers(tw, 6)
	tw.Render()
}

func allocationAddCmd() *cobra.Command {
	var in dashboard.AllocationInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an allocation, or update one with --id",
		Example: `  pulse-mcp allocation add --person 5b10a2844c20165700ede21g --name "Ann Lee" \
      --project PAY --start 2024-01-01 --end 2024-03-31 --percent 60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				rec, err := a.svc.SaveAllocation(ctx, in)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, rec)
				}
				renderAllocations(out, []capacity.AllocationRecord{rec})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "existing allocation id")
	cmd.Flags().StringVar(&in.PersonID, "person", "", "Jira account id")
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "display name")
	cmd.Flags().StringVarP(&in.ProjectKey, "project", "p", "", "project key")
	cmd.Flags().StringVar(&in.StartDate, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.EndDate, "end", "", "last day, inclusive (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&in.Percent, "percent", 100, "share of the working day")
	cmd.Flags().StringVar(&in.Note, "note", "", "free text")
	for _, name := range []string{"person", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func allocationDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete allocations by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				for _, id := range args {
					if err := a.svc.DeleteAllocation(ctx, id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

func allocationImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create or update allocations from a YAML file (- for stdin)",
		Long: `Reads a YAML document of the form

  allocations:
    - person: 5b10a2844c20165700ede21g
      name: Ann Lee
      project: PAY
      start: 2024-01-01
      end: 2024-03-31
      percent: 60

Records carrying an id update the stored record in place. Nothing is written
unless every record is valid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				records, err := a.svc.ImportAllocations(ctx, r)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, records)
				}
				fmt.Fprintf(out, "imported %d allocations\n", len(records))
				return nil
			})
		},
	}
}

func allocationExportCmd() *cobra.Command {
	var f allocationFilter
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write allocations as YAML, in the format import reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				records, err := a.svc.ListAllocations(ctx, f.project, f.person, f.from, f.to)
				if err != nil {
					return err
				}
				return dashboard.ExportAllocations(cmd.OutOrStdout(), records)
			})
		},
	}
	f.bind(cmd)
	return cmd
}
