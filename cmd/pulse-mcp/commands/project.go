package commands

import (
	"context"
	"fmt"

	"pulse-mcp/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage project overviews (budget, dates, status, scope)",
	}
	cmd.AddCommand(projectSetCmd(), projectShowCmd(), projectListCmd(), projectDeleteCmd())
	return cmd
}

func projectSetCmd() *cobra.Command {
	var (
		ov       store.ProjectOverview
		complete float64
	)
	cmd := &cobra.Command{
		Use:   "set PROJECT",
		Short: "Create or replace the overview of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ov.ProjectKey = args[0]
			if cmd.Flags().Changed("percent-complete") {
				ov.PercentComplete = &complete
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				saved, err := a.svc.SetOverview(ctx, ov)
				if err != nil {
					return err
				}
				return printOverviews(cmd, []store.ProjectOverview{saved})
			})
		},
	}
	cmd.Flags().StringVar(&ov.Name, "name", "", "display name")
	cmd.Flags().Float64Var(&ov.BudgetHours, "budget", 0, "approved effort in hours")
	cmd.Flags().StringVar(&ov.StartDate, "start", "", "project start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ov.EndDate, "end", "", "planned end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ov.Status, "status", "", "active, paused or completed")
	cmd.Flags().Float64Var(&complete, "percent-complete", 0, "manual completion override (0-100)")
	cmd.Flags().StringVar(&ov.JQL, "jql", "", "JQL scope replacing the whole project")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show PROJECT",
		Short: "Show the overview of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				ov, err := a.svc.GetOverview(ctx, args[0])
				if err != nil {
					return fmt.Errorf("project %s: %w", args[0], err)
				}
				return printOverviews(cmd, []store.ProjectOverview{ov})
			})
		},
	}
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every project with an overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				all, err := a.svc.ListOverviews(ctx)
				if err != nil {
					return err
				}
				return printOverviews(cmd, all)
			})
		},
	}
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROJECT",
		Short: "Remove the overview of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.svc.DeleteOverview(ctx, args[0]); err != nil {
					return fmt.Errorf("project %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted overview of %s\n", args[0])
				return nil
			})
		},
	}
}

func printOverviews(cmd *cobra.Command, overviews []store.ProjectOverview) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		if len(overviews) == 1 {
			return printJSON(out, overviews[0])
		}
		return printJSON(out, overviews)
	}
	tw := newTable(out, "", table.Row{"Project", "Name", "Budget h", "Start", "End", "Status", "Complete", "JQL"})
	for _, ov := range overviews {
		complete := "-"
		if ov.PercentComplete != nil {
			complete = percent(*ov.PercentComplete)
		}
		tw.AppendRow(table.Row{
			ov.ProjectKey, orDash(ov.Name), hours(ov.BudgetHours), orDash(ov.StartDate), orDash(ov.EndDate),
			orDash(ov.Status), complete, orDash(ov.JQL),
		})
	}
	alignNumbers(tw, 3, 7)
	tw.Render()
	return nil
}
