package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pulse-mcp/internal/dashboard"
	"pulse-mcp/internal/report"
	"pulse-mcp/internal/visuals"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		req     dashboard.ReportRequest
		flatten bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Hours logged in a date window along the issue hierarchy",
		Example: `  pulse-mcp report --project PAY --start 2024-01-01 --end 2024-01-31
  pulse-mcp report --jql "labels = backend" --start 2024-01-01 --end 2024-01-07 --activity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				rep, err := a.svc.WorklogReport(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, rep)
				}
				renderWorklogReport(out, rep, flatten)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Project, "project", "p", "", "project key")
	cmd.Flags().StringVar(&req.JQL, "jql", "", "explicit JQL scope, overrides --project")
	cmd.Flags().StringVar(&req.Start, "start", "", "first day of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.End, "end", "", "last day of the window, inclusive (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&req.IncludeActivity, "activity", false, "include field changes of the reported issues")
	cmd.Flags().IntVar(&req.ActivityLimit, "activity-limit", 50, "maximum activity entries, 0 for all")
	cmd.Flags().BoolVar(&flatten, "top-level", false, "only list top-level issues")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func renderWorklogReport(w io.Writer, rep report.WorklogReport, topLevel bool) {
	tw := newTable(w, fmt.Sprintf("Worklogs %s .. %s (%s)", rep.Start, rep.End, rep.TimeZone),
		table.Row{"Issue", "Type", "Status", "Summary", "Own h", "Total h"})
	var walk func(issues []report.ReportIssue, depth int)
	walk = func(issues []report.ReportIssue, depth int) {
		for _, is := range issues {
			tw.AppendRow(table.Row{
				strings.Repeat("  ", depth) + is.Key, is.Type, is.Status, is.Summary,
				hours(is.OwnHours), hours(is.TotalHours),
			})
			if !topLevel {
				walk(is.Children, depth+1)
			}
		}
	}
	walk(rep.Issues, 0)
	tw.AppendFooter(table.Row{"", "", "", "Total", "", hours(rep.TotalHours)})
	alignNumbers(tw, 5, 6)
	tw.Render()

	people := newTable(w, "By person", table.Row{"Person", "Hours"})
	for _, a := range rep.Authors {
		people.AppendRow(table.Row{orDash(a.DisplayName), hours(a.Hours)})
	}
	alignNumbers(people, 2)
	people.Render()

	days := newTable(w, "By day", table.Row{"Date", "Hours"})
	for _, d := range rep.Days {
		days.AppendRow(table.Row{d.Date, hours(d.Hours)})
	}
	alignNumbers(days, 2)
	days.Render()

	if len(rep.Activity) > 0 {
		renderActivity(w, rep.Activity)
	}
	warn(w, rep.Warnings)
}

func utilizationCmd() *cobra.Command {
	var req dashboard.UtilizationRequest
	cmd := &cobra.Command{
		Use:   "utilization",
		Short: "Logged hours against planned allocation per person",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				rep, err := a.svc.TeamUtilization(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, rep)
				}
				tw := newTable(out, fmt.Sprintf("Utilization %s .. %s", rep.Start, rep.End),
					table.Row{"Person", "Allocated", "Available h", "Actual h", "Utilization", "Status", "Note"})
				for _, r := range rep.Rows {
					tw.AppendRow(table.Row{
						orDash(r.DisplayName), percent(r.WeightedPercent), hours(r.AvailableHours),
						hours(r.ActualHours), percent(r.UtilizationPercent), r.Status, r.Note,
					})
				}
				alignNumbers(tw, 2, 3, 4, 5)
				tw.Render()
				warn(out, rep.Warnings)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Project, "project", "p", "", "project key")
	cmd.Flags().StringVar(&req.JQL, "jql", "", "explicit JQL scope for the logged hours")
	cmd.Flags().StringVar(&req.Start, "start", "", "first day of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.End, "end", "", "last day of the window, inclusive (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health PROJECT",
		Short: "Schedule and budget insights with alerts and recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				h, err := a.svc.ProjectHealth(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, h)
				}
				renderHealth(out, h)
				return nil
			})
		},
	}
}

func renderHealth(w io.Writer, h dashboard.Health) {
	sum := newTable(w, "Health of "+h.Project, table.Row{"Area", "Status", "Detail"})
	sum.AppendRow(table.Row{"Schedule", h.Schedule.Status, h.Schedule.Message})
	sum.AppendRow(table.Row{"Budget", h.Budget.Status, h.Budget.Message})
	sum.AppendRow(table.Row{"Spent", hours(h.Budget.SpentHours), fmt.Sprintf("of %s budgeted", hours(h.Budget.BudgetHours))})
	sum.AppendRow(table.Row{"Burn", hours(h.Budget.WeeklyBurnRate) + " h/week", fmt.Sprintf("%.1f weeks of runway", h.Budget.WeeksOfRunway)})
	sum.Render()

	if len(h.Epics) > 0 {
		epics := newTable(w, "Epics", table.Row{"Epic", "Status", "Due", "Done", "Complete", "Spent h", "Estimate h", "Flags"})
		for _, e := range h.Epics {
			var flags []string
			if e.Overdue {
				flags = append(flags, "overdue")
			}
			if e.OverEstimate {
				flags = append(flags, "over estimate")
			}
			epics.AppendRow(table.Row{
				e.Key, e.Status, orDash(e.DueDate), fmt.Sprintf("%d/%d", e.Done, e.Total),
				percent(e.PercentComplete), hours(e.SpentHours), hours(e.EstimateHours), strings.Join(flags, ", "),
			})
		}
		alignNumbers(epics, 4, 5, 6, 7)
		epics.Render()
	}

	alerts := newTable(w, "Alerts", table.Row{"Priority", "Type", "Message"})
	for _, a := range h.Alerts {
		alerts.AppendRow(table.Row{a.Priority, a.Type, a.Message})
	}
	alerts.Render()

	recs := newTable(w, "Recommendations", table.Row{"Priority", "Action", "Message"})
	for _, r := range h.Recommendations {
		recs.AppendRow(table.Row{r.Priority, r.Action, r.Message})
	}
	recs.Render()
	warn(w, h.Warnings)
}

func burndownCmd() *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "burndown PROJECT",
		Short: "Weekly ideal and actual remaining budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.svc.BurnDown(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if open {
					return openBurnDown(res)
				}
				if jsonOutput {
					return printJSON(out, res)
				}
				tw := newTable(out, fmt.Sprintf("Burn-down of %s (%s h budget)", res.Project, hours(res.BudgetHours)),
					table.Row{"Week", "Ideal h", "Actual h"})
				for _, p := range res.Points {
					actual := "-"
					if p.ActualRemaining != nil {
						actual = hours(*p.ActualRemaining)
					}
					tw.AppendRow(table.Row{p.WeekStart, hours(p.IdealRemaining), actual})
				}
				alignNumbers(tw, 2, 3)
				tw.Render()
				fmt.Fprintf(out, "weekly burn: %s h\n", hours(res.WeeklyBurnRate))
				if res.ProjectedExhaustion != nil {
					fmt.Fprintf(out, "budget exhausted around %s\n", *res.ProjectedExhaustion)
				}
				warn(out, res.Warnings)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "render the chart to an HTML page and open it in the browser")
	return cmd
}

func openBurnDown(res dashboard.BurnDownResult) error {
	doc := visuals.BurnDownDocument(res.Project, res.BudgetHours, res.Points, res.ProjectedExhaustion)
	title := "Burn-down " + res.Project
	path := filepath.Join(cfg.DataPath, fmt.Sprintf("burndown-%s.html", strings.ToLower(res.Project)))
	if err := os.WriteFile(path, []byte(visuals.HTMLPage(title, doc)), 0644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	log.Info().Str("path", path).Msg("Opening burn-down chart")
	return browser.OpenFile(path)
}

func activityCmd() *cobra.Command {
	var req dashboard.ActivityRequest
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Recent field changes of issues in scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				entries, err := a.svc.Activity(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, entries)
				}
				renderActivity(out, entries)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Project, "project", "p", "", "project key")
	cmd.Flags().StringVar(&req.JQL, "jql", "", "explicit JQL scope, overrides --project")
	cmd.Flags().StringVar(&req.Since, "since", "", fmt.Sprintf("earliest change date (YYYY-MM-DD), default %d days ago", dashboard.DefaultActivityDays))
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "maximum entries, 0 for all")
	return cmd
}

func renderActivity(w io.Writer, entries []report.ActivityEntry) {
	tw := newTable(w, "Activity", table.Row{"When", "Issue", "Author", "Field", "From", "To"})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.Timestamp.In(cfg.Location).Format("2006-01-02 15:04"), e.IssueKey, e.Author, e.Field,
			orDash(e.From), orDash(e.To),
		})
	}
	tw.Render()
}
