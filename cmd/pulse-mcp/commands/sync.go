package commands

import (
	"context"
	"fmt"

	"pulse-mcp/internal/dashboard"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [PROJECT...]",
		Short: "Refresh the local worklog history cache",
		Long: `Fetches the worklogs of the named projects, or of every project with an
overview plus PULSE_SYNC_PROJECTS when none is named. The first run of a
project fetches its whole history; later runs only ask for issues updated
since the newest cached change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var outcomes []dashboard.SyncOutcome
				if len(args) > 0 {
					outcomes = a.svc.Sync(ctx, args)
				} else {
					var err error
					if outcomes, err = a.svc.SyncAll(ctx, cfg.SyncProjects); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, outcomes)
				}
				tw := newTable(out, "", table.Row{"Project", "Mode", "Issues", "Fetched", "Changed", "Cached", "Error"})
				failed := 0
				for _, o := range outcomes {
					mode := "full"
					if o.Incremental {
						mode = "incremental"
					}
					if o.Error != "" {
						failed++
					}
					tw.AppendRow(table.Row{o.Project, mode, o.Issues, o.Fetched, o.Changed, o.Total, o.Error})
				}
				alignNumbers(tw, 3, 4, 5, 6)
				tw.Render()
				if failed > 0 {
					return fmt.Errorf("%d of %d projects failed to sync", failed, len(outcomes))
				}
				return nil
			})
		},
	}
}
