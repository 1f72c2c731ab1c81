package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"pulse-mcp/internal/config"
	"pulse-mcp/internal/jobs"
	"pulse-mcp/internal/logging"
	"pulse-mcp/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose    bool
	jsonOutput bool
	cfg        *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:     "pulse-mcp",
	Short:   "Pulse-MCP reports project health from Jira worklogs",
	Version: Version,
	Long: `An MCP Server and CLI that turns Jira issues and worklogs into project health:
hierarchical hour reports, allocation-based team utilization, schedule and budget
insights with alerts and recommendations, and weekly budget burn-down.

Run without a subcommand to serve the MCP tools over stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("timeZone", cfg.TimeZone).
			Str("db", cfg.DB.Driver).
			Msg("Pulse-MCP starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.SyncCron != "" {
			sc, err := jobs.NewSyncCron(cfg.SyncCron, cfg.Location, a.svc, cfg.SyncProjects)
			if err != nil {
				return err
			}
			sc.Start()
			defer sc.Stop()
			log.Info().Str("schedule", cfg.SyncCron).Msg("Scheduled worklog sync enabled")
		}

		server := mcp.NewServer(a.svc, cfg.EnableMermaidCharts, Version)
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info().Msg("MCP Server stopped")
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(utilizationCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(burndownCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(allocationCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(schemaCmd())
}
