package commands

import (
	"context"
	"fmt"

	"pulse-mcp/internal/dashboard"
	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/store"
	"pulse-mcp/internal/worklogstore"

	"github.com/rs/zerolog/log"
)

// app is the wired dependency graph shared by the server and the one-shot
// commands.
type app struct {
	db  *store.Store
	svc *dashboard.Service
}

func openApp(ctx context.Context) (*app, error) {
	db, err := store.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.Jira.BaseURL == "" {
		log.Warn().Msg("JIRA_URL is not set; Jira requests will fail and reports will be empty")
	}
	fetcher := jira.NewFetcher(jira.NewClient(cfg.Jira), cfg.Jira)
	history := worklogstore.NewProvider(fetcher, worklogstore.NewStore(), cfg.CacheDir)

	svc := dashboard.NewService(fetcher, db, history, dashboard.Options{
		Location:    cfg.Location,
		HoursPerDay: cfg.HoursPerDay,
		Concurrency: cfg.Jira.Concurrency,
	})
	return &app{db: db, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}

// withApp runs fn against a freshly opened app.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
