package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pulse-mcp/internal/dashboard"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RunTimeout bounds a single scheduled sync.
const RunTimeout = 10 * time.Minute

type syncer interface {
	SyncAll(ctx context.Context, extra []string) ([]dashboard.SyncOutcome, error)
}

// SyncCron refreshes the worklog cache on a five-field cron schedule.
type SyncCron struct {
	svc      syncer
	projects []string
	c        *cron.Cron
	running  sync.Mutex
}

// NewSyncCron parses spec in loc. projects are synced in addition to every
// project with an overview.
func NewSyncCron(spec string, loc *time.Location, svc syncer, projects []string) (*SyncCron, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	sc := &SyncCron{svc: svc, projects: projects, c: c}
	if _, err := c.AddFunc(spec, sc.run); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return sc, nil
}

func (sc *SyncCron) Start() { sc.c.Start() }

// Stop halts the scheduler and waits for a running sync to finish.
func (sc *SyncCron) Stop() {
	<-sc.c.Stop().Done()
}

func (sc *SyncCron) run() {
	ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
	defer cancel()
	sc.RunOnce(ctx)
}

// RunOnce performs one sync unless another is still in progress. It reports
// whether the sync ran.
func (sc *SyncCron) RunOnce(ctx context.Context) bool {
	if !sc.running.TryLock() {
		log.Info().Msg("cron: previous worklog sync still running, skipping")
		return false
	}
	defer sc.running.Unlock()

	log.Info().Msg("cron: worklog sync")
	outcomes, err := sc.svc.SyncAll(ctx, sc.projects)
	if err != nil {
		log.Error().Err(err).Msg("cron: sync failed")
		return true
	}
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	log.Info().Int("projects", len(outcomes)).Int("failed", failed).Msg("cron: worklog sync complete")
	return true
}
