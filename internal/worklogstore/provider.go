package worklogstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pulse-mcp/internal/jira"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	// InitialMonths bounds the history fetched on the first sync.
	InitialMonths = 24
	// StaleAfter evicts a cache that has not been refreshed for this long.
	StaleAfter = 60 * 24 * time.Hour
	// overlap re-fetches a margin before the last sync; Jira compares
	// "updated" in the user's zone.
	overlap = 24 * time.Hour
)

// WorklogSource runs a worklog-bearing search.
type WorklogSource interface {
	WorklogsMatching(ctx context.Context, jql string) ([]jira.WorkItem, []jira.WorklogEntry, error)
}

// SyncResult describes one sync run.
type SyncResult struct {
	Project     string `json:"project"`
	Incremental bool   `json:"incremental"`
	Issues      int    `json:"issues"`
	Fetched     int    `json:"fetched"`
	Changed     int    `json:"changed"`
	Total       int    `json:"total"`
}

// Provider keeps the cache of each project in step with Jira.
type Provider struct {
	source   WorklogSource
	store    *Store
	cacheDir string
	Now      func() time.Time

	mu     sync.Mutex
	loaded map[string]bool
}

func NewProvider(source WorklogSource, store *Store, cacheDir string) *Provider {
	return &Provider{
		source:   source,
		store:    store,
		cacheDir: cacheDir,
		Now:      time.Now,
		loaded:   make(map[string]bool),
	}
}

// ProjectScope is the default JQL of a project key.
func ProjectScope(project string) string {
	return fmt.Sprintf("project = %q", project)
}

func (p *Provider) ensureLoaded(project string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded[project] || p.cacheDir == "" {
		return
	}
	if err := p.store.Load(p.cacheDir, project); err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Failed to load worklog cache")
	}
	p.loaded[project] = true
}

// Sync fetches worklogs of issues updated since the last successful sync, or
// the last InitialMonths of history when the project was never synced or its
// last sync is older than StaleAfter. The worklogs of every fully fetched
// issue replace the cached ones, so worklogs deleted in Jira disappear.
func (p *Provider) Sync(ctx context.Context, project, jql string) (SyncResult, error) {
	res := SyncResult{Project: project}
	p.ensureLoaded(project)

	now := p.Now()
	last := p.store.SyncedAt(project)
	if last.IsZero() {
		// Caches written before sync times were recorded.
		last = p.store.LatestUpdate(project)
	}
	if !last.IsZero() && now.Sub(last) > StaleAfter {
		log.Info().Str("project", project).Time("lastSync", last).Msg("Worklog cache is stale, re-fetching full history")
		p.store.Clear(project)
		if p.cacheDir != "" {
			_ = DeleteCache(p.cacheDir, project)
		}
		last = time.Time{}
	}
	res.Incremental = !last.IsZero()

	scope := strings.TrimSpace(jql)
	if scope == "" {
		scope = ProjectScope(project)
	}
	var query string
	if res.Incremental {
		query = fmt.Sprintf("(%s) AND updated >= %q ORDER BY updated ASC", scope, last.Add(-overlap).UTC().Format("2006-01-02 15:04"))
	} else {
		query = fmt.Sprintf("(%s) AND worklogDate >= %q ORDER BY updated ASC", scope, jira.FormatJQLDate(now.AddDate(0, -InitialMonths, 0)))
	}

	log.Info().Str("project", project).Bool("incremental", res.Incremental).Msg("Syncing worklogs")
	items, entries, err := p.source.WorklogsMatching(ctx, query)
	res.Issues, res.Fetched = len(items), len(entries)
	if err != nil {
		// The sync time is not advanced, so the next sync revisits these
		// issues and can drop deleted worklogs then.
		res.Changed = p.store.Merge(project, entries)
	} else {
		complete := lo.FilterMap(items, func(it jira.WorkItem, _ int) (string, bool) {
			return it.Key, !it.PartialWorklogs
		})
		res.Changed = p.store.ReplaceIssues(project, complete, entries)
		p.store.MarkSynced(project, now)
	}
	res.Total = p.store.Count(project)

	if p.cacheDir != "" {
		if res.Changed > 0 {
			if serr := p.store.Save(p.cacheDir, project); serr != nil {
				log.Warn().Err(serr).Str("project", project).Msg("Failed to save worklog cache")
			}
		}
		if err == nil {
			if serr := p.store.SaveState(p.cacheDir, project); serr != nil {
				log.Warn().Err(serr).Str("project", project).Msg("Failed to save worklog sync state")
			}
		}
	}
	if err != nil {
		return res, fmt.Errorf("sync %s: %w", project, err)
	}

	log.Info().Str("project", project).Int("fetched", res.Fetched).Int("changed", res.Changed).Int("total", res.Total).Msg("Worklog sync complete")
	return res, nil
}

// History syncs the project and returns its full cached history. A failed
// sync is logged and the cached history is returned as is.
func (p *Provider) History(ctx context.Context, project, jql string) []jira.WorklogEntry {
	if _, err := p.Sync(ctx, project, jql); err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Worklog sync failed, using cached history")
	}
	return p.store.Entries(project)
}

// Cached returns the history without contacting Jira.
func (p *Provider) Cached(project string) []jira.WorklogEntry {
	p.ensureLoaded(project)
	return p.store.Entries(project)
}
