package report

import (
	"context"
	"sort"
	"time"

	"pulse-mcp/internal/jira"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ChangelogSource fetches the change history of one issue.
type ChangelogSource interface {
	Changelog(ctx context.Context, key string) ([]jira.ChangelogEvent, error)
}

// ActivityEntry is one field change shown in the recent activity feed.
type ActivityEntry struct {
	IssueKey  string    `json:"issueKey"`
	Author    string    `json:"author"`
	Field     string    `json:"field"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CollectActivity fetches changelogs for keys concurrently. A failed fetch is
// logged and yields nothing for that key; the others still arrive. Entries
// before since are dropped and the result is newest first, capped at limit
// (0 means no cap).
func CollectActivity(ctx context.Context, src ChangelogSource, keys []string, since time.Time, limit, concurrency int) []ActivityEntry {
	if src == nil || len(keys) == 0 {
		return []ActivityEntry{}
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([][]jira.ChangelogEvent, len(keys))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, key := range keys {
		g.Go(func() error {
			events, err := src.Changelog(ctx, key)
			if err != nil {
				log.Warn().Err(err).Str("issue", key).Msg("Changelog fetch failed, skipping issue")
				return nil
			}
			results[i] = events
			return nil
		})
	}
	_ = g.Wait()

	entries := []ActivityEntry{}
	for _, events := range results {
		for _, e := range events {
			if !since.IsZero() && e.Timestamp.Before(since) {
				continue
			}
			entries = append(entries, ActivityEntry{
				IssueKey:  e.IssueKey,
				Author:    e.Author.DisplayName,
				Field:     e.Field,
				From:      e.From,
				To:        e.To,
				Timestamp: e.Timestamp,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].IssueKey < entries[j].IssueKey
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
