package jira

import (
	"context"
	"fmt"
	"strings"

	"pulse-mcp/internal/stats"

	"github.com/rs/zerolog/log"
)

// WorkItemFields is the field list requested for every work-item search.
var WorkItemFields = []string{"summary", "issuetype", "status", "parent", "duedate", "timeoriginalestimate", "created", "updated"}

// Fetcher layers pagination and mapping on top of a Client.
type Fetcher struct {
	Client        Client
	EpicLinkField string
	PageSize      int
}

// NewFetcher builds a Fetcher with the page size Jira allows by default.
func NewFetcher(client Client, cfg Config) *Fetcher {
	return &Fetcher{
		Client:        client,
		EpicLinkField: cfg.EpicLinkField,
		PageSize:      100,
	}
}

func (f *Fetcher) fields(extra ...string) []string {
	fields := append([]string{}, WorkItemFields...)
	if f.EpicLinkField != "" {
		fields = append(fields, f.EpicLinkField)
	}
	return append(fields, extra...)
}

func (f *Fetcher) searchAll(ctx context.Context, jql string, fields []string) ([]IssueDTO, error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []IssueDTO
	for startAt := 0; ; {
		resp, err := f.Client.SearchIssues(ctx, jql, fields, startAt, pageSize)
		if err != nil {
			return all, fmt.Errorf("search failed at offset %d: %w", startAt, err)
		}
		all = append(all, resp.Issues...)
		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || startAt >= resp.Total {
			break
		}
	}
	return all, nil
}

// WorkItems returns every work item matched by jql.
func (f *Fetcher) WorkItems(ctx context.Context, jql string) ([]WorkItem, error) {
	issues, err := f.searchAll(ctx, jql, f.fields())
	items := make([]WorkItem, 0, len(issues))
	for _, dto := range issues {
		items = append(items, MapWorkItem(dto, f.EpicLinkField))
	}
	return items, err
}

// WorkItemsByKey fetches the given keys in a single query.
func (f *Fetcher) WorkItemsByKey(ctx context.Context, keys []string) ([]WorkItem, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return f.WorkItems(ctx, fmt.Sprintf("key in (%s)", strings.Join(quoted, ",")))
}

// WorklogIssues returns the items matched by jql that carry worklogs in
// window, along with all of their worklogs. The JQL bound is widened by a day
// on each side because Jira evaluates worklogDate in the user's zone; exact
// filtering happens later on local dates.
func (f *Fetcher) WorklogIssues(ctx context.Context, jql string, window stats.Window) ([]WorkItem, []WorklogEntry, error) {
	var clauses []string
	if strings.TrimSpace(jql) != "" {
		clauses = append(clauses, "("+jql+")")
	}
	if !window.Start.IsZero() {
		clauses = append(clauses, fmt.Sprintf("worklogDate >= %q", window.Start.AddDays(-1).String()))
	}
	if !window.End.IsZero() {
		clauses = append(clauses, fmt.Sprintf("worklogDate <= %q", window.End.AddDays(1).String()))
	}
	return f.WorklogsMatching(ctx, strings.Join(clauses, " AND "))
}

// WorklogsMatching returns the items matched by jql with all of their
// worklogs, unfiltered.
func (f *Fetcher) WorklogsMatching(ctx context.Context, jql string) ([]WorkItem, []WorklogEntry, error) {
	issues, err := f.searchAll(ctx, jql, f.fields("worklog"))

	items := make([]WorkItem, 0, len(issues))
	var entries []WorklogEntry
	for _, dto := range issues {
		item := MapWorkItem(dto, f.EpicLinkField)
		logs, complete := f.issueWorklogs(ctx, dto)
		item.PartialWorklogs = !complete
		items = append(items, item)
		entries = append(entries, logs...)
	}
	return items, entries, err
}

// issueWorklogs uses the embedded worklog page and pages through the
// dedicated endpoint when Jira truncated it (20 entries by default). It
// reports false when paging failed and only the embedded subset came back.
func (f *Fetcher) issueWorklogs(ctx context.Context, dto IssueDTO) ([]WorklogEntry, bool) {
	var raw []WorklogDTO
	complete := true
	embedded := dto.Fields.Worklog
	if embedded != nil {
		raw = embedded.Worklogs
	}

	if embedded != nil && embedded.Total > len(embedded.Worklogs) {
		full, err := f.allWorklogs(ctx, dto.Key)
		if err != nil {
			log.Warn().Err(err).Str("issue", dto.Key).Int("embedded", len(raw)).Msg("Failed to page worklogs, using embedded subset")
			complete = false
		} else {
			raw = full
		}
	}

	entries := make([]WorklogEntry, 0, len(raw))
	for _, w := range raw {
		if e, ok := MapWorklog(dto.Key, w); ok {
			entries = append(entries, e)
		}
	}
	return entries, complete
}

func (f *Fetcher) allWorklogs(ctx context.Context, key string) ([]WorklogDTO, error) {
	var all []WorklogDTO
	for startAt := 0; ; {
		page, err := f.Client.GetIssueWorklogs(ctx, key, startAt, 1000)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Worklogs...)
		startAt += len(page.Worklogs)
		if len(page.Worklogs) == 0 || startAt >= page.Total {
			break
		}
	}
	return all, nil
}

// Changelog returns the change history of a single issue.
func (f *Fetcher) Changelog(ctx context.Context, key string) ([]ChangelogEvent, error) {
	issue, err := f.Client.GetIssueChangelog(ctx, key)
	if err != nil {
		return nil, err
	}
	return MapChangelog(key, issue.Changelog), nil
}
