package jira

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"pulse-mcp/internal/stats"

	"github.com/rs/zerolog/log"
)

// MapWorkItem transforms a Jira DTO into a domain WorkItem. The native parent
// field wins; epicLinkField is consulted only when the issue has no parent.
func MapWorkItem(item IssueDTO, epicLinkField string) WorkItem {
	w := WorkItem{
		ID:      item.ID,
		Key:     item.Key,
		Summary: item.Fields.Summary,
		Type:    item.Fields.IssueType.Name,
		Status: Status{
			Name:     item.Fields.Status.Name,
			Category: MapStatusCategory(item.Fields.Status.StatusCategory.Key),
		},
		OriginalEstimateSeconds: item.Fields.TimeOriginalEstimate,
	}

	if item.Fields.Parent != nil && item.Fields.Parent.Key != "" {
		w.ParentKey = item.Fields.Parent.Key
	} else if epicLinkField != "" {
		if raw, ok := item.Fields.Custom[epicLinkField]; ok {
			var key string
			if err := json.Unmarshal(raw, &key); err == nil {
				w.ParentKey = key
			}
		}
	}
	if w.ParentKey == w.Key {
		log.Debug().Str("key", w.Key).Msg("Ignoring self-referencing parent")
		w.ParentKey = ""
	}

	if item.Fields.DueDate != "" {
		if d, err := stats.ParseDate(item.Fields.DueDate); err == nil {
			w.DueDate = &d
		}
	}

	return w
}

// MapStatusCategory normalizes Jira's category keys (new, indeterminate, done).
func MapStatusCategory(key string) StatusCategory {
	switch strings.ToLower(key) {
	case "done":
		return CategoryDone
	case "indeterminate":
		return CategoryInProgress
	default:
		return CategoryTodo
	}
}

// MapPerson picks the most stable identifier a user payload offers.
func MapPerson(u UserDTO) Person {
	id := u.AccountID
	if id == "" {
		id = u.Key
	}
	if id == "" {
		id = u.Name
	}
	name := u.DisplayName
	if name == "" {
		name = id
	}
	return Person{AccountID: id, DisplayName: name}
}

// MapWorklog converts a worklog DTO. Entries with an unparseable start are
// dropped (ok == false).
func MapWorklog(issueKey string, dto WorklogDTO) (WorklogEntry, bool) {
	started, err := ParseTime(dto.Started)
	if err != nil {
		log.Warn().Str("issue", issueKey).Str("worklog", dto.ID).Str("started", dto.Started).Msg("Skipping worklog with invalid start time")
		return WorklogEntry{}, false
	}
	entry := WorklogEntry{
		ID:              dto.ID,
		IssueKey:        issueKey,
		Author:          MapPerson(dto.Author),
		Started:         started.UTC(),
		DurationSeconds: dto.TimeSpentSeconds,
		Comment:         dto.Comment,
	}
	if upd, err := ParseTime(dto.Updated); err == nil {
		entry.Updated = upd.UTC()
	}
	return entry, true
}

// MapChangelog flattens the history into one event per changed field,
// oldest first.
func MapChangelog(issueKey string, changelog *ChangelogDTO) []ChangelogEvent {
	if changelog == nil {
		return nil
	}
	var events []ChangelogEvent
	for _, h := range changelog.Histories {
		ts, err := ParseTime(h.Created)
		if err != nil {
			continue
		}
		var author Person
		if h.Author != nil {
			author = MapPerson(*h.Author)
		}
		for _, item := range h.Items {
			events = append(events, ChangelogEvent{
				IssueKey:  issueKey,
				Author:    author,
				Field:     item.Field,
				From:      item.FromString,
				To:        item.ToString,
				Timestamp: ts.UTC(),
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// FormatJQLDate renders a date for a JQL comparison.
func FormatJQLDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// StripOrderBy drops a trailing ORDER BY clause so the query can be wrapped
// in parentheses and combined with further clauses.
func StripOrderBy(jql string) string {
	if idx := strings.Index(strings.ToLower(jql), " order by"); idx != -1 {
		return strings.TrimSpace(jql[:idx])
	}
	return strings.TrimSpace(jql)
}
