package jira

import (
	"encoding/json"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
type IssueDTO struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// FieldsDTO contains the specific fields we care about.
type FieldsDTO struct {
	Summary   string `json:"summary"`
	IssueType struct {
		Name    string `json:"name"`
		Subtask bool   `json:"subtask"`
	} `json:"issuetype"`
	Status struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		StatusCategory struct {
			Key string `json:"key"`
		} `json:"statusCategory"`
	} `json:"status"`
	Parent *struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	} `json:"parent,omitempty"`
	DueDate              string          `json:"duedate"`
	TimeOriginalEstimate *int64          `json:"timeoriginalestimate"`
	Worklog              *WorklogPageDTO `json:"worklog,omitempty"`
	Created              string          `json:"created"`
	Updated              string          `json:"updated"`

	// Custom holds every raw field so instance-specific custom fields
	// (epic link) can be read without a fixed struct tag.
	Custom map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw map alongside.
func (f *FieldsDTO) UnmarshalJSON(b []byte) error {
	type plain FieldsDTO
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*f = FieldsDTO(p)
	f.Custom = raw
	return nil
}

// UserDTO covers both Cloud (accountId) and Data Center (key/name) users.
type UserDTO struct {
	AccountID   string `json:"accountId,omitempty"`
	Key         string `json:"key,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

// WorklogPageDTO is both the embedded worklog field and the
// /issue/{key}/worklog response.
type WorklogPageDTO struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	Worklogs   []WorklogDTO `json:"worklogs"`
}

// WorklogDTO is a single worklog record.
type WorklogDTO struct {
	ID               string  `json:"id"`
	IssueID          string  `json:"issueId"`
	Author           UserDTO `json:"author"`
	Comment          string  `json:"comment"`
	Started          string  `json:"started"`
	Updated          string  `json:"updated"`
	TimeSpentSeconds int64   `json:"timeSpentSeconds"`
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	Histories  []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	ID      string    `json:"id"`
	Author  *UserDTO  `json:"author,omitempty"`
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// ParseTime is a helper for the strict Jira time format. RFC 3339 is
// accepted as a fallback for Cloud payloads and cached data.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04:05.000-0700", s)
	if err == nil {
		return t, nil
	}
	if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
		return t2, nil
	}
	return time.Time{}, err
}
