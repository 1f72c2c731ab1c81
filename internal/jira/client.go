package jira

import (
	"context"
	"time"

	"pulse-mcp/internal/stats"
)

// StatusCategory is the normalized Jira status category.
type StatusCategory string

const (
	CategoryTodo       StatusCategory = "todo"
	CategoryInProgress StatusCategory = "in-progress"
	CategoryDone       StatusCategory = "done"
)

// Status is a workflow status with its category.
type Status struct {
	Name     string         `json:"name"`
	Category StatusCategory `json:"category"`
}

// WorkItem is the subset of a Jira issue needed for reporting. Items are
// keyed by their issue key throughout the engine.
type WorkItem struct {
	ID                      string      `json:"id"`
	Key                     string      `json:"key"`
	Summary                 string      `json:"summary"`
	Status                  Status      `json:"status"`
	Type                    string      `json:"type"`
	ParentKey               string      `json:"parentKey,omitempty"`
	DueDate                 *stats.Date `json:"dueDate,omitempty"`
	OriginalEstimateSeconds *int64      `json:"originalEstimateSeconds,omitempty"`
	// PartialWorklogs is set when only part of the item's worklogs could be
	// fetched.
	PartialWorklogs bool `json:"-"`
}

// IsDone reports whether the item sits in a done-category status.
func (w WorkItem) IsDone() bool {
	return w.Status.Category == CategoryDone
}

// Person identifies a worklog author.
type Person struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// ID returns the most stable identifier available for the person.
func (p Person) ID() string {
	if p.AccountID != "" {
		return p.AccountID
	}
	return p.DisplayName
}

// WorklogEntry is a single recorded unit of time. Started is kept as the
// UTC instant reported by Jira.
type WorklogEntry struct {
	ID              string    `json:"id"`
	IssueKey        string    `json:"issueKey"`
	Author          Person    `json:"author"`
	Started         time.Time `json:"started"`
	DurationSeconds int64     `json:"durationSeconds"`
	Comment         string    `json:"comment,omitempty"`
	Updated         time.Time `json:"updated,omitempty"`
}

// ChangelogEvent is a single field change from an issue's history.
type ChangelogEvent struct {
	IssueKey  string    `json:"issueKey"`
	Author    Person    `json:"author"`
	Field     string    `json:"field"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is the interface for interacting with Jira.
type Client interface {
	SearchIssues(ctx context.Context, jql string, fields []string, startAt int, maxResults int) (*SearchResponse, error)
	GetIssueWorklogs(ctx context.Context, issueKey string, startAt int, maxResults int) (*WorklogPageDTO, error)
	GetIssueChangelog(ctx context.Context, issueKey string) (*IssueDTO, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string

	// Personal Access Token (preferred)
	Token string

	// Basic auth
	User     string
	Password string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Load Balancer Cookies
	GCILB string
	GCLB  string

	// Performance Settings
	RequestDelay time.Duration
	Concurrency  int

	// EpicLinkField is the custom field id holding the legacy epic link
	// (e.g. customfield_10008). Empty disables the fallback.
	EpicLinkField string
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewDataCenterClient(cfg)
}
