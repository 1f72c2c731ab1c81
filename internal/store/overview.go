package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pulse-mcp/internal/stats"
)

// Project lifecycle states. An empty status is allowed.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// ProjectOverview holds the planning fields of a project. PercentComplete
// overrides the completion derived from issue statuses when set. JQL
// overrides the default project scope.
type ProjectOverview struct {
	ProjectKey      string   `json:"projectKey"`
	Name            string   `json:"name,omitempty"`
	BudgetHours     float64  `json:"budgetHours"`
	StartDate       string   `json:"startDate,omitempty"`
	EndDate         string   `json:"endDate,omitempty"`
	Status          string   `json:"status,omitempty"`
	PercentComplete *float64 `json:"percentComplete,omitempty"`
	JQL             string   `json:"jql,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

// Validate checks the fields before they are written.
func (p *ProjectOverview) Validate() error {
	p.ProjectKey = strings.TrimSpace(p.ProjectKey)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	if p.ProjectKey == "" {
		return fmt.Errorf("project key is required")
	}
	if p.BudgetHours < 0 {
		return fmt.Errorf("budget hours must not be negative")
	}
	switch p.Status {
	case "", StatusActive, StatusPaused, StatusCompleted:
	default:
		return fmt.Errorf("unknown project status %q (use active, paused or completed)", p.Status)
	}
	if p.PercentComplete != nil && (*p.PercentComplete < 0 || *p.PercentComplete > 100) {
		return fmt.Errorf("percent complete must be within [0, 100]")
	}

	var start, end stats.Date
	var err error
	if p.StartDate != "" {
		if start, err = stats.ParseDate(p.StartDate); err != nil {
			return err
		}
		p.StartDate = start.String()
	}
	if p.EndDate != "" {
		if end, err = stats.ParseDate(p.EndDate); err != nil {
			return err
		}
		p.EndDate = end.String()
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s", p.EndDate, p.StartDate)
	}
	return nil
}

// UpsertOverview inserts or replaces the overview of a project.
func (s *Store) UpsertOverview(ctx context.Context, p ProjectOverview) (ProjectOverview, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	p.UpdatedAt = nowText()

	var pc sql.NullFloat64
	if p.PercentComplete != nil {
		pc = sql.NullFloat64{Float64: *p.PercentComplete, Valid: true}
	}
	_, err := s.exec(ctx, `INSERT INTO project_overviews(project_key,name,budget_hours,start_date,end_date,status,percent_complete,jql,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(project_key) DO UPDATE SET
	name=excluded.name,
	budget_hours=excluded.budget_hours,
	start_date=excluded.start_date,
	end_date=excluded.end_date,
	status=excluded.status,
	percent_complete=excluded.percent_complete,
	jql=excluded.jql,
	updated_at=excluded.updated_at`,
		p.ProjectKey, p.Name, p.BudgetHours, p.StartDate, p.EndDate, p.Status, pc, p.JQL, p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("upsert project overview: %w", err)
	}
	return p, nil
}

const overviewColumns = `project_key,name,budget_hours,start_date,end_date,status,percent_complete,jql,updated_at`

func scanOverview(scan func(dest ...any) error) (ProjectOverview, error) {
	var p ProjectOverview
	var pc sql.NullFloat64
	if err := scan(&p.ProjectKey, &p.Name, &p.BudgetHours, &p.StartDate, &p.EndDate, &p.Status, &pc, &p.JQL, &p.UpdatedAt); err != nil {
		return p, err
	}
	if pc.Valid {
		v := pc.Float64
		p.PercentComplete = &v
	}
	return p, nil
}

// GetOverview loads the overview of a project.
func (s *Store) GetOverview(ctx context.Context, projectKey string) (ProjectOverview, error) {
	p, err := scanOverview(s.queryRow(ctx, `SELECT `+overviewColumns+` FROM project_overviews WHERE project_key=?`, projectKey).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ListOverviews returns every project overview ordered by key.
func (s *Store) ListOverviews(ctx context.Context) ([]ProjectOverview, error) {
	rows, err := s.query(ctx, `SELECT `+overviewColumns+` FROM project_overviews ORDER BY project_key`)
	if err != nil {
		return nil, fmt.Errorf("list project overviews: %w", err)
	}
	defer rows.Close()

	out := []ProjectOverview{}
	for rows.Next() {
		p, err := scanOverview(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteOverview removes the overview of a project.
func (s *Store) DeleteOverview(ctx context.Context, projectKey string) error {
	res, err := s.exec(ctx, `DELETE FROM project_overviews WHERE project_key=?`, projectKey)
	if err != nil {
		return fmt.Errorf("delete project overview: %w", err)
	}
	return requireRow(res)
}
