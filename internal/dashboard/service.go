package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/forecast"
	"pulse-mcp/internal/insights"
	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/report"
	"pulse-mcp/internal/stats"
	"pulse-mcp/internal/store"
	"pulse-mcp/internal/worklogstore"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// IssueSource is the Jira side of the service. Implemented by jira.Fetcher.
type IssueSource interface {
	report.AncestorSource
	report.ChangelogSource
	WorkItems(ctx context.Context, jql string) ([]jira.WorkItem, error)
	WorklogIssues(ctx context.Context, jql string, window stats.Window) ([]jira.WorkItem, []jira.WorklogEntry, error)
}

// Repository persists allocations and project overviews. Implemented by
// store.Store.
type Repository interface {
	ListAllocations(ctx context.Context, f store.AllocationFilter) ([]capacity.AllocationRecord, error)
	GetAllocation(ctx context.Context, id string) (capacity.AllocationRecord, error)
	SaveAllocation(ctx context.Context, r capacity.AllocationRecord) (capacity.AllocationRecord, error)
	DeleteAllocation(ctx context.Context, id string) error
	GetOverview(ctx context.Context, projectKey string) (store.ProjectOverview, error)
	UpsertOverview(ctx context.Context, p store.ProjectOverview) (store.ProjectOverview, error)
	ListOverviews(ctx context.Context) ([]store.ProjectOverview, error)
	DeleteOverview(ctx context.Context, projectKey string) error
}

// History serves the cached worklog history of a project. Implemented by
// worklogstore.Provider.
type History interface {
	History(ctx context.Context, project, jql string) []jira.WorklogEntry
	Sync(ctx context.Context, project, jql string) (worklogstore.SyncResult, error)
}

// Options tunes the service.
type Options struct {
	Location    *time.Location
	HoursPerDay float64
	Concurrency int
}

// Service answers every dashboard question by fetching raw data and running
// it through the calculators.
type Service struct {
	issues  IssueSource
	repo    Repository
	history History
	calc    *insights.Calculator
	tree    report.TreeBuilder
	opts    Options
}

func NewService(issues IssueSource, repo Repository, history History, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HoursPerDay <= 0 {
		opts.HoursPerDay = capacity.DefaultHoursPerDay
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{
		issues:  issues,
		repo:    repo,
		history: history,
		calc:    insights.NewCalculator(opts.Location),
		tree:    report.TreeBuilder{Source: issues, Concurrency: opts.Concurrency},
		opts:    opts,
	}
}

// SetClock pins "today" for every calculation.
func (s *Service) SetClock(now func() time.Time) {
	s.calc.Now = now
}

// Location is the zone used for every date bucket.
func (s *Service) Location() *time.Location { return s.opts.Location }

// overview loads the project overview. A missing one is not an error: the
// neutral overview yields neutral insights.
func (s *Service) overview(ctx context.Context, project string) (store.ProjectOverview, []string, error) {
	ov, err := s.repo.GetOverview(ctx, project)
	if errors.Is(err, store.ErrNotFound) {
		return store.ProjectOverview{ProjectKey: project}, []string{fmt.Sprintf("no overview configured for %s", project)}, nil
	}
	if err != nil {
		return ov, nil, fmt.Errorf("load overview %s: %w", project, err)
	}
	return ov, nil, nil
}

// scope picks the JQL for a request: explicit jql, then the overview
// override, then the whole project.
func (s *Service) scope(ctx context.Context, project, jql string) (string, error) {
	if q := jira.StripOrderBy(jql); q != "" {
		return q, nil
	}
	if strings.TrimSpace(project) == "" {
		return "", fmt.Errorf("a project key or JQL is required")
	}
	if ov, err := s.repo.GetOverview(ctx, project); err == nil {
		if q := jira.StripOrderBy(ov.JQL); q != "" {
			return q, nil
		}
	}
	return worklogstore.ProjectScope(project), nil
}

// ReportRequest selects the worklogs of a report.
type ReportRequest struct {
	Project         string
	JQL             string
	Start           string
	End             string
	IncludeActivity bool
	ActivityLimit   int
}

// WorklogReport builds the nested hours report for a window. Fetch failures
// degrade to partial data and are listed in Warnings.
func (s *Service) WorklogReport(ctx context.Context, req ReportRequest) (report.WorklogReport, error) {
	window, err := stats.ParseWindow(req.Start, req.End)
	if err != nil {
		return report.WorklogReport{}, err
	}
	scope, err := s.scope(ctx, req.Project, req.JQL)
	if err != nil {
		return report.WorklogReport{}, err
	}

	agg, tree, warnings := s.aggregateWindow(ctx, scope, window)
	rep := report.Compose(tree, agg)
	rep.Warnings = warnings

	if req.IncludeActivity {
		keys := lo.Keys(agg.ByItem)
		sort.Strings(keys)
		rep.Activity = report.CollectActivity(ctx, s.issues, keys, window.Start.In(s.opts.Location), req.ActivityLimit, s.opts.Concurrency)
	}
	return rep, nil
}

func (s *Service) aggregateWindow(ctx context.Context, scope string, window stats.Window) (*report.Aggregation, *report.Tree, []string) {
	var warnings []string
	items, entries, err := s.issues.WorklogIssues(ctx, scope, window)
	if err != nil {
		log.Warn().Err(err).Str("jql", scope).Msg("Worklog search failed, reporting partial data")
		warnings = append(warnings, fmt.Sprintf("worklog search incomplete: %v", err))
	}
	tree := s.tree.Resolve(ctx, items)
	return report.Aggregate(entries, window, s.opts.Location), tree, warnings
}

// UtilizationRequest selects the people and window of a utilization view.
type UtilizationRequest struct {
	Project string
	JQL     string
	Start   string
	End     string
}

// UtilizationReport is the team utilization view.
type UtilizationReport struct {
	Start       string                        `json:"start"`
	End         string                        `json:"end"`
	Project     string                        `json:"project,omitempty"`
	HoursPerDay float64                       `json:"hoursPerDay"`
	Allocations []capacity.WeightedAllocation `json:"allocations"`
	Rows        []capacity.Utilization        `json:"rows"`
	Warnings    []string                      `json:"warnings,omitempty"`
}

// TeamUtilization joins the allocations overlapping the window with the hours
// each person logged in scope.
func (s *Service) TeamUtilization(ctx context.Context, req UtilizationRequest) (UtilizationReport, error) {
	window, err := stats.ParseWindow(req.Start, req.End)
	if err != nil {
		return UtilizationReport{}, err
	}
	scope, err := s.scope(ctx, req.Project, req.JQL)
	if err != nil {
		return UtilizationReport{}, err
	}
	records, err := s.repo.ListAllocations(ctx, store.AllocationFilter{ProjectKey: req.Project, From: window.Start, To: window.End})
	if err != nil {
		return UtilizationReport{}, err
	}

	agg, _, warnings := s.aggregateWindow(ctx, scope, window)
	actuals := make([]capacity.Actual, 0, len(agg.ByAuthor))
	for id, hours := range agg.AuthorHours() {
		actuals = append(actuals, capacity.Actual{PersonID: id, DisplayName: agg.Authors[id].DisplayName, Hours: hours})
	}

	return UtilizationReport{
		Start:       window.Start.String(),
		End:         window.End.String(),
		Project:     req.Project,
		HoursPerDay: s.opts.HoursPerDay,
		Allocations: capacity.ReconcileTeam(records, window, s.opts.HoursPerDay),
		Rows:        capacity.BuildTeamUtilization(records, actuals, window, s.opts.HoursPerDay),
		Warnings:    warnings,
	}, nil
}

// Health is the full project health view.
type Health struct {
	Project         string                    `json:"project"`
	Overview        store.ProjectOverview     `json:"overview"`
	Schedule        insights.ScheduleInsight  `json:"schedule"`
	Budget          insights.BudgetInsight    `json:"budget"`
	Epics           []report.EpicSummary      `json:"epics"`
	Alerts          []insights.Alert          `json:"alerts"`
	Recommendations []insights.Recommendation `json:"recommendations"`
	Warnings        []string                  `json:"warnings,omitempty"`
}

// ProjectHealth computes schedule, budget and epic insights for a project and
// runs them through the alert and recommendation tables.
func (s *Service) ProjectHealth(ctx context.Context, project string) (Health, error) {
	ov, warnings, err := s.overview(ctx, project)
	if err != nil {
		return Health{}, err
	}
	scope, err := s.scope(ctx, project, "")
	if err != nil {
		return Health{}, err
	}

	items, err := s.issues.WorkItems(ctx, scope)
	if err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Work item search failed, continuing with partial data")
		warnings = append(warnings, fmt.Sprintf("work item search incomplete: %v", err))
	}

	today := s.calc.Today()
	agg := report.Aggregate(s.history.History(ctx, project, scope), s.spendWindow(ov, today), s.opts.Location)

	pc := report.Completion(items)
	if ov.PercentComplete != nil {
		pc = *ov.PercentComplete
	}

	h := Health{
		Project:  project,
		Overview: ov,
		Schedule: s.calc.Schedule(insights.ScheduleInput{
			PercentComplete: pc,
			StartDate:       ov.StartDate,
			EndDate:         ov.EndDate,
			ProjectStatus:   ov.Status,
		}),
		Budget: s.calc.Budget(insights.BudgetInput{
			BudgetHours: ov.BudgetHours,
			SpentHours:  stats.Hours(agg.Total),
			StartDate:   ov.StartDate,
			EndDate:     ov.EndDate,
		}),
		Epics:    report.SummarizeEpics(report.NewTree(items), agg, today),
		Warnings: warnings,
	}
	facts := insights.Facts{Schedule: h.Schedule, Budget: h.Budget, Epics: h.Epics}
	h.Alerts = insights.Alerts(facts)
	h.Recommendations = insights.Recommendations(facts)
	return h, nil
}

// spendWindow counts hours from the project start (or all history when no
// start is set) through today.
func (s *Service) spendWindow(ov store.ProjectOverview, today stats.Date) stats.Window {
	w := stats.Window{End: today}
	if start, err := stats.ParseDate(ov.StartDate); err == nil {
		w.Start = start
	}
	return w
}

// BurnDownResult is the weekly burn-down of a project.
type BurnDownResult struct {
	Project             string                   `json:"project"`
	BudgetHours         float64                  `json:"budgetHours"`
	StartDate           string                   `json:"startDate,omitempty"`
	EndDate             string                   `json:"endDate,omitempty"`
	WeeklyBurnRate      float64                  `json:"weeklyBurnRate"`
	ProjectedExhaustion *string                  `json:"projectedExhaustion,omitempty"`
	Points              []forecast.BurnDownPoint `json:"points"`
	Warnings            []string                 `json:"warnings,omitempty"`
}

// BurnDown projects budget depletion week by week from the cached worklog
// history.
func (s *Service) BurnDown(ctx context.Context, project string) (BurnDownResult, error) {
	ov, warnings, err := s.overview(ctx, project)
	if err != nil {
		return BurnDownResult{}, err
	}
	res := BurnDownResult{
		Project:     project,
		BudgetHours: ov.BudgetHours,
		StartDate:   ov.StartDate,
		EndDate:     ov.EndDate,
		Points:      []forecast.BurnDownPoint{},
		Warnings:    warnings,
	}

	start, errStart := stats.ParseDate(ov.StartDate)
	end, errEnd := stats.ParseDate(ov.EndDate)
	if errStart != nil || errEnd != nil || end.Before(start) {
		res.Warnings = append(res.Warnings, "set a project start and end date to draw a burn-down")
		return res, nil
	}

	scope, err := s.scope(ctx, project, "")
	if err != nil {
		return res, err
	}
	today := s.calc.Today()
	var spent []jira.WorklogEntry
	for _, e := range s.history.History(ctx, project, scope) {
		day := stats.LocalDate(e.Started, s.opts.Location)
		if !day.Before(start) && !day.After(today) {
			spent = append(spent, e)
		}
	}

	res.Points = forecast.BurnDown(forecast.BurnDownInput{
		BudgetHours: ov.BudgetHours,
		Start:       start,
		End:         end,
		Cumulative:  forecast.WeeklyCumulative(spent, s.opts.Location),
	})

	var total int64
	for _, e := range spent {
		total += e.DurationSeconds
	}
	budget := s.calc.Budget(insights.BudgetInput{
		BudgetHours: ov.BudgetHours,
		SpentHours:  stats.Hours(total),
		StartDate:   ov.StartDate,
		EndDate:     ov.EndDate,
	})
	res.WeeklyBurnRate = budget.WeeklyBurnRate
	res.ProjectedExhaustion = forecast.ProjectCompletion(res.Points, budget.WeeklyBurnRate)
	return res, nil
}

// ActivityRequest selects the change feed.
type ActivityRequest struct {
	Project string
	JQL     string
	Since   string
	Limit   int
}

// DefaultActivityDays is the feed horizon when no since date is given.
const DefaultActivityDays = 7

// Activity returns the recent field changes of issues in scope, newest
// first.
func (s *Service) Activity(ctx context.Context, req ActivityRequest) ([]report.ActivityEntry, error) {
	scope, err := s.scope(ctx, req.Project, req.JQL)
	if err != nil {
		return nil, err
	}
	since := s.calc.Today().AddDays(-DefaultActivityDays)
	if strings.TrimSpace(req.Since) != "" {
		if since, err = stats.ParseDate(req.Since); err != nil {
			return nil, err
		}
	}

	items, err := s.issues.WorkItems(ctx, fmt.Sprintf("(%s) AND updated >= %q ORDER BY updated DESC", scope, since.String()))
	if err != nil {
		log.Warn().Err(err).Str("jql", scope).Msg("Activity search failed, continuing with partial data")
	}
	keys := lo.Uniq(lo.Map(items, func(it jira.WorkItem, _ int) string { return it.Key }))
	return report.CollectActivity(ctx, s.issues, keys, since.In(s.opts.Location), req.Limit, s.opts.Concurrency), nil
}

// SyncOutcome is the result of syncing one project.
type SyncOutcome struct {
	worklogstore.SyncResult
	Error string `json:"error,omitempty"`
}

// Sync refreshes the worklog cache of each project concurrently. A failing
// project is reported in its outcome and does not stop the others.
func (s *Service) Sync(ctx context.Context, projects []string) []SyncOutcome {
	projects = lo.Uniq(lo.Compact(projects))
	out := make([]SyncOutcome, len(projects))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, project := range projects {
		g.Go(func() error {
			out[i].Project = project
			scope, err := s.scope(ctx, project, "")
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			res, err := s.history.Sync(ctx, project, scope)
			out[i].SyncResult = res
			out[i].Project = project
			if err != nil {
				log.Warn().Err(err).Str("project", project).Msg("Project sync failed")
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SyncAll syncs every project with an overview plus extra.
func (s *Service) SyncAll(ctx context.Context, extra []string) ([]SyncOutcome, error) {
	overviews, err := s.repo.ListOverviews(ctx)
	if err != nil {
		return nil, err
	}
	projects := append(lo.Map(overviews, func(o store.ProjectOverview, _ int) string { return o.ProjectKey }), extra...)
	return s.Sync(ctx, projects), nil
}
