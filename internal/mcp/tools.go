package mcp

import (
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// WorklogReportInput selects a worklog report.
type WorklogReportInput struct {
	ProjectKey      string `json:"project_key,omitempty" jsonschema:"project key; its configured JQL or the whole project is the scope"`
	JQL             string `json:"jql,omitempty" jsonschema:"explicit JQL scope, overrides project_key"`
	StartDate       string `json:"start_date" jsonschema:"first day of the window, YYYY-MM-DD"`
	EndDate         string `json:"end_date" jsonschema:"last day of the window (inclusive), YYYY-MM-DD"`
	IncludeActivity bool   `json:"include_activity,omitempty" jsonschema:"also list field changes of the reported issues"`
	ActivityLimit   int    `json:"activity_limit,omitempty" jsonschema:"maximum activity entries, 0 for all"`
}

// UtilizationInput selects a team utilization view.
type UtilizationInput struct {
	ProjectKey string `json:"project_key,omitempty" jsonschema:"project whose allocations and worklogs are compared"`
	JQL        string `json:"jql,omitempty" jsonschema:"explicit JQL scope for the logged hours"`
	StartDate  string `json:"start_date" jsonschema:"first day of the window, YYYY-MM-DD"`
	EndDate    string `json:"end_date" jsonschema:"last day of the window (inclusive), YYYY-MM-DD"`
}

// ProjectInput names a single project.
type ProjectInput struct {
	ProjectKey string `json:"project_key" jsonschema:"the project key (e.g. PAY)"`
}

// ActivityInput selects the change feed.
type ActivityInput struct {
	ProjectKey string `json:"project_key,omitempty" jsonschema:"project key"`
	JQL        string `json:"jql,omitempty" jsonschema:"explicit JQL scope, overrides project_key"`
	Since      string `json:"since,omitempty" jsonschema:"earliest change date, YYYY-MM-DD; default one week ago"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum entries, 0 for all"`
}

// AllocationListInput filters allocation records.
type AllocationListInput struct {
	ProjectKey string `json:"project_key,omitempty" jsonschema:"only records of this project"`
	PersonID   string `json:"person_id,omitempty" jsonschema:"only records of this Jira account id"`
	From       string `json:"from,omitempty" jsonschema:"only records overlapping a range starting here, YYYY-MM-DD"`
	To         string `json:"to,omitempty" jsonschema:"end of the overlap range, YYYY-MM-DD"`
}

// AllocationUpsertInput creates or updates an allocation.
type AllocationUpsertInput struct {
	ID          string  `json:"id,omitempty" jsonschema:"existing allocation id; omit to create"`
	PersonID    string  `json:"person_id" jsonschema:"Jira account id of the person"`
	DisplayName string  `json:"display_name,omitempty" jsonschema:"name shown in reports"`
	ProjectKey  string  `json:"project_key,omitempty" jsonschema:"project the allocation belongs to"`
	StartDate   string  `json:"start_date" jsonschema:"first day, YYYY-MM-DD"`
	EndDate     string  `json:"end_date" jsonschema:"last day (inclusive), YYYY-MM-DD"`
	Percent     float64 `json:"percent" jsonschema:"share of the working day, 0 to 200"`
	Note        string  `json:"note,omitempty"`
}

// AllocationDeleteInput names a record to delete.
type AllocationDeleteInput struct {
	ID string `json:"id" jsonschema:"allocation id"`
}

// OverviewInput sets the planning fields of a project.
type OverviewInput struct {
	ProjectKey      string   `json:"project_key" jsonschema:"the project key (e.g. PAY)"`
	Name            string   `json:"name,omitempty" jsonschema:"display name"`
	BudgetHours     float64  `json:"budget_hours,omitempty" jsonschema:"approved effort in hours"`
	StartDate       string   `json:"start_date,omitempty" jsonschema:"project start, YYYY-MM-DD"`
	EndDate         string   `json:"end_date,omitempty" jsonschema:"planned end, YYYY-MM-DD"`
	Status          string   `json:"status,omitempty" jsonschema:"active, paused or completed"`
	PercentComplete *float64 `json:"percent_complete,omitempty" jsonschema:"manual completion override, 0 to 100"`
	JQL             string   `json:"jql,omitempty" jsonschema:"JQL scope replacing the whole project"`
}

// SyncInput selects the projects to sync.
type SyncInput struct {
	Projects []string `json:"projects,omitempty" jsonschema:"project keys; empty syncs every project with an overview"`
}

func (s *Server) registerTools(server *sdk.Server) {
	sdk.AddTool(server, &sdk.Tool{
		Name: "worklog_report",
		Description: "Hours logged in a date window, nested along the issue hierarchy (epic > story > sub-task) with per-person and per-day totals. " +
			"Days are calendar days in the configured time zone; both window ends are inclusive.",
	}, s.handleWorklogReport)

	sdk.AddTool(server, &sdk.Tool{
		Name: "team_utilization",
		Description: "Compare the hours each person logged against their planned allocation for a window. " +
			"Status is overloaded above 110%, at-risk above 100%, underloaded below 50% (only for allocated people), otherwise optimal.",
	}, s.handleTeamUtilization)

	sdk.AddTool(server, &sdk.Tool{
		Name: "project_health",
		Description: "Schedule and budget insights, epic progress, prioritized alerts and recommendations for a project. " +
			"Requires a project overview (budget, start and end date); without one the insights are neutral. " +
			"Report the alerts and recommendations as returned; do not invent figures the tool did not produce.",
	}, s.handleProjectHealth)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "burndown",
		Description: "Weekly budget burn-down: ideal versus actual remaining hours and the week the budget runs out at the current burn rate.",
	}, s.handleBurnDown)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "recent_activity",
		Description: "Recent field changes (status, assignee, estimates...) of issues in scope, newest first.",
	}, s.handleActivity)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "allocation_list",
		Description: "List planned allocations. Records of the same person may overlap; each counts its own days.",
	}, s.handleAllocationList)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "allocation_upsert",
		Description: "Create an allocation (no id) or update an existing one. person_id must be the Jira account id used on worklogs.",
	}, s.handleAllocationUpsert)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "allocation_delete",
		Description: "Delete an allocation by id.",
	}, s.handleAllocationDelete)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "project_overview_get",
		Description: "Read the planning fields (budget, dates, status, completion override, scope) of a project.",
	}, s.handleOverviewGet)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "project_overview_set",
		Description: "Create or replace the planning fields of a project. Omitted fields are cleared.",
	}, s.handleOverviewSet)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "sync_worklogs",
		Description: "Refresh the local worklog history cache from Jira. Incremental after the first run.",
	}, s.handleSync)
}
