package mcp

import (
	"context"
	"fmt"
	"strings"

	"pulse-mcp/internal/dashboard"
	"pulse-mcp/internal/store"
	"pulse-mcp/internal/visuals"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func requireProject(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("project_key is required")
	}
	return key, nil
}

func (s *Server) chart(render func() string) string {
	if !s.charts {
		return ""
	}
	return render()
}

func (s *Server) handleWorklogReport(ctx context.Context, _ *sdk.CallToolRequest, in WorklogReportInput) (*sdk.CallToolResult, any, error) {
	rep, err := s.backend.WorklogReport(ctx, dashboard.ReportRequest{
		Project:         strings.TrimSpace(in.ProjectKey),
		JQL:             in.JQL,
		Start:           in.StartDate,
		End:             in.EndDate,
		IncludeActivity: in.IncludeActivity,
		ActivityLimit:   in.ActivityLimit,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(rep, s.chart(func() string { return visuals.GenerateDailyHoursChart(rep.Days) })), nil, nil
}

func (s *Server) handleTeamUtilization(ctx context.Context, _ *sdk.CallToolRequest, in UtilizationInput) (*sdk.CallToolResult, any, error) {
	rep, err := s.backend.TeamUtilization(ctx, dashboard.UtilizationRequest{
		Project: strings.TrimSpace(in.ProjectKey),
		JQL:     in.JQL,
		Start:   in.StartDate,
		End:     in.EndDate,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(rep, s.chart(func() string { return visuals.GenerateUtilizationChart(rep.Rows) })), nil, nil
}

func (s *Server) handleProjectHealth(ctx context.Context, _ *sdk.CallToolRequest, in ProjectInput) (*sdk.CallToolResult, any, error) {
	project, err := requireProject(in.ProjectKey)
	if err != nil {
		return nil, nil, err
	}
	h, err := s.backend.ProjectHealth(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	return textResult(h), nil, nil
}

func (s *Server) handleBurnDown(ctx context.Context, _ *sdk.CallToolRequest, in ProjectInput) (*sdk.CallToolResult, any, error) {
	project, err := requireProject(in.ProjectKey)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.backend.BurnDown(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	return textResult(res, s.chart(func() string { return visuals.GenerateBurnDownChart(res.Points) })), nil, nil
}

func (s *Server) handleActivity(ctx context.Context, _ *sdk.CallToolRequest, in ActivityInput) (*sdk.CallToolResult, any, error) {
	entries, err := s.backend.Activity(ctx, dashboard.ActivityRequest{
		Project: strings.TrimSpace(in.ProjectKey),
		JQL:     in.JQL,
		Since:   in.Since,
		Limit:   in.Limit,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{"count": len(entries), "activity": entries}), nil, nil
}

func (s *Server) handleAllocationList(ctx context.Context, _ *sdk.CallToolRequest, in AllocationListInput) (*sdk.CallToolResult, any, error) {
	records, err := s.backend.ListAllocations(ctx, strings.TrimSpace(in.ProjectKey), strings.TrimSpace(in.PersonID), in.From, in.To)
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{"count": len(records), "allocations": records}), nil, nil
}

func (s *Server) handleAllocationUpsert(ctx context.Context, _ *sdk.CallToolRequest, in AllocationUpsertInput) (*sdk.CallToolResult, any, error) {
	rec, err := s.backend.SaveAllocation(ctx, dashboard.AllocationInput{
		ID:          in.ID,
		PersonID:    in.PersonID,
		DisplayName: in.DisplayName,
		ProjectKey:  in.ProjectKey,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Percent:     in.Percent,
		Note:        in.Note,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(rec), nil, nil
}

func (s *Server) handleAllocationDelete(ctx context.Context, _ *sdk.CallToolRequest, in AllocationDeleteInput) (*sdk.CallToolResult, any, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	if err := s.backend.DeleteAllocation(ctx, id); err != nil {
		return nil, nil, fmt.Errorf("delete allocation %s: %w", id, err)
	}
	return textResult(map[string]any{"deleted": id}), nil, nil
}

func (s *Server) handleOverviewGet(ctx context.Context, _ *sdk.CallToolRequest, in ProjectInput) (*sdk.CallToolResult, any, error) {
	project, err := requireProject(in.ProjectKey)
	if err != nil {
		return nil, nil, err
	}
	ov, err := s.backend.GetOverview(ctx, project)
	if err != nil {
		return nil, nil, fmt.Errorf("project %s: %w", project, err)
	}
	return textResult(ov), nil, nil
}

func (s *Server) handleOverviewSet(ctx context.Context, _ *sdk.CallToolRequest, in OverviewInput) (*sdk.CallToolResult, any, error) {
	ov, err := s.backend.SetOverview(ctx, store.ProjectOverview{
		ProjectKey:      in.ProjectKey,
		Name:            in.Name,
		BudgetHours:     in.BudgetHours,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		Status:          in.Status,
		PercentComplete: in.PercentComplete,
		JQL:             in.JQL,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(ov), nil, nil
}

func (s *Server) handleSync(ctx context.Context, _ *sdk.CallToolRequest, in SyncInput) (*sdk.CallToolResult, any, error) {
	var outcomes []dashboard.SyncOutcome
	if len(in.Projects) > 0 {
		outcomes = s.backend.Sync(ctx, in.Projects)
	} else {
		var err error
		if outcomes, err = s.backend.SyncAll(ctx, nil); err != nil {
			return nil, nil, err
		}
	}
	return textResult(map[string]any{"projects": outcomes}), nil, nil
}
