package mcp

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/dashboard"
	"pulse-mcp/internal/forecast"
	"pulse-mcp/internal/insights"
	"pulse-mcp/internal/store"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeBackend struct {
	Backend

	savedOverview store.ProjectOverview
	savedAlloc    dashboard.AllocationInput
	synced        []string
	syncedAll     bool
}

func (f *fakeBackend) ProjectHealth(_ context.Context, project string) (dashboard.Health, error) {
	return dashboard.Health{
		Project:  project,
		Schedule: insights.ScheduleInsight{Status: insights.ScheduleBehind},
		Alerts:   []insights.Alert{{Type: "schedule-behind", Message: "Behind schedule by 4 days", Priority: 70}},
	}, nil
}

func (f *fakeBackend) BurnDown(_ context.Context, project string) (dashboard.BurnDownResult, error) {
	remaining := 80.0
	return dashboard.BurnDownResult{
		Project:     project,
		BudgetHours: 100,
		Points: []forecast.BurnDownPoint{
			{WeekStart: "2024-01-01", IdealRemaining: 100, ActualRemaining: &remaining, IsLastActual: true},
			{WeekStart: "2024-01-08", IdealRemaining: 50},
		},
	}, nil
}

func (f *fakeBackend) SaveAllocation(_ context.Context, in dashboard.AllocationInput) (capacity.AllocationRecord, error) {
	f.savedAlloc = in
	rec, err := in.Record()
	if err != nil {
		return rec, err
	}
	rec.ID = "a-1"
	return rec, nil
}

func (f *fakeBackend) DeleteAllocation(_ context.Context, id string) error {
	if id != "a-1" {
		return store.ErrNotFound
	}
	return nil
}

func (f *fakeBackend) GetOverview(_ context.Context, project string) (store.ProjectOverview, error) {
	return store.ProjectOverview{}, store.ErrNotFound
}

func (f *fakeBackend) SetOverview(_ context.Context, p store.ProjectOverview) (store.ProjectOverview, error) {
	f.savedOverview = p
	err := p.Validate()
	return p, err
}

func (f *fakeBackend) Sync(_ context.Context, projects []string) []dashboard.SyncOutcome {
	f.synced = projects
	return nil
}

func (f *fakeBackend) SyncAll(context.Context, []string) ([]dashboard.SyncOutcome, error) {
	f.syncedAll = true
	return nil, nil
}

func text(t *testing.T, res *sdk.CallToolResult, i int) string {
	t.Helper()
	if len(res.Content) <= i {
		t.Fatalf("result has %d blocks, want more than %d", len(res.Content), i)
	}
	tc, ok := res.Content[i].(*sdk.TextContent)
	if !ok {
		t.Fatalf("block %d is %T", i, res.Content[i])
	}
	return tc.Text
}

func TestHandleBurnDown_Charts(t *testing.T) {
	for _, charts := range []bool{false, true} {
		s := NewServer(&fakeBackend{}, charts, "test")
		res, _, err := s.handleBurnDown(context.Background(), nil, ProjectInput{ProjectKey: " PAY "})
		if err != nil {
			t.Fatalf("handleBurnDown: %v", err)
		}
		if !strings.Contains(text(t, res, 0), `"project": "PAY"`) {
			t.Errorf("json = %s", text(t, res, 0))
		}
		want := 1
		if charts {
			want = 2
		}
		if len(res.Content) != want {
			t.Fatalf("charts=%v: %d blocks, want %d", charts, len(res.Content), want)
		}
		if charts && !strings.Contains(text(t, res, 1), "xychart-beta") {
			t.Errorf("chart = %s", text(t, res, 1))
		}
	}
}

func TestHandlers_RequireProject(t *testing.T) {
	s := NewServer(&fakeBackend{}, false, "test")
	ctx := context.Background()
	if _, _, err := s.handleProjectHealth(ctx, nil, ProjectInput{ProjectKey: "  "}); err == nil {
		t.Error("project_health without a key should fail")
	}
	if _, _, err := s.handleBurnDown(ctx, nil, ProjectInput{}); err == nil {
		t.Error("burndown without a key should fail")
	}
	if _, _, err := s.handleAllocationDelete(ctx, nil, AllocationDeleteInput{}); err == nil {
		t.Error("allocation_delete without an id should fail")
	}
}

func TestHandleOverview(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer(backend, false, "test")
	ctx := context.Background()

	pc := 40.0
	res, _, err := s.handleOverviewSet(ctx, nil, OverviewInput{
		ProjectKey: "PAY", BudgetHours: 500, StartDate: "2024-01-01", EndDate: "2024-06-30",
		Status: "Active", PercentComplete: &pc,
	})
	if err != nil {
		t.Fatalf("handleOverviewSet: %v", err)
	}
	if backend.savedOverview.BudgetHours != 500 || *backend.savedOverview.PercentComplete != 40 {
		t.Errorf("saved = %+v", backend.savedOverview)
	}
	if !strings.Contains(text(t, res, 0), `"status": "active"`) {
		t.Errorf("status not normalized: %s", text(t, res, 0))
	}

	if _, _, err := s.handleOverviewSet(ctx, nil, OverviewInput{ProjectKey: "PAY", Status: "archived"}); err == nil {
		t.Error("unknown status should fail")
	}

	_, _, err = s.handleOverviewGet(ctx, nil, ProjectInput{ProjectKey: "OPS"})
	if !errors.Is(err, store.ErrNotFound) || !strings.Contains(err.Error(), "OPS") {
		t.Errorf("get missing overview err = %v", err)
	}
}

func TestHandleAllocation(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer(backend, false, "test")
	ctx := context.Background()

	res, _, err := s.handleAllocationUpsert(ctx, nil, AllocationUpsertInput{
		PersonID: "ann", DisplayName: "Ann", StartDate: "2024-01-01", EndDate: "2024-01-31", Percent: 80,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if backend.savedAlloc.PersonID != "ann" || !strings.Contains(text(t, res, 0), `"id": "a-1"`) {
		t.Errorf("saved %+v, result %s", backend.savedAlloc, text(t, res, 0))
	}

	if _, _, err := s.handleAllocationUpsert(ctx, nil, AllocationUpsertInput{
		PersonID: "ann", StartDate: "2024-01-31", EndDate: "2024-01-01", Percent: 80,
	}); err == nil {
		t.Error("inverted range should fail")
	}

	if _, _, err := s.handleAllocationDelete(ctx, nil, AllocationDeleteInput{ID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("delete missing err = %v", err)
	}
}

func TestHandleSync(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer(backend, false, "test")
	ctx := context.Background()

	if _, _, err := s.handleSync(ctx, nil, SyncInput{Projects: []string{"PAY"}}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.handleSync(ctx, nil, SyncInput{}); err != nil {
		t.Fatal(err)
	}
	if len(backend.synced) != 1 || !backend.syncedAll {
		t.Errorf("synced = %v, all = %v", backend.synced, backend.syncedAll)
	}
}

func TestToolInputSchemas(t *testing.T) {
	tests := []struct {
		name     string
		schema   func() (*jsonschema.Schema, error)
		required []string
	}{
		{"worklog_report", func() (*jsonschema.Schema, error) { return jsonschema.For[WorklogReportInput](nil) }, []string{"end_date", "start_date"}},
		{"project", func() (*jsonschema.Schema, error) { return jsonschema.For[ProjectInput](nil) }, []string{"project_key"}},
		{"allocation_upsert", func() (*jsonschema.Schema, error) { return jsonschema.For[AllocationUpsertInput](nil) }, []string{"end_date", "percent", "person_id", "start_date"}},
		{"project_overview_set", func() (*jsonschema.Schema, error) { return jsonschema.For[OverviewInput](nil) }, []string{"project_key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := tt.schema()
			if err != nil {
				t.Fatalf("schema: %v", err)
			}
			got := slices.Clone(schema.Required)
			slices.Sort(got)
			if !slices.Equal(got, tt.required) {
				t.Errorf("required = %v, want %v", got, tt.required)
			}
			for name, prop := range schema.Properties {
				if name != "note" && prop.Description == "" {
					t.Errorf("property %s has no description", name)
				}
			}
		})
	}
}

func TestServer_InMemorySession(t *testing.T) {
	ctx := context.Background()
	server := NewServer(&fakeBackend{}, false, "test").Build()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"worklog_report", "team_utilization", "project_health", "burndown", "recent_activity",
		"allocation_list", "allocation_upsert", "allocation_delete",
		"project_overview_get", "project_overview_set", "sync_worklogs",
	} {
		if !slices.Contains(names, want) {
			t.Errorf("tool %s not registered (have %v)", want, names)
		}
	}

	res, err := session.CallTool(ctx, &sdk.CallToolParams{
		Name:      "project_health",
		Arguments: map[string]any{"project_key": "PAY"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError || !strings.Contains(text(t, res, 0), "schedule-behind") {
		t.Errorf("result = %+v", res)
	}
}
