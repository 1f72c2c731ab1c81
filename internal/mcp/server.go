package mcp

import (
	"context"
	"encoding/json"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/dashboard"
	"pulse-mcp/internal/report"
	"pulse-mcp/internal/store"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Backend is the dashboard surface the tools expose. Implemented by
// dashboard.Service.
type Backend interface {
	WorklogReport(ctx context.Context, req dashboard.ReportRequest) (report.WorklogReport, error)
	TeamUtilization(ctx context.Context, req dashboard.UtilizationRequest) (dashboard.UtilizationReport, error)
	ProjectHealth(ctx context.Context, project string) (dashboard.Health, error)
	BurnDown(ctx context.Context, project string) (dashboard.BurnDownResult, error)
	Activity(ctx context.Context, req dashboard.ActivityRequest) ([]report.ActivityEntry, error)

	ListAllocations(ctx context.Context, project, person, from, to string) ([]capacity.AllocationRecord, error)
	SaveAllocation(ctx context.Context, in dashboard.AllocationInput) (capacity.AllocationRecord, error)
	DeleteAllocation(ctx context.Context, id string) error

	GetOverview(ctx context.Context, project string) (store.ProjectOverview, error)
	SetOverview(ctx context.Context, p store.ProjectOverview) (store.ProjectOverview, error)

	Sync(ctx context.Context, projects []string) []dashboard.SyncOutcome
	SyncAll(ctx context.Context, extra []string) ([]dashboard.SyncOutcome, error)
}

// Server holds the state for the MCP server.
type Server struct {
	backend Backend
	charts  bool
	version string
}

// NewServer creates a new MCP server. With charts set, chart-capable tools
// append a Mermaid block to their JSON result.
func NewServer(backend Backend, charts bool, version string) *Server {
	return &Server{backend: backend, charts: charts, version: version}
}

// Build returns the protocol server with every tool registered.
func (s *Server) Build() *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "pulse-mcp", Version: s.version}, nil)
	s.registerTools(server)
	return server
}

// Start serves the tools over stdio until the client disconnects or ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Info().Bool("charts", s.charts).Msg("MCP Server starting Stdio loop")
	return s.Build().Run(ctx, &sdk.StdioTransport{})
}

func formatResult(data any) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode tool result")
		return "{}"
	}
	return string(out)
}

// textResult renders data as indented JSON followed by any non-empty extra
// blocks.
func textResult(data any, extra ...string) *sdk.CallToolResult {
	content := []sdk.Content{&sdk.TextContent{Text: formatResult(data)}}
	for _, e := range extra {
		if e != "" {
			content = append(content, &sdk.TextContent{Text: e})
		}
	}
	return &sdk.CallToolResult{Content: content}
}
