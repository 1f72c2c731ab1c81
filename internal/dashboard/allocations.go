package dashboard

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/stats"
	"pulse-mcp/internal/store"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// AllocationInput is the loosely typed form of an allocation, as received
// from a tool call, a flag set or an import file. Dates are YYYY-MM-DD.
type AllocationInput struct {
	ID          string  `json:"id,omitempty" yaml:"id,omitempty" jsonschema:"existing allocation id; empty creates a new record"`
	PersonID    string  `json:"personId" yaml:"person" jsonschema:"Jira account id of the person"`
	DisplayName string  `json:"displayName,omitempty" yaml:"name,omitempty" jsonschema:"display name shown in reports"`
	ProjectKey  string  `json:"projectKey,omitempty" yaml:"project,omitempty" jsonschema:"project the allocation belongs to"`
	StartDate   string  `json:"startDate" yaml:"start" jsonschema:"first day, YYYY-MM-DD"`
	EndDate     string  `json:"endDate" yaml:"end" jsonschema:"last day (inclusive), YYYY-MM-DD"`
	Percent     float64 `json:"percent" yaml:"percent" jsonschema:"share of the working day, 0 to 200"`
	Note        string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Record parses the dates and validates the result.
func (in AllocationInput) Record() (capacity.AllocationRecord, error) {
	r := capacity.AllocationRecord{
		ID:          strings.TrimSpace(in.ID),
		PersonID:    strings.TrimSpace(in.PersonID),
		DisplayName: strings.TrimSpace(in.DisplayName),
		ProjectKey:  strings.TrimSpace(in.ProjectKey),
		Percent:     in.Percent,
		Note:        in.Note,
	}
	var err error
	if r.StartDate, err = stats.ParseDate(in.StartDate); err != nil {
		return r, fmt.Errorf("start date: %w", err)
	}
	if r.EndDate, err = stats.ParseDate(in.EndDate); err != nil {
		return r, fmt.Errorf("end date: %w", err)
	}
	return r, r.Validate()
}

// AllocationFile is the YAML import layout.
type AllocationFile struct {
	Allocations []AllocationInput `yaml:"allocations"`
}

// ListAllocations returns the records matching the filter. Empty dates do
// not filter.
func (s *Service) ListAllocations(ctx context.Context, project, person, from, to string) ([]capacity.AllocationRecord, error) {
	f := store.AllocationFilter{ProjectKey: project, PersonID: person}
	if from != "" || to != "" {
		w, err := stats.ParseWindow(from, to)
		if err != nil {
			return nil, err
		}
		f.From, f.To = w.Start, w.End
	}
	return s.repo.ListAllocations(ctx, f)
}

// SaveAllocation validates and stores one allocation.
func (s *Service) SaveAllocation(ctx context.Context, in AllocationInput) (capacity.AllocationRecord, error) {
	r, err := in.Record()
	if err != nil {
		return r, err
	}
	return s.repo.SaveAllocation(ctx, r)
}

func (s *Service) DeleteAllocation(ctx context.Context, id string) error {
	return s.repo.DeleteAllocation(ctx, id)
}

// ImportAllocations reads an AllocationFile and saves every record. The
// whole file is validated before anything is written.
func (s *Service) ImportAllocations(ctx context.Context, r io.Reader) ([]capacity.AllocationRecord, error) {
	var file AllocationFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("parse allocation file: %w", err)
	}

	records := make([]capacity.AllocationRecord, 0, len(file.Allocations))
	for i, in := range file.Allocations {
		rec, err := in.Record()
		if err != nil {
			return nil, fmt.Errorf("allocation #%d: %w", i+1, err)
		}
		records = append(records, rec)
	}

	saved := make([]capacity.AllocationRecord, 0, len(records))
	for _, rec := range records {
		out, err := s.repo.SaveAllocation(ctx, rec)
		if err != nil {
			return saved, err
		}
		saved = append(saved, out)
	}
	log.Info().Int("count", len(saved)).Msg("Imported allocations")
	return saved, nil
}

// ExportAllocations writes records in the import layout.
func ExportAllocations(w io.Writer, records []capacity.AllocationRecord) error {
	file := AllocationFile{Allocations: make([]AllocationInput, 0, len(records))}
	for _, r := range records {
		file.Allocations = append(file.Allocations, AllocationInput{
			ID:          r.ID,
			PersonID:    r.PersonID,
			DisplayName: r.DisplayName,
			ProjectKey:  r.ProjectKey,
			StartDate:   r.StartDate.String(),
			EndDate:     r.EndDate.String(),
			Percent:     r.Percent,
			Note:        r.Note,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return err
	}
	return enc.Close()
}

// GetOverview returns the stored overview of a project.
func (s *Service) GetOverview(ctx context.Context, project string) (store.ProjectOverview, error) {
	return s.repo.GetOverview(ctx, project)
}

// SetOverview validates and stores a project overview.
func (s *Service) SetOverview(ctx context.Context, p store.ProjectOverview) (store.ProjectOverview, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	return s.repo.UpsertOverview(ctx, p)
}

func (s *Service) ListOverviews(ctx context.Context) ([]store.ProjectOverview, error) {
	return s.repo.ListOverviews(ctx)
}

func (s *Service) DeleteOverview(ctx context.Context, project string) error {
	return s.repo.DeleteOverview(ctx, project)
}
