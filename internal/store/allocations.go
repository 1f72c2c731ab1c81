package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/stats"

	"github.com/google/uuid"
)

// AllocationFilter narrows ListAllocations. Zero fields do not filter. When
// From and To are set, only records overlapping [From, To] are returned.
type AllocationFilter struct {
	ProjectKey string
	PersonID   string
	From       stats.Date
	To         stats.Date
}

const allocationColumns = `id,person_id,display_name,project_key,start_date,end_date,percent,note`

func scanAllocation(scan func(dest ...any) error) (capacity.AllocationRecord, error) {
	var r capacity.AllocationRecord
	var start, end string
	if err := scan(&r.ID, &r.PersonID, &r.DisplayName, &r.ProjectKey, &start, &end, &r.Percent, &r.Note); err != nil {
		return r, err
	}
	var err error
	if r.StartDate, err = stats.ParseDate(start); err != nil {
		return r, fmt.Errorf("allocation %s: %w", r.ID, err)
	}
	if r.EndDate, err = stats.ParseDate(end); err != nil {
		return r, fmt.Errorf("allocation %s: %w", r.ID, err)
	}
	return r, nil
}

// CreateAllocation validates and inserts a record, assigning an id when
// missing.
func (s *Store) CreateAllocation(ctx context.Context, r capacity.AllocationRecord) (capacity.AllocationRecord, error) {
	if err := r.Validate(); err != nil {
		return r, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := nowText()
	_, err := s.exec(ctx, `INSERT INTO allocations(`+allocationColumns+`,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.PersonID, r.DisplayName, r.ProjectKey, r.StartDate.String(), r.EndDate.String(), r.Percent, r.Note, now, now)
	if err != nil {
		return r, fmt.Errorf("insert allocation: %w", err)
	}
	return r, nil
}

// GetAllocation loads one record by id.
func (s *Store) GetAllocation(ctx context.Context, id string) (capacity.AllocationRecord, error) {
	row := s.queryRow(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id=?`, id)
	r, err := scanAllocation(row.Scan)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	return r, err
}

// UpdateAllocation replaces an existing record.
func (s *Store) UpdateAllocation(ctx context.Context, r capacity.AllocationRecord) error {
	if r.ID == "" {
		return fmt.Errorf("allocation id is required")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE allocations SET person_id=?,display_name=?,project_key=?,start_date=?,end_date=?,percent=?,note=?,updated_at=? WHERE id=?`,
		r.PersonID, r.DisplayName, r.ProjectKey, r.StartDate.String(), r.EndDate.String(), r.Percent, r.Note, nowText(), r.ID)
	if err != nil {
		return fmt.Errorf("update allocation: %w", err)
	}
	return requireRow(res)
}

// SaveAllocation creates the record when it has no id and updates it
// otherwise.
func (s *Store) SaveAllocation(ctx context.Context, r capacity.AllocationRecord) (capacity.AllocationRecord, error) {
	if r.ID == "" {
		return s.CreateAllocation(ctx, r)
	}
	return r, s.UpdateAllocation(ctx, r)
}

// DeleteAllocation removes a record by id.
func (s *Store) DeleteAllocation(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM allocations WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return requireRow(res)
}

// ListAllocations returns matching records ordered by person and start date.
func (s *Store) ListAllocations(ctx context.Context, f AllocationFilter) ([]capacity.AllocationRecord, error) {
	var where []string
	var args []any
	if f.ProjectKey != "" {
		where = append(where, "project_key=?")
		args = append(args, f.ProjectKey)
	}
	if f.PersonID != "" {
		where = append(where, "person_id=?")
		args = append(args, f.PersonID)
	}
	if !f.To.IsZero() {
		where = append(where, "start_date<=?")
		args = append(args, f.To.String())
	}
	if !f.From.IsZero() {
		where = append(where, "end_date>=?")
		args = append(args, f.From.String())
	}

	q := `SELECT ` + allocationColumns + ` FROM allocations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY person_id, start_date, id"

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	out := []capacity.AllocationRecord{}
	for rows.Next() {
		r, err := scanAllocation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
