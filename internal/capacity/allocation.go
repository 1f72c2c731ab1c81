package capacity

import (
	"fmt"
	"sort"
	"strings"

	"pulse-mcp/internal/stats"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// MaxPercent is the highest allocation accepted; values above 100 represent
// over-commitment.
const MaxPercent = 200

// DefaultHoursPerDay is the standard working day.
const DefaultHoursPerDay = 8

// AllocationRecord is a planned share of a person's time over an inclusive
// calendar-date range. Records for the same person may overlap.
type AllocationRecord struct {
	ID          string     `json:"id"`
	PersonID    string     `json:"personId"`
	DisplayName string     `json:"displayName"`
	ProjectKey  string     `json:"projectKey,omitempty"`
	StartDate   stats.Date `json:"startDate"`
	EndDate     stats.Date `json:"endDate"`
	Percent     float64    `json:"percent"`
	Note        string     `json:"note,omitempty"`
}

// Validate rejects records that cannot take part in reconciliation.
func (r AllocationRecord) Validate() error {
	if strings.TrimSpace(r.PersonID) == "" {
		return fmt.Errorf("allocation: person id is required")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return fmt.Errorf("allocation %s: start and end dates are required", r.PersonID)
	}
	if r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("allocation %s: end %s is before start %s", r.PersonID, r.EndDate, r.StartDate)
	}
	if r.Percent < 0 || r.Percent > MaxPercent {
		return fmt.Errorf("allocation %s: percent %.2f outside [0, %d]", r.PersonID, r.Percent, MaxPercent)
	}
	return nil
}

// WeightedAllocation is one person's blended allocation for a query window.
type WeightedAllocation struct {
	PersonID        string  `json:"personId"`
	DisplayName     string  `json:"displayName"`
	WeightedPercent float64 `json:"weightedPercent"`
	AvailableHours  float64 `json:"availableHours"`
	WorkDays        int     `json:"workDays"`
	OverlapDays     int     `json:"overlapDays"`
	Records         int     `json:"records"`

	weighted float64
	hours    float64
}

// OverlapDays counts calendar days shared by the record and the window, both
// ends inclusive. Abutting ranges (one ends on day 10, the next starts on
// day 11) share no day.
func OverlapDays(r AllocationRecord, w stats.Window) int {
	start := stats.MaxDate(r.StartDate, w.Start)
	end := stats.MinDate(r.EndDate, w.End)
	return max(0, start.DaysUntil(end)+1)
}

// Reconcile blends all records overlapping the window into a single
// day-weighted percentage and the hours it makes available. Every record
// counts its own overlap, so a day covered by two records is weighted by
// both. Invalid records are skipped.
func Reconcile(records []AllocationRecord, w stats.Window, hoursPerDay float64) WeightedAllocation {
	if hoursPerDay <= 0 {
		hoursPerDay = DefaultHoursPerDay
	}

	var out WeightedAllocation
	var weightedSum float64
	for _, r := range records {
		if err := r.Validate(); err != nil {
			log.Warn().Err(err).Str("allocation", r.ID).Msg("Skipping invalid allocation record")
			continue
		}
		if out.PersonID == "" {
			out.PersonID, out.DisplayName = r.PersonID, r.DisplayName
		}
		days := OverlapDays(r, w)
		if days == 0 {
			continue
		}
		out.Records++
		out.OverlapDays += days
		weightedSum += r.Percent * float64(days)
	}

	out.WorkDays = stats.WorkDays(w.Start, w.End)
	out.weighted = stats.SafeDiv(weightedSum, float64(out.OverlapDays))
	out.hours = float64(out.WorkDays) * hoursPerDay * out.weighted / 100

	out.WeightedPercent = stats.Round2(out.weighted)
	out.AvailableHours = stats.Round1(out.hours)
	return out
}

// ReconcileTeam reconciles each person separately, ordered by display name.
func ReconcileTeam(records []AllocationRecord, w stats.Window, hoursPerDay float64) []WeightedAllocation {
	byPerson := lo.GroupBy(records, func(r AllocationRecord) string { return r.PersonID })

	out := make([]WeightedAllocation, 0, len(byPerson))
	for _, recs := range byPerson {
		wa := Reconcile(recs, w, hoursPerDay)
		if wa.PersonID == "" {
			continue
		}
		out = append(out, wa)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}
