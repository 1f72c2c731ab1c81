package insights

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pulse-mcp/internal/stats"
)

// ScheduleStatus is the schedule classification of a project.
type ScheduleStatus string

const (
	ScheduleAhead    ScheduleStatus = "ahead"
	ScheduleOnTrack  ScheduleStatus = "on-track"
	ScheduleBehind   ScheduleStatus = "behind"
	ScheduleOvertime ScheduleStatus = "overtime"
)

const (
	// AheadAbove and BehindBelow bound the on-track variance band.
	AheadAbove  = 10.0
	BehindBelow = -10.0

	// ActiveStatus is the only project status that can put a project into
	// overtime.
	ActiveStatus = "active"
)

// Calculator computes schedule and budget insights against a fixed "today".
type Calculator struct {
	Now      func() time.Time
	Location *time.Location
}

// NewCalculator returns a Calculator on the wall clock in loc.
func NewCalculator(loc *time.Location) *Calculator {
	return &Calculator{Now: time.Now, Location: loc}
}

// Today is the current calendar date in the configured zone.
func (c *Calculator) Today() stats.Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return stats.LocalDate(now(), c.Location)
}

// ScheduleInput carries the overview fields the schedule depends on.
type ScheduleInput struct {
	PercentComplete float64
	StartDate       string
	EndDate         string
	ProjectStatus   string
}

// ScheduleInsight compares completion against elapsed time.
type ScheduleInsight struct {
	Status             ScheduleStatus `json:"status"`
	PercentComplete    float64        `json:"percentComplete"`
	PercentTimeElapsed float64        `json:"percentTimeElapsed"`
	Variance           float64        `json:"variance"`
	DaysAheadBehind    int            `json:"daysAheadBehind"`
	ProjectedEndDate   string         `json:"projectedEndDate,omitempty"`
	EndDate            string         `json:"endDate,omitempty"`
	TotalDays          int            `json:"totalDays"`
	DatesSet           bool           `json:"datesSet"`
	Message            string         `json:"message"`
}

// span is a validated project date range.
type span struct {
	start, end stats.Date
	totalDays  int
}

func parseSpan(start, end string) (span, bool) {
	s, err := stats.ParseDate(start)
	if err != nil {
		return span{}, false
	}
	e, err := stats.ParseDate(end)
	if err != nil {
		return span{}, false
	}
	total := s.DaysUntil(e)
	if total <= 0 {
		return span{}, false
	}
	return span{start: s, end: e, totalDays: total}, true
}

// elapsedPercent is the share of the span that has passed, clamped to
// [0, 100].
func (sp span) elapsedPercent(today stats.Date) float64 {
	return stats.Clamp(stats.Percent(float64(sp.start.DaysUntil(today)), float64(sp.totalDays)), 0, 100)
}

// Schedule evaluates the schedule state machine: invalid input yields a
// neutral on-track insight, an active project past its end date is overtime,
// anything else is classified by the variance of completion against elapsed
// time.
func (c *Calculator) Schedule(in ScheduleInput) ScheduleInsight {
	pc := stats.Clamp(in.PercentComplete, 0, 100)

	sp, ok := parseSpan(in.StartDate, in.EndDate)
	if !ok {
		return ScheduleInsight{
			Status:  ScheduleOnTrack,
			Message: "Set a project start and end date to track the schedule.",
		}
	}

	today := c.Today()
	out := ScheduleInsight{
		PercentComplete: stats.Round2(pc),
		EndDate:         sp.end.String(),
		TotalDays:       sp.totalDays,
		DatesSet:        true,
	}

	if today.After(sp.end) && isActive(in.ProjectStatus) {
		overdue := sp.end.DaysUntil(today)
		out.Status = ScheduleOvertime
		out.PercentTimeElapsed = 100
		out.Variance = stats.Round2(pc - 100)
		out.DaysAheadBehind = -overdue
		out.ProjectedEndDate = sp.end.String()
		out.Message = fmt.Sprintf("Project is %d days past its end date at %.0f%% complete.", overdue, pc)
		return out
	}

	elapsed := sp.elapsedPercent(today)
	variance := pc - elapsed
	out.PercentTimeElapsed = stats.Round2(elapsed)
	out.Variance = stats.Round2(variance)
	out.DaysAheadBehind = int(math.Round(variance / 100 * float64(sp.totalDays)))
	out.ProjectedEndDate = sp.end.String()
	if pc > 0 && pc < 100 && elapsed > 0 {
		projected := int(math.Round(float64(sp.totalDays) * elapsed / pc))
		out.ProjectedEndDate = sp.start.AddDays(projected).String()
	}

	switch {
	case variance > AheadAbove:
		out.Status = ScheduleAhead
		out.Message = fmt.Sprintf("Ahead of schedule by %d days: %.1f%% complete with %.1f%% of time elapsed.", out.DaysAheadBehind, pc, elapsed)
	case variance < BehindBelow:
		out.Status = ScheduleBehind
		out.Message = fmt.Sprintf("Behind schedule by %d days: %.1f%% complete with %.1f%% of time elapsed.", -out.DaysAheadBehind, pc, elapsed)
	default:
		out.Status = ScheduleOnTrack
		out.Message = fmt.Sprintf("On track: %.1f%% complete with %.1f%% of time elapsed.", pc, elapsed)
	}
	return out
}

// isActive treats only an explicit "active" status as active. Projects with
// no status never go into overtime.
func isActive(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), ActiveStatus)
}
