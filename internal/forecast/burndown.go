package forecast

import (
	"math"
	"sort"
	"time"

	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"
)

// BurnDownInput is a budget over a date range plus the cumulative hours spent,
// keyed by week start. Weeks without data may be missing.
type BurnDownInput struct {
	BudgetHours float64
	Start       stats.Date
	End         stats.Date
	Cumulative  map[stats.Date]float64
}

// BurnDownPoint is one week of the burn-down series. ActualRemaining is nil
// after the last week with real data.
type BurnDownPoint struct {
	WeekStart       string   `json:"weekStart"`
	IdealRemaining  float64  `json:"idealRemaining"`
	ActualRemaining *float64 `json:"actualRemaining"`
	IsLastActual    bool     `json:"isLastActual"`
}

// BurnDown emits one point per week from the Monday on or before Start
// through End. The ideal line depletes linearly from the budget at Start to
// zero at End. The actual line carries the last known cumulative value
// forward but stops at the last week with data.
func BurnDown(in BurnDownInput) []BurnDownPoint {
	points := []BurnDownPoint{}
	if in.Start.IsZero() || in.End.IsZero() || in.End.Before(in.Start) {
		return points
	}
	budget := math.Max(0, stats.Finite(in.BudgetHours))
	totalDays := in.Start.DaysUntil(in.End)

	weeks, values := sortedWeeks(in.Cumulative)
	var lastData stats.Date
	if len(weeks) > 0 {
		lastData = weeks[len(weeks)-1]
	}

	next, carried := 0, 0.0
	lastActual := -1
	for week := in.Start.WeekStart(); !week.After(in.End); week = week.AddDays(7) {
		p := BurnDownPoint{WeekStart: week.String()}

		if totalDays > 0 {
			elapsed := max(0, in.Start.DaysUntil(week))
			p.IdealRemaining = stats.Round1(math.Max(0, budget-float64(elapsed)*budget/float64(totalDays)))
		}

		for next < len(weeks) && !weeks[next].After(week) {
			carried = values[next]
			next++
		}
		if !lastData.IsZero() && !week.After(lastData) {
			actual := stats.Round1(budget - carried)
			p.ActualRemaining = &actual
			lastActual = len(points)
		}
		points = append(points, p)
	}

	if lastActual >= 0 {
		points[lastActual].IsLastActual = true
	}
	return points
}

// sortedWeeks normalizes keys to week starts and returns them in order.
// Two keys in the same week keep the larger cumulative value.
func sortedWeeks(cumulative map[stats.Date]float64) ([]stats.Date, []float64) {
	byWeek := make(map[stats.Date]float64, len(cumulative))
	for d, v := range cumulative {
		w := d.WeekStart()
		if cur, ok := byWeek[w]; !ok || v > cur {
			byWeek[w] = stats.Finite(v)
		}
	}
	weeks := make([]stats.Date, 0, len(byWeek))
	for w := range byWeek {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	values := make([]float64, len(weeks))
	for i, w := range weeks {
		values[i] = byWeek[w]
	}
	return weeks, values
}

// WeeklyCumulative buckets worklog hours into local weeks and returns the
// running total per week.
func WeeklyCumulative(entries []jira.WorklogEntry, loc *time.Location) map[stats.Date]float64 {
	seconds := make(map[stats.Date]int64)
	for _, e := range entries {
		if e.DurationSeconds <= 0 {
			continue
		}
		seconds[stats.LocalDate(e.Started, loc).WeekStart()] += e.DurationSeconds
	}

	weeks := make([]stats.Date, 0, len(seconds))
	for w := range seconds {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	out := make(map[stats.Date]float64, len(weeks))
	var running int64
	for _, w := range weeks {
		running += seconds[w]
		out[w] = stats.Hours(running)
	}
	return out
}

// ProjectCompletion extrapolates from the last actual point at a constant
// weekly burn and returns the week the remaining hours reach zero. It returns
// nil when there is no actual data or nothing is being burned.
func ProjectCompletion(points []BurnDownPoint, weeklyBurn float64) *string {
	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		if p.ActualRemaining == nil {
			continue
		}
		week, err := stats.ParseDate(p.WeekStart)
		if err != nil {
			return nil
		}
		remaining := *p.ActualRemaining
		if remaining > 0 && weeklyBurn <= 0 {
			return nil
		}
		weeks := 0
		if remaining > 0 {
			weeks = int(math.Ceil(remaining / weeklyBurn))
		}
		s := week.AddDays(7 * weeks).String()
		return &s
	}
	return nil
}
