package insights

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"pulse-mcp/internal/report"
	"pulse-mcp/internal/stats"
)

// Alert is a ranked finding about project health.
type Alert struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// Recommendation is a ranked, concrete remediation.
type Recommendation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	Priority int    `json:"priority"`
}

// Facts is everything the rule tables look at.
type Facts struct {
	Schedule ScheduleInsight
	Budget   BudgetInsight
	Epics    []report.EpicSummary
}

// HoursPerPersonMonth converts an effort gap to person-months.
const HoursPerPersonMonth = 160.0

// maxListedKeys caps the epic keys quoted in a message.
const maxListedKeys = 5

func (f Facts) normalSchedule() bool {
	return f.Schedule.DatesSet && f.Schedule.Status != ScheduleOvertime
}

func (f Facts) overdueEpics() []string {
	var keys []string
	for _, e := range f.Epics {
		if e.Overdue {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func (f Facts) overEstimateEpics() []report.EpicSummary {
	var out []report.EpicSummary
	for _, e := range f.Epics {
		if e.OverEstimate {
			out = append(out, e)
		}
	}
	return out
}

// capacityGap is the effort needed to close the schedule variance, in hours.
func (f Facts) capacityGap() float64 {
	base := f.Budget.BudgetHours
	if base == 0 {
		base = f.Budget.SpentHours
	}
	return math.Abs(f.Schedule.Variance) / 100 * base
}

// burnTarget is the weekly burn that lands on budget, and how much the
// current burn exceeds it.
func (f Facts) burnTarget() (target, reduction float64) {
	if f.Budget.WeeksRemaining <= 0 {
		return 0, 0
	}
	target = math.Max(0, f.Budget.RemainingHours) / f.Budget.WeeksRemaining
	return target, f.Budget.WeeklyBurnRate - target
}

func (f Facts) scopeCut() float64 {
	if f.Schedule.PercentTimeElapsed <= 0 {
		return 0
	}
	achievable := math.Min(100, f.Schedule.PercentComplete/f.Schedule.PercentTimeElapsed*100)
	return stats.Round1(100 - achievable)
}

func (f Facts) slipDays() (int, stats.Date) {
	end, err := stats.ParseDate(f.Schedule.EndDate)
	if err != nil {
		return 0, stats.Date{}
	}
	projected, err := stats.ParseDate(f.Schedule.ProjectedEndDate)
	if err != nil {
		return 0, stats.Date{}
	}
	return end.DaysUntil(projected), projected
}

func listKeys(keys []string) string {
	if len(keys) <= maxListedKeys {
		return strings.Join(keys, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(keys[:maxListedKeys], ", "), len(keys)-maxListedKeys)
}

type alertRule struct {
	Type     string
	Priority int
	When     func(Facts) bool
	Message  func(Facts) string
}

var alertRules = []alertRule{
	{
		Type: "schedule-overtime", Priority: 100,
		When: func(f Facts) bool { return f.Schedule.Status == ScheduleOvertime },
		Message: func(f Facts) string {
			return fmt.Sprintf("Project is %d days past its end date at %.0f%% complete", -f.Schedule.DaysAheadBehind, f.Schedule.PercentComplete)
		},
	},
	{
		Type: "budget-exceeded", Priority: 95,
		When: func(f Facts) bool { return f.Budget.Status == BudgetOverBudget },
		Message: func(f Facts) string {
			return fmt.Sprintf("Budget exceeded: %.1f of %.1f hours spent (%.0f%%)", f.Budget.SpentHours, f.Budget.BudgetHours, f.Budget.PercentSpent)
		},
	},
	{
		Type: "schedule-critical", Priority: 90,
		When: func(f Facts) bool { return f.normalSchedule() && f.Schedule.Variance < -25 },
		Message: func(f Facts) string {
			return fmt.Sprintf("Schedule critically behind: %.1f%% complete with %.1f%% of time elapsed (%d days)",
				f.Schedule.PercentComplete, f.Schedule.PercentTimeElapsed, -f.Schedule.DaysAheadBehind)
		},
	},
	{
		Type: "runway-short", Priority: 85,
		When: func(f Facts) bool {
			b := f.Budget
			return b.WeeklyBurnRate > 0 && b.WeeksRemaining > 0 && b.WeeksOfRunway < b.WeeksRemaining
		},
		Message: func(f Facts) string {
			b := f.Budget
			return fmt.Sprintf("Budget runs out in %.1f weeks, %.1f weeks before the end date", b.WeeksOfRunway, stats.Round1(b.WeeksRemaining-b.WeeksOfRunway))
		},
	},
	{
		Type: "schedule-behind", Priority: 70,
		When: func(f Facts) bool { return f.Schedule.Status == ScheduleBehind && f.Schedule.Variance >= -25 },
		Message: func(f Facts) string {
			return fmt.Sprintf("Behind schedule by %d days (variance %.1f%%)", -f.Schedule.DaysAheadBehind, f.Schedule.Variance)
		},
	},
	{
		Type: "budget-at-risk", Priority: 60,
		When: func(f Facts) bool { return f.Budget.Status == BudgetAtRisk },
		Message: func(f Facts) string {
			return fmt.Sprintf("Spend is ahead of time: %.1f%% spent with %.1f%% of time elapsed", f.Budget.PercentSpent, f.Budget.PercentTimeElapsed)
		},
	},
	{
		Type: "epics-overdue", Priority: 55,
		When: func(f Facts) bool { return len(f.overdueEpics()) > 0 },
		Message: func(f Facts) string {
			keys := f.overdueEpics()
			return fmt.Sprintf("%d epics past their due date: %s", len(keys), listKeys(keys))
		},
	},
	{
		Type: "epics-over-estimate", Priority: 50,
		When: func(f Facts) bool { return len(f.overEstimateEpics()) > 0 },
		Message: func(f Facts) string {
			over := f.overEstimateEpics()
			keys := make([]string, len(over))
			for i, e := range over {
				keys[i] = e.Key
			}
			return fmt.Sprintf("%d epics have spent more than their estimate: %s", len(over), listKeys(keys))
		},
	},
	{
		Type: "schedule-ahead", Priority: 30,
		When: func(f Facts) bool { return f.Schedule.Status == ScheduleAhead },
		Message: func(f Facts) string {
			return fmt.Sprintf("Ahead of schedule by %d days", f.Schedule.DaysAheadBehind)
		},
	},
	{
		Type: "project-healthy", Priority: 25,
		When: func(f Facts) bool {
			s := f.Schedule.Status
			return (s == ScheduleOnTrack || s == ScheduleAhead) && f.Schedule.DatesSet &&
				f.Budget.Status == BudgetHealthy && f.Budget.BudgetHours > 0
		},
		Message: func(f Facts) string {
			return fmt.Sprintf("Project is healthy: %.1f%% complete, %.1f%% of budget spent", f.Schedule.PercentComplete, f.Budget.PercentSpent)
		},
	},
}

type recommendationRule struct {
	Type     string
	Priority int
	When     func(Facts) bool
	Build    func(Facts) (message, action string)
	// Fallback rules fire only when no other rule did.
	Fallback bool
}

var recommendationRules = []recommendationRule{
	{
		Type: "rebaseline-budget", Priority: 95,
		When: func(f Facts) bool { return f.Budget.Status == BudgetOverBudget },
		Build: func(f Facts) (string, string) {
			overrun := f.Budget.SpentHours - f.Budget.BudgetHours
			return fmt.Sprintf("Spend is %.1f hours over the approved budget", overrun),
				fmt.Sprintf("Approve an additional %.2f hours or re-baseline the budget", stats.Round2(overrun*1.1))
		},
	},
	{
		Type: "add-capacity", Priority: 90,
		When: func(f Facts) bool {
			late := f.Schedule.Status == ScheduleOvertime || (f.normalSchedule() && f.Schedule.Variance < BehindBelow)
			return late && f.capacityGap() > 0
		},
		Build: func(f Facts) (string, string) {
			gap := f.capacityGap()
			return fmt.Sprintf("Schedule variance of %.1f%% needs more effort to recover", f.Schedule.Variance),
				fmt.Sprintf("Add %.1f person-months of effort (%.1f hours)", stats.Round1(gap/HoursPerPersonMonth), stats.Round1(gap))
		},
	},
	{
		Type: "reduce-burn", Priority: 85,
		When: func(f Facts) bool {
			if f.Budget.Status != BudgetAtRisk && f.Budget.Status != BudgetOverBudget {
				return false
			}
			_, reduction := f.burnTarget()
			return stats.Round2(reduction) > 0
		},
		Build: func(f Facts) (string, string) {
			target, reduction := f.burnTarget()
			return fmt.Sprintf("Weekly burn of %.2f hours will not fit the remaining budget", f.Budget.WeeklyBurnRate),
				fmt.Sprintf("Reduce weekly burn by %.2f hours (target %.2f h/week)", stats.Round2(reduction), stats.Round2(target))
		},
	},
	{
		Type: "reduce-scope", Priority: 80,
		When: func(f Facts) bool {
			return f.Schedule.Status == ScheduleBehind && f.normalSchedule() &&
				f.Schedule.PercentTimeElapsed >= 50 && f.scopeCut() > 0
		},
		Build: func(f Facts) (string, string) {
			return fmt.Sprintf("At the current pace the project reaches %.1f%% of scope by the end date", 100-f.scopeCut()),
				fmt.Sprintf("Cut %.1f%% of total scope to land on the end date", f.scopeCut())
		},
	},
	{
		Type: "extend-deadline", Priority: 70,
		When: func(f Facts) bool {
			slip, _ := f.slipDays()
			return slip > 0
		},
		Build: func(f Facts) (string, string) {
			slip, projected := f.slipDays()
			return fmt.Sprintf("Projected to finish %d days after the end date", slip),
				fmt.Sprintf("Move the end date by %d days to %s", slip, projected)
		},
	},
	{
		Type: "review-epics", Priority: 55,
		When: func(f Facts) bool { return len(f.overEstimateEpics()) > 0 },
		Build: func(f Facts) (string, string) {
			over := f.overEstimateEpics()
			sort.SliceStable(over, func(i, j int) bool {
				return over[i].SpentHours-over[i].EstimateHours > over[j].SpentHours-over[j].EstimateHours
			})
			worst := over[0]
			return fmt.Sprintf("%d epics are over their estimate", len(over)),
				fmt.Sprintf("%s: %.1f h vs %.1f h estimate", worst.Key, worst.SpentHours, worst.EstimateHours)
		},
	},
	{
		Type: "unblock-epics", Priority: 50,
		When: func(f Facts) bool { return len(f.overdueEpics()) > 0 },
		Build: func(f Facts) (string, string) {
			keys := f.overdueEpics()
			return fmt.Sprintf("Overdue epics: %s", listKeys(keys)),
				fmt.Sprintf("Re-plan %d overdue epics", len(keys))
		},
	},
	{
		Type: "pull-scope-forward", Priority: 30,
		When: func(f Facts) bool {
			return f.Schedule.Status == ScheduleAhead && f.Budget.Status == BudgetHealthy &&
				stats.Round1(float64(f.Schedule.DaysAheadBehind)/7) > 0
		},
		Build: func(f Facts) (string, string) {
			weeks := stats.Round1(float64(f.Schedule.DaysAheadBehind) / 7)
			return fmt.Sprintf("Project is %d days ahead with budget to spare", f.Schedule.DaysAheadBehind),
				fmt.Sprintf("Pull %.1f weeks of scope forward", weeks)
		},
	},
	{
		Type: "maintain-course", Priority: 25, Fallback: true,
		When: func(Facts) bool { return true },
		Build: func(Facts) (string, string) {
			return "No corrective action needed", "Keep the current plan; review again next week"
		},
	},
}

// Alerts evaluates the alert table in order and returns one alert per fired
// rule, highest priority first.
func Alerts(f Facts) []Alert {
	out := []Alert{}
	seen := make(map[string]bool)
	for _, r := range alertRules {
		if seen[r.Type] || !r.When(f) {
			continue
		}
		seen[r.Type] = true
		out = append(out, Alert{Type: r.Type, Message: r.Message(f), Priority: r.Priority})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Recommendations evaluates the recommendation table in order and returns one
// item per fired rule, highest priority first.
func Recommendations(f Facts) []Recommendation {
	out := []Recommendation{}
	seen := make(map[string]bool)
	for _, r := range recommendationRules {
		if seen[r.Type] || (r.Fallback && len(out) > 0) || !r.When(f) {
			continue
		}
		seen[r.Type] = true
		msg, action := r.Build(f)
		out = append(out, Recommendation{Type: r.Type, Message: msg, Action: action, Priority: r.Priority})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
