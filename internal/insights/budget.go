package insights

import (
	"fmt"
	"math"

	"pulse-mcp/internal/stats"
)

// BudgetStatus is the budget classification of a project.
type BudgetStatus string

const (
	BudgetHealthy    BudgetStatus = "healthy"
	BudgetAtRisk     BudgetStatus = "at-risk"
	BudgetOverBudget BudgetStatus = "over-budget"
)

const (
	// AtRiskVariance is how far spend may run ahead of elapsed time before
	// the budget is at risk.
	AtRiskVariance = 5.0

	// RunwayUnbounded stands in for an infinite runway when nothing is being
	// burned.
	RunwayUnbounded = 9999.0
)

// BudgetInput carries the overview fields the budget depends on.
type BudgetInput struct {
	BudgetHours float64
	SpentHours  float64
	StartDate   string
	EndDate     string
}

// BudgetInsight compares spend against elapsed time and projects the runway.
type BudgetInsight struct {
	Status             BudgetStatus `json:"status"`
	BudgetHours        float64      `json:"budgetHours"`
	SpentHours         float64      `json:"spentHours"`
	PercentSpent       float64      `json:"percentSpent"`
	PercentTimeElapsed float64      `json:"percentTimeElapsed"`
	Variance           float64      `json:"variance"`
	RemainingHours     float64      `json:"remainingHours"`
	WeeklyBurnRate     float64      `json:"weeklyBurnRate"`
	WeeksOfRunway      float64      `json:"weeksOfRunway"`
	WeeksRemaining     float64      `json:"weeksRemaining"`
	Message            string       `json:"message"`
}

// Budget computes spend, burn rate and runway. A zero budget is healthy and
// neutral; invalid dates count as no time elapsed.
func (c *Calculator) Budget(in BudgetInput) BudgetInsight {
	budget := math.Max(0, stats.Finite(in.BudgetHours))
	spent := math.Max(0, stats.Finite(in.SpentHours))
	today := c.Today()

	var elapsed, weeksElapsed, weeksRemaining float64
	if sp, ok := parseSpan(in.StartDate, in.EndDate); ok {
		elapsed = sp.elapsedPercent(today)
		weeksElapsed = math.Max(0, float64(sp.start.DaysUntil(stats.MinDate(today, sp.end)))/7)
		weeksRemaining = math.Max(0, float64(today.DaysUntil(sp.end))/7)
	}
	burn := stats.SafeDiv(spent, weeksElapsed)

	out := BudgetInsight{
		BudgetHours:        stats.Round1(budget),
		SpentHours:         stats.Round1(spent),
		PercentTimeElapsed: stats.Round2(elapsed),
		WeeklyBurnRate:     stats.Round2(burn),
		WeeksRemaining:     stats.Round1(weeksRemaining),
		WeeksOfRunway:      RunwayUnbounded,
	}

	if budget == 0 {
		out.Status = BudgetHealthy
		out.Message = "No budget set; set budget hours to track spend."
		return out
	}

	percentSpent := stats.Percent(spent, budget)
	variance := percentSpent - elapsed
	remaining := budget - spent
	out.PercentSpent = stats.Round2(percentSpent)
	out.Variance = stats.Round2(variance)
	out.RemainingHours = stats.Round1(remaining)
	if burn > 0 {
		out.WeeksOfRunway = stats.Round1(math.Min(RunwayUnbounded, math.Max(0, remaining)/burn))
	}

	switch {
	case percentSpent > 100:
		out.Status = BudgetOverBudget
		out.Message = fmt.Sprintf("Budget exceeded: %.1f of %.1f hours spent (%.0f%%).", spent, budget, percentSpent)
	case variance > AtRiskVariance:
		out.Status = BudgetAtRisk
		out.Message = fmt.Sprintf("Spend is running ahead of time: %.1f%% spent with %.1f%% of time elapsed.", percentSpent, elapsed)
	default:
		out.Status = BudgetHealthy
		out.Message = fmt.Sprintf("Budget healthy: %.1f%% spent with %.1f%% of time elapsed.", percentSpent, elapsed)
	}
	return out
}
