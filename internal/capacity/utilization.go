package capacity

import (
	"sort"

	"pulse-mcp/internal/stats"
)

// Status classifies a person's utilization.
type Status string

const (
	StatusOverloaded  Status = "overloaded"
	StatusAtRisk      Status = "at-risk"
	StatusUnderloaded Status = "underloaded"
	StatusOptimal     Status = "optimal"
)

// Thresholds are percentages of the allocation target. Available hours are
// already scaled by the weighted allocation, so the target is 100.
const (
	OverloadedAbove  = 110.0
	AtRiskAbove      = 100.0
	UnderloadedBelow = 50.0
)

var severity = map[Status]int{
	StatusOverloaded:  0,
	StatusAtRisk:      1,
	StatusUnderloaded: 2,
	StatusOptimal:     3,
}

// Utilization is one row of the team utilization view.
type Utilization struct {
	PersonID           string  `json:"personId"`
	DisplayName        string  `json:"displayName"`
	ActualHours        float64 `json:"actualHours"`
	AvailableHours     float64 `json:"availableHours"`
	WeightedPercent    float64 `json:"weightedPercent"`
	UtilizationPercent float64 `json:"utilizationPercent"`
	Status             Status  `json:"status"`
	Note               string  `json:"note,omitempty"`
}

// Classify computes utilization as actual/available×100 (0 when nothing is
// available) and evaluates the rules in order: overloaded, underloaded (only
// with a non-zero allocation target), at-risk, optimal.
func Classify(actualHours, availableHours, weightedPercent float64) (float64, Status) {
	utilization := stats.Percent(actualHours, availableHours)

	switch {
	case utilization > OverloadedAbove:
		return utilization, StatusOverloaded
	case utilization < UnderloadedBelow && weightedPercent > 0:
		return utilization, StatusUnderloaded
	case utilization > AtRiskAbove:
		return utilization, StatusAtRisk
	default:
		return utilization, StatusOptimal
	}
}

// Actual is the hours a person logged in the window.
type Actual struct {
	PersonID    string
	DisplayName string
	Hours       float64
}

// BuildTeamUtilization joins allocations and logged hours per person. People
// with hours but no allocation are included with a zero target. Rows are
// ordered by severity, then name.
func BuildTeamUtilization(records []AllocationRecord, actuals []Actual, w stats.Window, hoursPerDay float64) []Utilization {
	rows := make(map[string]*Utilization)
	available := make(map[string]float64)
	weighted := make(map[string]float64)

	for _, wa := range ReconcileTeam(records, w, hoursPerDay) {
		rows[wa.PersonID] = &Utilization{
			PersonID:        wa.PersonID,
			DisplayName:     wa.DisplayName,
			AvailableHours:  wa.AvailableHours,
			WeightedPercent: wa.WeightedPercent,
		}
		available[wa.PersonID] = wa.hours
		weighted[wa.PersonID] = wa.weighted
	}

	actualHours := make(map[string]float64)
	for _, a := range actuals {
		actualHours[a.PersonID] += a.Hours
		row, ok := rows[a.PersonID]
		if !ok {
			row = &Utilization{PersonID: a.PersonID, DisplayName: a.DisplayName}
			rows[a.PersonID] = row
		}
		if row.DisplayName == "" {
			row.DisplayName = a.DisplayName
		}
	}

	out := make([]Utilization, 0, len(rows))
	for id, row := range rows {
		hours := actualHours[id]
		util, status := Classify(hours, available[id], weighted[id])
		row.ActualHours = stats.Round1(hours)
		row.UtilizationPercent = stats.Round2(util)
		row.Status = status
		switch {
		case weighted[id] == 0 && hours > 0:
			row.Note = "hours logged without an allocation"
		case weighted[id] > 0 && available[id] == 0:
			row.Note = "allocation covers no working days in the window"
		}
		out = append(out, *row)
	}

	sort.Slice(out, func(i, j int) bool {
		if severity[out[i].Status] != severity[out[j].Status] {
			return severity[out[i].Status] < severity[out[j].Status]
		}
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}
