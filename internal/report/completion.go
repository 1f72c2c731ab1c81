package report

import (
	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"
)

// Completion returns the percent of items in a done-category status. When
// every item carries an original estimate the percentage is weighted by
// estimate, otherwise each item counts once. Epics are excluded because
// their progress is the progress of their children.
func Completion(items []jira.WorkItem) float64 {
	var total, done float64
	var estTotal, estDone int64
	allEstimated := true

	for _, it := range items {
		if IsEpic(it) {
			continue
		}
		total++
		if it.IsDone() {
			done++
		}
		if it.OriginalEstimateSeconds == nil || *it.OriginalEstimateSeconds <= 0 {
			allEstimated = false
			continue
		}
		estTotal += *it.OriginalEstimateSeconds
		if it.IsDone() {
			estDone += *it.OriginalEstimateSeconds
		}
	}

	if total == 0 {
		return 0
	}
	if allEstimated {
		return stats.Round2(stats.Percent(float64(estDone), float64(estTotal)))
	}
	return stats.Round2(stats.Percent(done, total))
}
