package report

import (
	"sort"
	"strings"

	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"
)

// EpicSummary rolls the descendants of one epic up into progress and effort
// figures.
type EpicSummary struct {
	Key             string  `json:"key"`
	Summary         string  `json:"summary"`
	Status          string  `json:"status"`
	DueDate         string  `json:"dueDate,omitempty"`
	Total           int     `json:"total"`
	Done            int     `json:"done"`
	PercentComplete float64 `json:"percentComplete"`
	EstimateHours   float64 `json:"estimateHours"`
	SpentHours      float64 `json:"spentHours"`
	Overdue         bool    `json:"overdue"`
	OverEstimate    bool    `json:"overEstimate"`
}

// IsEpic reports whether the item type is Epic, case-insensitively.
func IsEpic(item jira.WorkItem) bool {
	return strings.EqualFold(item.Type, "epic")
}

type epicAcc struct {
	total, done     int
	estimateSeconds int64
	spentSeconds    int64
}

// SummarizeEpics attributes every non-epic item to its nearest epic ancestor
// and aggregates counts, estimates and hours spent (agg may be nil).
func SummarizeEpics(tree *Tree, agg *Aggregation, today stats.Date) []EpicSummary {
	accs := make(map[string]*epicAcc)
	for _, k := range tree.Keys() {
		n, _ := tree.Get(k)
		if IsEpic(n.Item) {
			accs[k] = &epicAcc{}
		}
	}
	if len(accs) == 0 {
		return []EpicSummary{}
	}

	for _, k := range tree.Keys() {
		n, _ := tree.Get(k)
		if IsEpic(n.Item) {
			if agg != nil {
				accs[k].spentSeconds += agg.ItemSeconds(k)
			}
			continue
		}
		epic := nearestEpic(tree, k)
		if epic == "" {
			continue
		}
		acc := accs[epic]
		acc.total++
		if n.Item.IsDone() {
			acc.done++
		}
		if n.Item.OriginalEstimateSeconds != nil {
			acc.estimateSeconds += *n.Item.OriginalEstimateSeconds
		}
		if agg != nil {
			acc.spentSeconds += agg.ItemSeconds(k)
		}
	}

	out := make([]EpicSummary, 0, len(accs))
	for key, acc := range accs {
		n, _ := tree.Get(key)
		epic := n.Item
		s := EpicSummary{
			Key:           key,
			Summary:       epic.Summary,
			Status:        epic.Status.Name,
			Total:         acc.total,
			Done:          acc.done,
			EstimateHours: stats.Round1(stats.Hours(acc.estimateSeconds)),
			SpentHours:    stats.Round1(stats.Hours(acc.spentSeconds)),
		}
		if epic.OriginalEstimateSeconds != nil && acc.estimateSeconds == 0 {
			s.EstimateHours = stats.Round1(stats.Hours(*epic.OriginalEstimateSeconds))
		}
		switch {
		case acc.total > 0:
			s.PercentComplete = stats.Round2(stats.Percent(float64(acc.done), float64(acc.total)))
		case epic.IsDone():
			s.PercentComplete = 100
		}
		if epic.DueDate != nil {
			s.DueDate = epic.DueDate.String()
			s.Overdue = epic.DueDate.Before(today) && !epic.IsDone()
		}
		s.OverEstimate = s.EstimateHours > 0 && s.SpentHours > s.EstimateHours
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// nearestEpic walks the parent chain of key and returns the first epic found.
func nearestEpic(tree *Tree, key string) string {
	visited := map[string]bool{key: true}
	n, _ := tree.Get(key)
	for p := n.Item.ParentKey; p != "" && !visited[p]; {
		visited[p] = true
		pn, ok := tree.Get(p)
		if !ok {
			return ""
		}
		if IsEpic(pn.Item) {
			return p
		}
		p = pn.Item.ParentKey
	}
	return ""
}
