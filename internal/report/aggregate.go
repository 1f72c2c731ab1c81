package report

import (
	"time"

	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"
)

// Aggregation holds worklog seconds binned by item, author and local day.
// Values stay in seconds; conversion to rounded hours happens only when a
// report is produced.
type Aggregation struct {
	Window   stats.Window
	Location *time.Location

	ByItem   map[string]map[string]int64 // issue key -> author id -> seconds
	ByAuthor map[string]int64
	ByDay    map[stats.Date]int64
	Authors  map[string]jira.Person
	Total    int64

	Included  int
	Discarded int
}

// Aggregate bins entries whose local start date falls inside window. The
// comparison is made on calendar dates in loc, never on UTC instants.
func Aggregate(entries []jira.WorklogEntry, window stats.Window, loc *time.Location) *Aggregation {
	if loc == nil {
		loc = time.UTC
	}
	agg := &Aggregation{
		Window:   window,
		Location: loc,
		ByItem:   make(map[string]map[string]int64),
		ByAuthor: make(map[string]int64),
		ByDay:    make(map[stats.Date]int64),
		Authors:  make(map[string]jira.Person),
	}

	for _, e := range entries {
		day := stats.LocalDate(e.Started, loc)
		if !window.Contains(day) || e.DurationSeconds <= 0 {
			agg.Discarded++
			continue
		}
		agg.Included++

		author := e.Author.ID()
		if _, ok := agg.Authors[author]; !ok {
			agg.Authors[author] = e.Author
		}
		perAuthor := agg.ByItem[e.IssueKey]
		if perAuthor == nil {
			perAuthor = make(map[string]int64)
			agg.ByItem[e.IssueKey] = perAuthor
		}
		perAuthor[author] += e.DurationSeconds
		agg.ByAuthor[author] += e.DurationSeconds
		agg.ByDay[day] += e.DurationSeconds
		agg.Total += e.DurationSeconds
	}
	return agg
}

// ItemSeconds returns the seconds logged on key across all authors.
func (a *Aggregation) ItemSeconds(key string) int64 {
	var sum int64
	for _, s := range a.ByItem[key] {
		sum += s
	}
	return sum
}

// AuthorHours returns per-person hours, unrounded, keyed by author id.
func (a *Aggregation) AuthorHours() map[string]float64 {
	out := make(map[string]float64, len(a.ByAuthor))
	for id, s := range a.ByAuthor {
		out[id] = stats.Hours(s)
	}
	return out
}
