package report

import (
	"sort"
	"strings"

	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"
)

// AssigneeHours is the time one person logged on one issue.
type AssigneeHours struct {
	AccountID   string  `json:"accountId"`
	DisplayName string  `json:"displayName"`
	Hours       float64 `json:"hours"`
}

// ParentRef points at the parent of a promoted (top-level) issue.
type ParentRef struct {
	Key     string `json:"key"`
	Summary string `json:"summary,omitempty"`
	Type    string `json:"type,omitempty"`
}

// ReportIssue is one node of the worklog report. TotalHours is OwnHours plus
// the TotalHours of every attached child.
type ReportIssue struct {
	Key        string          `json:"key"`
	Summary    string          `json:"summary"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	OwnHours   float64         `json:"ownHours"`
	TotalHours float64         `json:"totalHours"`
	Assignees  []AssigneeHours `json:"assignees"`
	Parent     *ParentRef      `json:"parent,omitempty"`
	Children   []ReportIssue   `json:"children,omitempty"`
}

// AuthorHours is the total logged by one person in the window.
type AuthorHours struct {
	AccountID   string  `json:"accountId"`
	DisplayName string  `json:"displayName"`
	Hours       float64 `json:"hours"`
}

// DayHours is the total logged on one local calendar day.
type DayHours struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

// WorklogReport is the composed, nested report for a date window.
type WorklogReport struct {
	Start      string          `json:"start"`
	End        string          `json:"end"`
	TimeZone   string          `json:"timeZone"`
	TotalHours float64         `json:"totalHours"`
	Issues     []ReportIssue   `json:"issues"`
	Authors    []AuthorHours   `json:"authors"`
	Days       []DayHours      `json:"days"`
	Activity   []ActivityEntry `json:"activity,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

type composer struct {
	tree      *Tree
	agg       *Aggregation
	children  map[string][]string
	processed map[string]bool
}

// Compose nests every item with hours in the window under its nearest
// qualifying parent. Items whose parent is missing, is a stub, or has no
// hours are promoted to top level. Each item is emitted exactly once: the
// first resolution wins and cycles are broken by the processed set.
func Compose(tree *Tree, agg *Aggregation) WorklogReport {
	c := &composer{
		tree:      tree,
		agg:       agg,
		children:  make(map[string][]string),
		processed: make(map[string]bool),
	}

	qualifying := c.qualifyingKeys()
	isQualifying := make(map[string]bool, len(qualifying))
	for _, k := range qualifying {
		isQualifying[k] = true
	}

	var topLevel []string
	for _, k := range qualifying {
		p := c.item(k).ParentKey
		if p != "" && p != k && isQualifying[p] {
			c.children[p] = append(c.children[p], k)
		} else {
			topLevel = append(topLevel, k)
		}
	}

	var roots []built
	for _, k := range topLevel {
		if c.processed[k] {
			continue
		}
		node := c.build(k)
		node.issue.Parent = c.parentRef(k)
		roots = append(roots, node)
	}
	// Whatever is left sits on a parent cycle with no way out. Emit each
	// cycle from its lowest key.
	for _, k := range qualifying {
		if !c.processed[k] {
			node := c.build(k)
			node.issue.Parent = c.parentRef(k)
			roots = append(roots, node)
		}
	}
	sortBuilt(roots)

	rep := WorklogReport{
		Start:      agg.Window.Start.String(),
		End:        agg.Window.End.String(),
		TimeZone:   agg.Location.String(),
		TotalHours: stats.Round1(stats.Hours(agg.Total)),
		Issues:     unwrap(roots),
		Authors:    c.authors(),
		Days:       c.days(),
	}
	if rep.Issues == nil {
		rep.Issues = []ReportIssue{}
	}
	return rep
}

// qualifyingKeys returns keys with hours in the window, sorted. Keys with
// worklogs that are absent from the tree still qualify as bare nodes.
func (c *composer) qualifyingKeys() []string {
	var keys []string
	for k := range c.agg.ByItem {
		if c.agg.ItemSeconds(k) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (c *composer) item(key string) jira.WorkItem {
	if n, ok := c.tree.Get(key); ok {
		return n.Item
	}
	return jira.WorkItem{Key: key}
}

func (c *composer) parentRef(key string) *ParentRef {
	p := c.item(key).ParentKey
	if p == "" || p == key {
		return nil
	}
	ref := &ParentRef{Key: p}
	if n, ok := c.tree.Get(p); ok {
		ref.Summary = n.Item.Summary
		ref.Type = n.Item.Type
	}
	return ref
}

type built struct {
	issue        ReportIssue
	totalSeconds int64
}

func (c *composer) build(key string) built {
	c.processed[key] = true
	it := c.item(key)
	own := c.agg.ItemSeconds(key)
	total := own
	ownHours := stats.Round1(stats.Hours(own))
	// Totals add the rounded figures that are shown, so a node always equals
	// its own hours plus its children's totals.
	totalHours := ownHours

	var kids []built
	for _, ck := range c.children[key] {
		if c.processed[ck] {
			continue
		}
		child := c.build(ck)
		total += child.totalSeconds
		totalHours += child.issue.TotalHours
		kids = append(kids, child)
	}
	sortBuilt(kids)

	return built{
		issue: ReportIssue{
			Key:        it.Key,
			Summary:    it.Summary,
			Type:       it.Type,
			Status:     it.Status.Name,
			OwnHours:   ownHours,
			TotalHours: stats.Round1(totalHours),
			Assignees:  c.assignees(key),
			Children:   unwrap(kids),
		},
		totalSeconds: total,
	}
}

func (c *composer) assignees(key string) []AssigneeHours {
	var out []AssigneeHours
	secs := c.agg.ByItem[key]
	for id, s := range secs {
		p := c.agg.Authors[id]
		out = append(out, AssigneeHours{AccountID: id, DisplayName: p.DisplayName, Hours: stats.Round1(stats.Hours(s))})
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := secs[out[i].AccountID], secs[out[j].AccountID]
		if si != sj {
			return si > sj
		}
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out
}

func (c *composer) authors() []AuthorHours {
	out := make([]AuthorHours, 0, len(c.agg.ByAuthor))
	for id, s := range c.agg.ByAuthor {
		out = append(out, AuthorHours{AccountID: id, DisplayName: c.agg.Authors[id].DisplayName, Hours: stats.Round1(stats.Hours(s))})
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := c.agg.ByAuthor[out[i].AccountID], c.agg.ByAuthor[out[j].AccountID]
		if si != sj {
			return si > sj
		}
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out
}

func (c *composer) days() []DayHours {
	days := c.agg.Window.Days()
	out := make([]DayHours, 0, len(days))
	for _, d := range days {
		out = append(out, DayHours{Date: d.String(), Hours: stats.Round1(stats.Hours(c.agg.ByDay[d]))})
	}
	return out
}

// sortBuilt orders siblings by total time descending, then key ascending.
func sortBuilt(nodes []built) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].totalSeconds != nodes[j].totalSeconds {
			return nodes[i].totalSeconds > nodes[j].totalSeconds
		}
		return nodes[i].issue.Key < nodes[j].issue.Key
	})
}

func unwrap(nodes []built) []ReportIssue {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]ReportIssue, len(nodes))
	for i, n := range nodes {
		out[i] = n.issue
	}
	return out
}
