package report

import (
	"context"
	"math"
	"testing"
	"time"

	"pulse-mcp/internal/jira"
)

var monday = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func compose(t *testing.T, items []jira.WorkItem, entries []jira.WorklogEntry) WorklogReport {
	t.Helper()
	return Compose(NewTree(items), Aggregate(entries, window(t, "2024-03-04", "2024-03-08"), time.UTC))
}

func find(issues []ReportIssue, key string) *ReportIssue {
	for i := range issues {
		if issues[i].Key == key {
			return &issues[i]
		}
		if found := find(issues[i].Children, key); found != nil {
			return found
		}
	}
	return nil
}

func count(issues []ReportIssue) int {
	n := len(issues)
	for _, is := range issues {
		n += count(is.Children)
	}
	return n
}

func checkTotals(t *testing.T, issues []ReportIssue) {
	t.Helper()
	for _, is := range issues {
		sum := is.OwnHours
		for _, c := range is.Children {
			sum += c.TotalHours
		}
		if math.Abs(is.TotalHours-sum) > 0.1+1e-9 {
			t.Errorf("%s: TotalHours %v != own + children %v", is.Key, is.TotalHours, sum)
		}
		checkTotals(t, is.Children)
	}
}

func TestCompose_NestsAndRollsUp(t *testing.T) {
	items := []jira.WorkItem{
		{Key: "P-1", Summary: "Epic", Type: "Epic"},
		item("P-2", "P-1"),
		item("P-3", "P-2"),
		item("P-4", "P-1"),
	}
	entries := []jira.WorklogEntry{
		entry("P-1", ann, monday, 3600),
		entry("P-2", ann, monday, 7200),
		entry("P-3", bob, monday, 1800),
		entry("P-3", ann, monday, 1800),
		entry("P-4", bob, monday, 900),
	}

	rep := compose(t, items, entries)

	if len(rep.Issues) != 1 || rep.Issues[0].Key != "P-1" {
		t.Fatalf("top level = %+v, want only P-1", rep.Issues)
	}
	root := rep.Issues[0]
	if root.OwnHours != 1 || root.TotalHours != 4.3 {
		t.Errorf("P-1 own=%v total=%v, want 1 and 4.3", root.OwnHours, root.TotalHours)
	}
	if root.Children[0].Key != "P-2" || root.Children[1].Key != "P-4" {
		t.Errorf("children not ordered by total hours: %v, %v", root.Children[0].Key, root.Children[1].Key)
	}
	p2 := find(rep.Issues, "P-2")
	if p2.TotalHours != 3 || len(p2.Children) != 1 {
		t.Errorf("P-2 total=%v children=%d, want 3 and 1", p2.TotalHours, len(p2.Children))
	}
	p3 := find(rep.Issues, "P-3")
	if len(p3.Assignees) != 2 || p3.Assignees[0].DisplayName != "Ann" {
		t.Errorf("equal-hour assignees should be ordered by name: %+v", p3.Assignees)
	}
	if root.Parent != nil {
		t.Errorf("root without parent should carry no parent ref")
	}
	checkTotals(t, rep.Issues)

	t.Run("ManySmallChildren", func(t *testing.T) {
		items := []jira.WorkItem{{Key: "P-1", Type: "Story"}}
		entries := []jira.WorklogEntry{entry("P-1", ann, monday, 1)}
		for _, k := range []string{"P-2", "P-3", "P-4", "P-5"} {
			items = append(items, item(k, "P-1"))
			entries = append(entries, entry(k, ann, monday, 540))
		}

		rep := compose(t, items, entries)

		if len(rep.Issues) != 1 || len(rep.Issues[0].Children) != 4 {
			t.Fatalf("top level = %+v, want P-1 with four children", rep.Issues)
		}
		root := rep.Issues[0]
		if root.Children[0].TotalHours != 0.2 || root.TotalHours != 0.8 {
			t.Errorf("child total=%v root total=%v, want 0.2 and 0.8", root.Children[0].TotalHours, root.TotalHours)
		}
		checkTotals(t, rep.Issues)
	})
}

func TestCompose_PromotesOrphans(t *testing.T) {
	items := []jira.WorkItem{
		{Key: "P-1", Summary: "Parent without hours", Type: "Story"},
		item("P-2", "P-1"),
		item("P-3", "P-99"), // parent never fetched
	}
	entries := []jira.WorklogEntry{
		entry("P-2", ann, monday, 3600),
		entry("P-3", ann, monday, 1800),
	}

	rep := compose(t, items, entries)

	if len(rep.Issues) != 2 {
		t.Fatalf("top level = %d issues, want 2", len(rep.Issues))
	}
	p2 := find(rep.Issues, "P-2")
	if p2.Parent == nil || p2.Parent.Key != "P-1" || p2.Parent.Summary != "Parent without hours" {
		t.Errorf("P-2 parent ref = %+v", p2.Parent)
	}
	p3 := find(rep.Issues, "P-3")
	if p3.Parent == nil || p3.Parent.Key != "P-99" || p3.Parent.Summary != "" {
		t.Errorf("P-3 parent ref = %+v", p3.Parent)
	}
	if find(rep.Issues, "P-1") != nil {
		t.Errorf("P-1 has no hours and must not appear")
	}
}

func TestCompose_StubParentsPromoteChildren(t *testing.T) {
	src := &fakeSource{items: map[string]jira.WorkItem{"P-10": {Key: "P-10", Summary: "Epic", Type: "Epic"}}}
	tree := TreeBuilder{Source: src}.Resolve(context.Background(), []jira.WorkItem{item("P-1", "P-10")})
	agg := Aggregate([]jira.WorklogEntry{entry("P-1", ann, monday, 3600)}, window(t, "2024-03-04", "2024-03-08"), time.UTC)

	rep := Compose(tree, agg)
	if len(rep.Issues) != 1 || rep.Issues[0].Parent == nil || rep.Issues[0].Parent.Type != "Epic" {
		t.Errorf("expected P-1 at top level referencing the stub epic, got %+v", rep.Issues)
	}
}

func TestCompose_CyclesEmitEachNodeOnce(t *testing.T) {
	items := []jira.WorkItem{item("P-1", "P-2"), item("P-2", "P-3"), item("P-3", "P-1")}
	entries := []jira.WorklogEntry{
		entry("P-1", ann, monday, 3600),
		entry("P-2", ann, monday, 3600),
		entry("P-3", ann, monday, 3600),
	}

	rep := compose(t, items, entries)

	if count(rep.Issues) != 3 {
		t.Fatalf("node count = %d, want 3", count(rep.Issues))
	}
	if len(rep.Issues) != 1 || rep.Issues[0].Key != "P-1" {
		t.Errorf("cycle should be emitted from lowest key, got %+v", rep.Issues)
	}
	if rep.Issues[0].TotalHours != 3 {
		t.Errorf("TotalHours = %v, want 3", rep.Issues[0].TotalHours)
	}
	if ref := rep.Issues[0].Parent; ref == nil || ref.Key != "P-2" {
		t.Errorf("cycle root parent ref = %+v, want P-2", ref)
	}
	checkTotals(t, rep.Issues)
}

func TestCompose_UnknownItemsStillReported(t *testing.T) {
	rep := compose(t, nil, []jira.WorklogEntry{entry("X-1", ann, monday, 3600)})
	if len(rep.Issues) != 1 || rep.Issues[0].Key != "X-1" {
		t.Errorf("expected bare node for X-1, got %+v", rep.Issues)
	}
}

func TestCompose_TopLevelOrderAndSummaries(t *testing.T) {
	items := []jira.WorkItem{item("P-1", ""), item("P-2", ""), item("P-3", "")}
	entries := []jira.WorklogEntry{
		entry("P-1", ann, monday, 1800),
		entry("P-2", bob, monday.Add(24*time.Hour), 3600),
		entry("P-3", ann, monday.Add(24*time.Hour), 1800),
	}

	rep := compose(t, items, entries)

	got := []string{rep.Issues[0].Key, rep.Issues[1].Key, rep.Issues[2].Key}
	if got[0] != "P-2" || got[1] != "P-1" || got[2] != "P-3" {
		t.Errorf("order = %v, want [P-2 P-1 P-3]", got)
	}
	if rep.TotalHours != 2 {
		t.Errorf("TotalHours = %v, want 2", rep.TotalHours)
	}
	if len(rep.Days) != 5 || rep.Days[0].Date != "2024-03-04" || rep.Days[1].Hours != 1.5 || rep.Days[4].Hours != 0 {
		t.Errorf("Days = %+v", rep.Days)
	}
	if len(rep.Authors) != 2 || rep.Authors[0].DisplayName != "Ann" || rep.Authors[0].Hours != 1 {
		t.Errorf("Authors = %+v", rep.Authors)
	}
}

func TestCompose_EmptyWindow(t *testing.T) {
	rep := compose(t, []jira.WorkItem{item("P-1", "")}, nil)
	if rep.Issues == nil || len(rep.Issues) != 0 {
		t.Errorf("Issues = %#v, want empty non-nil slice", rep.Issues)
	}
	if rep.TotalHours != 0 {
		t.Errorf("TotalHours = %v", rep.TotalHours)
	}
}
