package worklogstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pulse-mcp/internal/jira"
)

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func wl(id string, startedDays int, seconds int64, updated time.Time) jira.WorklogEntry {
	return jira.WorklogEntry{
		ID:              id,
		IssueKey:        "PAY-" + id,
		Author:          jira.Person{AccountID: "ann", DisplayName: "Ann"},
		Started:         base.AddDate(0, 0, startedDays),
		DurationSeconds: seconds,
		Updated:         updated,
	}
}

func TestStore_MergeDedupesAndOrders(t *testing.T) {
	s := NewStore()

	if n := s.Merge("PAY", []jira.WorklogEntry{wl("2", 1, 3600, base), wl("1", 0, 1800, base), wl("", 0, 60, base)}); n != 2 {
		t.Errorf("first merge changed %d, want 2 (entry without id ignored)", n)
	}
	if n := s.Merge("PAY", []jira.WorklogEntry{wl("1", 0, 1800, base)}); n != 0 {
		t.Errorf("re-merge changed %d, want 0", n)
	}
	if n := s.Merge("PAY", []jira.WorklogEntry{wl("1", 0, 7200, base.Add(time.Hour)), wl("2", 1, 60, base.Add(-time.Hour))}); n != 1 {
		t.Errorf("update merge changed %d, want 1 (only the newer edit wins)", n)
	}

	got := s.Entries("PAY")
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("entries = %+v", got)
	}
	if got[0].DurationSeconds != 7200 || got[1].DurationSeconds != 3600 {
		t.Errorf("durations = %d, %d", got[0].DurationSeconds, got[1].DurationSeconds)
	}
	if !s.LatestUpdate("PAY").Equal(base.Add(time.Hour)) {
		t.Errorf("LatestUpdate = %v", s.LatestUpdate("PAY"))
	}
	if s.Count("OPS") != 0 || !s.LatestUpdate("OPS").IsZero() {
		t.Error("projects must be isolated")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	s.Merge("PAY/core", []jira.WorklogEntry{wl("1", 0, 1800, base), wl("2", 2, 3600, base)})

	if err := s.Save(dir, "PAY/core"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := filepath.Join(dir, "worklogs_PAY_core.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cache file missing: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
	if tmp, _ := filepath.Glob(filepath.Join(dir, "*.tmp")); len(tmp) != 0 {
		t.Errorf("temp files left behind: %v", tmp)
	}

	// A corrupt line is skipped on load.
	if err := os.WriteFile(path, append(data, []byte("{not json\n")...), 0o644); err != nil {
		t.Fatal(err)
	}
	loaded := NewStore()
	if err := loaded.Load(dir, "PAY/core"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := loaded.Entries("PAY/core")
	if len(got) != 2 || !got[1].Started.Equal(base.AddDate(0, 0, 2)) || got[1].Author.DisplayName != "Ann" {
		t.Errorf("loaded = %+v", got)
	}

	if err := NewStore().Load(dir, "MISSING"); err != nil {
		t.Errorf("missing cache should not error: %v", err)
	}
	if err := DeleteCache(dir, "PAY/core"); err != nil {
		t.Fatal(err)
	}
	if err := DeleteCache(dir, "PAY/core"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

type fakeSource struct {
	queries []string
	items   []jira.WorkItem
	entries []jira.WorklogEntry
	err     error
}

func (f *fakeSource) WorklogsMatching(_ context.Context, jql string) ([]jira.WorkItem, []jira.WorklogEntry, error) {
	f.queries = append(f.queries, jql)
	items := f.items
	if items == nil {
		items = []jira.WorkItem{{Key: "PAY-1"}}
	}
	return items, f.entries, f.err
}

func onIssue(key string, e jira.WorklogEntry) jira.WorklogEntry {
	e.IssueKey = key
	return e
}

func totalSeconds(entries []jira.WorklogEntry) int64 {
	var n int64
	for _, e := range entries {
		n += e.DurationSeconds
	}
	return n
}

func TestProvider_SyncInitialThenIncremental(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{entries: []jira.WorklogEntry{wl("1", 0, 3600, base)}}
	p := NewProvider(src, NewStore(), dir)
	p.Now = func() time.Time { return base.AddDate(0, 0, 1) }

	res, err := p.Sync(context.Background(), "PAY", "")
	if err != nil {
		t.Fatalf("initial sync: %v", err)
	}
	if res.Incremental || res.Changed != 1 || res.Total != 1 {
		t.Errorf("initial result = %+v", res)
	}
	if want := `(project = "PAY") AND worklogDate >= "2022-03-05" ORDER BY updated ASC`; src.queries[0] != want {
		t.Errorf("initial query = %s\nwant %s", src.queries[0], want)
	}

	src.entries = []jira.WorklogEntry{wl("1", 0, 3600, base), wl("2", 1, 1800, base.Add(2*time.Hour))}
	res, err = p.Sync(context.Background(), "PAY", "project = PAY AND component = api")
	if err != nil {
		t.Fatalf("incremental sync: %v", err)
	}
	if !res.Incremental || res.Changed != 1 || res.Total != 2 {
		t.Errorf("incremental result = %+v", res)
	}
	if want := `(project = PAY AND component = api) AND updated >= "2024-03-04 09:00" ORDER BY updated ASC`; src.queries[1] != want {
		t.Errorf("incremental query = %s\nwant %s", src.queries[1], want)
	}

	// A fresh provider picks the history up from disk.
	fresh := NewProvider(&fakeSource{}, NewStore(), dir)
	if got := fresh.Cached("PAY"); len(got) != 2 {
		t.Errorf("cached history = %d entries, want 2", len(got))
	}
}

func TestProvider_StaleCacheIsRefetched(t *testing.T) {
	store := NewStore()
	store.Merge("PAY", []jira.WorklogEntry{wl("old", 0, 3600, base)})
	src := &fakeSource{entries: []jira.WorklogEntry{wl("new", 100, 600, base.AddDate(0, 0, 100))}}

	p := NewProvider(src, store, "")
	p.Now = func() time.Time { return base.AddDate(0, 0, 100) }

	res, err := p.Sync(context.Background(), "PAY", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Incremental || res.Total != 1 || store.Entries("PAY")[0].ID != "new" {
		t.Errorf("stale cache not evicted: %+v %+v", res, store.Entries("PAY"))
	}
}

func TestProvider_HistoryDegradesOnFailure(t *testing.T) {
	store := NewStore()
	store.Merge("PAY", []jira.WorklogEntry{wl("1", 0, 3600, base)})
	src := &fakeSource{err: errors.New("authentication failed")}

	p := NewProvider(src, store, "")
	p.Now = func() time.Time { return base }

	if _, err := p.Sync(context.Background(), "PAY", ""); err == nil {
		t.Error("Sync should report the fetch error")
	}
	if got := p.History(context.Background(), "PAY", ""); len(got) != 1 {
		t.Errorf("History = %d entries, want the cached 1", len(got))
	}
}

func TestStore_ReplaceIssues(t *testing.T) {
	s := NewStore()
	s.Merge("PAY", []jira.WorklogEntry{
		onIssue("PAY-1", wl("a", 0, 3600, base)),
		onIssue("PAY-1", wl("b", 1, 7200, base)),
		onIssue("PAY-2", wl("c", 2, 1800, base)),
	})

	n := s.ReplaceIssues("PAY", []string{"PAY-1"}, []jira.WorklogEntry{
		onIssue("PAY-1", wl("a", 0, 3600, base)),
		onIssue("PAY-1", wl("d", 3, 600, base)),
	})
	if n != 2 {
		t.Errorf("changed = %d, want 2 (b removed, d added)", n)
	}

	var ids []string
	for _, e := range s.Entries("PAY") {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "a,c,d" {
		t.Errorf("ids = %v, want a,c,d", ids)
	}

	if n := s.ReplaceIssues("PAY", []string{"PAY-2"}, nil); n != 1 || s.Count("PAY") != 2 {
		t.Errorf("emptying PAY-2 changed %d, count %d", n, s.Count("PAY"))
	}
}

func TestStore_ConcurrentSaves(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	s.Merge("PAY", []jira.WorklogEntry{wl("1", 0, 1800, base), wl("2", 1, 3600, base)})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Save(dir, "PAY")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Save: %v", err)
		}
	}

	loaded := NewStore()
	if err := loaded.Load(dir, "PAY"); err != nil || loaded.Count("PAY") != 2 {
		t.Errorf("loaded %d entries, err %v", loaded.Count("PAY"), err)
	}
	if tmp, _ := filepath.Glob(filepath.Join(dir, "*.tmp")); len(tmp) != 0 {
		t.Errorf("temp files left behind: %v", tmp)
	}
}

func TestProvider_SyncDropsDeletedWorklogs(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{entries: []jira.WorklogEntry{
		onIssue("PAY-1", wl("1", 0, 3600, base)),
		onIssue("PAY-1", wl("2", 0, 7200, base)),
	}}
	p := NewProvider(src, NewStore(), dir)
	p.Now = func() time.Time { return base.AddDate(0, 0, 1) }

	if got := totalSeconds(p.History(context.Background(), "PAY", "")); got != 10800 {
		t.Fatalf("first history = %ds, want 10800", got)
	}

	src.entries = []jira.WorklogEntry{onIssue("PAY-1", wl("1", 0, 3600, base))}
	p.Now = func() time.Time { return base.AddDate(0, 0, 2) }
	history := p.History(context.Background(), "PAY", "")
	if len(history) != 1 || totalSeconds(history) != 3600 {
		t.Errorf("history after deletion = %d entries, %ds; want 1 and 3600", len(history), totalSeconds(history))
	}

	fresh := NewProvider(&fakeSource{}, NewStore(), dir)
	if got := fresh.Cached("PAY"); len(got) != 1 {
		t.Errorf("saved cache still has %d entries, want 1", len(got))
	}
}

func TestProvider_PartialIssueKeepsCachedWorklogs(t *testing.T) {
	store := NewStore()
	store.Merge("PAY", []jira.WorklogEntry{
		onIssue("PAY-1", wl("1", 0, 3600, base)),
		onIssue("PAY-1", wl("2", 0, 7200, base)),
	})
	store.MarkSynced("PAY", base)
	src := &fakeSource{
		items:   []jira.WorkItem{{Key: "PAY-1", PartialWorklogs: true}},
		entries: []jira.WorklogEntry{onIssue("PAY-1", wl("1", 0, 3600, base))},
	}
	p := NewProvider(src, store, "")
	p.Now = func() time.Time { return base.AddDate(0, 0, 1) }

	if _, err := p.Sync(context.Background(), "PAY", ""); err != nil {
		t.Fatal(err)
	}
	if store.Count("PAY") != 2 {
		t.Errorf("count = %d, want 2: a partly fetched issue must not drop worklogs", store.Count("PAY"))
	}
}

func TestProvider_QuietProjectStaysIncremental(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{entries: []jira.WorklogEntry{wl("1", 0, 3600, base)}}
	p := NewProvider(src, NewStore(), dir)
	p.Now = func() time.Time { return base.AddDate(0, 0, 1) }
	if _, err := p.Sync(context.Background(), "PAY", ""); err != nil {
		t.Fatal(err)
	}

	// No worklog changes for 89 days, but a sync every 30 of them.
	src.items, src.entries = []jira.WorkItem{}, nil
	for _, day := range []int{31, 61, 90} {
		p.Now = func() time.Time { return base.AddDate(0, 0, day) }
		res, err := p.Sync(context.Background(), "PAY", "")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Incremental || res.Total != 1 {
			t.Errorf("day %d: result = %+v, want an incremental sync keeping 1 entry", day, res)
		}
	}

	// The sync time survives a restart.
	fresh := NewProvider(&fakeSource{}, NewStore(), dir)
	fresh.ensureLoaded("PAY")
	if got := fresh.store.SyncedAt("PAY"); !got.Equal(base.AddDate(0, 0, 90)) {
		t.Errorf("restored sync time = %v", got)
	}
}
