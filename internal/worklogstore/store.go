package worklogstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"pulse-mcp/internal/jira"

	"github.com/rs/zerolog/log"
)

// Store keeps worklog history per project, deduplicated by worklog id and
// ordered by start time.
type Store struct {
	mu       sync.RWMutex
	logs     map[string][]jira.WorklogEntry
	syncedAt map[string]time.Time

	// saveMu orders writers so the last rename carries the newest snapshot.
	saveMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		logs:     make(map[string][]jira.WorklogEntry),
		syncedAt: make(map[string]time.Time),
	}
}

// Merge adds entries for a project. An entry whose id is already present
// replaces the cached one only when its Updated time is newer. It returns the
// number of entries added or replaced.
func (s *Store) Merge(project string, entries []jira.WorklogEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merge(project, entries, 0)
}

// ReplaceIssues makes the cached worklogs of each issue in keys exactly the
// fetched set: cached entries of those issues missing from entries were
// deleted in Jira and are dropped, the rest is merged as by Merge. Issues not
// in keys are untouched. It returns the number of entries added, replaced or
// removed.
func (s *Store) ReplaceIssues(project string, keys []string, entries []jira.WorklogEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make(map[string]bool, len(keys))
	for _, k := range keys {
		replaced[k] = true
	}
	fetched := make(map[string]bool, len(entries))
	for _, e := range entries {
		fetched[e.ID] = true
	}

	current := s.logs[project]
	kept := current[:0:0]
	for _, e := range current {
		if replaced[e.IssueKey] && !fetched[e.ID] {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(current) - len(kept)
	if removed > 0 {
		s.logs[project] = kept
	}
	return s.merge(project, entries, removed)
}

// merge requires s.mu held. removed counts changes already made by the caller.
func (s *Store) merge(project string, entries []jira.WorklogEntry, removed int) int {
	current := s.logs[project]
	index := make(map[string]int, len(current))
	for i, e := range current {
		index[e.ID] = i
	}

	changed := removed
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if i, ok := index[e.ID]; ok {
			if e.Updated.After(current[i].Updated) {
				current[i] = e
				changed++
			}
			continue
		}
		index[e.ID] = len(current)
		current = append(current, e)
		changed++
	}
	if changed == 0 {
		return 0
	}

	sort.Slice(current, func(i, j int) bool {
		if !current[i].Started.Equal(current[j].Started) {
			return current[i].Started.Before(current[j].Started)
		}
		return current[i].ID < current[j].ID
	})
	s.logs[project] = current
	return changed
}

// Entries returns a copy of the cached history of a project.
func (s *Store) Entries(project string) []jira.WorklogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]jira.WorklogEntry(nil), s.logs[project]...)
}

// Count returns the number of cached entries for a project.
func (s *Store) Count(project string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[project])
}

// LatestUpdate is the most recent Updated (or Started when Updated is unset)
// time in the project history.
func (s *Store) LatestUpdate(project string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, e := range s.logs[project] {
		ts := e.Updated
		if ts.IsZero() {
			ts = e.Started
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// Clear drops the in-memory history of a project.
func (s *Store) Clear(project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, project)
	delete(s.syncedAt, project)
}

// SyncedAt is when the project last synced successfully, zero if never.
func (s *Store) SyncedAt(project string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncedAt[project]
}

// MarkSynced records a successful sync of the project at t.
func (s *Store) MarkSynced(project string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncedAt[project] = t
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func cacheName(project string) string {
	return "worklogs_" + unsafeChars.ReplaceAllString(project, "_")
}

func cachePath(cacheDir, project string) string {
	return filepath.Join(cacheDir, cacheName(project)+".jsonl")
}

func statePath(cacheDir, project string) string {
	return filepath.Join(cacheDir, cacheName(project)+".state.json")
}

type syncState struct {
	SyncedAt time.Time `json:"syncedAt"`
}

// Load merges the JSONL cache file of a project into the store. A missing
// file is not an error.
func (s *Store) Load(cacheDir, project string) error {
	s.loadState(cacheDir, project)

	file, err := os.Open(cachePath(cacheDir, project))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open worklog cache: %w", err)
	}
	defer file.Close()

	var entries []jira.WorklogEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e jira.WorklogEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("project", project).Msg("Skipping invalid JSON line in worklog cache")
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading worklog cache: %w", err)
	}

	s.Merge(project, entries)
	log.Debug().Str("project", project).Int("count", len(entries)).Msg("Loaded worklogs from cache")
	return nil
}

func (s *Store) loadState(cacheDir, project string) {
	data, err := os.ReadFile(statePath(cacheDir, project))
	if err != nil {
		return
	}
	var st syncState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Ignoring unreadable worklog sync state")
		return
	}
	s.MarkSynced(project, st.SyncedAt)
}

// SaveState writes the last successful sync time of the project.
func (s *Store) SaveState(cacheDir, project string) error {
	at := s.SyncedAt(project)
	if at.IsZero() {
		return nil
	}
	data, err := json.Marshal(syncState{SyncedAt: at})
	if err != nil {
		return err
	}
	return s.writeAtomic(cacheDir, statePath(cacheDir, project), func(w *bufio.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Save writes the project history to its JSONL cache file through a
// uniquely named temporary file and rename. The history is read once the
// write slot is held, so a later save never loses to an earlier snapshot.
func (s *Store) Save(cacheDir, project string) error {
	if s.Count(project) == 0 {
		return nil
	}
	count := 0
	err := s.writeAtomic(cacheDir, cachePath(cacheDir, project), func(w *bufio.Writer) error {
		entries := s.Entries(project)
		count = len(entries)
		encoder := json.NewEncoder(w)
		for _, e := range entries {
			if err := encoder.Encode(e); err != nil {
				return fmt.Errorf("failed to encode worklog: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("project", project).Int("count", count).Msg("Worklog cache saved")
	return nil
}

func (s *Store) writeAtomic(cacheDir, path string, write func(w *bufio.Writer) error) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	file, err := os.CreateTemp(cacheDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpPath := file.Name()

	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// DeleteCache removes the cache and sync state files of a project.
func DeleteCache(cacheDir, project string) error {
	for _, path := range []string{cachePath(cacheDir, project), statePath(cacheDir, project)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
