package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"pulse-mcp/internal/capacity"
	"pulse-mcp/internal/dashboard"
	"pulse-mcp/internal/jira"
	"pulse-mcp/internal/stats"
	"pulse-mcp/internal/worklogstore"
)

type GeneratorConfig struct {
	Project  string
	Scenario string // "steady", "overrun" or "idle"
	People   int
	Weeks    int
	Seed     uint64
	Now      time.Time
}

// Dataset is a synthetic worklog history with the allocations that planned it.
type Dataset struct {
	Worklogs    []jira.WorklogEntry
	Allocations []capacity.AllocationRecord
	Start       stats.Date
	End         stats.Date
}

var names = []string{"Ann Lee", "Bob Marsh", "Chen Wu", "Dara Okafor", "Eli Novak", "Fay Ortiz", "Gus Brandt", "Hana Sato"}

func Generate(cfg GeneratorConfig) Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.People <= 0 {
		cfg.People = 4
	}
	if cfg.Weeks <= 0 {
		cfg.Weeks = 8
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	today := stats.LocalDate(cfg.Now, time.UTC)
	start := today.AddDays(-7 * cfg.Weeks).WeekStart()

	ds := Dataset{Start: start, End: start.AddDays(7*cfg.Weeks*2 - 1)}
	logID := 10000

	for p := 0; p < cfg.People; p++ {
		person := jira.Person{
			AccountID:   fmt.Sprintf("mock-%02d", p+1),
			DisplayName: names[p%len(names)],
		}
		percent := []float64{100, 80, 50, 50}[p%4]
		ds.Allocations = append(ds.Allocations, capacity.AllocationRecord{
			PersonID:    person.AccountID,
			DisplayName: person.DisplayName,
			ProjectKey:  cfg.Project,
			StartDate:   ds.Start,
			EndDate:     ds.End,
			Percent:     percent,
		})

		// Share of the allocated day actually logged.
		load := 0.9
		switch cfg.Scenario {
		case "overrun":
			load = 1.25
		case "idle":
			load = 0.35
		}

		for d := start; d.Before(today); d = d.AddDays(1) {
			if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
			planned := 8 * percent / 100 * load
			h := math.Max(0, planned+rng.NormFloat64()*planned*0.25)
			if h < 0.25 {
				continue
			}
			logID++
			issue := fmt.Sprintf("%s-%d", cfg.Project, 2+rng.IntN(12))
			started := d.In(time.UTC).Add(time.Duration(9+rng.IntN(4)) * time.Hour)
			ds.Worklogs = append(ds.Worklogs, jira.WorklogEntry{
				ID:              fmt.Sprintf("%d", logID),
				IssueKey:        issue,
				Author:          person,
				Started:         started,
				DurationSeconds: int64(math.Round(h*4)) * 900,
				Updated:         started.Add(8 * time.Hour),
			})
		}
	}
	return ds
}

// Save writes the worklog cache of the project into cacheDir and the
// allocations as an importable YAML file into outDir.
func Save(outDir, cacheDir, project string, ds Dataset) (string, error) {
	st := worklogstore.NewStore()
	st.Merge(project, ds.Worklogs)
	if err := st.Save(cacheDir, project); err != nil {
		return "", fmt.Errorf("save worklog cache: %w", err)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, fmt.Sprintf("%s_allocations.yaml", project))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := dashboard.ExportAllocations(f, ds.Allocations); err != nil {
		return "", err
	}
	return path, nil
}
