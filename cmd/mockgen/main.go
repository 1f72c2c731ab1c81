package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pulse-mcp/cmd/mockgen/engine"
)

func main() {
	project := flag.String("project", "MOCK", "Project key of the generated history")
	scenario := flag.String("scenario", "steady", "Scenario to generate: steady, overrun, idle")
	outDir := flag.String("out", ".", "Data directory (the cache is written under <out>/cache)")
	people := flag.Int("people", 4, "Number of people logging time")
	weeks := flag.Int("weeks", 8, "Weeks of history up to today")
	seed := flag.Uint64("seed", 1, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Project:  strings.ToUpper(*project),
		Scenario: *scenario,
		People:   *people,
		Weeks:    *weeks,
		Seed:     *seed,
		Now:      time.Now(),
	}

	fmt.Printf("Generating scenario '%s' for %s (%d people, %d weeks) to %s...\n", cfg.Scenario, cfg.Project, cfg.People, cfg.Weeks, *outDir)

	ds := engine.Generate(cfg)

	allocPath, err := engine.Save(*outDir, filepath.Join(*outDir, "cache"), cfg.Project, ds)
	if err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d worklogs and %s\n", len(ds.Worklogs), allocPath)
	fmt.Printf("Next: pulse-mcp allocation import %s\n", allocPath)
	fmt.Printf("      pulse-mcp project set %s --budget %d --start %s --end %s\n", cfg.Project, cfg.People*8*5*cfg.Weeks*2*3/4, ds.Start, ds.End)
	fmt.Println("Done.")
}
