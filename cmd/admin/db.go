package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"paranoia.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	runID := fs.String("run", "", "run id (required)")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/runs/<run>/index.sqlite)")
	from := fs.Uint64("from_tick", 0, "first tick (headlines)")
	to := fs.Uint64("to_tick", 0, "last tick, inclusive (headlines; 0 = no limit)")
	_ = fs.Parse(args)

	q := "headlines"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if strings.TrimSpace(*runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "runs", *runID, "index.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	idx, err := indexdb.OpenSQLite(path, *runID, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()
	ctx := context.Background()

	switch q {
	case "headlines":
		end := *to + 1
		if *to == 0 {
			end = ^uint64(0) >> 1
		}
		rows, err := idx.Headlines(ctx, *runID, *from, end)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, h := range rows {
			fmt.Printf("%d\t%s\t%s\n", h.Tick, h.Priority, h.Message)
		}
	case "threats":
		runs, err := idx.ThreatRuns(ctx, *runID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		ids := make([]string, 0, len(runs))
		for id := range runs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("%s\tsteps=%d\tretired=%d\n", id, runs[id][0], runs[id][1])
		}
	case "snapshots":
		p, tick, err := idx.LatestSnapshot(ctx, *runID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		if p == "" {
			fmt.Println("no snapshots recorded")
			return
		}
		fmt.Printf("%d\t%s\n", tick, p)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(headlines|threats|snapshots)")
		os.Exit(2)
	}
}
