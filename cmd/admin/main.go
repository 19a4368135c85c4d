package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"paranoia.ai/internal/persistence/snapshot"
	"paranoia.ai/internal/sim/catalogs"
	"paranoia.ai/internal/sim/director"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "runs"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		latest, _ := snapshot.Latest(filepath.Join(*dataDir, "runs", e.Name()))
		if latest == "" {
			fmt.Println(e.Name())
			continue
		}
		h, err := snapshot.ReadHeader(latest)
		if err != nil {
			fmt.Printf("%s\t(bad snapshot: %v)\n", e.Name(), err)
			continue
		}
		fmt.Printf("%s\tlatest_tick=%d\n", e.Name(), h.Tick)
	}
}

func resolveSnapshot(dataDir, runID, path string) string {
	path = strings.TrimSpace(path)
	if path != "" {
		return path
	}
	if strings.TrimSpace(runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run or -snapshot")
		os.Exit(2)
	}
	latest, err := snapshot.Latest(filepath.Join(dataDir, "runs", runID))
	if err != nil || latest == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found for run", runID)
		os.Exit(2)
	}
	return latest
}

// snapshotCmd prints a snapshot's header and tuning as JSON.
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	runID := fs.String("run", "", "run id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to the run's latest)")
	_ = fs.Parse(args)

	snap, err := snapshot.ReadSnapshot(resolveSnapshot(*dataDir, *runID, *snapPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(struct {
		Header        snapshot.Header `json:"header"`
		Config        director.Config `json:"config"`
		CatalogDigest string          `json:"catalog_digest"`
		Digest        string          `json:"digest"`
	}{snap.Header, snap.Config, snap.CatalogDigest, snap.Digest})
}

// stateCmd prints the saved director state, with threat progress resolved
// against the catalog when it matches.
func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	configDir := fs.String("configs", "./configs", "config directory")
	runID := fs.String("run", "", "run id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to the run's latest)")
	_ = fs.Parse(args)

	snap, err := snapshot.ReadSnapshot(resolveSnapshot(*dataDir, *runID, *snapPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	out := map[string]any{"tick": snap.Header.Tick, "state": snap.State}

	cat, err := catalogs.Load(*configDir)
	if err == nil && cat.Digest == snap.CatalogDigest {
		d, err := director.New(snap.Config, cat.Defs)
		if err == nil && d.ImportState(snap.State) == nil {
			out["threats"] = d.ThreatStatus()
		}
	}
	printJSON(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
}
