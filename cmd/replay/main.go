package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	ticklog "paranoia.ai/internal/persistence/log"
	"paranoia.ai/internal/persistence/snapshot"
	"paranoia.ai/internal/sim/catalogs"
	"paranoia.ai/internal/sim/director"
	"paranoia.ai/internal/sim/effects"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		runDir    = flag.String("run_dir", "", "run dir containing ticks/ticks-*.jsonl.zst (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d run=%s tick=%d seed=%d active=%d tags=%d digest=%s\n",
		snap.Header.Version, snap.Header.RunID, snap.Header.Tick, snap.Config.Seed,
		len(snap.State.Active), len(snap.State.RecentTags), snap.Digest)

	if *runDir == "" {
		return
	}

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	checked, err := verify(snap, cat, *runDir, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
}

// verify restores the director from snap and re-runs every logged tick after
// it, comparing digests, headlines and applied effects.
func verify(snap snapshot.SnapshotV1, cat *catalogs.ThreatCatalog, runDir string, verifyFrom, toTick uint64) (uint64, error) {
	if snap.CatalogDigest != cat.Digest {
		return 0, fmt.Errorf("catalog digest mismatch: snapshot=%s loaded=%s", snap.CatalogDigest, cat.Digest)
	}
	d, err := director.New(snap.Config, cat.Defs)
	if err != nil {
		return 0, err
	}
	if err := d.ImportState(snap.State); err != nil {
		return 0, err
	}
	if got := d.Digest(snap.Header.Tick); got != snap.Digest {
		return 0, fmt.Errorf("snapshot digest mismatch: got=%s want=%s", got, snap.Digest)
	}

	next := snap.Header.Tick + 1
	var checked uint64
	err = ticklog.ReadTicks(runDir, func(h ticklog.FileHeader, e ticklog.TickEntry) error {
		if h.RunID != snap.Header.RunID {
			return nil
		}
		if e.Tick < next {
			return nil
		}
		if toTick != 0 && e.Tick > toTick {
			return ticklog.ErrStop
		}
		if e.Tick != next {
			return fmt.Errorf("tick gap: want=%d got=%d", next, e.Tick)
		}
		res := d.Tick(e.Input(), nil)
		next++

		if e.Tick < verifyFrom {
			return nil
		}
		checked++
		if got := d.Digest(e.Tick); got != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", e.Tick, got, e.Digest)
		}
		if err := sameJSON(res.Headlines, e.Headlines); err != nil {
			return fmt.Errorf("headlines differ at tick %d: %w", e.Tick, err)
		}
		envs := make([]effects.Envelope, 0, len(res.Applied))
		for _, ef := range res.Applied {
			env, err := effects.Wrap(ef)
			if err != nil {
				return err
			}
			envs = append(envs, env)
		}
		if err := sameJSON(envs, e.Effects); err != nil {
			return fmt.Errorf("effects differ at tick %d: %w", e.Tick, err)
		}
		return nil
	})
	return checked, err
}

func sameJSON(got, want any) error {
	a, err := json.Marshal(got)
	if err != nil {
		return err
	}
	b, err := json.Marshal(want)
	if err != nil {
		return err
	}
	if norm(a) != norm(b) {
		return fmt.Errorf("got=%s want=%s", a, b)
	}
	return nil
}

// norm treats an absent list and an empty one alike.
func norm(b []byte) string {
	if string(b) == "null" {
		return "[]"
	}
	return string(b)
}
