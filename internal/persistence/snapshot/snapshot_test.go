package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"paranoia.ai/internal/sim/catalogs"
	"paranoia.ai/internal/sim/director"
	"paranoia.ai/internal/sim/station/stationsim"
)

func runDirector(t *testing.T, ticks uint64) (*director.Director, *catalogs.ThreatCatalog) {
	t.Helper()
	cat, err := catalogs.Defaults()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := director.DefaultConfig()
	cfg.Seed = 9
	cfg.Gate.Chance = 100
	cfg.Gate.Cooldown = 4
	d, err := director.New(cfg, cat.Defs)
	if err != nil {
		t.Fatalf("director: %v", err)
	}
	sim := stationsim.New(stationsim.DefaultLayout(), 9)
	for tick := uint64(1); tick <= ticks; tick++ {
		events := sim.Step(tick)
		res := d.Tick(director.TickInput{
			Tick:       tick,
			Snapshot:   sim.Snapshot(),
			Events:     events,
			Suppressor: sim,
			Pacing:     sim.Pacing(),
		}, sim)
		sim.UpdatePacing(res.Headlines)
	}
	return d, cat
}

func TestWriteReadRoundTrip(t *testing.T) {
	d, cat := runDirector(t, 150)
	snap := Capture("run-1", 150, d, cat.Digest)

	dir := t.TempDir()
	path := PathFor(dir, 150)
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(snap, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("snapshot round trip (-want +got):\n%s", diff)
	}
	if director.StateDigest(150, got.State) != snap.Digest {
		t.Fatalf("digest mismatch after decode")
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Tick != 150 || h.RunID != "run-1" || h.Version != Version {
		t.Fatalf("header=%+v", h)
	}
}

func TestResumeFromSnapshot(t *testing.T) {
	d, cat := runDirector(t, 80)
	snap := Capture("run-2", 80, d, cat.Digest)
	path := filepath.Join(t.TempDir(), "s.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resumed, err := director.New(got.Config, cat.Defs)
	if err != nil {
		t.Fatalf("director: %v", err)
	}
	if err := resumed.ImportState(got.State); err != nil {
		t.Fatalf("import: %v", err)
	}
	if resumed.Digest(80) != d.Digest(80) {
		t.Fatalf("resumed digest differs")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if p, err := Latest(dir); err != nil || p != "" {
		t.Fatalf("empty dir: %q %v", p, err)
	}
	d, cat := runDirector(t, 10)
	for _, tick := range []uint64{100, 900, 20} {
		if err := WriteSnapshot(PathFor(dir, tick), Capture("r", tick, d, cat.Digest)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	p, err := Latest(dir)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if p != PathFor(dir, 900) {
		t.Fatalf("latest=%s", p)
	}
}
