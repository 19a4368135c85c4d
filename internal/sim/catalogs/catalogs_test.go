package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/effects"
)

func TestDefaults(t *testing.T) {
	c, err := Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if len(c.Defs) != 3 {
		t.Fatalf("expected 3 built-in threats, got %d", len(c.Defs))
	}
	want := []string{"reactor_overheat", "scrubber_failure", "solar_flare"}
	for i, id := range want {
		if c.Defs[i].ID != id {
			t.Fatalf("def %d = %s, want %s", i, c.Defs[i].ID, id)
		}
	}
	flare := c.ByID["solar_flare"]
	if flare.MinInterval != 8 || flare.MaxInterval != 14 || len(flare.Steps) != 4 {
		t.Fatalf("solar flare: %+v", flare)
	}
	if flare.Steps[3].Priority != interest.PriorityCritical {
		t.Fatalf("last step should be CRITICAL, got %s", flare.Steps[3].Priority)
	}
	if len(flare.Steps[2].Effects) != 3 || flare.Steps[2].Effects[2].Kind != effects.KindBlackout {
		t.Fatalf("blackout step effects: %+v", flare.Steps[2].Effects)
	}
	if len(c.Digest) != 64 {
		t.Fatalf("digest=%q", c.Digest)
	}
	again, _ := Defaults()
	if again.Digest != c.Digest {
		t.Fatalf("digest not stable")
	}
}

func TestLoadThreatsFromDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("leak.json", `{
	  "id": "coolant_leak",
	  "name": "Coolant Leak",
	  "min_interval": 5,
	  "max_interval": 9,
	  "target": "occupied",
	  "steps": [
	    {"name": "drip", "priority": "LOW", "message": "[SENSOR] {TARGET}: moisture.", "features": {"stakes": 1, "dilemma": 0, "clarity": 2, "proximity": 2}},
	    {"name": "flood", "priority": "HIGH", "message": "[ALERT] {TARGET}: flooding.", "features": {"stakes": 3, "dilemma": 2, "clarity": 3, "proximity": 3},
	     "effects": [{"kind": "adjust_o2", "delta": -10}]}
	  ]
	}`)
	c, err := LoadThreats(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Defs) != 1 || c.Defs[0].ID != "coolant_leak" {
		t.Fatalf("unexpected defs %+v", c.Defs)
	}

	write("bad.json", `{"id": "bad", "name": "Bad", "min_interval": 1, "max_interval": 2, "target": "any",
	  "steps": [{"name": "x", "priority": "LOW", "message": "m", "features": {"stakes": 9, "dilemma": 0, "clarity": 0, "proximity": 0}}]}`)
	if _, err := LoadThreats(dir); err == nil || !strings.Contains(err.Error(), "bad.json") {
		t.Fatalf("expected schema error naming bad.json, got %v", err)
	}
}

func TestLoadThreatsSemanticErrors(t *testing.T) {
	dir := t.TempDir()
	body := `{"id": "inv", "name": "Inverted", "min_interval": 9, "max_interval": 3, "target": "any",
	  "steps": [{"name": "x", "priority": "LOW", "message": "m", "features": {"stakes": 1, "dilemma": 0, "clarity": 0, "proximity": 0}}]}`
	if err := os.WriteFile(filepath.Join(dir, "inv.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadThreats(dir); err == nil {
		t.Fatalf("expected interval error")
	}
}

func TestLoadMissingDir(t *testing.T) {
	c, err := LoadThreats(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing dir should not fail: %v", err)
	}
	if err := c.RequireNonEmpty(); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestLoadConfigDir(t *testing.T) {
	c, err := Load("")
	if err != nil || len(c.Defs) != 3 {
		t.Fatalf("empty config dir should give defaults: %v", err)
	}
}
