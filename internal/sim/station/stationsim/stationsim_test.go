package stationsim

import (
	"fmt"
	"testing"

	"paranoia.ai/internal/sim/director/arbiter"
	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/director/suspicion"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

func TestSnapshotMatchesLayout(t *testing.T) {
	s := New(DefaultLayout(), 1)
	snap := s.Snapshot()
	if len(snap.Places) != 6 || len(snap.Crew) != 4 {
		t.Fatalf("snapshot: %d places %d crew", len(snap.Places), len(snap.Crew))
	}
	for _, p := range snap.Places {
		if p.Hazardous {
			t.Fatalf("%s hazardous at start", p.ID)
		}
	}
	if b, ok := snap.Belief("vega"); !ok || b.MotherReliable != 0.9 {
		t.Fatalf("belief: %+v", b)
	}
}

func TestFireBurnsCrewAndStarves(t *testing.T) {
	s := New(DefaultLayout(), 1)
	s.Apply(0, effects.IgniteRoom{Place: "bridge"})
	if !s.Snapshot().Places[0].Hazardous {
		t.Fatalf("burning bridge should be hazardous")
	}
	sawDamage, sawAlert := false, false
	for tick := uint64(1); tick < 60; tick++ {
		for _, ev := range s.Step(tick) {
			if d, ok := ev.Payload.(station.CrewDamage); ok && ev.Actor == "vega" && d.Cause == "BURN" {
				sawDamage = true
			}
			if a, ok := ev.Payload.(station.SystemAlert); ok && a.System == "thermal" {
				sawAlert = true
			}
		}
	}
	if !sawDamage || !sawAlert {
		t.Fatalf("damage=%v alert=%v", sawDamage, sawAlert)
	}
	if r, _ := s.Room("bridge"); r.OnFire {
		t.Fatalf("fire should starve once O2 is gone: %+v", r)
	}
}

func TestCrewDiesOnce(t *testing.T) {
	s := New(DefaultLayout(), 1)
	s.Apply(0, effects.AdjustO2{Place: "medbay", Delta: -100})
	s.Apply(0, effects.SetPower{Percent: 0})
	s.Apply(0, effects.DoorDelay{Ticks: 500})
	deaths := 0
	for tick := uint64(1); tick < 40; tick++ {
		for _, ev := range s.Step(tick) {
			if ev.Kind() == station.KindCrewDeath {
				if ev.Actor != "ilse" {
					t.Fatalf("unexpected death %+v", ev)
				}
				deaths++
			}
		}
	}
	if deaths != 1 {
		t.Fatalf("deaths=%d", deaths)
	}
	for _, c := range s.Snapshot().Living() {
		if c.ID == "ilse" {
			t.Fatalf("ilse still listed as living")
		}
	}
}

func TestDoorDelayHoldsCrew(t *testing.T) {
	s := New(DefaultLayout(), 1)
	s.Apply(0, effects.DoorDelay{Ticks: 30})
	for tick := uint64(1); tick < 25; tick++ {
		for _, ev := range s.Step(tick) {
			if ev.Kind() == station.KindCrewMove {
				t.Fatalf("tick %d: crew moved through delayed doors", tick)
			}
		}
	}
	moved := false
	for tick := uint64(25); tick < 120 && !moved; tick++ {
		for _, ev := range s.Step(tick) {
			if ev.Kind() == station.KindCrewMove {
				moved = true
			}
		}
	}
	if !moved {
		t.Fatalf("crew never moved after delay expired")
	}
}

func TestBlackoutSuppressesSensors(t *testing.T) {
	s := New(DefaultLayout(), 1)
	s.Apply(0, effects.Blackout{Ticks: 3})
	if !s.IsSuppressed("air") || !s.IsSuppressed("thermal") || s.IsSuppressed("comms") {
		t.Fatalf("blackout suppression wrong: %v", s.SuppressedSystems())
	}
	for tick := uint64(1); tick <= 3; tick++ {
		s.Step(tick)
	}
	if len(s.SuppressedSystems()) != 0 {
		t.Fatalf("suppression should expire: %v", s.SuppressedSystems())
	}
	s.SuppressAlerts("comms", 2)
	if got := s.SuppressedSystems(); len(got) != 1 || got[0] != "comms" {
		t.Fatalf("explicit suppression: %v", got)
	}
}

func TestCommsAndSuspicionShiftBeliefs(t *testing.T) {
	s := New(DefaultLayout(), 1)
	s.Apply(3, effects.Comms{Message: effects.CommsMessage{
		Kind: effects.CommsWhisper, From: "vega", To: "roth", Topic: suspicion.RogueRumor, Confidence: 0.4,
	}})
	s.Apply(3, effects.SuspicionDelta{Delta: 10, Reason: "CONFRONTATION"})
	snap := s.Snapshot()
	roth, _ := snap.Belief("roth")
	if roth.Rumors[suspicion.RogueRumor] != 0.1 {
		t.Fatalf("roth rumor=%v", roth.Rumors)
	}
	vega, _ := snap.Belief("vega")
	if vega.Rumors[suspicion.RogueRumor] != 0 {
		t.Fatalf("sender should not hear own whisper")
	}
	if roth.MotherReliable < 0.79 || roth.MotherReliable > 0.81 {
		t.Fatalf("reliability=%v", roth.MotherReliable)
	}
	if len(s.Comms) != 1 || len(s.Suspicion) != 1 {
		t.Fatalf("logs not kept")
	}
}

func TestUpdatePacing(t *testing.T) {
	s := New(DefaultLayout(), 1)
	for i := 0; i < 12; i++ {
		s.UpdatePacing(nil)
	}
	if p := s.Pacing(); p.Boredom != 10 || p.Tension != 0 {
		t.Fatalf("pacing=%+v", p)
	}
	s.UpdatePacing([]arbiter.Headline{{Priority: interest.PriorityCritical, Message: "x"}})
	if p := s.Pacing(); p.Boredom != 9 || p.Tension != 1 {
		t.Fatalf("pacing=%+v", p)
	}
}

func TestLogsKeepOnlyRecentEntries(t *testing.T) {
	s := New(DefaultLayout(), 1)
	for i := 0; i < 3*LogLimit; i++ {
		s.Apply(uint64(i), effects.Comms{Message: effects.CommsMessage{ID: fmt.Sprintf("c%d", i), From: "vega"}})
		s.Apply(uint64(i), effects.RaiseDoubt{Doubt: effects.Doubt{ID: fmt.Sprintf("d%d", i)}})
	}
	if len(s.Comms) != LogLimit || len(s.Doubts) != LogLimit {
		t.Fatalf("logs grew past the limit: comms=%d doubts=%d", len(s.Comms), len(s.Doubts))
	}
	if s.Comms[0].ID != fmt.Sprintf("c%d", 2*LogLimit) || s.Comms[LogLimit-1].ID != fmt.Sprintf("c%d", 3*LogLimit-1) {
		t.Fatalf("wrong window: first=%s last=%s", s.Comms[0].ID, s.Comms[LogLimit-1].ID)
	}
}

func TestConflictingReadingBuildsTamperEvidence(t *testing.T) {
	s := New(DefaultLayout(), 1)
	for i := 0; i < 4; i++ {
		s.Apply(uint64(i), effects.SensorReading{Reading: effects.Reading{Place: "bridge", System: "air", Confidence: 0.6}})
	}
	snap := s.Snapshot()
	vega, _ := snap.Belief("vega")
	if vega.TamperEvidence != 4*witnessReading {
		t.Fatalf("vega on the bridge: tamper=%v", vega.TamperEvidence)
	}
	if roth, _ := snap.Belief("roth"); roth.TamperEvidence != 0 {
		t.Fatalf("roth was not on the bridge: tamper=%v", roth.TamperEvidence)
	}
	focus, ok := suspicion.PickFocus(snap, nil, suspicion.DefaultFocusConfig(), rng.New(1))
	if !ok || focus.Tier != suspicion.TierSuspicious || focus.Crew.ID != "vega" {
		t.Fatalf("vega should be the suspicious focus: %+v", focus)
	}
}

func TestGlitchBuildsTamperEvidence(t *testing.T) {
	s := New(DefaultLayout(), 7)
	s.Apply(0, effects.Blackout{Ticks: 1000})
	want := map[string]float64{}
	glitches := 0
	for tick := uint64(1); tick <= 300; tick++ {
		for _, ev := range s.Step(tick) {
			if a, ok := ev.Payload.(station.SystemAlert); ok && a.System == "comms" {
				want[ev.Actor] += witnessGlitch
				glitches++
			}
		}
	}
	if glitches == 0 {
		t.Fatalf("expected glitches during a long blackout")
	}
	snap := s.Snapshot()
	for _, c := range DefaultLayout().Crew {
		b, _ := snap.Belief(c.ID)
		if b.TamperEvidence != min(want[c.ID], 100) {
			t.Fatalf("%s tamper=%v want %v", c.ID, b.TamperEvidence, want[c.ID])
		}
	}
}
