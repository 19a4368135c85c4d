package suspicion

import (
	"testing"

	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

func crew(id, place string, hp, stress int) station.Crew {
	return station.Crew{ID: id, Place: place, Alive: true, HP: hp, Stress: stress}
}

func TestBeliefAggregator(t *testing.T) {
	s := station.Snapshot{
		Crew: []station.Crew{crew("a", "x", 100, 0), crew("b", "x", 100, 0), {ID: "dead", Alive: false}},
		Beliefs: map[string]station.Belief{
			"a":    {MotherReliable: 0.5, TamperEvidence: 50, Rumors: map[string]float64{RogueRumor: 0.4}},
			"b":    {MotherReliable: 1},
			"dead": {MotherReliable: 0, TamperEvidence: 100},
		},
	}
	// a: 20 + 17.5 + 10 = 47.5; b: 0; mean over 2 living = 23.75
	if got := (BeliefAggregator{}).Aggregate(s); got != 24 {
		t.Fatalf("suspicion=%d", got)
	}
	if got := (BeliefAggregator{}).Aggregate(station.Snapshot{}); got != 0 {
		t.Fatalf("no crew should be 0, got %d", got)
	}
}

func TestBeliefAggregatorMonotonic(t *testing.T) {
	base := station.Snapshot{
		Crew:    []station.Crew{crew("a", "x", 100, 0)},
		Beliefs: map[string]station.Belief{"a": {MotherReliable: 0.8, TamperEvidence: 10}},
	}
	low := (BeliefAggregator{}).Aggregate(base)
	base.Beliefs["a"] = station.Belief{MotherReliable: 0.3, TamperEvidence: 60}
	high := (BeliefAggregator{}).Aggregate(base)
	if high <= low {
		t.Fatalf("more distrust should raise suspicion: %d -> %d", low, high)
	}
	base.Beliefs["a"] = station.Belief{MotherReliable: -4, TamperEvidence: 900, Rumors: map[string]float64{RogueRumor: 7}}
	if got := (BeliefAggregator{}).Aggregate(base); got != 100 {
		t.Fatalf("out-of-range beliefs should clamp to 100, got %d", got)
	}
}

func TestPickFocusTiers(t *testing.T) {
	cfg := DefaultFocusConfig()
	r := rng.New(3)

	s := station.Snapshot{
		Crew: []station.Crew{crew("calm", "bridge", 100, 0), crew("doubter", "bridge", 100, 0), crew("hurt", "bridge", 30, 0)},
		Beliefs: map[string]station.Belief{
			"calm":    {MotherReliable: 0.9},
			"doubter": {MotherReliable: 0.9, TamperEvidence: 25},
		},
	}
	f, ok := PickFocus(s, nil, cfg, r)
	if !ok || f.Crew.ID != "doubter" || f.Tier != TierSuspicious {
		t.Fatalf("expected suspicious doubter, got %+v %v", f, ok)
	}

	delete(s.Beliefs, "doubter")
	f, ok = PickFocus(s, nil, cfg, r)
	if !ok || f.Crew.ID != "hurt" || f.Tier != TierUneasy {
		t.Fatalf("expected uneasy hurt, got %+v %v", f, ok)
	}

	s.Crew = []station.Crew{crew("calm", "bridge", 100, 0)}
	if _, ok := PickFocus(s, nil, cfg, r); ok {
		t.Fatalf("calm crew should give no focus")
	}
	f, ok = PickFocus(s, []string{"bridge"}, cfg, r)
	if !ok || f.Tier != TierUneasy {
		t.Fatalf("threat target should count as hazardous, got %+v %v", f, ok)
	}
	s.Places = []station.Place{{ID: "bridge", Hazardous: true}}
	if _, ok := PickFocus(s, nil, cfg, r); !ok {
		t.Fatalf("hazardous place flag should count")
	}
}

func TestPickFocusStressBoundary(t *testing.T) {
	cfg := DefaultFocusConfig()
	s := station.Snapshot{Crew: []station.Crew{crew("a", "x", 50, 39)}}
	if _, ok := PickFocus(s, nil, cfg, rng.New(1)); ok {
		t.Fatalf("stress 39 / hp 50 should not be uneasy")
	}
	s.Crew[0].Stress = 40
	if _, ok := PickFocus(s, nil, cfg, rng.New(1)); !ok {
		t.Fatalf("stress 40 should be uneasy")
	}
}
