package station

import (
	"encoding/json"
	"testing"
)

func TestLivingSortedByID(t *testing.T) {
	s := Snapshot{Crew: []Crew{
		{ID: "pilot", Alive: true},
		{ID: "engineer", Alive: true},
		{ID: "medic", Alive: false},
		{ID: "commander", Alive: true},
	}}
	got := s.Living()
	if len(got) != 3 {
		t.Fatalf("living=%d want 3", len(got))
	}
	if got[0].ID != "commander" || got[1].ID != "engineer" || got[2].ID != "pilot" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestPlaceLookups(t *testing.T) {
	s := Snapshot{Places: []Place{
		{ID: "bridge", Name: "Bridge", Sector: "command"},
		{ID: "quarters", Name: "Crew Quarters", Sector: "habitation"},
		{ID: "mess", Sector: "habitation"},
	}}
	if got := s.PlaceName("quarters"); got != "Crew Quarters" {
		t.Fatalf("place name=%q", got)
	}
	if got := s.PlaceName("mess"); got != "mess" {
		t.Fatalf("unnamed place should fall back to id, got %q", got)
	}
	if got := s.PlacesInSector("habitation"); len(got) != 2 || got[0] != "quarters" {
		t.Fatalf("sector lookup=%v", got)
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	in := []Event{
		{ID: "e1", Tick: 4, Actor: "engineer", Place: "engineering", Payload: CrewDamage{Amount: 6, Cause: "burn"}},
		{ID: "e2", Tick: 4, Payload: SystemAlert{System: "thermal", Message: "hot"}},
		{ID: "e3", Tick: 5, Actor: "pilot", Payload: CrewMove{From: "bridge", To: "mess"}},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len=%d", len(out))
	}
	dmg, ok := out[0].Payload.(CrewDamage)
	if !ok || dmg.Amount != 6 || dmg.Cause != "burn" {
		t.Fatalf("damage payload lost: %#v", out[0].Payload)
	}
	if alert, ok := out[1].Payload.(SystemAlert); !ok || alert.System != "thermal" {
		t.Fatalf("alert payload lost: %#v", out[1].Payload)
	}
	if out[2].Kind() != KindCrewMove {
		t.Fatalf("kind=%s", out[2].Kind())
	}
}

func TestEventJSONUnknownKind(t *testing.T) {
	var e Event
	if err := json.Unmarshal([]byte(`{"id":"x","tick":1,"kind":"METEOR","data":{"size":3}}`), &e); err != nil {
		t.Fatalf("unknown kind should decode: %v", err)
	}
	if e.Payload != nil || e.Kind() != "" {
		t.Fatalf("unknown kind should have nil payload, got %#v", e.Payload)
	}
}
