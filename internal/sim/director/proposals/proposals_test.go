package proposals

import (
	"testing"

	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/director/threats"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/station"
)

func snap() station.Snapshot {
	return station.Snapshot{
		Places: []station.Place{{ID: "cargo", Name: "Cargo Bay"}, {ID: "eng", Name: "Engineering"}},
		Crew:   []station.Crew{{ID: "rook", Name: "Rook", Place: "cargo", Alive: true, HP: 100}},
	}
}

func TestFromEventsTable(t *testing.T) {
	events := []station.Event{
		{ID: "e1", Tick: 7, Actor: "rook", Place: "cargo", Payload: station.CrewDamage{Amount: 5}},
		{ID: "e2", Tick: 7, Actor: "ghost", Place: "eng", Payload: station.CrewDeath{}},
		{ID: "e3", Tick: 7, Actor: "rook", Place: "cargo", Payload: station.CrewMove{From: "eng", To: "cargo"}},
		{ID: "e4", Tick: 7, Place: "eng", Payload: station.SystemAction{}},
		{ID: "e5", Tick: 7, Place: "eng", Payload: station.SystemAlert{System: "thermal", Message: "Thermal spike."}},
		{ID: "e6", Tick: 7, Place: "eng"},
	}
	got := FromEvents(events, snap(), station.SuppressedSet{}, 7, interest.NewRecency())
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}
	want := []struct {
		msg   string
		prio  interest.Priority
		score int
	}{
		{"BIO-MONITOR ALERT: Rook taking damage in Cargo Bay!", interest.PriorityHigh, 15},
		{"ASSET LOST: Crew expired in Engineering.", interest.PriorityCritical, 15},
		{"System action executed.", interest.PriorityMedium, 10},
		{"Thermal spike.", interest.PriorityMedium, 10},
	}
	for i, w := range want {
		c := got[i]
		if c.Message != w.msg || c.Priority != w.prio || c.Score != w.score || c.Kind != KindSim {
			t.Fatalf("candidate %d: got %q %s %d, want %q %s %d", i, c.Message, c.Priority, c.Score, w.msg, w.prio, w.score)
		}
	}
	if got[0].Tag != "sim:CREW_DAMAGE" || got[0].NoveltyTag != "sim:CREW_DAMAGE:cargo" {
		t.Fatalf("unexpected tags %q %q", got[0].Tag, got[0].NoveltyTag)
	}
}

func TestFromEventsSuppressedAlert(t *testing.T) {
	events := []station.Event{{Place: "eng", Payload: station.SystemAlert{System: "thermal"}}}
	if got := FromEvents(events, snap(), station.SuppressedSet{"thermal": true}, 3, interest.NewRecency()); len(got) != 0 {
		t.Fatalf("suppressed alert should be dropped, got %+v", got)
	}
	if got := FromEvents(events, snap(), nil, 3, interest.NewRecency()); len(got) != 1 {
		t.Fatalf("nil suppressor should drop nothing")
	}
}

func TestFromEventsRecency(t *testing.T) {
	rec := interest.NewRecency()
	rec.Mark("sim:DOOR_OPENED", 98)
	rec.Mark("sim:DOOR_OPENED:cargo", 98)
	events := []station.Event{{Place: "cargo", Payload: station.DoorOpened{Door: "d1"}}}
	got := FromEvents(events, snap(), nil, 100, rec)
	// 1+0+2+1, novelty 0, spam 2
	if got[0].Score != 2 || got[0].Features.SpamPenalty != 2 || got[0].Features.Novelty != 0 {
		t.Fatalf("unexpected features %+v score %d", got[0].Features, got[0].Score)
	}
	if got[0].Tick != 100 || got[0].ID == "" {
		t.Fatalf("tick/id not defaulted: %+v", got[0])
	}
}

func TestFromThreat(t *testing.T) {
	rs := threats.ReadyStep{
		DefID:     "scrubber_failure",
		StepIndex: 1,
		Target:    "quarters",
		Step: threats.Step{
			Name:     "drop",
			Priority: interest.PriorityMedium,
			Message:  "[WARNING] {TARGET}: O2 efficiency dropping.",
			Features: interest.Partial{Stakes: 2, Dilemma: 2, Clarity: 3, Proximity: 3},
			Effects:  []effects.Template{{Kind: effects.KindAdjustO2, Delta: -15}},
		},
	}
	rec := interest.NewRecency()
	rec.Mark("threat:scrubber_failure", 40)
	c := FromThreat(rs, 50, rec)
	if c.Message != "[WARNING] QUARTERS: O2 efficiency dropping." {
		t.Fatalf("message=%q", c.Message)
	}
	// 10 + novelty 2 (step unseen) - spam 1
	if c.Score != 11 {
		t.Fatalf("score=%d features=%+v", c.Score, c.Features)
	}
	if len(c.Effects) != 1 || c.Effects[0].(effects.AdjustO2).Place != "quarters" {
		t.Fatalf("effects not bound: %+v", c.Effects)
	}
	if tags := c.Tags(); len(tags) != 2 || tags[1] != "threat:scrubber_failure:drop" {
		t.Fatalf("tags=%v", tags)
	}
}

func TestFromPressure(t *testing.T) {
	rec := interest.NewRecency()
	comms := FromPressure(Pressure{Channel: "social", Event: "whisper_campaign", Actor: "rook", Message: "psst"}, 5, rec)
	if comms.Score != 10 || comms.Priority != interest.PriorityMedium || comms.Kind != KindPressure {
		t.Fatalf("comms candidate %+v", comms)
	}
	sensor := FromPressure(Pressure{Channel: "epistemic", Event: "sensor_conflict", Sensor: true}, 5, rec)
	if sensor.Score != 8 {
		t.Fatalf("sensor score=%d", sensor.Score)
	}
	if sensor.Tag != "pressure:epistemic:sensor_conflict" {
		t.Fatalf("tag=%q", sensor.Tag)
	}
}
