// Package epistemic generates pressure on what the crew believes about the
// station: conflicting sensor readings, voiced doubts and log audits.
package epistemic

import (
	"fmt"
	"strings"

	"paranoia.ai/internal/sim/director/pressure"
	"paranoia.ai/internal/sim/director/proposals"
	"paranoia.ai/internal/sim/director/suspicion"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

const (
	EventSensorConflict = "sensor_conflict"
	EventDoubtVoiced    = "doubt_voiced"
	EventAuditPrompt    = "audit_prompt"

	ReasonDoubtVoiced = "DOUBT_VOICED"
)

var doubtPhrases = []string{
	"Are we sure MOTHER is telling us the truth?",
	"These readings don't match what I saw with my own eyes.",
	"Something feels off about how the systems are responding.",
	"I checked the logs. The timestamps don't add up.",
	"Why does MOTHER keep redirecting us from that section?",
	"The temperature readings and what I felt were completely different.",
	"Has anyone else noticed MOTHER's responses seem... delayed?",
	"I'm starting to think we're not getting the full picture.",
}

var sensorSystems = []string{"environmental", "thermal", "air", "power"}

// Propose returns at most one epistemic proposal. The audit prompt is only
// offered when the focus crew member already distrusts MOTHER.
func Propose(ctx proposals.Context) []proposals.Pressure {
	focus, ok := ctx.PickFocus()
	if !ok {
		return nil
	}
	living := ctx.Snapshot.Living()

	pool := []string{EventSensorConflict, EventDoubtVoiced}
	if focus.Tier == suspicion.TierSuspicious {
		pool = append(pool, EventAuditPrompt)
	}
	event, _ := rng.Pick(ctx.RNG, pool)

	switch event {
	case EventSensorConflict:
		return sensorConflict(ctx, living)
	case EventAuditPrompt:
		return auditPrompt(ctx, focus.Crew)
	default:
		return doubtVoiced(ctx, living)
	}
}

func sensorConflict(ctx proposals.Context, living []station.Crew) []proposals.Pressure {
	var places []string
	seen := map[string]bool{}
	for _, c := range living {
		if c.Place != "" && !seen[c.Place] {
			seen[c.Place] = true
			places = append(places, c.Place)
		}
	}
	place, ok := rng.Pick(ctx.RNG, places)
	if !ok {
		return nil
	}
	system, _ := rng.Pick(ctx.RNG, sensorSystems)
	// always below 0.6 so the reading never looks trustworthy
	confidence := 0.3 + ctx.RNG.Float64()*0.25

	var involved []string
	for _, c := range living {
		if c.Place == place {
			involved = append(involved, c.ID)
		}
	}
	reading := effects.Reading{
		ID:         ctx.ReadingID("conflict"),
		Tick:       ctx.Tick,
		Place:      place,
		System:     system,
		Confidence: confidence,
		Message:    fmt.Sprintf("[SENSOR] %s: %s readings conflict with expected baseline. Discrepancy unresolved.", strings.ToUpper(place), system),
		Source:     "sensor",
	}
	doubt := effects.Doubt{
		ID:           ctx.DoubtID(),
		Topic:        fmt.Sprintf("Conflicting %s readings in %s", system, place),
		CreatedTick:  ctx.Tick,
		Severity:     1,
		InvolvedCrew: involved,
		System:       system,
	}
	return []proposals.Pressure{{
		ID:      reading.ID,
		Channel: string(pressure.Epistemic),
		Event:   EventSensorConflict,
		Actor:   "SYSTEM",
		Message: reading.Message,
		Sensor:  true,
		Effects: []effects.Effect{effects.SensorReading{Reading: reading}, effects.RaiseDoubt{Doubt: doubt}},
	}}
}

func auditPrompt(ctx proposals.Context, speaker station.Crew) []proposals.Pressure {
	text := fmt.Sprintf("[BROADCAST] %s: I'm going to check the system logs. Something doesn't add up.", strings.ToUpper(speaker.ID))
	msg := effects.CommsMessage{
		ID:         ctx.CommsID(effects.CommsBroadcast),
		Tick:       ctx.Tick,
		Kind:       effects.CommsBroadcast,
		From:       speaker.ID,
		Place:      speaker.Place,
		Text:       text,
		Confidence: 0.7,
	}
	doubt := effects.Doubt{
		ID:           ctx.DoubtID(),
		Topic:        speaker.ID + " intends to check system logs",
		CreatedTick:  ctx.Tick,
		Severity:     2,
		InvolvedCrew: []string{speaker.ID},
	}
	return []proposals.Pressure{{
		ID:      msg.ID,
		Channel: string(pressure.Epistemic),
		Event:   EventAuditPrompt,
		Actor:   speaker.ID,
		Message: text,
		Effects: []effects.Effect{effects.Comms{Message: msg}, effects.RaiseDoubt{Doubt: doubt}},
	}}
}

func doubtVoiced(ctx proposals.Context, living []station.Crew) []proposals.Pressure {
	speaker, ok := rng.Pick(ctx.RNG, living)
	if !ok {
		return nil
	}
	phrase, _ := rng.Pick(ctx.RNG, doubtPhrases)
	text := fmt.Sprintf("[LOG] %s: %s", strings.ToUpper(speaker.ID), phrase)
	msg := effects.CommsMessage{
		ID:         ctx.CommsID(effects.CommsLog),
		Tick:       ctx.Tick,
		Kind:       effects.CommsLog,
		From:       speaker.ID,
		Place:      speaker.Place,
		Text:       text,
		Confidence: 0.5,
	}
	return []proposals.Pressure{{
		ID:      msg.ID,
		Channel: string(pressure.Epistemic),
		Event:   EventDoubtVoiced,
		Actor:   speaker.ID,
		Message: text,
		Effects: []effects.Effect{
			effects.Comms{Message: msg},
			effects.SuspicionDelta{Delta: 2, Reason: ReasonDoubtVoiced, Detail: speaker.ID + " expresses doubt about MOTHER"},
		},
	}}
}
