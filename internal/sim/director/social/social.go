// Package social generates crew-to-crew pressure: whispers, loyalty tests and
// open confrontations about MOTHER.
package social

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
	EventWhisper       = "whisper_campaign"
	EventLoyaltyTest   = "loyalty_test"
	EventConfrontation = "confrontation"

	ReasonConfrontation = "CONFRONTATION"

	// Tamper evidence above this turns a confrontation into an accusation.
	evidenceThreshold = 30
)

// Propose picks a focus crew member and one social event around them.
// It returns nothing when nobody qualifies.
func Propose(ctx proposals.Context) []proposals.Pressure {
	focus, ok := ctx.PickFocus()
	if !ok {
		return nil
	}
	living := ctx.Snapshot.Living()

	var pool []string
	if len(living) >= 2 {
		pool = append(pool, EventWhisper)
	}
	pool = append(pool, EventLoyaltyTest, EventConfrontation)
	event, _ := rng.Pick(ctx.RNG, pool)

	switch event {
	case EventWhisper:
		return whisper(ctx, focus.Crew, living)
	case EventLoyaltyTest:
		return loyaltyTest(ctx, focus.Crew)
	default:
		return confrontation(ctx, focus.Crew)
	}
}

func whisper(ctx proposals.Context, speaker station.Crew, living []station.Crew) []proposals.Pressure {
	others := make([]station.Crew, 0, len(living))
	for _, c := range living {
		if c.ID != speaker.ID {
			others = append(others, c)
		}
	}
	listener, ok := rng.Pick(ctx.RNG, others)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("[WHISPER] %s: Something's not right with MOTHER's readings.", strings.ToUpper(speaker.ID))
	msg := effects.CommsMessage{
		ID:         ctx.CommsID(effects.CommsWhisper),
		Tick:       ctx.Tick,
		Kind:       effects.CommsWhisper,
		From:       speaker.ID,
		To:         listener.ID,
		Place:      speaker.Place,
		Topic:      suspicion.RogueRumor,
		Text:       text,
		Confidence: 0.45,
	}
	return []proposals.Pressure{{
		ID:      msg.ID,
		Channel: string(pressure.Social),
		Event:   EventWhisper,
		Actor:   speaker.ID,
		Message: text,
		Effects: []effects.Effect{effects.Comms{Message: msg}},
	}}
}

func loyaltyTest(ctx proposals.Context, speaker station.Crew) []proposals.Pressure {
	text := fmt.Sprintf("[BROADCAST] %s: Can anyone confirm MOTHER's last report was accurate?", strings.ToUpper(speaker.ID))
	msg := broadcast(ctx, speaker, text, 0.6)
	doubt := effects.Doubt{
		ID:           ctx.DoubtID(),
		Topic:        speaker.ID + " questions MOTHER reliability",
		CreatedTick:  ctx.Tick,
		Severity:     1,
		InvolvedCrew: []string{speaker.ID},
	}
	return []proposals.Pressure{{
		ID:      msg.ID,
		Channel: string(pressure.Social),
		Event:   EventLoyaltyTest,
		Actor:   speaker.ID,
		Message: text,
		Effects: []effects.Effect{effects.Comms{Message: msg}, effects.RaiseDoubt{Doubt: doubt}},
	}}
}

func confrontation(ctx proposals.Context, speaker station.Crew) []proposals.Pressure {
	var text string
	if b, ok := ctx.Snapshot.Belief(speaker.ID); ok && b.TamperEvidence > evidenceThreshold {
		text = fmt.Sprintf("[BROADCAST] %s: I've found evidence of tampering. MOTHER is manipulating us.", strings.ToUpper(speaker.ID))
	} else {
		text = fmt.Sprintf("[BROADCAST] %s: The sensor data doesn't add up. Something is being hidden from us.", strings.ToUpper(speaker.ID))
	}
	msg := broadcast(ctx, speaker, text, 0.7)
	return []proposals.Pressure{{
		ID:      msg.ID,
		Channel: string(pressure.Social),
		Event:   EventConfrontation,
		Actor:   speaker.ID,
		Message: text,
		Effects: []effects.Effect{
			effects.Comms{Message: msg},
			effects.SuspicionDelta{Delta: 3, Reason: ReasonConfrontation, Detail: speaker.ID + " confronts crew about MOTHER"},
		},
	}}
}

func broadcast(ctx proposals.Context, speaker station.Crew, text string, confidence float64) effects.CommsMessage {
	return effects.CommsMessage{
		ID:         ctx.CommsID(effects.CommsBroadcast),
		Tick:       ctx.Tick,
		Kind:       effects.CommsBroadcast,
		From:       speaker.ID,
		Place:      speaker.Place,
		Topic:      suspicion.RogueRumor,
		Text:       text,
		Confidence: confidence,
	}
}
