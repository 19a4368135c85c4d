// Package proposals turns threat steps, raw station events and pressure
// proposals into scored headline candidates.
package proposals

import (
	"fmt"

	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/director/threats"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/station"
)

type Kind string

const (
	KindThreat   Kind = "THREAT"
	KindSim      Kind = "SIM"
	KindPressure Kind = "PRESSURE"
)

// Candidate is tick-local. Only its tags outlive the tick, through Recency.
type Candidate struct {
	ID         string
	Tick       uint64
	Priority   interest.Priority
	Message    string
	Tag        string // spam and suppression
	NoveltyTag string
	Kind       Kind
	Features   interest.Features
	Score      int
	Effects    []effects.Effect

	// Set for threat candidates only.
	DefID     string
	Step      string
	StepIndex int
	Target    string
}

// Tags returns the tags to mark when the candidate is shown or executed.
func (c Candidate) Tags() []string {
	if c.NoveltyTag == "" || c.NoveltyTag == c.Tag {
		return []string{c.Tag}
	}
	return []string{c.Tag, c.NoveltyTag}
}

func build(partial interest.Partial, tag, noveltyTag string, now uint64, rec *interest.Recency) (interest.Features, int) {
	f := partial.Resolve(rec.Novelty(noveltyTag, now), rec.SpamPenalty(tag, now))
	return f, interest.Score(f)
}

// FromThreat scores a ready threat step. Effects are bound to the line's target.
func FromThreat(rs threats.ReadyStep, now uint64, rec *interest.Recency) Candidate {
	tag := threats.LineTag(rs.DefID)
	novelty := threats.StepTag(rs.DefID, rs.Step.Name)
	f, score := build(rs.Step.Features, tag, novelty, now, rec)
	return Candidate{
		ID:         fmt.Sprintf("%s@%d", novelty, now),
		Tick:       now,
		Priority:   rs.Step.Priority,
		Message:    rs.Step.Render(rs.Target),
		Tag:        tag,
		NoveltyTag: novelty,
		Kind:       KindThreat,
		Features:   f,
		Score:      score,
		Effects:    effects.BindAll(rs.Step.Effects, rs.Target),
		DefID:      rs.DefID,
		Step:       rs.Step.Name,
		StepIndex:  rs.StepIndex,
		Target:     rs.Target,
	}
}

type simRule struct {
	priority interest.Priority
	features interest.Partial
	message  func(ev station.Event, name, place string) string
}

var simTable = map[station.EventKind]simRule{
	station.KindCrewDamage: {
		priority: interest.PriorityHigh,
		features: interest.Partial{Stakes: 4, Dilemma: 3, Clarity: 3, Proximity: 3},
		message: func(_ station.Event, name, place string) string {
			return fmt.Sprintf("BIO-MONITOR ALERT: %s taking damage in %s!", name, place)
		},
	},
	station.KindCrewDeath: {
		priority: interest.PriorityCritical,
		features: interest.Partial{Stakes: 5, Dilemma: 2, Clarity: 3, Proximity: 3},
		message: func(_ station.Event, name, place string) string {
			return fmt.Sprintf("ASSET LOST: %s expired in %s.", name, place)
		},
	},
	station.KindCargoYield: {
		priority: interest.PriorityLow,
		features: interest.Partial{Stakes: 2, Dilemma: 1, Clarity: 2, Proximity: 2},
		message: func(_ station.Event, _, place string) string {
			return fmt.Sprintf("Extraction yield logged in %s.", place)
		},
	},
	station.KindSystemAction: {
		priority: interest.PriorityMedium,
		features: interest.Partial{Stakes: 2, Dilemma: 1, Clarity: 3, Proximity: 2},
		message: func(ev station.Event, _, _ string) string {
			if p, ok := ev.Payload.(station.SystemAction); ok && p.Message != "" {
				return p.Message
			}
			return "System action executed."
		},
	},
	station.KindDoorOpened: {
		priority: interest.PriorityLow,
		features: interest.Partial{Stakes: 1, Dilemma: 0, Clarity: 2, Proximity: 1},
		message: func(_ station.Event, _, place string) string {
			return fmt.Sprintf("Door cycle detected near %s.", place)
		},
	},
	station.KindSystemAlert: {
		priority: interest.PriorityMedium,
		features: interest.Partial{Stakes: 2, Dilemma: 1, Clarity: 3, Proximity: 2},
		message: func(ev station.Event, _, _ string) string {
			if p, ok := ev.Payload.(station.SystemAlert); ok && p.Message != "" {
				return p.Message
			}
			return "System alert."
		},
	},
}

func SimTag(kind station.EventKind) string { return "sim:" + string(kind) }

func SimNoveltyTag(kind station.EventKind, place string) string {
	return "sim:" + string(kind) + ":" + place
}

// FromEvents maps raw station events through the fixed sim table. Kinds not in
// the table, and alerts from suppressed systems, produce nothing.
func FromEvents(events []station.Event, snap station.Snapshot, sup station.Suppressor, now uint64, rec *interest.Recency) []Candidate {
	var out []Candidate
	for i, ev := range events {
		kind := ev.Kind()
		rule, ok := simTable[kind]
		if !ok {
			continue
		}
		if alert, ok := ev.Payload.(station.SystemAlert); ok && alert.System != "" && sup != nil && sup.IsSuppressed(alert.System) {
			continue
		}
		name := snap.CrewName(ev.Actor)
		if name == "" {
			name = "Crew"
		}
		tag := SimTag(kind)
		novelty := SimNoveltyTag(kind, ev.Place)
		f, score := build(rule.features, tag, novelty, now, rec)
		id := ev.ID
		if id == "" {
			id = fmt.Sprintf("%s@%d#%d", tag, now, i)
		}
		tick := ev.Tick
		if tick == 0 {
			tick = now
		}
		out = append(out, Candidate{
			ID:         id,
			Tick:       tick,
			Priority:   rule.priority,
			Message:    rule.message(ev, name, snap.PlaceName(ev.Place)),
			Tag:        tag,
			NoveltyTag: novelty,
			Kind:       KindSim,
			Features:   f,
			Score:      score,
		})
	}
	return out
}

// Pressure is what a social or epistemic generator proposes. Effects are
// applied whether or not the message wins a headline slot.
type Pressure struct {
	ID      string
	Channel string
	Event   string
	Actor   string
	Message string
	// Sensor marks sensor-reading proposals, which score lower on clarity.
	Sensor  bool
	Effects []effects.Effect
}

func PressureTag(channel, event string) string { return "pressure:" + channel + ":" + event }

func PressureNoveltyTag(channel, event, actor string) string {
	return "pressure:" + channel + ":" + event + ":" + actor
}

var (
	commsFeatures  = interest.Partial{Stakes: 2, Dilemma: 2, Clarity: 2, Proximity: 2}
	sensorFeatures = interest.Partial{Stakes: 1, Dilemma: 2, Clarity: 1, Proximity: 2}
)

func FromPressure(p Pressure, now uint64, rec *interest.Recency) Candidate {
	partial := commsFeatures
	if p.Sensor {
		partial = sensorFeatures
	}
	tag := PressureTag(p.Channel, p.Event)
	novelty := PressureNoveltyTag(p.Channel, p.Event, p.Actor)
	f, score := build(partial, tag, novelty, now, rec)
	id := p.ID
	if id == "" {
		id = fmt.Sprintf("%s@%d", novelty, now)
	}
	return Candidate{
		ID:         id,
		Tick:       now,
		Priority:   interest.PriorityMedium,
		Message:    p.Message,
		Tag:        tag,
		NoveltyTag: novelty,
		Kind:       KindPressure,
		Features:   f,
		Score:      score,
		Effects:    p.Effects,
	}
}
