// Package suspicion reduces per-crew beliefs about MOTHER to one scalar and
// picks the crew member that pressure events center on.
package suspicion

import (
	"math"

	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

// RogueRumor is the rumor topic that counts toward suspicion.
const RogueRumor = "mother_rogue"

// Aggregator turns a snapshot into a suspicion level. Implementations must be
// monotonic in distrust and evidence and stay within 0..100.
type Aggregator interface {
	Aggregate(s station.Snapshot) int
}

type AggregatorFunc func(s station.Snapshot) int

func (f AggregatorFunc) Aggregate(s station.Snapshot) int { return f(s) }

// BeliefAggregator weighs tamper evidence (40), distrust (35) and the rogue
// rumor (25) per living crew member, then averages over living crew.
// Crew without a belief record count as zero.
type BeliefAggregator struct{}

func (BeliefAggregator) Aggregate(s station.Snapshot) int {
	living := s.Living()
	if len(living) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range living {
		b, ok := s.Belief(c.ID)
		if !ok {
			continue
		}
		tamper := clamp(b.TamperEvidence, 0, 100) / 100 * 40
		distrust := (1 - clamp(b.MotherReliable, 0, 1)) * 35
		rumor := clamp(b.Rumors[RogueRumor], 0, 1) * 25
		total += tamper + distrust + rumor
	}
	return int(math.Round(total / float64(len(living))))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type Tier int

const (
	TierNone Tier = iota
	TierUneasy
	TierSuspicious
)

func (t Tier) String() string {
	switch t {
	case TierUneasy:
		return "uneasy"
	case TierSuspicious:
		return "suspicious"
	default:
		return "none"
	}
}

type FocusConfig struct {
	ReliableBelow float64 // suspicious when MotherReliable < this
	TamperAbove   float64 // suspicious when TamperEvidence > this
	StressAtLeast int     // uneasy when Stress >= this
	HPBelow       int     // uneasy when HP < this
}

func DefaultFocusConfig() FocusConfig {
	return FocusConfig{ReliableBelow: 0.5, TamperAbove: 20, StressAtLeast: 40, HPBelow: 50}
}

type Focus struct {
	Crew station.Crew
	Tier Tier
}

// PickFocus prefers crew whose beliefs already show distrust, then crew under
// stress, injured, or standing in a hazardous place. hazards lists extra
// hazardous place ids (active threat targets). No candidate means no focus.
func PickFocus(s station.Snapshot, hazards []string, cfg FocusConfig, r *rng.RNG) (Focus, bool) {
	living := s.Living()
	var suspicious []station.Crew
	for _, c := range living {
		b, ok := s.Belief(c.ID)
		if !ok {
			continue
		}
		if b.MotherReliable < cfg.ReliableBelow || b.TamperEvidence > cfg.TamperAbove {
			suspicious = append(suspicious, c)
		}
	}
	if c, ok := rng.Pick(r, suspicious); ok {
		return Focus{Crew: c, Tier: TierSuspicious}, true
	}

	hot := map[string]bool{}
	for _, p := range s.Places {
		if p.Hazardous {
			hot[p.ID] = true
		}
	}
	for _, id := range hazards {
		hot[id] = true
	}
	var uneasy []station.Crew
	for _, c := range living {
		if c.Stress >= cfg.StressAtLeast || c.HP < cfg.HPBelow || hot[c.Place] {
			uneasy = append(uneasy, c)
		}
	}
	if c, ok := rng.Pick(r, uneasy); ok {
		return Focus{Crew: c, Tier: TierUneasy}, true
	}
	return Focus{}, false
}
