package threats

import (
	"fmt"
	"strings"

	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

// TargetRule resolves where a newly activated threat strikes. It must be a
// pure function of the snapshot and the RNG.
type TargetRule interface {
	PickTarget(s station.Snapshot, r *rng.RNG) (string, bool)
}

type TargetFunc func(s station.Snapshot, r *rng.RNG) (string, bool)

func (f TargetFunc) PickTarget(s station.Snapshot, r *rng.RNG) (string, bool) { return f(s, r) }

type AnyPlace struct{}

func (AnyPlace) PickTarget(s station.Snapshot, r *rng.RNG) (string, bool) {
	return rng.Pick(r, s.PlaceIDs())
}

type InSector struct{ Sector string }

func (t InSector) PickTarget(s station.Snapshot, r *rng.RNG) (string, bool) {
	return rng.Pick(r, s.PlacesInSector(t.Sector))
}

type FixedPlace struct{ Place string }

func (t FixedPlace) PickTarget(station.Snapshot, *rng.RNG) (string, bool) {
	return t.Place, t.Place != ""
}

// Occupied prefers a place holding living crew and falls back to any place.
type Occupied struct{}

func (Occupied) PickTarget(s station.Snapshot, r *rng.RNG) (string, bool) {
	var places []string
	for _, c := range s.Living() {
		if c.Place != "" {
			places = append(places, c.Place)
		}
	}
	if len(places) > 0 {
		return rng.Pick(r, places)
	}
	return AnyPlace{}.PickTarget(s, r)
}

// ParseTargetRule understands "any", "occupied", "sector:<name>" and "place:<id>".
func ParseTargetRule(spec string) (TargetRule, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "any":
		return AnyPlace{}, nil
	case spec == "occupied":
		return Occupied{}, nil
	case strings.HasPrefix(spec, "sector:"):
		name := strings.TrimPrefix(spec, "sector:")
		if name == "" {
			return nil, fmt.Errorf("target %q: empty sector", spec)
		}
		return InSector{Sector: name}, nil
	case strings.HasPrefix(spec, "place:"):
		id := strings.TrimPrefix(spec, "place:")
		if id == "" {
			return nil, fmt.Errorf("target %q: empty place", spec)
		}
		return FixedPlace{Place: id}, nil
	default:
		return nil, fmt.Errorf("unknown target rule %q", spec)
	}
}
