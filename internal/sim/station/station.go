// Package station holds the read-only view of the station that the director
// consumes each tick: places, crew, per-crew beliefs and raw simulation events.
// The data is owned by external systems; the director never mutates it.
package station

import "sort"

type Place struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	Hazardous bool   `json:"hazardous,omitempty"`
}

type Crew struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Place  string `json:"place"`
	Alive  bool   `json:"alive"`
	HP     int    `json:"hp"`
	Stress int    `json:"stress"`
}

// Belief is one crew member's view of MOTHER (the station AI).
type Belief struct {
	MotherReliable float64            `json:"mother_reliable"` // 0..1
	TamperEvidence float64            `json:"tamper_evidence"` // 0..100
	Rumors         map[string]float64 `json:"rumors,omitempty"`
}

type Snapshot struct {
	Places  []Place           `json:"places"`
	Crew    []Crew            `json:"crew"`
	Beliefs map[string]Belief `json:"beliefs,omitempty"`
}

// Pacing is the externally tracked boredom/tension pair (0..10 each).
type Pacing struct {
	Boredom int `json:"boredom"`
	Tension int `json:"tension"`
}

// Suppressor reports whether a subsystem's alerts are muted right now.
type Suppressor interface {
	IsSuppressed(system string) bool
}

type SuppressorFunc func(system string) bool

func (f SuppressorFunc) IsSuppressed(system string) bool { return f(system) }

// SuppressedSet is a Suppressor over a fixed set of system ids.
type SuppressedSet map[string]bool

func (s SuppressedSet) IsSuppressed(system string) bool { return s[system] }

func (s Snapshot) Place(id string) (Place, bool) {
	for _, p := range s.Places {
		if p.ID == id {
			return p, true
		}
	}
	return Place{}, false
}

func (s Snapshot) PlaceName(id string) string {
	if p, ok := s.Place(id); ok && p.Name != "" {
		return p.Name
	}
	return id
}

func (s Snapshot) CrewName(id string) string {
	for _, c := range s.Crew {
		if c.ID == id && c.Name != "" {
			return c.Name
		}
	}
	return ""
}

// Living returns living crew sorted by id, so callers iterate in a stable order
// whatever order the collaborator built the snapshot in.
func (s Snapshot) Living() []Crew {
	out := make([]Crew, 0, len(s.Crew))
	for _, c := range s.Crew {
		if c.Alive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s Snapshot) Belief(crewID string) (Belief, bool) {
	b, ok := s.Beliefs[crewID]
	return b, ok
}

// PlacesInSector returns place ids in snapshot order.
func (s Snapshot) PlacesInSector(sector string) []string {
	var out []string
	for _, p := range s.Places {
		if p.Sector == sector {
			out = append(out, p.ID)
		}
	}
	return out
}

func (s Snapshot) PlaceIDs() []string {
	out := make([]string, 0, len(s.Places))
	for _, p := range s.Places {
		out = append(out, p.ID)
	}
	return out
}
