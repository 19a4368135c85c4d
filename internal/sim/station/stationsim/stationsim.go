// Package stationsim is a small station model that hosts the director in the
// binaries and integration tests. It owns room physics, crew movement and
// beliefs, applies director effects, and reports raw events each tick.
package stationsim

import (
	"fmt"
	"sort"
	"strings"

	"paranoia.ai/internal/sim/director/arbiter"
	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/director/suspicion"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

const (
	maxPacing = 10

	damageSuffocation = 8
	damageBurn        = 12
	glitchChance      = 3 // percent per crew member per tick

	// tamper evidence gained by crew who witness a fault first hand
	witnessReading = 8.0
	witnessGlitch  = 3.0

	// LogLimit caps each of the public logs; the oldest entries drop first.
	LogLimit = 64
)

type Room struct {
	O2          int
	Temperature int
	OnFire      bool
}

type Systems struct {
	Power         int
	Comms         int
	DoorDelay     int
	BlackoutTicks int
	Suppressed    map[string]int // system -> ticks left
}

type CrewSpec struct {
	ID    string
	Name  string
	Route []string // places visited in order, looping
}

type Layout struct {
	Places    []station.Place
	Crew      []CrewSpec
	MoveEvery int
	YieldAt   string // place producing cargo
}

func DefaultLayout() Layout {
	return Layout{
		Places: []station.Place{
			{ID: "bridge", Name: "Bridge", Sector: "command"},
			{ID: "quarters", Name: "Crew Quarters", Sector: "habitation"},
			{ID: "mess", Name: "Mess Hall", Sector: "habitation"},
			{ID: "medbay", Name: "Medbay", Sector: "habitation"},
			{ID: "engineering", Name: "Engineering", Sector: "engineering"},
			{ID: "cargo", Name: "Cargo Bay", Sector: "industrial"},
		},
		Crew: []CrewSpec{
			{ID: "vega", Name: "Vega", Route: []string{"bridge", "mess", "quarters"}},
			{ID: "roth", Name: "Roth", Route: []string{"engineering", "cargo", "mess"}},
			{ID: "ilse", Name: "Ilse", Route: []string{"medbay", "quarters", "bridge"}},
			{ID: "okafor", Name: "Okafor", Route: []string{"cargo", "engineering", "quarters"}},
		},
		MoveEvery: 12,
		YieldAt:   "cargo",
	}
}

type crewState struct {
	station.Crew
	route    []string
	leg      int
	nextMove uint64
}

// Sim is single-threaded; the host drives Step, Snapshot and Apply from one
// goroutine.
type Sim struct {
	layout  Layout
	rooms   map[string]*Room
	sys     Systems
	crew    []*crewState
	beliefs map[string]station.Belief
	pacing  station.Pacing
	rng     *rng.RNG
	seq     uint64

	// Recent director output, newest last, at most LogLimit each.
	Comms     []effects.CommsMessage
	Readings  []effects.Reading
	Doubts    []effects.Doubt
	Suspicion []effects.SuspicionDelta
}

func New(layout Layout, seed int64) *Sim {
	if layout.MoveEvery <= 0 {
		layout.MoveEvery = 12
	}
	s := &Sim{
		layout:  layout,
		rooms:   make(map[string]*Room, len(layout.Places)),
		sys:     Systems{Power: 100, Comms: 100, Suppressed: map[string]int{}},
		beliefs: map[string]station.Belief{},
		rng:     rng.New(seed),
	}
	for _, p := range layout.Places {
		s.rooms[p.ID] = &Room{O2: 100, Temperature: 20}
	}
	for i, c := range layout.Crew {
		start := ""
		if len(c.Route) > 0 {
			start = c.Route[0]
		}
		s.crew = append(s.crew, &crewState{
			Crew:     station.Crew{ID: c.ID, Name: c.Name, Place: start, Alive: true, HP: 100},
			route:    c.Route,
			nextMove: uint64(layout.MoveEvery + i*3),
		})
		s.beliefs[c.ID] = station.Belief{MotherReliable: 0.9, Rumors: map[string]float64{}}
	}
	return s
}

func (s *Sim) Room(id string) (Room, bool) {
	r, ok := s.rooms[id]
	if !ok {
		return Room{}, false
	}
	return *r, true
}

func (s *Sim) Systems() Systems { return s.sys }

func (s *Sim) Pacing() station.Pacing { return s.pacing }

func (s *Sim) hazardous(id string) bool {
	r, ok := s.rooms[id]
	return ok && (r.OnFire || r.O2 < 60 || r.Temperature > 40)
}

func (s *Sim) Snapshot() station.Snapshot {
	snap := station.Snapshot{
		Places:  make([]station.Place, 0, len(s.layout.Places)),
		Crew:    make([]station.Crew, 0, len(s.crew)),
		Beliefs: make(map[string]station.Belief, len(s.beliefs)),
	}
	for _, p := range s.layout.Places {
		p.Hazardous = s.hazardous(p.ID)
		snap.Places = append(snap.Places, p)
	}
	for _, c := range s.crew {
		snap.Crew = append(snap.Crew, c.Crew)
	}
	for id, b := range s.beliefs {
		rumors := make(map[string]float64, len(b.Rumors))
		for k, v := range b.Rumors {
			rumors[k] = v
		}
		b.Rumors = rumors
		snap.Beliefs[id] = b
	}
	return snap
}

// IsSuppressed reports muted alert systems. Sensors are dark during a blackout.
func (s *Sim) IsSuppressed(system string) bool {
	if s.sys.Suppressed[system] > 0 {
		return true
	}
	if s.sys.BlackoutTicks > 0 && (system == "air" || system == "thermal") {
		return true
	}
	return false
}

func (s *Sim) SuppressAlerts(system string, ticks int) {
	s.sys.Suppressed[system] = max(s.sys.Suppressed[system], ticks)
}

// SuppressedSystems lists every system IsSuppressed currently reports, sorted.
func (s *Sim) SuppressedSystems() []string {
	seen := map[string]bool{}
	for k, v := range s.sys.Suppressed {
		if v > 0 {
			seen[k] = true
		}
	}
	if s.sys.BlackoutTicks > 0 {
		seen["air"] = true
		seen["thermal"] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Apply implements effects.Dispatcher.
func (s *Sim) Apply(tick uint64, e effects.Effect) {
	switch v := e.(type) {
	case effects.DoorDelay:
		s.sys.DoorDelay = max(s.sys.DoorDelay, v.Ticks)
	case effects.SetComms:
		s.sys.Comms = clampInt(v.Percent, 0, 100)
	case effects.SetPower:
		s.sys.Power = clampInt(v.Percent, 0, 100)
	case effects.Blackout:
		s.sys.BlackoutTicks = max(s.sys.BlackoutTicks, v.Ticks)
	case effects.AdjustO2:
		if r, ok := s.rooms[v.Place]; ok {
			r.O2 = clampInt(r.O2+v.Delta, 0, 100)
		}
	case effects.IgniteRoom:
		if r, ok := s.rooms[v.Place]; ok {
			r.OnFire = true
			r.Temperature += 100
		}
	case effects.Comms:
		s.Comms = appendBounded(s.Comms, v.Message)
		s.hearComms(v.Message)
	case effects.SensorReading:
		s.Readings = appendBounded(s.Readings, v.Reading)
		s.witness(v.Reading.Place, witnessReading)
	case effects.RaiseDoubt:
		s.Doubts = appendBounded(s.Doubts, v.Doubt)
	case effects.SuspicionDelta:
		s.Suspicion = appendBounded(s.Suspicion, v)
		s.shiftTrust(v.Delta)
	}
}

func (s *Sim) hearComms(m effects.CommsMessage) {
	if m.Topic != suspicion.RogueRumor {
		return
	}
	for _, c := range s.crew {
		if !c.Alive || c.ID == m.From {
			continue
		}
		if m.To != "" && c.ID != m.To {
			continue
		}
		b := s.beliefs[c.ID]
		if b.Rumors == nil {
			b.Rumors = map[string]float64{}
		}
		b.Rumors[suspicion.RogueRumor] = clampFloat(b.Rumors[suspicion.RogueRumor]+m.Confidence*0.25, 0, 1)
		s.beliefs[c.ID] = b
	}
}

// shiftTrust spreads a suspicion delta over living crew as lost trust.
func (s *Sim) shiftTrust(delta int) {
	for _, c := range s.crew {
		if !c.Alive {
			continue
		}
		b := s.beliefs[c.ID]
		b.MotherReliable = clampFloat(b.MotherReliable-float64(delta)/100, 0, 1)
		s.beliefs[c.ID] = b
	}
}

// witness records tamper evidence for every living crew member in place.
func (s *Sim) witness(place string, amount float64) {
	for _, c := range s.crew {
		if c.Alive && c.Place == place {
			s.RecordTamper(c.ID, amount)
		}
	}
}

// RecordTamper adds tamper evidence for one crew member (0..100).
func (s *Sim) RecordTamper(crewID string, amount float64) {
	b, ok := s.beliefs[crewID]
	if !ok {
		return
	}
	b.TamperEvidence = clampFloat(b.TamperEvidence+amount, 0, 100)
	s.beliefs[crewID] = b
}

// UpdatePacing moves tension with the severity of what reached the player and
// boredom with whether anything did.
func (s *Sim) UpdatePacing(headlines []arbiter.Headline) {
	severe := false
	for _, h := range headlines {
		if h.Priority >= interest.PriorityHigh {
			severe = true
			break
		}
	}
	if severe {
		s.pacing.Tension = clampInt(s.pacing.Tension+1, 0, maxPacing)
	} else {
		s.pacing.Tension = clampInt(s.pacing.Tension-1, 0, maxPacing)
	}
	if len(headlines) == 0 {
		s.pacing.Boredom = clampInt(s.pacing.Boredom+1, 0, maxPacing)
	} else {
		s.pacing.Boredom = clampInt(s.pacing.Boredom-1, 0, maxPacing)
	}
}

// Step advances physics and crew by one tick and returns the raw events it
// produced, in crew-id order.
func (s *Sim) Step(tick uint64) []station.Event {
	s.stepSystems()
	s.stepRooms()

	var events []station.Event
	crew := append([]*crewState(nil), s.crew...)
	sort.SliceStable(crew, func(i, j int) bool { return crew[i].ID < crew[j].ID })
	for _, c := range crew {
		if !c.Alive {
			continue
		}
		events = append(events, s.stepCrew(tick, c)...)
	}
	for _, p := range s.layout.Places {
		r := s.rooms[p.ID]
		if r.OnFire {
			events = append(events, s.event(tick, "", p.ID, station.SystemAlert{
				System:  "thermal",
				Message: fmt.Sprintf("[ALERT] %s: Fire detected.", strings.ToUpper(p.ID)),
			}))
		} else if r.O2 < 50 {
			events = append(events, s.event(tick, "", p.ID, station.SystemAlert{
				System:  "air",
				Message: fmt.Sprintf("[ALERT] %s: O2 at %d%%.", strings.ToUpper(p.ID), r.O2),
			}))
		}
	}
	return events
}

func (s *Sim) stepSystems() {
	if s.sys.BlackoutTicks > 0 {
		s.sys.BlackoutTicks--
	}
	if s.sys.DoorDelay > 0 {
		s.sys.DoorDelay--
	}
	if s.sys.Comms < 100 {
		s.sys.Comms++
	}
	if s.sys.Power < 100 {
		s.sys.Power++
	}
	for k, v := range s.sys.Suppressed {
		if v <= 1 {
			delete(s.sys.Suppressed, k)
		} else {
			s.sys.Suppressed[k] = v - 1
		}
	}
}

func (s *Sim) stepRooms() {
	for _, p := range s.layout.Places {
		r := s.rooms[p.ID]
		if r.O2 < 100 && s.sys.Power >= 40 {
			r.O2++
		}
		if r.Temperature < 20 {
			r.Temperature++
		}
		if r.Temperature > 20 && !r.OnFire {
			r.Temperature--
		}
		if r.OnFire {
			r.Temperature += 5
			r.O2 = clampInt(r.O2-4, 0, 100)
			if r.O2 < 10 {
				r.OnFire = false
			}
		}
	}
}

func (s *Sim) stepCrew(tick uint64, c *crewState) []station.Event {
	var events []station.Event
	r := s.rooms[c.Place]
	if r != nil {
		if r.O2 < 20 {
			events = append(events, s.damage(tick, c, damageSuffocation, "SUFFOCATION")...)
		}
		if c.Alive && r.Temperature > 50 {
			events = append(events, s.damage(tick, c, damageBurn, "BURN")...)
		}
		if r.O2 < 30 {
			c.Stress += 3
		}
		if r.OnFire {
			c.Stress += 3
		}
		if !s.hazardous(c.Place) {
			c.Stress--
		}
		c.Stress = clampInt(c.Stress, 0, 100)
	}
	if !c.Alive {
		return events
	}

	if s.sys.Comms < 60 || s.sys.BlackoutTicks > 0 {
		if s.rng.Intn(100) < glitchChance {
			s.RecordTamper(c.ID, witnessGlitch)
			events = append(events, s.event(tick, c.ID, c.Place, station.SystemAlert{
				System:  "comms",
				Message: "[GLITCH] Signal integrity compromised. Static bleed detected.",
			}))
		}
	}

	if len(c.route) > 1 && tick >= c.nextMove {
		if s.sys.DoorDelay > 0 {
			c.nextMove = tick + uint64(s.sys.DoorDelay)
		} else {
			from := c.Place
			c.leg = (c.leg + 1) % len(c.route)
			c.Place = c.route[c.leg]
			c.nextMove = tick + uint64(s.layout.MoveEvery)
			events = append(events,
				s.event(tick, c.ID, c.Place, station.CrewMove{From: from, To: c.Place}),
				s.event(tick, c.ID, c.Place, station.DoorOpened{Door: from + "-" + c.Place}))
		}
	}
	if c.Place == s.layout.YieldAt && tick%20 == 0 {
		events = append(events, s.event(tick, c.ID, c.Place, station.CargoYield{Amount: 5}))
	}
	return events
}

func (s *Sim) damage(tick uint64, c *crewState, amount int, cause string) []station.Event {
	c.HP -= amount
	c.Stress = clampInt(c.Stress+5, 0, 100)
	events := []station.Event{s.event(tick, c.ID, c.Place, station.CrewDamage{Amount: amount, Cause: cause})}
	if c.HP <= 0 {
		c.HP = 0
		c.Alive = false
		events = append(events, s.event(tick, c.ID, c.Place, station.CrewDeath{Cause: cause}))
	}
	return events
}

func (s *Sim) event(tick uint64, actor, place string, p station.Payload) station.Event {
	s.seq++
	return station.Event{
		ID:      fmt.Sprintf("%d-%s-%d", tick, strings.ToLower(string(p.Kind())), s.seq),
		Tick:    tick,
		Actor:   actor,
		Place:   place,
		Payload: p,
	}
}

func appendBounded[T any](xs []T, v T) []T {
	if len(xs) >= LogLimit {
		n := copy(xs, xs[len(xs)-LogLimit+1:])
		xs = xs[:n]
	}
	return append(xs, v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
