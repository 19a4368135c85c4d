package threats

import (
	"errors"
	"fmt"
	"sort"

	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

var (
	ErrUnknownThreat = errors.New("unknown threat definition")
	ErrBadStepIndex  = errors.New("step index out of range")
	ErrDuplicate     = errors.New("threat already active")
	ErrTooManyActive = errors.New("more active threats than allowed")
)

type Config struct {
	MaxActive    int
	BackoffTicks int
}

type instance struct {
	def    *Definition
	step   int
	next   uint64
	target string
}

// Manager owns the threat catalog and the set of running threat lines.
type Manager struct {
	defs   []*Definition
	byID   map[string]*Definition
	active []*instance

	maxActive int
	backoff   uint64
}

func NewManager(defs []Definition, cfg Config) (*Manager, error) {
	m := &Manager{
		byID:      make(map[string]*Definition, len(defs)),
		maxActive: cfg.MaxActive,
		backoff:   uint64(cfg.BackoffTicks),
	}
	if m.maxActive < 1 {
		m.maxActive = 1
	}
	if m.backoff < 1 {
		m.backoff = 1
	}
	for i := range defs {
		d := defs[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.byID[d.ID]; dup {
			return nil, fmt.Errorf("threat %s: duplicate id", d.ID)
		}
		m.byID[d.ID] = &d
		m.defs = append(m.defs, &d)
	}
	sort.Slice(m.defs, func(i, j int) bool { return m.defs[i].ID < m.defs[j].ID })
	return m, nil
}

func (m *Manager) Definition(id string) (Definition, bool) {
	d, ok := m.byID[id]
	if !ok {
		return Definition{}, false
	}
	return *d, true
}

func (m *Manager) DefinitionIDs() []string {
	out := make([]string, 0, len(m.defs))
	for _, d := range m.defs {
		out = append(out, d.ID)
	}
	return out
}

func (m *Manager) ActiveCount() int { return len(m.active) }

func (m *Manager) MaxActive() int { return m.maxActive }

func (m *Manager) IsActive(defID string) bool {
	return m.find(defID) != nil
}

func (m *Manager) find(defID string) *instance {
	for _, a := range m.active {
		if a.def.ID == defID {
			return a
		}
	}
	return nil
}

// Activation describes a threat line that just started.
type Activation struct {
	DefID  string
	Target string
	Next   uint64
}

// TryActivate starts one inactive threat line if there is room. The caller
// owns cooldown gating.
func (m *Manager) TryActivate(now uint64, snap station.Snapshot, r *rng.RNG) (Activation, bool) {
	if len(m.active) >= m.maxActive {
		return Activation{}, false
	}
	inactive := make([]*Definition, 0, len(m.defs))
	for _, d := range m.defs {
		if m.find(d.ID) == nil {
			inactive = append(inactive, d)
		}
	}
	def, ok := rng.Pick(r, inactive)
	if !ok {
		return Activation{}, false
	}
	target, ok := def.Target.PickTarget(snap, r)
	if !ok {
		return Activation{}, false
	}
	a := &instance{def: def, step: 0, next: now + def.RollInterval(r), target: target}
	m.active = append(m.active, a)
	return Activation{DefID: def.ID, Target: target, Next: a.next}, true
}

// ReadyStep is the step an active line would run if admitted this tick.
type ReadyStep struct {
	DefID     string
	DefName   string
	StepIndex int
	Step      Step
	Target    string
}

// Ready lists lines whose next-eligible tick has arrived, in activation order.
func (m *Manager) Ready(now uint64) []ReadyStep {
	var out []ReadyStep
	for _, a := range m.active {
		if now < a.next {
			continue
		}
		out = append(out, ReadyStep{
			DefID:     a.def.ID,
			DefName:   a.def.Name,
			StepIndex: a.step,
			Step:      a.def.Steps[a.step],
			Target:    a.target,
		})
	}
	return out
}

type AdvanceResult struct {
	DefID     string
	StepIndex int // index after advancing
	Retired   bool
	Next      uint64
}

// Advance moves a line past its current step, retiring it after the last one.
func (m *Manager) Advance(now uint64, defID string, r *rng.RNG) (AdvanceResult, bool) {
	a := m.find(defID)
	if a == nil {
		return AdvanceResult{}, false
	}
	a.step++
	res := AdvanceResult{DefID: defID, StepIndex: a.step}
	if a.step >= len(a.def.Steps) {
		m.remove(a)
		res.Retired = true
		return res, true
	}
	a.next = now + a.def.RollInterval(r)
	res.Next = a.next
	return res, true
}

// Backoff re-queues a ready line that lost admission this tick.
func (m *Manager) Backoff(now uint64, defID string) {
	if a := m.find(defID); a != nil {
		a.next = now + m.backoff
	}
}

func (m *Manager) remove(target *instance) {
	out := m.active[:0]
	for _, a := range m.active {
		if a != target {
			out = append(out, a)
		}
	}
	for i := len(out); i < len(m.active); i++ {
		m.active[i] = nil
	}
	m.active = out
}

// Targets returns the places currently targeted by running lines.
func (m *Manager) Targets() []string {
	out := make([]string, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a.target)
	}
	return out
}

// Status is the presentation view of a running line (1-based step).
type Status struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"total_steps"`
	NextTick   uint64 `json:"next_tick"`
	Target     string `json:"target"`
}

func (m *Manager) Status() []Status {
	out := make([]Status, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, Status{
			ID:         a.def.ID,
			Name:       a.def.Name,
			Step:       a.step + 1,
			TotalSteps: len(a.def.Steps),
			NextTick:   a.next,
			Target:     a.target,
		})
	}
	return out
}

// ActiveState is the persisted form of one running line.
type ActiveState struct {
	DefID     string `json:"def_id"`
	StepIndex int    `json:"step_index"`
	NextTick  uint64 `json:"next_tick"`
	Target    string `json:"target"`
}

func (m *Manager) Export() []ActiveState {
	out := make([]ActiveState, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, ActiveState{DefID: a.def.ID, StepIndex: a.step, NextTick: a.next, Target: a.target})
	}
	return out
}

// Import replaces the active set. An id missing from the catalog means the
// saved state and the catalog disagree; nothing is changed in that case.
func (m *Manager) Import(states []ActiveState) error {
	if len(states) > m.maxActive {
		return fmt.Errorf("%w: %d > %d", ErrTooManyActive, len(states), m.maxActive)
	}
	active := make([]*instance, 0, len(states))
	seen := map[string]bool{}
	for _, s := range states {
		def, ok := m.byID[s.DefID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownThreat, s.DefID)
		}
		if s.StepIndex < 0 || s.StepIndex >= len(def.Steps) {
			return fmt.Errorf("%w: %s step %d of %d", ErrBadStepIndex, s.DefID, s.StepIndex, len(def.Steps))
		}
		if seen[s.DefID] {
			return fmt.Errorf("%w: %s", ErrDuplicate, s.DefID)
		}
		seen[s.DefID] = true
		active = append(active, &instance{def: def, step: s.StepIndex, next: s.NextTick, target: s.Target})
	}
	m.active = active
	return nil
}
