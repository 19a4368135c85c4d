package proposals

import (
	"fmt"

	"paranoia.ai/internal/sim/director/suspicion"
	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

// Sequence numbers pressure messages, readings and doubts. Its value is part
// of the director's exported state.
type Sequence struct {
	N uint64
}

func (s *Sequence) Next() uint64 {
	n := s.N
	s.N++
	return n
}

// Context is what a pressure generator sees for one tick.
type Context struct {
	Tick     uint64
	Snapshot station.Snapshot
	// Hazards are places targeted by running threats.
	Hazards []string
	Focus   suspicion.FocusConfig
	RNG     *rng.RNG
	Seq     *Sequence
}

func (c Context) PickFocus() (suspicion.Focus, bool) {
	return suspicion.PickFocus(c.Snapshot, c.Hazards, c.Focus, c.RNG)
}

func (c Context) CommsID(kind string) string {
	return fmt.Sprintf("%d-pressure-%s-%d", c.Tick, kind, c.Seq.Next())
}

func (c Context) ReadingID(kind string) string {
	return fmt.Sprintf("%d-r-%s-%d", c.Tick, kind, c.Seq.Next())
}

func (c Context) DoubtID() string {
	return fmt.Sprintf("doubt-%d-%d", c.Tick, c.Seq.Next())
}
