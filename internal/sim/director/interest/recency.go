package interest

import "sort"

const (
	noveltyFreshAfter = 60
	noveltyStaleAfter = 30

	spamHardWindow = 5
	spamSoftWindow = 15
)

// Recency remembers the last tick each tag reached the player (or, for threat
// lines, the last tick a step executed).
type Recency struct {
	last map[string]uint64
}

func NewRecency() *Recency {
	return &Recency{last: map[string]uint64{}}
}

func (r *Recency) Mark(tag string, tick uint64) {
	if tag == "" {
		return
	}
	r.last[tag] = tick
}

func (r *Recency) LastSeen(tag string) (uint64, bool) {
	t, ok := r.last[tag]
	return t, ok
}

func (r *Recency) elapsed(tag string, now uint64) (uint64, bool) {
	t, ok := r.last[tag]
	if !ok {
		return 0, false
	}
	if t > now {
		return 0, true
	}
	return now - t, true
}

// Novelty: unseen or >60 ticks ago → 2, 31..60 → 1, else 0.
func (r *Recency) Novelty(tag string, now uint64) int {
	d, ok := r.elapsed(tag, now)
	switch {
	case !ok || d > noveltyFreshAfter:
		return 2
	case d > noveltyStaleAfter:
		return 1
	default:
		return 0
	}
}

// SpamPenalty: seen <5 ticks ago → 2, <15 → 1, else 0.
func (r *Recency) SpamPenalty(tag string, now uint64) int {
	d, ok := r.elapsed(tag, now)
	switch {
	case !ok:
		return 0
	case d < spamHardWindow:
		return 2
	case d < spamSoftWindow:
		return 1
	default:
		return 0
	}
}

func (r *Recency) Len() int { return len(r.last) }

// Tags returns the known tags in sorted order.
func (r *Recency) Tags() []string {
	out := make([]string, 0, len(r.last))
	for tag := range r.last {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (r *Recency) Export() map[string]uint64 {
	out := make(map[string]uint64, len(r.last))
	for k, v := range r.last {
		out[k] = v
	}
	return out
}

func (r *Recency) Import(m map[string]uint64) {
	r.last = make(map[string]uint64, len(m))
	for k, v := range m {
		r.last[k] = v
	}
}
