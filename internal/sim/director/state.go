package director

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"paranoia.ai/internal/sim/director/threats"
)

// TagMark is one entry of the recency map.
type TagMark struct {
	Tag  string `json:"tag"`
	Tick uint64 `json:"tick"`
}

// State is everything needed to resume the director deterministically. Slices
// are sorted so equal states encode to equal bytes.
type State struct {
	Active             []threats.ActiveState `json:"active"`
	RecentTags         []TagMark             `json:"recent_tags"`
	NextActivationTick uint64                `json:"next_activation_tick"`
	RNG                uint64                `json:"rng"`
	Sequence           uint64                `json:"sequence"`
}

func (d *Director) ExportState() State {
	recent := d.recency.Export()
	marks := make([]TagMark, 0, len(recent))
	for tag, tick := range recent {
		marks = append(marks, TagMark{Tag: tag, Tick: tick})
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].Tag < marks[j].Tag })
	return State{
		Active:             d.threats.Export(),
		RecentTags:         marks,
		NextActivationTick: d.router.NextAllowed(),
		RNG:                d.rng.State(),
		Sequence:           d.seq.N,
	}
}

// ImportState replaces all routing state. A threat id the catalog does not
// know is a data error; the director is left untouched in that case.
func (d *Director) ImportState(s State) error {
	if err := d.threats.Import(s.Active); err != nil {
		return fmt.Errorf("import director state: %w", err)
	}
	recent := make(map[string]uint64, len(s.RecentTags))
	for _, m := range s.RecentTags {
		recent[m.Tag] = m.Tick
	}
	d.recency.Import(recent)
	d.router.SetNextAllowed(s.NextActivationTick)
	d.rng.SetState(s.RNG)
	d.seq.N = s.Sequence
	return nil
}

// Digest hashes the exported state for replay verification.
func (d *Director) Digest(nowTick uint64) string {
	return StateDigest(nowTick, d.ExportState())
}

func StateDigest(nowTick uint64, s State) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, s.RNG)
	digestWriteU64(h, &tmp, s.NextActivationTick)
	digestWriteU64(h, &tmp, s.Sequence)

	digestWriteU64(h, &tmp, uint64(len(s.Active)))
	for _, a := range s.Active {
		digestWriteString(h, &tmp, a.DefID)
		digestWriteU64(h, &tmp, uint64(a.StepIndex))
		digestWriteU64(h, &tmp, a.NextTick)
		digestWriteString(h, &tmp, a.Target)
	}

	marks := append([]TagMark(nil), s.RecentTags...)
	sort.Slice(marks, func(i, j int) bool { return marks[i].Tag < marks[j].Tag })
	digestWriteU64(h, &tmp, uint64(len(marks)))
	for _, m := range marks {
		digestWriteString(h, &tmp, m.Tag)
		digestWriteU64(h, &tmp, m.Tick)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteString(h hash.Hash, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}
