// Package arbiter decides which threat steps run this tick and which
// candidates become headlines.
package arbiter

import (
	"sort"

	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/director/proposals"
)

const (
	DefaultMaxHeadlines = 3
	DefaultScoreFloor   = 4
)

type Headline struct {
	Priority interest.Priority `json:"priority"`
	Message  string            `json:"message"`
}

type Config struct {
	MaxHeadlines int
	ScoreFloor   int
}

func (c Config) withDefaults() Config {
	if c.MaxHeadlines <= 0 {
		c.MaxHeadlines = DefaultMaxHeadlines
	}
	if c.ScoreFloor <= 0 {
		c.ScoreFloor = DefaultScoreFloor
	}
	return c
}

// ExecuteThreats admits at most k ready threat candidates, best score first.
// Ties keep input order. The rest are returned as deferred.
func ExecuteThreats(ready []proposals.Candidate, k int) (executed, deferred []proposals.Candidate) {
	if len(ready) == 0 {
		return nil, nil
	}
	if k < 0 {
		k = 0
	}
	sorted := append([]proposals.Candidate(nil), ready...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k], sorted[k:]
}

// SelectHeadlines ranks by tier then score and marks every selected
// candidate's tags in rec.
func SelectHeadlines(cands []proposals.Candidate, now uint64, rec *interest.Recency, cfg Config) []Headline {
	if len(cands) == 0 {
		return nil
	}
	cfg = cfg.withDefaults()
	sorted := append([]proposals.Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].Score > sorted[j].Score
	})

	var out []Headline
	for _, c := range sorted {
		if len(out) >= cfg.MaxHeadlines {
			break
		}
		if c.Score < cfg.ScoreFloor && c.Priority != interest.PriorityCritical {
			continue
		}
		out = append(out, Headline{Priority: c.Priority, Message: c.Message})
		for _, tag := range c.Tags() {
			rec.Mark(tag, now)
		}
	}
	return out
}
