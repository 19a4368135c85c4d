package interest

import (
	"fmt"
	"strings"
)

// Priority is the hard ordering tier of a candidate. Higher wins.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("PRIORITY(%d)", int(p))
	}
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "MEDIUM":
		return PriorityMedium, nil
	case "HIGH":
		return PriorityHigh, nil
	case "CRITICAL":
		return PriorityCritical, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q", s)
	}
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Partial is the authored part of a feature vector (threat steps, event table rows).
type Partial struct {
	Stakes    int `json:"stakes"`
	Dilemma   int `json:"dilemma"`
	Clarity   int `json:"clarity"`
	Proximity int `json:"proximity"`
}

// Features is the fully resolved interest vector of one candidate.
type Features struct {
	Stakes      int `json:"stakes"`
	Dilemma     int `json:"dilemma"`
	Clarity     int `json:"clarity"`
	Proximity   int `json:"proximity"`
	Novelty     int `json:"novelty"`
	SpamPenalty int `json:"spam_penalty"`
	Unfairness  int `json:"unfairness"`
}

func (p Partial) Resolve(novelty, spamPenalty int) Features {
	return Features{
		Stakes:      p.Stakes,
		Dilemma:     p.Dilemma,
		Clarity:     p.Clarity,
		Proximity:   p.Proximity,
		Novelty:     novelty,
		SpamPenalty: spamPenalty,
	}
}

func Score(f Features) int {
	return f.Stakes + f.Dilemma + f.Clarity + f.Proximity + f.Novelty - f.SpamPenalty - f.Unfairness
}
