package threats

import (
	"fmt"
	"strings"

	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/rng"
)

const maxFeature = 5

// Step is one escalation stage of a threat line.
type Step struct {
	Name     string
	Priority interest.Priority
	// Message may contain {target} (place id) or {TARGET} (upper-cased).
	Message  string
	Effects  []effects.Template
	Features interest.Partial
}

func (s Step) Render(target string) string {
	r := strings.NewReplacer("{TARGET}", strings.ToUpper(target), "{target}", target)
	return r.Replace(s.Message)
}

// Definition is an immutable threat template. Steps run from least to most
// severe.
type Definition struct {
	ID          string
	Name        string
	MinInterval int
	MaxInterval int
	Steps       []Step
	Target      TargetRule
}

func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("threat: empty id")
	}
	if d.MinInterval < 1 || d.MaxInterval < d.MinInterval {
		return fmt.Errorf("threat %s: bad interval [%d,%d]", d.ID, d.MinInterval, d.MaxInterval)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("threat %s: no steps", d.ID)
	}
	if d.Target == nil {
		return fmt.Errorf("threat %s: no target rule", d.ID)
	}
	seen := map[string]bool{}
	for i, s := range d.Steps {
		if s.Name == "" {
			return fmt.Errorf("threat %s: step %d has no name", d.ID, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("threat %s: duplicate step %s", d.ID, s.Name)
		}
		seen[s.Name] = true
		f := s.Features
		for _, v := range []int{f.Stakes, f.Dilemma, f.Clarity, f.Proximity} {
			if v < 0 || v > maxFeature {
				return fmt.Errorf("threat %s step %s: feature %d out of range 0..%d", d.ID, s.Name, v, maxFeature)
			}
		}
		for _, e := range s.Effects {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("threat %s step %s: %w", d.ID, s.Name, err)
			}
		}
	}
	return nil
}

// RollInterval draws from [MinInterval, MaxInterval].
func (d *Definition) RollInterval(r *rng.RNG) uint64 {
	return uint64(d.MinInterval + r.Intn(d.MaxInterval-d.MinInterval+1))
}

// LineTag identifies a whole threat line for spam tracking.
func LineTag(defID string) string { return "threat:" + defID }

// StepTag identifies one step of a line for novelty tracking.
func StepTag(defID, step string) string { return "threat:" + defID + ":" + step }
