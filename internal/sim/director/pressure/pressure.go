// Package pressure routes director pressure across the physical, social and
// epistemic channels according to crew suspicion.
package pressure

import (
	"fmt"

	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

type Channel string

const (
	Physical  Channel = "physical"
	Social    Channel = "social"
	Epistemic Channel = "epistemic"
)

type Weights struct {
	Physical  int `yaml:"physical" json:"physical"`
	Social    int `yaml:"social" json:"social"`
	Epistemic int `yaml:"epistemic" json:"epistemic"`
}

// Bands holds the two suspicion thresholds and one weight row per band.
// A value equal to a threshold falls in the higher band.
type Bands struct {
	Low  int
	High int

	LowWeights  Weights
	MidWeights  Weights
	HighWeights Weights
}

func DefaultBands() Bands {
	return Bands{
		Low:         25,
		High:        45,
		LowWeights:  Weights{Physical: 60, Social: 10, Epistemic: 30},
		MidWeights:  Weights{Physical: 40, Social: 30, Epistemic: 30},
		HighWeights: Weights{Physical: 20, Social: 40, Epistemic: 40},
	}
}

func (b Bands) Validate() error {
	if b.Low > b.High {
		return fmt.Errorf("suspicion bands: low %d above high %d", b.Low, b.High)
	}
	for name, w := range map[string]Weights{"low": b.LowWeights, "mid": b.MidWeights, "high": b.HighWeights} {
		if w.Physical < 0 || w.Social < 0 || w.Epistemic < 0 {
			return fmt.Errorf("pressure %s: negative weight", name)
		}
	}
	return nil
}

func (b Bands) WeightsFor(suspicion int) Weights {
	switch {
	case suspicion >= b.High:
		return b.HighWeights
	case suspicion >= b.Low:
		return b.MidWeights
	default:
		return b.LowWeights
	}
}

type Mix struct {
	Physical  float64 `json:"physical"`
	Social    float64 `json:"social"`
	Epistemic float64 `json:"epistemic"`
}

// Normalize scales weights to sum to 1. All-zero weights give thirds.
func Normalize(w Weights) Mix {
	total := w.Physical + w.Social + w.Epistemic
	if total <= 0 {
		return Mix{Physical: 1.0 / 3, Social: 1.0 / 3, Epistemic: 1.0 / 3}
	}
	t := float64(total)
	return Mix{
		Physical:  float64(w.Physical) / t,
		Social:    float64(w.Social) / t,
		Epistemic: float64(w.Epistemic) / t,
	}
}

func MixFor(suspicion int, b Bands) Mix {
	return Normalize(b.WeightsFor(suspicion))
}

// PickChannel maps a uniform roll in [0,1) onto the mix.
func PickChannel(m Mix, roll float64) Channel {
	if roll < m.Physical {
		return Physical
	}
	if roll < m.Physical+m.Social {
		return Social
	}
	return Epistemic
}

type GateConfig struct {
	Chance           int // percent
	Cooldown         int // ticks
	BoredomThreshold int
	TensionThreshold int
}

// ChanceFor applies the pacing nudges to the base percent.
func (c GateConfig) ChanceFor(p station.Pacing) int {
	chance := c.Chance
	if p.Boredom >= c.BoredomThreshold {
		chance += 3
	}
	if p.Tension >= c.TensionThreshold {
		chance = max(1, chance-1)
	}
	return chance
}

// Router owns the next-allowed-attempt tick. It is the only activation
// cooldown in the director.
type Router struct {
	cfg         GateConfig
	bands       Bands
	nextAllowed uint64
}

func NewRouter(cfg GateConfig, bands Bands) *Router {
	if cfg.Cooldown < 1 {
		cfg.Cooldown = 1
	}
	return &Router{cfg: cfg, bands: bands}
}

func (r *Router) NextAllowed() uint64        { return r.nextAllowed }
func (r *Router) SetNextAllowed(tick uint64) { r.nextAllowed = tick }

// Decision records one routing attempt.
type Decision struct {
	Attempted bool
	Passed    bool
	Chance    int
	Suspicion int
	Mix       Mix
	Channel   Channel
}

// Route runs the gate for tick now. Passing the tick gate consumes the
// cooldown even when the percent roll then fails. Draw order: gate roll,
// then channel roll.
func (r *Router) Route(now uint64, suspicion int, pacing station.Pacing, g *rng.RNG) Decision {
	if now < r.nextAllowed {
		return Decision{}
	}
	r.nextAllowed = now + uint64(r.cfg.Cooldown)
	d := Decision{Attempted: true, Chance: r.cfg.ChanceFor(pacing), Suspicion: suspicion}
	if g.Intn(100) >= d.Chance {
		return d
	}
	d.Passed = true
	d.Mix = MixFor(suspicion, r.bands)
	d.Channel = PickChannel(d.Mix, g.Float64())
	return d
}
