// Package director runs the per-tick pacing pipeline: suspicion, pressure
// routing, threat clocks, candidate scoring, headline arbitration and the
// final effect apply phase.
package director

import (
	"go.uber.org/zap"

	"paranoia.ai/internal/sim/director/arbiter"
	"paranoia.ai/internal/sim/director/epistemic"
	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/director/pressure"
	"paranoia.ai/internal/sim/director/proposals"
	"paranoia.ai/internal/sim/director/social"
	"paranoia.ai/internal/sim/director/suspicion"
	"paranoia.ai/internal/sim/director/threats"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

type Config struct {
	Seed int64

	MaxActiveThreats         int
	MaxThreatAdvancesPerTick int
	MaxHeadlinesPerTick      int
	HeadlineScoreFloor       int
	ReadyBackoffTicks        int

	Gate  pressure.GateConfig
	Bands pressure.Bands
	Focus suspicion.FocusConfig
}

func DefaultConfig() Config {
	return Config{
		Seed:                     1,
		MaxActiveThreats:         1,
		MaxThreatAdvancesPerTick: 1,
		MaxHeadlinesPerTick:      arbiter.DefaultMaxHeadlines,
		HeadlineScoreFloor:       arbiter.DefaultScoreFloor,
		ReadyBackoffTicks:        3,
		Gate: pressure.GateConfig{
			Chance:           20,
			Cooldown:         15,
			BoredomThreshold: 6,
			TensionThreshold: 6,
		},
		Bands: pressure.DefaultBands(),
		Focus: suspicion.DefaultFocusConfig(),
	}
}

// Director holds all routing state. It is not safe for concurrent use; the
// host calls Tick from its simulation loop.
type Director struct {
	cfg Config

	threats *threats.Manager
	recency *interest.Recency
	router  *pressure.Router
	rng     *rng.RNG
	seq     proposals.Sequence

	agg suspicion.Aggregator
	log *zap.Logger
}

type Option func(*Director)

func WithLogger(l *zap.Logger) Option {
	return func(d *Director) {
		if l != nil {
			d.log = l
		}
	}
}

// WithAggregator replaces the default belief-based suspicion reduction.
func WithAggregator(a suspicion.Aggregator) Option {
	return func(d *Director) {
		if a != nil {
			d.agg = a
		}
	}
}

func New(cfg Config, defs []threats.Definition, opts ...Option) (*Director, error) {
	if err := cfg.Bands.Validate(); err != nil {
		return nil, err
	}
	m, err := threats.NewManager(defs, threats.Config{MaxActive: cfg.MaxActiveThreats, BackoffTicks: cfg.ReadyBackoffTicks})
	if err != nil {
		return nil, err
	}
	if cfg.MaxThreatAdvancesPerTick < 1 {
		cfg.MaxThreatAdvancesPerTick = 1
	}
	d := &Director{
		cfg:     cfg,
		threats: m,
		recency: interest.NewRecency(),
		router:  pressure.NewRouter(cfg.Gate, cfg.Bands),
		rng:     rng.New(cfg.Seed),
		agg:     suspicion.BeliefAggregator{},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

type TickInput struct {
	Tick       uint64
	Snapshot   station.Snapshot
	Events     []station.Event
	Suppressor station.Suppressor
	Pacing     station.Pacing
}

// Execution is one threat step that ran this tick.
type Execution struct {
	DefID     string `json:"def_id"`
	Step      string `json:"step"`
	StepIndex int    `json:"step_index"`
	Target    string `json:"target"`
	Retired   bool   `json:"retired"`
}

type TickResult struct {
	Tick       uint64
	Suspicion  int
	Routing    pressure.Decision
	Activation *threats.Activation
	Executed   []Execution
	Deferred   []string
	Headlines  []arbiter.Headline
	Applied    []effects.Effect
}

// Tick runs one director step. Effects are handed to dispatch after every
// decision for the tick is made; dispatch must not call back into d.
func (d *Director) Tick(in TickInput, dispatch effects.Dispatcher) TickResult {
	now := in.Tick
	res := TickResult{Tick: now}
	if dispatch == nil {
		dispatch = effects.Discard
	}

	res.Suspicion = d.agg.Aggregate(in.Snapshot)
	res.Routing = d.router.Route(now, res.Suspicion, in.Pacing, d.rng)

	var pressures []proposals.Pressure
	if res.Routing.Passed {
		switch res.Routing.Channel {
		case pressure.Physical:
			if act, ok := d.threats.TryActivate(now, in.Snapshot, d.rng); ok {
				res.Activation = &act
				d.log.Debug("threat activated",
					zap.Uint64("tick", now),
					zap.String("threat", act.DefID),
					zap.String("target", act.Target),
					zap.Uint64("next", act.Next))
			}
		case pressure.Social:
			pressures = social.Propose(d.generatorContext(now, in.Snapshot))
		case pressure.Epistemic:
			pressures = epistemic.Propose(d.generatorContext(now, in.Snapshot))
		}
		d.log.Debug("pressure routed",
			zap.Uint64("tick", now),
			zap.Int("suspicion", res.Suspicion),
			zap.String("channel", string(res.Routing.Channel)),
			zap.Int("proposals", len(pressures)))
	}

	ready := d.threats.Ready(now)
	threatCands := make([]proposals.Candidate, 0, len(ready))
	for _, rs := range ready {
		threatCands = append(threatCands, proposals.FromThreat(rs, now, d.recency))
	}
	executed, deferred := arbiter.ExecuteThreats(threatCands, d.cfg.MaxThreatAdvancesPerTick)
	for _, c := range executed {
		for _, tag := range c.Tags() {
			d.recency.Mark(tag, now)
		}
		adv, _ := d.threats.Advance(now, c.DefID, d.rng)
		res.Executed = append(res.Executed, Execution{
			DefID:     c.DefID,
			Step:      c.Step,
			StepIndex: c.StepIndex,
			Target:    c.Target,
			Retired:   adv.Retired,
		})
		if adv.Retired {
			d.log.Debug("threat retired", zap.Uint64("tick", now), zap.String("threat", c.DefID))
		} else {
			d.log.Debug("threat advanced",
				zap.Uint64("tick", now),
				zap.String("threat", c.DefID),
				zap.String("step", c.Step),
				zap.Uint64("next", adv.Next))
		}
	}
	for _, c := range deferred {
		d.threats.Backoff(now, c.DefID)
		res.Deferred = append(res.Deferred, c.DefID)
	}

	cands := make([]proposals.Candidate, 0, len(executed)+len(in.Events)+len(pressures))
	cands = append(cands, executed...)
	cands = append(cands, proposals.FromEvents(in.Events, in.Snapshot, in.Suppressor, now, d.recency)...)
	pressureCands := make([]proposals.Candidate, 0, len(pressures))
	for _, p := range pressures {
		pressureCands = append(pressureCands, proposals.FromPressure(p, now, d.recency))
	}
	cands = append(cands, pressureCands...)

	res.Headlines = arbiter.SelectHeadlines(cands, now, d.recency, arbiter.Config{
		MaxHeadlines: d.cfg.MaxHeadlinesPerTick,
		ScoreFloor:   d.cfg.HeadlineScoreFloor,
	})

	for _, c := range executed {
		res.Applied = append(res.Applied, c.Effects...)
	}
	for _, c := range pressureCands {
		res.Applied = append(res.Applied, c.Effects...)
	}
	for _, e := range res.Applied {
		dispatch.Apply(now, e)
	}
	return res
}

func (d *Director) generatorContext(now uint64, snap station.Snapshot) proposals.Context {
	return proposals.Context{
		Tick:     now,
		Snapshot: snap,
		Hazards:  d.threats.Targets(),
		Focus:    d.cfg.Focus,
		RNG:      d.rng,
		Seq:      &d.seq,
	}
}

// ThreatStatus lists running threat lines for presentation.
func (d *Director) ThreatStatus() []threats.Status {
	return d.threats.Status()
}

func (d *Director) Config() Config { return d.cfg }

func (d *Director) DefinitionIDs() []string { return d.threats.DefinitionIDs() }
