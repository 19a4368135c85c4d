package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"paranoia.ai/internal/sim/director"
	"paranoia.ai/internal/sim/director/pressure"
	"paranoia.ai/internal/sim/director/suspicion"
)

type Tuning struct {
	Seed int64 `yaml:"seed"`

	MaxActiveThreats         int `yaml:"max_active_threats"`
	MaxThreatAdvancesPerTick int `yaml:"max_threat_advances_per_tick"`
	MaxHeadlinesPerTick      int `yaml:"max_headlines_per_tick"`
	HeadlineScoreFloor       int `yaml:"headline_score_floor"`
	ReadyBackoffTicks        int `yaml:"ready_backoff_ticks"`

	ThreatActivationChance   int `yaml:"threat_activation_chance"`
	ThreatActivationCooldown int `yaml:"threat_activation_cooldown"`
	BoredomThreshold         int `yaml:"boredom_threshold"`
	TensionThreshold         int `yaml:"tension_threshold"`

	SuspicionBands SuspicionBands `yaml:"suspicion_bands"`
	Pressure       PressureTable  `yaml:"pressure"`
	Focus          Focus          `yaml:"focus"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

type SuspicionBands struct {
	Low  int `yaml:"low"`
	High int `yaml:"high"`
}

type PressureTable struct {
	Low  pressure.Weights `yaml:"low"`
	Mid  pressure.Weights `yaml:"mid"`
	High pressure.Weights `yaml:"high"`
}

type Focus struct {
	ReliableBelow float64 `yaml:"reliable_below"`
	TamperAbove   float64 `yaml:"tamper_above"`
	StressAtLeast int     `yaml:"stress_at_least"`
	HPBelow       int     `yaml:"hp_below"`
}

func Defaults() Tuning {
	dc := director.DefaultConfig()
	return Tuning{
		Seed:                     dc.Seed,
		MaxActiveThreats:         dc.MaxActiveThreats,
		MaxThreatAdvancesPerTick: dc.MaxThreatAdvancesPerTick,
		MaxHeadlinesPerTick:      dc.MaxHeadlinesPerTick,
		HeadlineScoreFloor:       dc.HeadlineScoreFloor,
		ReadyBackoffTicks:        dc.ReadyBackoffTicks,
		ThreatActivationChance:   dc.Gate.Chance,
		ThreatActivationCooldown: dc.Gate.Cooldown,
		BoredomThreshold:         dc.Gate.BoredomThreshold,
		TensionThreshold:         dc.Gate.TensionThreshold,
		SuspicionBands:           SuspicionBands{Low: dc.Bands.Low, High: dc.Bands.High},
		Pressure: PressureTable{
			Low:  dc.Bands.LowWeights,
			Mid:  dc.Bands.MidWeights,
			High: dc.Bands.HighWeights,
		},
		Focus: Focus{
			ReliableBelow: dc.Focus.ReliableBelow,
			TamperAbove:   dc.Focus.TamperAbove,
			StressAtLeast: dc.Focus.StressAtLeast,
			HPBelow:       dc.Focus.HPBelow,
		},
		SnapshotEveryTicks: 100,
	}
}

// Load overlays the YAML file on Defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize clamps counts that must be at least one.
func (t *Tuning) Normalize() {
	if t.MaxActiveThreats < 1 {
		t.MaxActiveThreats = 1
	}
	if t.MaxThreatAdvancesPerTick < 1 {
		t.MaxThreatAdvancesPerTick = 1
	}
	if t.MaxHeadlinesPerTick < 1 {
		t.MaxHeadlinesPerTick = 1
	}
	if t.ReadyBackoffTicks < 1 {
		t.ReadyBackoffTicks = 1
	}
	if t.ThreatActivationCooldown < 1 {
		t.ThreatActivationCooldown = 1
	}
	if t.SnapshotEveryTicks < 0 {
		t.SnapshotEveryTicks = 0
	}
}

func (t Tuning) Validate() error {
	if t.ThreatActivationChance < 0 || t.ThreatActivationChance > 100 {
		return fmt.Errorf("threat_activation_chance %d outside 0..100", t.ThreatActivationChance)
	}
	if t.HeadlineScoreFloor < 1 {
		return fmt.Errorf("headline_score_floor %d must be at least 1", t.HeadlineScoreFloor)
	}
	if t.Focus.ReliableBelow < 0 || t.Focus.ReliableBelow > 1 {
		return fmt.Errorf("focus.reliable_below %v outside 0..1", t.Focus.ReliableBelow)
	}
	return t.bands().Validate()
}

func (t Tuning) bands() pressure.Bands {
	return pressure.Bands{
		Low:         t.SuspicionBands.Low,
		High:        t.SuspicionBands.High,
		LowWeights:  t.Pressure.Low,
		MidWeights:  t.Pressure.Mid,
		HighWeights: t.Pressure.High,
	}
}

func (t Tuning) DirectorConfig() director.Config {
	return director.Config{
		Seed:                     t.Seed,
		MaxActiveThreats:         t.MaxActiveThreats,
		MaxThreatAdvancesPerTick: t.MaxThreatAdvancesPerTick,
		MaxHeadlinesPerTick:      t.MaxHeadlinesPerTick,
		HeadlineScoreFloor:       t.HeadlineScoreFloor,
		ReadyBackoffTicks:        t.ReadyBackoffTicks,
		Gate: pressure.GateConfig{
			Chance:           t.ThreatActivationChance,
			Cooldown:         t.ThreatActivationCooldown,
			BoredomThreshold: t.BoredomThreshold,
			TensionThreshold: t.TensionThreshold,
		},
		Bands: t.bands(),
		Focus: suspicion.FocusConfig{
			ReliableBelow: t.Focus.ReliableBelow,
			TamperAbove:   t.Focus.TamperAbove,
			StressAtLeast: t.Focus.StressAtLeast,
			HPBelow:       t.Focus.HPBelow,
		},
	}
}
