package effects

import (
	"encoding/json"
	"fmt"
)

// TargetPlace in a template's place field is replaced by the threat target.
const TargetPlace = "$target"

// Template is the authored form of a physical effect inside a threat step.
type Template struct {
	Kind    Kind   `json:"kind"`
	Ticks   int    `json:"ticks,omitempty"`
	Percent int    `json:"percent,omitempty"`
	Delta   int    `json:"delta,omitempty"`
	Place   string `json:"place,omitempty"`
}

func (t Template) Validate() error {
	switch t.Kind {
	case KindDoorDelay, KindBlackout:
		if t.Ticks <= 0 {
			return fmt.Errorf("%s: ticks must be > 0", t.Kind)
		}
	case KindSetComms, KindSetPower:
		if t.Percent < 0 || t.Percent > 100 {
			return fmt.Errorf("%s: percent must be 0..100", t.Kind)
		}
	case KindAdjustO2:
		if t.Delta == 0 {
			return fmt.Errorf("%s: delta must be non-zero", t.Kind)
		}
	case KindIgniteRoom:
	default:
		return fmt.Errorf("unsupported effect kind %q", t.Kind)
	}
	return nil
}

// Bind resolves the template against a threat target.
func (t Template) Bind(target string) Effect {
	place := t.Place
	if place == "" || place == TargetPlace {
		place = target
	}
	switch t.Kind {
	case KindDoorDelay:
		return DoorDelay{Ticks: t.Ticks}
	case KindSetComms:
		return SetComms{Percent: t.Percent}
	case KindBlackout:
		return Blackout{Ticks: t.Ticks}
	case KindSetPower:
		return SetPower{Percent: t.Percent}
	case KindAdjustO2:
		return AdjustO2{Place: place, Delta: t.Delta}
	case KindIgniteRoom:
		return IgniteRoom{Place: place}
	default:
		return nil
	}
}

func BindAll(ts []Template, target string) []Effect {
	if len(ts) == 0 {
		return nil
	}
	out := make([]Effect, 0, len(ts))
	for _, t := range ts {
		if e := t.Bind(target); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Envelope is the logged JSON form of an applied effect.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func Wrap(e Effect) (Envelope, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: e.EffectKind(), Data: b}, nil
}
