package station

import (
	"encoding/json"
	"fmt"
)

type EventKind string

const (
	KindCrewMove     EventKind = "CREW_MOVE"
	KindCrewDamage   EventKind = "CREW_DAMAGE"
	KindCrewDeath    EventKind = "CREW_DEATH"
	KindCargoYield   EventKind = "CARGO_YIELD"
	KindSystemAction EventKind = "SYSTEM_ACTION"
	KindDoorOpened   EventKind = "DOOR_OPENED"
	KindSystemAlert  EventKind = "SYSTEM_ALERT"
)

// Payload is the kind-specific body of an Event.
type Payload interface {
	Kind() EventKind
}

type CrewMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CrewDamage struct {
	Amount int    `json:"amount"`
	Cause  string `json:"cause,omitempty"`
}

type CrewDeath struct {
	Cause string `json:"cause,omitempty"`
}

type CargoYield struct {
	Amount int `json:"amount"`
}

type SystemAction struct {
	Message string `json:"message,omitempty"`
}

type DoorOpened struct {
	Door string `json:"door"`
}

type SystemAlert struct {
	System  string `json:"system"`
	Message string `json:"message,omitempty"`
}

func (CrewMove) Kind() EventKind     { return KindCrewMove }
func (CrewDamage) Kind() EventKind   { return KindCrewDamage }
func (CrewDeath) Kind() EventKind    { return KindCrewDeath }
func (CargoYield) Kind() EventKind   { return KindCargoYield }
func (SystemAction) Kind() EventKind { return KindSystemAction }
func (DoorOpened) Kind() EventKind   { return KindDoorOpened }
func (SystemAlert) Kind() EventKind  { return KindSystemAlert }

type Event struct {
	ID      string
	Tick    uint64
	Actor   string
	Place   string
	Payload Payload
}

func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

type eventJSON struct {
	ID    string          `json:"id"`
	Tick  uint64          `json:"tick"`
	Actor string          `json:"actor,omitempty"`
	Place string          `json:"place,omitempty"`
	Kind  EventKind       `json:"kind"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{ID: e.ID, Tick: e.Tick, Actor: e.Actor, Place: e.Place, Kind: e.Kind()}
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		out.Data = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes known kinds into their typed payload. Unknown kinds
// decode with a nil payload; the director drops them.
func (e *Event) UnmarshalJSON(b []byte) error {
	var in eventJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*e = Event{ID: in.ID, Tick: in.Tick, Actor: in.Actor, Place: in.Place}

	var p Payload
	switch in.Kind {
	case KindCrewMove:
		p = &CrewMove{}
	case KindCrewDamage:
		p = &CrewDamage{}
	case KindCrewDeath:
		p = &CrewDeath{}
	case KindCargoYield:
		p = &CargoYield{}
	case KindSystemAction:
		p = &SystemAction{}
	case KindDoorOpened:
		p = &DoorOpened{}
	case KindSystemAlert:
		p = &SystemAlert{}
	default:
		return nil
	}
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, p); err != nil {
			return fmt.Errorf("event %s (%s): %w", in.ID, in.Kind, err)
		}
	}
	e.Payload = deref(p)
	return nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *CrewMove:
		return *v
	case *CrewDamage:
		return *v
	case *CrewDeath:
		return *v
	case *CargoYield:
		return *v
	case *SystemAction:
		return *v
	case *DoorOpened:
		return *v
	case *SystemAlert:
		return *v
	default:
		return p
	}
}
