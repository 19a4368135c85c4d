// Package effects describes the side effects the director may ask the
// station to perform. Effects are plain data; a Dispatcher owned by the
// station applies them after arbitration has decided what runs.
package effects

type Kind string

const (
	KindDoorDelay      Kind = "door_delay"
	KindSetComms       Kind = "set_comms"
	KindBlackout       Kind = "blackout"
	KindSetPower       Kind = "set_power"
	KindAdjustO2       Kind = "adjust_o2"
	KindIgniteRoom     Kind = "ignite_room"
	KindComms          Kind = "comms"
	KindSensorReading  Kind = "sensor_reading"
	KindSuspicionDelta Kind = "suspicion_delta"
	KindDoubt          Kind = "doubt"
)

type Effect interface {
	EffectKind() Kind
}

type DoorDelay struct {
	Ticks int `json:"ticks"`
}

type SetComms struct {
	Percent int `json:"percent"`
}

type Blackout struct {
	Ticks int `json:"ticks"`
}

type SetPower struct {
	Percent int `json:"percent"`
}

type AdjustO2 struct {
	Place string `json:"place"`
	Delta int    `json:"delta"`
}

type IgniteRoom struct {
	Place string `json:"place"`
}

// CommsMessage kinds.
const (
	CommsWhisper   = "whisper"
	CommsLog       = "log"
	CommsBroadcast = "broadcast"
)

type CommsMessage struct {
	ID         string  `json:"id"`
	Tick       uint64  `json:"tick"`
	Kind       string  `json:"kind"`
	From       string  `json:"from,omitempty"`
	To         string  `json:"to,omitempty"`
	Place      string  `json:"place,omitempty"`
	Topic      string  `json:"topic,omitempty"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type Comms struct {
	Message CommsMessage `json:"message"`
}

type Reading struct {
	ID         string  `json:"id"`
	Tick       uint64  `json:"tick"`
	Place      string  `json:"place"`
	System     string  `json:"system"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	Source     string  `json:"source"`
}

type SensorReading struct {
	Reading Reading `json:"reading"`
}

type SuspicionDelta struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Doubt is a record for the collaborator's epistemic-state tracking.
type Doubt struct {
	ID           string   `json:"id"`
	Topic        string   `json:"topic"`
	CreatedTick  uint64   `json:"created_tick"`
	Severity     int      `json:"severity"`
	InvolvedCrew []string `json:"involved_crew,omitempty"`
	System       string   `json:"system,omitempty"`
	Resolved     bool     `json:"resolved"`
}

type RaiseDoubt struct {
	Doubt Doubt `json:"doubt"`
}

func (DoorDelay) EffectKind() Kind      { return KindDoorDelay }
func (SetComms) EffectKind() Kind       { return KindSetComms }
func (Blackout) EffectKind() Kind       { return KindBlackout }
func (SetPower) EffectKind() Kind       { return KindSetPower }
func (AdjustO2) EffectKind() Kind       { return KindAdjustO2 }
func (IgniteRoom) EffectKind() Kind     { return KindIgniteRoom }
func (Comms) EffectKind() Kind          { return KindComms }
func (SensorReading) EffectKind() Kind  { return KindSensorReading }
func (SuspicionDelta) EffectKind() Kind { return KindSuspicionDelta }
func (RaiseDoubt) EffectKind() Kind     { return KindDoubt }

// Dispatcher applies effects to the station. Apply must not call back into
// the director.
type Dispatcher interface {
	Apply(tick uint64, e Effect)
}

type DispatchFunc func(tick uint64, e Effect)

func (f DispatchFunc) Apply(tick uint64, e Effect) { f(tick, e) }

// Discard drops every effect.
var Discard Dispatcher = DispatchFunc(func(uint64, Effect) {})
