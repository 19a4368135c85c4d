package ws

import (
	"paranoia.ai/internal/sim/director/arbiter"
	"paranoia.ai/internal/sim/director/threats"
)

// Version is the headline feed protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeHello     = "HELLO"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the connection; may be re-sent to change
// the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// MinPriority drops lower-tier headlines (LOW, MEDIUM, HIGH, CRITICAL).
	MinPriority string `json:"min_priority,omitempty"`
	// Quiet skips ticks that carry no headlines.
	Quiet bool `json:"quiet,omitempty"`
}

type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Tick            uint64 `json:"tick"`
}

// Server -> Client, once per tick.
type TickMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Tick            uint64             `json:"tick"`
	Suspicion       int                `json:"suspicion"`
	Channel         string             `json:"channel,omitempty"`
	Headlines       []arbiter.Headline `json:"headlines"`
	Threats         []threats.Status   `json:"threats,omitempty"`
}
