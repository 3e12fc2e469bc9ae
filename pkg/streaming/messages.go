// Package streaming defines the debug stream wire protocol: JSON envelopes
// sent over a WebSocket to a visualizer.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeSessionStart   = "session_start"
	TypeSessionEnd     = "session_end"
	TypeTraceBeams     = "trace_beams"
	TypeRuntimeSummary = "runtime_summary"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionStartPayload announces the map the following messages belong to.
type SessionStartPayload struct {
	Map          string    `json:"map"`
	TickInterval float64   `json:"tickInterval"`
	Started      time.Time `json:"started"`
}

// TraceBeamsPayload carries every debug beam of one tick.
type TraceBeamsPayload struct {
	Tick    int              `json:"tick"`
	Beams   []core.TraceBeam `json:"beams"`
	Dropped int              `json:"dropped,omitempty"`
}
