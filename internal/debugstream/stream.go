// Package debugstream streams debug trace beams and runtime summaries to a
// WebSocket visualizer.
package debugstream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/karola3vax/Source2-AntiWallHack/internal/queue"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/streaming"
)

// DefaultMaxBeamsPerTick bounds the beams buffered between two flushes.
const DefaultMaxBeamsPerTick = 4096

// Config holds debug stream settings.
type Config struct {
	URL             string
	Secret          string
	MaxBeamsPerTick int
}

// Streamer implements core.BeamSink and core.SummarySink. Beams are
// buffered on the tick thread and sent as one message per Flush.
type Streamer struct {
	conn  *connection
	cfg   Config
	beams *queue.Queue[core.TraceBeam]
}

// New creates a Streamer. Call Init to connect.
func New(cfg Config, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBeamsPerTick <= 0 {
		cfg.MaxBeamsPerTick = DefaultMaxBeamsPerTick
	}
	return &Streamer{
		conn:  newConnection(logger.With("component", "debugstream")),
		cfg:   cfg,
		beams: queue.NewBounded[core.TraceBeam](cfg.MaxBeamsPerTick),
	}
}

// Init connects to the visualizer.
func (s *Streamer) Init() error {
	return s.conn.dial(s.cfg.URL, s.cfg.Secret)
}

// Close disconnects.
func (s *Streamer) Close() error {
	return s.conn.close()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (s *Streamer) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	s.conn.send(data)
	return nil
}

// StartSession announces a new map and waits for the visualizer to ack it.
// The message is replayed after every reconnect.
func (s *Streamer) StartSession(mapName string, tickInterval float64, started time.Time) error {
	data, err := marshalEnvelope(streaming.TypeSessionStart, streaming.SessionStartPayload{
		Map:          mapName,
		TickInterval: tickInterval,
		Started:      started,
	})
	if err != nil {
		return err
	}
	s.conn.setSession(data)
	return s.conn.sendAndWait(data, streaming.TypeSessionStart, ackTimeout)
}

// EndSession closes the current map and waits for the ack.
func (s *Streamer) EndSession() error {
	s.beams.Clear()
	data, err := marshalEnvelope(streaming.TypeSessionEnd, struct{}{})
	if err != nil {
		return err
	}
	err = s.conn.sendAndWait(data, streaming.TypeSessionEnd, ackTimeout)
	s.conn.setSession(nil)
	return err
}

// DrawBeam buffers b until the next Flush.
func (s *Streamer) DrawBeam(b core.TraceBeam) {
	s.beams.Push(b)
}

// Flush sends the beams buffered for tick. Nothing is sent when no beam
// was drawn.
func (s *Streamer) Flush(tick int) error {
	beams := s.beams.GetAndEmpty()
	if len(beams) == 0 {
		return nil
	}
	return s.sendEnvelope(streaming.TypeTraceBeams, streaming.TraceBeamsPayload{
		Tick:    tick,
		Beams:   beams,
		Dropped: s.beams.TakeDropped(),
	})
}

// RecordSummary sends a runtime summary.
func (s *Streamer) RecordSummary(sum core.RuntimeSummary) {
	if err := s.sendEnvelope(streaming.TypeRuntimeSummary, sum); err != nil {
		s.conn.logger.Warn("Failed to send runtime summary", "error", err)
	}
}

// Dropped returns how many messages were dropped because the send buffer
// was full since the last call.
func (s *Streamer) Dropped() int {
	return s.conn.takeDropped()
}
