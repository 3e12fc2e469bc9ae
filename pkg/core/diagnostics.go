package core

import "time"

// BeamKind labels the probing stage that produced a debug beam.
type BeamKind string

const (
	BeamDirect   BeamKind = "direct"
	BeamAimFan   BeamKind = "aim_fan"
	BeamGapSweep BeamKind = "gap_sweep"
	BeamHull     BeamKind = "micro_hull"
	BeamPredict  BeamKind = "predict"
)

// TraceBeam is one executed visibility trace, emitted for debug rendering.
type TraceBeam struct {
	Tick      int      `json:"tick"`
	Viewer    Slot     `json:"viewer"`
	Target    Slot     `json:"target"`
	Kind      BeamKind `json:"kind"`
	Start     Vec3     `json:"start"`
	End       Vec3     `json:"end"`
	Hit       bool     `json:"hit"`
	ViewerBot bool     `json:"viewerBot"`
}

// BeamSink receives debug beams on the tick thread. Implementations must not block.
type BeamSink interface {
	DrawBeam(b TraceBeam)
}

// RuntimeSummary is the periodic diagnostics snapshot of the engine.
type RuntimeSummary struct {
	Tick      int       `json:"tick"`
	Map       string    `json:"map"`
	Timestamp time.Time `json:"timestamp"`

	LivePlayers  int `json:"livePlayers"`
	Humans       int `json:"humans"`
	Bots         int `json:"bots"`
	ViewerRows   int `json:"viewerRows"`
	PairsPerTick int `json:"pairsPerTick"`
	RaysEstimate int `json:"raysEstimate"`

	TransmitCallbacks int64 `json:"transmitCallbacks"`
	HiddenEntities    int64 `json:"hiddenEntities"`
	RemovalNoEffect   int64 `json:"removalNoEffect"`
	FallbackChecks    int64 `json:"fallbackChecks"`
	EvalPanics        int64 `json:"evalPanics"`

	HoldRefresh   int64 `json:"holdRefresh"`
	HoldKeepAlive int64 `json:"holdKeepAlive"`
	HoldExpired   int64 `json:"holdExpired"`

	UnknownTotal      int64 `json:"unknownTotal"`
	UnknownSticky     int64 `json:"unknownSticky"`
	UnknownHold       int64 `json:"unknownHold"`
	UnknownFailOpen   int64 `json:"unknownFailOpen"`
	UnknownFailClosed int64 `json:"unknownFailClosed"`
}

// SummarySink receives runtime summaries. Implementations must not block.
type SummarySink interface {
	RecordSummary(s RuntimeSummary)
}
