package engine

import (
	"github.com/karola3vax/Source2-AntiWallHack/internal/memory"
	"github.com/karola3vax/Source2-AntiWallHack/internal/scheduler"
	"github.com/karola3vax/Source2-AntiWallHack/internal/session"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// window accumulates counters between two summaries.
type window struct {
	ticks     int
	callbacks int64
	hidden    int64
	noEffect  int64
	fallbacks int64
	panics    int64
	memory    memoryCounters
}

type memoryCounters memory.Counters

func (m *memoryCounters) add(c memory.Counters) {
	m.HoldRefresh += c.HoldRefresh
	m.HoldKeepAlive += c.HoldKeepAlive
	m.HoldExpired += c.HoldExpired
	m.UnknownTotal += c.UnknownTotal
	m.UnknownSticky += c.UnknownSticky
	m.UnknownHold += c.UnknownHold
	m.UnknownFailOpen += c.UnknownFailOpen
	m.UnknownFailClosed += c.UnknownFailClosed
}

func (w *window) merge(o window) {
	w.ticks += o.ticks
	w.callbacks += o.callbacks
	w.hidden += o.hidden
	w.noEffect += o.noEffect
	w.fallbacks += o.fallbacks
	w.panics += o.panics
	w.memory.add(memory.Counters(o.memory))
}

func (w window) active() bool {
	return w.callbacks > 0 || w.hidden > 0 || w.noEffect > 0 || w.fallbacks > 0 || w.panics > 0 ||
		w.memory != memoryCounters{}
}

// Summary returns the diagnostics of the current window without closing it.
// Memory counters raised since the last tick are included.
func (e *Engine) Summary() core.RuntimeSummary {
	e.collectMemoryCounters()
	return e.summarize(e.window)
}

// Totals returns the counters accumulated since the map started, the open
// window included.
func (e *Engine) Totals() core.RuntimeSummary {
	e.collectMemoryCounters()
	all := e.totals
	all.merge(e.window)
	return e.summarize(all)
}

// closeWindow folds the window into the map totals and starts a new one.
func (e *Engine) closeWindow() {
	e.totals.merge(e.window)
	e.window = window{}
}

func (e *Engine) summarize(w window) core.RuntimeSummary {
	s := core.RuntimeSummary{
		Tick:              e.tick,
		Map:               session.NoMap,
		Timestamp:         e.now(),
		ViewerRows:        e.scheduler.Rows(),
		TransmitCallbacks: w.callbacks,
		HiddenEntities:    w.hidden,
		RemovalNoEffect:   w.noEffect,
		FallbackChecks:    w.fallbacks,
		EvalPanics:        w.panics,
		HoldRefresh:       w.memory.HoldRefresh,
		HoldKeepAlive:     w.memory.HoldKeepAlive,
		HoldExpired:       w.memory.HoldExpired,
		UnknownTotal:      w.memory.UnknownTotal,
		UnknownSticky:     w.memory.UnknownSticky,
		UnknownHold:       w.memory.UnknownHold,
		UnknownFailOpen:   w.memory.UnknownFailOpen,
		UnknownFailClosed: w.memory.UnknownFailClosed,
	}
	if e.session != nil {
		s.Map = e.session.Map()
	}

	// reuse this tick's list when it is cached; a failed read leaves counts at zero
	if players, err := e.entities.Players(e.tick, e.directory); err == nil {
		for _, p := range players {
			if !p.Live() {
				continue
			}
			s.LivePlayers++
			if p.Bot {
				s.Bots++
			} else {
				s.Humans++
			}
		}
	}
	if s.LivePlayers > 1 {
		s.RaysEstimate = s.LivePlayers * (s.LivePlayers - 1) * e.cfg.Trace.RayTracePoints
		s.PairsPerTick = scheduler.BatchSize(e.lastBatch.Eligible, e.cfg.Core.UpdateFrequencyTicks) * (s.LivePlayers - 1)
	}
	return s
}

func (e *Engine) publishSummary(tick int) {
	s := e.summarize(e.window)
	e.logger.Debug("Visibility status report",
		"tick", tick,
		"windowTicks", SummaryIntervalTicks,
		"players", s.LivePlayers,
		"humans", s.Humans,
		"bots", s.Bots,
		"viewerRows", s.ViewerRows,
		"raysPerScan", s.RaysEstimate,
		"hidden", s.HiddenEntities,
		"fallbacks", s.FallbackChecks,
		"redundantRemovals", s.RemovalNoEffect,
		"holdRefresh", s.HoldRefresh,
		"holdKeepAlive", s.HoldKeepAlive,
		"holdExpired", s.HoldExpired,
		"unknown", s.UnknownTotal,
		"unknownSticky", s.UnknownSticky,
		"unknownHold", s.UnknownHold,
		"unknownFailOpen", s.UnknownFailOpen,
		"evalPanics", s.EvalPanics,
	)
	for _, sink := range e.summaries {
		sink.RecordSummary(s)
	}
}
