package engine

import (
	"errors"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// OnTick runs one scheduler batch and closes the diagnostics window when
// it is due.
func (e *Engine) OnTick(tick int) {
	e.tick = tick
	if e.session != nil {
		e.session.SetTick(tick)
	}

	if !e.Ready() {
		e.ticksSinceInit++
		if e.ticksSinceInit >= InitRetryTicks {
			e.ticksSinceInit = 0
			e.tryInit("tick")
		}
		return
	}
	if !e.cfg.Core.Enabled {
		return
	}

	e.rebuild(tick)
	e.collectMemoryCounters()

	if !e.cfg.Diagnostics.ShowDebugInfo {
		e.closeWindow()
		return
	}
	e.window.ticks++
	if e.window.ticks < SummaryIntervalTicks {
		return
	}
	if e.window.active() {
		e.publishSummary(tick)
	}
	e.closeWindow()
}

// rebuild runs the next scheduler batch. It reports false when the host
// could not list players this tick.
func (e *Engine) rebuild(tick int) bool {
	players, err := e.livePlayers(tick)
	if err != nil {
		return false
	}

	b := e.scheduler.Rebuild(players, tick, e.cfg)
	e.lastBatch = b
	e.metrics.setRows(e.scheduler.Rows())
	if !b.FullCycle {
		return true
	}

	e.memory.Retain(e.scheduler.IsActiveViewer, e.scheduler.IsLiveTarget)
	if e.cfg.Diagnostics.ShowDebugInfo && e.lastLiveCount != len(players) {
		e.logger.Debug("Visibility table refreshed",
			"players", len(players),
			"viewerRows", e.scheduler.Rows(),
			"batchSize", b.Size,
		)
		e.lastLiveCount = len(players)
	}
	return true
}

// livePlayers returns the host player list for tick, logging each failure
// category once.
func (e *Engine) livePlayers(tick int) ([]*core.Entity, error) {
	players, err := e.entities.Players(tick, e.directory)
	if err == nil {
		e.once.Forget(catNotReady)
		e.once.Forget(catDirectoryError)
		return players, nil
	}

	if errors.Is(err, core.ErrNotReady) {
		if e.once.Allow(catNotReady) {
			e.logger.Debug("Player list not available yet, skipping tick", "tick", tick)
		}
	} else if e.once.Allow(catDirectoryError) {
		e.logger.Warn("Could not read the player list", "tick", tick, "error", err)
	}
	return nil, err
}

// decide evaluates one pair and resolves it through decision memory.
func (e *Engine) decide(viewer, target *core.Entity, tick int, _ *config.Config) bool {
	eval := e.EvaluateSafe(viewer, target, tick)
	return e.memory.Resolve(viewer.Slot, target.Slot, eval, tick)
}

func (e *Engine) collectMemoryCounters() {
	c := e.memory.TakeCounters()
	e.window.memory.add(c)
	e.metrics.recordMemory(c)
}
