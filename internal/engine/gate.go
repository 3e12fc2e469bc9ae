package engine

import (
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// CheckTransmit filters the outgoing entity sets of one transmit callback.
// Targets the viewer should not see have their pawn and weapons removed.
// Visible targets are left alone so removals made by others stand.
func (e *Engine) CheckTransmit(tick int, infos []core.TransmitInfo) {
	if !e.cfg.Core.Enabled || !e.Ready() {
		return
	}
	players, err := e.livePlayers(tick)
	if err != nil {
		return
	}
	e.window.callbacks++
	e.metrics.recordCallback()

	for _, info := range infos {
		viewer := findLive(players, info.Viewer)
		if viewer == nil || info.Entities == nil {
			// dead and invalid viewers see everything
			continue
		}
		if viewer.Bot && !e.cfg.Visibility.BotsDoLOS {
			continue
		}

		for _, target := range players {
			if !target.Live() || target.Slot == viewer.Slot {
				continue
			}
			if e.transmitPair(viewer, target, tick) {
				continue
			}
			e.hide(info.Entities, target, tick)
		}
	}
}

// ShouldTransmit reports whether the viewer may receive the target this
// tick. Pairs the engine does not filter are always transmitted.
func (e *Engine) ShouldTransmit(viewer, target core.Slot) bool {
	if !e.cfg.Core.Enabled || !e.Ready() || viewer == target {
		return true
	}
	players, err := e.livePlayers(e.tick)
	if err != nil {
		return true
	}
	v := findLive(players, viewer)
	t := findLive(players, target)
	if v == nil || t == nil {
		return true
	}
	if v.Bot && !e.cfg.Visibility.BotsDoLOS {
		return true
	}
	return e.transmitPair(v, t, e.tick)
}

// transmitPair reads the scheduler row, falling back to an inline
// evaluation that is written back for later callbacks.
func (e *Engine) transmitPair(viewer, target *core.Entity, tick int) bool {
	if !e.cfg.Visibility.IncludeTeammates && viewer.Team == target.Team {
		return true
	}
	if !e.cfg.Visibility.IncludeBots && target.Bot {
		return true
	}

	if visible, ok := e.scheduler.Lookup(viewer.Slot, target.Slot, target.Pawn); ok {
		return visible
	}

	e.window.fallbacks++
	e.metrics.recordFallback()
	visible := e.decide(viewer, target, tick, e.cfg)
	e.scheduler.Store(viewer.Slot, target.Slot, target.Pawn, visible)
	return visible
}

func (e *Engine) hide(set core.TransmitSet, target *core.Entity, tick int) {
	removed := false
	for _, h := range e.entities.Associated(target, tick, e.directory) {
		if set.Contains(h) {
			set.Remove(h)
			removed = true
		}
	}
	if removed {
		e.window.hidden++
		e.metrics.recordHidden()
	} else {
		e.window.noEffect++
	}
}

func findLive(players []*core.Entity, slot core.Slot) *core.Entity {
	for _, p := range players {
		if p.Slot == slot && p.Live() {
			return p
		}
	}
	return nil
}
