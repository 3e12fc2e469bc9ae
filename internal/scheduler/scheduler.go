// Package scheduler spreads per-viewer visibility evaluation across ticks
// and keeps the resulting decision rows for the transmission gate.
package scheduler

import (
	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/internal/slots"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// StationarySpeedSqr is the squared speed under which an entity counts as
// standing still.
const StationarySpeedSqr = 4.0

// Decider resolves one viewer/target pair into a transmit decision.
type Decider interface {
	Decide(viewer, target *core.Entity, tick int, cfg *config.Config) bool
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(viewer, target *core.Entity, tick int, cfg *config.Config) bool

// Decide calls f.
func (f DeciderFunc) Decide(viewer, target *core.Entity, tick int, cfg *config.Config) bool {
	return f(viewer, target, tick, cfg)
}

type entry struct {
	visible bool
	pawn    core.PawnID
}

// Batch reports what a Rebuild call did.
type Batch struct {
	Eligible  int
	Size      int
	Processed int
	Evaluated int
	Reused    int
	FullCycle bool
}

// Scheduler owns the viewer rows. It is owned by the tick thread.
type Scheduler struct {
	decider Decider
	rows    slots.Table[entry]
	cursor  int

	live   [core.Capacity]bool
	viewer [core.Capacity]bool
}

// New creates a Scheduler evaluating pairs through d.
func New(d Decider) *Scheduler {
	return &Scheduler{decider: d}
}

// EligibleViewer reports whether e gets its own row.
func EligibleViewer(e *core.Entity, cfg *config.Config) bool {
	return e != nil && e.Live() && (!e.Bot || cfg.Visibility.BotsDoLOS)
}

// BatchSize returns how many viewers are processed per tick.
func BatchSize(eligible, updateTicks int) int {
	if eligible <= 0 {
		return 0
	}
	if updateTicks < 1 {
		updateTicks = 1
	}
	return (eligible + updateTicks - 1) / updateTicks
}

// Rebuild evaluates the next batch of viewers against every other live
// target. players may contain entities that are not live; they are skipped.
func (s *Scheduler) Rebuild(players []*core.Entity, tick int, cfg *config.Config) Batch {
	var b Batch
	for _, p := range players {
		if EligibleViewer(p, cfg) {
			b.Eligible++
		}
	}
	if b.Eligible == 0 {
		s.cursor = 0
		return b
	}

	b.Size = BatchSize(b.Eligible, cfg.Core.UpdateFrequencyTicks)
	if s.cursor >= b.Eligible {
		s.cursor = 0
	}

	index := 0
	for vi, viewer := range players {
		if b.Processed >= b.Size {
			break
		}
		if !EligibleViewer(viewer, cfg) {
			continue
		}
		if index < s.cursor {
			index++
			continue
		}
		index++
		b.Processed++

		stationary := viewer.SpeedSqr() < StationarySpeedSqr
		row := s.rows.Row(viewer.Slot)
		for ti, target := range players {
			if ti == vi || !target.Live() {
				continue
			}
			if stationary && target.SpeedSqr() < StationarySpeedSqr {
				if cached, ok := row.Get(target.Slot); ok && cached.visible && cached.pawn == target.Pawn {
					b.Reused++
					continue
				}
			}

			visible := s.decider.Decide(viewer, target, tick, cfg)
			s.rows.Set(viewer.Slot, target.Slot, entry{visible: visible, pawn: target.Pawn})
			row = s.rows.Row(viewer.Slot)
			b.Evaluated++
		}
	}

	b.FullCycle = s.cursor+b.Processed >= b.Eligible
	if b.FullCycle {
		s.purge(players, cfg)
		s.cursor = 0
	} else {
		s.cursor += b.Processed
	}
	return b
}

func (s *Scheduler) purge(players []*core.Entity, cfg *config.Config) {
	s.live = [core.Capacity]bool{}
	s.viewer = [core.Capacity]bool{}
	for _, p := range players {
		if !p.Live() {
			continue
		}
		s.live[p.Slot] = true
		if EligibleViewer(p, cfg) {
			s.viewer[p.Slot] = true
		}
	}
	s.rows.RetainViewers(s.IsActiveViewer)
	s.rows.RetainTargets(s.IsLiveTarget)
}

// IsActiveViewer reports whether slot was an eligible viewer at the last
// full cycle.
func (s *Scheduler) IsActiveViewer(slot core.Slot) bool {
	return slot.Valid() && s.viewer[slot]
}

// IsLiveTarget reports whether slot was live at the last full cycle.
func (s *Scheduler) IsLiveTarget(slot core.Slot) bool {
	return slot.Valid() && s.live[slot]
}

// Lookup returns the cached decision for the pair if it was made for the
// given pawn.
func (s *Scheduler) Lookup(viewer, target core.Slot, pawn core.PawnID) (bool, bool) {
	e, ok := s.rows.Get(viewer, target)
	if !ok || e.pawn != pawn {
		return false, false
	}
	return e.visible, true
}

// Store writes a decision made outside Rebuild.
func (s *Scheduler) Store(viewer, target core.Slot, pawn core.PawnID, visible bool) {
	s.rows.Set(viewer, target, entry{visible: visible, pawn: pawn})
}

// RemoveSlot forgets slot both as a viewer and as a target.
func (s *Scheduler) RemoveSlot(slot core.Slot) {
	s.rows.RemoveViewer(slot)
	s.rows.RemoveTarget(slot)
}

// Cursor returns the offset of the next batch.
func (s *Scheduler) Cursor() int {
	return s.cursor
}

// Rows returns the number of viewer rows.
func (s *Scheduler) Rows() int {
	return s.rows.Len()
}

// Pairs returns the number of cached decisions.
func (s *Scheduler) Pairs() int {
	n := 0
	for slot := core.Slot(0); slot < core.Capacity; slot++ {
		n += s.rows.Row(slot).Len()
	}
	return n
}

// Reset drops every row and rewinds the cursor.
func (s *Scheduler) Reset() {
	s.rows.Reset()
	s.cursor = 0
	s.live = [core.Capacity]bool{}
	s.viewer = [core.Capacity]bool{}
}
