// Package memory stabilizes raw visibility verdicts into transmit decisions
// using reveal holds and short-lived sticky decisions.
package memory

import (
	"github.com/karola3vax/Source2-AntiWallHack/internal/slots"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// Counters tracks how decisions were resolved since the last Take.
type Counters struct {
	HoldRefresh   int64
	HoldKeepAlive int64
	HoldExpired   int64

	UnknownTotal    int64
	UnknownSticky   int64
	UnknownHold     int64
	UnknownFailOpen int64
	// UnknownFailClosed counts ambiguous verdicts hidden by policy.
	UnknownFailClosed int64
}

type decision struct {
	visible bool
	tick    int
}

// Memory holds the reveal-hold and stable-decision rows. It is owned by
// the tick thread.
type Memory struct {
	holds  slots.Table[int]
	stable slots.Table[decision]

	holdTicks   int
	stickyTicks int
	failClosed  bool

	counters Counters
}

// New creates an empty Memory with holds and sticky decisions disabled.
func New() *Memory {
	return &Memory{}
}

// Configure sets the hold length and sticky window in ticks. With
// failClosed an unresolved ambiguous verdict hides the target.
func (m *Memory) Configure(holdTicks, stickyTicks int, failClosed bool) {
	m.holdTicks = holdTicks
	m.stickyTicks = stickyTicks
	m.failClosed = failClosed
}

// HoldTicks returns the configured reveal hold length.
func (m *Memory) HoldTicks() int {
	return m.holdTicks
}

// StickyTicks returns the configured sticky window.
func (m *Memory) StickyTicks() int {
	return m.stickyTicks
}

// Resolve turns a raw verdict into the transmit decision for the pair.
func (m *Memory) Resolve(viewer, target core.Slot, eval core.VisibilityEval, tick int) bool {
	switch eval {
	case core.Visible:
		m.stable.Set(viewer, target, decision{visible: true, tick: tick})
		if m.holdTicks > 0 {
			m.holds.Set(viewer, target, tick+m.holdTicks)
			m.counters.HoldRefresh++
		} else {
			m.holds.Clear(viewer, target)
		}
		return true

	case core.Hidden:
		m.stable.Set(viewer, target, decision{visible: false, tick: tick})
		if m.holdActive(viewer, target, tick) {
			m.counters.HoldKeepAlive++
			return true
		}
		return false

	case core.UnknownTransient:
		m.counters.UnknownTotal++
		if visible, ok := m.sticky(viewer, target, tick); ok {
			m.counters.UnknownSticky++
			return visible
		}
		if m.holdActive(viewer, target, tick) {
			m.counters.UnknownHold++
			return true
		}
		if m.failClosed {
			m.counters.UnknownFailClosed++
			return false
		}
		m.counters.UnknownFailOpen++
		return true
	}

	// unexpected verdicts never hide anyone
	return true
}

func (m *Memory) holdActive(viewer, target core.Slot, tick int) bool {
	if m.holdTicks <= 0 {
		return false
	}
	until, ok := m.holds.Get(viewer, target)
	if !ok {
		return false
	}
	if until >= tick {
		return true
	}
	m.holds.Clear(viewer, target)
	m.counters.HoldExpired++
	return false
}

func (m *Memory) sticky(viewer, target core.Slot, tick int) (bool, bool) {
	d, ok := m.stable.Get(viewer, target)
	if !ok {
		return false, false
	}
	age := tick - d.tick
	if age < 0 || age > m.stickyTicks {
		m.stable.Clear(viewer, target)
		return false, false
	}
	return d.visible, true
}

// RemoveViewer drops every row owned by viewer.
func (m *Memory) RemoveViewer(viewer core.Slot) {
	m.holds.RemoveViewer(viewer)
	m.stable.RemoveViewer(viewer)
}

// RemoveTarget forgets target in every viewer row.
func (m *Memory) RemoveTarget(target core.Slot) {
	m.holds.RemoveTarget(target)
	m.stable.RemoveTarget(target)
}

// Retain drops rows of viewers and entries of targets that are not kept.
func (m *Memory) Retain(viewers, targets func(core.Slot) bool) {
	m.holds.RetainViewers(viewers)
	m.stable.RetainViewers(viewers)
	m.holds.RetainTargets(targets)
	m.stable.RetainTargets(targets)
}

// Reset drops all rows.
func (m *Memory) Reset() {
	m.holds.Reset()
	m.stable.Reset()
}

// Rows returns the number of hold and stable-decision rows.
func (m *Memory) Rows() (holds, stable int) {
	return m.holds.Len(), m.stable.Len()
}

// TakeCounters returns the counters and starts a new window.
func (m *Memory) TakeCounters() Counters {
	c := m.counters
	m.counters = Counters{}
	return c
}
