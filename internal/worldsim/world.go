package worldsim

import (
	"sort"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// World is a static box world populated with scripted players. It serves
// as both the trace provider and the entity directory of the simulator.
type World struct {
	Brushes []Brush
	// Offline makes every trace report that it could not execute.
	Offline bool
	// NotReady makes LivePlayers fail with core.ErrNotReady.
	NotReady bool

	tickInterval float64
	players      map[core.Slot]*core.Entity
	weapons      map[core.Slot][]core.EntityHandle
	traces       int
}

// New creates an empty world running at the given tick interval.
func New(tickInterval float64) *World {
	return &World{
		tickInterval: tickInterval,
		players:      make(map[core.Slot]*core.Entity),
		weapons:      make(map[core.Slot][]core.EntityHandle),
	}
}

// AddBrush adds a solid block.
func (w *World) AddBrush(mins, maxs core.Vec3) {
	w.Brushes = append(w.Brushes, Brush{Mins: mins, Maxs: maxs})
}

// Put inserts or replaces a player.
func (w *World) Put(e *core.Entity, weapons ...core.EntityHandle) {
	w.players[e.Slot] = e
	w.weapons[e.Slot] = weapons
}

// Player returns the player in slot, or nil.
func (w *World) Player(slot core.Slot) *core.Entity {
	return w.players[slot]
}

// Remove disconnects a player.
func (w *World) Remove(slot core.Slot) {
	delete(w.players, slot)
	delete(w.weapons, slot)
}

// Step advances every live player along its velocity.
func (w *World) Step() {
	dt := w.TickInterval()
	for _, p := range w.players {
		if !p.Live() || p.Origin == nil || p.Velocity == nil {
			continue
		}
		next := p.Origin.Add(p.Velocity.Mul(dt))
		p.Origin = &next
	}
}

// Traces returns how many traces were requested so far.
func (w *World) Traces() int {
	return w.traces
}

// LivePlayers returns the connected players ordered by slot.
func (w *World) LivePlayers() ([]*core.Entity, error) {
	if w.NotReady {
		return nil, core.ErrNotReady
	}
	out := make([]*core.Entity, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

// AssociatedEntities returns the pawn handle followed by the weapon handles.
func (w *World) AssociatedEntities(e *core.Entity) []core.EntityHandle {
	if e == nil || e.Pawn == 0 {
		return nil
	}
	out := []core.EntityHandle{core.EntityHandle(e.Pawn)}
	return append(out, w.weapons[e.Slot]...)
}

// TickInterval returns the configured tick length in seconds.
func (w *World) TickInterval() float64 {
	return w.tickInterval
}

// Set is a transmit set backed by a map.
type Set map[core.EntityHandle]struct{}

// NewSet returns a set containing handles.
func NewSet(handles ...core.EntityHandle) Set {
	s := make(Set, len(handles))
	for _, h := range handles {
		s[h] = struct{}{}
	}
	return s
}

// Contains reports whether h is in the set.
func (s Set) Contains(h core.EntityHandle) bool {
	_, ok := s[h]
	return ok
}

// Remove deletes h from the set.
func (s Set) Remove(h core.EntityHandle) {
	delete(s, h)
}
