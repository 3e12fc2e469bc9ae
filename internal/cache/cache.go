package cache

import (
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// EntityCache caches the host's player list and each player's associated
// network entities for the current tick, so transmit callbacks in the same
// tick don't query the host again.
type EntityCache struct {
	tick    int
	valid   bool
	players []*core.Entity

	handleTick [core.Capacity]int
	handlePawn [core.Capacity]core.PawnID
	handles    [core.Capacity][]core.EntityHandle
}

// NewEntityCache creates an empty cache.
func NewEntityCache() *EntityCache {
	c := &EntityCache{}
	c.Reset()
	return c
}

// Reset forgets everything.
func (c *EntityCache) Reset() {
	c.Invalidate()
	c.players = nil
	for i := range c.handles {
		c.handleTick[i] = -1
		c.handlePawn[i] = 0
		c.handles[i] = nil
	}
}

// Invalidate forces the next Players call to query the host.
func (c *EntityCache) Invalidate() {
	c.tick = -1
	c.valid = false
}

// Players returns the host player list for tick, querying dir at most once
// per tick. Errors are not cached.
func (c *EntityCache) Players(tick int, dir core.EntityDirectory) ([]*core.Entity, error) {
	if c.valid && c.tick == tick {
		return c.players, nil
	}
	players, err := dir.LivePlayers()
	if err != nil {
		c.Invalidate()
		return nil, err
	}
	c.players = players
	c.tick = tick
	c.valid = true
	return players, nil
}

// Associated returns the entities hidden together with e for tick.
func (c *EntityCache) Associated(e *core.Entity, tick int, dir core.EntityDirectory) []core.EntityHandle {
	if e == nil || !e.Slot.Valid() {
		return nil
	}
	s := e.Slot
	if c.handleTick[s] == tick && c.handlePawn[s] == e.Pawn {
		return c.handles[s]
	}
	c.handles[s] = dir.AssociatedEntities(e)
	c.handleTick[s] = tick
	c.handlePawn[s] = e.Pawn
	return c.handles[s]
}

// Remove drops the cached entities of slot and invalidates the player list.
func (c *EntityCache) Remove(slot core.Slot) {
	c.Invalidate()
	if !slot.Valid() {
		return
	}
	c.handleTick[slot] = -1
	c.handlePawn[slot] = 0
	c.handles[slot] = nil
}
