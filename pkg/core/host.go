package core

import "errors"

// ErrNotReady is returned by an EntityDirectory before the host has
// populated its global state for the current map.
var ErrNotReady = errors.New("entity directory not ready")

// DefaultTickInterval is used whenever the host reports an unusable interval.
const DefaultTickInterval = 1.0 / 64.0

// EntityDirectory exposes the host's view of connected players.
type EntityDirectory interface {
	// LivePlayers returns every connected player for this tick.
	LivePlayers() ([]*Entity, error)
	// AssociatedEntities returns the network entities that must be hidden
	// together with the player: the pawn itself and its weapons.
	AssociatedEntities(e *Entity) []EntityHandle
	// TickInterval returns the server tick length in seconds.
	TickInterval() float64
}

// TransmitSet is the outgoing entity set for one viewer in one transmit callback.
type TransmitSet interface {
	Contains(h EntityHandle) bool
	Remove(h EntityHandle)
}

// TransmitInfo pairs a viewer with its outgoing set.
type TransmitInfo struct {
	Viewer   Slot
	Entities TransmitSet
}
