package core

import "github.com/go-gl/mathgl/mgl64"

// Capacity is the maximum number of player slots tracked by the engine.
const Capacity = 128

// Vec3 is a world-space point or direction in game units.
type Vec3 = mgl64.Vec3

// Slot identifies a connected player. Valid slots are 0 <= slot < Capacity.
type Slot int

// Valid reports whether the slot fits in the dense slot arrays.
func (s Slot) Valid() bool {
	return s >= 0 && s < Capacity
}

// PawnID is the fingerprint of a player's current in-world body.
// Zero means no pawn.
type PawnID uint32

// EntityHandle is a networked entity that can be removed from a transmit set.
type EntityHandle uint32

// Bounds is a collision box relative to the entity origin.
type Bounds struct {
	Mins Vec3
	Maxs Vec3
}

// Center returns the box center relative to the origin.
func (b Bounds) Center() Vec3 {
	return b.Mins.Add(b.Maxs).Mul(0.5)
}

// HalfExtents returns the non-negative half sizes of the box.
func (b Bounds) HalfExtents() Vec3 {
	d := b.Maxs.Sub(b.Mins).Mul(0.5)
	return Vec3{abs(d[0]), abs(d[1]), abs(d[2])}
}

// Entity is the per-tick snapshot of a player as seen by the engine.
// Nil pointers mark data the host could not resolve this tick.
type Entity struct {
	Slot  Slot
	Pawn  PawnID
	Team  int
	Alive bool
	Bot   bool

	Origin     *Vec3
	Velocity   *Vec3
	ViewOffset *Vec3
	// EyeAngles holds pitch, yaw and roll in degrees.
	EyeAngles *Vec3
	Bounds    *Bounds
}

// Live reports whether the player has a body in the world this tick.
func (e *Entity) Live() bool {
	return e != nil && e.Slot.Valid() && e.Pawn != 0 && e.Alive
}

// SpeedSqr returns the squared velocity length, or 0 when velocity is unknown.
func (e *Entity) SpeedSqr() float64 {
	if e == nil || e.Velocity == nil {
		return 0
	}
	return e.Velocity.Dot(*e.Velocity)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
