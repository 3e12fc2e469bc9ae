package core

// Mask selects which collision layers a trace interacts with.
type Mask uint64

const (
	MaskWorld Mask = 1 << iota
	MaskPlayers
	MaskProps
	MaskDebris
)

// TraceOptions controls what a trace collides with.
type TraceOptions struct {
	InteractsWith Mask
}

// WorldOnly is the trace filter used by every visibility probe.
var WorldOnly = TraceOptions{InteractsWith: MaskWorld}

// TraceResult describes an executed trace. HitEntity is zero for world geometry.
type TraceResult struct {
	DidHit    bool
	Fraction  float64
	EndPos    Vec3
	HitEntity PawnID
}

// RayTraceProvider intersects rays and boxes with the world.
// The boolean result is false when the trace could not be executed at all,
// which is distinct from an executed trace that hit nothing.
type RayTraceProvider interface {
	TraceEndShape(start, end Vec3, ignore PawnID, opts TraceOptions) (TraceResult, bool)
	TraceHullShape(start, end, mins, maxs Vec3, ignore PawnID, opts TraceOptions) (TraceResult, bool)
}

// ProviderOperational probes the provider with a short trace near the origin.
func ProviderOperational(p RayTraceProvider) bool {
	if p == nil {
		return false
	}
	_, ok := p.TraceEndShape(Vec3{}, Vec3{1, 1, 1}, 0, WorldOnly)
	return ok
}
