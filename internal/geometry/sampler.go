package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// DefaultViewOffset is used when the host cannot resolve a pawn's view offset.
var DefaultViewOffset = core.Vec3{0, 0, 64}

const (
	losHorizontalPadding = 1.5
	losVerticalPadding   = 1.25

	lowerRingFactor = 0.75
	upperRingFactor = 0.85

	minDirectionSqr = 0.0001
)

// EyePosition returns origin plus view offset. It fails only when the
// origin is unknown.
func EyePosition(e *core.Entity) (core.Vec3, bool) {
	if e == nil || e.Origin == nil {
		return core.Vec3{}, false
	}
	return e.Origin.Add(viewOffset(e)), true
}

func viewOffset(e *core.Entity) core.Vec3 {
	if e.ViewOffset != nil {
		return *e.ViewOffset
	}
	return DefaultViewOffset
}

// SampleOptions selects how TargetSamplePoints builds the set.
type SampleOptions struct {
	// Origin replaces the entity origin, used for predicted positions.
	Origin *core.Vec3
	// Predictive switches from fixed LOS padding to the adaptive,
	// configurable predictor box with true corners.
	Predictive bool
}

// TargetSamplePoints builds the ordered sample set for a target.
// The set is empty when no origin is available.
func TargetSamplePoints(e *core.Entity, opts SampleOptions, cfg *config.Config) PointSet {
	var set PointSet
	if e == nil {
		return set
	}

	origin := e.Origin
	if opts.Origin != nil {
		origin = opts.Origin
	}
	if origin == nil {
		return set
	}
	o := *origin
	offset := viewOffset(e)

	set.add(o.Add(offset))

	if e.Bounds == nil {
		set.add(core.Vec3{o.X(), o.Y(), o.Z() + offset.Z()/2})
		set.truncate(PointLimit(cfg))
		return set
	}

	center := e.Bounds.Center()
	size := e.Bounds.Maxs.Sub(e.Bounds.Mins).Mul(0.5)
	hScale, vScale := losHorizontalPadding, losVerticalPadding

	if opts.Predictive {
		alpha := AdaptiveAlpha(Speed(e.Velocity), cfg)
		hScale = cfg.Aabb.HorizontalScale * lerp(1, cfg.Aabb.ProfileHorizontalMaxMultiplier, alpha)
		vScale = cfg.Aabb.VerticalScale * lerp(1, cfg.Aabb.ProfileVerticalMaxMultiplier, alpha)

		if cfg.Aabb.EnableDirectionalShift && alpha > 0 {
			if dir, ok := MovementDirection(e.Velocity); ok {
				shift := cfg.Aabb.DirectionalForwardShiftMaxUnits * alpha * cfg.Aabb.DirectionalPredictorShiftFactor
				center = center.Add(dir.Mul(shift))
			}
		}
	}

	half := core.Vec3{size.X() * hScale, size.Y() * hScale, size.Z() * vScale}
	lo := center.Sub(half)
	hi := center.Add(half)

	set.add(o.Add(center))

	if opts.Predictive {
		for _, z := range [2]float64{lo.Z(), hi.Z()} {
			set.add(o.Add(core.Vec3{lo.X(), lo.Y(), z}))
			set.add(o.Add(core.Vec3{hi.X(), lo.Y(), z}))
			set.add(o.Add(core.Vec3{lo.X(), hi.Y(), z}))
			set.add(o.Add(core.Vec3{hi.X(), hi.Y(), z}))
		}
	} else {
		lowerZ := mgl64.Clamp(center.Z()-half.Z()*lowerRingFactor, lo.Z(), hi.Z())
		upperZ := mgl64.Clamp(center.Z()+half.Z()*upperRingFactor, lo.Z(), hi.Z())
		for _, z := range [2]float64{lowerZ, upperZ} {
			set.add(o.Add(core.Vec3{hi.X(), hi.Y(), z}))
			set.add(o.Add(core.Vec3{lo.X(), hi.Y(), z}))
			set.add(o.Add(core.Vec3{hi.X(), lo.Y(), z}))
			set.add(o.Add(core.Vec3{lo.X(), lo.Y(), z}))
		}
	}

	set.truncate(PointLimit(cfg))
	return set
}

// PointLimit returns the configured sample count clamped to [1, MaxSamplePoints].
func PointLimit(cfg *config.Config) int {
	n := cfg.Trace.RayTracePoints
	if n < 1 {
		return 1
	}
	if n > MaxSamplePoints {
		return MaxSamplePoints
	}
	return n
}

// AdaptiveAlpha maps a speed onto [0, 1] between the profile start and full speeds.
func AdaptiveAlpha(speed float64, cfg *config.Config) float64 {
	if !cfg.Aabb.EnableAdaptiveProfile {
		return 0
	}
	start := math.Max(0, cfg.Aabb.ProfileSpeedStart)
	full := math.Max(start+1, cfg.Aabb.ProfileSpeedFull)
	switch {
	case speed <= start:
		return 0
	case speed >= full:
		return 1
	}
	return (speed - start) / (full - start)
}

// MovementDirection returns the normalized horizontal velocity direction,
// or the full 3D direction when the horizontal part is negligible.
func MovementDirection(velocity *core.Vec3) (core.Vec3, bool) {
	if velocity == nil {
		return core.Vec3{}, false
	}
	v := *velocity
	horizontal := core.Vec3{v.X(), v.Y(), 0}
	if horizontal.Dot(horizontal) > minDirectionSqr {
		return horizontal.Normalize(), true
	}
	if v.Dot(v) > minDirectionSqr {
		return v.Normalize(), true
	}
	return core.Vec3{}, false
}

// Speed returns the velocity length, or 0 when unknown.
func Speed(velocity *core.Vec3) float64 {
	if velocity == nil {
		return 0
	}
	return velocity.Len()
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
