package geometry

import (
	"math"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

const (
	minLookaheadSpeedSqr = 0.0001
	minLookaheadDistance = 0.001
)

// Lookahead returns the displacement a moving entity covers within the
// lookahead horizon. The distance scales linearly from zero at minSpeed to
// the full distance at fullSpeed. With horizontalOnly the vertical velocity
// is ignored.
func Lookahead(velocity *core.Vec3, minSpeed, fullSpeed, distance float64, horizontalOnly bool) (core.Vec3, bool) {
	if velocity == nil || distance <= 0 {
		return core.Vec3{}, false
	}

	v := *velocity
	if horizontalOnly {
		v = core.Vec3{v.X(), v.Y(), 0}
	}

	speedSqr := v.Dot(v)
	if speedSqr <= minLookaheadSpeedSqr {
		return core.Vec3{}, false
	}

	speed := math.Sqrt(speedSqr)
	minSpeed = math.Max(0, minSpeed)
	if speed < minSpeed {
		return core.Vec3{}, false
	}

	full := math.Max(minSpeed+1, fullSpeed)
	alpha := clamp01((speed - minSpeed) / (full - minSpeed))
	effective := distance * alpha
	if effective <= minLookaheadDistance {
		return core.Vec3{}, false
	}

	return v.Mul(effective / speed), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
