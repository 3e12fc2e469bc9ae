package los

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

const (
	gapSweepLengthFactor = 1.15
	microHullProbeLimit  = 6

	aimFanRays = 5
)

// Gap-sweep offsets in radians: index 0 duplicates the center ray and is
// skipped, 1-4 are the cardinal 6 degree probes, 5-8 the 4.2 degree diagonals.
var (
	gapSweepPitch = [...]float64{
		0,
		0.10471976, -0.10471976, 0, 0,
		0.07330383, 0.07330383, -0.07330383, -0.07330383,
	}
	gapSweepYaw = [...]float64{
		0,
		0, 0, 0.10471976, -0.10471976,
		0.07330383, -0.07330383, 0.07330383, -0.07330383,
	}
)

// aimFan caches where the viewer's crosshair rays landed this tick.
type aimFan struct {
	tick int
	pawn core.PawnID
	hits [aimFanRays]core.Vec3
	n    int
}

// forward converts pitch and yaw in radians into a unit direction.
// Positive pitch looks down.
func forward(pitch, yaw float64) core.Vec3 {
	sp, cp := math.Sincos(pitch)
	sy, cy := math.Sincos(yaw)
	return core.Vec3{cp * cy, cp * sy, -sp}
}

// aimFanNear reports whether center lies within the hit radius of any
// point the viewer's crosshair fan struck this tick.
func (e *Evaluator) aimFanNear(viewer *core.Entity, v viewerState, center core.Vec3, tick int, cfg *config.Config) bool {
	fan := e.aimFanFor(viewer, v, tick, cfg)
	radiusSqr := cfg.AimAssist.HitRadius * cfg.AimAssist.HitRadius
	for _, hit := range fan.hits[:fan.n] {
		d := hit.Sub(center)
		if d.Dot(d) <= radiusSqr {
			return true
		}
	}
	return false
}

func (e *Evaluator) aimFanFor(viewer *core.Entity, v viewerState, tick int, cfg *config.Config) *aimFan {
	fan := &e.fans[viewer.Slot]
	if fan.tick == tick && fan.pawn == viewer.Pawn {
		return fan
	}
	fan.tick = tick
	fan.pawn = viewer.Pawn
	fan.n = 0

	if viewer.EyeAngles == nil {
		return fan
	}
	pitch := mgl64.DegToRad(viewer.EyeAngles.X())
	yaw := mgl64.DegToRad(viewer.EyeAngles.Y())
	spread := mgl64.DegToRad(cfg.AimAssist.SpreadDegrees)
	offsets := [aimFanRays][2]float64{
		{0, 0},
		{spread, 0},
		{-spread, 0},
		{0, spread},
		{0, -spread},
	}

	for _, off := range offsets {
		end := v.eye.Add(forward(pitch+off[0], yaw+off[1]).Mul(cfg.AimAssist.TraceDistance))
		res, ok := e.provider.TraceEndShape(v.eye, end, viewer.Pawn, core.WorldOnly)
		if !ok || !res.DidHit {
			continue
		}
		if v.beams {
			e.beams.DrawBeam(core.TraceBeam{
				Tick:      tick,
				Viewer:    viewer.Slot,
				Target:    -1,
				Kind:      core.BeamAimFan,
				Start:     v.eye,
				End:       res.EndPos,
				Hit:       true,
				ViewerBot: v.bot,
			})
		}
		fan.hits[fan.n] = res.EndPos
		fan.n++
	}
	return fan
}
