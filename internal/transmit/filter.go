// Package transmit combines the fast paths, FOV culling, line of sight and
// preload prediction into a single per-pair visibility verdict.
package transmit

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// NearbyRadius is the distance under which a target is never FOV-culled.
const NearbyRadius = 75.0

// LineOfSight evaluates direct visibility.
type LineOfSight interface {
	Evaluate(viewer, target *core.Entity, tick int, cfg *config.Config) core.VisibilityEval
}

// Preloader predicts imminent visibility.
type Preloader interface {
	WillBeVisible(viewer, target *core.Entity, tick int, cfg *config.Config) bool
}

type fovState struct {
	pawn   core.PawnID
	tick   int
	ready  bool
	start  core.Vec3
	normal core.Vec3
}

// Filter evaluates one viewer/target pair. It is owned by the tick thread.
type Filter struct {
	los     LineOfSight
	preload Preloader
	fov     fovState
}

// NewFilter creates a Filter.
func NewFilter(los LineOfSight, preload Preloader) *Filter {
	return &Filter{los: los, preload: preload, fov: fovState{tick: -1}}
}

// Evaluate returns the visibility of target as seen by viewer.
func (f *Filter) Evaluate(viewer, target *core.Entity, tick int, cfg *config.Config) core.VisibilityEval {
	if !cfg.Core.Enabled {
		return core.Visible
	}
	if viewer.Team == target.Team && !cfg.Visibility.IncludeTeammates {
		return core.Visible
	}
	// dead targets stay visible for spectators and ragdolls
	if !target.Alive {
		return core.Visible
	}
	if target.Bot && !cfg.Visibility.IncludeBots {
		return core.Visible
	}
	if viewer.Pawn == 0 || target.Pawn == 0 {
		return core.Visible
	}

	if cfg.Trace.UseFovCulling && viewer.Alive && !f.inFOV(viewer, target, tick, cfg.FovDotThreshold()) {
		return core.Hidden
	}

	switch f.los.Evaluate(viewer, target, tick, cfg) {
	case core.Visible:
		return core.Visible
	case core.UnknownTransient:
		return core.UnknownTransient
	}

	if !viewer.Alive {
		return core.Hidden
	}
	if f.preload.WillBeVisible(viewer, target, tick, cfg) {
		return core.Visible
	}
	return core.Hidden
}

// Clear drops the cached viewer orientation.
func (f *Filter) Clear() {
	f.fov = fovState{tick: -1}
}

func (f *Filter) inFOV(viewer, target *core.Entity, tick int, threshold float64) bool {
	if threshold <= config.FullCircleDot {
		return true
	}

	if f.fov.pawn != viewer.Pawn || f.fov.tick != tick {
		f.fov = fovState{pawn: viewer.Pawn, tick: tick}
		if viewer.Origin == nil || viewer.EyeAngles == nil {
			return true
		}
		start := *viewer.Origin
		if viewer.ViewOffset != nil {
			start = start.Add(*viewer.ViewOffset)
		}
		pitch := mgl64.DegToRad(viewer.EyeAngles.X())
		yaw := mgl64.DegToRad(viewer.EyeAngles.Y())
		sp, cp := math.Sincos(pitch)
		sy, cy := math.Sincos(yaw)
		f.fov.start = start
		f.fov.normal = core.Vec3{cp * cy, cp * sy, -sp}
		f.fov.ready = true
	}

	if !f.fov.ready || target.Origin == nil {
		return true
	}

	toTarget := target.Origin.Sub(f.fov.start)
	distSqr := toTarget.Dot(toTarget)
	if distSqr < NearbyRadius*NearbyRadius {
		return true
	}
	return toTarget.Mul(1/math.Sqrt(distSqr)).Dot(f.fov.normal) > threshold
}
