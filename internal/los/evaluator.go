// Package los decides whether a viewer has a clear line of sight to a target
// using escalating probes: point rays, the crosshair fan, the gap-sweep fan
// and finally small hull sweeps.
package los

import (
	"math"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/internal/geometry"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// fallbackCenterHeight is the assumed body center above the feet when the
// target has no collision bounds.
const fallbackCenterHeight = 36.0

type viewerState struct {
	pawn  core.PawnID
	tick  int
	eye   core.Vec3
	bot   bool
	beams bool
}

type targetPoints struct {
	tick   int
	pawn   core.PawnID
	points geometry.PointSet
}

// Evaluator runs the line-of-sight pipeline. It is owned by the tick thread.
type Evaluator struct {
	provider core.RayTraceProvider
	beams    core.BeamSink

	viewer  viewerState
	targets [core.Capacity]targetPoints
	fans    [core.Capacity]aimFan
}

// New creates an Evaluator. beams may be nil.
func New(provider core.RayTraceProvider, beams core.BeamSink) *Evaluator {
	e := &Evaluator{provider: provider, beams: beams}
	e.Clear()
	return e
}

// Evaluate returns the line-of-sight verdict for viewer looking at target.
func (e *Evaluator) Evaluate(viewer, target *core.Entity, tick int, cfg *config.Config) core.VisibilityEval {
	if viewer == nil || target == nil || viewer.Pawn == 0 || target.Pawn == 0 || !viewer.Slot.Valid() || !target.Slot.Valid() {
		return core.UnknownTransient
	}

	v, ok := e.viewerFor(viewer, tick, cfg)
	if !ok {
		return core.UnknownTransient
	}

	points := e.pointsFor(target, tick, cfg)
	if points.Len() == 0 {
		return core.UnknownTransient
	}

	executed := false
	for _, p := range points.Points() {
		res, ok := e.provider.TraceEndShape(v.eye, p, viewer.Pawn, core.WorldOnly)
		if !ok {
			continue
		}
		executed = true
		e.beam(core.BeamDirect, viewer, target, v, p, res, tick)
		if unobstructed(res, target.Pawn) {
			return core.Visible
		}
	}

	// Nothing executed, so there is no evidence either way.
	if !executed {
		return core.UnknownTransient
	}

	if cfg.AimAssist.Enabled && e.aimFanNear(viewer, v, bodyCenter(points), tick, cfg) {
		return core.Visible
	}

	if e.gapSweep(viewer, target, v, tick, cfg) {
		return core.Visible
	}

	if e.microHull(viewer, target, v, points, tick, cfg) {
		return core.Visible
	}

	return core.Hidden
}

// InvalidateSlot drops everything cached for a slot.
func (e *Evaluator) InvalidateSlot(slot core.Slot) {
	if !slot.Valid() {
		return
	}
	e.targets[slot] = targetPoints{tick: -1}
	e.fans[slot] = aimFan{tick: -1}
}

// Clear drops all cached state.
func (e *Evaluator) Clear() {
	e.viewer = viewerState{tick: -1}
	for i := range e.targets {
		e.targets[i] = targetPoints{tick: -1}
		e.fans[i] = aimFan{tick: -1}
	}
}

func (e *Evaluator) viewerFor(viewer *core.Entity, tick int, cfg *config.Config) (viewerState, bool) {
	if e.viewer.pawn == viewer.Pawn && e.viewer.tick == tick {
		return e.viewer, true
	}
	eye, ok := geometry.EyePosition(viewer)
	if !ok {
		return viewerState{}, false
	}
	e.viewer = viewerState{
		pawn:  viewer.Pawn,
		tick:  tick,
		eye:   eye,
		bot:   viewer.Bot,
		beams: e.beams != nil && cfg.BeamsFor(viewer.Bot),
	}
	return e.viewer, true
}

func (e *Evaluator) pointsFor(target *core.Entity, tick int, cfg *config.Config) *geometry.PointSet {
	entry := &e.targets[target.Slot]
	if entry.tick != tick || entry.pawn != target.Pawn {
		entry.points = geometry.TargetSamplePoints(target, geometry.SampleOptions{}, cfg)
		entry.tick = tick
		entry.pawn = target.Pawn
	}
	return &entry.points
}

func (e *Evaluator) gapSweep(viewer, target *core.Entity, v viewerState, tick int, cfg *config.Config) bool {
	if target.Origin == nil {
		return false
	}
	o := *target.Origin
	centerZ := o.Z() + fallbackCenterHeight
	if target.Bounds != nil {
		centerZ = o.Z() + target.Bounds.Center().Z()
	}
	center := core.Vec3{o.X(), o.Y(), centerZ}

	toTarget := center.Sub(v.eye)
	distSqr := toTarget.Dot(toTarget)
	if distSqr <= 1 {
		return false
	}
	dist := math.Sqrt(distSqr)
	dir := toTarget.Mul(1 / dist)

	basePitch := -math.Asin(dir.Z())
	baseYaw := math.Atan2(dir.Y(), dir.X())
	traceLen := dist * gapSweepLengthFactor
	radiusSqr := cfg.GapSweep.ProximityRadius * cfg.GapSweep.ProximityRadius

	for i := 1; i < len(gapSweepPitch); i++ {
		end := v.eye.Add(forward(basePitch+gapSweepPitch[i], baseYaw+gapSweepYaw[i]).Mul(traceLen))
		res, ok := e.provider.TraceEndShape(v.eye, end, viewer.Pawn, core.WorldOnly)
		if !ok {
			continue
		}
		e.beam(core.BeamGapSweep, viewer, target, v, end, res, tick)
		if reachedTarget(res, end, traceLen, dist, center, radiusSqr) {
			return true
		}
	}
	return false
}

// reachedTarget reports whether a gap-sweep ray travelled at least as far
// as the target, or ended close enough to its body center.
func reachedTarget(res core.TraceResult, probeEnd core.Vec3, traceLen, dist float64, center core.Vec3, radiusSqr float64) bool {
	if res.DidHit && res.Fraction*traceLen >= dist {
		return true
	}
	end := probeEnd
	if res.DidHit {
		end = res.EndPos
	}
	d := end.Sub(center)
	return d.Dot(d) < radiusSqr
}

func (e *Evaluator) microHull(viewer, target *core.Entity, v viewerState, points *geometry.PointSet, tick int, cfg *config.Config) bool {
	n := points.Len()
	if n == 0 {
		return false
	}
	ext := cfg.Trace.MicroHullExtent
	mins := core.Vec3{-ext, -ext, -ext}
	maxs := core.Vec3{ext, ext, ext}

	probe := func(p core.Vec3) bool {
		res, ok := e.provider.TraceHullShape(v.eye, p, mins, maxs, viewer.Pawn, core.WorldOnly)
		if !ok {
			return false
		}
		e.beam(core.BeamHull, viewer, target, v, p, res, tick)
		return unobstructed(res, target.Pawn)
	}

	center := 0
	if n > 1 {
		center = 1
	}
	if probe(points.At(center)) {
		return true
	}
	if center != 0 && probe(points.At(0)) {
		return true
	}
	for i := 2; i < min(n, microHullProbeLimit); i++ {
		if probe(points.At(i)) {
			return true
		}
	}
	return false
}

func (e *Evaluator) beam(kind core.BeamKind, viewer, target *core.Entity, v viewerState, end core.Vec3, res core.TraceResult, tick int) {
	if !v.beams {
		return
	}
	if res.DidHit {
		end = res.EndPos
	}
	e.beams.DrawBeam(core.TraceBeam{
		Tick:      tick,
		Viewer:    viewer.Slot,
		Target:    target.Slot,
		Kind:      kind,
		Start:     v.eye,
		End:       end,
		Hit:       res.DidHit,
		ViewerBot: v.bot,
	})
}

// unobstructed reports whether the ray was clear or stopped only by the target.
func unobstructed(res core.TraceResult, target core.PawnID) bool {
	return !res.DidHit || res.HitEntity == target
}

// bodyCenter anchors the aim fan. With a single sample point it is the eye.
func bodyCenter(points *geometry.PointSet) core.Vec3 {
	if points.Len() > 1 {
		return points.At(1)
	}
	return points.At(0)
}
