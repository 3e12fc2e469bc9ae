// Package preload predicts whether a hidden target is about to become
// visible so it can be transmitted a few ticks early.
package preload

import (
	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/internal/geometry"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

type targetEntry struct {
	tick int
	pawn core.PawnID

	hasLookahead bool
	predicted    geometry.PointSet

	currentReady bool
	current      geometry.PointSet
}

type viewerEye struct {
	pawn core.PawnID
	tick int
	eye  core.Vec3
}

// Predictor evaluates short-horizon visibility. It is owned by the tick thread.
type Predictor struct {
	provider core.RayTraceProvider
	beams    core.BeamSink

	viewer  viewerEye
	targets [core.Capacity]targetEntry
}

// New creates a Predictor. beams may be nil.
func New(provider core.RayTraceProvider, beams core.BeamSink) *Predictor {
	p := &Predictor{provider: provider, beams: beams}
	p.Clear()
	return p
}

// WillBeVisible reports whether the target is expected to come into view
// within the lookahead horizon, either because it moves or because the
// viewer peeks.
func (p *Predictor) WillBeVisible(viewer, target *core.Entity, tick int, cfg *config.Config) bool {
	if viewer == nil || target == nil || viewer.Pawn == 0 || target.Pawn == 0 || !target.Slot.Valid() {
		return false
	}
	if target.Origin == nil {
		return false
	}

	eye, ok := p.eyeFor(viewer, tick)
	if !ok {
		return false
	}

	drawBeams := p.beams != nil && cfg.BeamsFor(viewer.Bot)
	entry := p.targetFor(target, tick, cfg)

	if entry.hasLookahead && p.canSeeAny(viewer, target, eye, &entry.predicted, drawBeams, tick) {
		return true
	}

	if !cfg.Preload.EnableViewerPeekAssist {
		return false
	}

	distance := cfg.Preload.PredictorDistance * cfg.Preload.ViewerPredictorDistanceFactor
	shift, ok := geometry.Lookahead(viewer.Velocity, cfg.Preload.PredictorMinSpeed, cfg.Aabb.ProfileSpeedFull, distance, true)
	if !ok {
		return false
	}

	if !entry.currentReady {
		entry.current = geometry.TargetSamplePoints(target, geometry.SampleOptions{Origin: target.Origin, Predictive: true}, cfg)
		entry.currentReady = true
	}
	if entry.current.Len() == 0 {
		return false
	}

	return p.canSeeAny(viewer, target, eye.Add(shift), &entry.current, drawBeams, tick)
}

// InvalidateSlot drops the cached point sets of a target slot.
func (p *Predictor) InvalidateSlot(slot core.Slot) {
	if slot.Valid() {
		p.targets[slot] = targetEntry{tick: -1}
	}
}

// Clear drops all cached state.
func (p *Predictor) Clear() {
	p.viewer = viewerEye{tick: -1}
	for i := range p.targets {
		p.targets[i] = targetEntry{tick: -1}
	}
}

func (p *Predictor) eyeFor(viewer *core.Entity, tick int) (core.Vec3, bool) {
	if p.viewer.pawn == viewer.Pawn && p.viewer.tick == tick {
		return p.viewer.eye, true
	}
	eye, ok := geometry.EyePosition(viewer)
	if !ok {
		return core.Vec3{}, false
	}
	p.viewer = viewerEye{pawn: viewer.Pawn, tick: tick, eye: eye}
	return eye, true
}

func (p *Predictor) targetFor(target *core.Entity, tick int, cfg *config.Config) *targetEntry {
	entry := &p.targets[target.Slot]
	if entry.tick == tick && entry.pawn == target.Pawn {
		return entry
	}

	entry.tick = tick
	entry.pawn = target.Pawn
	entry.currentReady = false
	entry.current.Reset()
	entry.predicted.Reset()

	shift, ok := geometry.Lookahead(target.Velocity, cfg.Preload.PredictorMinSpeed, cfg.Aabb.ProfileSpeedFull, cfg.Preload.PredictorDistance, false)
	entry.hasLookahead = ok
	if ok {
		origin := target.Origin.Add(shift)
		entry.predicted = geometry.TargetSamplePoints(target, geometry.SampleOptions{Origin: &origin, Predictive: true}, cfg)
	}
	return entry
}

func (p *Predictor) canSeeAny(viewer, target *core.Entity, eye core.Vec3, points *geometry.PointSet, drawBeams bool, tick int) bool {
	for _, pt := range points.Points() {
		res, ok := p.provider.TraceEndShape(eye, pt, viewer.Pawn, core.WorldOnly)
		if !ok {
			continue
		}
		if drawBeams {
			end := pt
			if res.DidHit {
				end = res.EndPos
			}
			p.beams.DrawBeam(core.TraceBeam{
				Tick:      tick,
				Viewer:    viewer.Slot,
				Target:    target.Slot,
				Kind:      core.BeamPredict,
				Start:     eye,
				End:       end,
				Hit:       res.DidHit,
				ViewerBot: viewer.Bot,
			})
		}
		if !res.DidHit || res.HitEntity == target.Pawn {
			return true
		}
	}
	return false
}
