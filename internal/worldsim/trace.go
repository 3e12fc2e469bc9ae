package worldsim

import (
	"math"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// Brush is an axis-aligned solid block of world geometry.
type Brush struct {
	Mins core.Vec3 `json:"mins"`
	Maxs core.Vec3 `json:"maxs"`
}

// TraceEndShape casts a ray from start to end.
func (w *World) TraceEndShape(start, end core.Vec3, ignore core.PawnID, opts core.TraceOptions) (core.TraceResult, bool) {
	return w.trace(start, end, core.Vec3{}, core.Vec3{}, ignore, opts)
}

// TraceHullShape sweeps a box with the given extents from start to end.
func (w *World) TraceHullShape(start, end, mins, maxs core.Vec3, ignore core.PawnID, opts core.TraceOptions) (core.TraceResult, bool) {
	return w.trace(start, end, mins, maxs, ignore, opts)
}

func (w *World) trace(start, end, hullMins, hullMaxs core.Vec3, ignore core.PawnID, opts core.TraceOptions) (core.TraceResult, bool) {
	w.traces++
	if w.Offline {
		return core.TraceResult{}, false
	}

	best := 1.0
	hit := false
	var hitEntity core.PawnID

	if opts.InteractsWith&core.MaskWorld != 0 {
		for _, b := range w.Brushes {
			if t, ok := segmentBox(start, end, b.Mins.Sub(hullMaxs), b.Maxs.Sub(hullMins)); ok && t < best {
				best, hit, hitEntity = t, true, 0
			}
		}
	}

	if opts.InteractsWith&core.MaskPlayers != 0 {
		for _, p := range w.players {
			if !p.Live() || p.Pawn == ignore || p.Origin == nil || p.Bounds == nil {
				continue
			}
			lo := p.Origin.Add(p.Bounds.Mins).Sub(hullMaxs)
			hi := p.Origin.Add(p.Bounds.Maxs).Sub(hullMins)
			if t, ok := segmentBox(start, end, lo, hi); ok && t < best {
				best, hit, hitEntity = t, true, p.Pawn
			}
		}
	}

	result := core.TraceResult{Fraction: 1, EndPos: end}
	if hit {
		result.DidHit = true
		result.Fraction = best
		result.EndPos = start.Add(end.Sub(start).Mul(best))
		result.HitEntity = hitEntity
	}
	return result, true
}

// segmentBox returns the entry fraction of the segment into the box using
// the slab method. A start point inside the box hits at fraction zero.
func segmentBox(start, end, lo, hi core.Vec3) (float64, bool) {
	dir := end.Sub(start)
	tMin, tMax := 0.0, 1.0

	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if start[i] < lo[i] || start[i] > hi[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (lo[i] - start[i]) * inv
		t2 := (hi[i] - start[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}
