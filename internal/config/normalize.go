package config

import (
	"fmt"
	"math"
)

// Normalize clamps every setting into its supported range and returns a
// warning for each adjusted value.
func (c *Config) Normalize() []string {
	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if c.Core.UpdateFrequencyTicks < 1 {
		warnf("core.updateFrequencyTicks must be >= 1, got %d, using 1", c.Core.UpdateFrequencyTicks)
		c.Core.UpdateFrequencyTicks = 1
	}

	c.Trace.RayTracePoints = clampInt(&warnings, "trace.rayTracePoints", c.Trace.RayTracePoints, 1, 10)
	c.Trace.FovDegrees = clamp(&warnings, "trace.fovDegrees", c.Trace.FovDegrees, 1, 359)
	c.Trace.MicroHullExtent = clamp(&warnings, "trace.microHullExtent", c.Trace.MicroHullExtent, 1, 16)

	c.Preload.PredictorDistance = atLeast(&warnings, "preload.predictorDistance", c.Preload.PredictorDistance, 0)
	c.Preload.PredictorMinSpeed = clamp(&warnings, "preload.predictorMinSpeed", c.Preload.PredictorMinSpeed, 0, 100)
	c.Preload.ViewerPredictorDistanceFactor = clamp(&warnings, "preload.viewerPredictorDistanceFactor", c.Preload.ViewerPredictorDistanceFactor, 0, 2)
	c.Preload.RevealHoldSeconds = clamp(&warnings, "preload.revealHoldSeconds", c.Preload.RevealHoldSeconds, 0, 1)

	c.Aabb.HorizontalScale = clamp(&warnings, "aabb.horizontalScale", c.Aabb.HorizontalScale, 1, 10)
	c.Aabb.VerticalScale = clamp(&warnings, "aabb.verticalScale", c.Aabb.VerticalScale, 1, 10)
	c.Aabb.ProfileSpeedStart = atLeast(&warnings, "aabb.profileSpeedStart", c.Aabb.ProfileSpeedStart, 0)
	c.Aabb.ProfileSpeedFull = atLeast(&warnings, "aabb.profileSpeedFull", c.Aabb.ProfileSpeedFull, c.Aabb.ProfileSpeedStart+1)
	c.Aabb.ProfileHorizontalMaxMultiplier = clamp(&warnings, "aabb.profileHorizontalMaxMultiplier", c.Aabb.ProfileHorizontalMaxMultiplier, 1, 3)
	c.Aabb.ProfileVerticalMaxMultiplier = clamp(&warnings, "aabb.profileVerticalMaxMultiplier", c.Aabb.ProfileVerticalMaxMultiplier, 1, 3)
	c.Aabb.DirectionalForwardShiftMaxUnits = clamp(&warnings, "aabb.directionalForwardShiftMaxUnits", c.Aabb.DirectionalForwardShiftMaxUnits, 0, 128)
	c.Aabb.DirectionalPredictorShiftFactor = clamp(&warnings, "aabb.directionalPredictorShiftFactor", c.Aabb.DirectionalPredictorShiftFactor, 0, 1)

	c.AimAssist.HitRadius = clamp(&warnings, "aimAssist.hitRadius", c.AimAssist.HitRadius, 1, 256)
	c.AimAssist.SpreadDegrees = clamp(&warnings, "aimAssist.spreadDegrees", c.AimAssist.SpreadDegrees, 0, 10)
	c.AimAssist.TraceDistance = clamp(&warnings, "aimAssist.traceDistance", c.AimAssist.TraceDistance, 256, 16384)

	c.GapSweep.ProximityRadius = clamp(&warnings, "gapSweep.proximityRadius", c.GapSweep.ProximityRadius, 20, 200)

	c.fovDot = fovDot(c.Trace.FovDegrees)
	return warnings
}

func clamp(warnings *[]string, key string, v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		*warnings = append(*warnings, fmt.Sprintf("%s is not a number, using %g", key, lo))
		return lo
	}
	if v < lo {
		*warnings = append(*warnings, fmt.Sprintf("%s must be in [%g, %g], got %g, using %g", key, lo, hi, v, lo))
		return lo
	}
	if v > hi {
		*warnings = append(*warnings, fmt.Sprintf("%s must be in [%g, %g], got %g, using %g", key, lo, hi, v, hi))
		return hi
	}
	return v
}

func atLeast(warnings *[]string, key string, v, lo float64) float64 {
	if math.IsNaN(v) || v < lo {
		*warnings = append(*warnings, fmt.Sprintf("%s must be >= %g, got %g, using %g", key, lo, v, lo))
		return lo
	}
	return v
}

func clampInt(warnings *[]string, key string, v, lo, hi int) int {
	if v < lo {
		*warnings = append(*warnings, fmt.Sprintf("%s must be in [%d, %d], got %d, using %d", key, lo, hi, v, lo))
		return lo
	}
	if v > hi {
		*warnings = append(*warnings, fmt.Sprintf("%s must be in [%d, %d], got %d, using %d", key, lo, hi, v, hi))
		return hi
	}
	return v
}
