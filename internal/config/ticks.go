package config

import (
	"math"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// StickyWindowSeconds is how long a stable decision may stand in for an
// ambiguous evaluation.
const StickyWindowSeconds = 0.150

// SafeTickInterval returns interval, or the 64-tick default when the host
// reports something unusable.
func SafeTickInterval(interval float64) float64 {
	if interval <= 0 || math.IsNaN(interval) || math.IsInf(interval, 0) {
		return core.DefaultTickInterval
	}
	return interval
}

// SecondsToTicks converts a duration to whole ticks, rounding up with a
// floor of one tick. Non-positive durations yield zero.
func SecondsToTicks(seconds, tickInterval float64) int {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	ticks := int(math.Ceil(seconds / SafeTickInterval(tickInterval)))
	if ticks < 1 {
		return 1
	}
	return ticks
}

// RevealHoldTicks returns the reveal hold length in ticks.
func (c *Config) RevealHoldTicks(tickInterval float64) int {
	return SecondsToTicks(c.Preload.RevealHoldSeconds, tickInterval)
}

// StickyWindowTicks returns the sticky window length in ticks.
func StickyWindowTicks(tickInterval float64) int {
	return SecondsToTicks(StickyWindowSeconds, tickInterval)
}
