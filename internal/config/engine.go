package config

import "math"

// Config is an immutable snapshot of the engine settings. It is passed by
// pointer into every evaluation and must not be modified after Normalize.
type Config struct {
	Core        CoreConfig        `json:"core" mapstructure:"core"`
	Trace       TraceConfig       `json:"trace" mapstructure:"trace"`
	Preload     PreloadConfig     `json:"preload" mapstructure:"preload"`
	Aabb        AabbConfig        `json:"aabb" mapstructure:"aabb"`
	AimAssist   AimAssistConfig   `json:"aimAssist" mapstructure:"aimAssist"`
	GapSweep    GapSweepConfig    `json:"gapSweep" mapstructure:"gapSweep"`
	Visibility  VisibilityConfig  `json:"visibility" mapstructure:"visibility"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" mapstructure:"diagnostics"`

	fovDot float64
}

// CoreConfig holds the master switch and the scheduler cadence.
type CoreConfig struct {
	Enabled              bool `json:"enabled" mapstructure:"enabled"`
	UpdateFrequencyTicks int  `json:"updateFrequencyTicks" mapstructure:"updateFrequencyTicks"`
}

// TraceConfig holds ray sampling and FOV culling settings.
type TraceConfig struct {
	RayTracePoints  int     `json:"rayTracePoints" mapstructure:"rayTracePoints"`
	UseFovCulling   bool    `json:"useFovCulling" mapstructure:"useFovCulling"`
	FovDegrees      float64 `json:"fovDegrees" mapstructure:"fovDegrees"`
	MicroHullExtent float64 `json:"microHullExtent" mapstructure:"microHullExtent"`
}

// PreloadConfig holds predictor and reveal-hold settings.
type PreloadConfig struct {
	PredictorDistance             float64 `json:"predictorDistance" mapstructure:"predictorDistance"`
	PredictorMinSpeed             float64 `json:"predictorMinSpeed" mapstructure:"predictorMinSpeed"`
	EnableViewerPeekAssist        bool    `json:"enableViewerPeekAssist" mapstructure:"enableViewerPeekAssist"`
	ViewerPredictorDistanceFactor float64 `json:"viewerPredictorDistanceFactor" mapstructure:"viewerPredictorDistanceFactor"`
	RevealHoldSeconds             float64 `json:"revealHoldSeconds" mapstructure:"revealHoldSeconds"`
}

// AabbConfig holds the predictive sampling box and its adaptive profile.
type AabbConfig struct {
	HorizontalScale                 float64 `json:"horizontalScale" mapstructure:"horizontalScale"`
	VerticalScale                   float64 `json:"verticalScale" mapstructure:"verticalScale"`
	EnableAdaptiveProfile           bool    `json:"enableAdaptiveProfile" mapstructure:"enableAdaptiveProfile"`
	ProfileSpeedStart               float64 `json:"profileSpeedStart" mapstructure:"profileSpeedStart"`
	ProfileSpeedFull                float64 `json:"profileSpeedFull" mapstructure:"profileSpeedFull"`
	ProfileHorizontalMaxMultiplier  float64 `json:"profileHorizontalMaxMultiplier" mapstructure:"profileHorizontalMaxMultiplier"`
	ProfileVerticalMaxMultiplier    float64 `json:"profileVerticalMaxMultiplier" mapstructure:"profileVerticalMaxMultiplier"`
	EnableDirectionalShift          bool    `json:"enableDirectionalShift" mapstructure:"enableDirectionalShift"`
	DirectionalForwardShiftMaxUnits float64 `json:"directionalForwardShiftMaxUnits" mapstructure:"directionalForwardShiftMaxUnits"`
	DirectionalPredictorShiftFactor float64 `json:"directionalPredictorShiftFactor" mapstructure:"directionalPredictorShiftFactor"`
}

// AimAssistConfig holds the crosshair fan settings.
type AimAssistConfig struct {
	Enabled       bool    `json:"enabled" mapstructure:"enabled"`
	HitRadius     float64 `json:"hitRadius" mapstructure:"hitRadius"`
	SpreadDegrees float64 `json:"spreadDegrees" mapstructure:"spreadDegrees"`
	TraceDistance float64 `json:"traceDistance" mapstructure:"traceDistance"`
}

// GapSweepConfig holds the gap-sweep fan settings.
type GapSweepConfig struct {
	ProximityRadius float64 `json:"proximityRadius" mapstructure:"proximityRadius"`
}

// VisibilityConfig holds team and bot inclusion toggles.
type VisibilityConfig struct {
	IncludeTeammates bool `json:"includeTeammates" mapstructure:"includeTeammates"`
	IncludeBots      bool `json:"includeBots" mapstructure:"includeBots"`
	BotsDoLOS        bool `json:"botsDoLOS" mapstructure:"botsDoLOS"`
	// FailClosedOnUnknown hides a target when an ambiguous result has
	// neither a sticky decision nor a reveal hold to fall back on.
	FailClosedOnUnknown bool `json:"failClosedOnUnknown" mapstructure:"failClosedOnUnknown"`
}

// DiagnosticsConfig holds the runtime summary and debug beam toggles.
type DiagnosticsConfig struct {
	ShowDebugInfo                bool `json:"showDebugInfo" mapstructure:"showDebugInfo"`
	DrawDebugTraceBeams          bool `json:"drawDebugTraceBeams" mapstructure:"drawDebugTraceBeams"`
	DrawDebugTraceBeamsForHumans bool `json:"drawDebugTraceBeamsForHumans" mapstructure:"drawDebugTraceBeamsForHumans"`
	DrawDebugTraceBeamsForBots   bool `json:"drawDebugTraceBeamsForBots" mapstructure:"drawDebugTraceBeamsForBots"`
}

// Default returns the normalized default settings.
func Default() Config {
	cfg := Config{
		Core: CoreConfig{
			Enabled:              true,
			UpdateFrequencyTicks: 10,
		},
		Trace: TraceConfig{
			RayTracePoints:  10,
			UseFovCulling:   true,
			FovDegrees:      200,
			MicroHullExtent: 5,
		},
		Preload: PreloadConfig{
			PredictorDistance:             150,
			PredictorMinSpeed:             1,
			EnableViewerPeekAssist:        true,
			ViewerPredictorDistanceFactor: 0.85,
			RevealHoldSeconds:             0.30,
		},
		Aabb: AabbConfig{
			HorizontalScale:                 3,
			VerticalScale:                   2,
			EnableAdaptiveProfile:           true,
			ProfileSpeedStart:               40,
			ProfileSpeedFull:                260,
			ProfileHorizontalMaxMultiplier:  1.70,
			ProfileVerticalMaxMultiplier:    1.35,
			EnableDirectionalShift:          true,
			DirectionalForwardShiftMaxUnits: 34,
			DirectionalPredictorShiftFactor: 0.65,
		},
		AimAssist: AimAssistConfig{
			Enabled:       true,
			HitRadius:     32,
			SpreadDegrees: 1.5,
			TraceDistance: 8192,
		},
		GapSweep: GapSweepConfig{
			ProximityRadius: 72,
		},
		Visibility: VisibilityConfig{
			IncludeTeammates: true,
			IncludeBots:      true,
			BotsDoLOS:        true,
		},
		Diagnostics: DiagnosticsConfig{
			ShowDebugInfo:                true,
			DrawDebugTraceBeams:          false,
			DrawDebugTraceBeamsForHumans: true,
			DrawDebugTraceBeamsForBots:   true,
		},
	}
	cfg.Normalize()
	return cfg
}

// FovDotThreshold returns cos(FovDegrees/2). Values at or below
// FullCircleDot mean culling is effectively disabled.
func (c *Config) FovDotThreshold() float64 {
	return c.fovDot
}

// FullCircleDot is the threshold at which the FOV covers every direction.
const FullCircleDot = -0.9998

func fovDot(degrees float64) float64 {
	return math.Cos(degrees * 0.5 * math.Pi / 180)
}

// BeamsFor reports whether debug trace beams are drawn for a viewer class.
func (c *Config) BeamsFor(viewerBot bool) bool {
	if !c.Diagnostics.DrawDebugTraceBeams {
		return false
	}
	if viewerBot {
		return c.Diagnostics.DrawDebugTraceBeamsForBots
	}
	return c.Diagnostics.DrawDebugTraceBeamsForHumans
}
