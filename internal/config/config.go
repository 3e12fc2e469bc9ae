package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "s2awh.cfg.json"

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./s2awh_logs")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "s2awh")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "s2awh")
	viper.SetDefault("influx.bucket", "visibility_summary")

	viper.SetDefault("debugStream.enabled", false)
	viper.SetDefault("debugStream.url", "ws://localhost:5000/api/v1/awh/stream")
	viper.SetDefault("debugStream.secret", "")

	setEngineDefaults(Default())

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Reload re-reads the config file found by Load.
func Reload() error {
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Get decodes the engine settings from viper and normalizes them.
// The returned warnings describe every value that had to be clamped.
func Get() (Config, []string, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Default(), nil, fmt.Errorf("decoding engine config: %w", err)
	}
	warnings := cfg.Normalize()
	return cfg, warnings, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

func setEngineDefaults(d Config) {
	viper.SetDefault("core.enabled", d.Core.Enabled)
	viper.SetDefault("core.updateFrequencyTicks", d.Core.UpdateFrequencyTicks)

	viper.SetDefault("trace.rayTracePoints", d.Trace.RayTracePoints)
	viper.SetDefault("trace.useFovCulling", d.Trace.UseFovCulling)
	viper.SetDefault("trace.fovDegrees", d.Trace.FovDegrees)
	viper.SetDefault("trace.microHullExtent", d.Trace.MicroHullExtent)

	viper.SetDefault("preload.predictorDistance", d.Preload.PredictorDistance)
	viper.SetDefault("preload.predictorMinSpeed", d.Preload.PredictorMinSpeed)
	viper.SetDefault("preload.enableViewerPeekAssist", d.Preload.EnableViewerPeekAssist)
	viper.SetDefault("preload.viewerPredictorDistanceFactor", d.Preload.ViewerPredictorDistanceFactor)
	viper.SetDefault("preload.revealHoldSeconds", d.Preload.RevealHoldSeconds)

	viper.SetDefault("aabb.horizontalScale", d.Aabb.HorizontalScale)
	viper.SetDefault("aabb.verticalScale", d.Aabb.VerticalScale)
	viper.SetDefault("aabb.enableAdaptiveProfile", d.Aabb.EnableAdaptiveProfile)
	viper.SetDefault("aabb.profileSpeedStart", d.Aabb.ProfileSpeedStart)
	viper.SetDefault("aabb.profileSpeedFull", d.Aabb.ProfileSpeedFull)
	viper.SetDefault("aabb.profileHorizontalMaxMultiplier", d.Aabb.ProfileHorizontalMaxMultiplier)
	viper.SetDefault("aabb.profileVerticalMaxMultiplier", d.Aabb.ProfileVerticalMaxMultiplier)
	viper.SetDefault("aabb.enableDirectionalShift", d.Aabb.EnableDirectionalShift)
	viper.SetDefault("aabb.directionalForwardShiftMaxUnits", d.Aabb.DirectionalForwardShiftMaxUnits)
	viper.SetDefault("aabb.directionalPredictorShiftFactor", d.Aabb.DirectionalPredictorShiftFactor)

	viper.SetDefault("aimAssist.enabled", d.AimAssist.Enabled)
	viper.SetDefault("aimAssist.hitRadius", d.AimAssist.HitRadius)
	viper.SetDefault("aimAssist.spreadDegrees", d.AimAssist.SpreadDegrees)
	viper.SetDefault("aimAssist.traceDistance", d.AimAssist.TraceDistance)

	viper.SetDefault("gapSweep.proximityRadius", d.GapSweep.ProximityRadius)

	viper.SetDefault("visibility.includeTeammates", d.Visibility.IncludeTeammates)
	viper.SetDefault("visibility.includeBots", d.Visibility.IncludeBots)
	viper.SetDefault("visibility.botsDoLOS", d.Visibility.BotsDoLOS)
	viper.SetDefault("visibility.failClosedOnUnknown", d.Visibility.FailClosedOnUnknown)

	viper.SetDefault("diagnostics.showDebugInfo", d.Diagnostics.ShowDebugInfo)
	viper.SetDefault("diagnostics.drawDebugTraceBeams", d.Diagnostics.DrawDebugTraceBeams)
	viper.SetDefault("diagnostics.drawDebugTraceBeamsForHumans", d.Diagnostics.DrawDebugTraceBeamsForHumans)
	viper.SetDefault("diagnostics.drawDebugTraceBeamsForBots", d.Diagnostics.DrawDebugTraceBeamsForBots)
}
