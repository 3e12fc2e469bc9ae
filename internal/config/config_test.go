package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"core": { "updateFrequencyTicks": 4 },
		"trace": { "fovDegrees": 120, "rayTracePoints": 6 },
		"visibility": { "includeBots": false }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(cfg), 0644))

	require.NoError(t, Load(dir))
	assert.Equal(t, "debug", viper.GetString("logLevel"))

	c, warnings, err := Get()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 4, c.Core.UpdateFrequencyTicks)
	assert.Equal(t, 6, c.Trace.RayTracePoints)
	assert.InDelta(t, 120.0, c.Trace.FovDegrees, 1e-9)
	assert.False(t, c.Visibility.IncludeBots)
	// untouched keys keep their defaults
	assert.True(t, c.Visibility.IncludeTeammates)
	assert.InDelta(t, 0.30, c.Preload.RevealHoldSeconds, 1e-9)
	assert.InDelta(t, 0.5, c.FovDotThreshold(), 1e-9)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{}`), 0644))

	require.NoError(t, Load(dir))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./s2awh_logs", viper.GetString("logsDir"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "s2awh", viper.GetString("otel.serviceName"))
	assert.Equal(t, 5*time.Second, GetDuration("otel.batchTimeout"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "visibility_summary", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("debugStream.enabled"))

	c, warnings, err := Get()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Default(), c)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("s", "value")
	viper.Set("i", 42)
	viper.Set("b", true)

	assert.Equal(t, "value", GetString("s"))
	assert.Equal(t, 42, GetInt("i"))
	assert.True(t, GetBool("b"))
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.True(t, c.Core.Enabled)
	assert.Equal(t, 10, c.Core.UpdateFrequencyTicks)
	assert.Equal(t, 10, c.Trace.RayTracePoints)
	assert.InDelta(t, 200.0, c.Trace.FovDegrees, 1e-9)
	assert.InDelta(t, 72.0, c.GapSweep.ProximityRadius, 1e-9)
	assert.InDelta(t, 5.0, c.Trace.MicroHullExtent, 1e-9)
	assert.False(t, c.Visibility.FailClosedOnUnknown)
	// 200 degree FOV sees slightly behind the shoulders
	assert.Less(t, c.FovDotThreshold(), 0.0)
}

func TestNormalize_Clamps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, Config)
	}{
		{
			name:   "update frequency floor",
			mutate: func(c *Config) { c.Core.UpdateFrequencyTicks = 0 },
			check:  func(t *testing.T, c Config) { assert.Equal(t, 1, c.Core.UpdateFrequencyTicks) },
		},
		{
			name:   "ray points ceiling",
			mutate: func(c *Config) { c.Trace.RayTracePoints = 32 },
			check:  func(t *testing.T, c Config) { assert.Equal(t, 10, c.Trace.RayTracePoints) },
		},
		{
			name:   "fov floor",
			mutate: func(c *Config) { c.Trace.FovDegrees = 0 },
			check:  func(t *testing.T, c Config) { assert.InDelta(t, 1.0, c.Trace.FovDegrees, 1e-9) },
		},
		{
			name:   "reveal hold ceiling",
			mutate: func(c *Config) { c.Preload.RevealHoldSeconds = 3 },
			check:  func(t *testing.T, c Config) { assert.InDelta(t, 1.0, c.Preload.RevealHoldSeconds, 1e-9) },
		},
		{
			name: "profile full follows start",
			mutate: func(c *Config) {
				c.Aabb.ProfileSpeedStart = 300
				c.Aabb.ProfileSpeedFull = 100
			},
			check: func(t *testing.T, c Config) { assert.InDelta(t, 301.0, c.Aabb.ProfileSpeedFull, 1e-9) },
		},
		{
			name:   "gap sweep radius",
			mutate: func(c *Config) { c.GapSweep.ProximityRadius = 500 },
			check:  func(t *testing.T, c Config) { assert.InDelta(t, 200.0, c.GapSweep.ProximityRadius, 1e-9) },
		},
		{
			name:   "shift factor",
			mutate: func(c *Config) { c.Aabb.DirectionalPredictorShiftFactor = -1 },
			check:  func(t *testing.T, c Config) { assert.InDelta(t, 0.0, c.Aabb.DirectionalPredictorShiftFactor, 1e-9) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			warnings := c.Normalize()
			assert.Len(t, warnings, 1)
			tt.check(t, c)
		})
	}
}

func TestNormalize_FovThresholdUpdated(t *testing.T) {
	c := Default()
	c.Trace.FovDegrees = 90
	c.Normalize()
	assert.InDelta(t, 0.70710678, c.FovDotThreshold(), 1e-6)

	c.Trace.FovDegrees = 359
	c.Normalize()
	assert.LessOrEqual(t, c.FovDotThreshold(), FullCircleDot)
}

func TestSecondsToTicks(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		interval float64
		want     int
	}{
		{"default hold", 0.30, 1.0 / 64, 20},
		{"sticky window", StickyWindowSeconds, 1.0 / 64, 10},
		{"disabled", 0, 1.0 / 64, 0},
		{"negative", -1, 1.0 / 64, 0},
		{"floor of one", 0.001, 1.0 / 64, 1},
		{"bad interval falls back", 0.30, 0, 20},
		{"coarse tick rate", 0.30, 1.0 / 20, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SecondsToTicks(tt.seconds, tt.interval))
		})
	}
}

func TestRevealHoldTicks(t *testing.T) {
	c := Default()
	assert.Equal(t, 20, c.RevealHoldTicks(1.0/64))
	assert.Equal(t, 10, StickyWindowTicks(1.0/64))
}
