package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/internal/session"
	"github.com/karola3vax/Source2-AntiWallHack/internal/worldsim"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type summaryRecorder struct {
	got []core.RuntimeSummary
}

func (r *summaryRecorder) RecordSummary(s core.RuntimeSummary) {
	r.got = append(r.got, s)
}

// panicky wraps a world and panics on every trace once armed.
type panicky struct {
	*worldsim.World
	armed bool
}

func (p *panicky) TraceEndShape(start, end core.Vec3, ignore core.PawnID, opts core.TraceOptions) (core.TraceResult, bool) {
	if p.armed {
		panic("trace backend crashed")
	}
	return p.World.TraceEndShape(start, end, ignore, opts)
}

func (p *panicky) TraceHullShape(start, end, mins, maxs core.Vec3, ignore core.PawnID, opts core.TraceOptions) (core.TraceResult, bool) {
	if p.armed {
		panic("trace backend crashed")
	}
	return p.World.TraceHullShape(start, end, mins, maxs, ignore, opts)
}

func testConfig(mutate func(*config.Config)) config.Config {
	cfg := config.Default()
	// every viewer each tick keeps the tests deterministic
	cfg.Core.UpdateFrequencyTicks = 1
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func newEngine(t *testing.T, provider core.RayTraceProvider, dir core.EntityDirectory, opts Options) *Engine {
	t.Helper()
	opts.Provider = provider
	opts.Directory = dir
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Now = func() time.Time { return fixedNow }
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func loaded(t *testing.T, w *worldsim.World, mutate func(*config.Config)) *Engine {
	t.Helper()
	e := newEngine(t, w, w, Options{})
	require.True(t, e.Load(testConfig(mutate)))
	return e
}

// wallWorld separates slot 0 at the origin from slot 1 at x=500 with a
// full-height wall.
func wallWorld() *worldsim.World {
	w := worldsim.New(1.0 / 64)
	w.AddBrush(core.Vec3{200, -5000, -5000}, core.Vec3{220, 5000, 5000})
	w.Put(worldsim.NewPlayer(0, 10, 2, false, core.Vec3{0, 0, 0}, core.Vec3{}, 0, 90), 100, 101)
	w.Put(worldsim.NewPlayer(1, 11, 3, false, core.Vec3{500, 0, 0}, core.Vec3{}, 0, 180), 110)
	return w
}

func openWorld() *worldsim.World {
	w := worldsim.New(1.0 / 64)
	w.Put(worldsim.NewPlayer(0, 10, 2, false, core.Vec3{0, 0, 0}, core.Vec3{}, 0, 90), 100, 101)
	w.Put(worldsim.NewPlayer(1, 11, 3, false, core.Vec3{500, 0, 0}, core.Vec3{}, 0, 180), 110)
	return w
}

func TestNew_RequiresDirectory(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestScenario_WallHides(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)

	e.OnTick(1)
	assert.False(t, e.ShouldTransmit(0, 1))
	assert.False(t, e.ShouldTransmit(1, 0))
	assert.True(t, e.ShouldTransmit(0, 0), "self is always transmitted")
	assert.True(t, e.ShouldTransmit(0, 7), "unknown slots are always transmitted")
}

func TestScenario_OpenFieldVisible(t *testing.T) {
	w := openWorld()
	e := loaded(t, w, nil)

	e.OnTick(1)
	assert.True(t, e.ShouldTransmit(0, 1))
	assert.True(t, e.ShouldTransmit(1, 0))
}

func TestScenario_PredictiveReveal(t *testing.T) {
	corner := func(velocity core.Vec3) *worldsim.World {
		w := worldsim.New(1.0 / 64)
		w.AddBrush(core.Vec3{200, -500, -500}, core.Vec3{220, 40, 500})
		w.Put(worldsim.NewPlayer(0, 10, 2, false, core.Vec3{0, 0, 0}, core.Vec3{}, 0, 90))
		w.Put(worldsim.NewPlayer(1, 11, 3, false, core.Vec3{400, 0, 0}, velocity, 0, 90))
		return w
	}

	t.Run("target running into the opening", func(t *testing.T) {
		e := loaded(t, corner(core.Vec3{0, 260, 0}), nil)
		e.OnTick(1)
		assert.True(t, e.ShouldTransmit(0, 1))
	})

	t.Run("stationary target stays hidden", func(t *testing.T) {
		e := loaded(t, corner(core.Vec3{}), nil)
		e.OnTick(1)
		assert.False(t, e.ShouldTransmit(0, 1))
	})
}

func TestScenario_UnknownFailsOpen(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)
	w.Offline = true

	e.OnTick(1)
	assert.True(t, e.ShouldTransmit(0, 1))
	assert.True(t, e.ShouldTransmit(1, 0))

	s := e.Summary()
	assert.Equal(t, int64(2), s.UnknownTotal)
	assert.Positive(t, s.UnknownFailOpen)
	assert.Zero(t, s.UnknownFailClosed)
}

func TestScenario_UnknownFailClosed(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, func(c *config.Config) { c.Visibility.FailClosedOnUnknown = true })
	w.Offline = true

	e.OnTick(1)
	assert.False(t, e.ShouldTransmit(0, 1))
	assert.Equal(t, int64(2), e.Summary().UnknownFailClosed)
}

func TestRevealHold(t *testing.T) {
	w := openWorld()
	// a moving target is re-evaluated every tick
	*w.Player(1).Velocity = core.Vec3{0, 260, 0}
	e := loaded(t, w, nil)
	hold := e.memory.HoldTicks()
	require.Positive(t, hold)

	e.OnTick(1)
	require.True(t, e.ShouldTransmit(0, 1))

	w.AddBrush(core.Vec3{200, -5000, -5000}, core.Vec3{220, 5000, 5000})
	for tick := 2; tick <= 1+hold; tick++ {
		e.OnTick(tick)
		require.True(t, e.ShouldTransmit(0, 1), "tick %d is inside the hold", tick)
	}
	e.OnTick(2 + hold)
	assert.False(t, e.ShouldTransmit(0, 1))
}

func TestCheckTransmit_RemovesPawnAndWeapons(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)
	e.OnTick(1)

	set := worldsim.NewSet(10, 100, 101, 11, 110)
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})

	assert.True(t, set.Contains(10))
	assert.True(t, set.Contains(100))
	assert.True(t, set.Contains(101))
	assert.False(t, set.Contains(11))
	assert.False(t, set.Contains(110))

	s := e.Summary()
	assert.Equal(t, int64(1), s.TransmitCallbacks)
	assert.Equal(t, int64(1), s.HiddenEntities)
	assert.Zero(t, s.FallbackChecks)
}

func TestCheckTransmit_Idempotent(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)
	e.OnTick(1)

	set := worldsim.NewSet(10, 11, 110)
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})

	assert.Equal(t, worldsim.NewSet(10), set)
	s := e.Summary()
	assert.Equal(t, int64(1), s.HiddenEntities)
	assert.Equal(t, int64(1), s.RemovalNoEffect)
}

func TestCheckTransmit_VisibleTargetsUntouched(t *testing.T) {
	w := openWorld()
	e := loaded(t, w, nil)
	e.OnTick(1)

	set := worldsim.NewSet(10, 11, 110)
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})
	assert.Equal(t, worldsim.NewSet(10, 11, 110), set)
	assert.Zero(t, e.Summary().HiddenEntities)
}

func TestCheckTransmit_FallbackWithoutRows(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)

	set := worldsim.NewSet(11, 110)
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})
	assert.Empty(t, set)
	assert.Equal(t, int64(1), e.Summary().FallbackChecks)

	visible, ok := e.scheduler.Lookup(0, 1, 11)
	require.True(t, ok, "fallback result is stored")
	assert.False(t, visible)

	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: worldsim.NewSet(11)}})
	assert.Equal(t, int64(1), e.Summary().FallbackChecks)
}

func TestCheckTransmit_Skips(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		world  func(*worldsim.World)
	}{
		{
			name:   "teammates excluded",
			mutate: func(c *config.Config) { c.Visibility.IncludeTeammates = false },
			world:  func(w *worldsim.World) { w.Player(1).Team = 2 },
		},
		{
			name:   "bot targets excluded",
			mutate: func(c *config.Config) { c.Visibility.IncludeBots = false },
			world:  func(w *worldsim.World) { w.Player(1).Bot = true },
		},
		{
			name:   "bot viewers without line of sight",
			mutate: func(c *config.Config) { c.Visibility.BotsDoLOS = false },
			world:  func(w *worldsim.World) { w.Player(0).Bot = true },
		},
		{
			name:  "dead viewer",
			world: func(w *worldsim.World) { w.Player(0).Alive = false },
		},
		{
			name:   "disabled",
			mutate: func(c *config.Config) { c.Core.Enabled = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := wallWorld()
			if tt.world != nil {
				tt.world(w)
			}
			e := loaded(t, w, tt.mutate)
			e.OnTick(1)

			set := worldsim.NewSet(11, 110)
			e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})
			assert.Equal(t, worldsim.NewSet(11, 110), set)
			assert.True(t, e.ShouldTransmit(0, 1))
		})
	}
}

func TestCheckTransmit_NilSetIgnored(t *testing.T) {
	e := loaded(t, wallWorld(), nil)
	e.OnTick(1)
	assert.NotPanics(t, func() {
		e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0}})
	})
}

func TestDirectoryNotReady(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)
	w.NotReady = true

	e.OnTick(1)
	assert.Zero(t, e.scheduler.Rows())

	set := worldsim.NewSet(11, 110)
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})
	assert.Len(t, set, 2)
	assert.True(t, e.ShouldTransmit(0, 1))

	w.NotReady = false
	e.OnTick(2)
	assert.Equal(t, 2, e.scheduler.Rows())
}

func TestNotReadyProviderTransmitsEverything(t *testing.T) {
	w := wallWorld()
	w.Offline = true
	e := newEngine(t, w, w, Options{})

	assert.False(t, e.Load(testConfig(nil)))
	assert.False(t, e.Ready())
	assert.Equal(t, core.Visible, e.EvaluateSafe(w.Player(0), w.Player(1), 1))

	set := worldsim.NewSet(11, 110)
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: set}})
	assert.Len(t, set, 2)
}

func TestInitRetry(t *testing.T) {
	w := wallWorld()
	w.Offline = true
	e := newEngine(t, w, w, Options{})
	require.False(t, e.Load(testConfig(nil)))

	w.Offline = false
	for tick := 1; tick < InitRetryTicks; tick++ {
		e.OnTick(tick)
		require.False(t, e.Ready(), "tick %d", tick)
	}
	e.OnTick(InitRetryTicks)
	assert.True(t, e.Ready())
}

func TestEvaluateSafe_RecoversPanics(t *testing.T) {
	w := wallWorld()
	p := &panicky{World: w}
	e := newEngine(t, p, w, Options{})
	require.True(t, e.Load(testConfig(nil)))

	p.armed = true
	assert.Equal(t, core.UnknownTransient, e.EvaluateSafe(w.Player(0), w.Player(1), 1))

	e.OnTick(2)
	assert.True(t, e.ShouldTransmit(0, 1), "uncertain pairs fail open")
	assert.Equal(t, int64(3), e.Summary().EvalPanics)
}

func TestMapLifecycle(t *testing.T) {
	w := wallWorld()
	sess := session.NewContext()
	e := newEngine(t, w, w, Options{Session: sess})
	require.True(t, e.Load(testConfig(nil)))

	e.OnMapStart("de_dust2")
	assert.Equal(t, "de_dust2", sess.Map())
	assert.Equal(t, fixedNow, sess.Started())
	assert.Equal(t, 2, e.scheduler.Rows(), "map start runs the first batch")

	e.OnTick(1)
	assert.Equal(t, 1, sess.Tick())
	assert.Equal(t, "de_dust2", e.Summary().Map)

	e.OnMapEnd()
	assert.Zero(t, e.scheduler.Rows())
	assert.Equal(t, session.NoMap, sess.Map())
	holds, stable := e.memory.Rows()
	assert.Zero(t, holds)
	assert.Zero(t, stable)
}

func TestOnClientDisconnect(t *testing.T) {
	w := wallWorld()
	w.Put(worldsim.NewPlayer(2, 12, 3, false, core.Vec3{500, 300, 0}, core.Vec3{}, 0, 180))
	e := loaded(t, w, nil)

	e.OnTick(1)
	require.Equal(t, 3, e.scheduler.Rows())
	require.Equal(t, 6, e.scheduler.Pairs())

	e.OnClientDisconnect(2)
	w.Remove(2)
	assert.Equal(t, 2, e.scheduler.Rows())
	assert.Equal(t, 2, e.scheduler.Pairs())
	_, stable := e.memory.Rows()
	assert.Equal(t, 2, stable)
}

func TestApplyConfig_ClampsAndReconfiguresMemory(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)

	warnings := e.ApplyConfig(testConfig(func(c *config.Config) {
		c.Preload.RevealHoldSeconds = 5
		c.Core.UpdateFrequencyTicks = 0
	}))
	assert.Len(t, warnings, 2)
	assert.Equal(t, 1.0, e.Config().Preload.RevealHoldSeconds)
	assert.Equal(t, 64, e.memory.HoldTicks())

	e.ApplyConfig(testConfig(func(c *config.Config) { c.Preload.RevealHoldSeconds = 0 }))
	assert.Zero(t, e.memory.HoldTicks())
}

func TestSummaries(t *testing.T) {
	w := openWorld()
	rec := &summaryRecorder{}
	sess := session.NewContext()
	e := newEngine(t, w, w, Options{Summaries: []core.SummarySink{rec}, Session: sess})
	require.True(t, e.Load(testConfig(nil)))
	e.OnMapStart("de_inferno")

	for tick := 1; tick < SummaryIntervalTicks; tick++ {
		e.OnTick(tick)
	}
	require.Empty(t, rec.got)

	e.OnTick(SummaryIntervalTicks)
	require.Len(t, rec.got, 1)
	s := rec.got[0]
	assert.Equal(t, SummaryIntervalTicks, s.Tick)
	assert.Equal(t, "de_inferno", s.Map)
	assert.Equal(t, fixedNow, s.Timestamp)
	assert.Equal(t, 2, s.LivePlayers)
	assert.Equal(t, 2, s.Humans)
	assert.Zero(t, s.Bots)
	assert.Equal(t, 2, s.ViewerRows)
	assert.Equal(t, 2*1*10, s.RaysEstimate)
	assert.Equal(t, 2, s.PairsPerTick)
	assert.Positive(t, s.HoldRefresh)

	// the window restarts
	assert.Zero(t, e.Summary().HoldRefresh)
}

func TestSummaries_QuietWindowNotPublished(t *testing.T) {
	w := openWorld()
	rec := &summaryRecorder{}
	e := newEngine(t, w, w, Options{Summaries: []core.SummarySink{rec}})
	require.True(t, e.Load(testConfig(func(c *config.Config) { c.Preload.RevealHoldSeconds = 0 })))

	// first tick evaluates, later ticks reuse stationary visible rows
	e.OnTick(1)
	e.window = window{}
	for tick := 2; tick <= SummaryIntervalTicks+1; tick++ {
		e.OnTick(tick)
	}
	assert.Empty(t, rec.got)
}

func TestSummaries_DisabledWithoutDebugInfo(t *testing.T) {
	w := openWorld()
	rec := &summaryRecorder{}
	e := newEngine(t, w, w, Options{Summaries: []core.SummarySink{rec}})
	require.True(t, e.Load(testConfig(func(c *config.Config) { c.Diagnostics.ShowDebugInfo = false })))

	for tick := 1; tick <= SummaryIntervalTicks; tick++ {
		e.OnTick(tick)
		e.CheckTransmit(tick, []core.TransmitInfo{{Viewer: 0, Entities: worldsim.NewSet()}})
	}
	assert.Empty(t, rec.got)
}

func TestSummary_IncludesFallbackMemoryCounters(t *testing.T) {
	w := openWorld()
	e := loaded(t, w, nil)

	// no tick yet, so the decision comes from the gate fallback
	e.CheckTransmit(1, []core.TransmitInfo{{Viewer: 0, Entities: worldsim.NewSet(11, 110)}})

	s := e.Summary()
	assert.Equal(t, int64(1), s.FallbackChecks)
	assert.Equal(t, int64(1), s.HoldRefresh)
}

func TestTotals_AccumulateWithoutDebugInfo(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, func(c *config.Config) { c.Diagnostics.ShowDebugInfo = false })

	const ticks = 10
	for tick := 1; tick <= ticks; tick++ {
		e.OnTick(tick)
		e.CheckTransmit(tick, []core.TransmitInfo{{Viewer: 0, Entities: worldsim.NewSet(11, 110)}})
	}

	assert.Equal(t, int64(1), e.Summary().HiddenEntities, "the window only holds the last tick")
	totals := e.Totals()
	assert.Equal(t, int64(ticks), totals.TransmitCallbacks)
	assert.Equal(t, int64(ticks), totals.HiddenEntities)

	e.OnMapEnd()
	assert.Zero(t, e.Totals().HiddenEntities)
}

func TestUnload(t *testing.T) {
	w := wallWorld()
	e := loaded(t, w, nil)
	e.OnTick(1)
	require.False(t, e.ShouldTransmit(0, 1))

	e.Unload()
	assert.False(t, e.Ready())
	assert.Zero(t, e.scheduler.Rows())
	assert.True(t, e.ShouldTransmit(0, 1))
}
