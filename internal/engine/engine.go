// Package engine owns the visibility pipeline and drives it from host
// lifecycle hooks: ticks, map changes, disconnects and transmit callbacks.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karola3vax/Source2-AntiWallHack/internal/cache"
	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/internal/logging"
	"github.com/karola3vax/Source2-AntiWallHack/internal/los"
	"github.com/karola3vax/Source2-AntiWallHack/internal/memory"
	"github.com/karola3vax/Source2-AntiWallHack/internal/preload"
	"github.com/karola3vax/Source2-AntiWallHack/internal/scheduler"
	"github.com/karola3vax/Source2-AntiWallHack/internal/session"
	"github.com/karola3vax/Source2-AntiWallHack/internal/transmit"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

const (
	// InitRetryTicks is how often a provider that is not operational yet is probed again.
	InitRetryTicks = 64
	// SummaryIntervalTicks is the length of one diagnostics window.
	SummaryIntervalTicks = 4096
)

// log categories passed through the OnceGate
const (
	catProviderWait   = "provider_wait"
	catNotReady       = "directory_not_ready"
	catDirectoryError = "directory_error"
	catEvalPanic      = "eval_panic"
)

// Options wires the engine to its host.
type Options struct {
	Provider  core.RayTraceProvider
	Directory core.EntityDirectory
	Logger    *slog.Logger
	// Beams receives debug trace beams. Optional.
	Beams core.BeamSink
	// Summaries receive the periodic runtime summary. Optional.
	Summaries []core.SummarySink
	// Session is updated with the map and tick. Optional.
	Session *session.Context
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine is driven by the host's tick thread. None of its methods are safe
// for concurrent use.
type Engine struct {
	provider  core.RayTraceProvider
	directory core.EntityDirectory
	logger    *slog.Logger
	beams     core.BeamSink
	summaries []core.SummarySink
	session   *session.Context
	now       func() time.Time

	cfg *config.Config

	// nil until the provider is operational
	los     *los.Evaluator
	preload *preload.Predictor
	filter  *transmit.Filter

	memory    *memory.Memory
	scheduler *scheduler.Scheduler
	entities  *cache.EntityCache
	once      *logging.OnceGate
	metrics   *metrics

	tick           int
	ticksSinceInit int
	window         window
	totals         window
	lastBatch      scheduler.Batch
	lastLiveCount  int
}

// New creates an engine with the default configuration. It does not probe
// the provider; call Load.
func New(opts Options) (*Engine, error) {
	if opts.Directory == nil {
		return nil, errors.New("engine: entity directory is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("engine metrics: %w", err)
	}

	e := &Engine{
		provider:  opts.Provider,
		directory: opts.Directory,
		logger:    opts.Logger.With("component", "engine"),
		beams:     opts.Beams,
		summaries: opts.Summaries,
		session:   opts.Session,
		now:       opts.Now,
		memory:    memory.New(),
		entities:  cache.NewEntityCache(),
		once:      logging.NewOnceGate(),
		metrics:   m,
	}
	e.scheduler = scheduler.New(scheduler.DeciderFunc(e.decide))

	def := config.Default()
	e.cfg = &def
	e.configureMemory()
	return e, nil
}

// Load applies cfg and tries to bring up the tracing pipeline. It reports
// whether the pipeline is ready.
func (e *Engine) Load(cfg config.Config) bool {
	e.ApplyConfig(cfg)
	return e.tryInit("load")
}

// Unload tears the pipeline down and forgets all state.
func (e *Engine) Unload() {
	e.clearAll()
	e.los, e.preload, e.filter = nil, nil, nil
	e.logger.Info("Visibility engine unloaded")
}

// ApplyConfig normalizes cfg and makes it the active configuration. The
// clamping warnings are logged and returned.
func (e *Engine) ApplyConfig(cfg config.Config) []string {
	warnings := cfg.Normalize()
	for _, w := range warnings {
		e.logger.Warn("Config value adjusted", "detail", w)
	}
	e.cfg = &cfg
	e.configureMemory()

	e.logger.Info("Config applied",
		"enabled", cfg.Core.Enabled,
		"updateFrequencyTicks", cfg.Core.UpdateFrequencyTicks,
		"revealHoldTicks", e.memory.HoldTicks(),
		"stickyTicks", e.memory.StickyTicks(),
		"showDebugInfo", cfg.Diagnostics.ShowDebugInfo,
	)

	if e.Ready() && cfg.Core.Enabled {
		e.rebuild(e.tick)
	}
	return warnings
}

func (e *Engine) configureMemory() {
	interval := config.SafeTickInterval(e.directory.TickInterval())
	e.memory.Configure(
		e.cfg.RevealHoldTicks(interval),
		config.StickyWindowTicks(interval),
		e.cfg.Visibility.FailClosedOnUnknown,
	)
}

// Config returns the active configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Ready reports whether the provider answered and the pipeline exists.
func (e *Engine) Ready() bool {
	return e.filter != nil
}

func (e *Engine) tryInit(source string) bool {
	if e.Ready() {
		return true
	}
	if !core.ProviderOperational(e.provider) {
		if e.once.Allow(catProviderWait) {
			e.logger.Warn("Ray trace provider is not ready yet, retrying automatically",
				"source", source, "retryTicks", InitRetryTicks)
		}
		return false
	}

	e.los = los.New(e.provider, e.beams)
	e.preload = preload.New(e.provider, e.beams)
	e.filter = transmit.NewFilter(e.los, e.preload)
	e.ticksSinceInit = 0
	e.once.Reset()

	e.logger.Info("Ray trace provider is ready, visibility filtering is active", "source", source)
	return true
}

// OnMapStart forgets everything from the previous map.
func (e *Engine) OnMapStart(name string) {
	e.clearAll()
	if e.session != nil {
		e.session.StartMap(name, e.now())
	}
	e.logger.Info("Map started, visibility state cleared", "map", name)

	if e.tryInit("map_start") && e.cfg.Core.Enabled && !e.rebuild(e.tick) {
		e.logger.Debug("Initial visibility rebuild delayed until the next tick")
	}
}

// OnMapEnd forgets everything.
func (e *Engine) OnMapEnd() {
	e.clearAll()
	if e.session != nil {
		e.session.EndMap()
	}
	e.logger.Info("Map ended, visibility state cleared")
}

// OnClientDisconnect frees every row and cache entry of slot.
func (e *Engine) OnClientDisconnect(slot core.Slot) {
	e.scheduler.RemoveSlot(slot)
	e.memory.RemoveViewer(slot)
	e.memory.RemoveTarget(slot)
	e.entities.Remove(slot)
	if e.los != nil {
		e.los.InvalidateSlot(slot)
		e.preload.InvalidateSlot(slot)
	}
	e.logger.Debug("Player disconnected, slot data removed", "slot", slot)
}

func (e *Engine) clearAll() {
	e.scheduler.Reset()
	e.memory.Reset()
	e.entities.Reset()
	if e.filter != nil {
		e.los.Clear()
		e.preload.Clear()
		e.filter.Clear()
	}
	e.once.Reset()
	e.window = window{}
	e.totals = window{}
	e.lastBatch = scheduler.Batch{}
	e.lastLiveCount = 0
	e.metrics.setRows(0)
}
