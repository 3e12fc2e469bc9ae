package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/internal/debugstream"
	"github.com/karola3vax/Source2-AntiWallHack/internal/dispatcher"
	"github.com/karola3vax/Source2-AntiWallHack/internal/engine"
	"github.com/karola3vax/Source2-AntiWallHack/internal/influx"
	"github.com/karola3vax/Source2-AntiWallHack/internal/logging"
	"github.com/karola3vax/Source2-AntiWallHack/internal/session"
	"github.com/karola3vax/Source2-AntiWallHack/internal/worldsim"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

const summaryQueueSize = 16

// host plays the game server: it owns the simulated world and feeds the
// engine through the dispatcher the way server hooks would.
type host struct {
	logger   *slog.Logger
	world    *worldsim.World
	session  *session.Context
	influx   *influx.Manager        // optional
	streamer *debugstream.Streamer // optional

	engine *engine.Engine
	events *dispatcher.Dispatcher

	ticks  int
	hidden map[pair]int
}

type pair struct {
	viewer, target core.Slot
}

// summaryRelay hands summaries to the dispatcher so the InfluxDB write
// happens off the tick thread.
type summaryRelay struct {
	events *dispatcher.Dispatcher
	logger *slog.Logger
}

func (r summaryRelay) RecordSummary(s core.RuntimeSummary) {
	if _, err := r.events.Dispatch(dispatcher.Event{Command: dispatcher.CmdSummary, Tick: s.Tick, Payload: s}); err != nil {
		r.logger.Warn("Failed to queue runtime summary", "error", err)
	}
}

func (h *host) start() error {
	if h.session == nil {
		h.session = session.NewContext()
	}
	h.hidden = make(map[pair]int)

	events, err := dispatcher.New(logging.NewDispatcherLogger(h.logger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	h.events = events

	opts := engine.Options{
		Provider:  h.world,
		Directory: h.world,
		Logger:    h.logger,
		Session:   h.session,
	}
	if h.influx != nil {
		opts.Summaries = append(opts.Summaries, summaryRelay{events: events, logger: h.logger})
	}
	if h.streamer != nil {
		opts.Beams = h.streamer
		opts.Summaries = append(opts.Summaries, h.streamer)
	}

	h.engine, err = engine.New(opts)
	if err != nil {
		return err
	}

	cfg, warnings, err := config.Get()
	if err != nil {
		h.logger.Warn("Invalid engine config, using defaults", "error", err)
	}
	for _, w := range warnings {
		h.logger.Warn("Config value adjusted", "detail", w)
	}
	if !h.engine.Load(cfg) {
		h.logger.Warn("Visibility filtering inactive until the ray trace provider answers")
	}

	h.registerHandlers()
	return nil
}

func (h *host) registerHandlers() {
	h.events.Register(dispatcher.CmdMapStart, func(e dispatcher.Event) (any, error) {
		name, ok := e.Payload.(string)
		if !ok {
			return nil, fmt.Errorf("map start payload: unexpected %T", e.Payload)
		}
		h.engine.OnMapStart(name)
		if h.streamer != nil {
			return nil, h.streamer.StartSession(name, h.world.TickInterval(), h.session.Started())
		}
		return nil, nil
	}, dispatcher.Logged())

	h.events.Register(dispatcher.CmdMapEnd, func(dispatcher.Event) (any, error) {
		h.engine.OnMapEnd()
		if h.streamer != nil {
			return nil, h.streamer.EndSession()
		}
		return nil, nil
	}, dispatcher.Logged())

	h.events.Register(dispatcher.CmdTick, func(e dispatcher.Event) (any, error) {
		h.engine.OnTick(e.Tick)
		if h.streamer != nil {
			return nil, h.streamer.Flush(e.Tick)
		}
		return nil, nil
	})

	h.events.Register(dispatcher.CmdCheckTransmit, func(e dispatcher.Event) (any, error) {
		infos, ok := e.Payload.([]core.TransmitInfo)
		if !ok {
			return nil, fmt.Errorf("check transmit payload: unexpected %T", e.Payload)
		}
		h.engine.CheckTransmit(e.Tick, infos)
		return nil, nil
	})

	h.events.Register(dispatcher.CmdDisconnect, func(e dispatcher.Event) (any, error) {
		slot, ok := e.Payload.(core.Slot)
		if !ok {
			return nil, fmt.Errorf("disconnect payload: unexpected %T", e.Payload)
		}
		h.engine.OnClientDisconnect(slot)
		return nil, nil
	}, dispatcher.Logged())

	h.events.Register(dispatcher.CmdConfigReload, func(dispatcher.Event) (any, error) {
		if err := config.Reload(); err != nil {
			return nil, err
		}
		cfg, _, err := config.Get()
		if err != nil {
			return nil, err
		}
		return h.engine.ApplyConfig(cfg), nil
	}, dispatcher.Logged())

	if h.influx != nil {
		h.events.Register(dispatcher.CmdSummary, func(e dispatcher.Event) (any, error) {
			s, ok := e.Payload.(core.RuntimeSummary)
			if !ok {
				return nil, fmt.Errorf("summary payload: unexpected %T", e.Payload)
			}
			h.influx.RecordSummary(s)
			return nil, nil
		}, dispatcher.Buffered(summaryQueueSize))
	}
}

func (h *host) dispatch(command string, tick int, payload any) {
	if _, err := h.events.Dispatch(dispatcher.Event{Command: command, Tick: tick, Payload: payload}); err != nil {
		h.logger.Error("Hook failed", "command", command, "tick", tick, "error", err)
	}
}

// simulate runs the scenario until it ends or ctx is cancelled. SIGHUP
// reloads the config file between ticks.
func (h *host) simulate(ctx context.Context, scenario *worldsim.Scenario) error {
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	h.dispatch(dispatcher.CmdMapStart, 0, scenario.Map)

	for tick := 1; tick <= scenario.Ticks; tick++ {
		select {
		case <-ctx.Done():
			h.logger.Info("Simulation interrupted", "tick", tick)
			return ctx.Err()
		case <-reload:
			h.dispatch(dispatcher.CmdConfigReload, tick, nil)
		default:
		}

		h.world.Step()
		h.dispatch(dispatcher.CmdTick, tick, nil)

		sets := h.transmitSets()
		infos := make([]core.TransmitInfo, 0, len(sets))
		for _, vs := range sets {
			infos = append(infos, core.TransmitInfo{Viewer: vs.viewer, Entities: vs.set})
		}
		h.dispatch(dispatcher.CmdCheckTransmit, tick, infos)
		h.record(sets)
		h.ticks++
	}
	return nil
}

type viewerSet struct {
	viewer core.Slot
	set    worldsim.Set
}

// transmitSets builds the full outgoing set of every connected player: all
// pawns and weapons in the world.
func (h *host) transmitSets() []viewerSet {
	players, err := h.world.LivePlayers()
	if err != nil {
		return nil
	}
	var all []core.EntityHandle
	for _, p := range players {
		all = append(all, h.world.AssociatedEntities(p)...)
	}
	out := make([]viewerSet, 0, len(players))
	for _, p := range players {
		out = append(out, viewerSet{viewer: p.Slot, set: worldsim.NewSet(all...)})
	}
	return out
}

func (h *host) record(sets []viewerSet) {
	players, err := h.world.LivePlayers()
	if err != nil {
		return
	}
	for _, vs := range sets {
		for _, target := range players {
			if target.Slot == vs.viewer || target.Pawn == 0 {
				continue
			}
			if !vs.set.Contains(core.EntityHandle(target.Pawn)) {
				h.hidden[pair{vs.viewer, target.Slot}]++
			}
		}
	}
}

func (h *host) report(out io.Writer) {
	pairs := make([]pair, 0, len(h.hidden))
	for p := range h.hidden {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].viewer != pairs[j].viewer {
			return pairs[i].viewer < pairs[j].viewer
		}
		return pairs[i].target < pairs[j].target
	})

	fmt.Fprintf(out, "map %s, %d ticks\n", h.session.Map(), h.ticks)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VIEWER\tTARGET\tHIDDEN TICKS\tHIDDEN %")
	for _, p := range pairs {
		n := h.hidden[p]
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.1f\n", p.viewer, p.target, n, 100*float64(n)/float64(max(h.ticks, 1)))
	}
	_ = tw.Flush()

	s := h.engine.Totals()
	fmt.Fprintf(out, "players %d (humans %d, bots %d), viewer rows %d, hidden %d, fallbacks %d, uncertain %d\n",
		s.LivePlayers, s.Humans, s.Bots, s.ViewerRows, s.HiddenEntities, s.FallbackChecks, s.UnknownTotal)
}

func (h *host) stop() {
	h.dispatch(dispatcher.CmdMapEnd, h.ticks, nil)
	h.events.Close()
	if h.streamer != nil {
		if err := h.streamer.Close(); err != nil {
			h.logger.Warn("Closing debug stream failed", "error", err)
		}
	}
	if h.influx != nil {
		if err := h.influx.Close(); err != nil {
			h.logger.Warn("Closing InfluxDB failed", "error", err)
		}
	}
}
