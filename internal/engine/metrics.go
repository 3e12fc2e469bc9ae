package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/karola3vax/Source2-AntiWallHack/internal/memory"
)

const instrumentationName = "github.com/karola3vax/Source2-AntiWallHack/internal/engine"

var (
	holdRefresh   = metric.WithAttributes(attribute.String("event", "refresh"))
	holdKeepAlive = metric.WithAttributes(attribute.String("event", "keep_alive"))
	holdExpired   = metric.WithAttributes(attribute.String("event", "expired"))

	unknownSticky     = metric.WithAttributes(attribute.String("resolution", "sticky"))
	unknownHold       = metric.WithAttributes(attribute.String("resolution", "hold"))
	unknownFailOpen   = metric.WithAttributes(attribute.String("resolution", "fail_open"))
	unknownFailClosed = metric.WithAttributes(attribute.String("resolution", "fail_closed"))
)

// metrics holds the engine's OTel instruments, taken from the global meter
// provider (no-op unless one is installed).
type metrics struct {
	meter metric.Meter

	callbacks metric.Int64Counter
	hidden    metric.Int64Counter
	fallbacks metric.Int64Counter
	panics    metric.Int64Counter
	holds     metric.Int64Counter
	unknown   metric.Int64Counter
	rows      metric.Int64ObservableGauge

	// written by the tick thread, read by the exporter
	viewerRows atomic.Int64
}

func newMetrics() (*metrics, error) {
	m := &metrics{meter: otel.Meter(instrumentationName)}

	var err error
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = m.meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			err = fmt.Errorf("creating %s: %w", name, err)
		}
		return c
	}

	m.callbacks = counter("s2awh.transmit.callbacks", "Transmit callbacks filtered")
	m.hidden = counter("s2awh.transmit.hidden", "Targets removed from a viewer's transmit set")
	m.fallbacks = counter("s2awh.transmit.fallbacks", "Pairs evaluated inline because no fresh row existed")
	m.panics = counter("s2awh.eval.panics", "Pair evaluations that panicked")
	m.holds = counter("s2awh.memory.hold", "Reveal hold events")
	m.unknown = counter("s2awh.memory.unknown", "Uncertain verdicts by resolution")
	if err != nil {
		return nil, err
	}

	m.rows, err = m.meter.Int64ObservableGauge(
		"s2awh.scheduler.viewer_rows",
		metric.WithDescription("Viewer rows held by the scheduler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating viewer rows gauge: %w", err)
	}
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.rows, m.viewerRows.Load())
		return nil
	}, m.rows)
	if err != nil {
		return nil, fmt.Errorf("registering viewer rows callback: %w", err)
	}
	return m, nil
}

func (m *metrics) setRows(n int) { m.viewerRows.Store(int64(n)) }

func (m *metrics) recordCallback() { m.callbacks.Add(context.Background(), 1) }
func (m *metrics) recordHidden()   { m.hidden.Add(context.Background(), 1) }
func (m *metrics) recordFallback() { m.fallbacks.Add(context.Background(), 1) }
func (m *metrics) recordPanic()    { m.panics.Add(context.Background(), 1) }

func (m *metrics) recordMemory(c memory.Counters) {
	ctx := context.Background()
	add := func(counter metric.Int64Counter, n int64, opt metric.AddOption) {
		if n > 0 {
			counter.Add(ctx, n, opt)
		}
	}
	add(m.holds, c.HoldRefresh, holdRefresh)
	add(m.holds, c.HoldKeepAlive, holdKeepAlive)
	add(m.holds, c.HoldExpired, holdExpired)
	add(m.unknown, c.UnknownSticky, unknownSticky)
	add(m.unknown, c.UnknownHold, unknownHold)
	add(m.unknown, c.UnknownFailOpen, unknownFailOpen)
	add(m.unknown, c.UnknownFailClosed, unknownFailClosed)
}
