package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.add("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.add("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.add("ERROR", msg, keysAndValues) }

func (l *testLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.messages, "\n")
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(CmdTick, func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: CmdTick, Tick: 7, Payload: 3})
	require.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.Equal(t, 7, got.Tick)
	assert.Equal(t, 3, got.Payload)
	assert.False(t, got.Timestamp.IsZero(), "timestamp filled in")
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), ":UNKNOWN:")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	done := make(chan struct{})
	d.Register(CmdSummary, func(e Event) (any, error) {
		if count.Add(1) == 3 {
			close(done)
		}
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: CmdSummary})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("buffered events were not processed")
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	d.Register(CmdSummary, func(e Event) (any, error) {
		<-release
		return nil, nil
	}, Buffered(1))

	// first event is taken by the worker, second fills the queue
	_, err := d.Dispatch(Event{Command: CmdSummary})
	require.NoError(t, err)

	var dropped error
	for i := 0; i < 10 && dropped == nil; i++ {
		_, dropped = d.Dispatch(Event{Command: CmdSummary})
	}
	close(release)
	require.Error(t, dropped)
	assert.Contains(t, dropped.Error(), "queue full")
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	d.Register(CmdSummary, func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		count.Add(1)
		return nil, nil
	}, Buffered(1), Blocking())

	for i := 0; i < 5; i++ {
		_, err := d.Dispatch(Event{Command: CmdSummary})
		require.NoError(t, err)
	}

	d.Close()
	assert.Equal(t, int32(5), count.Load(), "close drains the queue")

	_, err := d.Dispatch(Event{Command: CmdSummary})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_BufferedErrorLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(CmdSummary, func(e Event) (any, error) {
		return nil, errors.New("sink down")
	}, Buffered(4))

	_, err := d.Dispatch(Event{Command: CmdSummary})
	require.NoError(t, err)
	d.Close()

	assert.Contains(t, logger.joined(), "buffered event failed")
	assert.Contains(t, logger.joined(), "sink down")
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(CmdMapStart, func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	_, err := d.Dispatch(Event{Command: CmdMapStart, Tick: 1})
	require.NoError(t, err)

	out := logger.joined()
	assert.Contains(t, out, "handling event")
	assert.Contains(t, out, "event complete")
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(CmdDisconnect, func(e Event) (any, error) {
		return nil, errors.New("bad slot")
	}, Logged())

	_, err := d.Dispatch(Event{Command: CmdDisconnect})
	require.Error(t, err)
	assert.Contains(t, logger.joined(), "ERROR: event failed")
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	assert.False(t, d.HasHandler(CmdTick))
	d.Register(CmdTick, func(e Event) (any, error) { return nil, nil })
	assert.True(t, d.HasHandler(CmdTick))
}

func TestDispatcher_CloseTwice(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register(CmdSummary, func(e Event) (any, error) { return nil, nil }, Buffered(1))
	d.Close()
	d.Close()
}
