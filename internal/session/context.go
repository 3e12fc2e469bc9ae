// Package session tracks the map and tick the server is currently on.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// NoMap is reported before the first map starts.
const NoMap = "No map loaded"

// Context holds the current map and tick. It is written by the tick thread
// and read by loggers and sinks on other goroutines.
type Context struct {
	mu      sync.RWMutex
	mapName string
	started time.Time
	tick    int
}

// NewContext creates a Context with no map loaded.
func NewContext() *Context {
	return &Context{mapName: NoMap}
}

// Map returns the current map name.
func (c *Context) Map() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mapName
}

// Tick returns the last tick seen.
func (c *Context) Tick() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Started returns when the current map started.
func (c *Context) Started() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// StartMap records a new map and resets the tick.
func (c *Context) StartMap(name string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapName = name
	c.started = at
	c.tick = 0
}

// EndMap goes back to the no-map state.
func (c *Context) EndMap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapName = NoMap
	c.started = time.Time{}
}

// SetTick records the current tick.
func (c *Context) SetTick(tick int) {
	c.mu.Lock()
	c.tick = tick
	c.mu.Unlock()
}

// Attrs returns the log attributes for the current session. It matches
// logging.ContextProvider.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []slog.Attr{
		slog.String("map", c.mapName),
		slog.Int("tick", c.tick),
	}
}
