package logging

import "sync"

// OnceGate lets one log line through per failure category until Reset.
// The tick loop uses it so a failure repeating every tick is reported once.
type OnceGate struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewOnceGate creates an open gate.
func NewOnceGate() *OnceGate {
	return &OnceGate{seen: make(map[string]struct{})}
}

// Allow reports whether category has not been logged since the last Reset,
// and closes it.
func (g *OnceGate) Allow(category string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[category]; ok {
		return false
	}
	g.seen[category] = struct{}{}
	return true
}

// Reset reopens every category.
func (g *OnceGate) Reset() {
	g.mu.Lock()
	g.seen = make(map[string]struct{})
	g.mu.Unlock()
}

// Forget reopens a single category.
func (g *OnceGate) Forget(category string) {
	g.mu.Lock()
	delete(g.seen, category)
	g.mu.Unlock()
}
