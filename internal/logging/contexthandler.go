package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns the attributes every record carries, usually the
// current map and tick.
type ContextProvider func() []slog.Attr

type pairKey struct{}

type pair struct {
	viewer, target int
}

// WithPair tags records logged with the returned context with the viewer
// and target slots of one visibility decision.
func WithPair(ctx context.Context, viewer, target int) context.Context {
	return context.WithValue(ctx, pairKey{}, pair{viewer: viewer, target: target})
}

// ContextHandler stamps records with the session attributes from provider
// and the pair carried by the logging context. A key the caller already set
// on the record or the logger is not repeated.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
	bound    map[string]bool
}

// NewContextHandler wraps inner with session attributes from provider.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	seen := make(map[string]bool, len(h.bound)+r.NumAttrs())
	for k := range h.bound {
		seen[k] = true
	}
	r.Attrs(func(a slog.Attr) bool {
		seen[a.Key] = true
		return true
	})

	add := func(a slog.Attr) {
		if !seen[a.Key] {
			seen[a.Key] = true
			r.AddAttrs(a)
		}
	}
	if h.provider != nil {
		for _, a := range h.provider() {
			add(a)
		}
	}
	if p, ok := ctx.Value(pairKey{}).(pair); ok {
		add(slog.Int("viewer", p.viewer))
		add(slog.Int("target", p.target))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = true
	}
	for _, a := range attrs {
		bound[a.Key] = true
	}
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider, bound: bound}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider, bound: h.bound}
}
