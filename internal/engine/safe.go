package engine

import (
	"context"
	"fmt"

	"github.com/karola3vax/Source2-AntiWallHack/internal/logging"
	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// EvaluateSafe runs the visibility pipeline for one pair. A panic anywhere
// in the pipeline yields UnknownTransient. Before the provider is ready
// every pair is Visible.
func (e *Engine) EvaluateSafe(viewer, target *core.Entity, tick int) (eval core.VisibilityEval) {
	if e.filter == nil {
		return core.Visible
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		eval = core.UnknownTransient
		e.window.panics++
		e.metrics.recordPanic()
		if e.once.Allow(catEvalPanic) {
			ctx := logging.WithPair(context.Background(), int(slotOf(viewer)), int(slotOf(target)))
			e.logger.ErrorContext(ctx, "Visibility evaluation failed, treating pair as uncertain",
				"tick", tick,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	return e.filter.Evaluate(viewer, target, tick, e.cfg)
}

func slotOf(e *core.Entity) core.Slot {
	if e == nil {
		return -1
	}
	return e.Slot
}
