package session

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()
	assert.Equal(t, NoMap, ctx.Map())
	assert.Zero(t, ctx.Tick())
	assert.True(t, ctx.Started().IsZero())
}

func TestContext_MapLifecycle(t *testing.T) {
	ctx := NewContext()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	ctx.SetTick(99)
	ctx.StartMap("de_ancient", at)
	assert.Equal(t, "de_ancient", ctx.Map())
	assert.Equal(t, at, ctx.Started())
	assert.Zero(t, ctx.Tick(), "tick resets on map start")

	ctx.SetTick(12)
	assert.Equal(t, []slog.Attr{slog.String("map", "de_ancient"), slog.Int("tick", 12)}, ctx.Attrs())

	ctx.EndMap()
	assert.Equal(t, NoMap, ctx.Map())
}

func TestContext_ConcurrentAccess(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ctx.SetTick(i)
		}(i)
		go func() {
			defer wg.Done()
			_ = ctx.Attrs()
		}()
	}
	wg.Wait()
}
