package worldsim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

func TestTraceEndShape_Wall(t *testing.T) {
	w := New(1.0 / 64)
	w.AddBrush(core.Vec3{100, -500, -500}, core.Vec3{110, 500, 500})

	res, ok := w.TraceEndShape(core.Vec3{0, 0, 0}, core.Vec3{200, 0, 0}, 0, core.WorldOnly)
	require.True(t, ok)
	assert.True(t, res.DidHit)
	assert.InDelta(t, 0.5, res.Fraction, 1e-9)
	assert.InDelta(t, 100.0, res.EndPos.X(), 1e-9)
	assert.Equal(t, core.PawnID(0), res.HitEntity)

	res, ok = w.TraceEndShape(core.Vec3{0, 0, 0}, core.Vec3{0, 200, 0}, 0, core.WorldOnly)
	require.True(t, ok)
	assert.False(t, res.DidHit)
	assert.InDelta(t, 1.0, res.Fraction, 1e-9)
	assert.Equal(t, 2, w.Traces())
}

func TestTraceEndShape_StopsShortOfBrush(t *testing.T) {
	w := New(1.0 / 64)
	w.AddBrush(core.Vec3{100, -500, -500}, core.Vec3{110, 500, 500})

	res, ok := w.TraceEndShape(core.Vec3{0, 0, 0}, core.Vec3{90, 0, 0}, 0, core.WorldOnly)
	require.True(t, ok)
	assert.False(t, res.DidHit)
}

func TestTraceHullShape_ExpandsBrush(t *testing.T) {
	w := New(1.0 / 64)
	// thin pillar the point ray passes beside
	w.AddBrush(core.Vec3{100, 3, -500}, core.Vec3{110, 20, 500})
	ext := core.Vec3{5, 5, 5}

	res, _ := w.TraceEndShape(core.Vec3{0, 0, 0}, core.Vec3{200, 0, 0}, 0, core.WorldOnly)
	assert.False(t, res.DidHit)

	res, ok := w.TraceHullShape(core.Vec3{0, 0, 0}, core.Vec3{200, 0, 0}, ext.Mul(-1), ext, 0, core.WorldOnly)
	require.True(t, ok)
	assert.True(t, res.DidHit)
	assert.InDelta(t, 95.0, res.EndPos.X(), 1e-9)
}

func TestTrace_PlayersMask(t *testing.T) {
	w := New(1.0 / 64)
	w.Put(NewPlayer(2, 42, 2, false, core.Vec3{100, 0, 0}, core.Vec3{}, 0, 0))

	res, _ := w.TraceEndShape(core.Vec3{0, 0, 36}, core.Vec3{200, 0, 36}, 0, core.WorldOnly)
	assert.False(t, res.DidHit)

	opts := core.TraceOptions{InteractsWith: core.MaskWorld | core.MaskPlayers}
	res, _ = w.TraceEndShape(core.Vec3{0, 0, 36}, core.Vec3{200, 0, 36}, 0, opts)
	assert.True(t, res.DidHit)
	assert.Equal(t, core.PawnID(42), res.HitEntity)

	res, _ = w.TraceEndShape(core.Vec3{0, 0, 36}, core.Vec3{200, 0, 36}, 42, opts)
	assert.False(t, res.DidHit)
}

func TestTrace_Offline(t *testing.T) {
	w := New(1.0 / 64)
	w.Offline = true
	_, ok := w.TraceEndShape(core.Vec3{}, core.Vec3{1, 1, 1}, 0, core.WorldOnly)
	assert.False(t, ok)
	assert.False(t, core.ProviderOperational(w))
}

func TestDirectory(t *testing.T) {
	w := New(1.0 / 64)
	w.Put(NewPlayer(3, 7, 2, false, core.Vec3{}, core.Vec3{64, 0, 0}, 0, 0), 70, 71)
	w.Put(NewPlayer(1, 5, 3, true, core.Vec3{}, core.Vec3{}, 0, 0))

	players, err := w.LivePlayers()
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, core.Slot(1), players[0].Slot)

	assert.Equal(t, []core.EntityHandle{7, 70, 71}, w.AssociatedEntities(w.Player(3)))

	w.Step()
	assert.InDelta(t, 1.0, w.Player(3).Origin.X(), 1e-9)

	w.Remove(3)
	assert.Nil(t, w.Player(3))

	w.NotReady = true
	_, err = w.LivePlayers()
	assert.ErrorIs(t, err, core.ErrNotReady)
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duel.json")
	body := `{
		"map": "de_test",
		"tickInterval": 0.015625,
		"brushes": [{"mins": [100, -500, -500], "maxs": [110, 500, 500]}],
		"players": [
			{"slot": 0, "team": 2, "origin": [0, 0, 0], "yaw": 0},
			{"slot": 1, "team": 3, "bot": true, "origin": [300, 0, 0], "yaw": 180, "weapons": [900]}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "de_test", s.Map)
	assert.Equal(t, 640, s.Ticks)

	w := s.Build()
	require.Len(t, w.Brushes, 1)
	assert.True(t, w.Player(1).Bot)
	assert.Equal(t, []core.EntityHandle{1001, 900}, w.AssociatedEntities(w.Player(1)))
}

func TestSet(t *testing.T) {
	s := NewSet(1, 2, 3)
	assert.True(t, s.Contains(2))
	s.Remove(2)
	assert.False(t, s.Contains(2))
}
