package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

func TestTable_SetGetClear(t *testing.T) {
	var tab Table[int]

	_, ok := tab.Get(1, 2)
	assert.False(t, ok)

	tab.Set(1, 2, 42)
	tab.Set(1, 3, 43)
	v, ok := tab.Get(1, 2)
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, tab.Len())
	assert.Equal(t, 2, tab.Row(1).Len())

	tab.Clear(1, 2)
	assert.Equal(t, 1, tab.Len())
	tab.Clear(1, 2)
	assert.Equal(t, 1, tab.Row(1).Len())

	tab.Clear(1, 3)
	assert.Equal(t, 0, tab.Len(), "empty row deletes itself")
	assert.Nil(t, tab.Row(1))
}

func TestTable_InvalidSlotsIgnored(t *testing.T) {
	var tab Table[bool]
	tab.Set(-1, 2, true)
	tab.Set(1, core.Capacity, true)
	assert.Equal(t, 0, tab.Len())

	_, ok := tab.Get(core.Capacity, 0)
	assert.False(t, ok)
	tab.Clear(500, 1)
	tab.RemoveViewer(500)
	tab.RemoveTarget(-3)
}

func TestTable_RemoveTarget(t *testing.T) {
	var tab Table[int]
	tab.Set(1, 5, 1)
	tab.Set(2, 5, 1)
	tab.Set(2, 6, 1)

	tab.RemoveTarget(5)

	assert.Equal(t, 1, tab.Len())
	assert.Nil(t, tab.Row(1))
	_, ok := tab.Get(2, 6)
	assert.True(t, ok)
}

func TestTable_Retain(t *testing.T) {
	var tab Table[int]
	for viewer := core.Slot(0); viewer < 4; viewer++ {
		tab.Set(viewer, 7, 1)
		tab.Set(viewer, 8, 1)
	}

	tab.RetainViewers(func(s core.Slot) bool { return s%2 == 0 })
	assert.Equal(t, 2, tab.Len())
	assert.NotNil(t, tab.Row(0))
	assert.Nil(t, tab.Row(1))

	tab.RetainTargets(func(s core.Slot) bool { return s != 8 })
	assert.Equal(t, 1, tab.Row(0).Len())

	tab.Reset()
	assert.Equal(t, 0, tab.Len())
}
