// Package slots provides dense viewer-by-target tables indexed by player slot.
package slots

import "github.com/karola3vax/Source2-AntiWallHack/pkg/core"

// Row holds one value per target slot for a single viewer.
type Row[T any] struct {
	known  [core.Capacity]bool
	values [core.Capacity]T
	active int
}

// Get returns the value stored for target.
func (r *Row[T]) Get(target core.Slot) (T, bool) {
	if r == nil || !target.Valid() || !r.known[target] {
		var zero T
		return zero, false
	}
	return r.values[target], true
}

// Len returns the number of known targets.
func (r *Row[T]) Len() int {
	if r == nil {
		return 0
	}
	return r.active
}

func (r *Row[T]) set(target core.Slot, v T) {
	if !r.known[target] {
		r.known[target] = true
		r.active++
	}
	r.values[target] = v
}

func (r *Row[T]) clear(target core.Slot) bool {
	if !r.known[target] {
		return false
	}
	var zero T
	r.known[target] = false
	r.values[target] = zero
	r.active--
	return true
}

// Table maps viewer slots to rows. A row is removed as soon as it holds
// no known target.
type Table[T any] struct {
	rows  [core.Capacity]*Row[T]
	count int
}

// Row returns the row of viewer, or nil.
func (t *Table[T]) Row(viewer core.Slot) *Row[T] {
	if !viewer.Valid() {
		return nil
	}
	return t.rows[viewer]
}

// Get returns the value for a viewer/target pair.
func (t *Table[T]) Get(viewer, target core.Slot) (T, bool) {
	return t.Row(viewer).Get(target)
}

// Set stores the value for a viewer/target pair, creating the row if needed.
func (t *Table[T]) Set(viewer, target core.Slot, v T) {
	if !viewer.Valid() || !target.Valid() {
		return
	}
	row := t.rows[viewer]
	if row == nil {
		row = &Row[T]{}
		t.rows[viewer] = row
		t.count++
	}
	row.set(target, v)
}

// Clear forgets a viewer/target pair and drops the row when it empties.
func (t *Table[T]) Clear(viewer, target core.Slot) {
	row := t.Row(viewer)
	if row == nil || !target.Valid() {
		return
	}
	if row.clear(target) && row.active == 0 {
		t.dropRow(viewer)
	}
}

// RemoveViewer drops the whole row of viewer.
func (t *Table[T]) RemoveViewer(viewer core.Slot) {
	if viewer.Valid() && t.rows[viewer] != nil {
		t.dropRow(viewer)
	}
}

// RemoveTarget forgets target in every row.
func (t *Table[T]) RemoveTarget(target core.Slot) {
	if !target.Valid() || t.count == 0 {
		return
	}
	for viewer, row := range t.rows {
		if row != nil && row.clear(target) && row.active == 0 {
			t.dropRow(core.Slot(viewer))
		}
	}
}

// RetainViewers drops every row whose viewer is not kept.
func (t *Table[T]) RetainViewers(keep func(core.Slot) bool) {
	for viewer, row := range t.rows {
		if row != nil && !keep(core.Slot(viewer)) {
			t.dropRow(core.Slot(viewer))
		}
	}
}

// RetainTargets forgets every target that is not kept.
func (t *Table[T]) RetainTargets(keep func(core.Slot) bool) {
	for target := core.Slot(0); target < core.Capacity; target++ {
		if !keep(target) {
			t.RemoveTarget(target)
		}
	}
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	return t.count
}

// Reset drops every row.
func (t *Table[T]) Reset() {
	t.rows = [core.Capacity]*Row[T]{}
	t.count = 0
}

func (t *Table[T]) dropRow(viewer core.Slot) {
	t.rows[viewer] = nil
	t.count--
}
