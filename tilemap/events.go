package tilemap

import (
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
)

// Trigger is a point-like map event bound to one tile.
type Trigger struct {
	Name string
	// Index is the row-major tile index.
	Index int
	// Key selects the handler in the trigger handler table.
	Key string
}

// Zone is an area-like map event.
type Zone struct {
	Name  string
	Shape geom.Shape
	// Steps is how many steps inside the zone an actor takes between
	// handler calls. Values below 1 mean every step.
	Steps int
	Key   string
}

// SortTriggers restores ascending tile-index order after bulk edits.
func (l *Layer) SortTriggers() {
	slices.SortStableFunc(l.Triggers, func(a, b Trigger) int { return a.Index - b.Index })
}

// AddTrigger places a trigger on a tile, keeping the layer's list sorted.
func (m *Map) AddTrigger(layer int, name string, tx, ty int, key string) error {
	l, err := m.Layer(layer)
	if err != nil {
		return err
	}
	if !m.inside(tx, ty) {
		return fmt.Errorf("%w: trigger %q at (%d,%d)", ErrTileRange, name, tx, ty)
	}
	idx := m.TileIndex(tx, ty)
	at := sort.Search(len(l.Triggers), func(i int) bool { return l.Triggers[i].Index > idx })
	l.Triggers = slices.Insert(l.Triggers, at, Trigger{Name: name, Index: idx, Key: key})
	return nil
}

// AddZone appends a zone to a layer.
func (m *Map) AddZone(layer int, z Zone) error {
	l, err := m.Layer(layer)
	if err != nil {
		return err
	}
	if z.Shape == nil {
		return fmt.Errorf("%w: zone %q has no shape", geom.ErrUnknownShape, z.Name)
	}
	l.Zones = append(l.Zones, z)
	return nil
}

// TriggersIn yields the triggers on tiles (tx0..tx1, ty0..ty1) of a map
// width tiles wide. Triggers must be sorted by Index. The scan starts at
// the first index ≥ the top-left tile and stops at the bottom-right tile;
// the column filter drops entries from the wrapped part of each row.
func (l *Layer) TriggersIn(width, tx0, ty0, tx1, ty1 int) iter.Seq[*Trigger] {
	return func(yield func(*Trigger) bool) {
		lo := ty0*width + tx0
		hi := ty1*width + tx1 + 1
		start := sort.Search(len(l.Triggers), func(i int) bool { return l.Triggers[i].Index >= lo })
		for i := start; i < len(l.Triggers) && l.Triggers[i].Index < hi; i++ {
			col := l.Triggers[i].Index % width
			if col < tx0 || col > tx1 {
				continue
			}
			if !yield(&l.Triggers[i]) {
				return
			}
		}
	}
}
