// Package spatial is the broad phase: a per-layer grid of cells mapping
// positions to candidate refs.
//
// Objects are registered by the square around their position whose half-size
// is their largest shape extent, widened by one cell of margin. That box is
// looser than the real shapes; callers always confirm candidates with a
// narrow-phase test. In exchange a move only touches the cells entering or
// leaving the box.
package spatial

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
)

var (
	ErrSegmentSize = errors.New("spatial: segment size must be positive")
	ErrGridSize    = errors.New("spatial: grid dimensions must be positive")
	ErrLayerRange  = errors.New("spatial: layer out of range")
)

// Range is an inclusive block of cells on one layer.
type Range struct {
	Layer  int
	X0, Y0 int
	X1, Y1 int
}

// Contains reports whether cell (cx, cy) lies inside the range.
func (r Range) Contains(cx, cy int) bool {
	return cx >= r.X0 && cx <= r.X1 && cy >= r.Y0 && cy <= r.Y1
}

// Index is a dense grid per layer: index = cy*cols + cx.
type Index struct {
	segment float64
	cols    int
	rows    int
	layers  [][]Cell
	spills  int
	log     logrus.FieldLogger
}

// NewIndex creates an index covering cols*rows cells of size segment on each layer.
func NewIndex(segment float64, layers, cols, rows int, log logrus.FieldLogger) (*Index, error) {
	if segment <= 0 || math.IsNaN(segment) {
		return nil, fmt.Errorf("%w: %v", ErrSegmentSize, segment)
	}
	if layers <= 0 || cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: %d layers of %dx%d", ErrGridSize, layers, cols, rows)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ix := &Index{
		segment: segment,
		cols:    cols,
		rows:    rows,
		layers:  make([][]Cell, layers),
		log:     log.WithField("component", "spatial"),
	}
	for i := range ix.layers {
		ix.layers[i] = make([]Cell, cols*rows)
	}
	return ix, nil
}

// Segment returns the cell size.
func (ix *Index) Segment() float64 { return ix.segment }

// Layers returns the number of layers.
func (ix *Index) Layers() int { return len(ix.layers) }

// Size returns the grid dimensions in cells.
func (ix *Index) Size() (cols, rows int) { return ix.cols, ix.rows }

// Spills returns how many pushes overflowed a cell's inline capacity.
func (ix *Index) Spills() int { return ix.spills }

// CellOf converts a world coordinate to a cell coordinate.
func (ix *Index) CellOf(v float64) int {
	return int(math.Floor(v / ix.segment))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Cover returns the cells overlapping box, widened by margin cells and
// clamped to the grid.
func (ix *Index) Cover(layer int, box geom.Rect, margin int) Range {
	return Range{
		Layer: layer,
		X0:    clampInt(ix.CellOf(box.X)-margin, 0, ix.cols-1),
		Y0:    clampInt(ix.CellOf(box.Y)-margin, 0, ix.rows-1),
		X1:    clampInt(ix.CellOf(box.Right())+margin, 0, ix.cols-1),
		Y1:    clampInt(ix.CellOf(box.Bottom())+margin, 0, ix.rows-1),
	}
}

// Span returns the membership range of an object at pos with the given extent.
func (ix *Index) Span(layer int, pos geom.Vec, extent float64) Range {
	box := geom.Rect{X: pos.X() - extent, Y: pos.Y() - extent, W: 2 * extent, H: 2 * extent}
	return ix.Cover(layer, box, 1)
}

func (ix *Index) cell(layer, cx, cy int) *Cell {
	if layer < 0 || layer >= len(ix.layers) || cx < 0 || cx >= ix.cols || cy < 0 || cy >= ix.rows {
		return nil
	}
	return &ix.layers[layer][cy*ix.cols+cx]
}

// Push adds ref to a cell. Returns false if the cell is outside the grid.
func (ix *Index) Push(layer, cx, cy int, ref Ref) bool {
	c := ix.cell(layer, cx, cy)
	if c == nil {
		return false
	}
	if c.add(ref) {
		ix.spills++
		ix.log.WithFields(logrus.Fields{
			"layer": layer, "cx": cx, "cy": cy, "members": c.Len(),
		}).Warn("cell over inline capacity, spilling")
	}
	return true
}

// Pop removes ref from a cell. Returns false if it was not there.
func (ix *Index) Pop(layer, cx, cy int, ref Ref) bool {
	c := ix.cell(layer, cx, cy)
	if c == nil {
		return false
	}
	return c.remove(ref)
}

// Members returns a copy of the refs in one cell.
func (ix *Index) Members(layer, cx, cy int) []Ref {
	c := ix.cell(layer, cx, cy)
	if c == nil {
		return nil
	}
	out := make([]Ref, 0, c.Len())
	c.each(func(r Ref) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Contains reports whether ref is registered in a cell.
func (ix *Index) Contains(layer, cx, cy int, ref Ref) bool {
	c := ix.cell(layer, cx, cy)
	return c != nil && c.Has(ref)
}

// Query yields every ref registered in the range. A ref spanning several
// cells is yielded once per cell; callers de-duplicate.
func (ix *Index) Query(rng Range) iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		if rng.Layer < 0 || rng.Layer >= len(ix.layers) {
			return
		}
		cells := ix.layers[rng.Layer]
		x0, x1 := max(rng.X0, 0), min(rng.X1, ix.cols-1)
		y0, y1 := max(rng.Y0, 0), min(rng.Y1, ix.rows-1)
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				if !cells[cy*ix.cols+cx].each(yield) {
					return
				}
			}
		}
	}
}

func (ix *Index) pushRange(ref Ref, rng Range) {
	for cy := rng.Y0; cy <= rng.Y1; cy++ {
		for cx := rng.X0; cx <= rng.X1; cx++ {
			ix.Push(rng.Layer, cx, cy, ref)
		}
	}
}

func (ix *Index) popRange(ref Ref, rng Range) {
	for cy := rng.Y0; cy <= rng.Y1; cy++ {
		for cx := rng.X0; cx <= rng.X1; cx++ {
			ix.Pop(rng.Layer, cx, cy, ref)
		}
	}
}

// Insert registers ref in its whole membership range.
func (ix *Index) Insert(ref Ref, layer int, pos geom.Vec, extent float64) error {
	if layer < 0 || layer >= len(ix.layers) {
		return fmt.Errorf("%w: %d", ErrLayerRange, layer)
	}
	ix.pushRange(ref, ix.Span(layer, pos, extent))
	return nil
}

// Remove unregisters ref from its whole membership range.
func (ix *Index) Remove(ref Ref, layer int, pos geom.Vec, extent float64) {
	if layer < 0 || layer >= len(ix.layers) {
		return
	}
	ix.popRange(ref, ix.Span(layer, pos, extent))
}

// UpdateMembership moves ref from its range at pos on layerBefore to its
// range at pos+delta on layerAfter, touching only the cells that differ.
func (ix *Index) UpdateMembership(ref Ref, pos, delta geom.Vec, extent float64, layerBefore, layerAfter int) error {
	if layerAfter < 0 || layerAfter >= len(ix.layers) {
		return fmt.Errorf("%w: %d", ErrLayerRange, layerAfter)
	}
	before := ix.Span(layerBefore, pos, extent)
	after := ix.Span(layerAfter, pos.Add(delta), extent)

	if layerBefore != layerAfter {
		ix.Remove(ref, layerBefore, pos, extent)
		ix.pushRange(ref, after)
		return nil
	}

	for cy := before.Y0; cy <= before.Y1; cy++ {
		for cx := before.X0; cx <= before.X1; cx++ {
			if !after.Contains(cx, cy) {
				ix.Pop(layerBefore, cx, cy, ref)
			}
		}
	}
	for cy := after.Y0; cy <= after.Y1; cy++ {
		for cx := after.X0; cx <= after.X1; cx++ {
			if !before.Contains(cx, cy) {
				ix.Push(layerAfter, cx, cy, ref)
			}
		}
	}
	return nil
}

// Clear removes every ref from every layer.
func (ix *Index) Clear() {
	for _, cells := range ix.layers {
		for i := range cells {
			cells[i].clear()
		}
	}
}
