// Package tilemap holds the static geometry of a map as the simulation sees
// it: per-layer tile grids, per-tile obstruction shapes, triggers and zones.
// Loading it from files is somebody else's job.
package tilemap

import (
	"errors"
	"fmt"
	"math"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
)

var (
	ErrMapSize    = errors.New("tilemap: map and tile dimensions must be positive")
	ErrLayerRange = errors.New("tilemap: layer out of range")
	ErrTileRange  = errors.New("tilemap: tile out of range")
)

// Edge identifies a side of the map. The numeric values are the codes map
// scripts expect.
type Edge int

const (
	EdgeNone  Edge = -1
	EdgeWest  Edge = 0
	EdgeEast  Edge = 1
	EdgeNorth Edge = 2
	EdgeSouth Edge = 3
)

func (e Edge) String() string {
	switch e {
	case EdgeWest:
		return "west"
	case EdgeEast:
		return "east"
	case EdgeNorth:
		return "north"
	case EdgeSouth:
		return "south"
	}
	return "none"
}

// Layer is one plane of the map.
type Layer struct {
	Name string
	// Tiles is row-major, one tileset id per tile, -1 for empty.
	// A nil grid disables tile obstruction on the layer.
	Tiles    []int
	Triggers []Trigger
	Zones    []Zone
}

// Map is the static geometry shared by every actor.
type Map struct {
	Width, Height int // in tiles
	TileW, TileH  float64

	// Obstructions holds tile-local blocking shapes, indexed by tileset id.
	Obstructions [][]geom.Shape
	Layers       []*Layer

	edge Edge
}

// New creates an empty map with the given number of layers, each with an
// empty tile grid.
func New(width, height int, tileW, tileH float64, layers int) (*Map, error) {
	if width <= 0 || height <= 0 || tileW <= 0 || tileH <= 0 || layers <= 0 {
		return nil, fmt.Errorf("%w: %dx%d tiles of %vx%v, %d layers", ErrMapSize, width, height, tileW, tileH, layers)
	}
	m := &Map{
		Width:  width,
		Height: height,
		TileW:  tileW,
		TileH:  tileH,
		Layers: make([]*Layer, layers),
		edge:   EdgeNone,
	}
	for i := range m.Layers {
		tiles := make([]int, width*height)
		for j := range tiles {
			tiles[j] = -1
		}
		m.Layers[i] = &Layer{Name: fmt.Sprintf("layer %d", i), Tiles: tiles}
	}
	return m, nil
}

// Layer returns layer i.
func (m *Map) Layer(i int) (*Layer, error) {
	if i < 0 || i >= len(m.Layers) {
		return nil, fmt.Errorf("%w: %d", ErrLayerRange, i)
	}
	return m.Layers[i], nil
}

// PixelSize returns the map size in world units.
func (m *Map) PixelSize() (float64, float64) {
	return float64(m.Width) * m.TileW, float64(m.Height) * m.TileH
}

// TileIndex returns the row-major index of a tile.
func (m *Map) TileIndex(tx, ty int) int { return ty*m.Width + tx }

// TileOrigin returns the world position of a tile's top-left corner.
func (m *Map) TileOrigin(tx, ty int) geom.Vec {
	return geom.V(float64(tx)*m.TileW, float64(ty)*m.TileH)
}

// TileRect returns the world box covering tiles (tx0,ty0) through (tx1,ty1).
func (m *Map) TileRect(tx0, ty0, tx1, ty1 int) geom.Rect {
	return geom.Rect{
		X: float64(tx0) * m.TileW,
		Y: float64(ty0) * m.TileH,
		W: float64(tx1-tx0+1) * m.TileW,
		H: float64(ty1-ty0+1) * m.TileH,
	}
}

func (m *Map) inside(tx, ty int) bool {
	return tx >= 0 && tx < m.Width && ty >= 0 && ty < m.Height
}

// SetTile places a tileset id on a layer.
func (m *Map) SetTile(layer, tx, ty, id int) error {
	l, err := m.Layer(layer)
	if err != nil {
		return err
	}
	if !m.inside(tx, ty) {
		return fmt.Errorf("%w: (%d,%d)", ErrTileRange, tx, ty)
	}
	if l.Tiles == nil {
		l.Tiles = make([]int, m.Width*m.Height)
		for i := range l.Tiles {
			l.Tiles[i] = -1
		}
	}
	l.Tiles[m.TileIndex(tx, ty)] = id
	return nil
}

// TileAt returns the tileset id at a tile, or -1.
func (m *Map) TileAt(layer, tx, ty int) int {
	if layer < 0 || layer >= len(m.Layers) || !m.inside(tx, ty) {
		return -1
	}
	l := m.Layers[layer]
	if l.Tiles == nil {
		return -1
	}
	return l.Tiles[m.TileIndex(tx, ty)]
}

// SetObstruction defines the tile-local blocking shapes of a tileset id.
func (m *Map) SetObstruction(id int, shapes ...geom.Shape) {
	if id < 0 {
		return
	}
	for len(m.Obstructions) <= id {
		m.Obstructions = append(m.Obstructions, nil)
	}
	m.Obstructions[id] = shapes
}

// ObstructionsOf returns the blocking shapes of a tileset id.
func (m *Map) ObstructionsOf(id int) []geom.Shape {
	if id < 0 || id >= len(m.Obstructions) {
		return nil
	}
	return m.Obstructions[id]
}

// HasObstructions reports whether any tileset id blocks movement.
func (m *Map) HasObstructions() bool {
	for _, s := range m.Obstructions {
		if len(s) > 0 {
			return true
		}
	}
	return false
}

// TileRange converts a world box to the tiles it covers, clamped to the map.
// A box ending exactly on a tile boundary does not cover the next tile, so
// an actor flush against a wall can slide along it. Sprites differ: two
// boxes with touching edges collide (geom.Rect.Intersects).
// ok is false when the box lies entirely outside the map.
func (m *Map) TileRange(box geom.Rect) (tx0, ty0, tx1, ty1 int, ok bool) {
	tx0 = int(math.Floor(box.X / m.TileW))
	ty0 = int(math.Floor(box.Y / m.TileH))
	tx1 = max(int(math.Ceil(box.Right()/m.TileW))-1, tx0)
	ty1 = max(int(math.Ceil(box.Bottom()/m.TileH))-1, ty0)
	if tx1 < 0 || ty1 < 0 || tx0 >= m.Width || ty0 >= m.Height {
		return 0, 0, 0, 0, false
	}
	return max(tx0, 0), max(ty0, 0), min(tx1, m.Width-1), min(ty1, m.Height-1), true
}

// CrossedEdge returns the first map edge the box extends past, checked in
// west, east, north, south order.
func (m *Map) CrossedEdge(box geom.Rect) Edge {
	w, h := m.PixelSize()
	switch {
	case box.X < 0:
		return EdgeWest
	case box.Right() > w:
		return EdgeEast
	case box.Y < 0:
		return EdgeNorth
	case box.Bottom() > h:
		return EdgeSouth
	}
	return EdgeNone
}

// SetEdge records the edge the attached actor last pushed against. The
// collision query writes it as a side effect; map scripts poll it.
func (m *Map) SetEdge(e Edge) { m.edge = e }

// Edge returns the last recorded edge, or EdgeNone.
func (m *Map) Edge() Edge { return m.edge }

// ClearEdge resets the recorded edge.
func (m *Map) ClearEdge() { m.edge = EdgeNone }
