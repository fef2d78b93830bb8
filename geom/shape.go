// Package geom holds the collision shapes and the closed-form overlap tests
// used by the narrow phase.
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownShape    = errors.New("geom: unknown shape kind")
	ErrBadDimensions   = errors.New("geom: negative shape dimensions")
	ErrUnsupportedPair = errors.New("geom: unsupported shape pair")
)

// Vec is a world-space point or displacement.
type Vec = mgl64.Vec2

// V builds a Vec.
func V(x, y float64) Vec { return Vec{x, y} }

// Shape is either a Circle or a Rect. The set is closed: nothing outside
// this package can add a variant.
type Shape interface {
	// Bounds returns the axis-aligned bounding box.
	Bounds() Rect
	// Translate returns a copy moved by d.
	Translate(d Vec) Shape

	shape()
}

// Circle is centred on (X, Y).
type Circle struct {
	X, Y   float64
	Radius float64
}

// Rect is anchored at its top-left corner.
type Rect struct {
	X, Y float64
	W, H float64
}

func (Circle) shape() {}
func (Rect) shape()   {}

func (c Circle) Bounds() Rect {
	return Rect{X: c.X - c.Radius, Y: c.Y - c.Radius, W: 2 * c.Radius, H: 2 * c.Radius}
}

func (c Circle) Translate(d Vec) Shape {
	c.X += d.X()
	c.Y += d.Y()
	return c
}

func (r Rect) Bounds() Rect { return r }

func (r Rect) Translate(d Vec) Shape {
	r.X += d.X()
	r.Y += d.Y()
	return r
}

// Right returns the x-coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y-coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Center returns the centre point.
func (r Rect) Center() (float64, float64) { return r.X + r.W/2, r.Y + r.H/2 }

// Intersects reports whether two boxes overlap; touching edges count.
// Tile coverage (tilemap.Map.TileRange) is half-open instead.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.Right() && o.X <= r.Right() && r.Y <= o.Bottom() && o.Y <= r.Bottom()
}

// Offset returns r moved by d.
func (r Rect) Offset(d Vec) Rect {
	r.X += d.X()
	r.Y += d.Y()
	return r
}

// Union returns the smallest box containing both.
func (r Rect) Union(o Rect) Rect {
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.Right(), o.Right())
	y1 := math.Max(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Kind names a shape variant in authoring data (map scripts, actor specs).
type Kind string

const (
	KindCircle Kind = "circle"
	KindRect   Kind = "rect"
)

// NewShape builds a shape from authoring data. For circles a is the radius
// and b is ignored; for rectangles a and b are width and height.
func NewShape(kind Kind, x, y, a, b float64) (Shape, error) {
	switch kind {
	case KindCircle:
		if a < 0 {
			return nil, fmt.Errorf("%w: radius %v", ErrBadDimensions, a)
		}
		return Circle{X: x, Y: y, Radius: a}, nil
	case KindRect:
		if a < 0 || b < 0 {
			return nil, fmt.Errorf("%w: %vx%v", ErrBadDimensions, a, b)
		}
		return Rect{X: x, Y: y, W: a, H: b}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownShape, kind)
}

// Extent returns the largest distance from p to any edge of the shapes'
// bounding boxes. A square of half-size Extent centred on p covers them all.
func Extent(p Vec, shapes []Shape) float64 {
	var ext float64
	for _, s := range shapes {
		b := s.Bounds()
		ext = math.Max(ext, math.Max(
			math.Max(math.Abs(p.X()-b.X), math.Abs(b.Right()-p.X())),
			math.Max(math.Abs(p.Y()-b.Y), math.Abs(b.Bottom()-p.Y())),
		))
	}
	return ext
}

// BoundsOf returns the union of the shapes' bounding boxes.
func BoundsOf(shapes []Shape) Rect {
	if len(shapes) == 0 {
		return Rect{}
	}
	out := shapes[0].Bounds()
	for _, s := range shapes[1:] {
		out = out.Union(s.Bounds())
	}
	return out
}
