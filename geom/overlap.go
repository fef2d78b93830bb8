package geom

import (
	"fmt"
	"math"
)

// CheckCircles checks if two circles overlap; touching counts.
func CheckCircles(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	dist2 := dx*dx + dy*dy
	radSum := r1 + r2
	return dist2 <= radSum*radSum
}

// CheckCircleRect checks a circle against an axis-aligned rectangle.
func CheckCircleRect(cx, cy, r float64, rect Rect) bool {
	hw := rect.W / 2
	hh := rect.H / 2
	rcx, rcy := rect.Center()
	dx := math.Abs(cx - rcx)
	dy := math.Abs(cy - rcy)

	if dx > hw+r || dy > hh+r {
		return false
	}
	if dx <= hw || dy <= hh {
		return true
	}

	// Nearest point is a corner
	cdx := dx - hw
	cdy := dy - hh
	return cdx*cdx+cdy*cdy <= r*r
}

// Overlap reports whether subject, translated by offset, overlaps target.
// It panics on a pairing it cannot test, which only a nil shape can cause.
func Overlap(offset Vec, subject, target Shape) bool {
	switch s := subject.(type) {
	case Circle:
		x, y := s.X+offset.X(), s.Y+offset.Y()
		switch t := target.(type) {
		case Circle:
			return CheckCircles(x, y, s.Radius, t.X, t.Y, t.Radius)
		case Rect:
			return CheckCircleRect(x, y, s.Radius, t)
		}
	case Rect:
		moved := s.Offset(offset)
		switch t := target.(type) {
		case Circle:
			return CheckCircleRect(t.X, t.Y, t.Radius, moved)
		case Rect:
			return moved.Intersects(t)
		}
	}
	panic(fmt.Errorf("%w: %T vs %T", ErrUnsupportedPair, subject, target))
}
