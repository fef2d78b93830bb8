package geom

import (
	"errors"
	"math/rand"
	"testing"
)

func TestCheckCircles(t *testing.T) {
	// Overlapping circles
	if !CheckCircles(0, 0, 10, 15, 0, 10) {
		t.Error("circles should collide (overlapping)")
	}

	// Touching circles
	if !CheckCircles(0, 0, 10, 20, 0, 10) {
		t.Error("circles should collide (touching)")
	}

	// Non-overlapping circles
	if CheckCircles(0, 0, 10, 25, 0, 10) {
		t.Error("circles should not collide")
	}

	// Same position
	if !CheckCircles(5, 5, 1, 5, 5, 1) {
		t.Error("same position should collide")
	}
}

func TestCircleCircleMatchesDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		a := Circle{X: rng.Float64()*200 - 100, Y: rng.Float64()*200 - 100, Radius: rng.Float64() * 30}
		b := Circle{X: rng.Float64()*200 - 100, Y: rng.Float64()*200 - 100, Radius: rng.Float64() * 30}
		off := V(rng.Float64()*20-10, rng.Float64()*20-10)

		dx := (a.X + off.X()) - b.X
		dy := (a.Y + off.Y()) - b.Y
		want := dx*dx+dy*dy <= (a.Radius+b.Radius)*(a.Radius+b.Radius)
		if got := Overlap(off, a, b); got != want {
			t.Fatalf("case %d: Overlap(%v, %+v, %+v) = %v, want %v", i, off, a, b, got, want)
		}
	}
}

func TestRectRectSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	zero := V(0, 0)
	for i := 0; i < 2000; i++ {
		a := Rect{X: float64(rng.Intn(40)), Y: float64(rng.Intn(40)), W: float64(rng.Intn(12)), H: float64(rng.Intn(12))}
		b := Rect{X: float64(rng.Intn(40)), Y: float64(rng.Intn(40)), W: float64(rng.Intn(12)), H: float64(rng.Intn(12))}
		if Overlap(zero, a, b) != Overlap(zero, b, a) {
			t.Fatalf("asymmetric result for %+v and %+v", a, b)
		}
	}
}

func TestRectEdgeTouchCollides(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 4, H: 4}
	b := Rect{X: 4, Y: 0, W: 4, H: 4}
	if !Overlap(V(0, 0), a, b) {
		t.Error("touching rectangles should collide")
	}
	if Overlap(V(-0.5, 0), a, b) {
		t.Error("separated rectangles should not collide")
	}
	if !Overlap(V(1, 0), a, b) {
		t.Error("offset should move the subject into the target")
	}
}

func TestCircleRect(t *testing.T) {
	rect := Rect{X: 0, Y: 0, W: 10, H: 10}
	cases := []struct {
		name string
		c    Circle
		want bool
	}{
		{"centre inside", Circle{X: 5, Y: 5, Radius: 1}, true},
		{"side overlap", Circle{X: 12, Y: 5, Radius: 3}, true},
		{"side miss", Circle{X: 14, Y: 5, Radius: 3}, false},
		{"corner hit", Circle{X: 12, Y: 12, Radius: 3}, true},
		{"corner miss", Circle{X: 13, Y: 13, Radius: 3}, false},
	}
	for _, tc := range cases {
		if got := Overlap(V(0, 0), tc.c, rect); got != tc.want {
			t.Errorf("%s: circle-rect = %v, want %v", tc.name, got, tc.want)
		}
		if got := Overlap(V(0, 0), rect, tc.c); got != tc.want {
			t.Errorf("%s: rect-circle = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOverlapNilPanics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrUnsupportedPair) {
			t.Errorf("expected ErrUnsupportedPair panic, got %v", r)
		}
	}()
	Overlap(V(0, 0), Rect{W: 1, H: 1}, nil)
}

func TestNewShape(t *testing.T) {
	s, err := NewShape(KindCircle, 1, 2, 3, 0)
	if err != nil {
		t.Fatalf("circle: %v", err)
	}
	if c, ok := s.(Circle); !ok || c.Radius != 3 {
		t.Errorf("expected circle radius 3, got %#v", s)
	}

	if _, err := NewShape("polygon", 0, 0, 1, 1); !errors.Is(err, ErrUnknownShape) {
		t.Errorf("expected ErrUnknownShape, got %v", err)
	}
	if _, err := NewShape(KindRect, 0, 0, -1, 1); !errors.Is(err, ErrBadDimensions) {
		t.Errorf("expected ErrBadDimensions, got %v", err)
	}
}

func TestExtentCoversShapes(t *testing.T) {
	p := V(10, 10)
	shapes := []Shape{Rect{X: 10, Y: 10, W: 4, H: 2}, Circle{X: 9, Y: 10, Radius: 3}}
	ext := Extent(p, shapes)
	box := Rect{X: p.X() - ext, Y: p.Y() - ext, W: 2 * ext, H: 2 * ext}
	all := BoundsOf(shapes)
	if all.X < box.X || all.Y < box.Y || all.Right() > box.Right() || all.Bottom() > box.Bottom() {
		t.Errorf("extent box %+v does not cover %+v", box, all)
	}
}
