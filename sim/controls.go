package sim

import (
	"github.com/rhuanjl/SphereLibs-sub000/input"
)

// DefaultControls maps arrow keys and WASD to directions.
var DefaultControls = map[input.Key]Direction{
	input.KeyUp:     North,
	input.KeyDown:   South,
	input.KeyLeft:   West,
	input.KeyRight:  East,
	input.Rune('w'): North,
	input.Rune('s'): South,
	input.Rune('a'): West,
	input.Rune('d'): East,
}

// BindControls binds the keys in controls to one-step moves of the
// attached actor, and talkKey to Talk. Movement keys repeat while held;
// a step is only queued when the attached actor has nothing pending.
func (w *World) BindControls(controls map[input.Key]Direction, talkKey input.Key) error {
	for k, dir := range controls {
		if err := w.bindings.Bind(k, true, func() {
			a := w.attached
			if a == nil || a.Pending() > 0 {
				return
			}
			if err := w.Enqueue(a, Move{Dir: dir, Ticks: 1}); err != nil {
				w.log.WithError(err).Debug("move key ignored")
			}
		}); err != nil {
			return err
		}
	}
	return w.bindings.Bind(talkKey, false, func() {
		if a := w.attached; a != nil {
			w.Talk(a)
		}
	})
}
