package sim

import (
	"cmp"
	"slices"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
)

// Tick advances the world by one step: key bindings are polled, tasks
// resumed, every actor processed in registration order, and the render
// lists re-sorted by y. It returns true when no actor has pending actions.
func (w *World) Tick() bool {
	w.stats.Ticks++
	w.bindings.Poll(w.keys)
	w.tasks.Tick()

	idle := true
	// Actors spawned during the tick wait for the next one.
	for _, a := range w.actors[:len(w.actors)] {
		if !a.inUse {
			continue
		}
		if !w.process(a) {
			idle = false
		}
	}

	for _, list := range w.render {
		slices.SortStableFunc(list, func(a, b *Actor) int {
			return cmp.Compare(a.Pos.Y(), b.Pos.Y())
		})
	}
	return idle
}

// process runs one tick of a. Free actions at the head of the queue run
// back to back until one that takes time. Returns whether a ended the tick
// with an empty queue.
func (w *World) process(a *Actor) bool {
	if a.Frozen {
		a.advanceReset(w.cfg.AnimResetTicks)
		return a.queue.Len() == 0
	}
	if a.queue.Len() == 0 {
		a.advanceReset(w.cfg.AnimResetTicks)
		if fn := a.Callbacks.OnIdle; fn != nil {
			fn(w, a)
		}
		return !a.inUse || a.queue.Len() == 0
	}

	for a.inUse {
		act, ok := a.queue.Peek()
		if !ok {
			return true
		}
		switch v := act.(type) {
		case setup:
			a.queue.Pop()
			if fn := a.Callbacks.OnSetup; fn != nil {
				fn(w, a)
			}
		case Face:
			a.queue.Pop()
			a.setFacing(v.Dir)
		case TeleportX:
			a.queue.Pop()
			w.teleport(a, geom.V(v.X, a.Pos.Y()), a.Layer)
		case TeleportY:
			a.queue.Pop()
			w.teleport(a, geom.V(a.Pos.X(), v.Y), a.Layer)
		case TeleportLayer:
			a.queue.Pop()
			w.teleport(a, a.Pos, v.Layer)
		case Destroy:
			w.destroy(a)
			return true
		case Animate:
			a.setFacing(v.Dir)
			a.advanceFrame()
			a.queue.consume()
			return false
		case Move:
			a.setFacing(v.Dir)
			a.advanceFrame()
			a.queue.consume()
			w.step(a, v.Dir)
			return false
		case RunScript:
			a.queue.consume()
			v.Fn(w, a)
			return false
		default:
			a.queue.Pop()
			w.log.WithField("action", describe(act)).Error("dropping unknown action")
		}
	}
	return true
}

// step tries to move a one step in dir.
func (w *World) step(a *Actor, dir Direction) {
	delta := w.cfg.Steps[dir]
	w.buf = w.Collide(w.buf[:0], a, a.Layer, a.Pos, delta, a.Shapes)
	hits := w.buf

	blocked := false
	for _, c := range hits {
		if c.Blocks() {
			blocked = true
			break
		}
	}
	if blocked {
		w.stats.Blocked++
		for i, c := range hits {
			if c.Kind != HitSprite || touchedBefore(hits[:i], c.Actor) {
				continue
			}
			touch(w, a, c.Actor)
			touch(w, c.Actor, a)
		}
		w.fireEvents(a, hits)
		return
	}

	before := a.Pos
	if err := w.ix.UpdateMembership(a.ref(), before, delta, a.extent, a.Layer, a.Layer); err != nil {
		panic(err)
	}
	a.translate(delta)
	w.stats.Moves++
	w.fireEvents(a, hits)
}

func touchedBefore(hits []Collision, other *Actor) bool {
	for _, c := range hits {
		if c.Kind == HitSprite && c.Actor == other {
			return true
		}
	}
	return false
}

// touch runs self's touch callback for a bump with other.
func touch(w *World, self, other *Actor) {
	if !self.inUse {
		return
	}
	fn := self.Callbacks.OnTouchOther
	if other.attached {
		fn = self.Callbacks.OnTouchPlayer
	}
	if fn != nil {
		fn(w, self, other)
	}
}

// fireEvents runs trigger and zone handlers for a step attempt, applied or
// blocked. Triggers fire when the actor steps onto them; zones every Steps
// steps taken inside. A blocked attempt counts as a step.
func (w *World) fireEvents(a *Actor, hits []Collision) {
	var on []int
	var due []Collision
	inZone := map[int]bool{}
	for _, c := range hits {
		switch c.Kind {
		case HitTrigger:
			idx := c.Trigger.Index
			if slices.Contains(on, idx) {
				continue
			}
			on = append(on, idx)
			if !a.triggers.Has(idx) {
				due = append(due, c)
			}
		case HitZone:
			if inZone[c.ZoneIndex] {
				continue
			}
			inZone[c.ZoneIndex] = true
			a.zoneSteps[c.ZoneIndex]++
			if a.zoneSteps[c.ZoneIndex] >= max(c.Zone.Steps, 1) {
				a.zoneSteps[c.ZoneIndex] = 0
				due = append(due, c)
			}
		}
	}

	a.triggers.Clear()
	for _, idx := range on {
		a.triggers.Put(idx)
	}
	for z := range a.zoneSteps {
		if !inZone[z] {
			delete(a.zoneSteps, z)
		}
	}

	for _, c := range due {
		if !a.inUse {
			return
		}
		fn := c.Handler.OnOther
		if a.attached {
			fn = c.Handler.OnPlayer
		}
		if fn != nil {
			fn(w, a)
		}
	}
}
