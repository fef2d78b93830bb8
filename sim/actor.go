package sim

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
	"github.com/rhuanjl/SphereLibs-sub000/spatial"
)

// Script is an actor callback.
type Script func(w *World, self *Actor)

// TouchScript is a callback involving a second actor.
type TouchScript func(w *World, self, other *Actor)

// Callbacks are the user hooks of an actor. Any may be nil.
type Callbacks struct {
	OnSetup   Script
	OnDestroy Script
	OnIdle    Script
	// OnTalk runs on the actor being talked to; other is the talker.
	OnTalk TouchScript
	// OnTouchPlayer runs when the attached actor bumps into self or self
	// bumps into it. OnTouchOther covers every other actor.
	OnTouchPlayer TouchScript
	OnTouchOther  TouchScript
}

// Sprite is the animation metadata a renderer draws from. Delays lists,
// per direction, how many ticks each frame is shown.
type Sprite struct {
	Name   string
	Delays [NumDirections][]int
}

// frames returns the frame delays for a direction.
func (s *Sprite) frames(d Direction) []int {
	if s == nil || !d.Valid() {
		return nil
	}
	return s.Delays[d]
}

// ActorSpec describes an actor to spawn. Shapes are relative to Pos.
type ActorSpec struct {
	Name      string
	Layer     int
	Pos       geom.Vec
	Shapes    []geom.Shape
	Facing    Direction
	Sprite    *Sprite
	Frozen    bool
	Hidden    bool
	Data      any
	Callbacks Callbacks
}

// Actor is a live object in the world. Position, layer and shapes change
// only through queued actions.
type Actor struct {
	ID     int
	Name   string
	Layer  int
	Pos    geom.Vec
	Shapes []geom.Shape // world space
	Facing Direction
	Frame  int
	Sprite *Sprite

	Frozen  bool
	Visible bool
	Data    any

	Callbacks Callbacks

	queue        *Queue
	attached     bool
	inUse        bool
	needsRefresh bool
	extent       float64

	frameTimer int
	stillTicks int

	// trigger tile indexes the actor stands on, and steps taken per zone
	triggers  mapset.Set[int]
	zoneSteps map[int]int
}

func (a *Actor) ref() spatial.Ref { return spatial.Ref(a.ID) }

// Attached reports whether the actor is the player.
func (a *Actor) Attached() bool { return a.attached }

// Active reports whether the actor is still in the world.
func (a *Actor) Active() bool { return a != nil && a.inUse }

// Pending returns the number of queued actions.
func (a *Actor) Pending() int { return a.queue.Len() }

// Queue returns a copy of the queued actions.
func (a *Actor) Queue() []Action { return a.queue.Actions() }

// Extent returns the half-size of the square the index registers the
// actor under.
func (a *Actor) Extent() float64 { return a.extent }

// Bounds returns the union of the actor's shape bounds.
func (a *Actor) Bounds() geom.Rect {
	if len(a.Shapes) == 0 {
		return geom.Rect{X: a.Pos.X(), Y: a.Pos.Y()}
	}
	return geom.BoundsOf(a.Shapes)
}

// NeedsRefresh reports whether the actor changed visually since the last
// TakeRefresh.
func (a *Actor) NeedsRefresh() bool { return a.needsRefresh }

// TakeRefresh returns and clears the refresh flag.
func (a *Actor) TakeRefresh() bool {
	r := a.needsRefresh
	a.needsRefresh = false
	return r
}

// FrameTimer returns ticks spent on the current frame.
func (a *Actor) FrameTimer() int { return a.frameTimer }

func (a *Actor) setFacing(d Direction) {
	if a.Facing != d {
		a.Facing = d
		a.needsRefresh = true
	}
}

// translate moves the actor's position and shapes.
func (a *Actor) translate(d geom.Vec) {
	a.Pos = a.Pos.Add(d)
	for i, s := range a.Shapes {
		a.Shapes[i] = s.Translate(d)
	}
	a.needsRefresh = true
}

// advanceFrame runs one tick of walk animation.
func (a *Actor) advanceFrame() {
	a.stillTicks = 0
	a.frameTimer++
	delays := a.Sprite.frames(a.Facing)
	if len(delays) == 0 {
		return
	}
	if a.frameTimer >= max(delays[a.Frame%len(delays)], 1) {
		a.frameTimer = 0
		a.Frame = (a.Frame + 1) % len(delays)
		a.needsRefresh = true
	}
}

// advanceReset counts ticks standing still and returns to frame 0 after
// limit of them.
func (a *Actor) advanceReset(limit int) {
	if limit <= 0 || (a.Frame == 0 && a.frameTimer == 0) {
		return
	}
	a.stillTicks++
	if a.stillTicks >= limit {
		a.stillTicks = 0
		a.frameTimer = 0
		if a.Frame != 0 {
			a.Frame = 0
			a.needsRefresh = true
		}
	}
}

// resetEvents forgets which triggers and zones a is standing in, so the
// next step after a teleport counts as an entry.
func (a *Actor) resetEvents() {
	a.triggers.Clear()
	clear(a.zoneSteps)
}
