package sim

import "fmt"

// Action is one entry of an actor's queue. The set of actions is closed.
type Action interface {
	action()
}

// Move steps the actor one Config.Steps[Dir] per tick. Ticks <= 0 repeats
// until the queue is cleared.
type Move struct {
	Dir   Direction
	Ticks int
}

// Animate plays the walk animation facing Dir without moving.
type Animate struct {
	Dir   Direction
	Ticks int
}

// RunScript calls Fn once per tick.
type RunScript struct {
	Fn    func(w *World, a *Actor)
	Ticks int
}

// Face turns the actor. It takes no time.
type Face struct{ Dir Direction }

// TeleportX sets the x coordinate. It takes no time.
type TeleportX struct{ X float64 }

// TeleportY sets the y coordinate. It takes no time.
type TeleportY struct{ Y float64 }

// TeleportLayer moves the actor to another layer. It takes no time.
type TeleportLayer struct{ Layer int }

// Destroy removes the actor from the world.
type Destroy struct{}

// setup runs OnSetup. Spawn seeds every queue with one.
type setup struct{}

func (Move) action()          {}
func (Animate) action()       {}
func (RunScript) action()     {}
func (Face) action()          {}
func (TeleportX) action()     {}
func (TeleportY) action()     {}
func (TeleportLayer) action() {}
func (Destroy) action()       {}
func (setup) action()         {}

// ticks returns how many ticks an action lasts. Zero means it is free,
// negative means it repeats until cleared.
func ticks(act Action) int {
	var n int
	switch a := act.(type) {
	case Move:
		n = a.Ticks
	case Animate:
		n = a.Ticks
	case RunScript:
		n = a.Ticks
	default:
		return 0
	}
	if n <= 0 {
		return -1
	}
	return n
}

func describe(act Action) string {
	switch a := act.(type) {
	case Move:
		return fmt.Sprintf("move %v x%d", a.Dir, a.Ticks)
	case Animate:
		return fmt.Sprintf("animate %v x%d", a.Dir, a.Ticks)
	case RunScript:
		return fmt.Sprintf("script x%d", a.Ticks)
	case Face:
		return fmt.Sprintf("face %v", a.Dir)
	case TeleportX:
		return fmt.Sprintf("teleport x=%v", a.X)
	case TeleportY:
		return fmt.Sprintf("teleport y=%v", a.Y)
	case TeleportLayer:
		return fmt.Sprintf("teleport layer=%d", a.Layer)
	case Destroy:
		return "destroy"
	case setup:
		return "setup"
	}
	return fmt.Sprintf("%T", act)
}
