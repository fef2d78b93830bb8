// Package sim is the world simulation: actors with action queues, the
// collision query, and the tick that drives them.
//
// A World is single-threaded. One goroutine (a session loop, a terminal
// front-end or a test) owns it and calls Tick; user callbacks run inside
// the tick and may enqueue further actions.
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
)

var (
	ErrUnsupportedMode = errors.New("sim: unsupported collision mode")
	ErrInactiveActor   = errors.New("sim: actor is not active")
	ErrBadDirection    = errors.New("sim: invalid direction")
	ErrBadAction       = errors.New("sim: invalid action")
	ErrQueueConfig     = errors.New("sim: queue capacity must be positive")
	ErrBadConfig       = errors.New("sim: invalid config")
)

// Direction is one of the eight compass directions.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest

	NumDirections = 8
)

var directionNames = [NumDirections]string{
	"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest",
}

// Valid reports whether d names a direction.
func (d Direction) Valid() bool { return d >= 0 && d < NumDirections }

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// ParseDirection maps a direction name to its value.
func ParseDirection(name string) (Direction, error) {
	for i, n := range directionNames {
		if n == name {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadDirection, name)
}

// Mode selects how candidate shapes are compared.
type Mode int

const (
	// ModeNarrow runs the exact shape test.
	ModeNarrow Mode = iota
	// ModeBounds treats bounding-box overlap as a hit.
	ModeBounds
)

func (m Mode) String() string {
	switch m {
	case ModeNarrow:
		return "narrow"
	case ModeBounds:
		return "bounds"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Config holds world tunables.
type Config struct {
	// Segment is the spatial index cell size in world units.
	Segment float64
	// Cols and Rows override the index grid size. Zero derives it from the
	// map's pixel size.
	Cols, Rows int
	// QueueCapacity is the initial action queue size per actor.
	QueueCapacity int
	// Steps is the displacement of one Move tick per direction.
	Steps [NumDirections]geom.Vec
	// AnimResetTicks is how long an actor stands still before its frame
	// returns to 0. Zero disables the reset.
	AnimResetTicks int
	Mode           Mode
	// TalkDistance is how far in front of an actor Talk looks.
	TalkDistance float64

	Log logrus.FieldLogger
}

// DefaultConfig returns unit steps on a 32 unit grid.
func DefaultConfig() Config {
	return Config{
		Segment:       32,
		QueueCapacity: 16,
		Steps: [NumDirections]geom.Vec{
			North:     geom.V(0, -1),
			NorthEast: geom.V(1, -1),
			East:      geom.V(1, 0),
			SouthEast: geom.V(1, 1),
			South:     geom.V(0, 1),
			SouthWest: geom.V(-1, 1),
			West:      geom.V(-1, 0),
			NorthWest: geom.V(-1, -1),
		},
		AnimResetTicks: 8,
		Mode:           ModeNarrow,
		TalkDistance:   8,
	}
}

// Validate checks the config for authoring errors.
func (c Config) Validate() error {
	switch {
	case c.Segment <= 0 || math.IsNaN(c.Segment):
		return fmt.Errorf("%w: segment %v", ErrBadConfig, c.Segment)
	case c.Cols < 0 || c.Rows < 0:
		return fmt.Errorf("%w: grid %dx%d", ErrBadConfig, c.Cols, c.Rows)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("%w: %d", ErrQueueConfig, c.QueueCapacity)
	case c.AnimResetTicks < 0:
		return fmt.Errorf("%w: anim reset %d", ErrBadConfig, c.AnimResetTicks)
	case c.TalkDistance < 0:
		return fmt.Errorf("%w: talk distance %v", ErrBadConfig, c.TalkDistance)
	}
	if c.Mode != ModeNarrow && c.Mode != ModeBounds {
		return fmt.Errorf("%w: %v", ErrUnsupportedMode, c.Mode)
	}
	return nil
}
