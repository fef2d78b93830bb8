// Package demo builds a small walled map with a player, a few wandering
// villagers, a signpost trigger, a portal and a patch of tall grass. The
// server hosts one per session and worldterm renders one in a terminal.
package demo

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
	"github.com/rhuanjl/SphereLibs-sub000/input"
	"github.com/rhuanjl/SphereLibs-sub000/sim"
	"github.com/rhuanjl/SphereLibs-sub000/tilemap"
)

const (
	Width  = 30
	Height = 20
	Tile   = 16

	TileWall  = 1
	TileWater = 2

	HeroName     = "hero"
	VillagerName = "villager"

	// WalkFrames is the length of every walk cycle.
	WalkFrames = 4
)

// walkSprite returns a sprite whose walk cycle shows each frame for delay
// ticks, in every direction.
func walkSprite(name string, delay int) *sim.Sprite {
	s := &sim.Sprite{Name: name}
	for d := range s.Delays {
		s.Delays[d] = slices.Repeat([]int{delay}, WalkFrames)
	}
	return s
}

// Options tunes the demo world.
type Options struct {
	Seed      int64
	Villagers int
	Log       logrus.FieldLogger
}

// DefaultOptions returns four villagers and a fixed seed.
func DefaultOptions() Options {
	return Options{Seed: 1, Villagers: 4}
}

// Counters tracks how often the demo's map events ran.
type Counters struct {
	Signs   int
	Portals int
	Rustles int
	Talks   int
}

// Demo is a built world plus the handles its controls need.
type Demo struct {
	World    *sim.World
	Hero     *sim.Actor
	Counters *Counters
}

// Build creates the demo map and populates a world over it. The hero is
// attached and the default controls are bound with space to talk.
func Build(cfg sim.Config, opts Options) (*Demo, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "demo")
	cfg.Log = log

	m, err := buildMap()
	if err != nil {
		return nil, err
	}
	w, err := sim.NewWorld(m, cfg)
	if err != nil {
		return nil, err
	}

	d := &Demo{World: w, Counters: &Counters{}}
	d.registerHandlers(log)

	d.Hero, err = w.Spawn(sim.ActorSpec{
		Name:   HeroName,
		Pos:    geom.V(3*Tile, 3*Tile),
		Shapes: []geom.Shape{geom.Rect{W: 12, H: 12}},
		Facing: sim.South,
		Sprite: walkSprite(HeroName, 8),
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Attach(d.Hero); err != nil {
		w.Close()
		return nil, err
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	for i := 0; i < opts.Villagers; i++ {
		pos := geom.V(float64(8+i*4)*Tile, float64(10+i%3*2)*Tile)
		if _, err := w.Spawn(d.villager(i, pos, rng)); err != nil {
			w.Close()
			return nil, fmt.Errorf("spawning villager %d: %w", i, err)
		}
	}

	if err := w.BindControls(sim.DefaultControls, input.KeySpace); err != nil {
		w.Close()
		return nil, err
	}
	return d, nil
}

// buildMap lays out a walled room with a pond and an inner wall.
func buildMap() (*tilemap.Map, error) {
	m, err := tilemap.New(Width, Height, Tile, Tile, 2)
	if err != nil {
		return nil, err
	}
	m.Layers[0].Name = "ground"
	m.Layers[1].Name = "roof"
	m.SetObstruction(TileWall, geom.Rect{W: Tile, H: Tile})
	m.SetObstruction(TileWater, geom.Circle{X: Tile / 2, Y: Tile / 2, Radius: Tile / 2})

	for x := 0; x < Width; x++ {
		m.SetTile(0, x, 0, TileWall)
		m.SetTile(0, x, Height-1, TileWall)
	}
	for y := 0; y < Height; y++ {
		m.SetTile(0, 0, y, TileWall)
		m.SetTile(0, Width-1, y, TileWall)
	}
	for y := 2; y < 8; y++ {
		m.SetTile(0, 15, y, TileWall)
	}
	for x := 22; x < 26; x++ {
		for y := 13; y < 16; y++ {
			m.SetTile(0, x, y, TileWater)
		}
	}

	if err := m.AddTrigger(0, "signpost", 6, 3, "sign"); err != nil {
		return nil, err
	}
	if err := m.AddTrigger(0, "portal", 13, 5, "portal"); err != nil {
		return nil, err
	}
	if err := m.AddZone(0, tilemap.Zone{
		Name:  "tall grass",
		Shape: m.TileRect(3, 12, 8, 16),
		Steps: 8,
		Key:   "grass",
	}); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Demo) registerHandlers(log logrus.FieldLogger) {
	w := d.World
	w.TriggerHandlers["sign"] = sim.Handler{
		OnPlayer: func(w *sim.World, self *sim.Actor) {
			d.Counters.Signs++
			log.WithField("actor", self.Name).Info("the sign reads: east to the lake")
		},
	}
	w.TriggerHandlers["portal"] = sim.Handler{
		OnPlayer: func(w *sim.World, self *sim.Actor) {
			d.Counters.Portals++
			w.ClearQueue(self)
			w.Enqueue(self, sim.TeleportX{X: 18 * Tile})
			w.Enqueue(self, sim.TeleportY{Y: 4 * Tile})
		},
		OnOther: func(w *sim.World, self *sim.Actor) {
			w.ClearQueue(self)
			w.Enqueue(self, sim.Face{Dir: sim.West})
		},
	}
	w.ZoneHandlers["grass"] = sim.Handler{
		OnPlayer: func(w *sim.World, self *sim.Actor) {
			d.Counters.Rustles++
			log.WithField("actor", self.Name).Debug("something rustles in the grass")
		},
		OnOther: func(*sim.World, *sim.Actor) {},
	}
}

func (d *Demo) villager(i int, pos geom.Vec, rng *rand.Rand) sim.ActorSpec {
	cardinal := [...]sim.Direction{sim.North, sim.East, sim.South, sim.West}
	return sim.ActorSpec{
		Name:   fmt.Sprintf("%s-%d", VillagerName, i),
		Pos:    pos,
		Shapes: []geom.Shape{geom.Circle{X: 6, Y: 6, Radius: 6}},
		Facing: sim.South,
		Sprite: walkSprite(VillagerName, 12),
		Callbacks: sim.Callbacks{
			OnIdle: func(w *sim.World, self *sim.Actor) {
				dir := cardinal[rng.Intn(len(cardinal))]
				if rng.Intn(3) == 0 {
					w.Enqueue(self, sim.Animate{Dir: dir, Ticks: 4 + rng.Intn(8)})
					return
				}
				w.Enqueue(self, sim.Move{Dir: dir, Ticks: 8 + rng.Intn(24)})
			},
			OnTalk: func(w *sim.World, self, other *sim.Actor) {
				d.Counters.Talks++
				w.ClearQueue(self)
				w.Enqueue(self, sim.Face{Dir: facing(other.Facing)})
			},
			OnTouchPlayer: func(w *sim.World, self, other *sim.Actor) {
				w.ClearQueue(self)
			},
		},
	}
}

// facing returns the direction that looks back at something facing d.
func facing(d sim.Direction) sim.Direction {
	return (d + sim.NumDirections/2) % sim.NumDirections
}
