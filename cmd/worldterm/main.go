// Command worldterm runs the demo world in a terminal, one cell per tile.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/demo"
	"github.com/rhuanjl/SphereLibs-sub000/input"
	"github.com/rhuanjl/SphereLibs-sub000/logger"
	"github.com/rhuanjl/SphereLibs-sub000/sim"
	"github.com/rhuanjl/SphereLibs-sub000/task"
	"github.com/rhuanjl/SphereLibs-sub000/tilemap"
)

var (
	styleFloor  = tcell.StyleDefault.Foreground(tcell.ColorDarkGreen)
	styleWall   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWater  = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleGrass  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleEvent  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleHero   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleNPC    = tcell.StyleDefault.Foreground(tcell.ColorFuchsia)
	styleStatus = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleBox    = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
)

type app struct {
	screen tcell.Screen
	demo   *demo.Demo
	world  *sim.World
	keys   *input.TerminalSource
	log    logrus.FieldLogger

	message  string
	talks    int
	dialogue *task.Job
}

func main() {
	tickRate := flag.Int("tick", 30, "Simulation ticks per second")
	logPath := flag.String("log", "worldterm.log", "Log file")
	villagers := flag.Int("villagers", demo.DefaultOptions().Villagers, "Number of wandering villagers")
	flag.Parse()

	f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	base := logger.New(f)
	log := base.WithField("component", "worldterm")

	d, err := demo.Build(sim.DefaultConfig(), demo.Options{Seed: time.Now().UnixNano(), Villagers: *villagers, Log: base})
	if err != nil {
		log.WithError(err).Error("building world")
		fmt.Fprintf(os.Stderr, "build world: %v\n", err)
		os.Exit(1)
	}
	defer d.World.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "screen init: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	a := &app{
		screen: screen,
		demo:   d,
		world:  d.World,
		keys:   input.NewTerminalSource(d.World.Keys(), input.DefaultHold),
		log:    log,
	}
	a.world.Tasks().Hook(a.watchTalks)
	a.run(time.Second / time.Duration(max(*tickRate, 1)))
	log.WithField("stats", fmt.Sprintf("%+v", a.world.Stats())).Info("bye")
}

func (a *app) run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	a.draw()
	for {
		select {
		case ev := <-eventChan:
			if !a.handleEvent(ev) {
				return
			}
		case <-ticker.C:
			a.keys.Expire()
			a.world.Tick()
			a.draw()
		}
	}
}

func (a *app) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			return false
		}
		a.keys.HandleEvent(ev)
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

// watchTalks opens a dialogue box whenever the hero talks to someone.
// The box holds input focus, so the hero stands still until enter.
func (a *app) watchTalks() {
	if a.demo.Counters.Talks == a.talks {
		return
	}
	a.talks = a.demo.Counters.Talks
	if a.dialogue != nil && !a.dialogue.Finished() {
		return
	}
	a.dialogue = a.world.Tasks().Go(context.Background(), func(co *task.Co) error {
		co.Focus(a.world.Arbiter(), 1)
		defer co.Unfocus()
		a.message = "Villager: lovely day for a walk. [enter]"
		defer func() { a.message = "" }()
		return co.AwaitKey(a.world.Keys(), input.KeyEnter)
	})
}

func (a *app) draw() {
	s := a.screen
	s.Clear()
	m := a.world.Map()

	for ty := 0; ty < m.Height; ty++ {
		for tx := 0; tx < m.Width; tx++ {
			r, st := '.', styleFloor
			switch m.TileAt(0, tx, ty) {
			case demo.TileWall:
				r, st = '#', styleWall
			case demo.TileWater:
				r, st = '~', styleWater
			}
			s.SetContent(tx, ty, r, nil, st)
		}
	}
	a.drawEvents(m)

	for _, actor := range a.world.RenderList(0) {
		if !actor.Visible {
			continue
		}
		r, st := 'v', styleNPC
		if actor.Attached() {
			r, st = '@', styleHero
		}
		c := actor.Bounds()
		s.SetContent(int((c.X+c.W/2)/m.TileW), int((c.Y+c.H/2)/m.TileH), r, nil, st)
	}

	hero := a.demo.Hero
	status := fmt.Sprintf("tick %d  pos (%.0f,%.0f) facing %v  signs %d portals %d  edge %v  [arrows/wasd move, space talk, q quit]",
		a.world.Stats().Ticks, hero.Pos.X(), hero.Pos.Y(), hero.Facing,
		a.demo.Counters.Signs, a.demo.Counters.Portals, m.Edge())
	drawText(s, 0, m.Height, status, styleStatus)
	if a.message != "" {
		drawText(s, 2, m.Height-3, " "+a.message+" ", styleBox)
	}
	s.Show()
}

func (a *app) drawEvents(m *tilemap.Map) {
	layer := m.Layers[0]
	for _, z := range layer.Zones {
		b := z.Shape.Bounds()
		tx0, ty0, tx1, ty1, ok := m.TileRange(b)
		if !ok {
			continue
		}
		for ty := ty0; ty <= ty1; ty++ {
			for tx := tx0; tx <= tx1; tx++ {
				a.screen.SetContent(tx, ty, '"', nil, styleGrass)
			}
		}
	}
	for _, t := range layer.Triggers {
		a.screen.SetContent(t.Index%m.Width, t.Index/m.Width, '?', nil, styleEvent)
	}
}

func drawText(s tcell.Screen, x, y int, text string, st tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, st)
	}
}
