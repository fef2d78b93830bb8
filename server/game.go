package main

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rhuanjl/SphereLibs-sub000/demo"
	"github.com/rhuanjl/SphereLibs-sub000/input"
	"github.com/rhuanjl/SphereLibs-sub000/sim"
)

const (
	DefaultTickRate = 60 // simulation ticks per second
	BroadcastRate   = 20 // frames per second
	statsEvery      = 300
)

// Broadcaster is anything a session can push messages to
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Game runs one demo world on its own ticker
type Game struct {
	mu         sync.Mutex
	sid        string
	demo       *demo.Demo
	world      *sim.World
	watchers   map[Broadcaster]bool
	controller Broadcaster
	telemetry  *Telemetry
	log        logrus.FieldLogger

	tickDur        time.Duration
	broadcastEvery int64
	stopped        bool
	stop           chan struct{}
}

// NewGame builds the demo world for a session. tickRate <= 0 uses
// DefaultTickRate; telemetry may be nil.
func NewGame(sid string, tickRate int, telemetry *Telemetry, log logrus.FieldLogger) (*Game, error) {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	log = log.WithField("sid", sid)
	d, err := demo.Build(sim.DefaultConfig(), demo.Options{
		Seed:      time.Now().UnixNano(),
		Villagers: demo.DefaultOptions().Villagers,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	g := &Game{
		sid:            sid,
		demo:           d,
		world:          d.World,
		watchers:       make(map[Broadcaster]bool),
		telemetry:      telemetry,
		log:            log,
		tickDur:        time.Second / time.Duration(tickRate),
		broadcastEvery: int64(max(tickRate/BroadcastRate, 1)),
		stop:           make(chan struct{}),
	}
	g.world.Tasks().Hook(func() {
		if g.world.Stats().Ticks%statsEvery == 0 {
			g.sample()
		}
	})
	return g, nil
}

// Run starts the game loop
func (g *Game) Run() {
	ticker := time.NewTicker(g.tickDur)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop and records a last telemetry sample
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopped = true
	close(g.stop)
	g.sample()
	g.world.Close()
}

// AddWatcher subscribes a client to frames
func (g *Game) AddWatcher(b Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watchers[b] = true
}

// RemoveWatcher unsubscribes a client. A departing controller releases
// every key it held.
func (g *Game) RemoveWatcher(b Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.watchers, b)
	if g.controller == b {
		g.controller = nil
		g.world.Keys().Reset()
	}
}

// SetController hands the hero to b, replacing any previous controller
func (g *Game) SetController(b Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.controller != nil && g.controller != b {
		g.world.Keys().Reset()
	}
	g.controller = b
	g.watchers[b] = true
}

// HandleKey applies a key transition from b. It reports false when b does
// not control the hero.
func (g *Game) HandleKey(b Broadcaster, k input.Key, down bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.controller != b {
		return false
	}
	g.world.Keys().Set(k, down)
	return true
}

// WatcherCount returns the number of subscribed clients
func (g *Game) WatcherCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.watchers)
}

// Tick returns the number of ticks run so far
func (g *Game) Tick() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.world.Stats().Ticks
}

// Layout describes the map for a new watcher
func (g *Game) Layout() WatchingMsg {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := g.world.Map()
	return WatchingMsg{SID: g.sid, Width: m.Width, Height: m.Height, Tile: m.TileW, Layers: len(m.Layers)}
}

// update runs one game tick
func (g *Game) update() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}

	g.world.Tick()
	if g.world.Stats().Ticks%g.broadcastEvery == 0 {
		g.broadcastFrame()
	}
}

// frame snapshots every layer's render list
func (g *Game) frame() Frame {
	m := g.world.Map()
	f := Frame{
		Tick:   g.world.Stats().Ticks,
		Layers: make([][]ActorState, len(m.Layers)),
		Edge:   int(m.Edge()),
	}
	for layer := range f.Layers {
		list := g.world.RenderList(layer)
		states := make([]ActorState, 0, len(list))
		for _, a := range list {
			if !a.Visible {
				continue
			}
			s := ActorState{
				ID:     a.ID,
				Name:   a.Name,
				X:      a.Pos.X(),
				Y:      a.Pos.Y(),
				Facing: int(a.Facing),
				Frame:  a.Frame,
				Player: a.Attached(),
			}
			if a.Sprite != nil {
				s.Sprite = a.Sprite.Name
			}
			states = append(states, s)
		}
		f.Layers[layer] = states
	}
	return f
}

// broadcastFrame sends the current frame to all watchers
func (g *Game) broadcastFrame() {
	if len(g.watchers) == 0 {
		return
	}
	data, err := msgpack.Marshal(g.frame())
	if err != nil {
		g.log.WithError(err).Error("encoding frame")
		return
	}
	for w := range g.watchers {
		w.SendBinary(data)
	}
}

func (g *Game) sample() {
	if g.telemetry == nil {
		return
	}
	s := g.world.Stats()
	g.telemetry.Track(StatsSample{
		SessionID:    g.sid,
		Tick:         s.Ticks,
		Moves:        s.Moves,
		Blocked:      s.Blocked,
		Placeholders: s.Placeholders,
		Spills:       s.Spills,
	})
}
