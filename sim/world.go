package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
	"github.com/rhuanjl/SphereLibs-sub000/input"
	"github.com/rhuanjl/SphereLibs-sub000/spatial"
	"github.com/rhuanjl/SphereLibs-sub000/task"
	"github.com/rhuanjl/SphereLibs-sub000/tilemap"
)

// Stats are running counters for one world.
type Stats struct {
	Ticks        int64
	Moves        int64
	Blocked      int64
	Placeholders int64
	Spills       int
	Actors       int
}

// World owns the actors of one map and everything that moves them.
type World struct {
	// TriggerHandlers and ZoneHandlers resolve the Key of map events.
	TriggerHandlers HandlerTable
	ZoneHandlers    HandlerTable

	cfg Config
	log logrus.FieldLogger
	m   *tilemap.Map
	ix  *spatial.Index

	actors   []*Actor
	render   [][]*Actor
	attached *Actor

	keys     *input.State
	arbiter  *input.Arbiter
	bindings *input.Bindings
	tasks    *task.Runner

	buf   []Collision
	seen  mapset.Set[spatial.Ref]
	stats Stats
}

// NewWorld creates an empty world over m.
func NewWorld(m *tilemap.Map, cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: nil map", ErrBadConfig)
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	cols, rows := cfg.Cols, cfg.Rows
	pw, ph := m.PixelSize()
	if cols == 0 {
		cols = max(int(math.Ceil(pw/cfg.Segment)), 1)
	}
	if rows == 0 {
		rows = max(int(math.Ceil(ph/cfg.Segment)), 1)
	}
	ix, err := spatial.NewIndex(cfg.Segment, len(m.Layers), cols, rows, log)
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}

	arb := input.NewArbiter()
	w := &World{
		TriggerHandlers: HandlerTable{},
		ZoneHandlers:    HandlerTable{},
		cfg:             cfg,
		log:             log.WithField("component", "sim"),
		m:               m,
		ix:              ix,
		render:          make([][]*Actor, len(m.Layers)),
		keys:            input.NewState(),
		arbiter:         arb,
		bindings:        input.NewBindings(arb.Request("world", 0)),
		tasks:           task.NewRunner(log),
		seen:            mapset.New[spatial.Ref](),
	}
	return w, nil
}

// Config returns the world's configuration.
func (w *World) Config() Config { return w.cfg }

// Map returns the static map.
func (w *World) Map() *tilemap.Map { return w.m }

// Index returns the spatial index.
func (w *World) Index() *spatial.Index { return w.ix }

// Keys is the key state polled each tick. Safe to write from any goroutine.
func (w *World) Keys() *input.State { return w.keys }

// Arbiter returns the focus arbiter shared by the world's bindings and
// tasks.
func (w *World) Arbiter() *input.Arbiter { return w.arbiter }

// Bindings returns the world-level key bindings. They hold the lowest
// priority claim, so any task that takes focus silences them.
func (w *World) Bindings() *input.Bindings { return w.bindings }

// Tasks returns the coroutine runner resumed each tick.
func (w *World) Tasks() *task.Runner { return w.tasks }

// Close cancels every task.
func (w *World) Close() { w.tasks.Close() }

func (w *World) checkLayer(layer int) error {
	if layer < 0 || layer >= len(w.m.Layers) {
		return fmt.Errorf("%w: %d", tilemap.ErrLayerRange, layer)
	}
	return nil
}

// Spawn creates an actor. Its queue starts with a setup action that runs
// OnSetup on the first tick.
func (w *World) Spawn(spec ActorSpec) (*Actor, error) {
	if err := w.checkLayer(spec.Layer); err != nil {
		return nil, err
	}
	if !spec.Facing.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrBadDirection, spec.Facing)
	}
	shapes := make([]geom.Shape, len(spec.Shapes))
	for i, s := range spec.Shapes {
		if s == nil {
			return nil, fmt.Errorf("actor %q shape %d: %w", spec.Name, i, geom.ErrUnknownShape)
		}
		shapes[i] = s.Translate(spec.Pos)
	}
	q, err := NewQueue(w.cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}

	a := &Actor{
		ID:           len(w.actors),
		Name:         spec.Name,
		Layer:        spec.Layer,
		Pos:          spec.Pos,
		Shapes:       shapes,
		Facing:       spec.Facing,
		Sprite:       spec.Sprite,
		Frozen:       spec.Frozen,
		Visible:      !spec.Hidden,
		Data:         spec.Data,
		Callbacks:    spec.Callbacks,
		queue:        q,
		inUse:        true,
		needsRefresh: true,
		extent:       geom.Extent(spec.Pos, shapes),
		triggers:     mapset.New[int](),
		zoneSteps:    make(map[int]int),
	}
	if err := w.ix.Insert(a.ref(), a.Layer, a.Pos, a.extent); err != nil {
		return nil, err
	}
	q.Push(setup{})
	w.actors = append(w.actors, a)
	w.render[a.Layer] = append(w.render[a.Layer], a)
	w.stats.Actors++

	w.log.WithFields(logrus.Fields{"actor": a.Name, "id": a.ID, "layer": a.Layer}).Debug("spawned")
	return a, nil
}

// Actor returns the actor with the given id, or nil. Destroyed actors are
// still returned; check Active.
func (w *World) Actor(id int) *Actor {
	if id < 0 || id >= len(w.actors) {
		return nil
	}
	return w.actors[id]
}

// Find returns the first active actor with the given name.
func (w *World) Find(name string) *Actor {
	for _, a := range w.actors {
		if a.inUse && a.Name == name {
			return a
		}
	}
	return nil
}

// Actors returns the active actors in registration order.
func (w *World) Actors() []*Actor {
	out := make([]*Actor, 0, w.stats.Actors)
	for _, a := range w.actors {
		if a.inUse {
			out = append(out, a)
		}
	}
	return out
}

// Attach makes a the player. Passing nil detaches the current one.
func (w *World) Attach(a *Actor) error {
	if a != nil && !a.inUse {
		return fmt.Errorf("%w: %q", ErrInactiveActor, a.Name)
	}
	if w.attached != nil {
		w.attached.attached = false
	}
	w.attached = a
	if a != nil {
		a.attached = true
	}
	return nil
}

// Attached returns the player actor, or nil.
func (w *World) Attached() *Actor { return w.attached }

// Enqueue appends an action to a's queue.
func (w *World) Enqueue(a *Actor, act Action) error {
	if !a.Active() {
		name := "<nil>"
		if a != nil {
			name = a.Name
		}
		return fmt.Errorf("%w: %s", ErrInactiveActor, name)
	}
	switch v := act.(type) {
	case nil:
		return fmt.Errorf("%w: nil", ErrBadAction)
	case Move:
		if !v.Dir.Valid() {
			return fmt.Errorf("%w: %d", ErrBadDirection, v.Dir)
		}
	case Animate:
		if !v.Dir.Valid() {
			return fmt.Errorf("%w: %d", ErrBadDirection, v.Dir)
		}
	case Face:
		if !v.Dir.Valid() {
			return fmt.Errorf("%w: %d", ErrBadDirection, v.Dir)
		}
	case RunScript:
		if v.Fn == nil {
			return fmt.Errorf("%w: script without function", ErrBadAction)
		}
	case TeleportLayer:
		if err := w.checkLayer(v.Layer); err != nil {
			return err
		}
	}
	a.queue.Push(act)
	return nil
}

// ClearQueue drops a's pending actions.
func (w *World) ClearQueue(a *Actor) {
	if a != nil {
		a.queue.Clear()
	}
}

// RenderList returns a layer's actors in draw order, back to front. The
// slice is owned by the world and reordered every tick.
func (w *World) RenderList(layer int) []*Actor {
	if layer < 0 || layer >= len(w.render) {
		return nil
	}
	return w.render[layer]
}

// Talk runs OnTalk on the first actor within TalkDistance in front of a.
// Returns that actor, or nil.
func (w *World) Talk(a *Actor) *Actor {
	if !a.Active() || w.cfg.TalkDistance <= 0 {
		return nil
	}
	step := w.cfg.Steps[a.Facing]
	if step.Len() == 0 {
		return nil
	}
	probe := step.Normalize().Mul(w.cfg.TalkDistance)
	var hits []Collision
	hits = w.collide(hits, a, a.Layer, probe, a.Shapes, false)
	for _, c := range hits {
		if c.Kind != HitSprite {
			continue
		}
		if fn := c.Actor.Callbacks.OnTalk; fn != nil {
			fn(w, c.Actor, a)
		}
		return c.Actor
	}
	return nil
}

// Stats returns the world's counters.
func (w *World) Stats() Stats {
	s := w.stats
	s.Spills = w.ix.Spills()
	return s
}

func (w *World) destroy(a *Actor) {
	if fn := a.Callbacks.OnDestroy; fn != nil {
		fn(w, a)
	}
	if !a.inUse {
		return
	}
	w.ix.Remove(a.ref(), a.Layer, a.Pos, a.extent)
	w.removeRender(a)
	a.queue.Clear()
	a.inUse = false
	if w.attached == a {
		w.attached = nil
		a.attached = false
	}
	w.stats.Actors--
	w.log.WithFields(logrus.Fields{"actor": a.Name, "id": a.ID}).Debug("destroyed")
}

func (w *World) removeRender(a *Actor) {
	list := w.render[a.Layer]
	for i, o := range list {
		if o == a {
			w.render[a.Layer] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// teleport places a at pos on layer without a collision check. Trigger
// and zone state is reset even when the layer stays the same.
func (w *World) teleport(a *Actor, pos geom.Vec, layer int) {
	delta := pos.Sub(a.Pos)
	if err := w.ix.UpdateMembership(a.ref(), a.Pos, delta, a.extent, a.Layer, layer); err != nil {
		w.log.WithError(err).WithField("actor", a.Name).Error("teleport rejected")
		return
	}
	if layer != a.Layer {
		w.removeRender(a)
		w.render[layer] = append(w.render[layer], a)
		a.Layer = layer
	}
	a.resetEvents()
	a.translate(delta)
}
