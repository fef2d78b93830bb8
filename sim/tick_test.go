package sim

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
	"github.com/rhuanjl/SphereLibs-sub000/input"
	"github.com/rhuanjl/SphereLibs-sub000/task"
	"github.com/rhuanjl/SphereLibs-sub000/tilemap"
)

func TestMoveEastFiveTicks(t *testing.T) {
	w, _ := newTestWorld(t)
	a := spawnAt(t, w, "a", 0, 0)
	enqueue(t, w, a, Move{Dir: East, Ticks: 5})

	for i := 0; i < 5; i++ {
		if w.Tick() {
			t.Fatalf("world reported idle during tick %d", i+1)
		}
	}
	step := w.Config().Steps[East].X()
	if a.Pos.X() != 5*step || a.Pos.Y() != 0 {
		t.Errorf("expected (%v,0), got %v", 5*step, a.Pos)
	}
	if a.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", a.Pending())
	}
	if b := a.Bounds(); b.X != 5 || b.Right() != 9 {
		t.Errorf("shapes should follow the actor, bounds %+v", b)
	}
	if !w.Tick() {
		t.Error("expected idle once the queue drained")
	}
}

func TestMoveEastKeepsIndexCurrent(t *testing.T) {
	w, _ := newTestWorld(t)
	a := spawnAt(t, w, "a", 3, 3)
	const n = 57
	enqueue(t, w, a, Move{Dir: East, Ticks: n})
	for i := 0; i < n; i++ {
		w.Tick()
	}
	if a.Pos.X() != 3+n {
		t.Fatalf("expected x=%d, got %v", 3+n, a.Pos.X())
	}
	rng := w.Index().Cover(0, a.Bounds(), 0)
	for cy := rng.Y0; cy <= rng.Y1; cy++ {
		for cx := rng.X0; cx <= rng.X1; cx++ {
			if !w.Index().Contains(0, cx, cy, a.ref()) {
				t.Errorf("cell (%d,%d) under the final box does not list the actor", cx, cy)
			}
		}
	}
	checkMembership(t, w, a)
	if w.Stats().Moves != n {
		t.Errorf("expected %d moves counted, got %d", n, w.Stats().Moves)
	}
}

func TestBlockedMoveFiresTouchOnBoth(t *testing.T) {
	w, _ := newTestWorld(t)
	a := spawnAt(t, w, "a", 0, 0)
	b := spawnAt(t, w, "b", 4, 0)

	var log []string
	a.Callbacks.OnTouchOther = func(w *World, self, other *Actor) { log = append(log, "a-other:"+other.Name) }
	a.Callbacks.OnTouchPlayer = func(w *World, self, other *Actor) { log = append(log, "a-player:"+other.Name) }
	b.Callbacks.OnTouchOther = func(w *World, self, other *Actor) { log = append(log, "b-other:"+other.Name) }
	b.Callbacks.OnTouchPlayer = func(w *World, self, other *Actor) { log = append(log, "b-player:"+other.Name) }

	enqueue(t, w, a, Move{Dir: East, Ticks: 1})
	w.Tick()
	if a.Pos != geom.V(0, 0) {
		t.Errorf("blocked actor moved to %v", a.Pos)
	}
	if a.Pending() != 0 {
		t.Error("blocked move should still consume its tick")
	}
	if len(log) != 2 || log[0] != "a-other:b" || log[1] != "b-other:a" {
		t.Errorf("unexpected touch calls %v", log)
	}

	log = nil
	w.Attach(a)
	enqueue(t, w, a, Move{Dir: East, Ticks: 1})
	w.Tick()
	if len(log) != 2 || log[0] != "a-other:b" || log[1] != "b-player:a" {
		t.Errorf("b should see the player touching it, got %v", log)
	}
}

func TestTeleportThenMoveAdvancesFrame(t *testing.T) {
	w, _ := newTestWorld(t)
	sprite := &Sprite{Name: "hero"}
	sprite.Delays[East] = []int{1, 1, 1, 1}
	a, err := w.Spawn(ActorSpec{Name: "hero", Shapes: square(4), Sprite: sprite, Facing: East})
	if err != nil {
		t.Fatal(err)
	}
	w.Tick()
	a.TakeRefresh()

	enqueue(t, w, a, TeleportX{X: 100}, TeleportY{Y: 50}, Move{Dir: East, Ticks: 2})
	w.Tick()
	if a.Pos != geom.V(101, 50) {
		t.Errorf("expected teleport plus one step to (101,50), got %v", a.Pos)
	}
	if a.Frame != 1 {
		t.Errorf("move after teleport should advance the frame, frame=%d", a.Frame)
	}
	if !a.TakeRefresh() {
		t.Error("frame change should request a refresh")
	}
	checkMembership(t, w, a)
}

func TestAnimationResetsWhenStill(t *testing.T) {
	w, _ := newTestWorld(t)
	sprite := &Sprite{}
	sprite.Delays[South] = []int{1, 1, 1}
	a, _ := w.Spawn(ActorSpec{Name: "walker", Shapes: square(4), Sprite: sprite})
	enqueue(t, w, a, Animate{Dir: South, Ticks: 2})
	w.Tick()
	w.Tick()
	if a.Frame != 2 {
		t.Fatalf("expected frame 2 after two animate ticks, got %d", a.Frame)
	}
	for i := 0; i < w.Config().AnimResetTicks; i++ {
		w.Tick()
	}
	if a.Frame != 0 {
		t.Errorf("expected frame reset after standing still, got %d", a.Frame)
	}
	if a.Pos != geom.V(0, 0) {
		t.Error("animate must not move the actor")
	}
}

func TestFrozenActorKeepsQueue(t *testing.T) {
	w, _ := newTestWorld(t)
	a, _ := w.Spawn(ActorSpec{Name: "statue", Pos: geom.V(30, 30), Shapes: square(4), Frozen: true})
	enqueue(t, w, a, Move{Dir: North, Ticks: 2})
	if w.Tick() {
		t.Error("frozen actor with queued actions is not idle")
	}
	if a.Pos != geom.V(30, 30) || a.Pending() != 2 {
		t.Errorf("frozen actor should not act, pos %v pending %d", a.Pos, a.Pending())
	}
	a.Frozen = false
	w.Tick()
	if a.Pending() != 1 {
		t.Errorf("expected setup and one move step consumed, %d pending", a.Pending())
	}
}

func TestIdleCallbackCanQueueWork(t *testing.T) {
	w, _ := newTestWorld(t)
	a := spawnAt(t, w, "wanderer", 50, 50)
	idles := 0
	a.Callbacks.OnIdle = func(w *World, self *Actor) {
		idles++
		if idles == 1 {
			w.Enqueue(self, Move{Dir: West, Ticks: 1})
		}
	}
	w.Tick() // setup
	if w.Tick() {
		t.Error("idle callback queued work, world should not be idle")
	}
	w.Tick()
	if a.Pos.X() != 49 {
		t.Errorf("expected the queued step to run, x=%v", a.Pos.X())
	}
	if !w.Tick() {
		t.Error("expected idle once the callback stops queueing")
	}
}

func TestRunScriptTicksAndFaceIsFree(t *testing.T) {
	w, _ := newTestWorld(t)
	a := spawnAt(t, w, "a", 0, 0)
	runs := 0
	enqueue(t, w, a,
		Face{Dir: West},
		RunScript{Fn: func(w *World, self *Actor) { runs++ }, Ticks: 3},
	)
	w.Tick()
	if a.Facing != West || runs != 1 {
		t.Fatalf("face should be free: facing %v, runs %d", a.Facing, runs)
	}
	w.Tick()
	w.Tick()
	w.Tick()
	if runs != 3 {
		t.Errorf("expected 3 script runs, got %d", runs)
	}
}

func TestTeleportLayerSwitchesStructures(t *testing.T) {
	w, _ := newTestWorld(t)
	a := spawnAt(t, w, "a", 40, 40)
	b := spawnAt(t, w, "b", 44, 40)
	enqueue(t, w, a, TeleportLayer{Layer: 1}, Move{Dir: East, Ticks: 1})
	w.Tick()
	if a.Layer != 1 || a.Pos.X() != 41 {
		t.Errorf("expected move on layer 1 to x=41, got layer %d x %v", a.Layer, a.Pos.X())
	}
	if len(w.RenderList(0)) != 1 || w.RenderList(0)[0] != b || len(w.RenderList(1)) != 1 {
		t.Error("render lists not updated for layer change")
	}
	checkMembership(t, w, a)
}

func TestTriggerFiresOnEntry(t *testing.T) {
	w, _ := newTestWorld(t)
	m := w.Map()
	if err := m.AddTrigger(0, "stairs", 3, 0, "stairs"); err != nil {
		t.Fatal(err)
	}
	var player, other int
	w.TriggerHandlers["stairs"] = Handler{
		OnPlayer: func(w *World, a *Actor) { player++ },
		OnOther:  func(w *World, a *Actor) { other++ },
	}
	a := spawnAt(t, w, "a", 40, 0)
	enqueue(t, w, a, Move{Dir: East, Ticks: 8})
	for i := 0; i < 8; i++ {
		w.Tick()
	}
	if other != 1 || player != 0 {
		t.Errorf("expected one OnOther call on entry, got other=%d player=%d", other, player)
	}

	// Leave, then come back as the player.
	w.Attach(a)
	enqueue(t, w, a, TeleportX{X: 36}, Move{Dir: East, Ticks: 10})
	for i := 0; i < 10; i++ {
		w.Tick()
	}
	if player != 1 {
		t.Errorf("expected OnPlayer once for the attached actor, got %d", player)
	}
}

func TestZoneWithoutHandlerUsesPlaceholder(t *testing.T) {
	w, hook := newTestWorld(t)
	m := w.Map()
	if err := m.AddZone(0, tilemap.Zone{Name: "swamp", Shape: m.TileRect(2, 2, 3, 3), Key: "swamp"}); err != nil {
		t.Fatal(err)
	}
	a := spawnAt(t, w, "a", 30, 40)
	enqueue(t, w, a, Move{Dir: East, Ticks: 1})
	w.Tick()

	if a.Pos.X() != 31 {
		t.Errorf("zones never block, x=%v", a.Pos.X())
	}
	if w.Stats().Placeholders != 1 {
		t.Errorf("expected placeholder to run once, got %d", w.Stats().Placeholders)
	}
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel || e.Data["name"] != "swamp" {
		t.Errorf("expected a warning naming the zone, got %+v", e)
	}
}

func TestZoneFiresEverySteps(t *testing.T) {
	w, _ := newTestWorld(t)
	m := w.Map()
	m.AddZone(0, tilemap.Zone{Name: "sand", Shape: m.TileRect(0, 0, 7, 7), Steps: 3, Key: "sand"})
	calls := 0
	w.ZoneHandlers["sand"] = Handler{OnOther: func(w *World, a *Actor) { calls++ }}

	a := spawnAt(t, w, "a", 20, 20)
	enqueue(t, w, a, Move{Dir: South, Ticks: 7})
	for i := 0; i < 7; i++ {
		w.Tick()
	}
	if calls != 2 {
		t.Errorf("expected 2 calls over 7 steps with Steps=3, got %d", calls)
	}
}

func TestHandlersMayEnqueue(t *testing.T) {
	w, _ := newTestWorld(t)
	m := w.Map()
	m.AddTrigger(0, "bounce", 2, 0, "bounce")
	w.TriggerHandlers["bounce"] = Handler{OnOther: func(w *World, a *Actor) {
		w.ClearQueue(a)
		w.Enqueue(a, TeleportX{X: 0})
	}}
	a := spawnAt(t, w, "a", 27, 0)
	enqueue(t, w, a, Move{Dir: East})
	for i := 0; i < 5; i++ {
		w.Tick()
	}
	if a.Pos.X() != 0 {
		t.Errorf("trigger should have sent the actor back to x=0, got %v", a.Pos.X())
	}
}

func TestTasksResumeBeforeActors(t *testing.T) {
	w, _ := newTestWorld(t)
	a := spawnAt(t, w, "a", 60, 60)
	w.Attach(a)
	w.BindControls(DefaultControls, input.Rune('e'))
	w.Tick()

	var seen []float64
	job := w.Tasks().Go(context.Background(), func(co *task.Co) error {
		co.Focus(w.Arbiter(), 10)
		for {
			seen = append(seen, a.Pos.X())
			if err := co.Frame(); err != nil {
				return err
			}
		}
	})

	w.Tick()
	w.Keys().Press(input.KeyRight)
	w.Tick()
	w.Tick()
	if a.Pos.X() != 60 {
		t.Errorf("bindings should be silenced while a task holds focus, x=%v", a.Pos.X())
	}
	job.Cancel()
	w.Tick()
	if a.Pos.X() != 61 {
		t.Errorf("cancel should hand focus back, x=%v", a.Pos.X())
	}
	if len(seen) != 3 {
		t.Errorf("expected the task to run once per tick, ran %d times", len(seen))
	}
}

func TestBlockedMoveStillFiresEvents(t *testing.T) {
	w, _ := newTestWorld(t)
	m := w.Map()
	m.AddZone(0, tilemap.Zone{Name: "mud", Shape: m.TileRect(0, 0, 3, 3), Key: "mud"})
	m.AddTrigger(0, "plate", 0, 0, "plate")
	var mud, plate int
	w.ZoneHandlers["mud"] = Handler{OnOther: func(w *World, a *Actor) { mud++ }}
	w.TriggerHandlers["plate"] = Handler{OnOther: func(w *World, a *Actor) { plate++ }}

	a := spawnAt(t, w, "a", 10, 10)
	spawnAt(t, w, "b", 14, 10)
	enqueue(t, w, a, Move{Dir: East, Ticks: 3})
	for i := 0; i < 3; i++ {
		w.Tick()
	}

	if a.Pos.X() != 10 || w.Stats().Blocked != 3 {
		t.Fatalf("expected 3 blocked moves at x=10, got x=%v blocked=%d", a.Pos.X(), w.Stats().Blocked)
	}
	if mud != 3 {
		t.Errorf("zone should count every blocked attempt as a step, got %d calls", mud)
	}
	if plate != 1 {
		t.Errorf("trigger should fire once while pushing against b, got %d", plate)
	}
}

func TestTriggerRefiresAfterTeleportOff(t *testing.T) {
	w, _ := newTestWorld(t)
	m := w.Map()
	m.AddTrigger(0, "portal", 3, 0, "portal")
	calls := 0
	w.TriggerHandlers["portal"] = Handler{OnOther: func(w *World, a *Actor) { calls++ }}

	a := spawnAt(t, w, "a", 44, 0)
	enqueue(t, w, a, Move{Dir: East, Ticks: 1})
	w.Tick()
	if calls != 1 {
		t.Fatalf("expected one call stepping onto the trigger, got %d", calls)
	}

	enqueue(t, w, a, TeleportX{X: 44}, Move{Dir: East, Ticks: 1})
	w.Tick()
	if a.Pos.X() != 45 {
		t.Fatalf("expected x=45 after teleport and step, got %v", a.Pos.X())
	}
	if calls != 2 {
		t.Errorf("stepping back on after a teleport should fire again, got %d calls", calls)
	}
}

func TestZoneCountRestartsAfterTeleport(t *testing.T) {
	w, _ := newTestWorld(t)
	m := w.Map()
	m.AddZone(0, tilemap.Zone{Name: "sand", Shape: m.TileRect(0, 0, 7, 7), Steps: 3, Key: "sand"})
	calls := 0
	w.ZoneHandlers["sand"] = Handler{OnOther: func(w *World, a *Actor) { calls++ }}

	a := spawnAt(t, w, "a", 20, 20)
	enqueue(t, w, a, Move{Dir: South, Ticks: 2}, TeleportY{Y: 20}, Move{Dir: South, Ticks: 2})
	for i := 0; i < 4; i++ {
		w.Tick()
	}
	if calls != 0 {
		t.Errorf("two steps either side of a teleport should not reach Steps=3, got %d calls", calls)
	}
}
