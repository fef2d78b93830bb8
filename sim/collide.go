package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/geom"
	"github.com/rhuanjl/SphereLibs-sub000/tilemap"
)

// HitKind classifies a collision record.
type HitKind int

const (
	HitSprite HitKind = iota
	HitTile
	HitTrigger
	HitZone
)

func (k HitKind) String() string {
	switch k {
	case HitSprite:
		return "sprite"
	case HitTile:
		return "tile"
	case HitTrigger:
		return "trigger"
	case HitZone:
		return "zone"
	}
	return fmt.Sprintf("hit(%d)", int(k))
}

// Handler is a map event callback pair. OnPlayer runs for the attached
// actor, OnOther for everyone else.
type Handler struct {
	OnPlayer Script
	OnOther  Script
}

// HandlerTable maps event keys to handlers.
type HandlerTable map[string]Handler

// Collision is one record produced by Collide.
type Collision struct {
	Kind HitKind

	Actor *Actor // HitSprite

	TileX, TileY int // HitTile
	Tile         int

	Trigger   *tilemap.Trigger // HitTrigger
	ZoneIndex int              // HitZone, position in the layer's zone list
	Zone      *tilemap.Zone

	Handler Handler // HitTrigger and HitZone
}

// Blocks reports whether the record stops a move.
func (c Collision) Blocks() bool { return c.Kind == HitSprite || c.Kind == HitTile }

// Collide reports what a's shapes would touch after moving by delta on
// layer. Records are appended to buf in discovery order per shape: actors,
// tiles, triggers, zones. pos is a's position before the move.
//
// When a is the attached actor and the displaced shapes cross the map
// boundary, the crossed edge is recorded on the map (see tilemap.Map.Edge)
// as a side effect.
//
// Collide panics on a layer outside the map and on shapes the geometry
// tester does not support.
func (w *World) Collide(buf []Collision, a *Actor, layer int, pos, delta geom.Vec, shapes []geom.Shape) []Collision {
	if err := w.checkLayer(layer); err != nil {
		panic(err)
	}
	buf = w.collide(buf, a, layer, delta, shapes, true)
	if a != nil && a.attached {
		box := geom.Rect{X: pos.X(), Y: pos.Y()}
		if len(shapes) > 0 {
			box = geom.BoundsOf(shapes)
		}
		if e := w.m.CrossedEdge(box.Offset(delta)); e != tilemap.EdgeNone {
			w.m.SetEdge(e)
		}
	}
	return buf
}

func (w *World) collide(buf []Collision, a *Actor, layer int, delta geom.Vec, shapes []geom.Shape, events bool) []Collision {
	l := w.m.Layers[layer]
	tiles := l.Tiles != nil && w.m.HasObstructions()

	for _, s := range shapes {
		box := s.Bounds().Offset(delta)

		w.seen.Clear()
		for ref := range w.ix.Query(w.ix.Cover(layer, box, 1)) {
			if w.seen.Has(ref) {
				continue
			}
			w.seen.Put(ref)
			other := w.actors[ref]
			if other == a || !other.inUse || other.Layer != layer {
				continue
			}
			for _, os := range other.Shapes {
				if w.hit(delta, s, os) {
					buf = append(buf, Collision{Kind: HitSprite, Actor: other})
					break
				}
			}
		}

		tx0, ty0, tx1, ty1, ok := w.m.TileRange(box)
		if ok && tiles {
			for ty := ty0; ty <= ty1; ty++ {
				for tx := tx0; tx <= tx1; tx++ {
					id := l.Tiles[w.m.TileIndex(tx, ty)]
					origin := w.m.TileOrigin(tx, ty)
					for _, o := range w.m.ObstructionsOf(id) {
						if w.hit(delta, s, o.Translate(origin)) {
							buf = append(buf, Collision{Kind: HitTile, TileX: tx, TileY: ty, Tile: id})
							break
						}
					}
				}
			}
		}
		if !events {
			continue
		}
		if ok {
			for t := range l.TriggersIn(w.m.Width, tx0, ty0, tx1, ty1) {
				buf = append(buf, Collision{Kind: HitTrigger, Trigger: t, Handler: w.resolve(w.TriggerHandlers, "trigger", t.Name, t.Key)})
			}
		}
		for i := range l.Zones {
			z := &l.Zones[i]
			if w.hit(delta, s, z.Shape) {
				buf = append(buf, Collision{Kind: HitZone, ZoneIndex: i, Zone: z, Handler: w.resolve(w.ZoneHandlers, "zone", z.Name, z.Key)})
			}
		}
	}
	return buf
}

// hit compares a displaced subject against a target under the world's mode.
func (w *World) hit(delta geom.Vec, subject, target geom.Shape) bool {
	if w.cfg.Mode == ModeBounds && subject != nil && target != nil {
		return subject.Bounds().Offset(delta).Intersects(target.Bounds())
	}
	return geom.Overlap(delta, subject, target)
}

// resolve looks up an event handler, falling back to a placeholder that
// logs the missing entry.
func (w *World) resolve(table HandlerTable, kind, name, key string) Handler {
	if h, ok := table[key]; ok {
		return h
	}
	fn := func(w *World, a *Actor) {
		w.stats.Placeholders++
		w.log.WithFields(logrus.Fields{
			"event": kind, "name": name, "key": key, "actor": a.Name,
		}).Warn("no handler registered")
	}
	return Handler{OnPlayer: fn, OnOther: fn}
}
