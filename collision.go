package anvil

import (
	"log/slog"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/contact"
	"github.com/akmonengine/anvil/halfedge"
	"github.com/akmonengine/anvil/sat"
)

// defaultGridCells is the number of hashed cells of the broad phase grid
const defaultGridCells = 4096

// placement is a collider-bearing body placed for the current step
type placement struct {
	index   int // store index
	static  bool
	trigger bool
	hull   *halfedge.Mesh
	body   *sat.Body
	bounds actor.AABB
}

// placeColliders gathers the bodies with a live collider, in store order,
// and computes their world hulls. Bodies without collider, or with a stale
// handle, take no part in the scan.
func (w *World) placeColliders() {
	w.placements = w.placements[:0]
	for i, id := range w.Bodies.Entities {
		hull := w.Colliders.Hull(w.colliders[id])
		if hull == nil {
			continue
		}
		w.placements = append(w.placements, &placement{
			index:   i,
			static:  w.Bodies.IsStatic(i),
			trigger: w.Bodies.IsTrigger(i),
			hull:    hull,
		})
	}

	task(max(DefaultWorkers, w.Parameters.Workers), w.placements, func(p *placement) {
		p.body = sat.NewBody(p.hull, w.Bodies.Transform(p.index), w.Bodies.Entities[p.index])
		p.bounds = p.body.Bounds()
	})
}

// detectCollisions fills the contact data of the step. Every candidate pair
// goes through SAT; pairs are visited in increasing store order whichever
// broad phase produced them.
func (w *World) detectCollisions() {
	w.triggerPairs = w.triggerPairs[:0]
	w.placeColliders()

	tested := 0
	if w.SpatialGrid != nil {
		w.SpatialGrid.Clear()
		for k, p := range w.placements {
			w.SpatialGrid.Insert(k, p.bounds)
		}
		w.SpatialGrid.SortCells()

		pairs := w.SpatialGrid.FindPairs(func(a, b int) bool {
			return !(w.placements[a].static && w.placements[b].static)
		})
		for _, pair := range pairs {
			w.collide(w.placements[pair.A], w.placements[pair.B])
		}
		tested = len(pairs)
	} else {
		for k, p := range w.placements {
			for _, q := range w.placements[k+1:] {
				if p.static && q.static {
					continue
				}
				if !p.bounds.Overlaps(q.bounds) {
					continue
				}
				w.collide(p, q)
				tested++
			}
		}
	}

	w.Logger.Debug("collision detection",
		slog.Int("colliders", len(w.placements)),
		slog.Int("pairs", tested),
		slog.Int("manifolds", len(w.Contacts.Manifolds)),
		slog.Int("contacts", len(w.Contacts.Contacts)),
		slog.Int("triggers", len(w.triggerPairs)))
}

// collide runs SAT on a pair and records the manifold. The body that
// supplied the reference face becomes the second body of the pair. A pair
// involving a trigger only records the overlap, the solver never sees it.
func (w *World) collide(a, b *placement) {
	kind, contacts, aIsReference := sat.Intersect(a.body, b.body, w.scratch[:0])
	w.scratch = contacts
	if kind == sat.None || len(contacts) == 0 {
		return
	}

	if a.trigger || b.trigger {
		w.triggerPairs = append(w.triggerPairs, contact.Pair{First: a.body.Entity, Second: b.body.Entity}.Key())
		return
	}

	pair := contact.Pair{First: a.body.Entity, Second: b.body.Entity}
	if aIsReference {
		pair = contact.Pair{First: b.body.Entity, Second: a.body.Entity}
	}
	w.Contacts.AddManifold(pair, contacts, kind == sat.EdgeIntersection)
}
