// Package anvil steps a world of rigid bodies with convex hull colliders.
//
// Each World.Step scans the collider pairs with SAT, resolves the contacts
// with a warm-started sequential impulse solver and then integrates the
// bodies with semi-implicit Euler. A World is not safe for concurrent use.
package anvil

import (
	"fmt"
	"log/slog"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/collider"
	"github.com/akmonengine/anvil/constraint"
	"github.com/akmonengine/anvil/contact"
)

type World struct {
	Parameters Parameters

	// Bodies is the rigid body store, indexed by entity
	Bodies *actor.Store
	// Colliders owns the hulls referenced by the bodies
	Colliders *collider.Store
	// Contacts holds the last step's manifolds and the warm start cache
	Contacts *contact.Data
	// SpatialGrid is the broad phase, nil when disabled
	SpatialGrid *SpatialGrid

	Events Events
	Logger *slog.Logger

	colliders  map[actor.EntityID]collider.Handle
	solver     *constraint.Solver
	placements   []*placement
	scratch      []contact.Contact
	triggerPairs []contact.PairKey
}

// NewWorld creates an empty world. A nil colliders store gets a private
// one, a nil logger falls back to slog.Default.
func NewWorld(params Parameters, colliders *collider.Store, logger *slog.Logger) (*World, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if colliders == nil {
		colliders = collider.NewStore(logger)
	}

	w := &World{
		Bodies:    actor.NewStore(64),
		Colliders: colliders,
		Contacts:  contact.NewData(),
		Events:    NewEvents(),
		Logger:    logger,
		colliders: make(map[actor.EntityID]collider.Handle),
		solver:    constraint.NewSolver(logger),
	}
	if err := w.SetParameters(params); err != nil {
		return nil, err
	}

	return w, nil
}

// SetParameters validates and installs new parameters. They take effect
// on the next Step.
func (w *World) SetParameters(params Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if params.BroadPhaseCellSize > 0 {
		if w.SpatialGrid == nil || w.SpatialGrid.cellSize != params.BroadPhaseCellSize {
			w.SpatialGrid = NewSpatialGrid(params.BroadPhaseCellSize, defaultGridCells)
		}
	} else {
		w.SpatialGrid = nil
	}

	params.apply(w.solver)
	w.Parameters = params

	w.Logger.Debug("parameters set",
		slog.Int("penetration_iterations", params.PenetrationIterations),
		slog.Int("friction_iterations", params.FrictionIterations),
		slog.Float64("timestep", params.Timestep),
		slog.Float64("baumgarte", params.Baumgarte),
		slog.Float64("slop", params.Slop),
		slog.Bool("contact_caching", params.ContactCaching),
		slog.Float64("sleep_time", params.SleepTime))

	return nil
}

// AddBody registers the rigid body of an entity. The world takes over the
// caller's reference on handle and releases it in RemoveBody. A zero
// handle gives a body without collider.
func (w *World) AddBody(id actor.EntityID, body actor.RigidBody, handle collider.Handle) error {
	if _, err := w.Bodies.Add(id, body); err != nil {
		return err
	}
	if handle.IsValid() {
		w.colliders[id] = handle
	}
	return nil
}

// RemoveBody unregisters an entity, releasing its collider reference
func (w *World) RemoveBody(id actor.EntityID) error {
	if err := w.Bodies.Remove(id); err != nil {
		return err
	}

	if handle, ok := w.colliders[id]; ok {
		w.Colliders.Release(handle)
		delete(w.colliders, id)
	}
	w.Events.forget(id)

	return nil
}

// Body returns a copy of an entity's rigid body
func (w *World) Body(id actor.EntityID) (actor.RigidBody, bool) {
	return w.Bodies.Get(id)
}

// SetBody overwrites an entity's rigid body
func (w *World) SetBody(id actor.EntityID, body actor.RigidBody) error {
	return w.Bodies.Set(id, body)
}

// Transform returns the world pose of an entity
func (w *World) Transform(id actor.EntityID) (actor.Transform, bool) {
	i, ok := w.Bodies.Index(id)
	if !ok {
		return actor.Transform{}, false
	}
	return w.Bodies.Transform(i), true
}

// Collider returns the collider handle of an entity, the zero handle if it
// has none
func (w *World) Collider(id actor.EntityID) collider.Handle {
	return w.colliders[id]
}

// Step advances the world by one timestep
func (w *World) Step() {
	dt := w.Parameters.Timestep

	// ========== 1. External forces ==========
	w.applyGravity()

	// ========== 2. Narrow phase ==========
	w.Contacts.Reset()
	w.detectCollisions()
	w.Events.recordCollisions(w.Contacts)
	w.Events.recordTriggers(w.triggerPairs)

	// ========== 3. Contact resolution, cache rebuild ==========
	w.solver.Solve(w.Bodies, w.Contacts)

	// ========== 4. Integration ==========
	w.Bodies.Integrate(dt)

	// ========== 5. Sleep ==========
	w.trySleep(dt)
	w.Events.processSleepEvents(w.Bodies)

	w.Events.flush()
}

// applyGravity accumulates m*g on every awake movable body
func (w *World) applyGravity() {
	if w.Parameters.Gravity.LenSqr() == 0 {
		return
	}
	for i := range w.Bodies.Entities {
		if w.Bodies.IsInert(i) {
			continue
		}
		w.Bodies.AddForce(i, w.Parameters.Gravity.Mul(1.0/w.Bodies.InvMasses[i]))
	}
}

// trySleep puts slow bodies to sleep and wakes the sleeping bodies the
// solver set in motion. Disabled while SleepTime is 0.
func (w *World) trySleep(dt float64) {
	if w.Parameters.SleepTime <= 0 {
		return
	}
	for i := range w.Bodies.Entities {
		w.Bodies.TrySleep(i, dt, w.Parameters.SleepTime, w.Parameters.SleepVelocity)
	}
}

func (w *World) String() string {
	return fmt.Sprintf("World(bodies=%d, colliders=%d, manifolds=%d)",
		w.Bodies.Len(), len(w.colliders), len(w.Contacts.Manifolds))
}
