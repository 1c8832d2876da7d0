// Package constraint resolves contacts with a sequential impulse
// (projected Gauss-Seidel) solver.
//
// A step runs in a fixed order: Precompute, WarmStart (when contact caching
// is enabled), SolvePenetration, SolveFriction and finally the cache
// rebuild. Impulses are applied to the bodies' momenta as soon as they are
// computed, so later contacts of a sweep see the velocities produced by the
// earlier ones.
//
// In a manifold, the reference body (Pair.Second) plays the role of body A
// and the incident body (Pair.First) the role of body B: the contact normal
// points from A toward B and a positive impulse pushes B along it.
package constraint

import (
	"log/slog"
	"math"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/contact"
	"github.com/go-gl/mathgl/mgl64"
)

// massEpsilon is the effective mass under which a constraint is ignored
const massEpsilon = 1e-12

// Solver holds the resolution parameters and the per-contact data computed
// by Precompute. A Solver is reused across steps.
type Solver struct {
	PenetrationIterations int
	FrictionIterations    int
	Timestep              float64
	Baumgarte             float64
	Slop                  float64
	ContactCaching        bool

	Logger *slog.Logger

	rows       []row
	invInertia []mgl64.Mat3
}

// row is the precomputed state of one contact
type row struct {
	a, b   int // store indices, a is the reference body
	rA, rB mgl64.Vec3

	normal   mgl64.Vec3
	tangentU mgl64.Vec3
	tangentV mgl64.Vec3

	massNormal float64
	massU      float64
	massV      float64

	bias     float64
	friction float64
	skip     bool
}

func NewSolver(logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{
		PenetrationIterations: 16,
		FrictionIterations:    8,
		Timestep:              1.0 / 60.0,
		Baumgarte:             0.2,
		Slop:                  0.01,
		ContactCaching:        true,
		Logger:                logger,
	}
}

// Solve runs the whole resolution of one step on the current frame of data
// and then rebuilds the contact cache, or clears it when caching is
// disabled.
func (s *Solver) Solve(bodies *actor.Store, data *contact.Data) {
	if !data.Empty() {
		s.Precompute(bodies, data)
		if s.ContactCaching {
			s.WarmStart(bodies, data)
		}
		s.SolvePenetration(bodies, data)
		s.SolveFriction(bodies, data)
	}

	if s.ContactCaching {
		data.Cache.Rebuild(data)
	} else {
		data.Cache.Clear()
	}
}

// Precompute derives lever arms, tangents, effective masses and the bias
// of every contact. Contacts between bodies that cannot move, static or
// sleeping, are skipped.
func (s *Solver) Precompute(bodies *actor.Store, data *contact.Data) {
	s.invInertia = s.invInertia[:0]
	for i := 0; i < bodies.Len(); i++ {
		s.invInertia = append(s.invInertia, bodies.InverseInertiaWorld(i))
	}

	s.rows = s.rows[:0]
	skipped := 0

	for _, m := range data.Manifolds {
		a, okA := bodies.Index(m.Bodies.Second)
		b, okB := bodies.Index(m.Bodies.First)
		inert := okA && okB && bodies.IsInert(a) && bodies.IsInert(b)

		for k := m.FirstContact; k < m.End(); k++ {
			if !okA || !okB || inert {
				s.rows = append(s.rows, row{skip: true})
				skipped++
				continue
			}

			r := s.precomputeContact(bodies, a, b, data.Contacts[k])
			if r.skip {
				skipped++
			}
			s.rows = append(s.rows, r)
		}
	}

	if skipped > 0 {
		s.Logger.Debug("contacts skipped",
			slog.Int("skipped", skipped),
			slog.Int("contacts", len(data.Contacts)))
	}
}

func (s *Solver) precomputeContact(bodies *actor.Store, a, b int, c contact.Contact) row {
	r := row{
		a:      a,
		b:      b,
		rA:     c.Point.Sub(bodies.Positions[a]),
		rB:     c.Point.Sub(bodies.Positions[b]),
		normal: c.Normal,
	}

	// ========== 1. Effective masses ==========
	r.massNormal = effectiveMass(bodies, a, b, s.invInertia[a], s.invInertia[b], r.rA, r.rB, r.normal)
	if r.massNormal <= massEpsilon {
		r.skip = true
		return r
	}

	r.tangentU, r.tangentV = tangentBasis(r.normal)
	r.massU = effectiveMass(bodies, a, b, s.invInertia[a], s.invInertia[b], r.rA, r.rB, r.tangentU)
	r.massV = effectiveMass(bodies, a, b, s.invInertia[a], s.invInertia[b], r.rA, r.rB, r.tangentV)

	// ========== 2. Material ==========
	restitution := ComputeRestitution(bodies.Restitutions[a], bodies.Restitutions[b])
	r.friction = ComputeFriction(bodies.Frictions[a], bodies.Frictions[b])

	// ========== 3. Bias: restitution + Baumgarte stabilization ==========
	closing := r.normal.Dot(s.relativeVelocity(bodies, &r))
	r.bias = restitution*math.Min(closing, 0) + (s.Baumgarte-s.Slop)*(-c.Penetration/s.Timestep)

	return r
}

// WarmStart seeds every contact found in the previous frame's cache with
// its accumulated lambdas and applies them as an initial impulse.
func (s *Solver) WarmStart(bodies *actor.Store, data *contact.Data) {
	for _, m := range data.Manifolds {
		cached, ok := data.Cache.Find(m.Bodies)
		// a flipped reference reverses the normal, the old impulses no longer apply
		if !ok || cached.Bodies != m.Bodies {
			continue
		}

		for k := m.FirstContact; k < m.End(); k++ {
			r := &s.rows[k]
			if r.skip {
				continue
			}

			lambdas, found := data.Cache.Lookup(cached, data.Contacts[k].ID)
			if !found {
				continue
			}

			data.Lambdas[k] = lambdas
			impulse := r.normal.Mul(lambdas.Penetration).
				Add(r.tangentU.Mul(lambdas.FrictionU)).
				Add(r.tangentV.Mul(lambdas.FrictionV))
			s.applyImpulse(bodies, r, impulse)
		}
	}
}

// SolvePenetration runs the non-penetration sweeps. The accumulated normal
// impulse of a contact never becomes negative.
func (s *Solver) SolvePenetration(bodies *actor.Store, data *contact.Data) {
	for iteration := 0; iteration < s.PenetrationIterations; iteration++ {
		for k := range s.rows {
			r := &s.rows[k]
			if r.skip {
				continue
			}

			jv := r.normal.Dot(s.relativeVelocity(bodies, r))
			deltaLambda := -(jv + r.bias) / r.massNormal

			accumulated := &data.Lambdas[k].Penetration
			previous := *accumulated
			*accumulated = math.Max(previous+deltaLambda, 0)
			deltaLambda = *accumulated - previous

			s.applyImpulse(bodies, r, r.normal.Mul(deltaLambda))
		}
	}
}

// SolveFriction runs the friction sweeps along both tangents, each
// accumulated impulse clamped to ±μ·λ with λ the normal impulse of the
// contact.
func (s *Solver) SolveFriction(bodies *actor.Store, data *contact.Data) {
	for iteration := 0; iteration < s.FrictionIterations; iteration++ {
		for k := range s.rows {
			r := &s.rows[k]
			if r.skip {
				continue
			}

			limit := r.friction * data.Lambdas[k].Penetration
			s.solveTangent(bodies, r, r.tangentU, r.massU, limit, &data.Lambdas[k].FrictionU)
			s.solveTangent(bodies, r, r.tangentV, r.massV, limit, &data.Lambdas[k].FrictionV)
		}
	}
}

func (s *Solver) solveTangent(bodies *actor.Store, r *row, tangent mgl64.Vec3, mass, limit float64, accumulated *float64) {
	if mass <= massEpsilon {
		return
	}

	jv := tangent.Dot(s.relativeVelocity(bodies, r))
	deltaLambda := -jv / mass

	previous := *accumulated
	*accumulated = math.Max(-limit, math.Min(previous+deltaLambda, limit))
	deltaLambda = *accumulated - previous

	s.applyImpulse(bodies, r, tangent.Mul(deltaLambda))
}

// relativeVelocity = (vB + ωB×rB) - (vA + ωA×rA)
func (s *Solver) relativeVelocity(bodies *actor.Store, r *row) mgl64.Vec3 {
	omegaA := s.invInertia[r.a].Mul3x1(bodies.AngularMomenta[r.a])
	omegaB := s.invInertia[r.b].Mul3x1(bodies.AngularMomenta[r.b])

	vA := bodies.LinearVelocity(r.a).Add(omegaA.Cross(r.rA))
	vB := bodies.LinearVelocity(r.b).Add(omegaB.Cross(r.rB))

	return vB.Sub(vA)
}

// applyImpulse pushes B along impulse and A the opposite way
func (s *Solver) applyImpulse(bodies *actor.Store, r *row, impulse mgl64.Vec3) {
	bodies.ApplyImpulse(r.b, impulse, r.rB)
	bodies.ApplyImpulse(r.a, impulse.Mul(-1), r.rA)
}
