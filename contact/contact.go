// Package contact holds the per-frame collision data shared by the
// narrow phase and the constraint solver, and the cache that carries
// accumulated impulses from one step to the next.
package contact

import (
	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Identifier names the pair of hull features that produced a contact.
// It stays equal across frames as long as the same features keep touching.
type Identifier struct {
	EntityA actor.EntityID
	EntityB actor.EntityID
	EdgeA   int
	EdgeB   int
}

// Contact is one contact point. Point lies on the incident hull, Normal
// points from the reference hull toward the incident hull and Penetration
// is the depth measured along Normal.
type Contact struct {
	Point       mgl64.Vec3
	Normal      mgl64.Vec3
	Penetration float64
	ID          Identifier
}

// Pair is an ordered body pair: First generated the contact points,
// Second supplied the reference face and the normal.
type Pair struct {
	First  actor.EntityID
	Second actor.EntityID
}

// PairKey identifies a pair regardless of its order
type PairKey struct {
	Low  actor.EntityID
	High actor.EntityID
}

func (p Pair) Key() PairKey {
	if p.First <= p.Second {
		return PairKey{Low: p.First, High: p.Second}
	}
	return PairKey{Low: p.Second, High: p.First}
}

// Manifold groups the contacts of one pair. They occupy
// Contacts[FirstContact : FirstContact+ContactCount] of the owning Data.
type Manifold struct {
	Bodies       Pair
	FirstContact int
	ContactCount int
	EdgeEdge     bool
}

// End returns the index one past the manifold's last contact
func (m Manifold) End() int {
	return m.FirstContact + m.ContactCount
}

// Lambdas are the impulses accumulated on one contact during a solve
type Lambdas struct {
	Penetration float64
	FrictionU   float64
	FrictionV   float64
}

// Data is the complete contact state of one world. Contacts, Manifolds and
// Lambdas describe the current frame and are reset every step; Cache holds
// the previous frame.
type Data struct {
	Contacts  []Contact
	Manifolds []Manifold
	Lambdas   []Lambdas
	Cache     Cache
}

func NewData() *Data {
	return &Data{Cache: NewCache()}
}

// Reset drops the current frame, keeping the cache and the allocations
func (d *Data) Reset() {
	d.Contacts = d.Contacts[:0]
	d.Manifolds = d.Manifolds[:0]
	d.Lambdas = d.Lambdas[:0]
}

// AddManifold appends the contacts of a pair as one contiguous manifold,
// with zeroed lambdas, and returns the manifold index.
func (d *Data) AddManifold(bodies Pair, contacts []Contact, edgeEdge bool) int {
	m := Manifold{
		Bodies:       bodies,
		FirstContact: len(d.Contacts),
		ContactCount: len(contacts),
		EdgeEdge:     edgeEdge,
	}
	d.Contacts = append(d.Contacts, contacts...)
	for range contacts {
		d.Lambdas = append(d.Lambdas, Lambdas{})
	}
	d.Manifolds = append(d.Manifolds, m)

	return len(d.Manifolds) - 1
}

// ManifoldContacts returns the contacts of a manifold, sharing storage
func (d *Data) ManifoldContacts(m Manifold) []Contact {
	return d.Contacts[m.FirstContact:m.End()]
}

// Empty reports whether the frame has no contact
func (d *Data) Empty() bool {
	return len(d.Manifolds) == 0
}
