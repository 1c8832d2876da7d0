// Package debugdraw exports the contact state of a world for visual
// debugging: contact points, normals and the impulses the solver applied.
// It only reads the world.
package debugdraw

import (
	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/contact"
	"github.com/go-gl/mathgl/mgl64"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:                    false,
	SortMapKeys:                   true,
	MarshalFloatWith6Digits:       true,
	ObjectFieldMustBeSimpleString: true,
	CaseSensitive:                 true,
}.Froze()

// Body is the pose of one rigid body
type Body struct {
	Entity   actor.EntityID `json:"entity"`
	Position mgl64.Vec3     `json:"position"`
	Rotation [4]float64     `json:"rotation"` // x, y, z, w
	Static   bool           `json:"static,omitempty"`
}

// Point is one contact point with the impulses resolved on it
type Point struct {
	Position    mgl64.Vec3     `json:"position"`
	Normal      mgl64.Vec3     `json:"normal"`
	Penetration float64        `json:"penetration"`
	Reference   actor.EntityID `json:"reference"`
	Incident    actor.EntityID `json:"incident"`
	EdgeEdge    bool           `json:"edgeEdge,omitempty"`

	Impulse   float64 `json:"impulse"`
	FrictionU float64 `json:"frictionU"`
	FrictionV float64 `json:"frictionV"`
}

// Line is a segment to draw
type Line struct {
	From mgl64.Vec3 `json:"from"`
	To   mgl64.Vec3 `json:"to"`
}

// Snapshot is everything drawn for one frame
type Snapshot struct {
	Frame    uint64  `json:"frame"`
	Bodies   []Body  `json:"bodies"`
	Points   []Point `json:"points"`
	Normals  []Line  `json:"normals"`
	Impulses []Line  `json:"impulses"`
}

// Capture builds the snapshot of a frame. Normals are drawn normalLength
// long, impulses are drawn along the normal with their magnitude scaled by
// impulseScale.
func Capture(frame uint64, bodies *actor.Store, data *contact.Data, normalLength, impulseScale float64) Snapshot {
	s := Snapshot{
		Frame:    frame,
		Bodies:   make([]Body, 0, bodies.Len()),
		Points:   make([]Point, 0, len(data.Contacts)),
		Normals:  make([]Line, 0, len(data.Contacts)),
		Impulses: make([]Line, 0, len(data.Contacts)),
	}

	for i, id := range bodies.Entities {
		q := bodies.Rotations[i]
		s.Bodies = append(s.Bodies, Body{
			Entity:   id,
			Position: bodies.Positions[i],
			Rotation: [4]float64{q.X(), q.Y(), q.Z(), q.W},
			Static:   bodies.IsStatic(i),
		})
	}

	for _, m := range data.Manifolds {
		for i := m.FirstContact; i < m.End(); i++ {
			c := data.Contacts[i]

			var lambdas contact.Lambdas
			if i < len(data.Lambdas) {
				lambdas = data.Lambdas[i]
			}

			s.Points = append(s.Points, Point{
				Position:    c.Point,
				Normal:      c.Normal,
				Penetration: c.Penetration,
				Reference:   m.Bodies.Second,
				Incident:    m.Bodies.First,
				EdgeEdge:    m.EdgeEdge,
				Impulse:     lambdas.Penetration,
				FrictionU:   lambdas.FrictionU,
				FrictionV:   lambdas.FrictionV,
			})
			s.Normals = append(s.Normals, Line{From: c.Point, To: c.Point.Add(c.Normal.Mul(normalLength))})
			if lambdas.Penetration > 0 {
				s.Impulses = append(s.Impulses, Line{From: c.Point, To: c.Point.Add(c.Normal.Mul(lambdas.Penetration * impulseScale))})
			}
		}
	}

	return s
}

// Marshal encodes a snapshot as JSON
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal decodes a snapshot produced by Marshal
func Unmarshal(data []byte) (Snapshot, error) {
	var s Snapshot
	err := json.Unmarshal(data, &s)
	return s, err
}
