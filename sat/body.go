package sat

import (
	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/halfedge"
	"github.com/go-gl/mathgl/mgl64"
)

// Body is a hull placed in the world. The world-space vertices, face
// normals and centroid are computed once by NewBody so a body can be tested
// against many others in the same step.
type Body struct {
	Hull      *halfedge.Mesh
	Transform actor.Transform
	Entity    actor.EntityID

	vertices []mgl64.Vec3
	normals  []mgl64.Vec3
	centroid mgl64.Vec3
}

func NewBody(hull *halfedge.Mesh, transform actor.Transform, entity actor.EntityID) *Body {
	b := &Body{
		Hull:      hull,
		Transform: transform,
		Entity:    entity,
		vertices:  make([]mgl64.Vec3, len(hull.Vertices)),
		normals:   make([]mgl64.Vec3, len(hull.Faces)),
	}

	for i, v := range hull.Vertices {
		b.vertices[i] = transform.Apply(v)
		b.centroid = b.centroid.Add(b.vertices[i])
	}
	if len(b.vertices) > 0 {
		b.centroid = b.centroid.Mul(1.0 / float64(len(b.vertices)))
	}
	for i, f := range hull.Faces {
		b.normals[i] = transform.ApplyDirection(f.Normal)
	}

	return b
}

// Bounds returns the world AABB of the placed hull
func (b *Body) Bounds() actor.AABB {
	return actor.AABBFromPoints(b.Hull.Vertices, b.Transform)
}

// Vertex returns a hull vertex in world space
func (b *Body) Vertex(v int) mgl64.Vec3 {
	return b.vertices[v]
}

// FaceNormal returns a face normal in world space
func (b *Body) FaceNormal(f int) mgl64.Vec3 {
	return b.normals[f]
}

// facePoint returns a point on the plane of face f
func (b *Body) facePoint(f int) mgl64.Vec3 {
	return b.vertices[b.Hull.Faces[f].Vertices[0]]
}

// edgePoints returns the world endpoints of edge e
func (b *Body) edgePoints(e int) (mgl64.Vec3, mgl64.Vec3) {
	return b.vertices[b.Hull.Edges[e].Origin], b.vertices[b.Hull.Destination(e)]
}

// support returns the vertex index furthest along direction
func (b *Body) support(direction mgl64.Vec3) int {
	best := 0
	bestProjection := b.vertices[0].Dot(direction)
	for i := 1; i < len(b.vertices); i++ {
		if p := b.vertices[i].Dot(direction); p > bestProjection {
			best, bestProjection = i, p
		}
	}
	return best
}
