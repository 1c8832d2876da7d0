package halfedge

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// PlanarityTolerance bounds the distance of a face vertex to its face plane
// accepted by Validate.
const PlanarityTolerance = 1e-4

var ErrInvalidMesh = errors.New("halfedge: invalid mesh")

// Destination returns the vertex an edge points to.
func (m *Mesh) Destination(e int) int {
	return m.Edges[m.Edges[e].Next].Origin
}

// EdgeVector returns destination - origin of an edge, in local space.
func (m *Mesh) EdgeVector(e int) mgl64.Vec3 {
	return m.Vertices[m.Destination(e)].Sub(m.Vertices[m.Edges[e].Origin])
}

// Centroid returns the mean of the hull vertices.
func (m *Mesh) Centroid() mgl64.Vec3 {
	var c mgl64.Vec3
	if len(m.Vertices) == 0 {
		return c
	}
	for _, v := range m.Vertices {
		c = c.Add(v)
	}
	return c.Mul(1.0 / float64(len(m.Vertices)))
}

// IsClosed reports whether every edge has a twin.
func (m *Mesh) IsClosed() bool {
	for _, e := range m.Edges {
		if e.Twin == Invalid {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants of the mesh: twin symmetry and
// opposite direction, closed next cycles matching the face records, and
// planar faces.
func (m *Mesh) Validate() error {
	for i, e := range m.Edges {
		if e.Next < 0 || e.Next >= len(m.Edges) {
			return fmt.Errorf("%w: edge %d next %d out of range", ErrInvalidMesh, i, e.Next)
		}
		if e.Face < 0 || e.Face >= len(m.Faces) {
			return fmt.Errorf("%w: edge %d face %d out of range", ErrInvalidMesh, i, e.Face)
		}
		if e.Twin == Invalid {
			continue
		}
		twin := m.Edges[e.Twin]
		if twin.Twin != i {
			return fmt.Errorf("%w: edge %d twin %d points back to %d", ErrInvalidMesh, i, e.Twin, twin.Twin)
		}
		if twin.Origin != m.Destination(i) || m.Destination(e.Twin) != e.Origin {
			return fmt.Errorf("%w: edge %d and twin %d are not opposite", ErrInvalidMesh, i, e.Twin)
		}
	}

	for f, face := range m.Faces {
		if len(face.Edges) < 3 || len(face.Edges) != len(face.Vertices) {
			return fmt.Errorf("%w: face %d has %d edges and %d vertices", ErrInvalidMesh, f, len(face.Edges), len(face.Vertices))
		}
		start := face.Edges[0]
		e := start
		for i := range face.Edges {
			if face.Edges[i] != e || m.Edges[e].Face != f || m.Edges[e].Origin != face.Vertices[i] {
				return fmt.Errorf("%w: face %d loop diverges at position %d", ErrInvalidMesh, f, i)
			}
			e = m.Edges[e].Next
		}
		if e != start {
			return fmt.Errorf("%w: face %d loop does not close after %d edges", ErrInvalidMesh, f, len(face.Edges))
		}

		origin := m.Vertices[face.Vertices[0]]
		for _, v := range face.Vertices[1:] {
			if d := math.Abs(face.Normal.Dot(m.Vertices[v].Sub(origin))); d > PlanarityTolerance {
				return fmt.Errorf("%w: face %d vertex %d is %g off plane", ErrInvalidMesh, f, v, d)
			}
		}
	}

	return nil
}
