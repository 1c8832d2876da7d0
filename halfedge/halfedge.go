// Package halfedge builds the half-edge boundary representation used by the
// convex collision pipeline.
//
// A hull is built once from a triangle soup and is immutable afterwards, so a
// single Mesh can be shared by every body that uses the same collider asset.
//
// Construction runs in five passes:
//  1. One half-edge per triangle edge, with no twin.
//  2. Twin pairing on unordered vertex pairs.
//  3. Coplanar face merging: faces whose normals agree are fused into one
//     convex polygon and the shared edges are dissolved.
//  4. Co-linear edge merging: redundant vertices lying on a straight edge
//     between two faces are removed.
//  5. Compaction of the vertex, edge and face arrays.
//
// The input is expected to be consistently wound (counter-clockwise seen
// from outside). Open soups are accepted: an edge without a matching
// opposite edge stays a boundary edge with an Invalid twin. Only the
// violations that would corrupt the topology are reported as errors.
package halfedge

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Invalid marks a missing index (boundary edge without twin, removed element).
const Invalid = -1

const (
	// CoplanarTolerance is the per-component tolerance used to decide that
	// two face normals are equal.
	CoplanarTolerance = 1e-5

	// ColinearTolerance is the per-component tolerance used to decide that
	// two consecutive edge directions are parallel.
	ColinearTolerance = 1e-3

	// degenerateArea rejects triangles too thin to carry a usable normal.
	degenerateArea = 1e-12
)

var (
	ErrDegenerateInput     = errors.New("halfedge: degenerate input")
	ErrIndexOutOfRange     = errors.New("halfedge: vertex index out of range")
	ErrNonManifold         = errors.New("halfedge: non-manifold edge")
	ErrInconsistentWinding = errors.New("halfedge: inconsistent triangle winding")
)

// Edge is a directed half-edge. Origin is the vertex it leaves from, Next
// is the following edge of the same face loop.
type Edge struct {
	Next   int
	Twin   int
	Face   int
	Origin int
}

// Face lists a polygon's edges and vertices in counter-clockwise order, so
// that Edges[i] leaves Vertices[i]. Normal is in the hull's local space.
type Face struct {
	Edges    []int
	Vertices []int
	Normal   mgl64.Vec3
}

// Mesh is an optimized half-edge hull.
type Mesh struct {
	Vertices []mgl64.Vec3
	Edges    []Edge
	Faces    []Face
}

// Build constructs an optimized half-edge mesh from a triangle soup.
func Build(vertices []mgl64.Vec3, triangles [][3]int) (*Mesh, error) {
	if len(triangles) == 0 {
		return nil, fmt.Errorf("%w: no triangles over %d vertices", ErrDegenerateInput, len(vertices))
	}

	b := newBuilder(vertices, len(triangles))
	if err := b.createEdges(triangles); err != nil {
		return nil, err
	}
	if err := b.pairTwins(); err != nil {
		return nil, err
	}
	if err := b.mergeCoplanarFaces(); err != nil {
		return nil, err
	}
	b.mergeColinearEdges()

	return b.compact(), nil
}

type builder struct {
	vertices []mgl64.Vec3
	edges    []Edge
	deleted  []bool

	// faceEdge holds one surviving edge per face, Invalid once a face has
	// been merged into another one.
	faceEdge []int
	normals  []mgl64.Vec3
}

func newBuilder(vertices []mgl64.Vec3, triangleCount int) *builder {
	return &builder{
		vertices: vertices,
		edges:    make([]Edge, 0, 3*triangleCount),
		deleted:  make([]bool, 3*triangleCount),
		faceEdge: make([]int, 0, triangleCount),
		normals:  make([]mgl64.Vec3, 0, triangleCount),
	}
}

func (b *builder) createEdges(triangles [][3]int) error {
	for t, tri := range triangles {
		for _, v := range tri {
			if v < 0 || v >= len(b.vertices) {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrIndexOutOfRange, t, v, len(b.vertices))
			}
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[2] == tri[0] {
			return fmt.Errorf("%w: triangle %d repeats a vertex %v", ErrDegenerateInput, t, tri)
		}

		first := len(b.edges)
		for i := 0; i < 3; i++ {
			b.edges = append(b.edges, Edge{
				Next:   first + (i+1)%3,
				Twin:   Invalid,
				Face:   t,
				Origin: tri[i],
			})
		}
		b.faceEdge = append(b.faceEdge, first)

		p0, p1, p2 := b.vertices[tri[0]], b.vertices[tri[1]], b.vertices[tri[2]]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		if n.Len() < degenerateArea {
			// A zero normal never compares equal to a real one, so the
			// sliver is kept as its own face.
			b.normals = append(b.normals, mgl64.Vec3{})
		} else {
			b.normals = append(b.normals, n.Normalize())
		}
	}

	return nil
}

type vertexPair struct {
	lo, hi int
}

func makeVertexPair(a, c int) vertexPair {
	if c < a {
		a, c = c, a
	}
	return vertexPair{lo: a, hi: c}
}

func (b *builder) pairTwins() error {
	groups := make(map[vertexPair][]int, len(b.edges))
	for i, e := range b.edges {
		key := makeVertexPair(e.Origin, b.destination(i))
		groups[key] = append(groups[key], i)
	}

	for key, group := range groups {
		switch len(group) {
		case 1:
			// boundary edge
		case 2:
			a, c := group[0], group[1]
			if b.edges[a].Origin == b.edges[c].Origin {
				return fmt.Errorf("%w: edges %d and %d both run %d->%d", ErrInconsistentWinding, a, c, b.edges[a].Origin, b.destination(a))
			}
			b.edges[a].Twin = c
			b.edges[c].Twin = a
		default:
			return fmt.Errorf("%w: %d half-edges share vertices (%d,%d)", ErrNonManifold, len(group), key.lo, key.hi)
		}
	}

	return nil
}

func (b *builder) destination(e int) int {
	return b.edges[b.edges[e].Next].Origin
}

// mergeCoplanarFaces groups faces connected through an edge whose two sides
// share the same normal, dissolves the edges interior to each group and
// relinks the remaining boundary into one loop per group.
func (b *builder) mergeCoplanarFaces() error {
	parent := make([]int, len(b.faceEdge))
	for i := range parent {
		parent[i] = i
	}
	find := func(f int) int {
		for parent[f] != f {
			parent[f] = parent[parent[f]]
			f = parent[f]
		}
		return f
	}

	for e, edge := range b.edges {
		if edge.Twin == Invalid || edge.Twin < e {
			continue
		}
		fa, fb := edge.Face, b.edges[edge.Twin].Face
		if !sameNormal(b.normals[fa], b.normals[fb]) {
			continue
		}
		ra, rb := find(fa), find(fb)
		if ra == rb {
			continue
		}
		// The smallest index becomes the root so the output order only
		// depends on the input order.
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	merged := false
	for e, edge := range b.edges {
		if edge.Twin == Invalid {
			continue
		}
		if find(edge.Face) == find(b.edges[edge.Twin].Face) {
			b.deleted[e] = true
			merged = true
		}
	}
	if !merged {
		return nil
	}

	// Walk forward through next and, whenever the next edge was dissolved,
	// rotate around the shared vertex through twin-of-next until a
	// surviving boundary edge of the same group is found.
	next := make([]int, len(b.edges))
	for e := range b.edges {
		if b.deleted[e] {
			continue
		}
		n := b.edges[e].Next
		for steps := 0; b.deleted[n]; steps++ {
			if steps > len(b.edges) {
				return fmt.Errorf("%w: face loop through edge %d does not close", ErrNonManifold, e)
			}
			n = b.edges[b.edges[n].Twin].Next
		}
		next[e] = n
	}

	for f := range b.faceEdge {
		b.faceEdge[f] = Invalid
	}
	for e := range b.edges {
		if b.deleted[e] {
			continue
		}
		root := find(b.edges[e].Face)
		b.edges[e].Next = next[e]
		b.edges[e].Face = root
		if b.faceEdge[root] == Invalid {
			b.faceEdge[root] = e
		}
	}

	return nil
}

// mergeColinearEdges removes a vertex shared by exactly two faces when the
// two edges meeting there on one face are parallel. The edge pair on each
// side collapses into a single edge.
func (b *builder) mergeColinearEdges() {
	for changed := true; changed; {
		changed = false

		for e := range b.edges {
			if b.deleted[e] {
				continue
			}
			n := b.edges[e].Next
			te, tn := b.edges[e].Twin, b.edges[n].Twin
			if n == e || te == Invalid || tn == Invalid {
				continue
			}
			face, opposite := b.edges[e].Face, b.edges[te].Face
			if face == opposite || b.edges[tn].Face != opposite || b.edges[tn].Next != te {
				continue
			}
			if b.loopLength(e) <= 3 || b.loopLength(te) <= 3 {
				continue
			}
			if !withinTolerance(b.direction(e), b.direction(n), ColinearTolerance) {
				continue
			}

			b.edges[e].Next = b.edges[n].Next
			b.edges[tn].Next = b.edges[te].Next
			b.edges[e].Twin = tn
			b.edges[tn].Twin = e
			b.deleted[n] = true
			b.deleted[te] = true

			if b.faceEdge[face] == n {
				b.faceEdge[face] = e
			}
			if b.faceEdge[opposite] == te {
				b.faceEdge[opposite] = tn
			}
			changed = true
		}
	}
}

func (b *builder) loopLength(e int) int {
	count := 1
	for n := b.edges[e].Next; n != e; n = b.edges[n].Next {
		count++
		if count > len(b.edges) {
			break
		}
	}
	return count
}

func (b *builder) direction(e int) mgl64.Vec3 {
	d := b.vertices[b.destination(e)].Sub(b.vertices[b.edges[e].Origin])
	if d.Len() < degenerateArea {
		return mgl64.Vec3{}
	}
	return d.Normalize()
}

// compact drops every removed element and remaps the surviving indices.
func (b *builder) compact() *Mesh {
	edgeAlive := make([]bool, len(b.edges))
	vertexAlive := make([]bool, len(b.vertices))
	faceAlive := make([]bool, len(b.faceEdge))
	for e, edge := range b.edges {
		if b.deleted[e] {
			continue
		}
		edgeAlive[e] = true
		vertexAlive[edge.Origin] = true
	}
	for f, e := range b.faceEdge {
		faceAlive[f] = e != Invalid
	}

	edgeMap := subtractionMap(edgeAlive)
	vertexMap := subtractionMap(vertexAlive)
	faceMap := subtractionMap(faceAlive)

	mesh := &Mesh{}
	for v, alive := range vertexAlive {
		if alive {
			mesh.Vertices = append(mesh.Vertices, b.vertices[v])
		}
	}
	for e, alive := range edgeAlive {
		if !alive {
			continue
		}
		edge := b.edges[e]
		twin := Invalid
		if edge.Twin != Invalid {
			twin = edgeMap[edge.Twin]
		}
		mesh.Edges = append(mesh.Edges, Edge{
			Next:   edgeMap[edge.Next],
			Twin:   twin,
			Face:   faceMap[edge.Face],
			Origin: vertexMap[edge.Origin],
		})
	}
	for f, alive := range faceAlive {
		if !alive {
			continue
		}
		start := edgeMap[b.faceEdge[f]]
		face := Face{}
		e := start
		for {
			face.Edges = append(face.Edges, e)
			face.Vertices = append(face.Vertices, mesh.Edges[e].Origin)
			e = mesh.Edges[e].Next
			if e == start || len(face.Edges) > len(mesh.Edges) {
				break
			}
		}
		face.Normal = newellNormal(mesh.Vertices, face.Vertices)
		mesh.Faces = append(mesh.Faces, face)
	}

	return mesh
}

// subtractionMap turns a liveness mask into an old->new index map using the
// running count of removed elements. Dead elements map to Invalid.
func subtractionMap(alive []bool) []int {
	mapping := make([]int, len(alive))
	removed := 0
	for i, ok := range alive {
		if !ok {
			mapping[i] = Invalid
			removed++
			continue
		}
		mapping[i] = i - removed
	}
	return mapping
}

func sameNormal(a, c mgl64.Vec3) bool {
	if a.Len() == 0 || c.Len() == 0 {
		return false
	}
	return withinTolerance(a, c, CoplanarTolerance)
}

func withinTolerance(a, c mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a[0]-c[0]) <= tolerance &&
		math.Abs(a[1]-c[1]) <= tolerance &&
		math.Abs(a[2]-c[2]) <= tolerance
}

// newellNormal computes a polygon normal robust to co-linear vertices.
func newellNormal(vertices []mgl64.Vec3, loop []int) mgl64.Vec3 {
	var n mgl64.Vec3
	for i := range loop {
		cur := vertices[loop[i]]
		nxt := vertices[loop[(i+1)%len(loop)]]
		n[0] += (cur.Y() - nxt.Y()) * (cur.Z() + nxt.Z())
		n[1] += (cur.Z() - nxt.Z()) * (cur.X() + nxt.X())
		n[2] += (cur.X() - nxt.X()) * (cur.Y() + nxt.Y())
	}
	if n.Len() < degenerateArea {
		return mgl64.Vec3{}
	}
	return n.Normalize()
}
