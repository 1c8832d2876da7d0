// Package sat tests two convex hulls for intersection with the separating
// axis theorem and builds the contact manifold of intersecting pairs.
//
// Candidate axes are the face normals of both hulls and the cross products
// of edge pairs whose Gauss map arcs intersect (the edge pairs that build a
// face of the Minkowski difference). The least separating axis decides the
// contact type:
//   - a face axis gives a face contact: the most anti-parallel face of the
//     other hull is clipped against the side planes of the reference face,
//     one contact per clipped vertex below the reference plane.
//   - an edge axis gives an edge contact: one contact at the closest points
//     of the two edges.
//
// Face axes are preferred over edge axes, and the first hull's faces over
// the second's, unless the other axis separates noticeably more.
package sat

import (
	"math"

	"github.com/akmonengine/anvil/contact"
	"github.com/akmonengine/anvil/halfedge"
	"github.com/go-gl/mathgl/mgl64"
)

type IntersectionType int

const (
	None IntersectionType = iota
	FaceIntersection
	EdgeIntersection
)

func (t IntersectionType) String() string {
	switch t {
	case FaceIntersection:
		return "FaceIntersection"
	case EdgeIntersection:
		return "EdgeIntersection"
	default:
		return "None"
	}
}

const (
	// relEdgeTolerance and relFaceTolerance scale the separation of the
	// challenging axis before it may replace the preferred one.
	relEdgeTolerance = 0.90
	relFaceTolerance = 0.98
	absTolerance     = 0.0025

	// parallelTolerance rejects edge pairs whose cross product is too short
	// relative to the edge lengths.
	parallelTolerance = 0.005
)

type faceQuery struct {
	face       int
	separation float64
}

type edgeQuery struct {
	edgeA      int
	edgeB      int
	separation float64
	normal     mgl64.Vec3
}

// Intersect tests a against b. On intersection the contacts are appended to
// out and the extended slice is returned, along with whether a supplied the
// reference face (and so the contact normal). Contacts always lie on the
// incident hull and their normal points from the reference hull toward the
// incident one.
func Intersect(a, b *Body, out []contact.Contact) (IntersectionType, []contact.Contact, bool) {
	if len(a.vertices) == 0 || len(b.vertices) == 0 {
		return None, out, false
	}

	queryA := queryFaceDirections(a, b)
	if queryA.separation > 0 {
		return None, out, false
	}

	queryB := queryFaceDirections(b, a)
	if queryB.separation > 0 {
		return None, out, false
	}

	queryEdge := queryEdgeDirections(a, b)
	if queryEdge.separation > 0 {
		return None, out, false
	}

	if relEdgeTolerance*queryEdge.separation > math.Max(queryA.separation, queryB.separation)+absTolerance {
		return EdgeIntersection, createEdgeContact(a, b, queryEdge, out), true
	}

	if relFaceTolerance*queryB.separation > queryA.separation+absTolerance {
		return FaceIntersection, createFaceContact(b, a, queryB, out, false), false
	}
	return FaceIntersection, createFaceContact(a, b, queryA, out, true), true
}

// queryFaceDirections returns the face of reference with the largest
// separation from other. The separation of a face is the signed distance of
// the deepest vertex of other below its plane.
func queryFaceDirections(reference, other *Body) faceQuery {
	best := faceQuery{face: halfedge.Invalid, separation: math.Inf(-1)}

	for f := range reference.Hull.Faces {
		normal := reference.normals[f]
		deepest := other.vertices[other.support(normal.Mul(-1))]
		separation := normal.Dot(deepest.Sub(reference.facePoint(f)))

		if separation > best.separation {
			best = faceQuery{face: f, separation: separation}
		}
	}

	return best
}

// queryEdgeDirections returns the edge pair with the largest separation
// among the pairs that form a face of the Minkowski difference.
func queryEdgeDirections(a, b *Body) edgeQuery {
	best := edgeQuery{edgeA: halfedge.Invalid, edgeB: halfedge.Invalid, separation: math.Inf(-1)}

	for ea, edgeA := range a.Hull.Edges {
		// each undirected edge once, boundary edges have no Gauss map arc
		if edgeA.Twin == halfedge.Invalid || edgeA.Twin < ea {
			continue
		}
		pA, qA := a.edgePoints(ea)
		dA := qA.Sub(pA)
		uA := a.normals[edgeA.Face]
		vA := a.normals[a.Hull.Edges[edgeA.Twin].Face]

		for eb, edgeB := range b.Hull.Edges {
			if edgeB.Twin == halfedge.Invalid || edgeB.Twin < eb {
				continue
			}
			uB := b.normals[edgeB.Face]
			vB := b.normals[b.Hull.Edges[edgeB.Twin].Face]

			if !isMinkowskiFace(uA, vA, uB.Mul(-1), vB.Mul(-1)) {
				continue
			}

			pB, qB := b.edgePoints(eb)
			separation, normal, ok := project(pA, dA, pB, qB.Sub(pB), a.centroid)
			if ok && separation > best.separation {
				best = edgeQuery{edgeA: ea, edgeB: eb, separation: separation, normal: normal}
			}
		}
	}

	return best
}

// isMinkowskiFace reports whether the Gauss map arcs (a,b) and (c,d)
// intersect on the unit sphere.
func isMinkowskiFace(a, b, c, d mgl64.Vec3) bool {
	bxa := b.Cross(a)
	dxc := d.Cross(c)

	cba := c.Dot(bxa)
	dba := d.Dot(bxa)
	adc := a.Dot(dxc)
	bdc := b.Dot(dxc)

	return cba*dba < 0 && adc*bdc < 0 && cba*bdc > 0
}

// project returns the distance between two edges along their common
// normal, oriented away from centroidA. Near-parallel edges are rejected.
func project(pA, dA, pB, dB, centroidA mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	axis := dA.Cross(dB)
	length := axis.Len()
	if length < parallelTolerance*math.Sqrt(dA.LenSqr()*dB.LenSqr()) {
		return 0, mgl64.Vec3{}, false
	}

	normal := axis.Mul(1.0 / length)
	if normal.Dot(pA.Sub(centroidA)) < 0 {
		normal = normal.Mul(-1)
	}

	return normal.Dot(pB.Sub(pA)), normal, true
}

// createEdgeContact emits a single contact at the closest points of the two
// edges. The normal points from a toward b, so a is the reference.
func createEdgeContact(a, b *Body, query edgeQuery, out []contact.Contact) []contact.Contact {
	pA, qA := a.edgePoints(query.edgeA)
	pB, qB := b.edgePoints(query.edgeB)
	_, onB := closestPointsSegmentSegment(pA, qA, pB, qB)

	return append(out, contact.Contact{
		Point:       onB,
		Normal:      query.normal,
		Penetration: -query.separation,
		ID: contact.Identifier{
			EntityA: a.Entity,
			EntityB: b.Entity,
			EdgeA:   query.edgeA,
			EdgeB:   query.edgeB,
		},
	})
}

// createFaceContact clips the incident face of incident against the
// reference face found by query. referenceIsA tells which of the two bodies
// was passed as a to Intersect, so identifiers keep a stable order.
func createFaceContact(reference, incident *Body, query faceQuery, out []contact.Contact, referenceIsA bool) []contact.Contact {
	normal := reference.normals[query.face]
	planePoint := reference.facePoint(query.face)

	incidentFace := findIncidentFace(incident, normal)
	polygon := make([]clipVertex, 0, 2*len(incident.Hull.Faces[incidentFace].Vertices))
	for i, v := range incident.Hull.Faces[incidentFace].Vertices {
		polygon = append(polygon, clipVertex{
			position:      incident.vertices[v],
			incidentEdge:  incident.Hull.Faces[incidentFace].Edges[i],
			referenceEdge: halfedge.Invalid,
		})
	}

	clipped := clipIncidentAgainstReference(polygon, reference, query.face)

	makeContact := func(position mgl64.Vec3, penetration float64, incidentEdge, referenceEdge int) contact.Contact {
		c := contact.Contact{Point: position, Normal: normal, Penetration: penetration}
		if referenceIsA {
			c.ID = contact.Identifier{EntityA: reference.Entity, EntityB: incident.Entity, EdgeA: referenceEdge, EdgeB: incidentEdge}
		} else {
			c.ID = contact.Identifier{EntityA: incident.Entity, EntityB: reference.Entity, EdgeA: incidentEdge, EdgeB: referenceEdge}
		}
		return c
	}

	count := len(out)
	for _, cv := range clipped {
		distance := normal.Dot(cv.position.Sub(planePoint))
		if distance <= 0 {
			out = append(out, makeContact(cv.position, -distance, cv.incidentEdge, cv.referenceEdge))
		}
	}

	// Clipping removed every point: fall back to the deepest incident vertex
	if len(out) == count {
		deepest := incident.support(normal.Mul(-1))
		out = append(out, makeContact(incident.vertices[deepest], -query.separation, halfedge.Invalid, halfedge.Invalid))
	}

	return out
}

// findIncidentFace returns the face of incident most anti-parallel to the
// reference normal
func findIncidentFace(incident *Body, referenceNormal mgl64.Vec3) int {
	best := 0
	bestDot := math.Inf(1)
	for f, n := range incident.normals {
		if d := n.Dot(referenceNormal); d < bestDot {
			best, bestDot = f, d
		}
	}
	return best
}
