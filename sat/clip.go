package sat

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// clipTolerance keeps points lying on a side plane
const clipTolerance = 1e-6

// clipVertex is a point of the incident polygon during clipping, with the
// features that produced it: the incident edge it lies on and the reference
// edge whose side plane created it (Invalid for original vertices).
type clipVertex struct {
	position      mgl64.Vec3
	incidentEdge  int
	referenceEdge int
}

// clipIncidentAgainstReference performs Sutherland-Hodgman polygon clipping
// of the incident polygon against the side planes of a reference face.
//
// Each reference edge defines a plane containing the edge and the face
// normal, oriented toward the face center. What survives all planes is the
// part of the incident face lying over the reference face.
func clipIncidentAgainstReference(incident []clipVertex, reference *Body, face int) []clipVertex {
	refFace := reference.Hull.Faces[face]
	normal := reference.normals[face]

	var center mgl64.Vec3
	for _, v := range refFace.Vertices {
		center = center.Add(reference.vertices[v])
	}
	center = center.Mul(1.0 / float64(len(refFace.Vertices)))

	output := incident
	for _, e := range refFace.Edges {
		if len(output) == 0 {
			break
		}

		v1, v2 := reference.edgePoints(e)

		// Clipping plane normal (perpendicular to the edge, pointing inward)
		clipNormal := v2.Sub(v1).Cross(normal).Normalize()
		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		output = clipPolygonAgainstPlane(output, v1, clipNormal, e)
	}

	return output
}

// clipPolygonAgainstPlane implements Sutherland-Hodgman for a single plane
func clipPolygonAgainstPlane(polygon []clipVertex, planePoint, planeNormal mgl64.Vec3, referenceEdge int) []clipVertex {
	if len(polygon) == 0 {
		return polygon
	}

	output := make([]clipVertex, 0, len(polygon)+1)
	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentDist := current.position.Sub(planePoint).Dot(planeNormal)
		nextDist := next.position.Sub(planePoint).Dot(planeNormal)

		if currentDist >= -clipTolerance {
			output = append(output, current)

			// Current is inside, next is outside: add the exit point unless
			// current already lies on the plane
			if nextDist < -clipTolerance && currentDist > clipTolerance {
				output = append(output, clipVertex{
					position:      lineIntersectPlane(current.position, next.position, planePoint, planeNormal),
					incidentEdge:  current.incidentEdge,
					referenceEdge: referenceEdge,
				})
			}
		} else if nextDist > clipTolerance {
			// Current is outside, next is inside: add the entry point
			output = append(output, clipVertex{
				position:      lineIntersectPlane(current.position, next.position, planePoint, planeNormal),
				incidentEdge:  current.incidentEdge,
				referenceEdge: referenceEdge,
			})
		}
	}

	return output
}

// lineIntersectPlane calculates the intersection between a line segment and a plane
func lineIntersectPlane(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	dir := p2.Sub(p1)
	dist := p1.Sub(planePoint).Dot(planeNormal)
	denom := dir.Dot(planeNormal)

	if math.Abs(denom) < 1e-10 {
		return p1 // Segment parallel to plane
	}

	t := -dist / denom
	t = math.Max(0, math.Min(1, t)) // Clamp to segment

	return p1.Add(dir.Mul(t))
}

// closestPointsSegmentSegment returns the closest points between segments
// p1q1 and p2q2, clamping both parameters to the segments.
func closestPointsSegmentSegment(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	const epsilon = 1e-12

	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= epsilon && e <= epsilon:
		return p1, p2
	case a <= epsilon:
		t = clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= epsilon {
			s = clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > epsilon {
				s = clamp01((b*f - c*e) / denom)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = clamp01((b - c) / a)
			}
		}
	}

	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
