package sat

import (
	"math"
	"testing"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/contact"
	"github.com/akmonengine/anvil/halfedge"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitCube(t *testing.T) *halfedge.Mesh {
	t.Helper()
	vertices, triangles := halfedge.BoxSoup(mgl64.Vec3{0.5, 0.5, 0.5})
	mesh, err := halfedge.Build(vertices, triangles)
	require.NoError(t, err)
	return mesh
}

func place(hull *halfedge.Mesh, entity actor.EntityID, position mgl64.Vec3, rotation mgl64.Quat) *Body {
	return NewBody(hull, actor.Transform{Position: position, Rotation: rotation}, entity)
}

func assertVecNear(t *testing.T, want, got mgl64.Vec3, delta float64, msgAndArgs ...any) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], got[i], delta, msgAndArgs...)
	}
}

func TestIntersect_Separated(t *testing.T) {
	cube := unitCube(t)
	identity := mgl64.QuatIdent()

	tests := []struct {
		name     string
		position mgl64.Vec3
		rotation mgl64.Quat
	}{
		{"along X", mgl64.Vec3{1.5, 0, 0}, identity},
		{"ten units apart", mgl64.Vec3{10, 0, 0}, identity},
		{"diagonal gap", mgl64.Vec3{1.01, 1.01, 1.01}, identity},
		{"rotated above", mgl64.Vec3{0, 1.3, 0}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{1, 0, 0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := place(cube, 1, mgl64.Vec3{}, identity)
			b := place(cube, 2, tt.position, tt.rotation)

			kind, contacts, _ := Intersect(a, b, nil)
			assert.Equal(t, None, kind)
			assert.Empty(t, contacts)
		})
	}
}

func TestIntersect_StackedCubesFaceContact(t *testing.T) {
	cube := unitCube(t)
	a := place(cube, 1, mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent())
	b := place(cube, 2, mgl64.Vec3{0, 0.9, 0}, mgl64.QuatIdent())

	kind, contacts, aIsReference := Intersect(a, b, nil)

	require.Equal(t, FaceIntersection, kind)
	assert.True(t, aIsReference, "equal depths keep the first hull as reference")
	require.Len(t, contacts, 4)
	for i, c := range contacts {
		assertVecNear(t, mgl64.Vec3{0, 1, 0}, c.Normal, 1e-9, "contact %d", i)
		assert.InDelta(t, 0.1, c.Penetration, 1e-9, "contact %d", i)
		assert.InDelta(t, 0.4, c.Point.Y(), 1e-9, "contact %d lies on the incident face", i)
		assert.InDelta(t, 0.5, math.Abs(c.Point.X()), 1e-9, "contact %d", i)
		assert.InDelta(t, 0.5, math.Abs(c.Point.Z()), 1e-9, "contact %d", i)
		assert.Equal(t, actor.EntityID(1), c.ID.EntityA)
		assert.Equal(t, actor.EntityID(2), c.ID.EntityB)
	}
}

func TestIntersect_SwappedOrderFlipsReference(t *testing.T) {
	cube := unitCube(t)
	a := place(cube, 1, mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent())
	b := place(cube, 2, mgl64.Vec3{0, 0.9, 0}, mgl64.QuatIdent())

	kind, contacts, bIsReference := Intersect(b, a, nil)

	require.Equal(t, FaceIntersection, kind)
	assert.True(t, bIsReference)
	require.Len(t, contacts, 4)
	for _, c := range contacts {
		assertVecNear(t, mgl64.Vec3{0, -1, 0}, c.Normal, 1e-9)
		assert.InDelta(t, 0.5, c.Point.Y(), 1e-9)
		assert.Equal(t, actor.EntityID(2), c.ID.EntityA)
	}
}

func TestIntersect_MinimumOverlapAxis(t *testing.T) {
	cube := unitCube(t)
	a := place(cube, 1, mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent())
	b := place(cube, 2, mgl64.Vec3{0.95, 0.5, 0}, mgl64.QuatIdent())

	kind, contacts, aIsReference := Intersect(a, b, nil)

	require.Equal(t, FaceIntersection, kind)
	assert.True(t, aIsReference)
	require.Len(t, contacts, 4)
	for _, c := range contacts {
		assertVecNear(t, mgl64.Vec3{1, 0, 0}, c.Normal, 1e-9)
		assert.InDelta(t, 0.05, c.Penetration, 1e-9)
		// clipped to the overlap of the two side faces
		assert.GreaterOrEqual(t, c.Point.Y(), -1e-9)
		assert.LessOrEqual(t, c.Point.Y(), 0.5+1e-9)
	}
}

func TestIntersect_PartialOverlapIsClipped(t *testing.T) {
	cube := unitCube(t)
	a := place(cube, 1, mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent())
	b := place(cube, 2, mgl64.Vec3{0.5, 0.9, 0.25}, mgl64.QuatIdent())

	_, contacts, _ := Intersect(a, b, nil)

	require.Len(t, contacts, 4)
	for _, c := range contacts {
		assert.GreaterOrEqual(t, c.Point.X(), -1e-9)
		assert.LessOrEqual(t, c.Point.X(), 0.5+1e-9)
		assert.GreaterOrEqual(t, c.Point.Z(), -0.25-1e-9)
		assert.LessOrEqual(t, c.Point.Z(), 0.5+1e-9)
	}
}

func TestIntersect_CrossedRidgesEdgeContact(t *testing.T) {
	cube := unitCube(t)
	a := place(cube, 1, mgl64.Vec3{0, 0, 0}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1}))
	b := place(cube, 2, mgl64.Vec3{0, 1.4, 0}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{1, 0, 0}))

	kind, contacts, aIsReference := Intersect(a, b, nil)

	require.Equal(t, EdgeIntersection, kind)
	assert.True(t, aIsReference)
	require.Len(t, contacts, 1)

	c := contacts[0]
	assertVecNear(t, mgl64.Vec3{0, 1, 0}, c.Normal, 1e-9)
	assert.InDelta(t, math.Sqrt2-1.4, c.Penetration, 1e-9)
	assertVecNear(t, mgl64.Vec3{0, 1.4 - math.Sqrt2/2, 0}, c.Point, 1e-9)
	assert.NotEqual(t, halfedge.Invalid, c.ID.EdgeA)
	assert.NotEqual(t, halfedge.Invalid, c.ID.EdgeB)
}

func TestIntersect_IdentifiersStableAcrossFrames(t *testing.T) {
	cube := unitCube(t)
	a := place(cube, 1, mgl64.Vec3{}, mgl64.QuatIdent())

	_, first, _ := Intersect(a, place(cube, 2, mgl64.Vec3{0, 0.9, 0}, mgl64.QuatIdent()), nil)
	_, second, _ := Intersect(a, place(cube, 2, mgl64.Vec3{0, 0.88, 0}, mgl64.QuatIdent()), nil)

	require.Len(t, first, 4)
	require.Len(t, second, 4)

	ids := map[contact.Identifier]bool{}
	for _, c := range first {
		ids[c.ID] = true
	}
	assert.Len(t, ids, 4, "identifiers must be unique within a manifold")
	for _, c := range second {
		assert.True(t, ids[c.ID], "identifier %+v not found in previous frame", c.ID)
	}
}

func TestIntersect_AppendsToOutput(t *testing.T) {
	cube := unitCube(t)
	a := place(cube, 1, mgl64.Vec3{}, mgl64.QuatIdent())
	b := place(cube, 2, mgl64.Vec3{0, 0.9, 0}, mgl64.QuatIdent())

	out := []contact.Contact{{Penetration: 42}}
	_, out, _ = Intersect(a, b, out)

	require.Len(t, out, 5)
	assert.Equal(t, 42.0, out[0].Penetration)
}

func TestIntersectionType_String(t *testing.T) {
	assert.Equal(t, "None", None.String())
	assert.Equal(t, "FaceIntersection", FaceIntersection.String())
	assert.Equal(t, "EdgeIntersection", EdgeIntersection.String())
}

func TestIsMinkowskiFace(t *testing.T) {
	c := math.Sqrt2 / 2

	// crossing arcs through +Y
	assert.True(t, isMinkowskiFace(
		mgl64.Vec3{c, c, 0}, mgl64.Vec3{-c, c, 0},
		mgl64.Vec3{0, c, c}, mgl64.Vec3{0, c, -c},
	))
	// arcs on opposite hemispheres
	assert.False(t, isMinkowskiFace(
		mgl64.Vec3{c, c, 0}, mgl64.Vec3{-c, c, 0},
		mgl64.Vec3{0, -c, c}, mgl64.Vec3{0, -c, -c},
	))
	// arcs only touching at an endpoint
	assert.False(t, isMinkowskiFace(
		mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1},
		mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{0, 1, 0},
	))
}

func TestClosestPointsSegmentSegment(t *testing.T) {
	tests := []struct {
		name           string
		p1, q1, p2, q2 mgl64.Vec3
		want1, want2   mgl64.Vec3
	}{
		{
			name: "crossing",
			p1:   mgl64.Vec3{-1, 0, 0}, q1: mgl64.Vec3{1, 0, 0},
			p2: mgl64.Vec3{0, 1, -1}, q2: mgl64.Vec3{0, 1, 1},
			want1: mgl64.Vec3{0, 0, 0}, want2: mgl64.Vec3{0, 1, 0},
		},
		{
			name: "clamped to endpoints",
			p1:   mgl64.Vec3{0, 0, 0}, q1: mgl64.Vec3{1, 0, 0},
			p2: mgl64.Vec3{2, 1, 0}, q2: mgl64.Vec3{3, 1, 0},
			want1: mgl64.Vec3{1, 0, 0}, want2: mgl64.Vec3{2, 1, 0},
		},
		{
			name: "point and segment",
			p1:   mgl64.Vec3{0.5, 2, 0}, q1: mgl64.Vec3{0.5, 2, 0},
			p2: mgl64.Vec3{0, 0, 0}, q2: mgl64.Vec3{1, 0, 0},
			want1: mgl64.Vec3{0.5, 2, 0}, want2: mgl64.Vec3{0.5, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c1, c2 := closestPointsSegmentSegment(tt.p1, tt.q1, tt.p2, tt.q2)
			assertVecNear(t, tt.want1, c1, 1e-12)
			assertVecNear(t, tt.want2, c2, 1e-12)
		})
	}
}

func TestBody_Bounds(t *testing.T) {
	cube := unitCube(t)
	b := place(cube, 1, mgl64.Vec3{3, 0, 0}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0}))

	bounds := b.Bounds()
	assert.InDelta(t, 3-math.Sqrt2/2, bounds.Min.X(), 1e-9)
	assert.InDelta(t, 3+math.Sqrt2/2, bounds.Max.X(), 1e-9)
	assert.InDelta(t, -0.5, bounds.Min.Y(), 1e-9)
}
