package halfedge

import "github.com/go-gl/mathgl/mgl64"

// BoxSoup returns the 8 vertices and 12 outward-facing triangles of a box
// centered on the origin.
func BoxSoup(halfExtents mgl64.Vec3) ([]mgl64.Vec3, [][3]int) {
	return GridBoxSoup(halfExtents, 1)
}

// GridBoxSoup returns a box whose faces are each split into a
// divisions x divisions grid of quads, two triangles per quad. The extra
// vertices are all redundant once the hull is built.
func GridBoxSoup(halfExtents mgl64.Vec3, divisions int) ([]mgl64.Vec3, [][3]int) {
	if divisions < 1 {
		divisions = 1
	}
	n := divisions

	var vertices []mgl64.Vec3
	var triangles [][3]int
	index := make(map[[3]int]int)

	vertex := func(key [3]int) int {
		if i, ok := index[key]; ok {
			return i
		}
		p := mgl64.Vec3{
			halfExtents[0] * float64(key[0]) / float64(n),
			halfExtents[1] * float64(key[1]) / float64(n),
			halfExtents[2] * float64(key[2]) / float64(n),
		}
		index[key] = len(vertices)
		vertices = append(vertices, p)
		return index[key]
	}

	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		for _, sign := range []int{-1, 1} {
			at := func(i, j int) int {
				var key [3]int
				key[axis] = sign * n
				key[u] = 2*i - n
				key[v] = 2*j - n
				return vertex(key)
			}
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					p00, p10, p11, p01 := at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1)
					if sign > 0 {
						triangles = append(triangles, [3]int{p00, p10, p11}, [3]int{p00, p11, p01})
					} else {
						triangles = append(triangles, [3]int{p00, p11, p10}, [3]int{p00, p01, p11})
					}
				}
			}
		}
	}

	return vertices, triangles
}

// TetrahedronSoup returns a regular tetrahedron inscribed in the cube of
// the given half size.
func TetrahedronSoup(size float64) ([]mgl64.Vec3, [][3]int) {
	vertices := []mgl64.Vec3{
		{size, size, size},
		{size, -size, -size},
		{-size, size, -size},
		{-size, -size, size},
	}
	triangles := [][3]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}}
	return vertices, orientOutward(vertices, triangles)
}

// orientOutward flips every triangle whose normal points toward the
// centroid of the vertex set.
func orientOutward(vertices []mgl64.Vec3, triangles [][3]int) [][3]int {
	var center mgl64.Vec3
	for _, v := range vertices {
		center = center.Add(v)
	}
	center = center.Mul(1.0 / float64(len(vertices)))

	out := make([][3]int, len(triangles))
	for i, t := range triangles {
		a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		if n.Dot(a.Sub(center)) < 0 {
			t[1], t[2] = t[2], t[1]
		}
		out[i] = t
	}
	return out
}
