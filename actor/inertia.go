package actor

import "github.com/go-gl/mathgl/mgl64"

// BoxMass returns the mass of a box from its half-extents and density
func BoxMass(halfExtents mgl64.Vec3, density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * halfExtents.X() * halfExtents.Y() * halfExtents.Z()

	return density * volume
}

// BoxInertia returns the body-space inertia tensor of a solid box
func BoxInertia(halfExtents mgl64.Vec3, mass float64) mgl64.Mat3 {
	x := halfExtents.X() * 2
	y := halfExtents.Y() * 2
	z := halfExtents.Z() * 2

	// I = (m/12) * (dimension1² + dimension2²)
	factor := mass / 12.0
	ix := factor * (y*y + z*z)
	iy := factor * (x*x + z*z)
	iz := factor * (x*x + y*y)

	return mgl64.Mat3{
		ix, 0, 0,
		0, iy, 0,
		0, 0, iz,
	}
}
