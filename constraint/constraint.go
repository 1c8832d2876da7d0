package constraint

import (
	"math"

	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ComputeRestitution combines the restitution of two bodies: the least
// bouncy body wins.
func ComputeRestitution(restitutionA, restitutionB float64) float64 {
	return math.Min(restitutionA, restitutionB)
}

// ComputeFriction combines the friction coefficients of two bodies
func ComputeFriction(frictionA, frictionB float64) float64 {
	return math.Min(frictionA, frictionB)
}

// tangentBasis returns two unit tangents perpendicular to normal. The world
// up axis is avoided when normal is nearly parallel to it.
func tangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var u mgl64.Vec3
	if math.Abs(normal.Dot(mgl64.Vec3{0, 1, 0})) > 0.99 {
		u = normal.Cross(mgl64.Vec3{1, 0, 0})
	} else {
		u = normal.Cross(mgl64.Vec3{0, 1, 0})
	}
	u = u.Normalize()

	return u, normal.Cross(u)
}

// effectiveMass = invMassA + invMassB + (rA×d)·IA⁻¹(rA×d) + (rB×d)·IB⁻¹(rB×d)
func effectiveMass(bodies *actor.Store, a, b int, invInertiaA, invInertiaB mgl64.Mat3, rA, rB, direction mgl64.Vec3) float64 {
	rAxd := rA.Cross(direction)
	rBxd := rB.Cross(direction)

	return bodies.InvMasses[a] + bodies.InvMasses[b] +
		invInertiaA.Mul3x1(rAxd).Dot(rAxd) +
		invInertiaB.Mul3x1(rBxd).Dot(rBxd)
}
