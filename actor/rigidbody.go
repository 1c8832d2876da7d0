package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// EntityID is the stable identifier of the entity owning a rigid body
type EntityID uint32

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic
)

const (
	DefaultRestitution = 0.0
	DefaultFriction    = 0.5
)

// RigidBody holds the kinematic and mass state of one body.
// Velocities are derived from momenta, InvMass == 0 marks an immovable body.
type RigidBody struct {
	// Linear motion
	Position         mgl64.Vec3
	LinearMomentum   mgl64.Vec3
	ForceAccumulator mgl64.Vec3
	InvMass          float64

	// Angular motion, tensors are in body space
	Rotation          mgl64.Quat
	AngularMomentum   mgl64.Vec3
	TorqueAccumulator mgl64.Vec3
	InertiaTensor     mgl64.Mat3
	InvInertiaTensor  mgl64.Mat3

	// Material, combined with min() between two bodies
	Restitution float64
	Friction    float64 // [0, 1]

	// IsTrigger bodies report overlaps but never receive contact impulses
	IsTrigger bool

	// Sleeping bodies are neither integrated nor pushed by gravity
	IsSleeping bool
	SleepTimer float64
}

// NewRigidBody creates a rigid body placed at transform.
// Static bodies and non-positive or infinite masses give an immovable body.
func NewRigidBody(transform Transform, bodyType BodyType, mass float64, inertia mgl64.Mat3) RigidBody {
	rb := RigidBody{
		Position:    transform.Position,
		Rotation:    transform.Rotation,
		Restitution: DefaultRestitution,
		Friction:    DefaultFriction,
	}
	if rb.Rotation == (mgl64.Quat{}) {
		rb.Rotation = mgl64.QuatIdent()
	}

	if bodyType == BodyTypeStatic || mass <= 0 || math.IsInf(mass, 1) {
		return rb
	}

	rb.InvMass = 1.0 / mass
	rb.InertiaTensor = inertia
	rb.InvInertiaTensor = inertia.Inv()

	return rb
}

// IsStatic reports whether the body ignores impulses and forces
func (rb *RigidBody) IsStatic() bool {
	return rb.InvMass == 0
}

// Transform returns the body pose
func (rb *RigidBody) Transform() Transform {
	return Transform{Position: rb.Position, Rotation: rb.Rotation}
}

// LinearVelocity = linear momentum * inverse mass
func (rb *RigidBody) LinearVelocity() mgl64.Vec3 {
	return rb.LinearMomentum.Mul(rb.InvMass)
}

// AngularVelocity = world inverse inertia * angular momentum
func (rb *RigidBody) AngularVelocity() mgl64.Vec3 {
	return rb.InverseInertiaWorld().Mul3x1(rb.AngularMomentum)
}

// SetLinearVelocity rewrites the linear momentum to reach v. No-op on static bodies.
func (rb *RigidBody) SetLinearVelocity(v mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.LinearMomentum = v.Mul(1.0 / rb.InvMass)
}

// SetAngularVelocity rewrites the angular momentum to reach w. No-op on static bodies.
func (rb *RigidBody) SetAngularVelocity(w mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.AngularMomentum = rb.InertiaWorld().Mul3x1(w)
}

// Inertia in world space
func (rb *RigidBody) InertiaWorld() mgl64.Mat3 {
	return worldTensor(rb.Rotation, rb.InertiaTensor)
}

// Inverse inertia in world space
func (rb *RigidBody) InverseInertiaWorld() mgl64.Mat3 {
	if rb.IsStatic() {
		return mgl64.Mat3{}
	}
	return worldTensor(rb.Rotation, rb.InvInertiaTensor)
}

// AddForce accumulates a force through the center of mass
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if !rb.IsStatic() {
		rb.ForceAccumulator = rb.ForceAccumulator.Add(force)
	}
}

// AddTorque accumulates a torque
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if !rb.IsStatic() {
		rb.TorqueAccumulator = rb.TorqueAccumulator.Add(torque)
	}
}

// AddForceAtPoint accumulates a force applied at a world point, producing a torque
func (rb *RigidBody) AddForceAtPoint(force, point mgl64.Vec3) {
	rb.AddForce(force)
	rb.AddTorque(point.Sub(rb.Position).Cross(force))
}

func (rb *RigidBody) ClearForces() {
	rb.ForceAccumulator = mgl64.Vec3{0, 0, 0}
	rb.TorqueAccumulator = mgl64.Vec3{0, 0, 0}
}

// ApplyImpulse applies an impulse at lever arm r (world point - position)
func (rb *RigidBody) ApplyImpulse(impulse, r mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.LinearMomentum = rb.LinearMomentum.Add(impulse)
	rb.AngularMomentum = rb.AngularMomentum.Add(r.Cross(impulse))
}

// Integrate advances the body by dt with semi-implicit Euler and clears
// the accumulators
func (rb *RigidBody) Integrate(dt float64) {
	if rb.IsStatic() || rb.IsSleeping {
		rb.ClearForces()
		return
	}

	rb.Position, rb.LinearMomentum = integrateLinear(rb.Position, rb.LinearMomentum, rb.ForceAccumulator, rb.InvMass, dt)
	rb.Rotation, rb.AngularMomentum = integrateAngular(rb.Rotation, rb.AngularMomentum, rb.TorqueAccumulator, rb.InvInertiaTensor, dt)
	rb.ClearForces()
}

// integrateLinear: momentum += force * dt; position += momentum * invMass * dt
func integrateLinear(position, momentum, force mgl64.Vec3, invMass, dt float64) (mgl64.Vec3, mgl64.Vec3) {
	momentum = momentum.Add(force.Mul(dt))
	position = position.Add(momentum.Mul(invMass * dt))
	return position, momentum
}

// integrateAngular: momentum += torque * dt; ω = R I⁻¹ Rᵀ momentum; q += 0.5 (0,ω) q dt
func integrateAngular(rotation mgl64.Quat, momentum, torque mgl64.Vec3, invInertia mgl64.Mat3, dt float64) (mgl64.Quat, mgl64.Vec3) {
	invWorld := worldTensor(rotation, invInertia)
	momentum = momentum.Add(torque.Mul(dt))
	omega := invWorld.Mul3x1(momentum)

	omegaQuat := mgl64.Quat{V: omega, W: 0}
	qDot := omegaQuat.Mul(rotation).Scale(0.5)
	rotation = rotation.Add(qDot.Scale(dt)).Normalize()

	return rotation, momentum
}

// worldTensor = R * tensor * Rᵀ
func worldTensor(rotation mgl64.Quat, tensor mgl64.Mat3) mgl64.Mat3 {
	R := rotation.Mat4().Mat3()
	return R.Mul3(tensor).Mul3(R.Transpose())
}
