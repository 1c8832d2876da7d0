package actor

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrDuplicateEntity = errors.New("actor: entity already has a rigid body")
	ErrUnknownEntity   = errors.New("actor: entity has no rigid body")
)

// Store keeps every rigid body as parallel arrays. Bodies are densely packed:
// removal moves the last body into the hole and the entity index is
// updated accordingly, so an index is only stable until the next Remove.
type Store struct {
	Entities          []EntityID
	Positions         []mgl64.Vec3
	LinearMomenta     []mgl64.Vec3
	Forces            []mgl64.Vec3
	InvMasses         []float64
	Rotations         []mgl64.Quat
	AngularMomenta    []mgl64.Vec3
	Torques           []mgl64.Vec3
	InertiaTensors    []mgl64.Mat3
	InvInertiaTensors []mgl64.Mat3
	Restitutions      []float64
	Frictions         []float64
	Triggers          []bool
	Sleeping          []bool
	SleepTimers       []float64

	index map[EntityID]int
}

func NewStore(capacity int) *Store {
	return &Store{
		Entities:          make([]EntityID, 0, capacity),
		Positions:         make([]mgl64.Vec3, 0, capacity),
		LinearMomenta:     make([]mgl64.Vec3, 0, capacity),
		Forces:            make([]mgl64.Vec3, 0, capacity),
		InvMasses:         make([]float64, 0, capacity),
		Rotations:         make([]mgl64.Quat, 0, capacity),
		AngularMomenta:    make([]mgl64.Vec3, 0, capacity),
		Torques:           make([]mgl64.Vec3, 0, capacity),
		InertiaTensors:    make([]mgl64.Mat3, 0, capacity),
		InvInertiaTensors: make([]mgl64.Mat3, 0, capacity),
		Restitutions:      make([]float64, 0, capacity),
		Frictions:         make([]float64, 0, capacity),
		Triggers:          make([]bool, 0, capacity),
		Sleeping:          make([]bool, 0, capacity),
		SleepTimers:       make([]float64, 0, capacity),
		index:             make(map[EntityID]int, capacity),
	}
}

func (s *Store) Len() int {
	return len(s.Entities)
}

// Index returns the current array index of an entity's body
func (s *Store) Index(id EntityID) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Add appends a body for the entity and returns its index
func (s *Store) Add(id EntityID, body RigidBody) (int, error) {
	if _, ok := s.index[id]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateEntity, id)
	}

	i := len(s.Entities)
	s.Entities = append(s.Entities, id)
	s.Positions = append(s.Positions, body.Position)
	s.LinearMomenta = append(s.LinearMomenta, body.LinearMomentum)
	s.Forces = append(s.Forces, body.ForceAccumulator)
	s.InvMasses = append(s.InvMasses, body.InvMass)
	s.Rotations = append(s.Rotations, body.Rotation)
	s.AngularMomenta = append(s.AngularMomenta, body.AngularMomentum)
	s.Torques = append(s.Torques, body.TorqueAccumulator)
	s.InertiaTensors = append(s.InertiaTensors, body.InertiaTensor)
	s.InvInertiaTensors = append(s.InvInertiaTensors, body.InvInertiaTensor)
	s.Restitutions = append(s.Restitutions, body.Restitution)
	s.Frictions = append(s.Frictions, body.Friction)
	s.Triggers = append(s.Triggers, body.IsTrigger)
	s.Sleeping = append(s.Sleeping, body.IsSleeping)
	s.SleepTimers = append(s.SleepTimers, body.SleepTimer)
	s.index[id] = i

	return i, nil
}

// Remove deletes an entity's body, swapping the last body into its slot
func (s *Store) Remove(id EntityID) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}

	last := len(s.Entities) - 1
	if i != last {
		s.Entities[i] = s.Entities[last]
		s.Positions[i] = s.Positions[last]
		s.LinearMomenta[i] = s.LinearMomenta[last]
		s.Forces[i] = s.Forces[last]
		s.InvMasses[i] = s.InvMasses[last]
		s.Rotations[i] = s.Rotations[last]
		s.AngularMomenta[i] = s.AngularMomenta[last]
		s.Torques[i] = s.Torques[last]
		s.InertiaTensors[i] = s.InertiaTensors[last]
		s.InvInertiaTensors[i] = s.InvInertiaTensors[last]
		s.Restitutions[i] = s.Restitutions[last]
		s.Frictions[i] = s.Frictions[last]
		s.Triggers[i] = s.Triggers[last]
		s.Sleeping[i] = s.Sleeping[last]
		s.SleepTimers[i] = s.SleepTimers[last]
		s.index[s.Entities[i]] = i
	}

	s.Entities = s.Entities[:last]
	s.Positions = s.Positions[:last]
	s.LinearMomenta = s.LinearMomenta[:last]
	s.Forces = s.Forces[:last]
	s.InvMasses = s.InvMasses[:last]
	s.Rotations = s.Rotations[:last]
	s.AngularMomenta = s.AngularMomenta[:last]
	s.Torques = s.Torques[:last]
	s.InertiaTensors = s.InertiaTensors[:last]
	s.InvInertiaTensors = s.InvInertiaTensors[:last]
	s.Restitutions = s.Restitutions[:last]
	s.Frictions = s.Frictions[:last]
	s.Triggers = s.Triggers[:last]
	s.Sleeping = s.Sleeping[:last]
	s.SleepTimers = s.SleepTimers[:last]
	delete(s.index, id)

	return nil
}

// At gathers the body stored at index i
func (s *Store) At(i int) RigidBody {
	return RigidBody{
		Position:          s.Positions[i],
		LinearMomentum:    s.LinearMomenta[i],
		ForceAccumulator:  s.Forces[i],
		InvMass:           s.InvMasses[i],
		Rotation:          s.Rotations[i],
		AngularMomentum:   s.AngularMomenta[i],
		TorqueAccumulator: s.Torques[i],
		InertiaTensor:     s.InertiaTensors[i],
		InvInertiaTensor:  s.InvInertiaTensors[i],
		Restitution:       s.Restitutions[i],
		Friction:          s.Frictions[i],
		IsTrigger:         s.Triggers[i],
		IsSleeping:        s.Sleeping[i],
		SleepTimer:        s.SleepTimers[i],
	}
}

// Get returns a copy of an entity's body
func (s *Store) Get(id EntityID) (RigidBody, bool) {
	i, ok := s.index[id]
	if !ok {
		return RigidBody{}, false
	}
	return s.At(i), true
}

// Set overwrites an entity's body
func (s *Store) Set(id EntityID, body RigidBody) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}

	s.Positions[i] = body.Position
	s.LinearMomenta[i] = body.LinearMomentum
	s.Forces[i] = body.ForceAccumulator
	s.InvMasses[i] = body.InvMass
	s.Rotations[i] = body.Rotation
	s.AngularMomenta[i] = body.AngularMomentum
	s.Torques[i] = body.TorqueAccumulator
	s.InertiaTensors[i] = body.InertiaTensor
	s.InvInertiaTensors[i] = body.InvInertiaTensor
	s.Restitutions[i] = body.Restitution
	s.Frictions[i] = body.Friction
	s.Triggers[i] = body.IsTrigger
	s.Sleeping[i] = body.IsSleeping
	s.SleepTimers[i] = body.SleepTimer

	return nil
}

func (s *Store) Transform(i int) Transform {
	return Transform{Position: s.Positions[i], Rotation: s.Rotations[i]}
}

func (s *Store) IsStatic(i int) bool {
	return s.InvMasses[i] == 0
}

func (s *Store) IsTrigger(i int) bool {
	return s.Triggers[i]
}

func (s *Store) IsSleeping(i int) bool {
	return s.Sleeping[i]
}

// IsInert reports whether the body at index i does not move this step
func (s *Store) IsInert(i int) bool {
	return s.IsStatic(i) || s.Sleeping[i]
}

// TrySleep puts a movable body to sleep once both its velocities stayed
// under velocityThreshold for timeThreshold seconds, and wakes a sleeping
// body whose velocity went over it.
func (s *Store) TrySleep(i int, dt, timeThreshold, velocityThreshold float64) {
	if s.IsStatic(i) {
		return
	}
	if s.LinearVelocity(i).Len() < velocityThreshold && s.AngularVelocity(i).Len() < velocityThreshold {
		if s.Sleeping[i] {
			return
		}
		s.SleepTimers[i] += dt
		if s.SleepTimers[i] >= timeThreshold {
			s.Sleep(i)
		}
	} else {
		s.Awake(i)
	}
}

// Sleep stops the body at index i, dropping its momenta and forces
func (s *Store) Sleep(i int) {
	s.Sleeping[i] = true
	s.SleepTimers[i] = 0
	s.LinearMomenta[i] = mgl64.Vec3{}
	s.AngularMomenta[i] = mgl64.Vec3{}
	s.Forces[i] = mgl64.Vec3{}
	s.Torques[i] = mgl64.Vec3{}
}

func (s *Store) Awake(i int) {
	s.Sleeping[i] = false
	s.SleepTimers[i] = 0
}

func (s *Store) LinearVelocity(i int) mgl64.Vec3 {
	return s.LinearMomenta[i].Mul(s.InvMasses[i])
}

func (s *Store) InverseInertiaWorld(i int) mgl64.Mat3 {
	if s.IsStatic(i) {
		return mgl64.Mat3{}
	}
	return worldTensor(s.Rotations[i], s.InvInertiaTensors[i])
}

func (s *Store) AngularVelocity(i int) mgl64.Vec3 {
	return s.InverseInertiaWorld(i).Mul3x1(s.AngularMomenta[i])
}

// ApplyImpulse applies an impulse at lever arm r to the body at index i
func (s *Store) ApplyImpulse(i int, impulse, r mgl64.Vec3) {
	if s.IsStatic(i) {
		return
	}
	s.LinearMomenta[i] = s.LinearMomenta[i].Add(impulse)
	s.AngularMomenta[i] = s.AngularMomenta[i].Add(r.Cross(impulse))
}

func (s *Store) AddForce(i int, force mgl64.Vec3) {
	if !s.IsStatic(i) {
		s.Forces[i] = s.Forces[i].Add(force)
	}
}

func (s *Store) AddTorque(i int, torque mgl64.Vec3) {
	if !s.IsStatic(i) {
		s.Torques[i] = s.Torques[i].Add(torque)
	}
}

// Integrate advances every awake movable body by dt and clears all
// accumulators
func (s *Store) Integrate(dt float64) {
	for i := range s.Entities {
		if !s.IsInert(i) {
			s.Positions[i], s.LinearMomenta[i] = integrateLinear(s.Positions[i], s.LinearMomenta[i], s.Forces[i], s.InvMasses[i], dt)
			s.Rotations[i], s.AngularMomenta[i] = integrateAngular(s.Rotations[i], s.AngularMomenta[i], s.Torques[i], s.InvInertiaTensors[i], dt)
		}
		s.Forces[i] = mgl64.Vec3{}
		s.Torques[i] = mgl64.Vec3{}
	}
}
