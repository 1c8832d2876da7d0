package actor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ids ...EntityID) *Store {
	t.Helper()
	s := NewStore(len(ids))
	for k, id := range ids {
		_, err := s.Add(id, unitBox(mgl64.Vec3{float64(k), 0, 0}, BodyTypeDynamic))
		require.NoError(t, err, "Add(%d)", id)
	}
	return s
}

// =============================================================================
// Add / Remove Tests
// =============================================================================

func TestStore_Add(t *testing.T) {
	s := newTestStore(t, 10, 20, 30)

	require.Equal(t, 3, s.Len())
	for k, id := range []EntityID{10, 20, 30} {
		i, ok := s.Index(id)
		assert.True(t, ok, "Index(%d)", id)
		assert.Equal(t, k, i, "Index(%d)", id)
	}

	_, err := s.Add(20, RigidBody{})
	assert.ErrorIs(t, err, ErrDuplicateEntity)
}

func TestStore_RemoveSwapsLastIntoHole(t *testing.T) {
	s := newTestStore(t, 1, 2, 3, 4)
	lastPosition := s.Positions[3]

	require.NoError(t, s.Remove(2))
	require.Equal(t, 3, s.Len())

	_, ok := s.Index(2)
	assert.False(t, ok, "removed entity still indexed")

	i, ok := s.Index(4)
	require.True(t, ok)
	require.Equal(t, 1, i)
	assert.Equal(t, EntityID(4), s.Entities[1])
	assert.Equal(t, lastPosition, s.Positions[1])

	// every remaining entity must resolve to its own slot
	for k, id := range s.Entities {
		j, _ := s.Index(id)
		assert.Equal(t, k, j, "Index(%d)", id)
	}
}

func TestStore_RemoveLast(t *testing.T) {
	s := newTestStore(t, 1, 2)
	require.NoError(t, s.Remove(2))
	assert.Equal(t, []EntityID{1}, s.Entities)
}

func TestStore_RemoveCarriesTriggerAndSleep(t *testing.T) {
	s := newTestStore(t, 1, 2, 3)
	s.Triggers[2] = true
	s.Sleeping[2] = true
	s.SleepTimers[2] = 0.25

	require.NoError(t, s.Remove(1))

	i, ok := s.Index(3)
	require.True(t, ok)
	assert.True(t, s.IsTrigger(i))
	assert.True(t, s.IsSleeping(i))
	assert.Equal(t, 0.25, s.SleepTimers[i])
	assert.Len(t, s.Triggers, 2)
	assert.Len(t, s.Sleeping, 2)
	assert.Len(t, s.SleepTimers, 2)
}

func TestStore_UnknownEntity(t *testing.T) {
	s := newTestStore(t, 1)

	assert.ErrorIs(t, s.Remove(99), ErrUnknownEntity)
	assert.ErrorIs(t, s.Set(99, RigidBody{}), ErrUnknownEntity)

	_, ok := s.Get(99)
	assert.False(t, ok, "Get returned a body for an unknown entity")
}

// =============================================================================
// Get / Set Tests
// =============================================================================

func TestStore_GetSetRoundTrip(t *testing.T) {
	s := newTestStore(t, 7)

	body, ok := s.Get(7)
	require.True(t, ok)
	body.Position = mgl64.Vec3{1, 2, 3}
	body.Friction = 0.9
	body.IsTrigger = true
	body.IsSleeping = true
	body.SleepTimer = 0.1
	body.SetLinearVelocity(mgl64.Vec3{0, 4, 0})
	require.NoError(t, s.Set(7, body))

	got, _ := s.Get(7)
	assert.Equal(t, body, got)
	assert.True(t, s.IsTrigger(0))
	assert.True(t, s.IsInert(0))
	assertVecInDelta(t, mgl64.Vec3{0, 4, 0}, s.LinearVelocity(0), 1e-9)
}

// =============================================================================
// Dynamics Tests
// =============================================================================

func TestStore_ApplyImpulseConservesMomentum(t *testing.T) {
	s := newTestStore(t, 1, 2)
	impulse := mgl64.Vec3{0.3, -1.2, 0.7}

	s.ApplyImpulse(0, impulse.Mul(-1), mgl64.Vec3{0.5, 0, 0})
	s.ApplyImpulse(1, impulse, mgl64.Vec3{-0.5, 0, 0})

	total := s.LinearMomenta[0].Add(s.LinearMomenta[1])
	assertVecInDelta(t, mgl64.Vec3{}, total, 1e-9)
}

func TestStore_StaticIgnoresImpulsesAndForces(t *testing.T) {
	s := NewStore(1)
	_, err := s.Add(1, unitBox(mgl64.Vec3{}, BodyTypeStatic))
	require.NoError(t, err)

	s.ApplyImpulse(0, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 0, 0})
	s.AddForce(0, mgl64.Vec3{0, -10, 0})
	s.AddTorque(0, mgl64.Vec3{0, 1, 0})
	s.Integrate(1.0 / 60.0)

	assert.Equal(t, mgl64.Vec3{}, s.LinearMomenta[0])
	assert.Equal(t, mgl64.Vec3{}, s.AngularMomenta[0])
	assert.Equal(t, mgl64.Vec3{}, s.Positions[0])
	assert.Equal(t, mgl64.Mat3{}, s.InverseInertiaWorld(0))
	assert.True(t, s.IsInert(0))
}

func TestStore_IntegrateMatchesRigidBody(t *testing.T) {
	s := newTestStore(t, 1)
	body, _ := s.Get(1)

	force := mgl64.Vec3{1, -9.81, 0}
	torque := mgl64.Vec3{0.2, 0, -0.4}
	dt := 1.0 / 60.0
	for step := 0; step < 30; step++ {
		s.AddForce(0, force)
		s.AddTorque(0, torque)
		s.Integrate(dt)

		body.AddForce(force)
		body.AddTorque(torque)
		body.Integrate(dt)
	}

	got, _ := s.Get(1)
	assertVecInDelta(t, body.Position, got.Position, 1e-9)
	assert.InDelta(t, 1, got.Rotation.Dot(body.Rotation), 1e-9, "Rotation = %v, want %v", got.Rotation, body.Rotation)
	assert.Equal(t, mgl64.Vec3{}, s.Forces[0])
	assert.Equal(t, mgl64.Vec3{}, s.Torques[0])
}

func TestStore_IntegrateSkipsSleeping(t *testing.T) {
	s := newTestStore(t, 1)
	s.Sleeping[0] = true
	s.LinearMomenta[0] = mgl64.Vec3{1, 0, 0}
	s.AddForce(0, mgl64.Vec3{0, -10, 0})

	s.Integrate(0.5)

	assert.Equal(t, mgl64.Vec3{}, s.Positions[0])
	assert.Equal(t, mgl64.Vec3{}, s.Forces[0], "forces are cleared on sleeping bodies too")
}

// =============================================================================
// Sleep Tests
// =============================================================================

func TestStore_TrySleep(t *testing.T) {
	const (
		dt        = 0.1
		threshold = 0.3
		velocity  = 0.05
	)

	s := newTestStore(t, 1)
	setVelocity(s, 0, mgl64.Vec3{0.01, 0, 0})
	s.Forces[0] = mgl64.Vec3{0, -1, 0}

	s.TrySleep(0, dt, threshold, velocity)
	s.TrySleep(0, dt, threshold, velocity)
	assert.False(t, s.IsSleeping(0), "asleep before the time threshold")
	assert.InDelta(t, 0.2, s.SleepTimers[0], 1e-12)

	s.TrySleep(0, dt, threshold, velocity)
	require.True(t, s.IsSleeping(0))
	assert.Zero(t, s.SleepTimers[0])
	assert.Equal(t, mgl64.Vec3{}, s.LinearMomenta[0])
	assert.Equal(t, mgl64.Vec3{}, s.Forces[0])

	// staying slow keeps the body asleep without growing its timer
	s.TrySleep(0, dt, threshold, velocity)
	assert.True(t, s.IsSleeping(0))
	assert.Zero(t, s.SleepTimers[0])

	// a fast body wakes up
	setVelocity(s, 0, mgl64.Vec3{0, 1, 0})
	s.TrySleep(0, dt, threshold, velocity)
	assert.False(t, s.IsSleeping(0))
	assert.Zero(t, s.SleepTimers[0])
}

func TestStore_TrySleep_SpinningBodyStaysAwake(t *testing.T) {
	s := newTestStore(t, 1)
	s.AngularMomenta[0] = mgl64.Vec3{0, 1, 0}

	for i := 0; i < 10; i++ {
		s.TrySleep(0, 0.1, 0.3, 0.05)
	}
	assert.False(t, s.IsSleeping(0))
}

func TestStore_TrySleep_IgnoresStatic(t *testing.T) {
	s := NewStore(1)
	_, err := s.Add(1, unitBox(mgl64.Vec3{}, BodyTypeStatic))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		s.TrySleep(0, 0.1, 0.3, 0.05)
	}
	assert.False(t, s.IsSleeping(0))
	assert.Zero(t, s.SleepTimers[0])
}

func setVelocity(s *Store, i int, v mgl64.Vec3) {
	s.LinearMomenta[i] = v.Mul(1 / s.InvMasses[i])
}
