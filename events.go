package anvil

import (
	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/contact"
)

const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
	TRIGGER_ENTER
	TRIGGER_STAY
	TRIGGER_EXIT
	ON_SLEEP
	ON_WAKE
)

type EventType uint8

func (t EventType) String() string {
	switch t {
	case COLLISION_ENTER:
		return "CollisionEnter"
	case COLLISION_STAY:
		return "CollisionStay"
	case COLLISION_EXIT:
		return "CollisionExit"
	case TRIGGER_ENTER:
		return "TriggerEnter"
	case TRIGGER_STAY:
		return "TriggerStay"
	case TRIGGER_EXIT:
		return "TriggerExit"
	case ON_SLEEP:
		return "Sleep"
	case ON_WAKE:
		return "Wake"
	default:
		return "Unknown"
	}
}

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Collision events carry the pair in increasing entity order
type CollisionEnterEvent struct {
	EntityA actor.EntityID
	EntityB actor.EntityID
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	EntityA actor.EntityID
	EntityB actor.EntityID
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	EntityA actor.EntityID
	EntityB actor.EntityID
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// Trigger events, same ordering as collision events
type TriggerEnterEvent struct {
	EntityA actor.EntityID
	EntityB actor.EntityID
}

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }

type TriggerStayEvent struct {
	EntityA actor.EntityID
	EntityB actor.EntityID
}

func (e TriggerStayEvent) Type() EventType { return TRIGGER_STAY }

type TriggerExitEvent struct {
	EntityA actor.EntityID
	EntityB actor.EntityID
}

func (e TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }

// Sleep/Wake events
type SleepEvent struct {
	Entity actor.EntityID
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Entity actor.EntityID
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

// Events dispatches the events of a World. Listeners run synchronously at
// the end of World.Step.
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Active pairs for Enter/Stay/Exit detection, true for trigger pairs
	previousActivePairs map[contact.PairKey]bool
	currentActivePairs  map[contact.PairKey]bool

	sleepStates map[actor.EntityID]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[contact.PairKey]bool),
		currentActivePairs:  make(map[contact.PairKey]bool),
		sleepStates:         make(map[actor.EntityID]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordCollisions marks every pair with a manifold in this step's data
func (e *Events) recordCollisions(data *contact.Data) {
	for _, m := range data.Manifolds {
		if m.ContactCount > 0 {
			e.currentActivePairs[m.Bodies.Key()] = false
		}
	}
}

// recordTriggers marks the overlapping pairs involving a trigger body
func (e *Events) recordTriggers(pairs []contact.PairKey) {
	for _, pair := range pairs {
		e.currentActivePairs[pair] = true
	}
}

// forget drops an entity from the tracked pairs and sleep states without
// emitting an exit
func (e *Events) forget(id actor.EntityID) {
	for pair := range e.previousActivePairs {
		if pair.Low == id || pair.High == id {
			delete(e.previousActivePairs, pair)
		}
	}
	delete(e.sleepStates, id)
}

// processCollisionEvents compares current and previous pairs to detect Enter/Stay/Exit
func (e *Events) processCollisionEvents() {
	for pair, isTrigger := range e.currentActivePairs {
		if _, active := e.previousActivePairs[pair]; active {
			// Pair was active before and still is, Stay
			if isTrigger {
				e.buffer = append(e.buffer, TriggerStayEvent{EntityA: pair.Low, EntityB: pair.High})
			} else {
				e.buffer = append(e.buffer, CollisionStayEvent{EntityA: pair.Low, EntityB: pair.High})
			}
		} else {
			// New pair, Enter
			if isTrigger {
				e.buffer = append(e.buffer, TriggerEnterEvent{EntityA: pair.Low, EntityB: pair.High})
			} else {
				e.buffer = append(e.buffer, CollisionEnterEvent{EntityA: pair.Low, EntityB: pair.High})
			}
		}
	}

	for pair, isTrigger := range e.previousActivePairs {
		if _, active := e.currentActivePairs[pair]; active {
			continue
		}
		// Pair was active but is no longer, Exit
		if isTrigger {
			e.buffer = append(e.buffer, TriggerExitEvent{EntityA: pair.Low, EntityB: pair.High})
		} else {
			e.buffer = append(e.buffer, CollisionExitEvent{EntityA: pair.Low, EntityB: pair.High})
		}
	}

	// Swap for next frame and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

// processSleepEvents emits Sleep and Wake on every change of a body's sleep
// state. A body seen for the first time only has its state recorded.
func (e *Events) processSleepEvents(bodies *actor.Store) {
	for i, id := range bodies.Entities {
		sleeping := bodies.IsSleeping(i)
		tracked, exists := e.sleepStates[id]
		e.sleepStates[id] = sleeping
		if !exists || tracked == sleeping {
			continue
		}

		if sleeping {
			e.buffer = append(e.buffer, SleepEvent{Entity: id})
		} else {
			e.buffer = append(e.buffer, WakeEvent{Entity: id})
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
