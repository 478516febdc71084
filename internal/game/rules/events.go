package rules

import (
	"sort"
	"sync"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Match lifecycle
	EventMatchStarted  EventType = "MATCH_STARTED"
	EventPhaseChanged  EventType = "PHASE_CHANGED"
	EventInitiative    EventType = "INITIATIVE"
	EventRoundStarted  EventType = "ROUND_STARTED"
	EventRoundResolved EventType = "ROUND_RESOLVED"
	EventMatchEnded    EventType = "MATCH_ENDED"

	// Turn events
	EventTurnStarted EventType = "TURN_STARTED"
	EventTurnEnded   EventType = "TURN_ENDED"
	EventPassed      EventType = "PASSED"

	// Card events
	EventCardDrawn       EventType = "CARD_DRAWN"
	EventValueCardPlayed EventType = "VALUE_CARD_PLAYED"
	EventEffectPlayed    EventType = "EFFECT_CARD_PLAYED"
	EventDeckReshuffled  EventType = "DECK_RESHUFFLED"
	EventDeckRecreated   EventType = "DECK_RECREATED"

	// Effect events
	EventEffectApplied   EventType = "EFFECT_APPLIED"
	EventEffectBlocked   EventType = "EFFECT_BLOCKED"
	EventEffectReversed  EventType = "EFFECT_REVERSED"
	EventEffectLocked    EventType = "EFFECT_LOCKED"
	EventGlobalInversion EventType = "GLOBAL_INVERSION"
	EventImmunityUsed    EventType = "IMMUNITY_USED"
	EventEffectStolen    EventType = "EFFECT_STOLEN"
	EventFieldEffect     EventType = "FIELD_EFFECT"

	// Board and outcome events
	EventPawnMoved        EventType = "PAWN_MOVED"
	EventPathChanged      EventType = "PATH_CHANGED"
	EventHeartLost        EventType = "HEART_LOST"
	EventPlayerEliminated EventType = "PLAYER_ELIMINATED"
	EventMatchPoint       EventType = "MATCH_POINT"
	EventBoardRotated     EventType = "BOARD_ROTATED"
)

// IsTerminal returns true for events after which no further action is accepted.
func (et EventType) IsTerminal() bool {
	return et == EventMatchEnded
}

// Event represents a state change that presentation collaborators observe
// after the fact. Events carry a sequence number, never a wall-clock time.
type Event struct {
	Type     EventType
	Seq      int
	Round    int
	PlayerID string            // Acting or affected player
	TargetID string            // Target player, if any
	SourceID string            // Card ID that caused the event
	Amount   int               // Numeric payload (steps, hearts, score)
	Data     string            // Effect name, phase name, etc.
	Metadata map[string]string // Additional metadata
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously,
// in subscription order.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	handles := make([]int, 0, len(bus.listeners))
	for h := range bus.listeners {
		handles = append(handles, h)
	}
	sort.Ints(handles)
	all := make([]Listener, 0, len(handles))
	for _, h := range handles {
		all = append(all, bus.listeners[h])
	}
	typed := append([]TypedListener(nil), bus.typedListeners[event.Type]...)
	bus.mu.RUnlock()

	for _, listener := range all {
		listener(event)
	}
	for _, listener := range typed {
		listener.Callback(event)
	}
}

// PublishBatch publishes multiple events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, playerID, targetID, sourceID string) Event {
	return Event{
		Type:     eventType,
		PlayerID: playerID,
		TargetID: targetID,
		SourceID: sourceID,
		Metadata: make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, playerID, targetID, sourceID string, amount int) Event {
	evt := NewEvent(eventType, playerID, targetID, sourceID)
	evt.Amount = amount
	return evt
}
