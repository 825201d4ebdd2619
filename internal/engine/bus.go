package engine

import (
	"sync"

	"partyline/internal/room"
)

// Event is a one-shot feedback notification (bust, steal, round result)
// scoped to a room. Events ride a transient bus, decoupled from the
// durable room document, so delivery never depends on diffing snapshots.
type Event struct {
	RoomCode string         `json:"roomCode"`
	Type     string         `json:"type"`
	Actor    string         `json:"actor,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Bus fans out room events to subscribers. Delivery is best effort: a
// subscriber that falls more than a buffer behind misses events, which
// is acceptable for ephemeral popups.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]chan Event)}
}

// Subscribe returns a channel of events for the room.
func (b *Bus) Subscribe(roomCode string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 16)
	b.subscribers[roomCode] = append(b.subscribers[roomCode], ch)
	return ch
}

// Unsubscribe removes and closes a subscription.
func (b *Bus) Unsubscribe(roomCode string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[roomCode]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[roomCode] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
}

// Publish delivers an event to every subscriber of its room.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.RoomCode] {
		select {
		case ch <- event:
		default:
		}
	}
}

// DropRoom closes every subscription for a deleted room.
func (b *Bus) DropRoom(roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers[roomCode] {
		close(ch)
	}
	delete(b.subscribers, roomCode)
}

// publishEffects converts drained payload effects into bus events.
func (b *Bus) publishEffects(roomCode string, effects []room.Effect) {
	for _, eff := range effects {
		b.Publish(Event{RoomCode: roomCode, Type: eff.Type, Actor: eff.Actor, Data: eff.Data})
	}
}
