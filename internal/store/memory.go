package store

import (
	"sync"

	"partyline/internal/room"
)

// Snapshot is one committed version of a room document. A nil State
// marks the terminal notification sent when the room is deleted.
type Snapshot struct {
	State   *room.State
	Version uint64
}

// MemoryStore holds all room documents in memory. It is the single
// durable home of room state: writes are versioned, serialized per
// store, and fanned out to subscribers exactly once each, in write
// order.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*entry
}

type entry struct {
	state   *room.State
	version uint64
	subs    map[int]*subscriber
	nextSub int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*entry)}
}

// Create inserts a new room document. Fails with ErrRoomExists when the
// code collides with a live room.
func (s *MemoryStore) Create(code string, doc *room.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[code]; exists {
		return room.ErrRoomExists
	}
	s.rooms[code] = &entry{
		state:   doc.Clone(),
		version: 1,
		subs:    make(map[int]*subscriber),
	}
	return nil
}

// Get returns a snapshot copy of the room document and its version.
func (s *MemoryStore) Get(code string) (*room.State, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.rooms[code]
	if !exists {
		return nil, 0, room.ErrRoomNotFound
	}
	return e.state.Clone(), e.version, nil
}

// Update replaces the room document wholesale, bumps the version and
// notifies every subscriber. Fails with ErrRoomNotFound if the room was
// deleted concurrently.
func (s *MemoryStore) Update(code string, doc *room.State) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.rooms[code]
	if !exists {
		return 0, room.ErrRoomNotFound
	}
	e.state = doc.Clone()
	e.version++
	e.publish(Snapshot{State: e.state, Version: e.version})
	return e.version, nil
}

// UpdateWith runs fn against the current document under the store lock,
// committing the result as a new version. Mutators on the same room are
// fully serialized, so read-modify-write patterns (vote tallies in
// particular) can never double-count. If fn returns an error nothing is
// committed.
func (s *MemoryStore) UpdateWith(code string, fn func(*room.State) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.rooms[code]
	if !exists {
		return 0, room.ErrRoomNotFound
	}
	next := e.state.Clone()
	if err := fn(next); err != nil {
		return e.version, err
	}
	e.state = next
	e.version++
	e.publish(Snapshot{State: e.state, Version: e.version})
	return e.version, nil
}

// Delete removes the room and closes all subscriptions after a terminal
// nil-state notification.
func (s *MemoryStore) Delete(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.rooms[code]
	if !exists {
		return room.ErrRoomNotFound
	}
	e.publish(Snapshot{State: nil, Version: e.version + 1})
	for _, sub := range e.subs {
		sub.finish()
	}
	delete(s.rooms, code)
	return nil
}

// Subscribe registers for every committed write to the room, including
// the caller's own, delivered exactly once per write in write order.
// The returned cancel func releases the subscription; the channel is
// closed on cancel or room deletion.
func (s *MemoryStore) Subscribe(code string) (<-chan Snapshot, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.rooms[code]
	if !exists {
		return nil, nil, room.ErrRoomNotFound
	}

	sub := newSubscriber()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = sub

	cancel := func() {
		s.mu.Lock()
		if e2, ok := s.rooms[code]; ok {
			if got, ok := e2.subs[id]; ok && got == sub {
				delete(e2.subs, id)
			}
		}
		s.mu.Unlock()
		sub.stop()
	}
	return sub.out, cancel, nil
}

// Codes returns the codes of all live rooms.
func (s *MemoryStore) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	return codes
}

func (e *entry) publish(snap Snapshot) {
	for _, sub := range e.subs {
		sub.push(snap)
	}
}
