package room

import (
	"time"
)

// Status represents the lifecycle phase of a room
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusRoundEnd Status = "round_end"
	StatusFinished Status = "finished"
)

// Payload is the game-specific portion of a room document. Each game
// package provides its own implementation.
type Payload interface {
	// Clone returns a deep copy, so snapshots never alias engine state.
	Clone() Payload
	// Redact strips everything the given viewer is not allowed to see.
	// It mutates the receiver and is only ever called on a clone.
	Redact(viewerID string)
	// PendingFor reports whether the viewer owes an out-of-band response
	// (steal decision, draft pick, vote) before play can continue.
	PendingFor(viewerID string) bool
}

// Effect is a one-shot feedback event (bust, steal, round result) raised
// by a game rule. Effects are never persisted; the engine drains them
// after each committed write and hands them to the transient event bus.
type Effect struct {
	Type  string         `json:"type"`
	Actor string         `json:"actor,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// State is the canonical room document, the single source of truth for
// one game session. Only the room's actor goroutine mutates it.
type State struct {
	Code      string     `json:"roomId"`
	GameName  string     `json:"game"`
	HostID    string     `json:"hostId"`
	Status    Status     `json:"status"`
	Players   []*Player  `json:"players"`
	Turn      int        `json:"turn"`
	Round     int        `json:"round"`
	Logs      []LogEntry `json:"logs"`
	Payload   Payload    `json:"payload,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`

	// Effects raised by the most recent mutation; drained by the engine
	// after commit, never serialized.
	Effects []Effect `json:"-"`
}

// Clone returns a deep copy of the state. Effects are transient and are
// not carried over.
func (s *State) Clone() *State {
	c := *s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		pc := *p
		c.Players[i] = &pc
	}
	c.Logs = make([]LogEntry, len(s.Logs))
	copy(c.Logs, s.Logs)
	if s.Payload != nil {
		c.Payload = s.Payload.Clone()
	}
	c.Effects = nil
	return &c
}

// Emit records a one-shot effect for the event bus.
func (s *State) Emit(effectType, actorID string, data map[string]any) {
	s.Effects = append(s.Effects, Effect{Type: effectType, Actor: actorID, Data: data})
}

// PlayerByID returns the player and their seat index, or (nil, -1).
func (s *State) PlayerByID(id string) (*Player, int) {
	for i, p := range s.Players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// ActivePlayer returns the player at the turn pointer, or nil if the
// room is empty.
func (s *State) ActivePlayer() *Player {
	if len(s.Players) == 0 || s.Turn < 0 || s.Turn >= len(s.Players) {
		return nil
	}
	return s.Players[s.Turn]
}

// AliveCount returns the number of non-eliminated players.
func (s *State) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

// NextAlive returns the index of the next non-eliminated player after
// from, wrapping around. Returns from itself if no other player is alive.
func (s *State) NextAlive(from int) int {
	if len(s.Players) == 0 {
		return 0
	}
	for i := 1; i <= len(s.Players); i++ {
		idx := (from + i) % len(s.Players)
		if !s.Players[idx].Eliminated {
			return idx
		}
	}
	return from
}

// AdvanceTurn moves the turn pointer to the next non-eliminated player.
func (s *State) AdvanceTurn() {
	s.Turn = s.NextAlive(s.Turn)
}

// RemovePlayer drops the player from the seating order and re-derives
// the turn pointer so it still refers to a present player. It reports
// whether the removed player held the turn, so callers can clear any
// in-flight sub-state before the successor acts.
func (s *State) RemovePlayer(id string) (hadTurn, removed bool) {
	_, idx := s.PlayerByID(id)
	if idx < 0 {
		return false, false
	}
	hadTurn = idx == s.Turn
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	switch {
	case len(s.Players) == 0:
		s.Turn = 0
	case idx < s.Turn:
		s.Turn--
	case s.Turn >= len(s.Players):
		s.Turn = 0
	}
	// The pointer may now sit on an eliminated player; shift if so.
	if len(s.Players) > 0 && s.Players[s.Turn].Eliminated {
		s.Turn = s.NextAlive(s.Turn)
	}
	return hadTurn, true
}

// AllReady reports whether every player except the host has readied up.
// Eliminated players do not gate; they have no stake in the next round.
func (s *State) AllReady() bool {
	for _, p := range s.Players {
		if p.ID == s.HostID || p.Eliminated {
			continue
		}
		if !p.Ready {
			return false
		}
	}
	return true
}

// ClearReady resets every ready flag, used when a round starts.
func (s *State) ClearReady() {
	for _, p := range s.Players {
		p.Ready = false
	}
}
