package room

import (
	"time"
)

// Player is one seat in a room. Game-specific holdings (hands, dice,
// banked piles) live in the room payload keyed by player ID, not here.
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Ready      bool      `json:"ready"`
	Eliminated bool      `json:"eliminated,omitempty"`
	Score      int       `json:"score"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// NewPlayer creates a player with a fresh seat.
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		JoinedAt: time.Now(),
	}
}
