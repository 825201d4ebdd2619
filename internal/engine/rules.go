package engine

import (
	"encoding/json"
	"math/rand"

	"partyline/internal/room"
)

// Rules is the per-game transition function. Implementations are pure
// with respect to the passed state: they read and mutate st and nothing
// else, so the actor can commit or discard the mutation atomically.
type Rules interface {
	// Name is the key clients use to pick this game.
	Name() string
	MinPlayers() int
	MaxPlayers() int

	// Start deals a fresh round. On the first call st.Payload is nil;
	// later calls (round_end -> playing) carry the previous payload so
	// games can keep cross-round holdings like dice counts or scores.
	Start(st *room.State, rng *rand.Rand) error

	// Apply validates and executes one player action. It must return an
	// *room.IllegalActionError for anything out of turn, out of phase or
	// malformed, and must leave st untouched when it errors.
	Apply(st *room.State, actorID, kind string, data json.RawMessage) error

	// PlayerLeft clears any in-flight sub-state involving the departed
	// player (pending interactions, held cards, queued votes) so the
	// remaining players can continue cleanly. The player has already
	// been removed from st.Players and the turn pointer re-derived.
	PlayerLeft(st *room.State, playerID string)
}
