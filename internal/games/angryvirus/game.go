// Package angryvirus implements a card-taking game of dodging mutating
// strain cards. Nobody wants strains: the active player either takes the
// face-up card with its pot of sample tokens, or pays a token to push it
// on to the next player. Collected runs of consecutive strain values
// compress to their minimum at scoring time, and the lowest total wins.
package angryvirus

import (
	"encoding/json"
	"math/rand"
	"sort"

	"partyline/internal/room"
)

const (
	lowStrain     = 3
	highStrain    = 35
	removedCards  = 9
	startTokens   = 11
	minPlayers    = 2
	maxPlayers    = 7
	actionTake    = "take"
	actionPass    = "pass"
	eventGameOver = "round_result"
)

// Payload is the game-specific room document section.
type Payload struct {
	// Deck is face down; redacted to a count for every viewer.
	Deck      []int `json:"deck,omitempty"`
	DeckCount int   `json:"deckCount"`
	// Current is the face-up strain on offer; 0 when the deck is spent.
	Current int `json:"current"`
	Pot     int `json:"pot"`
	// Tokens are private; each viewer sees only their own stack.
	Tokens map[string]int `json:"tokens"`
	// Cards taken are public knowledge, kept sorted.
	Cards map[string][]int `json:"cards"`
}

func (p *Payload) Clone() room.Payload {
	c := &Payload{
		Deck:      append([]int(nil), p.Deck...),
		DeckCount: p.DeckCount,
		Current:   p.Current,
		Pot:       p.Pot,
		Tokens:    make(map[string]int, len(p.Tokens)),
		Cards:     make(map[string][]int, len(p.Cards)),
	}
	for id, n := range p.Tokens {
		c.Tokens[id] = n
	}
	for id, cards := range p.Cards {
		c.Cards[id] = append([]int(nil), cards...)
	}
	return c
}

func (p *Payload) Redact(viewerID string) {
	p.Deck = nil
	for id := range p.Tokens {
		if id != viewerID {
			delete(p.Tokens, id)
		}
	}
}

func (p *Payload) PendingFor(string) bool { return false }

// Rules implements the engine contract.
type Rules struct{}

func New() *Rules { return &Rules{} }

func (Rules) Name() string    { return "angry_virus" }
func (Rules) MinPlayers() int { return minPlayers }
func (Rules) MaxPlayers() int { return maxPlayers }

func (Rules) Start(st *room.State, rng *rand.Rand) error {
	deck := make([]int, 0, highStrain-lowStrain+1)
	for v := lowStrain; v <= highStrain; v++ {
		deck = append(deck, v)
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	deck = deck[:len(deck)-removedCards]

	p := &Payload{
		Deck:    deck[1:],
		Current: deck[0],
		Tokens:  make(map[string]int, len(st.Players)),
		Cards:   make(map[string][]int, len(st.Players)),
	}
	p.DeckCount = len(p.Deck)
	for _, pl := range st.Players {
		p.Tokens[pl.ID] = startTokens
		p.Cards[pl.ID] = nil
	}
	st.Payload = p
	st.Turn = rng.Intn(len(st.Players))
	return nil
}

func (r Rules) Apply(st *room.State, actorID, kind string, _ json.RawMessage) error {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return room.Illegalf("round not dealt yet")
	}
	active := st.ActivePlayer()
	if active == nil || active.ID != actorID {
		return room.Illegalf("it is not your turn")
	}
	if p.Current == 0 {
		return room.Illegalf("no card is on offer")
	}

	switch kind {
	case actionTake:
		p.Cards[actorID] = insertSorted(p.Cards[actorID], p.Current)
		p.Tokens[actorID] += p.Pot
		st.Logf(room.LogWarning, "%s takes strain %d and %d tokens", active.Name, p.Current, p.Pot)
		p.Pot = 0
		p.flip()
		if p.Current == 0 {
			finish(st, p)
		}
		// The taker keeps acting on the next flip.
		return nil
	case actionPass:
		if p.Tokens[actorID] == 0 {
			return room.Illegalf("no tokens left; you must take the card")
		}
		p.Tokens[actorID]--
		p.Pot++
		st.Logf(room.LogNeutral, "%s pays a token to pass strain %d", active.Name, p.Current)
		st.AdvanceTurn()
		return nil
	default:
		return room.Illegalf("unknown action %q", kind)
	}
}

func (Rules) PlayerLeft(st *room.State, playerID string) {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return
	}
	// The departed player's cards leave the game; their pot contributions
	// stay on the table.
	delete(p.Tokens, playerID)
	delete(p.Cards, playerID)
}

// flip reveals the next strain card, or marks the deck spent.
func (p *Payload) flip() {
	if len(p.Deck) == 0 {
		p.Current = 0
		p.DeckCount = 0
		return
	}
	p.Current = p.Deck[0]
	p.Deck = p.Deck[1:]
	p.DeckCount = len(p.Deck)
}

// finish scores the spent deck and ends the game. Lowest score wins.
func finish(st *room.State, p *Payload) {
	best := 0
	var winner *room.Player
	for _, pl := range st.Players {
		pl.Score = Score(p.Cards[pl.ID], p.Tokens[pl.ID])
		if winner == nil || pl.Score < best {
			best = pl.Score
			winner = pl
		}
	}
	st.Status = room.StatusFinished
	if winner != nil {
		st.Logf(room.LogSuccess, "deck exhausted: %s wins with %d", winner.Name, best)
		st.Emit(eventGameOver, winner.ID, map[string]any{"score": best})
	}
}

func insertSorted(cards []int, v int) []int {
	i := sort.SearchInts(cards, v)
	cards = append(cards, 0)
	copy(cards[i+1:], cards[i:])
	cards[i] = v
	return cards
}
