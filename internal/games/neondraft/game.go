// Package neondraft implements a simultaneous draft: every player picks
// one card from a private hand, hands rotate to the left, repeat until
// the hands are empty, then the round is scored. Pulse cards pay for
// pairs and triples, grid cards pay a majority bonus split among tied
// leaders, chrome is plain face value and whoever hoards the most static
// across the whole game takes a penalty at the end.
package neondraft

import (
	"encoding/json"
	"math/rand"

	"partyline/internal/room"
)

// Card categories.
const (
	CatPulse  = "pulse"
	CatGrid   = "grid"
	CatChrome = "chrome"
	CatStatic = "static"
)

const (
	rounds        = 3
	pairBonus     = 4
	tripleBonus   = 8
	majorityBonus = 6
	staticPenalty = 6
	minPlayers    = 2
	maxPlayers    = 5

	actionPick = "pick"

	eventRound = "round_result"
)

// Card is one draftable card. Value is meaningful for chrome only.
type Card struct {
	Category string `json:"category"`
	Value    int    `json:"value,omitempty"`
}

// Payload is the game-specific room document section.
type Payload struct {
	// Hands are private and rotate between players.
	Hands map[string][]Card `json:"hands"`
	// Picks collect the current simultaneous selections, hidden until
	// every player has picked.
	Picks map[string]int `json:"picks"`
	// Drafted is each player's public tableau for the round.
	Drafted map[string][]Card `json:"drafted"`
	// Static accumulates across rounds for the end-of-game penalty.
	Static map[string]int `json:"static"`
}

func (p *Payload) Clone() room.Payload {
	c := &Payload{
		Hands:   make(map[string][]Card, len(p.Hands)),
		Picks:   make(map[string]int, len(p.Picks)),
		Drafted: make(map[string][]Card, len(p.Drafted)),
		Static:  make(map[string]int, len(p.Static)),
	}
	for id, hand := range p.Hands {
		c.Hands[id] = append([]Card(nil), hand...)
	}
	for id, pick := range p.Picks {
		c.Picks[id] = pick
	}
	for id, tableau := range p.Drafted {
		c.Drafted[id] = append([]Card(nil), tableau...)
	}
	for id, n := range p.Static {
		c.Static[id] = n
	}
	return c
}

func (p *Payload) Redact(viewerID string) {
	for id, hand := range p.Hands {
		if id == viewerID {
			continue
		}
		p.Hands[id] = make([]Card, len(hand))
	}
	for id := range p.Picks {
		if id != viewerID {
			// Opponents only learn that a pick happened.
			p.Picks[id] = -1
		}
	}
}

// PendingFor marks every player who still owes a pick this cycle.
func (p *Payload) PendingFor(viewerID string) bool {
	if len(p.Hands[viewerID]) == 0 {
		return false
	}
	_, picked := p.Picks[viewerID]
	return !picked
}

// Rules implements the engine contract.
type Rules struct{}

func New() *Rules { return &Rules{} }

func (Rules) Name() string    { return "neon_draft" }
func (Rules) MinPlayers() int { return minPlayers }
func (Rules) MaxPlayers() int { return maxPlayers }

func (Rules) Start(st *room.State, rng *rand.Rand) error {
	prev, _ := st.Payload.(*Payload)

	handSize := 10 - len(st.Players) + 2
	deck := buildDeck(rng)

	p := &Payload{
		Hands:   make(map[string][]Card, len(st.Players)),
		Picks:   make(map[string]int, len(st.Players)),
		Drafted: make(map[string][]Card, len(st.Players)),
		Static:  make(map[string]int, len(st.Players)),
	}
	if prev != nil {
		for id, n := range prev.Static {
			p.Static[id] = n
		}
	}
	for _, pl := range st.Players {
		p.Hands[pl.ID] = append([]Card(nil), deck[:handSize]...)
		deck = deck[handSize:]
		p.Drafted[pl.ID] = nil
	}
	st.Payload = p
	st.Turn = 0
	return nil
}

func (r Rules) Apply(st *room.State, actorID, kind string, data json.RawMessage) error {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return room.Illegalf("round not dealt yet")
	}
	if kind != actionPick {
		return room.Illegalf("unknown action %q", kind)
	}
	// Drafting is simultaneous: any player with a hand may act, turn
	// order does not apply.
	actor, _ := st.PlayerByID(actorID)
	if actor == nil {
		return room.Illegalf("you are not seated in this room")
	}
	if len(p.Hands[actorID]) == 0 {
		return room.Illegalf("your hand is empty")
	}
	if _, picked := p.Picks[actorID]; picked {
		return room.Illegalf("you have already picked this cycle")
	}

	var req struct {
		Index int `json:"index"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return room.Illegalf("malformed pick")
	}
	if req.Index < 0 || req.Index >= len(p.Hands[actorID]) {
		return room.Illegalf("pick index %d out of range", req.Index)
	}

	p.Picks[actorID] = req.Index
	st.Logf(room.LogNeutral, "%s locks in a pick", actor.Name)

	if len(p.Picks) == len(st.Players) {
		revealAndRotate(st, p)
	}
	return nil
}

func (Rules) PlayerLeft(st *room.State, playerID string) {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return
	}
	delete(p.Hands, playerID)
	delete(p.Picks, playerID)
	delete(p.Drafted, playerID)
	delete(p.Static, playerID)
	// The cycle may now be complete without the departed player's pick.
	if len(st.Players) > 0 && len(p.Picks) == len(st.Players) && st.Status == room.StatusPlaying {
		revealAndRotate(st, p)
	}
}

// revealAndRotate moves every pick to its drafter's tableau, rotates the
// shrunken hands one seat to the left and scores the round when the
// hands are spent.
func revealAndRotate(st *room.State, p *Payload) {
	for id, idx := range p.Picks {
		hand := p.Hands[id]
		card := hand[idx]
		p.Drafted[id] = append(p.Drafted[id], card)
		p.Hands[id] = append(hand[:idx], hand[idx+1:]...)
		if card.Category == CatStatic {
			p.Static[id]++
		}
	}
	p.Picks = make(map[string]int, len(st.Players))

	// Hands rotate left: each player receives their right neighbor's.
	if len(st.Players) > 1 {
		rotated := make(map[string][]Card, len(p.Hands))
		for i, pl := range st.Players {
			next := st.Players[(i+1)%len(st.Players)]
			rotated[next.ID] = p.Hands[pl.ID]
		}
		p.Hands = rotated
	}

	for _, hand := range p.Hands {
		if len(hand) > 0 {
			return
		}
	}
	scoreRound(st, p)
}

// scoreRound applies the per-round bonuses, then either deals the next
// round or closes the game with the static penalty.
func scoreRound(st *room.State, p *Payload) {
	gridCounts := make(map[string]int, len(st.Players))
	for _, pl := range st.Players {
		tableau := p.Drafted[pl.ID]
		gained := RoundScore(tableau)
		pl.Score += gained
		gridCounts[pl.ID] = countCategory(tableau, CatGrid)
		st.Logf(room.LogNeutral, "%s scores %d this round", pl.Name, gained)
	}

	// Majority bonus, split evenly (floor) among tied grid leaders.
	leaders, max := []string{}, 0
	for id, n := range gridCounts {
		switch {
		case n > max:
			leaders, max = []string{id}, n
		case n == max && n > 0:
			leaders = append(leaders, id)
		}
	}
	if max > 0 {
		share := majorityBonus / len(leaders)
		for _, id := range leaders {
			if pl, _ := st.PlayerByID(id); pl != nil {
				pl.Score += share
				st.Logf(room.LogSuccess, "%s takes a grid majority share of %d", pl.Name, share)
			}
		}
	}

	st.Emit(eventRound, "", map[string]any{"round": st.Round})

	if st.Round >= rounds {
		finishGame(st, p)
		return
	}
	st.Status = room.StatusRoundEnd
}

// finishGame applies the static penalty to whoever hoarded the most
// static overall, then declares the winner.
func finishGame(st *room.State, p *Payload) {
	worst := 0
	for _, n := range p.Static {
		if n > worst {
			worst = n
		}
	}
	if worst > 0 {
		for id, n := range p.Static {
			if n == worst {
				if pl, _ := st.PlayerByID(id); pl != nil {
					pl.Score -= staticPenalty
					st.Logf(room.LogDanger, "%s drowns in static and loses %d", pl.Name, staticPenalty)
				}
			}
		}
	}

	var winner *room.Player
	for _, pl := range st.Players {
		if winner == nil || pl.Score > winner.Score {
			winner = pl
		}
	}
	st.Status = room.StatusFinished
	if winner != nil {
		st.Logf(room.LogSuccess, "%s wins with %d points", winner.Name, winner.Score)
	}
}

// buildDeck shuffles a fresh draw pile with a fixed category mix.
func buildDeck(rng *rand.Rand) []Card {
	deck := make([]Card, 0, 60)
	for i := 0; i < 18; i++ {
		deck = append(deck, Card{Category: CatPulse})
	}
	for i := 0; i < 14; i++ {
		deck = append(deck, Card{Category: CatGrid})
	}
	for v := 1; v <= 3; v++ {
		for i := 0; i < 6; i++ {
			deck = append(deck, Card{Category: CatChrome, Value: v})
		}
	}
	for i := 0; i < 10; i++ {
		deck = append(deck, Card{Category: CatStatic})
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

func countCategory(tableau []Card, category string) int {
	n := 0
	for _, c := range tableau {
		if c.Category == category {
			n++
		}
	}
	return n
}
