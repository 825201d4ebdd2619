// Package fructose implements a push-your-luck drawing game. Drawn
// fruit piles up in a face-up risk zone; draw a duplicate while holding
// three or more and the whole zone rots. Matching an opponent's banked
// pile offers a steal. Stopping voluntarily parks the zone in a pending
// bank that commits at the start of the player's next turn.
package fructose

import (
	"encoding/json"
	"math/rand"

	"partyline/internal/room"
)

// Fruits is the deck composition: one pile kind per entry, copies each.
var Fruits = []string{"mango", "papaya", "lychee", "durian", "starfruit", "dragonfruit", "kumquat"}

const (
	copiesPerFruit = 9
	bustThreshold  = 3
	minPlayers     = 2
	maxPlayers     = 6

	actionDraw  = "draw"
	actionStop  = "stop"
	actionSteal = "steal"
	actionPass  = "pass"

	eventBust  = "bust"
	eventSteal = "steal"
)

// Payload is the game-specific room document section.
type Payload struct {
	// Deck is face down; redacted to a count.
	Deck      []string `json:"deck,omitempty"`
	DeckCount int      `json:"deckCount"`
	// Risk is each player's face-up uncommitted zone.
	Risk map[string][]string `json:"risk"`
	// Banks are committed piles, fruit kind -> count.
	Banks map[string]map[string]int `json:"banks"`
	// PendingBank holds a voluntarily stopped zone until the owner's
	// next turn begins.
	PendingBank map[string][]string `json:"pendingBank"`
	// Drawn is a card held in limbo while its drawer decides whether to
	// steal the matching opponent pile.
	Drawn   string `json:"drawn,omitempty"`
	DrawnBy string `json:"drawnBy,omitempty"`
}

func (p *Payload) Clone() room.Payload {
	c := &Payload{
		Deck:        append([]string(nil), p.Deck...),
		DeckCount:   p.DeckCount,
		Drawn:       p.Drawn,
		DrawnBy:     p.DrawnBy,
		Risk:        make(map[string][]string, len(p.Risk)),
		Banks:       make(map[string]map[string]int, len(p.Banks)),
		PendingBank: make(map[string][]string, len(p.PendingBank)),
	}
	for id, zone := range p.Risk {
		c.Risk[id] = append([]string(nil), zone...)
	}
	for id, bank := range p.Banks {
		nb := make(map[string]int, len(bank))
		for kind, n := range bank {
			nb[kind] = n
		}
		c.Banks[id] = nb
	}
	for id, zone := range p.PendingBank {
		c.PendingBank[id] = append([]string(nil), zone...)
	}
	return c
}

// Redact hides only the face-down deck; every zone and bank is public.
func (p *Payload) Redact(string) {
	p.Deck = nil
}

func (p *Payload) PendingFor(viewerID string) bool {
	return false // the steal decision belongs to the active player
}

// Rules implements the engine contract.
type Rules struct{}

func New() *Rules { return &Rules{} }

func (Rules) Name() string    { return "fructose_fury" }
func (Rules) MinPlayers() int { return minPlayers }
func (Rules) MaxPlayers() int { return maxPlayers }

func (Rules) Start(st *room.State, rng *rand.Rand) error {
	deck := make([]string, 0, len(Fruits)*copiesPerFruit)
	for _, kind := range Fruits {
		for i := 0; i < copiesPerFruit; i++ {
			deck = append(deck, kind)
		}
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	p := &Payload{
		Deck:        deck,
		DeckCount:   len(deck),
		Risk:        make(map[string][]string, len(st.Players)),
		Banks:       make(map[string]map[string]int, len(st.Players)),
		PendingBank: make(map[string][]string, len(st.Players)),
	}
	for _, pl := range st.Players {
		p.Banks[pl.ID] = make(map[string]int)
	}
	st.Payload = p
	st.Turn = rng.Intn(len(st.Players))
	return nil
}

func (r Rules) Apply(st *room.State, actorID, kind string, data json.RawMessage) error {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return room.Illegalf("round not dealt yet")
	}
	active := st.ActivePlayer()
	if active == nil || active.ID != actorID {
		return room.Illegalf("it is not your turn")
	}

	switch kind {
	case actionDraw:
		if p.Drawn != "" {
			return room.Illegalf("decide on the drawn %s first", p.Drawn)
		}
		return draw(st, p, active)

	case actionStop:
		if p.Drawn != "" {
			return room.Illegalf("decide on the drawn %s first", p.Drawn)
		}
		if len(p.Risk[actorID]) == 0 {
			return room.Illegalf("nothing in your risk zone to store")
		}
		p.PendingBank[actorID] = append(p.PendingBank[actorID], p.Risk[actorID]...)
		delete(p.Risk, actorID)
		st.Logf(room.LogSuccess, "%s stops and stores %d fruit", active.Name, len(p.PendingBank[actorID]))
		endTurn(st, p)
		return nil

	case actionSteal:
		if p.Drawn == "" {
			return room.Illegalf("no steal is on offer")
		}
		var req struct {
			From string `json:"from"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.From == "" {
			return room.Illegalf("steal must name an opponent")
		}
		return steal(st, p, active, req.From)

	case actionPass:
		if p.Drawn == "" {
			return room.Illegalf("no steal is on offer")
		}
		p.Risk[actorID] = append(p.Risk[actorID], p.Drawn)
		st.Logf(room.LogNeutral, "%s keeps the drawn %s", active.Name, p.Drawn)
		p.Drawn = ""
		p.DrawnBy = ""
		checkDeck(st, p)
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
	delete(p.Risk, playerID)
	delete(p.Banks, playerID)
	delete(p.PendingBank, playerID)

	if p.Drawn != "" {
		switch {
		case p.DrawnBy == playerID:
			// The drawer left mid-decision; the limbo card is discarded so
			// the successor starts clean.
			p.Drawn = ""
			p.DrawnBy = ""
		case stealTarget(st, p, p.DrawnBy, p.Drawn) == "":
			// The only matching bank left with its owner; nothing to steal,
			// so the card lands in the drawer's risk zone as a plain keep.
			p.Risk[p.DrawnBy] = append(p.Risk[p.DrawnBy], p.Drawn)
			p.Drawn = ""
			p.DrawnBy = ""
		}
		// Otherwise the decision still stands for the unaffected drawer.
	}

	if st.Status == room.StatusPlaying {
		beginTurn(st, p)
		checkDeck(st, p)
	}
}

// draw flips the top card and resolves bust / steal-offer / plain keep.
func draw(st *room.State, p *Payload, active *room.Player) error {
	if len(p.Deck) == 0 {
		return room.Illegalf("the deck is empty")
	}
	card := p.Deck[0]
	p.Deck = p.Deck[1:]
	p.DeckCount = len(p.Deck)

	zone := p.Risk[active.ID]
	if len(zone) >= bustThreshold && contains(zone, card) {
		delete(p.Risk, active.ID)
		st.Logf(room.LogDanger, "%s draws a second %s and busts, losing %d fruit", active.Name, card, len(zone))
		st.Emit(eventBust, active.ID, map[string]any{"card": card, "lost": len(zone)})
		endTurn(st, p)
		return nil
	}

	if target := stealTarget(st, p, active.ID, card); target != "" {
		p.Drawn = card
		p.DrawnBy = active.ID
		st.Logf(room.LogWarning, "%s draws a %s matching a banked pile: steal or pass?", active.Name, card)
		return nil
	}

	p.Risk[active.ID] = append(zone, card)
	st.Logf(room.LogNeutral, "%s draws a %s", active.Name, card)
	checkDeck(st, p)
	return nil
}

// steal moves the named opponent's matching pile into the thief's risk
// zone along with the drawn card.
func steal(st *room.State, p *Payload, active *room.Player, fromID string) error {
	victim, _ := st.PlayerByID(fromID)
	if victim == nil || victim.ID == active.ID {
		return room.Illegalf("no such opponent")
	}
	pile := p.Banks[fromID][p.Drawn]
	if pile == 0 {
		return room.Illegalf("%s has no banked %s pile", victim.Name, p.Drawn)
	}

	zone := p.Risk[active.ID]
	for i := 0; i < pile; i++ {
		zone = append(zone, p.Drawn)
	}
	zone = append(zone, p.Drawn)
	p.Risk[active.ID] = zone
	delete(p.Banks[fromID], p.Drawn)

	st.Logf(room.LogDanger, "%s steals %s's %s pile (%d fruit)", active.Name, victim.Name, p.Drawn, pile)
	st.Emit(eventSteal, active.ID, map[string]any{"from": fromID, "kind": p.Drawn, "count": pile})
	p.Drawn = ""
	p.DrawnBy = ""
	checkDeck(st, p)
	return nil
}

// endTurn rotates to the next player and commits their pending bank.
func endTurn(st *room.State, p *Payload) {
	st.AdvanceTurn()
	beginTurn(st, p)
	checkDeck(st, p)
}

// beginTurn commits the incoming player's pending bank, the delayed half
// of a voluntary stop.
func beginTurn(st *room.State, p *Payload) {
	active := st.ActivePlayer()
	if active == nil {
		return
	}
	pending := p.PendingBank[active.ID]
	if len(pending) == 0 {
		return
	}
	bank := p.Banks[active.ID]
	if bank == nil {
		bank = make(map[string]int)
		p.Banks[active.ID] = bank
	}
	for _, kind := range pending {
		bank[kind]++
	}
	delete(p.PendingBank, active.ID)
	st.Logf(room.LogSuccess, "%s banks %d stored fruit", active.Name, len(pending))
}

// checkDeck finishes the game when the last card has been resolved.
func checkDeck(st *room.State, p *Payload) {
	if len(p.Deck) > 0 || p.Drawn != "" {
		return
	}
	best := -1
	var winner *room.Player
	for _, pl := range st.Players {
		pl.Score = bankTotal(p.Banks[pl.ID]) + len(p.PendingBank[pl.ID])
		if pl.Score > best {
			best = pl.Score
			winner = pl
		}
	}
	st.Status = room.StatusFinished
	if winner != nil {
		st.Logf(room.LogSuccess, "the deck is spent: %s wins with %d banked fruit", winner.Name, best)
		st.Emit("round_result", winner.ID, map[string]any{"score": best})
	}
}

// stealTarget returns an opponent holding a banked pile of the drawn
// kind, preferring the largest pile. Empty string when no steal applies.
func stealTarget(st *room.State, p *Payload, actorID, card string) string {
	bestID := ""
	bestPile := 0
	for _, pl := range st.Players {
		if pl.ID == actorID {
			continue
		}
		if n := p.Banks[pl.ID][card]; n > bestPile {
			bestPile = n
			bestID = pl.ID
		}
	}
	return bestID
}

func bankTotal(bank map[string]int) int {
	total := 0
	for _, n := range bank {
		total += n
	}
	return total
}

func contains(zone []string, card string) bool {
	for _, c := range zone {
		if c == card {
			return true
		}
	}
	return false
}
