// Package ghostdice implements a dice-bluffing game. Everyone rolls a
// secret pool of dice, players escalate bids about how many dice of a
// face are on the table, and a challenge reveals everything. Ones are
// wild unless the standing bid is itself on ones. Losing a challenge
// costs a die; the last player holding dice wins.
package ghostdice

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"partyline/internal/room"
)

const (
	startingDice    = 5
	minPlayers      = 2
	maxPlayers      = 6
	actionBid       = "bid"
	actionChallenge = "challenge"
	eventReveal     = "round_result"
)

// Bid is a claim that at least Quantity dice across all cups show Face
// (with ones wild, unless Face is 1).
type Bid struct {
	Quantity int `json:"quantity"`
	Face     int `json:"face"`
}

// Beats reports whether b is a legal escalation over prev: strictly
// greater quantity at any face, or equal quantity at a strictly greater
// face.
func (b Bid) Beats(prev *Bid) bool {
	if prev == nil {
		return b.Quantity >= 1
	}
	if b.Quantity > prev.Quantity {
		return true
	}
	return b.Quantity == prev.Quantity && b.Face > prev.Face
}

// Payload is the game-specific room document section.
type Payload struct {
	// Dice rolls are secret until a challenge reveals the round.
	Dice     map[string][]int `json:"dice"`
	Bid      *Bid             `json:"bid,omitempty"`
	Bidder   string           `json:"bidder,omitempty"`
	Revealed bool             `json:"revealed"`
	// Loser of the last challenge; leads the next roll-off.
	Loser string `json:"loser,omitempty"`
}

func (p *Payload) Clone() room.Payload {
	c := &Payload{
		Bidder:   p.Bidder,
		Revealed: p.Revealed,
		Loser:    p.Loser,
		Dice:     make(map[string][]int, len(p.Dice)),
	}
	if p.Bid != nil {
		bid := *p.Bid
		c.Bid = &bid
	}
	for id, dice := range p.Dice {
		c.Dice[id] = append([]int(nil), dice...)
	}
	return c
}

func (p *Payload) Redact(viewerID string) {
	if p.Revealed {
		return
	}
	for id, dice := range p.Dice {
		if id == viewerID {
			continue
		}
		// Opponents see cup sizes, never faces.
		p.Dice[id] = make([]int, len(dice))
	}
}

func (p *Payload) PendingFor(string) bool { return false }

// Rules implements the engine contract.
type Rules struct{}

func New() *Rules { return &Rules{} }

func (Rules) Name() string    { return "ghost_dice" }
func (Rules) MinPlayers() int { return minPlayers }
func (Rules) MaxPlayers() int { return maxPlayers }

// Start rolls a fresh round. Dice counts survive between rounds: the
// first call gives everyone five dice, later calls re-roll whatever each
// survivor still holds.
func (Rules) Start(st *room.State, rng *rand.Rand) error {
	prev, _ := st.Payload.(*Payload)
	p := &Payload{Dice: make(map[string][]int, len(st.Players))}

	for _, pl := range st.Players {
		n := startingDice
		if prev != nil {
			n = len(prev.Dice[pl.ID])
		}
		if n == 0 {
			pl.Eliminated = true
			continue
		}
		dice := make([]int, n)
		for i := range dice {
			dice[i] = rng.Intn(6) + 1
		}
		p.Dice[pl.ID] = dice
	}

	if prev != nil {
		p.Loser = prev.Loser
		if loser, idx := st.PlayerByID(prev.Loser); loser != nil && !loser.Eliminated {
			st.Turn = idx
		} else {
			st.AdvanceTurn()
		}
	} else {
		st.Turn = rng.Intn(len(st.Players))
	}
	st.Payload = p
	return nil
}

func (r Rules) Apply(st *room.State, actorID, kind string, data json.RawMessage) error {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return room.Illegalf("round not rolled yet")
	}
	active := st.ActivePlayer()
	if active == nil || active.ID != actorID {
		return room.Illegalf("it is not your turn")
	}
	if p.Revealed {
		return room.Illegalf("the round is over; wait for the next roll")
	}

	switch kind {
	case actionBid:
		var bid Bid
		if err := json.Unmarshal(data, &bid); err != nil {
			return room.Illegalf("malformed bid")
		}
		if bid.Face < 1 || bid.Face > 6 || bid.Quantity < 1 {
			return room.Illegalf("bid must name a face 1-6 and a positive quantity")
		}
		if !bid.Beats(p.Bid) {
			return room.Illegalf("bid %d x %ds does not raise the standing bid", bid.Quantity, bid.Face)
		}
		p.Bid = &bid
		p.Bidder = actorID
		st.Logf(room.LogNeutral, "%s bids %d x %ds", active.Name, bid.Quantity, bid.Face)
		st.AdvanceTurn()
		return nil

	case actionChallenge:
		if p.Bid == nil {
			return room.Illegalf("there is no bid to challenge")
		}
		resolveChallenge(st, p, active)
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
	delete(p.Dice, playerID)
	// A standing bid by the departed player can no longer be punished on
	// them; clear it so bidding restarts from the floor.
	if p.Bidder == playerID {
		p.Bid = nil
		p.Bidder = ""
		st.Log(room.LogWarning, "the standing bid left with its bidder; bidding restarts")
	}
	if p.Loser == playerID {
		p.Loser = ""
	}
}

// resolveChallenge reveals every cup, counts the bid face (ones wild
// unless the bid is on ones) and takes a die from whoever was wrong.
func resolveChallenge(st *room.State, p *Payload, challenger *room.Player) {
	bid := *p.Bid
	total := 0
	for _, dice := range p.Dice {
		for _, die := range dice {
			if die == bid.Face || (die == 1 && bid.Face != 1) {
				total++
			}
		}
	}

	bidder, _ := st.PlayerByID(p.Bidder)
	var loser *room.Player
	if total >= bid.Quantity {
		loser = challenger
	} else {
		loser = bidder
	}

	p.Revealed = true
	st.Logf(room.LogNeutral, "%s challenges: %s", challenger.Name, describeCups(st, p))
	st.Logf(room.LogWarning, "%d x %ds on the table against a bid of %d", total, bid.Face, bid.Quantity)

	if loser == nil {
		// Bidder already gone; the challenge fizzles.
		st.Status = room.StatusRoundEnd
		return
	}

	p.Loser = loser.ID
	p.Dice[loser.ID] = p.Dice[loser.ID][:len(p.Dice[loser.ID])-1]
	st.Logf(room.LogDanger, "%s loses a die", loser.Name)
	st.Emit(eventReveal, loser.ID, map[string]any{
		"total":    total,
		"quantity": bid.Quantity,
		"face":     bid.Face,
	})

	if len(p.Dice[loser.ID]) == 0 {
		loser.Eliminated = true
		st.Logf(room.LogDanger, "%s is out of dice", loser.Name)
	}

	if st.AliveCount() <= 1 {
		st.Status = room.StatusFinished
		for _, pl := range st.Players {
			if !pl.Eliminated {
				pl.Score++
				st.Logf(room.LogSuccess, "%s wins the game", pl.Name)
			}
		}
		return
	}
	st.Status = room.StatusRoundEnd
}

func describeCups(st *room.State, p *Payload) string {
	parts := make([]string, 0, len(p.Dice))
	for _, pl := range st.Players {
		dice, ok := p.Dice[pl.ID]
		if !ok {
			continue
		}
		shown := append([]int(nil), dice...)
		sort.Ints(shown)
		parts = append(parts, fmt.Sprintf("%s %v", pl.Name, shown))
	}
	return strings.Join(parts, ", ")
}
