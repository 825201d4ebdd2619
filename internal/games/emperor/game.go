// Package emperor implements a climbing game: play a single card
// strictly higher than the one on the table or pass. When everyone else
// passes, the table clears and the last player to lay a card leads.
// Shedding your whole hand claims the next rung of the court; finish
// order decides the round's points and the first player to the target
// score takes the crown.
package emperor

import (
	"encoding/json"
	"math/rand"
	"sort"

	"partyline/internal/room"
)

const (
	lowRank     = 3
	highRank    = 15 // the 2, scored highest
	copiesEach  = 4
	targetScore = 20
	minPlayers  = 3
	maxPlayers  = 8

	actionPlay = "play"
	actionPass = "pass"

	eventRound = "round_result"
)

// Payload is the game-specific room document section.
type Payload struct {
	// Hands are private; each viewer sees only their own.
	Hands map[string][]int `json:"hands"`
	// Table is the rank to beat; 0 when the table is clear.
	Table      int    `json:"table"`
	TableOwner string `json:"tableOwner,omitempty"`
	// Passed marks players locked out until the next clear.
	Passed map[string]bool `json:"passed"`
	// Finished is this round's finish order, first out first.
	Finished []string `json:"finished"`
}

func (p *Payload) Clone() room.Payload {
	c := &Payload{
		Table:      p.Table,
		TableOwner: p.TableOwner,
		Hands:      make(map[string][]int, len(p.Hands)),
		Passed:     make(map[string]bool, len(p.Passed)),
		Finished:   append([]string(nil), p.Finished...),
	}
	for id, hand := range p.Hands {
		c.Hands[id] = append([]int(nil), hand...)
	}
	for id, v := range p.Passed {
		c.Passed[id] = v
	}
	return c
}

func (p *Payload) Redact(viewerID string) {
	for id, hand := range p.Hands {
		if id == viewerID {
			continue
		}
		// Opponents see hand sizes only.
		p.Hands[id] = make([]int, len(hand))
	}
}

func (p *Payload) PendingFor(string) bool { return false }

// Rules implements the engine contract.
type Rules struct{}

func New() *Rules { return &Rules{} }

func (Rules) Name() string    { return "emperor" }
func (Rules) MinPlayers() int { return minPlayers }
func (Rules) MaxPlayers() int { return maxPlayers }

func (Rules) Start(st *room.State, rng *rand.Rand) error {
	deck := make([]int, 0, (highRank-lowRank+1)*copiesEach)
	for rank := lowRank; rank <= highRank; rank++ {
		for i := 0; i < copiesEach; i++ {
			deck = append(deck, rank)
		}
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	p := &Payload{
		Hands:  make(map[string][]int, len(st.Players)),
		Passed: make(map[string]bool, len(st.Players)),
	}
	for i, card := range deck {
		pl := st.Players[i%len(st.Players)]
		p.Hands[pl.ID] = append(p.Hands[pl.ID], card)
	}
	for _, hand := range p.Hands {
		sort.Ints(hand)
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
	case actionPlay:
		var req struct {
			Card int `json:"card"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return room.Illegalf("malformed play")
		}
		return play(st, p, active, req.Card)

	case actionPass:
		if p.Table == 0 {
			return room.Illegalf("you lead the table and must play")
		}
		p.Passed[actorID] = true
		st.Logf(room.LogNeutral, "%s passes", active.Name)
		advance(st, p)
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
	delete(p.Hands, playerID)
	delete(p.Passed, playerID)
	if p.TableOwner == playerID {
		// The departed player's card cannot win the trick; clear it.
		p.Table = 0
		p.TableOwner = ""
		clearPasses(p)
	}
	for i, id := range p.Finished {
		if id == playerID {
			p.Finished = append(p.Finished[:i], p.Finished[i+1:]...)
			break
		}
	}

	if st.Status != room.StatusPlaying || len(st.Players) == 0 {
		return
	}
	// The departure may have left a single holder standing.
	if roundOver(st, p) {
		return
	}
	// The re-derived turn pointer can land on a player who already shed
	// out; hand the turn to the next player still in the trick.
	if len(p.Hands[st.Players[st.Turn].ID]) == 0 {
		advance(st, p)
	}
}

func play(st *room.State, p *Payload, active *room.Player, card int) error {
	hand := p.Hands[active.ID]
	idx := indexOf(hand, card)
	if idx < 0 {
		return room.Illegalf("you do not hold a %d", card)
	}
	if p.Table != 0 && card <= p.Table {
		return room.Illegalf("a %d does not beat the %d on the table", card, p.Table)
	}

	p.Hands[active.ID] = append(hand[:idx], hand[idx+1:]...)
	p.Table = card
	p.TableOwner = active.ID
	st.Logf(room.LogNeutral, "%s plays a %d", active.Name, card)

	if len(p.Hands[active.ID]) == 0 {
		p.Finished = append(p.Finished, active.ID)
		st.Logf(room.LogSuccess, "%s sheds their last card (position %d)", active.Name, len(p.Finished))
		if roundOver(st, p) {
			return nil
		}
	}
	advance(st, p)
	return nil
}

// advance finds the next player still in the trick. If nobody but the
// table owner can act, the table clears and the owner leads again.
func advance(st *room.State, p *Payload) {
	for i := 1; i <= len(st.Players); i++ {
		idx := (st.Turn + i) % len(st.Players)
		pl := st.Players[idx]
		if pl.Eliminated || len(p.Hands[pl.ID]) == 0 || p.Passed[pl.ID] {
			continue
		}
		if pl.ID == p.TableOwner {
			break // trick comes back around to its owner
		}
		st.Turn = idx
		return
	}

	// Trick over: clear the table, owner (or their successor) leads.
	leadID := p.TableOwner
	p.Table = 0
	p.TableOwner = ""
	clearPasses(p)

	if lead, idx := st.PlayerByID(leadID); lead != nil && len(p.Hands[leadID]) > 0 {
		st.Turn = idx
		return
	}
	// Owner already shed out; next holder of cards after them leads.
	for i := 1; i <= len(st.Players); i++ {
		idx := (st.Turn + i) % len(st.Players)
		if len(p.Hands[st.Players[idx].ID]) > 0 {
			st.Turn = idx
			return
		}
	}
}

// roundOver ends the round once a single player holds cards, awards
// finish-order points and either continues to the next round or crowns
// a winner at the target score.
func roundOver(st *room.State, p *Payload) bool {
	holders := 0
	lastID := ""
	for _, pl := range st.Players {
		if len(p.Hands[pl.ID]) > 0 {
			holders++
			lastID = pl.ID
		}
	}
	if holders > 1 {
		return false
	}
	if lastID != "" {
		p.Finished = append(p.Finished, lastID)
	}

	n := len(p.Finished)
	winnerName := ""
	for i, id := range p.Finished {
		if pl, _ := st.PlayerByID(id); pl != nil {
			pl.Score += n - i
			if i == 0 {
				winnerName = pl.Name
			}
		}
	}
	st.Logf(room.LogSuccess, "%s takes the round as emperor", winnerName)
	st.Emit(eventRound, "", map[string]any{"order": p.Finished})

	for _, pl := range st.Players {
		if pl.Score >= targetScore {
			st.Status = room.StatusFinished
			st.Logf(room.LogSuccess, "%s reaches %d points and takes the crown", pl.Name, pl.Score)
			return true
		}
	}
	st.Status = room.StatusRoundEnd
	return true
}

func clearPasses(p *Payload) {
	for id := range p.Passed {
		delete(p.Passed, id)
	}
}

func indexOf(hand []int, card int) int {
	for i, c := range hand {
		if c == card {
			return i
		}
	}
	return -1
}
